// Package metrics implements the prometheus Collectors exposed by mgmd and
// fstd, grounded on the systemd_exporter pattern: a struct of *prometheus.Desc
// fields built once in the constructor, with the daemon's long-running loops
// feeding plain atomic counters that Collect renders into metric values.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "metacore_mgmd"

// MgmdCollector exposes per-cycle counters for the FSCK, rebalance, drain,
// and balance subsystems. Each Add* method is safe to call from any
// subsystem goroutine; Collect reads a consistent snapshot via atomic loads.
type MgmdCollector struct {
	fsckCyclesTotal      *prometheus.Desc
	fsckEntriesDesc      *prometheus.Desc
	fsckRepairsScheduled *prometheus.Desc
	rebalanceJobsTotal   *prometheus.Desc
	drainJobsTotal       *prometheus.Desc
	balanceJobsTotal     *prometheus.Desc
	balanceColdTotal     *prometheus.Desc

	fsckCycles    int64
	fsckEntries   int64
	fsckRepairs   int64
	rebalanceJobs int64
	drainJobs     int64
	balanceJobs   int64
	balanceCold   int64
}

// NewMgmdCollector builds the Collector's metric descriptors.
func NewMgmdCollector() *MgmdCollector {
	return &MgmdCollector{
		fsckCyclesTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "fsck_cycles_total"),
			"Total number of FSCK collector cycles completed.", nil, nil,
		),
		fsckEntriesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "fsck_entries_total"),
			"Total number of error-map entries observed across all FSCK cycles.", nil, nil,
		),
		fsckRepairsScheduled: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "fsck_repairs_scheduled_total"),
			"Total number of repair jobs scheduled by the FSCK dispatcher.", nil, nil,
		),
		rebalanceJobsTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "rebalance_jobs_total"),
			"Total number of conversion jobs emitted by the group balancer.", nil, nil,
		),
		drainJobsTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "drain_jobs_total"),
			"Total number of conversion jobs emitted by the group drainer.", nil, nil,
		),
		balanceJobsTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "balance_jobs_total"),
			"Total number of balance transfer jobs scheduled.", nil, nil,
		),
		balanceColdTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "balance_cold_total"),
			"Total number of balance schedule calls that returned the empty-body cold path.", nil, nil,
		),
	}
}

func (c *MgmdCollector) AddFsckCycle(entries int)   { atomic.AddInt64(&c.fsckCycles, 1); atomic.AddInt64(&c.fsckEntries, int64(entries)) }
func (c *MgmdCollector) AddFsckRepairsScheduled(n int) { atomic.AddInt64(&c.fsckRepairs, int64(n)) }
func (c *MgmdCollector) AddRebalanceJob()             { atomic.AddInt64(&c.rebalanceJobs, 1) }
func (c *MgmdCollector) AddDrainJob()                 { atomic.AddInt64(&c.drainJobs, 1) }
func (c *MgmdCollector) AddBalanceJob()               { atomic.AddInt64(&c.balanceJobs, 1) }
func (c *MgmdCollector) AddBalanceCold()              { atomic.AddInt64(&c.balanceCold, 1) }

// Describe implements prometheus.Collector.
func (c *MgmdCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.fsckCyclesTotal
	ch <- c.fsckEntriesDesc
	ch <- c.fsckRepairsScheduled
	ch <- c.rebalanceJobsTotal
	ch <- c.drainJobsTotal
	ch <- c.balanceJobsTotal
	ch <- c.balanceColdTotal
}

// Collect implements prometheus.Collector.
func (c *MgmdCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.fsckCyclesTotal, prometheus.CounterValue, float64(atomic.LoadInt64(&c.fsckCycles)))
	ch <- prometheus.MustNewConstMetric(c.fsckEntriesDesc, prometheus.CounterValue, float64(atomic.LoadInt64(&c.fsckEntries)))
	ch <- prometheus.MustNewConstMetric(c.fsckRepairsScheduled, prometheus.CounterValue, float64(atomic.LoadInt64(&c.fsckRepairs)))
	ch <- prometheus.MustNewConstMetric(c.rebalanceJobsTotal, prometheus.CounterValue, float64(atomic.LoadInt64(&c.rebalanceJobs)))
	ch <- prometheus.MustNewConstMetric(c.drainJobsTotal, prometheus.CounterValue, float64(atomic.LoadInt64(&c.drainJobs)))
	ch <- prometheus.MustNewConstMetric(c.balanceJobsTotal, prometheus.CounterValue, float64(atomic.LoadInt64(&c.balanceJobs)))
	ch <- prometheus.MustNewConstMetric(c.balanceColdTotal, prometheus.CounterValue, float64(atomic.LoadInt64(&c.balanceCold)))
}
