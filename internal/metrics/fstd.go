package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

const fstdNamespace = "metacore_fstd"

// FstdCollector exposes process-wide (unlabelled) resync and watcher-trigger
// counters.
type FstdCollector struct {
	diskResyncTotal  *prometheus.Desc
	mgmResyncTotal   *prometheus.Desc
	watcherHitsTotal *prometheus.Desc

	diskResync  int64
	mgmResync   int64
	watcherHits int64
}

// NewFstdCollector builds the Collector's metric descriptors.
func NewFstdCollector() *FstdCollector {
	return &FstdCollector{
		diskResyncTotal: prometheus.NewDesc(
			prometheus.BuildFQName(fstdNamespace, "", "disk_resync_sweeps_total"),
			"Total number of completed disk resync sweeps.", nil, nil,
		),
		mgmResyncTotal: prometheus.NewDesc(
			prometheus.BuildFQName(fstdNamespace, "", "mgm_resync_sweeps_total"),
			"Total number of single-fid MGM resyncs requested via pcmd=rewrite.", nil, nil,
		),
		watcherHitsTotal: prometheus.NewDesc(
			prometheus.BuildFQName(fstdNamespace, "", "watcher_hits_total"),
			"Total number of fids resynced by the fsnotify watcher between sweeps.", nil, nil,
		),
	}
}

func (c *FstdCollector) AddDiskResync() { atomic.AddInt64(&c.diskResync, 1) }
func (c *FstdCollector) AddMgmResync()  { atomic.AddInt64(&c.mgmResync, 1) }
func (c *FstdCollector) AddWatcherHit() { atomic.AddInt64(&c.watcherHits, 1) }

// Describe implements prometheus.Collector.
func (c *FstdCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.diskResyncTotal
	ch <- c.mgmResyncTotal
	ch <- c.watcherHitsTotal
}

// Collect implements prometheus.Collector.
func (c *FstdCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.diskResyncTotal, prometheus.CounterValue, float64(atomic.LoadInt64(&c.diskResync)))
	ch <- prometheus.MustNewConstMetric(c.mgmResyncTotal, prometheus.CounterValue, float64(atomic.LoadInt64(&c.mgmResync)))
	ch <- prometheus.MustNewConstMetric(c.watcherHitsTotal, prometheus.CounterValue, float64(atomic.LoadInt64(&c.watcherHits)))
}
