package rebalance

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/eoscore/metacore/internal/fsview"
	"github.com/eoscore/metacore/internal/tracker"
	"github.com/eoscore/metacore/pkg/elog"
)

// BalancerConfig holds one space's group-balancer policy (§4.6).
type BalancerConfig struct {
	Space     string
	Threshold float64 // T: fill-ratio band around the average considered balanced
	Ntx       int     // max conversion jobs in flight per cycle
	DryRun    bool    // supplemented (§11): compute and log without submitting
}

// Balancer periodically rebalances one space's groups by fill ratio,
// emitting conversion jobs for a converter subsystem to carry out.
type Balancer struct {
	View      *fsview.Handler
	NS        NamespaceReader
	Sink      ConversionSink
	Converter ConverterTracker
	Tracker   *tracker.Tracker
	Cfg       BalancerConfig
	Log       *elog.Logger

	// IsMaster reports whether this node currently holds mastership; the
	// balancer is a no-op elsewhere (§4.6 step 5).
	IsMaster func() bool
	// ConverterOn reports the converter=on precondition (§4.6 step 5).
	ConverterOn func() bool

	// OnJob, if set, is called after every conversion job this cycle
	// actually submits to Sink (never for dry-run or failed submits),
	// for callers that want per-job metrics.
	OnJob func()
}

// groupFill pairs a group name with its current fill ratio.
type groupFill struct {
	name string
	fill float64
}

// RunCycle executes one balancing pass: snapshot fill ratios, partition
// into over/under by threshold around the average, and emit conversion
// jobs until Ntx in-flight jobs are scheduled or no more candidates exist.
func (b *Balancer) RunCycle(ctx context.Context) error {
	if b.IsMaster != nil && !b.IsMaster() {
		return nil
	}
	if b.ConverterOn != nil && !b.ConverterOn() {
		return fmt.Errorf("rebalance: converter=on precondition not met")
	}

	b.pruneInFlight()

	groups := b.View.SpaceGroups(b.Cfg.Space)
	var onGroups []fsview.Group
	for _, g := range groups {
		if g.Status == "on" {
			onGroups = append(onGroups, g)
		}
	}
	if len(onGroups) == 0 {
		return nil
	}

	fills := make([]groupFill, 0, len(onGroups))
	var sum float64
	for _, g := range onGroups {
		f := groupFillRatio(b.View, g)
		fills = append(fills, groupFill{name: g.Name, fill: f})
		sum += f
	}
	avg := sum / float64(len(fills))

	var over, under []groupFill
	for _, gf := range fills {
		switch {
		case gf.fill > avg+b.Cfg.Threshold:
			over = append(over, gf)
		case gf.fill < avg-b.Cfg.Threshold:
			under = append(under, gf)
		}
	}
	if len(over) == 0 || len(under) == 0 {
		return nil
	}

	for b.Tracker.Len() < b.Cfg.Ntx {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		src := over[rand.Intn(len(over))]
		dst := under[rand.Intn(len(under))]

		fid, ok := b.pickFidInGroup(src.name)
		if !ok {
			break
		}
		// pickFidInGroup already marked fid seen via Tracker.Seen.

		job := ConversionJob{Fid: fid, TargetGroup: dst.name, Lid: 0}
		if b.Cfg.DryRun {
			job.Reason = fmt.Sprintf("dry-run: would move fid=%d from group=%s to group=%s", fid, src.name, dst.name)
			if b.Log != nil {
				b.Log.Infof("rebalance: %s", job.Reason)
			}
			continue
		}

		if err := b.Sink.Submit(job); err != nil {
			if b.Log != nil {
				b.Log.Warnf("rebalance: submit fid=%d target=%s failed: %v", fid, dst.name, err)
			}
			b.Tracker.Forget(fid)
			continue
		}
		if b.OnJob != nil {
			b.OnJob()
		}
	}
	return nil
}

// pruneInFlight drops tracker entries the converter subsystem no longer
// reports as in flight (§4.6 "Update of in-flight counts").
func (b *Balancer) pruneInFlight() {
	if b.Converter == nil {
		return
	}
	live := b.Converter.InFlight()
	for _, fid := range b.Tracker.Keys() {
		if _, ok := live[fid]; !ok {
			b.Tracker.Forget(fid)
		}
	}
}

// pickFidInGroup picks one fs in the group (bounded-attempt, skipping
// non-online), then an approximately-random fid on it, rejecting fids
// already scheduled (§4.6 step 4).
func (b *Balancer) pickFidInGroup(group string) (uint64, bool) {
	g, ok := b.View.GroupSnapshot(group)
	if !ok || len(g.Members) == 0 {
		return 0, false
	}
	for attempt := 0; attempt < MaxPickAttempts; attempt++ {
		fsid := g.Members[rand.Intn(len(g.Members))]
		fs, ok := b.View.Snapshot(fsid)
		if !ok || !fs.Online {
			continue
		}
		fid, ok := b.NS.ApproxRandomFidOnFs(fsid)
		if !ok {
			continue
		}
		if b.Tracker.Seen(fid) {
			continue // already scheduled this cycle or still within TTL
		}
		return fid, true
	}
	return 0, false
}

func groupFillRatio(view *fsview.Handler, g fsview.Group) float64 {
	var used, capacity uint64
	for _, fsid := range g.Members {
		fs, ok := view.Snapshot(fsid)
		if !ok {
			continue
		}
		used += fs.Used
		capacity += fs.Capacity
	}
	if capacity == 0 {
		return 0
	}
	return float64(used) / float64(capacity)
}

// DefaultCycleInterval is how often a Balancer or Drainer should be driven
// when idle (§5: "10 s for rebalancer idle").
const DefaultCycleInterval = 10 * time.Second
