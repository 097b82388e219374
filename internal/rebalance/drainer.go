package rebalance

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/eoscore/metacore/internal/fsview"
	"github.com/eoscore/metacore/internal/tracker"
	"github.com/eoscore/metacore/pkg/elog"
)

// FidCacheListSize is the batch size for capped streaming fid enumeration
// (§4.6). No code in this package reads it: the drainer picks files through
// ApproxRandomFidOnFs and detects an emptied fs through CountFilesOnFs,
// without paging through fid lists.
const FidCacheListSize = 1024

// NamespaceLister extends NamespaceReader with the per-fs file count the
// drainer uses to notice an fs has been fully emptied. It has no fid
// enumeration method.
type NamespaceLister interface {
	NamespaceReader
	// CountFilesOnFs reports how many fids remain on fsid, used to detect
	// drain completion. A cheap cached count is fine; it need not be exact.
	CountFilesOnFs(fsid uint32) int
}

// DrainerConfig holds one space's group-drainer policy (§4.6).
type DrainerConfig struct {
	Space  string
	Ntx    int
	DryRun bool
}

// Drainer empties groups with status in {on, drain}, moving their files to
// the fewest-filesystems (or entirely empty) group in the same space.
type Drainer struct {
	View      *fsview.Handler
	NS        NamespaceLister
	Sink      ConversionSink
	Converter ConverterTracker
	Tracker   *tracker.Tracker
	Cfg       DrainerConfig
	Log       *elog.Logger

	IsMaster    func() bool
	ConverterOn func() bool

	// OnJob, if set, is called after every conversion job this cycle
	// actually submits to Sink (never for dry-run or failed submits).
	OnJob func()
}

// RunCycle drains one pass worth of files off groups being drained,
// targeting the destination group chosen by the tie-break rule in §4.6.
func (d *Drainer) RunCycle(ctx context.Context) error {
	if d.IsMaster != nil && !d.IsMaster() {
		return nil
	}
	if d.ConverterOn != nil && !d.ConverterOn() {
		return fmt.Errorf("rebalance: converter=on precondition not met")
	}

	d.pruneInFlight()

	groups := d.View.SpaceGroups(d.Cfg.Space)
	var sources []fsview.Group
	for _, g := range groups {
		if g.Status == "on" || g.Status == "drain" {
			sources = append(sources, g)
		}
	}
	if len(sources) == 0 {
		return nil
	}

	spaceDef, ok := d.View.SpaceDefaults(d.Cfg.Space)
	if !ok {
		return fmt.Errorf("rebalance: unknown space %q", d.Cfg.Space)
	}

	for d.Tracker.Len() < d.Cfg.Ntx {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var src fsview.Group
		var fsid uint32
		var fid uint64
		ok := false
		for _, i := range rand.Perm(len(sources)) {
			src = sources[i]
			if fsid, fid, ok = d.pickOnlineFidInGroup(src); ok {
				break
			}
		}
		if !ok {
			break
		}

		dst, ok := d.pickDestination(groups, spaceDef)
		if !ok {
			break
		}

		job := ConversionJob{Fid: fid, TargetGroup: dst}
		if d.Cfg.DryRun {
			job.Reason = fmt.Sprintf("dry-run: would drain fid=%d from fs=%d (group=%s) to group=%s", fid, fsid, src.Name, dst)
			if d.Log != nil {
				d.Log.Infof("rebalance: %s", job.Reason)
			}
			continue
		}
		if err := d.Sink.Submit(job); err != nil {
			if d.Log != nil {
				d.Log.Warnf("rebalance: submit drain fid=%d failed: %v", fid, err)
			}
			d.Tracker.Forget(fid)
			continue
		}
		if d.OnJob != nil {
			d.OnJob()
		}

		d.maybeMarkEmpty(fsid)
	}
	return nil
}

// pickOnlineFidInGroup picks a fs that is online and NoDrain (§4.6), then
// an approximately-random fid on it, rejecting fids already scheduled.
func (d *Drainer) pickOnlineFidInGroup(g fsview.Group) (uint32, uint64, bool) {
	if len(g.Members) == 0 {
		return 0, 0, false
	}
	for attempt := 0; attempt < MaxPickAttempts; attempt++ {
		fsid := g.Members[rand.Intn(len(g.Members))]
		fs, ok := d.View.Snapshot(fsid)
		if !ok || !fs.Online || !fs.NoDrain() {
			continue
		}
		fid, ok := d.NS.ApproxRandomFidOnFs(fsid)
		if !ok {
			continue
		}
		if d.Tracker.Seen(fid) {
			continue
		}
		return fsid, fid, true
	}
	return 0, 0, false
}

// pickDestination applies the tie-break rule: prefer an entirely empty
// group (including one not yet minted, if groupmod allows it), otherwise
// the group with fewest filesystems; groups at groupsize are skipped.
func (d *Drainer) pickDestination(groups []fsview.Group, space fsview.Space) (string, bool) {
	type candidate struct {
		name    string
		members int
		empty   bool
	}
	var cands []candidate
	for _, g := range groups {
		if space.GroupSize > 0 && len(g.Members) >= space.GroupSize {
			continue
		}
		cands = append(cands, candidate{name: g.Name, members: len(g.Members), empty: len(g.Members) == 0})
	}
	if space.GroupMod == 0 || len(groups) < space.GroupMod {
		cands = append(cands, candidate{name: fmt.Sprintf("%s.%d", space.Name, len(groups)), members: 0, empty: true})
	}
	if len(cands) == 0 {
		return "", false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].empty != cands[j].empty {
			return cands[i].empty
		}
		return cands[i].members < cands[j].members
	})
	return cands[0].name, true
}

// maybeMarkEmpty sets configstatus=empty and drainstatus=drained once an
// fsid's remaining file count reaches zero (§4.6).
func (d *Drainer) maybeMarkEmpty(fsid uint32) {
	if d.NS.CountFilesOnFs(fsid) > 0 {
		return
	}
	fs, ok := d.View.Snapshot(fsid)
	if !ok {
		return
	}
	fs.ConfigStatus = "empty"
	fs.DrainStatus = "drained"
	_ = d.View.StoreFsConfig(fs)
}

func (d *Drainer) pruneInFlight() {
	if d.Converter == nil {
		return
	}
	live := d.Converter.InFlight()
	for _, fid := range d.Tracker.Keys() {
		if _, ok := live[fid]; !ok {
			d.Tracker.Forget(fid)
		}
	}
}
