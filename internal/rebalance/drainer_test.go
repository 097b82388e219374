package rebalance

import (
	"context"
	"testing"
	"time"

	"github.com/eoscore/metacore/internal/fsview"
	"github.com/eoscore/metacore/internal/tracker"
	"github.com/eoscore/metacore/pkg/elog"
)

type fakeLister struct {
	byFs   map[uint32][]uint64
	counts map[uint32]int
}

func (f *fakeLister) ApproxRandomFidOnFs(fsid uint32) (uint64, bool) {
	fids := f.byFs[fsid]
	if len(fids) == 0 {
		return 0, false
	}
	return fids[0], true
}

func (f *fakeLister) CountFilesOnFs(fsid uint32) int {
	return f.counts[fsid]
}

func setupDrainSpace(t *testing.T) (*fsview.Handler, uint32) {
	t.Helper()
	view := fsview.New()
	view.DefineSpace(fsview.Space{Name: "default", GroupSize: 4})
	if err := view.Register(fsview.FileSystem{Fsid: 1, UUID: "u1", Queue: "/a", Host: "h1", Space: "default", Group: "draining", Online: true, DrainStatus: ""}); err != nil {
		t.Fatal(err)
	}
	if err := view.MoveToGroup(1, "draining"); err != nil {
		t.Fatal(err)
	}
	if g, _ := view.GroupSnapshot("draining"); g.Status != "on" {
		t.Fatalf("expected new group status on, got %q", g.Status)
	}
	return view, 1
}

func TestDrainerPicksEmptyDestinationOverNonEmpty(t *testing.T) {
	view, fsid := setupDrainSpace(t)
	view.Register(fsview.FileSystem{Fsid: 2, UUID: "u2", Queue: "/b", Host: "h2", Space: "default", Group: "partial"})

	ns := &fakeLister{byFs: map[uint32][]uint64{fsid: {7}}, counts: map[uint32]int{fsid: 1}}
	sink := &fakeSink{}
	d := &Drainer{
		View:    view,
		NS:      ns,
		Sink:    sink,
		Tracker: tracker.New(time.Hour, 2*time.Hour),
		Cfg:     DrainerConfig{Space: "default", Ntx: 1},
		Log:     elog.NewDiscardLogger(),
	}
	if err := d.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(sink.jobs) != 1 {
		t.Fatalf("expected one drain job, got %d", len(sink.jobs))
	}
	if sink.jobs[0].TargetGroup != "default.2" {
		t.Fatalf("expected destination to be the empty/fewest-members group, got %s", sink.jobs[0].TargetGroup)
	}
}

func TestDrainerOnJobFiresOnSubmit(t *testing.T) {
	view, fsid := setupDrainSpace(t)
	view.Register(fsview.FileSystem{Fsid: 2, UUID: "u2", Queue: "/b", Host: "h2", Space: "default", Group: "partial"})

	ns := &fakeLister{byFs: map[uint32][]uint64{fsid: {7}}, counts: map[uint32]int{fsid: 1}}
	sink := &fakeSink{}
	var jobs int
	d := &Drainer{
		View:    view,
		NS:      ns,
		Sink:    sink,
		Tracker: tracker.New(time.Hour, 2*time.Hour),
		Cfg:     DrainerConfig{Space: "default", Ntx: 1},
		Log:     elog.NewDiscardLogger(),
		OnJob:   func() { jobs++ },
	}
	if err := d.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if jobs != len(sink.jobs) {
		t.Fatalf("expected OnJob to fire once per submitted job, got %d calls for %d jobs", jobs, len(sink.jobs))
	}
}

func TestDrainerMarksFsEmptyWhenExhausted(t *testing.T) {
	view, fsid := setupDrainSpace(t)
	view.Register(fsview.FileSystem{Fsid: 2, UUID: "u2", Queue: "/b", Host: "h2", Space: "default", Group: "dest"})

	ns := &fakeLister{byFs: map[uint32][]uint64{fsid: {7}}, counts: map[uint32]int{fsid: 0}}
	sink := &fakeSink{}
	d := &Drainer{
		View:    view,
		NS:      ns,
		Sink:    sink,
		Tracker: tracker.New(time.Hour, 2*time.Hour),
		Cfg:     DrainerConfig{Space: "default", Ntx: 1},
		Log:     elog.NewDiscardLogger(),
	}
	if err := d.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	fs, _ := view.Snapshot(fsid)
	if fs.ConfigStatus != "empty" || fs.DrainStatus != "drained" {
		t.Fatalf("expected fs marked empty/drained, got %+v", fs)
	}
}

func TestDrainerSkipsGroupsAtGroupSize(t *testing.T) {
	view := fsview.New()
	view.DefineSpace(fsview.Space{Name: "default", GroupSize: 1})
	view.Register(fsview.FileSystem{Fsid: 1, UUID: "u1", Queue: "/a", Host: "h1", Space: "default", Group: "full", Online: true})
	view.Register(fsview.FileSystem{Fsid: 2, UUID: "u2", Queue: "/b", Host: "h2", Space: "default", Group: "full2"})

	ns := &fakeLister{byFs: map[uint32][]uint64{1: {7}}, counts: map[uint32]int{1: 1}}
	sink := &fakeSink{}
	d := &Drainer{
		View:    view,
		NS:      ns,
		Sink:    sink,
		Tracker: tracker.New(time.Hour, 2*time.Hour),
		Cfg:     DrainerConfig{Space: "default", Ntx: 1},
		Log:     elog.NewDiscardLogger(),
	}
	if err := d.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(sink.jobs) != 1 {
		t.Fatalf("expected one job")
	}
	if sink.jobs[0].TargetGroup == "full" || sink.jobs[0].TargetGroup == "full2" {
		t.Fatalf("expected destination group not at groupsize limit, got %s", sink.jobs[0].TargetGroup)
	}
}
