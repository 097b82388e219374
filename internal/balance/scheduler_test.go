package balance

import (
	"context"
	"testing"
	"time"

	"github.com/eoscore/metacore/internal/fmd"
	"github.com/eoscore/metacore/internal/fsview"
	"github.com/eoscore/metacore/internal/symkey"
	"github.com/eoscore/metacore/internal/tracker"
)

type fakeAuth struct{ ok bool }

func (a fakeAuth) Authorized(ctx context.Context) bool { return a.ok }

type fakeNamespace struct {
	filesOnFs map[uint32]int
	fids      map[uint32][]uint64
	records   map[uint64]FileRecord
}

func (n *fakeNamespace) NumFilesOnFs(fsid uint32) int { return n.filesOnFs[fsid] }

func (n *fakeNamespace) ApproxRandomFidOnFs(fsid uint32) (uint64, bool) {
	fids := n.fids[fsid]
	if len(fids) == 0 {
		return 0, false
	}
	return fids[0], true
}

func (n *fakeNamespace) FileRecord(fid uint64) (FileRecord, bool) {
	r, ok := n.records[fid]
	return r, ok
}

func setupScheduler(t *testing.T) (*Scheduler, *fsview.Handler) {
	t.Helper()
	view := fsview.New()
	view.DefineSpace(fsview.Space{Name: "default", GroupSize: 4})
	view.Register(fsview.FileSystem{Fsid: 1, UUID: "u1", Queue: "/a", Host: "fst01", Port: 1095, Space: "default", Group: "g1", Booted: true, RW: true, Online: true})
	view.Register(fsview.FileSystem{Fsid: 2, UUID: "u2", Queue: "/b", Host: "fst02", Port: 1095, Space: "default", Group: "g1", Booted: true, RW: true, Online: true})

	raw, err := symkey.SecureRandomKey()
	if err != nil {
		t.Fatalf("SecureRandomKey: %v", err)
	}
	keys := symkey.NewStore()
	if _, err := keys.SetKey(string(raw), 0); err != nil {
		t.Fatalf("SetKey: %v", err)
	}

	tr := tracker.New(time.Hour, 2*time.Hour)
	s := NewScheduler(view, nil, fakeAuth{ok: true}, keys, tr)
	s.ManagerHostPort = "mgm01:1094"
	return s, view
}

func TestScheduleHappyPath(t *testing.T) {
	s, _ := setupScheduler(t)
	lid := fmd.MakeLid(fmd.LayoutReplica, 2, fmd.ChecksumAdler, fmd.ChecksumAdler)
	ns := &fakeNamespace{
		filesOnFs: map[uint32]int{1: 5},
		fids:      map[uint32][]uint64{1: {100}},
		records: map[uint64]FileRecord{
			100: {Fid: 100, Size: 1024, Lid: lid, ContainerID: 7, Path: "/eos/x", Locations: []uint32{1}},
		},
	}
	s.NS = ns

	job, reason, err := s.Schedule(context.Background(), 2, 1<<30)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if reason != "submitted" {
		t.Fatalf("expected submitted, got %q", reason)
	}
	if job.SourceFs != 1 || job.TargetFs != 2 || job.Fid != 100 {
		t.Fatalf("unexpected job: %+v", job)
	}
	if job.SourceCap["access"] != "read" || job.TargetCap["access"] != "write" {
		t.Fatalf("unexpected capability envs: src=%v tgt=%v", job.SourceCap, job.TargetCap)
	}
	if job.SourceURL == "" || job.TargetURL == "" {
		t.Fatalf("expected non-empty replicate URLs")
	}
}

func TestScheduleRejectsUnauthorized(t *testing.T) {
	s, _ := setupScheduler(t)
	s.Auth = fakeAuth{ok: false}
	_, _, err := s.Schedule(context.Background(), 2, 1<<30)
	if err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestScheduleColdPathNoSource(t *testing.T) {
	view := fsview.New()
	view.DefineSpace(fsview.Space{Name: "default", GroupSize: 4})
	view.Register(fsview.FileSystem{Fsid: 2, UUID: "u2", Queue: "/b", Space: "default", Group: "g1", Booted: true, RW: true, Online: true})

	raw, err := symkey.SecureRandomKey()
	if err != nil {
		t.Fatalf("SecureRandomKey: %v", err)
	}
	keys := symkey.NewStore()
	if _, err := keys.SetKey(string(raw), 0); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	s := NewScheduler(view, &fakeNamespace{}, fakeAuth{ok: true}, keys, tracker.New(time.Hour, 2*time.Hour))

	job, reason, err := s.Schedule(context.Background(), 2, 1<<30)
	if err != nil {
		t.Fatalf("expected nil error on cold path, got %v", err)
	}
	if job.Fid != 0 || job.SourceFs != 0 || job.TargetFs != 0 {
		t.Fatalf("expected empty job, got %+v", job)
	}
	if reason == "" || reason == "submitted" {
		t.Fatalf("expected a cold-path reason, got %q", reason)
	}
}

func TestScheduleRejectsFileAlreadyOnTarget(t *testing.T) {
	s, _ := setupScheduler(t)
	lid := fmd.MakeLid(fmd.LayoutReplica, 2, fmd.ChecksumAdler, fmd.ChecksumAdler)
	ns := &fakeNamespace{
		filesOnFs: map[uint32]int{1: 1},
		fids:      map[uint32][]uint64{1: {100}},
		records: map[uint64]FileRecord{
			100: {Fid: 100, Size: 1024, Lid: lid, Locations: []uint32{1, 2}},
		},
	}
	s.NS = ns

	job, reason, err := s.Schedule(context.Background(), 2, 1<<30)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if job.Fid != 0 || reason != "no eligible candidate file" {
		t.Fatalf("expected no-candidate cold path, got job=%+v reason=%q", job, reason)
	}
}

func TestScheduleRejectsOversizedFile(t *testing.T) {
	s, _ := setupScheduler(t)
	lid := fmd.MakeLid(fmd.LayoutReplica, 2, fmd.ChecksumAdler, fmd.ChecksumAdler)
	ns := &fakeNamespace{
		filesOnFs: map[uint32]int{1: 1},
		fids:      map[uint32][]uint64{1: {100}},
		records: map[uint64]FileRecord{
			100: {Fid: 100, Size: 1 << 20, Lid: lid, Locations: []uint32{1}},
		},
	}
	s.NS = ns

	_, reason, err := s.Schedule(context.Background(), 2, 1<<10)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if reason != "no eligible candidate file" {
		t.Fatalf("expected oversized file rejected, got reason=%q", reason)
	}
}

func TestScheduleForcesChecksumNoneOnTransferLayout(t *testing.T) {
	lid := fmd.MakeLid(fmd.LayoutReplica, 2, fmd.ChecksumAdler, fmd.ChecksumAdler)
	out := transferLid(lid)
	if out.BlockChecksumKind() != fmd.ChecksumNone {
		t.Fatalf("expected block checksum forced to none, got %v", out.BlockChecksumKind())
	}
}

func TestSourceRoundRobinAdvancesCursor(t *testing.T) {
	s, view := setupScheduler(t)
	view.Register(fsview.FileSystem{Fsid: 3, UUID: "u3", Queue: "/c", Host: "fst03", Space: "default", Group: "g1", Booted: true, RW: true, Online: true})
	group, _ := view.GroupSnapshot("g1")

	first, ok := s.pickSource(group, 999)
	if !ok {
		t.Fatalf("expected a source")
	}
	second, ok := s.pickSource(group, 999)
	if !ok {
		t.Fatalf("expected a second source")
	}
	if first.Fsid == second.Fsid {
		t.Fatalf("expected round robin to advance, got same fsid twice: %d", first.Fsid)
	}
}
