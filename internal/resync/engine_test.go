package resync

import (
	"context"
	"testing"

	"github.com/eoscore/metacore/internal/fmd"
	"github.com/eoscore/metacore/internal/mgmproto"
)

type fakeTransport struct {
	status int
	body   string
}

func (f *fakeTransport) Query(ctx context.Context, opaque string) (int, []byte, error) {
	return f.status, []byte(f.body), nil
}

func TestEngineMgmResyncMergesAndClassifies(t *testing.T) {
	store := fmd.New(t.TempDir())
	if err := store.Open(1); err != nil {
		t.Fatal(err)
	}
	defer store.Close(1)

	line := "id=42&cid=1&ctime=1&ctime_ns=0&mtime=1&mtime_ns=0&size=10&checksum=aa&lid=0&uid=0&gid=0&location=1"
	tr := &fakeTransport{status: 0, body: line}
	e := New(store, tr)

	if err := e.MgmResync(context.Background(), 1); err != nil {
		t.Fatalf("MgmResync: %v", err)
	}

	rec, err := store.Get(1, 42, true)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.MgmSize != 10 {
		t.Fatalf("unexpected mgm size: %d", rec.MgmSize)
	}
	if rec.LayoutError != fmd.ErrOrphan {
		t.Fatalf("expected orphan (lid=0), got %v", rec.LayoutError)
	}
}

func TestEngineResyncMgmNotFoundResetsLocal(t *testing.T) {
	store := fmd.New(t.TempDir())
	if err := store.Open(1); err != nil {
		t.Fatal(err)
	}
	defer store.Close(1)
	if err := store.Put(fmd.Record{Fid: 7, Fsid: 1, MgmSize: 10, Locations: "1,2"}); err != nil {
		t.Fatal(err)
	}

	tr := &fakeTransport{status: 0, body: "getfmd: retc=2 id=7"}
	e := New(store, tr)
	if err := e.ResyncMgm(context.Background(), 1, 7); err != mgmproto.ErrNotFound {
		t.Fatalf("expected mgmproto.ErrNotFound, got %v", err)
	}
	rec, err := store.Get(1, 7, true)
	if err != nil {
		t.Fatal(err)
	}
	if rec.MgmSize != fmd.Undef || rec.Locations != "" {
		t.Fatalf("expected mgm fields reset, got %+v", rec)
	}
}

func TestEngineResyncMgmFound(t *testing.T) {
	store := fmd.New(t.TempDir())
	if err := store.Open(1); err != nil {
		t.Fatal(err)
	}
	defer store.Close(1)

	reply := "getfmd: retc=0 " + mgmproto.Env{
		"id": "9", "cid": "1", "ctime": "1", "ctime_ns": "0", "mtime": "1", "mtime_ns": "0",
		"size": "5", "checksum": "aa", "lid": "1", "uid": "0", "gid": "0", "location": "1",
	}.Encode()
	tr := &fakeTransport{status: 0, body: reply}
	e := New(store, tr)
	if err := e.ResyncMgm(context.Background(), 1, 9); err != nil {
		t.Fatalf("ResyncMgm: %v", err)
	}
	rec, err := store.Get(1, 9, true)
	if err != nil {
		t.Fatal(err)
	}
	if rec.MgmSize != 5 {
		t.Fatalf("unexpected mgm size: %d", rec.MgmSize)
	}
}

func TestStatsZeroWhileSyncing(t *testing.T) {
	store := fmd.New(t.TempDir())
	if err := store.Open(1); err != nil {
		t.Fatal(err)
	}
	defer store.Close(1)
	if err := store.Put(fmd.Record{Fid: 1, Fsid: 1, DiskSize: fmd.Undef, MgmSize: fmd.Undef}); err != nil {
		t.Fatal(err)
	}

	e := New(store, &fakeTransport{})
	e.Syncing.Mark(1)
	stats, err := e.Stats(1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.MemN != 0 {
		t.Fatalf("expected all-zero stats while syncing, got %+v", stats)
	}

	e.Syncing.Clear(1)
	stats, err = e.Stats(1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.MemN != 1 || stats.DSyncN != 1 || stats.MSyncN != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
