package resync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eoscore/metacore/internal/fmd"
)

type fakeXattr struct {
	attrs map[string]map[string][]byte
}

func (f *fakeXattr) Get(path, name string) ([]byte, error) {
	m, ok := f.attrs[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	v, ok := m[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return v, nil
}

func TestDiskResyncWalksAndSkipsNonReplicaFiles(t *testing.T) {
	root := t.TempDir()
	shard := filepath.Join(root, "00000000")
	if err := os.MkdirAll(shard, 0755); err != nil {
		t.Fatal(err)
	}

	replica := filepath.Join(shard, "0000002a")
	if err := os.WriteFile(replica, []byte("hello world"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(shard, "0000002a.xsmap"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(shard, ".hidden"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	xr := &fakeXattr{attrs: map[string]map[string][]byte{
		replica: {
			"user.eos.checksum":  []byte{0xde, 0xad},
			"user.eos.timestamp": []byte("1000000"),
		},
	}}

	store := fmd.New(t.TempDir())
	if err := store.Open(1); err != nil {
		t.Fatal(err)
	}
	defer store.Close(1)

	if err := DiskResync(store, xr, 1, root, true); err != nil {
		t.Fatalf("DiskResync: %v", err)
	}

	rec, err := store.Get(1, 0x2a, false)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Size != uint64(len("hello world")) {
		t.Fatalf("unexpected size: %d", rec.Size)
	}
	if rec.Checksum != "dead" {
		t.Fatalf("unexpected checksum: %q", rec.Checksum)
	}
	if rec.LayoutError != fmd.ErrOrphan {
		t.Fatalf("expected orphan flag, got %v", rec.LayoutError)
	}

	if ok, _ := store.Exists(1, 0); ok {
		t.Fatalf("xsmap/hidden files must not be treated as replicas")
	}
}
