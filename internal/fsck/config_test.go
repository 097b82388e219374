package fsck

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFileConfigStoreRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "fsck.conf")
	store := FileConfigStore{Path: p}
	if err := store.SaveFsckState(true, 45*time.Minute); err != nil {
		t.Fatalf("SaveFsckState: %v", err)
	}

	enabled, interval, err := LoadFsckState(p)
	if err != nil {
		t.Fatalf("LoadFsckState: %v", err)
	}
	if !enabled || interval != 45*time.Minute {
		t.Fatalf("unexpected round trip: enabled=%v interval=%v", enabled, interval)
	}
}

func TestLoadFsckStateMissingFile(t *testing.T) {
	enabled, interval, err := LoadFsckState(filepath.Join(t.TempDir(), "missing.conf"))
	if err != nil {
		t.Fatalf("expected missing file to be treated as disabled default, got err=%v", err)
	}
	if enabled || interval != DefaultInterval {
		t.Fatalf("unexpected defaults: enabled=%v interval=%v", enabled, interval)
	}
}
