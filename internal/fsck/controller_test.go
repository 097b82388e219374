package fsck

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/eoscore/metacore/pkg/elog"
)

type fakeConfigStore struct {
	enabled  bool
	interval time.Duration
	calls    int
}

func (f *fakeConfigStore) SaveFsckState(enabled bool, interval time.Duration) error {
	f.enabled = enabled
	f.interval = interval
	f.calls++
	return nil
}

func TestControllerEnableDisablePersists(t *testing.T) {
	b := &fakeBroadcaster{}
	r := &fakeRepairer{}
	c := &Collector{Broadcaster: b, Log: elog.NewDiscardLogger()}
	d, err := NewRepairDispatcher(r, 4, elog.NewDiscardLogger())
	if err != nil {
		t.Fatalf("NewRepairDispatcher: %v", err)
	}
	cfg := &fakeConfigStore{}
	ctrl := NewController(c, d, 1, cfg, elog.NewDiscardLogger())

	if ctrl.State() != Disabled {
		t.Fatalf("expected initial state DISABLED")
	}

	if err := ctrl.Enable(context.Background(), 50*time.Millisecond); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if ctrl.State() != Enabled {
		t.Fatalf("expected ENABLED after Enable")
	}
	if !cfg.enabled || cfg.interval != 50*time.Millisecond {
		t.Fatalf("expected persisted state to reflect enable, got %+v", cfg)
	}

	time.Sleep(120 * time.Millisecond)

	if err := ctrl.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if ctrl.State() != Disabled {
		t.Fatalf("expected DISABLED after Disable")
	}
	if cfg.enabled {
		t.Fatalf("expected persisted state to reflect disable")
	}
}

func TestControllerEnableTwiceIsNoop(t *testing.T) {
	b := &fakeBroadcaster{}
	r := &fakeRepairer{}
	c := &Collector{Broadcaster: b, Log: elog.NewDiscardLogger()}
	d, _ := NewRepairDispatcher(r, 4, elog.NewDiscardLogger())
	cfg := &fakeConfigStore{}
	ctrl := NewController(c, d, 1, cfg, elog.NewDiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ctrl.Enable(ctx, time.Hour); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := ctrl.Enable(ctx, time.Hour); err != nil {
		t.Fatalf("Enable (again): %v", err)
	}
	if ctrl.State() != Enabled {
		t.Fatalf("expected still ENABLED")
	}
}

func TestControllerOnCycleFires(t *testing.T) {
	b := &fakeBroadcaster{lines: []string{"rep_diff_n=1:5"}}
	r := &fakeRepairer{}
	c := &Collector{Broadcaster: b, Log: elog.NewDiscardLogger()}
	d, _ := NewRepairDispatcher(r, 4, elog.NewDiscardLogger())
	cfg := &fakeConfigStore{}
	ctrl := NewController(c, d, 1, cfg, elog.NewDiscardLogger())

	var mu sync.Mutex
	var gotEntries, gotScheduled int
	ctrl.OnCycle = func(entries, scheduled int) {
		mu.Lock()
		defer mu.Unlock()
		gotEntries = entries
		gotScheduled = scheduled
	}

	if err := ctrl.Enable(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	defer ctrl.Disable()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if gotEntries == 0 {
		t.Fatalf("expected OnCycle to observe at least one entry")
	}
	if gotScheduled == 0 {
		t.Fatalf("expected OnCycle to observe at least one scheduled repair")
	}
}
