package fsck

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eoscore/metacore/pkg/elog"
)

// State is the FSCK on/off state machine (§4.5): DISABLED -> ENABLED on
// config change or operator command, toggled by a single writer.
type State int

const (
	Disabled State = iota
	Enabled
)

func (s State) String() string {
	if s == Enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// DefaultInterval is the collector's sleep between cycles.
const DefaultInterval = 30 * time.Minute

// ConfigStore persists enabled/interval across transitions (§4.5). Callers
// wire this to the daemon's shared config store (econfig-backed file, or a
// test double).
type ConfigStore interface {
	SaveFsckState(enabled bool, interval time.Duration) error
}

// Controller owns the DISABLED/ENABLED toggle and runs the collector and
// repair loops on cooperating goroutines while ENABLED. Only one goroutine
// (the one holding mtx during a transition) ever writes state - the
// "single-writer controller" of §4.5.
type Controller struct {
	mtx      sync.Mutex
	state    State
	interval time.Duration
	cfg      ConfigStore
	log      *elog.Logger

	collector  *Collector
	dispatcher *RepairDispatcher
	numWorkers int

	cancel context.CancelFunc
	done   chan struct{}

	// OnCycle, if set, is called after every collector cycle with the
	// error-map entry count and the number of repair jobs dispatched from
	// it, for callers that want per-cycle metrics.
	OnCycle func(entries, scheduled int)
}

// NewController creates a Controller in the DISABLED state.
func NewController(c *Collector, d *RepairDispatcher, numWorkers int, cfg ConfigStore, log *elog.Logger) *Controller {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Controller{
		state:      Disabled,
		interval:   DefaultInterval,
		cfg:        cfg,
		log:        log,
		collector:  c,
		dispatcher: d,
		numWorkers: numWorkers,
	}
}

// State reports the current state.
func (c *Controller) State() State {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.state
}

// Interval reports the configured collector sleep.
func (c *Controller) Interval() time.Duration {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.interval
}

// Enable transitions DISABLED -> ENABLED, persists the change, and starts
// the collector/repair loops. A no-op if already enabled.
func (c *Controller) Enable(ctx context.Context, interval time.Duration) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if interval <= 0 {
		interval = DefaultInterval
	}
	c.interval = interval
	if c.state == Enabled {
		return c.persistLocked()
	}
	c.state = Enabled
	if err := c.persistLocked(); err != nil {
		c.state = Disabled
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	workersDone := c.dispatcher.StartWorkers(loopCtx, c.numWorkers)
	go c.runLoop(loopCtx, workersDone)
	return nil
}

// Disable transitions ENABLED -> DISABLED, persists the change, and stops
// the loops, waiting for the collector loop and repair workers to fully
// drain before returning.
func (c *Controller) Disable() error {
	c.mtx.Lock()
	if c.state == Disabled {
		c.mtx.Unlock()
		return nil
	}
	c.state = Disabled
	cancel := c.cancel
	done := c.done
	err := c.persistLocked()
	c.mtx.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return err
}

func (c *Controller) persistLocked() error {
	if c.cfg == nil {
		return nil
	}
	return c.cfg.SaveFsckState(c.state == Enabled, c.interval)
}

// runLoop is the collector thread: sleep interval, broadcast+merge, signal
// the repair thread one cycle done, repeat, until ctx is cancelled. Once
// cancelled, it shuts the job queue down (no more Dispatch sends race
// against workers reading a closed Out) and waits for workers to drain
// before signaling done.
func (c *Controller) runLoop(ctx context.Context, workersDone <-chan struct{}) {
	defer func() {
		c.dispatcher.Queue.Shutdown()
		<-workersDone
		close(c.done)
	}()
	cycle := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
		cycle++
		replyQueue := fmt.Sprintf("fsck-cycle-%d", cycle)
		em := c.collector.RunCycle(ctx, replyQueue)
		scheduled := c.dispatcher.Dispatch(em)
		if c.log != nil {
			c.log.Infof("fsck: cycle %d scheduled %d repair jobs", cycle, scheduled)
		}
		if c.OnCycle != nil {
			c.OnCycle(em.Count(), scheduled)
		}
	}
}
