package fsck

import (
	"context"
	"sync"
	"time"

	"github.com/eoscore/metacore/internal/jobqueue"
	"github.com/eoscore/metacore/internal/tracker"
	"github.com/eoscore/metacore/pkg/elog"
)

// Default repair Tracker TTL/GC (§5): the TTL must exceed one collector
// cycle period plus expected repair latency; the GC horizon bounds how
// long a never-retried fid lingers in memory.
const (
	DefaultTrackerTTL = 10 * time.Minute
	DefaultTrackerGC  = 2 * time.Hour
)

// RepairJob is one scheduled repair: the error class that flagged fid on
// fsid. The actual repair routine (FsckEntry::Repair() in the original) is
// owned by another subsystem; fsck only schedules it (§4.5).
type RepairJob struct {
	ErrTag string
	Fsid   uint32
	Fid    uint64
}

// Repairer performs the single-file repair a RepairJob names. A failure is
// not retried by the dispatcher itself - the job's fid simply falls out of
// the Tracker and gets re-queued the next time the collector reports it
// (§4.5 failure semantics).
type Repairer interface {
	Repair(ctx context.Context, job RepairJob) error
}

// RepairDispatcher walks an ErrorMap and schedules one RepairJob per
// not-yet-tracked (err_tag, fsid, fid) onto a bounded queue, throttled by a
// Tracker with a TTL that must outlive one collector cycle plus expected
// repair latency (default 10 min TTL, 2 h GC per §5).
type RepairDispatcher struct {
	Queue    *jobqueue.Queue
	Tracker  *tracker.Tracker
	Repairer Repairer
	Log      *elog.Logger
}

// NewRepairDispatcher wires a Tracker (ttl/gc per §5) and a bounded
// jobqueue.Queue (maxQueuedJobs, no disk spillover - repair jobs are
// re-derived from the next collector cycle, not persisted) around r.
func NewRepairDispatcher(r Repairer, maxQueuedJobs int, log *elog.Logger) (*RepairDispatcher, error) {
	q, err := jobqueue.NewQueue(maxQueuedJobs, "", 0)
	if err != nil {
		return nil, err
	}
	return &RepairDispatcher{
		Queue:    q,
		Tracker:  tracker.New(DefaultTrackerTTL, DefaultTrackerGC),
		Repairer: r,
		Log:      log,
	}, nil
}

// Dispatch walks em and enqueues one job per fid not already within its
// Tracker TTL window. The dispatcher blocks (queue saturation, §4.5) once
// in-flight jobs exceed the queue's configured depth.
func (d *RepairDispatcher) Dispatch(em *ErrorMap) (scheduled int) {
	em.Walk(func(errTag string, fsid uint32, fid uint64) {
		if d.Tracker.Seen(fid) {
			return
		}
		d.Queue.In <- RepairJob{ErrTag: errTag, Fsid: fsid, Fid: fid}
		scheduled++
	})
	return
}

// RepairNow bypasses the Tracker throttle for a single manually-requested
// fid (the operator-facing "fsck repair <fxid>" trigger, §4.5 supplement).
func (d *RepairDispatcher) RepairNow(ctx context.Context, job RepairJob) error {
	d.Tracker.Forget(job.Fid)
	return d.Repairer.Repair(ctx, job)
}

// StartWorkers launches n goroutines draining the queue and invoking
// Repairer with ctx, returning once Queue.Out closes (i.e. after a caller
// calls d.Queue.Shutdown()). Failures are logged at error level and
// otherwise swallowed, per the propagation rule: the fid stays in the
// Tracker until its TTL lapses, after which a later cycle schedules it
// again. The returned channel
// closes once every worker has exited.
func (d *RepairDispatcher) StartWorkers(ctx context.Context, n int) <-chan struct{} {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			for job := range d.Queue.Out {
				rj, ok := job.(RepairJob)
				if !ok {
					continue
				}
				if err := d.Repairer.Repair(ctx, rj); err != nil && d.Log != nil {
					d.Log.Errorf("fsck: repair fid=%d fsid=%d err_tag=%s failed: %v", rj.Fid, rj.Fsid, rj.ErrTag, err)
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}
