// Package rebalance implements the group balancer and group drainer (C6):
// two schedulers sharing one machinery, each emitting conversion jobs that
// a separate converter subsystem consumes from a well-known proc path
// (§4.6).
package rebalance

import "fmt"

// MaxPickAttempts bounds how many times a scheduler retries picking a
// filesystem or file before giving up on a cycle slot, grounded on the
// original random-fid picker's bounded-attempt behavior (§11).
const MaxPickAttempts = 16

// ConversionJob is the logical record inserted under the proc/conversion
// path for the converter subsystem to pick up.
type ConversionJob struct {
	Fid         uint64
	TargetGroup string
	Lid         uint32
	Reason      string // supplemented: non-empty only in dry-run logs
}

// ProcPath renders the conversion job's well-known path,
// "…/proc/conversion/{fxid:016x}:{group}#{lid:08x}" (§6.4).
func ProcPath(job ConversionJob) string {
	return fmt.Sprintf("proc/conversion/%016x:%s#%08x", job.Fid, job.TargetGroup, job.Lid)
}

// ConversionSink accepts conversion jobs for the converter subsystem to
// drain; dry-run callers skip this entirely and only log.
type ConversionSink interface {
	Submit(job ConversionJob) error
}

// NamespaceReader is the subset of the namespace the balancer/drainer
// consume to pick candidate files.
type NamespaceReader interface {
	// ApproxRandomFidOnFs returns an arbitrary fid currently placed on fsid,
	// or ok=false if fsid has no (reachable) files.
	ApproxRandomFidOnFs(fsid uint32) (fid uint64, ok bool)
}

// ConverterTracker reports which fids the converter subsystem still has
// in flight, polled once per cycle to prune the scheduler's own Tracker.
type ConverterTracker interface {
	InFlight() map[uint64]struct{}
}
