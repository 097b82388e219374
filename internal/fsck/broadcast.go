package fsck

import (
	"context"
	"time"
)

// Broadcaster issues an opaque query to every FST's receiver queue and
// gathers whatever reply lines arrive on the per-cycle reply queue before
// timeout elapses. A timeout is not an error: the broadcast call returns
// whatever lines it collected and the collector logs a warning and moves on
// (§4.5 failure semantics).
type Broadcaster interface {
	Broadcast(ctx context.Context, opaque string, timeout time.Duration) ([]string, error)
}
