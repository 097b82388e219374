package fsck

import (
	"context"
	"fmt"
	"time"

	"github.com/eoscore/metacore/internal/mgmproto"
	"github.com/eoscore/metacore/pkg/elog"
)

// BroadcastTimeout bounds one collector cycle's fan-out to the FSTs; a
// cycle that times out is not fatal (§4.5 failure semantics).
const BroadcastTimeout = 10 * time.Second

// Collector runs one FSCK collection cycle: broadcast cmd=fsck, merge
// replies into an ErrorMap, and, if ShowOffline is set, run the
// show_offline/zero_replica cross-checks against the fs-view.
type Collector struct {
	Broadcaster Broadcaster
	View        FsViewReader // nil disables show_offline/zero_replica
	ShowOffline bool
	Log         *elog.Logger
}

// RunCycle broadcasts one cmd=fsck query tagged with replyQueue, merges
// the replies into a fresh ErrorMap, and returns it. A broadcast timeout
// logs a warning and the cycle continues with whatever replies arrived.
func (c *Collector) RunCycle(ctx context.Context, replyQueue string) *ErrorMap {
	em := NewErrorMap()

	cctx, cancel := context.WithTimeout(ctx, BroadcastTimeout)
	defer cancel()
	lines, err := c.Broadcaster.Broadcast(cctx, mgmproto.FsckBroadcastQuery(replyQueue), BroadcastTimeout)
	if err != nil && c.Log != nil {
		c.Log.Warnf("fsck: broadcast cycle timed out or failed, continuing with partial replies: %v", err)
	}
	for _, line := range lines {
		if err := em.MergeLine(line); err != nil && c.Log != nil {
			c.Log.Debugf("fsck: %v", err)
		}
	}

	if c.ShowOffline && c.View != nil {
		ApplyShowOffline(em, c.View)
		ApplyZeroReplica(em, c.View)
	}

	if c.Log != nil {
		c.Log.Infof("fsck: collector cycle done, %d entries across %d classes", em.Count(), len(em.Tags()))
	}
	return em
}
