package mgmd

import (
	"context"
	"fmt"

	"github.com/eoscore/metacore/internal/fileid"
	"github.com/eoscore/metacore/internal/fsck"
	"github.com/eoscore/metacore/internal/fsview"
	"github.com/eoscore/metacore/internal/mgmproto"
)

// FSTRepairer implements fsck.Repairer by issuing the pcmd=rewrite
// auto-repair trigger against the FST that owns a RepairJob's fsid.
type FSTRepairer struct {
	View *fsview.Handler
	Dial func(fs fsview.FileSystem) mgmproto.Transport
}

// Repair implements fsck.Repairer.
func (r FSTRepairer) Repair(ctx context.Context, job fsck.RepairJob) error {
	fs, ok := r.View.Snapshot(job.Fsid)
	if !ok {
		return fmt.Errorf("mgmd: repair: fsid %d not registered", job.Fsid)
	}
	t := r.Dial(fs)
	opaque := mgmproto.RewriteQuery(fileid.ToHex(job.Fid))
	_, body, err := mgmproto.QueryWithRetry(ctx, t, opaque)
	if err != nil {
		return err
	}
	if mgmproto.IsError(string(body)) {
		return fmt.Errorf("mgmd: repair fid=%d fsid=%d: %s", job.Fid, job.Fsid, body)
	}
	return nil
}
