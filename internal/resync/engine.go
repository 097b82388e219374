package resync

import (
	"bytes"
	"context"

	"github.com/eoscore/metacore/internal/fmd"
	"github.com/eoscore/metacore/internal/mgmproto"
)

// Syncing tracks, per fsid, whether a resync sweep is in flight; while true
// get_inconsistency_statistics must report all-zero counters (§4.4).
type Syncing struct {
	set map[uint32]bool
}

func NewSyncing() *Syncing { return &Syncing{set: make(map[uint32]bool)} }

func (s *Syncing) Mark(fsid uint32)   { s.set[fsid] = true }
func (s *Syncing) Clear(fsid uint32)  { delete(s.set, fsid) }
func (s *Syncing) Is(fsid uint32) bool { return s.set[fsid] }

// Engine ties the FMD store to an MGM transport, running the disk and MGM
// resync sweeps it exposes.
type Engine struct {
	Store     *fmd.Handler
	Transport mgmproto.Transport
	Xattr     XattrReader
	Syncing   *Syncing
}

func New(store *fmd.Handler, t mgmproto.Transport) *Engine {
	return &Engine{Store: store, Transport: t, Xattr: OSXattrReader, Syncing: NewSyncing()}
}

// DiskResync runs the disk sweep for fsid under mountPrefix.
func (e *Engine) DiskResync(fsid uint32, mountPrefix string, flagLayoutError bool) error {
	e.Syncing.Mark(fsid)
	defer e.Syncing.Clear(fsid)
	return DiskResync(e.Store, e.Xattr, fsid, mountPrefix, flagLayoutError)
}

// MgmResync runs the MGM sweep for fsid: reset_mgm, stream dumpmd, merge
// each record and recompute its LayoutError (§4.4 second sweep).
func (e *Engine) MgmResync(ctx context.Context, fsid uint32) error {
	e.Syncing.Mark(fsid)
	defer e.Syncing.Clear(fsid)

	if err := e.Store.ResetMgm(fsid); err != nil {
		return err
	}
	opaque := mgmproto.DumpMDQuery(fsid, "m")
	_, body, err := mgmproto.QueryWithRetry(ctx, e.Transport, opaque)
	if err != nil {
		return err
	}
	return mgmproto.DumpMDStream(bytes.NewReader(body), fsid, func(rec fmd.Record) error {
		rec.LayoutError = ClassifyLayoutError(fsid, rec.Lid, rec.Locations)
		existing, gerr := e.Store.CreateIfWritable(fmd.Record{Fid: rec.Fid, Fsid: fsid})
		if gerr != nil {
			return gerr
		}
		return e.Store.Put(mergeMgmFields(existing, rec))
	})
}

// mergeMgmFields layers rec's MGM-observed fields onto base, preserving
// base's disk-observed fields (Size/Checksum remain whichever sweep last
// ran; the two sweeps are composable and order-independent for fields they
// don't both touch).
func mergeMgmFields(base, mgm fmd.Record) fmd.Record {
	base.Fid = mgm.Fid
	base.Fsid = mgm.Fsid
	base.MgmSize = mgm.MgmSize
	base.MgmChecksum = mgm.MgmChecksum
	base.CTime = mgm.CTime
	base.MTime = mgm.MTime
	base.Lid = mgm.Lid
	base.Uid = mgm.Uid
	base.Gid = mgm.Gid
	base.Cid = mgm.Cid
	base.Locations = mgm.Locations
	base.LayoutError = mgm.LayoutError
	return base
}

// ResyncMgm (ResyncMgm in the design note) refreshes a single fid against
// the MGM via pcmd=getfmd. A "not found" MGM reply propagates as
// mgmproto.ErrNotFound after the local record's LayoutError is updated to
// reflect that the MGM no longer knows this fid (orphan-equivalent);
// transient statuses are retried once with a 1-second back-off by
// mgmproto.QueryWithRetry.
func (e *Engine) ResyncMgm(ctx context.Context, fsid uint32, fid uint64) error {
	opaque := mgmproto.GetFMDQuery(fid)
	_, body, err := mgmproto.QueryWithRetry(ctx, e.Transport, opaque)
	if err != nil {
		return err
	}
	env, perr := mgmproto.ParseGetFMDReply(string(body))
	if perr == mgmproto.ErrNotFound {
		if err := e.Store.ResetMgmOne(fsid, fid); err != nil {
			return err
		}
		if rec, gerr := e.Store.Get(fsid, fid, true); gerr == nil {
			rec.LayoutError = fmd.ErrOrphan
			if err := e.Store.Put(rec); err != nil {
				return err
			}
		}
		return mgmproto.ErrNotFound
	}
	if perr != nil {
		return perr
	}
	rec, rerr := mgmproto.RecordFromEnv(fsid, env)
	if rerr != nil {
		return rerr
	}
	rec.LayoutError = ClassifyLayoutError(fsid, rec.Lid, rec.Locations)
	existing, gerr := e.Store.CreateIfWritable(fmd.Record{Fid: fid, Fsid: fsid})
	if gerr != nil {
		return gerr
	}
	return e.Store.Put(mergeMgmFields(existing, rec))
}
