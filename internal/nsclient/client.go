// Package nsclient implements mgmd's RPC-facing adapter onto the
// hierarchical namespace (§1: "the in-memory or KV hierarchical namespace
// implementation itself" is out of scope, "treated as external
// collaborators via their interfaces only"). Client issues the same
// opaque-query/env protocol mgmproto already uses for FST<->MGM traffic,
// so the namespace operations the rebalancer, drainer, and balance
// scheduler consume (approximately_random_fid_on_fs, num_files_on_fs,
// FileRecord, LocationsOf, FidsOnFilesystem, ZeroReplicaFids) reach
// whatever process actually owns the namespace without mgmd knowing its
// storage format.
package nsclient

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/eoscore/metacore/internal/balance"
	"github.com/eoscore/metacore/internal/fmd"
	"github.com/eoscore/metacore/internal/mgmproto"
	"github.com/eoscore/metacore/pkg/elog"
)

// queryTimeout bounds one namespace RPC; the rebalancer/drainer/scheduler
// treat a timed-out or malformed reply the same as "no candidate found"
// (§4.6 step 5, §4.7 step 4), never as fatal.
const queryTimeout = 5 * time.Second

// Client adapts mgmproto.Transport into the namespace-facing interfaces
// rebalance.NamespaceReader, rebalance.NamespaceLister, and balance.Namespace.
type Client struct {
	Transport mgmproto.Transport
	Log       *elog.Logger
}

func (c *Client) query(opaque string) (mgmproto.Env, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	_, body, err := mgmproto.QueryWithRetry(ctx, c.Transport, opaque)
	if err != nil {
		if c.Log != nil {
			c.Log.Debugf("nsclient: query %q failed: %v", opaque, err)
		}
		return nil, false
	}
	env, err := mgmproto.DecodeEnv(string(body))
	if err != nil {
		return nil, false
	}
	return env, true
}

// ApproxRandomFidOnFs implements rebalance.NamespaceReader and balance.Namespace.
func (c *Client) ApproxRandomFidOnFs(fsid uint32) (uint64, bool) {
	env, ok := c.query(mgmproto.RandomFidQuery(fsid))
	if !ok || env["ok"] != "true" {
		return 0, false
	}
	fid, ok := env.Uint64("fid")
	return fid, ok
}

// NumFilesOnFs implements balance.Namespace.
func (c *Client) NumFilesOnFs(fsid uint32) int {
	env, ok := c.query(mgmproto.NumFilesQuery(fsid))
	if !ok {
		return 0
	}
	n, _ := env.Int64("n")
	return int(n)
}

// CountFilesOnFs implements rebalance.NamespaceLister; it is the same
// count as NumFilesOnFs under a name that matches the drainer's
// empty-detection use (§4.6).
func (c *Client) CountFilesOnFs(fsid uint32) int {
	return c.NumFilesOnFs(fsid)
}

// FileRecord implements balance.Namespace.
func (c *Client) FileRecord(fid uint64) (balance.FileRecord, bool) {
	env, ok := c.query(mgmproto.FileRecordQuery(fid))
	if !ok || env["ok"] != "true" {
		return balance.FileRecord{}, false
	}
	size, _ := env.Uint64("size")
	lid, _ := env.Uint32("lid")
	cid, _ := env.Uint64("cid")
	uid, _ := env.Uint32("uid")
	gid, _ := env.Uint32("gid")
	locs, _ := fmd.ParseLocations(env["locations"], 0)
	return balance.FileRecord{
		Fid:         fid,
		Size:        size,
		Lid:         fmd.Lid(lid),
		ContainerID: cid,
		Path:        env["path"],
		UID:         uid,
		GID:         gid,
		Locations:   locs,
	}, true
}

// LocationsOf implements fsck's namespace-side FsViewReader methods.
func (c *Client) LocationsOf(fid uint64) ([]uint32, int, int, bool) {
	env, ok := c.query(mgmproto.LocationsQuery(fid))
	if !ok || env["ok"] != "true" {
		return nil, 0, 0, false
	}
	ids, _ := fmd.ParseLocations(env["locations"], 0)
	stripeCount, _ := env.Int64("stripecount")
	parityStripes, _ := env.Int64("paritystripes")
	return ids, int(stripeCount), int(parityStripes), true
}

// FidsOnFilesystem implements fsck's FsViewReader enumeration, following
// the namespace's cursor page by page until yield returns false, the
// namespace reports done, or the cursor stops advancing.
func (c *Client) FidsOnFilesystem(fsid uint32, yield func(fid uint64) bool) {
	var cursor uint64
	for {
		env, ok := c.query(mgmproto.FidsOnFsQuery(fsid, cursor))
		if !ok {
			return
		}
		if !yieldFids(env, yield) {
			return
		}
		if env["done"] == "true" {
			return
		}
		next, ok := env.Uint64("cursor")
		if !ok || next == cursor {
			return
		}
		cursor = next
	}
}

// ZeroReplicaFids implements fsck's FsViewReader zero-replica namespace
// view iterator (§4.5).
func (c *Client) ZeroReplicaFids(yield func(fid uint64) bool) {
	var cursor uint64
	for {
		env, ok := c.query(mgmproto.ZeroReplicaQuery(cursor))
		if !ok {
			return
		}
		if !yieldFids(env, yield) {
			return
		}
		if env["done"] == "true" {
			return
		}
		next, ok := env.Uint64("cursor")
		if !ok || next == cursor {
			return
		}
		cursor = next
	}
}

func yieldFids(env mgmproto.Env, yield func(fid uint64) bool) bool {
	raw := env["fids"]
	if raw == "" {
		return true
	}
	for _, tok := range strings.Split(raw, ",") {
		if tok == "" {
			continue
		}
		fid, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			continue
		}
		if !yield(fid) {
			return false
		}
	}
	return true
}
