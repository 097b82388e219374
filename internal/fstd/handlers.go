package fstd

import (
	"fmt"
	"io"
	"net/http"

	"github.com/eoscore/metacore/internal/fileid"
	"github.com/eoscore/metacore/internal/resync"
)

// handleOpaque answers the opaque-query surface the MGM and other FSTs
// reach this node through: cmd=fsck (the broadcast collector's per-cycle
// poll, §4.5) and pcmd=rewrite (the dispatcher's single-file repair
// trigger, §4.5). pcmd=getxattr is part of the wire vocabulary but has no
// caller yet (no component needs a raw xattr read); it replies ENOTSUP
// rather than silently dropping the request.
func (d *Daemon) handleOpaque(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("cmd") == "fsck" {
		d.handleFsckBroadcast(w, r)
		return
	}
	switch q.Get("pcmd") {
	case "rewrite":
		d.handleRewrite(w, r)
	case "getxattr":
		io.WriteString(w, "ERROR: ENOTSUP\n")
	default:
		http.Error(w, "ERROR: unknown opaque command", http.StatusBadRequest)
	}
}

// handleFsckBroadcast renders get_inconsistency_statistics for every
// locally-open fsid as one "err_tag=fsid:fid1,fid2,..." line per non-empty
// class (§4.5), the reply the collector's ErrorMap.MergeLine expects.
func (d *Daemon) handleFsckBroadcast(w http.ResponseWriter, r *http.Request) {
	var lines []string
	for _, fsid := range d.Store.OpenFsids() {
		stats, err := d.Sync.Stats(fsid)
		if err != nil {
			if d.Log != nil {
				d.Log.Warnf("fstd: fsck stats fsid=%d: %v", fsid, err)
			}
			continue
		}
		lines = append(lines, resync.RenderFsckReply(fsid, stats)...)
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

// handleRewrite triggers the auto-repair action for a fxid the dispatcher
// flagged: a forced MGM resync of the record, which re-pulls the
// authoritative size/checksum/location and clears whatever disagreement
// the fsck cycle flagged. The physical data-plane rewrite the original
// fxid_t::Repair() performs belongs to another subsystem (see
// fsck.RepairJob's doc comment) and is out of scope here.
func (d *Daemon) handleRewrite(w http.ResponseWriter, r *http.Request) {
	fxid := r.URL.Query().Get("fxid")
	fid, err := fileid.FromHex(fxid)
	if err != nil {
		fmt.Fprintf(w, "ERROR: bad fxid %q\n", fxid)
		return
	}

	var found bool
	for _, fsid := range d.Store.OpenFsids() {
		if _, err := d.Store.Get(fsid, fid, true); err != nil {
			continue
		}
		found = true
		if err := d.Sync.ResyncMgm(r.Context(), fsid, fid); err != nil {
			fmt.Fprintf(w, "ERROR: rewrite fid=%d fsid=%d: %v\n", fid, fsid, err)
			return
		}
		if d.Metrics != nil {
			d.Metrics.AddMgmResync()
		}
		break
	}
	if !found {
		fmt.Fprintf(w, "ERROR: fid=%d not hosted here\n", fid)
		return
	}
	io.WriteString(w, "rewrite: retc=0\n")
}
