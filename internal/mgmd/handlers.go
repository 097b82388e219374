package mgmd

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eoscore/metacore/internal/authz"
	"github.com/eoscore/metacore/internal/balance"
	"github.com/eoscore/metacore/internal/fsck"
	"github.com/eoscore/metacore/internal/mgmproto"
)

// handleBalanceSchedule answers the pull request an FST issues when it
// wants balance work: "I am target fsid=T with freebytes free" (§4.7).
// On any cold path it writes an empty body, per the wire contract; the
// reason Schedule returns is logged but never written to the response.
func (d *Daemon) handleBalanceSchedule(w http.ResponseWriter, r *http.Request) {
	fsid, err := strconv.ParseUint(r.URL.Query().Get("fsid"), 10, 32)
	if err != nil {
		http.Error(w, "bad fsid", http.StatusBadRequest)
		return
	}
	freeBytes, _ := strconv.ParseUint(r.URL.Query().Get("freebytes"), 10, 64)

	ctx := authz.WithToken(r.Context(), r.Header.Get("X-Sss-Token"))
	job, _, err := d.Scheduler.Schedule(ctx, uint32(fsid), freeBytes)
	if err != nil {
		if d.Metrics != nil {
			d.Metrics.AddBalanceCold()
		}
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	if job.Fid == 0 {
		if d.Metrics != nil {
			d.Metrics.AddBalanceCold()
		}
		w.WriteHeader(http.StatusOK)
		return
	}
	if d.Metrics != nil {
		d.Metrics.AddBalanceJob()
	}
	w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
	_, _ = w.Write([]byte("source=" + job.SourceURL + "&target=" + job.TargetURL +
		"&" + job.SourceCap.Encode() + "&" + job.TargetCap.Encode()))
}

// handleOpaque answers the FST resync engine's MGM-facing queries
// (pcmd=getfmd, pcmd=dumpmd, §4.4): mgmd has no metadata store of its own
// for these, so it translates them into the namespace-facing FileRecord
// lookups nsclient already carries.
func (d *Daemon) handleOpaque(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch q.Get("pcmd") {
	case "getfmd":
		d.handleGetFMD(w, r)
	case "dumpmd":
		d.handleDumpMD(w, r)
	default:
		http.Error(w, "ERROR: unknown opaque command", http.StatusBadRequest)
	}
}

// handleGetFMD answers "pcmd=getfmd&fid=<n>" with "getfmd: retc=0 <env>" or
// "getfmd: retc=2 id=<n>" when the namespace has no record for fid,
// matching mgmproto.ParseGetFMDReply's expected reply shape.
func (d *Daemon) handleGetFMD(w http.ResponseWriter, r *http.Request) {
	fid, err := strconv.ParseUint(r.URL.Query().Get("fid"), 10, 64)
	if err != nil {
		fmt.Fprintf(w, "ERROR: bad fid\n")
		return
	}
	fr, ok := d.NS.FileRecord(fid)
	if !ok {
		fmt.Fprintf(w, "getfmd: retc=2 id=%d\n", fid)
		return
	}
	fmt.Fprintf(w, "getfmd: retc=0 %s\n", recordEnv(fr).Encode())
}

// handleDumpMD answers "pcmd=dumpmd&fsid=<n>&option=m" by streaming one
// env-encoded record per line, one per fid the namespace lists for fsid,
// matching mgmproto.DumpMDStream's expected input.
func (d *Daemon) handleDumpMD(w http.ResponseWriter, r *http.Request) {
	fsid, err := strconv.ParseUint(r.URL.Query().Get("fsid"), 10, 32)
	if err != nil {
		fmt.Fprintf(w, "ERROR: bad fsid\n")
		return
	}
	out, closeOut := mgmproto.CompressedWriter(w, r.Header.Get("Accept-Encoding"))
	defer closeOut()

	d.NS.FidsOnFilesystem(uint32(fsid), func(fid uint64) bool {
		fr, ok := d.NS.FileRecord(fid)
		if !ok {
			return true
		}
		fmt.Fprintln(out, recordEnv(fr).Encode())
		return true
	})
}

// recordEnv renders a namespace FileRecord into the env shape
// mgmproto.RecordFromEnv decodes on the FST side (§4.4's required dumpmd
// keys). ctime/mtime/checksum are not part of the namespace's FileRecord
// view and are left zero/empty; the FST's disk-side observation is what
// actually populates them once a resync records the reply.
func recordEnv(fr balance.FileRecord) mgmproto.Env {
	locs := make([]string, len(fr.Locations))
	for i, l := range fr.Locations {
		locs[i] = strconv.FormatUint(uint64(l), 10)
	}
	return mgmproto.Env{
		"id":       strconv.FormatUint(fr.Fid, 10),
		"cid":      strconv.FormatUint(fr.ContainerID, 10),
		"ctime":    "0",
		"ctime_ns": "0",
		"mtime":    "0",
		"mtime_ns": "0",
		"size":     strconv.FormatUint(fr.Size, 10),
		"checksum": "",
		"lid":      strconv.FormatUint(uint64(fr.Lid), 10),
		"uid":      strconv.FormatUint(uint64(fr.UID), 10),
		"gid":      strconv.FormatUint(uint64(fr.GID), 10),
		"location": strings.Join(locs, ","),
	}
}

// handleFsckEnable implements the operator "fsck enable [interval]" command.
func (d *Daemon) handleFsckEnable(w http.ResponseWriter, r *http.Request) {
	interval := fsck.DefaultInterval
	if raw := r.URL.Query().Get("interval"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			interval = parsed
		}
	}
	if err := d.Controller.Enable(context.Background(), interval); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleFsckDisable implements the operator "fsck disable" command.
func (d *Daemon) handleFsckDisable(w http.ResponseWriter, r *http.Request) {
	if err := d.Controller.Disable(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleFsckState reports the controller's current state/interval.
func (d *Daemon) handleFsckState(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(d.Controller.State().String() + " interval=" + d.Controller.Interval().String()))
}
