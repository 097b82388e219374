// Package balance implements the balance transfer scheduler (C7): a pull
// endpoint an FST calls when it wants work, answered with a pair of sealed
// capabilities describing a source-to-target file replication (§4.7).
package balance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eoscore/metacore/internal/fmd"
	"github.com/eoscore/metacore/internal/fsview"
	"github.com/eoscore/metacore/internal/symkey"
	"github.com/eoscore/metacore/internal/tracker"
	"github.com/eoscore/metacore/pkg/elog"
)

// MaxPickAttempts bounds retries picking a candidate file on a source fs
// before giving up the cycle slot, matching rebalance.MaxPickAttempts.
const MaxPickAttempts = 16

// DefaultCapabilityTTL is how long the minted source/target capabilities
// remain valid (generous relative to a balance transfer's expected runtime).
const DefaultCapabilityTTL = 4 * time.Hour

var (
	ErrUnauthorized = errors.New("balance: sss/local auth rejected")
	ErrUnknownFs    = errors.New("balance: target fsid not registered")
)

// FileRecord is the namespace-side metadata the scheduler needs about a
// transfer candidate.
type FileRecord struct {
	Fid         uint64
	Size        uint64
	Lid         fmd.Lid
	ContainerID uint64
	Path        string
	UID, GID    uint32
	Locations   []uint32
}

// Namespace is what the scheduler consumes to pick and validate candidate
// files (§4.7 step 4).
type Namespace interface {
	// NumFilesOnFs bounds the attempt loop in step 4.
	NumFilesOnFs(fsid uint32) int
	// ApproxRandomFidOnFs returns an arbitrary fid placed on fsid.
	ApproxRandomFidOnFs(fsid uint32) (fid uint64, ok bool)
	// FileRecord fetches full metadata for fid, taken without holding the
	// namespace lock across the call (§4.7 step 4b).
	FileRecord(fid uint64) (FileRecord, bool)
}

// AuthChecker validates the sss/local credential an FST presents with its
// pull request (§4.7 step 1).
type AuthChecker interface {
	Authorized(ctx context.Context) bool
}

// Job is the outcome of a successful schedule: two sealed capability
// envelopes and the xrootd URL pair handed to the target fs's balance queue
// (§4.7 step 6).
type Job struct {
	Fid       uint64
	SourceFs  uint32
	TargetFs  uint32
	SourceURL string
	TargetURL string
	SourceCap symkey.Env
	TargetCap symkey.Env
}

// Scheduler implements the pull endpoint.
type Scheduler struct {
	View    *fsview.Handler
	NS      Namespace
	Auth    AuthChecker
	Keys    *symkey.Store
	Tracker *tracker.Tracker
	Log     *elog.Logger

	ManagerHostPort string
	CapabilityTTL   time.Duration

	cursors map[string]int // group -> next round-robin source index, instance-local (§9)
}

// NewScheduler wires a Scheduler with its round-robin cursor map ready.
func NewScheduler(view *fsview.Handler, ns Namespace, auth AuthChecker, keys *symkey.Store, tr *tracker.Tracker) *Scheduler {
	return &Scheduler{
		View:          view,
		NS:            ns,
		Auth:          auth,
		Keys:          keys,
		Tracker:       tr,
		CapabilityTTL: DefaultCapabilityTTL,
		cursors:       make(map[string]int),
	}
}

// Schedule answers one pull request from target fsid T with freebytes free.
// It returns (Job{}, reason, nil) on any cold path per §4.7's empty-body
// contract; reason is retained only for operator debugging (§11) and never
// crosses the wire verbatim.
func (s *Scheduler) Schedule(ctx context.Context, target uint32, freeBytes uint64) (Job, string, error) {
	if s.Auth != nil && !s.Auth.Authorized(ctx) {
		return Job{}, "", ErrUnauthorized
	}

	tgt, ok := s.View.Snapshot(target)
	if !ok {
		return Job{}, "", ErrUnknownFs
	}
	group, ok := s.View.GroupSnapshot(tgt.Group)
	if !ok || len(group.Members) == 0 {
		return s.cold(target, "fs-view cache cold: no group members")
	}

	src, ok := s.pickSource(group, target)
	if !ok {
		return s.cold(target, "no eligible source fs")
	}

	fid, rec, ok := s.pickCandidateFile(src, target, freeBytes)
	if !ok {
		return s.cold(target, "no eligible candidate file")
	}

	job, err := s.mintJob(fid, rec, src, tgt)
	if err != nil {
		return s.cold(target, fmt.Sprintf("capability mint failed: %v", err))
	}

	s.Tracker.Seen(fid)
	return job, "submitted", nil
}

// cold logs reason for operator debugging and returns the empty-body
// contract the wire protocol expects on any cold path (§4.7 step 7, §11).
func (s *Scheduler) cold(target uint32, reason string) (Job, string, error) {
	if s.Log != nil {
		s.Log.Debugf("balance: schedule target=%d: %s", target, reason)
	}
	return Job{}, reason, nil
}

// pickSource walks group.Members starting at the group's round-robin
// cursor, rejecting fs that are not booted, not RW, in error state, or
// offline, and never the target itself (§4.7 step 3). A candidate's fill
// level is not checked.
func (s *Scheduler) pickSource(group fsview.Group, target uint32) (fsview.FileSystem, bool) {
	n := len(group.Members)
	if n == 0 {
		return fsview.FileSystem{}, false
	}
	start := s.cursors[group.Name]
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		fsid := group.Members[idx]
		if fsid == target {
			continue
		}
		fs, ok := s.View.Snapshot(fsid)
		if !ok {
			continue
		}
		if !fs.Booted || !fs.RW || !fs.Online || fs.ErrorState {
			continue
		}
		s.cursors[group.Name] = (idx + 1) % n
		return fs, true
	}
	return fsview.FileSystem{}, false
}

// pickCandidateFile tries up to NumFilesOnFs(src) random fids on src,
// rejecting ones already on target, already tracked, zero-size, or too big
// for target's free space (§4.7 step 4).
func (s *Scheduler) pickCandidateFile(src fsview.FileSystem, target uint32, freeBytes uint64) (uint64, FileRecord, bool) {
	attempts := s.NS.NumFilesOnFs(src.Fsid)
	if attempts <= 0 {
		return 0, FileRecord{}, false
	}
	if attempts > MaxPickAttempts {
		attempts = MaxPickAttempts
	}
	for i := 0; i < attempts; i++ {
		fid, ok := s.NS.ApproxRandomFidOnFs(src.Fsid)
		if !ok {
			continue
		}
		rec, ok := s.NS.FileRecord(fid)
		if !ok {
			continue
		}
		if onFs(rec.Locations, target) {
			continue
		}
		if s.Tracker.Seen(fid) {
			continue
		}
		if rec.Size == 0 || rec.Size > freeBytes {
			s.Tracker.Forget(fid)
			continue
		}
		return fid, rec, true
	}
	return 0, FileRecord{}, false
}

func onFs(locations []uint32, fsid uint32) bool {
	for _, l := range locations {
		if l == fsid {
			return true
		}
	}
	return false
}

// mintJob builds source/target capabilities and the replicate URL pair
// (§4.7 steps 5-6).
func (s *Scheduler) mintJob(fid uint64, rec FileRecord, src, tgt fsview.FileSystem) (Job, error) {
	key, ok := s.Keys.CurrentKey()
	if !ok {
		return Job{}, symkey.ErrNoCurrentKey
	}

	lid := transferLid(rec.Lid)

	srcEnv := symkey.Env{
		"access":         "read",
		"fid":            fmt.Sprintf("%d", fid),
		"cid":            fmt.Sprintf("%d", rec.ContainerID),
		"lid":            fmt.Sprintf("%d", uint32(lid)),
		"drainfsid":      fmt.Sprintf("%d", src.Fsid),
		"localprefix":    src.Queue,
		"fsid":           fmt.Sprintf("%d", src.Fsid),
		"sourcehostport": hostPort(src),
		"path":           rec.Path,
		"mgm.manager":    s.ManagerHostPort,
	}
	tgtEnv := symkey.Env{
		"access":         "write",
		"fid":            fmt.Sprintf("%d", fid),
		"cid":            fmt.Sprintf("%d", rec.ContainerID),
		"lid":            fmt.Sprintf("%d", uint32(lid)),
		"targethostport": hostPort(tgt),
		"bookingsize":    fmt.Sprintf("%d", rec.Size),
		"source.lid":     fmt.Sprintf("%d", uint32(rec.Lid)),
		"source.ruid":    fmt.Sprintf("%d", rec.UID),
		"source.rgid":    fmt.Sprintf("%d", rec.GID),
		"path":           rec.Path,
		"mgm.manager":    s.ManagerHostPort,
	}

	srcCap, err := s.Keys.CreateCapability(srcEnv, key, s.capabilityTTL())
	if err != nil {
		return Job{}, err
	}
	tgtCap, err := s.Keys.CreateCapability(tgtEnv, key, s.capabilityTTL())
	if err != nil {
		return Job{}, err
	}

	fxid := fmt.Sprintf("%016x", fid)
	return Job{
		Fid:       fid,
		SourceFs:  src.Fsid,
		TargetFs:  tgt.Fsid,
		SourceURL: fmt.Sprintf("root://%s//replicate:%s", src.Host, fxid),
		TargetURL: fmt.Sprintf("root://%s//replicate:%s", tgt.Host, fxid),
		SourceCap: srcCap,
		TargetCap: tgtCap,
	}, nil
}

// transferLid forces the transfer layout's block-checksum to none (and, for
// erasure layouts, the whole-file checksum too) so a single-stripe pull
// never compares a stripe checksum to the whole-file checksum (§4.7 step 5).
func transferLid(lid fmd.Lid) fmd.Lid {
	if lid.IsErasure() {
		return lid.WithChecksumKind(fmd.ChecksumNone, fmd.ChecksumNone)
	}
	return lid.WithChecksumKind(lid.ChecksumKind(), fmd.ChecksumNone)
}

func hostPort(fs fsview.FileSystem) string {
	return fmt.Sprintf("%s:%d", fs.Host, fs.Port)
}

func (s *Scheduler) capabilityTTL() time.Duration {
	if s.CapabilityTTL > 0 {
		return s.CapabilityTTL
	}
	return DefaultCapabilityTTL
}
