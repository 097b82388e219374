// Package fsck implements the MGM-side FSCK collector and repair scheduler
// (C5): a periodic broadcast to every FST, the resulting per-error-class fid
// sets, the show_offline/zero_replica cross-checks, and the repair
// dispatcher that turns a stale error map into bounded repair work.
package fsck

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ErrorMap is eFsMap: err_tag -> fsid -> set of fids, the collector's
// running result for one cycle.
type ErrorMap struct {
	mtx sync.Mutex
	m   map[string]map[uint32]map[uint64]struct{}
}

// NewErrorMap returns an empty ErrorMap.
func NewErrorMap() *ErrorMap {
	return &ErrorMap{m: make(map[string]map[uint32]map[uint64]struct{})}
}

// Add records fid as belonging to err_tag on fsid.
func (e *ErrorMap) Add(errTag string, fsid uint32, fid uint64) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.addLocked(errTag, fsid, fid)
}

func (e *ErrorMap) addLocked(errTag string, fsid uint32, fid uint64) {
	byFsid, ok := e.m[errTag]
	if !ok {
		byFsid = make(map[uint32]map[uint64]struct{})
		e.m[errTag] = byFsid
	}
	fids, ok := byFsid[fsid]
	if !ok {
		fids = make(map[uint64]struct{})
		byFsid[fsid] = fids
	}
	fids[fid] = struct{}{}
}

// MergeLine parses one FST reply line ("err_tag=fsid:fid1,fid2,...") and
// folds it into the map. Malformed lines are ignored, matching the
// collector's tolerance for partial/garbled broadcast replies.
func (e *ErrorMap) MergeLine(line string) error {
	errTag, fsid, fids, err := ParseReplyLine(line)
	if err != nil {
		return err
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()
	for _, f := range fids {
		e.addLocked(errTag, fsid, f)
	}
	return nil
}

// ParseReplyLine decodes one "err_tag=fsid:fid1,fid2,..." reply line.
func ParseReplyLine(line string) (errTag string, fsid uint32, fids []uint64, err error) {
	line = strings.TrimSpace(line)
	tagAndRest := strings.SplitN(line, "=", 2)
	if len(tagAndRest) != 2 {
		return "", 0, nil, fmt.Errorf("fsck: malformed reply line %q", line)
	}
	errTag = tagAndRest[0]
	fsidAndFids := strings.SplitN(tagAndRest[1], ":", 2)
	if len(fsidAndFids) != 2 {
		return "", 0, nil, fmt.Errorf("fsck: malformed reply line %q", line)
	}
	n, err := strconv.ParseUint(fsidAndFids[0], 10, 32)
	if err != nil {
		return "", 0, nil, fmt.Errorf("fsck: bad fsid in reply line %q: %w", line, err)
	}
	fsid = uint32(n)
	if fsidAndFids[1] == "" {
		return errTag, fsid, nil, nil
	}
	for _, tok := range strings.Split(fsidAndFids[1], ",") {
		fid, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return "", 0, nil, fmt.Errorf("fsck: bad fid %q in reply line %q: %w", tok, line, err)
		}
		fids = append(fids, fid)
	}
	return errTag, fsid, fids, nil
}

// Tags returns the err_tag keys currently present.
func (e *ErrorMap) Tags() []string {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	out := make([]string, 0, len(e.m))
	for t := range e.m {
		out = append(out, t)
	}
	return out
}

// Fsids returns the fsids recorded under errTag.
func (e *ErrorMap) Fsids(errTag string) []uint32 {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	byFsid := e.m[errTag]
	out := make([]uint32, 0, len(byFsid))
	for fsid := range byFsid {
		out = append(out, fsid)
	}
	return out
}

// Fids returns the fids recorded under (errTag, fsid).
func (e *ErrorMap) Fids(errTag string, fsid uint32) []uint64 {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	out := make([]uint64, 0, len(e.m[errTag][fsid]))
	for fid := range e.m[errTag][fsid] {
		out = append(out, fid)
	}
	return out
}

// Walk calls f once per (errTag, fsid, fid) entry currently in the map.
func (e *ErrorMap) Walk(f func(errTag string, fsid uint32, fid uint64)) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	for errTag, byFsid := range e.m {
		for fsid, fids := range byFsid {
			for fid := range fids {
				f(errTag, fsid, fid)
			}
		}
	}
}

// Count returns the total number of (errTag, fsid, fid) entries.
func (e *ErrorMap) Count() int {
	n := 0
	e.Walk(func(string, uint32, uint64) { n++ })
	return n
}
