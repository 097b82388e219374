package resync

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/eoscore/metacore/internal/fileid"
	"github.com/eoscore/metacore/pkg/elog"
)

// Watcher is the optional disk-resync trigger (§10 domain stack): it
// watches an fsid's mount prefix for create, rename and write events between full
// DiskResync sweeps, so a newly-written replica gets picked up without
// waiting for the next scheduled sweep. Grounded on the teacher's
// fsnotify-based WatchManager, trimmed to the one event kind this daemon
// needs (no follower/tailing machinery).
type Watcher struct {
	fsw    *fsnotify.Watcher
	prefix string
	log    *elog.Logger
}

// NewWatcher opens an fsnotify watch on prefix itself; the watch is not
// recursive, and subdirectories are only watched once added with AddDir.
func NewWatcher(prefix string, log *elog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(prefix); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{fsw: fsw, prefix: prefix, log: log}, nil
}

// AddDir extends the watch to an additional subdirectory (e.g. one of the
// replica layout's subindex directories).
func (w *Watcher) AddDir(dir string) error {
	return w.fsw.Add(dir)
}

// Close releases the underlying inotify/kqueue handle.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run drains events until stop is closed or the watcher closes, calling
// onFid for every fid implied by a create, rename or write event. Malformed names
// (non-fid files, dotfiles, ".xsmap" siblings) are silently skipped, same
// filter DiskResync applies during a full sweep.
func (w *Watcher) Run(stop <-chan struct{}, onFid func(fid uint64)) {
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			if fid, ok := fidFromEvent(ev.Name); ok {
				onFid(fid)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Warnf("resync: watcher error on %s: %v", w.prefix, err)
			}
		}
	}
}

func fidFromEvent(path string) (uint64, bool) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".xsmap") {
		return 0, false
	}
	fid, err := fileid.FromHex(name)
	if err != nil {
		return 0, false
	}
	return fid, true
}
