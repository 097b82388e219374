// Package mgmd wires the MGM-side components (C1, C5, C6, C7, C8) into one
// daemon: the fs-view façade, the FSCK controller/collector/dispatcher, the
// rebalancer and drainer, and the balance transfer scheduler, all fronted
// by a small opaque-query HTTP surface.
package mgmd

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/eoscore/metacore/internal/fsview"
	"github.com/eoscore/metacore/internal/mgmproto"
	"github.com/eoscore/metacore/pkg/elog"
)

// FanoutBroadcaster implements fsck.Broadcaster by querying every online FST
// registered in the fs-view concurrently and splitting whatever reply
// bodies arrive before timeout into their non-empty lines (§4.5 failure
// semantics: a straggler FST does not fail the whole cycle).
type FanoutBroadcaster struct {
	View *fsview.Handler
	Dial func(fs fsview.FileSystem) mgmproto.Transport
	Log  *elog.Logger
}

// Broadcast implements fsck.Broadcaster.
func (b *FanoutBroadcaster) Broadcast(ctx context.Context, opaque string, timeout time.Duration) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fsts := b.View.AllFilesystems()
	var mu sync.Mutex
	var lines []string
	var wg sync.WaitGroup

	for _, fs := range fsts {
		if !fs.Online {
			continue
		}
		fs := fs
		wg.Add(1)
		go func() {
			defer wg.Done()
			t := b.Dial(fs)
			_, body, err := t.Query(cctx, opaque)
			if err != nil {
				if b.Log != nil {
					b.Log.Debugf("fsck: broadcast to fsid=%d failed: %v", fs.Fsid, err)
				}
				return
			}
			mu.Lock()
			for _, line := range strings.Split(string(body), "\n") {
				if line = strings.TrimSpace(line); line != "" {
					lines = append(lines, line)
				}
			}
			mu.Unlock()
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
		return lines, nil
	case <-cctx.Done():
		return lines, cctx.Err()
	}
}
