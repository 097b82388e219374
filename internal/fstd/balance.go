package fstd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"syscall"
	"time"
)

// freeBytes reports the free space available to an unprivileged writer on
// the filesystem mounted at path, the freebytes value a balance pull
// reports about itself (§4.7 step 1).
func freeBytes(path string) (uint64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, err
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}

// runBalancePull polls mgmd's balance-schedule endpoint for fsid on the
// configured interval until ctx is cancelled, the "FST calls the MGM
// periodically: I am target fsid=T with freebytes free" half of §4.7's
// pull model. A successful, non-empty reply names a source/target
// capability pair; actually driving the data-plane copy those capabilities
// authorize belongs to the transport layer (§1 Non-goals) and is only
// logged here.
func (d *Daemon) runBalancePull(ctx context.Context, fsid uint32, mountPrefix string) {
	interval := d.Cfg.PullInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pullOnce(ctx, fsid, mountPrefix)
		}
	}
}

func (d *Daemon) pullOnce(ctx context.Context, fsid uint32, mountPrefix string) {
	free, err := freeBytes(mountPrefix)
	if err != nil {
		if d.Log != nil {
			d.Log.Warnf("fstd: balance pull fsid=%d: statfs %s: %v", fsid, mountPrefix, err)
		}
		return
	}

	reqURL := fmt.Sprintf("http://%s/balance/schedule?fsid=%d&freebytes=%d", d.Cfg.Global.MgmHostPort, fsid, free)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if d.Log != nil {
			d.Log.Debugf("fstd: balance pull fsid=%d: %v", fsid, err)
		}
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return
	}

	var buf [4096]byte
	n, _ := resp.Body.Read(buf[:])
	if n == 0 {
		return
	}
	form, err := url.ParseQuery(string(buf[:n]))
	if err != nil || form.Get("source") == "" {
		return
	}
	if d.Log != nil {
		d.Log.Infof("fstd: balance pull fsid=%d: source=%s target=%s", fsid, form.Get("source"), form.Get("target"))
	}
}
