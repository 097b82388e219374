// Package fstd wires the FST-side components (C2, C3, C4) into one daemon:
// the per-fsid FMD store, the resync engine's disk/MGM sweeps, the
// fsnotify watcher that triggers between sweeps, and the opaque-query HTTP
// surface the MGM and other FSTs reach it through.
package fstd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eoscore/metacore/internal/config"
	"github.com/eoscore/metacore/internal/fmd"
	"github.com/eoscore/metacore/internal/metrics"
	"github.com/eoscore/metacore/internal/mgmproto"
	"github.com/eoscore/metacore/internal/resync"
	"github.com/eoscore/metacore/internal/symkey"
	"github.com/eoscore/metacore/pkg/elog"
)

// Daemon wires every FST-side component into one runnable unit.
type Daemon struct {
	Cfg *config.FstdConfig
	Log *elog.Logger

	Keys  *symkey.Store
	Store *fmd.Handler
	Sync  *resync.Engine

	Metrics *metrics.FstdCollector

	watchers []*resync.Watcher
	httpSrv  *http.Server
}

// New wires a Daemon from cfg: opens the FMD store directory, installs the
// shared key, and opens every configured filesystem's shard.
func New(cfg *config.FstdConfig, log *elog.Logger) (*Daemon, error) {
	keys := symkey.NewStore()
	if cfg.Global.SymKeyFile != "" {
		raw, err := os.ReadFile(cfg.Global.SymKeyFile)
		if err != nil {
			return nil, fmt.Errorf("fstd: reading sym key file: %w", err)
		}
		if _, err := keys.SetKey(string(raw), 0); err != nil {
			return nil, fmt.Errorf("fstd: installing sym key: %w", err)
		}
	}

	store := fmd.New(cfg.Global.FmdDir)
	for name, fs := range cfg.Filesystem {
		if err := store.Open(fs.Fsid); err != nil {
			return nil, fmt.Errorf("fstd: opening shard for filesystem %q (fsid=%d): %w", name, fs.Fsid, err)
		}
	}

	transport := mgmproto.HTTPTransport{BaseURL: "http://" + cfg.Global.MgmHostPort}
	engine := resync.New(store, transport)

	return &Daemon{
		Cfg:     cfg,
		Log:     log,
		Keys:    keys,
		Store:   store,
		Sync:    engine,
		Metrics: metrics.NewFstdCollector(),
	}, nil
}

// Serve runs the watcher goroutines, an optional startup resync sweep per
// filesystem, and the HTTP surface, blocking until ctx is cancelled.
func (d *Daemon) Serve(ctx context.Context) error {
	var wg sync.WaitGroup

	for name, fs := range d.Cfg.Filesystem {
		w, err := resync.NewWatcher(fs.MountPrefix, d.Log)
		if err != nil {
			return fmt.Errorf("fstd: watching filesystem %q: %w", name, err)
		}
		d.watchers = append(d.watchers, w)

		if d.Cfg.Global.ResyncOnStart {
			fsid := fs.Fsid
			prefix := fs.MountPrefix
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := d.Sync.DiskResync(fsid, prefix, d.Cfg.Global.FlagLayoutError); err != nil && d.Log != nil {
					d.Log.Errorf("fstd: startup disk resync fsid=%d: %v", fsid, err)
				} else if d.Metrics != nil {
					d.Metrics.AddDiskResync()
				}
			}()
		}

		stop := make(chan struct{})
		fsid := fs.Fsid
		prefix := fs.MountPrefix
		watcher := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			watcher.Run(stop, func(fid uint64) {
				if err := d.Sync.ResyncMgm(ctx, fsid, fid); err != nil && d.Log != nil {
					d.Log.Warnf("fstd: watcher-triggered resync fsid=%d fid=%x: %v", fsid, fid, err)
					return
				}
				if d.Metrics != nil {
					d.Metrics.AddWatcherHit()
				}
			})
		}()
		go func() {
			<-ctx.Done()
			close(stop)
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			d.runBalancePull(ctx, fsid, prefix)
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/opaque", d.handleOpaque)
	reg := prometheus.NewRegistry()
	reg.MustRegister(d.Metrics)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	d.httpSrv = &http.Server{Addr: d.Cfg.Global.ListenAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- d.httpSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed && d.Log != nil {
			d.Log.Errorf("fstd: http server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = d.httpSrv.Shutdown(shutdownCtx)
	for _, w := range d.watchers {
		_ = w.Close()
	}
	wg.Wait()
	return nil
}
