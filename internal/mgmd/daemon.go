package mgmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eoscore/metacore/internal/authz"
	"github.com/eoscore/metacore/internal/balance"
	"github.com/eoscore/metacore/internal/config"
	"github.com/eoscore/metacore/internal/fsck"
	"github.com/eoscore/metacore/internal/fsview"
	"github.com/eoscore/metacore/internal/metrics"
	"github.com/eoscore/metacore/internal/mgmproto"
	"github.com/eoscore/metacore/internal/nsclient"
	"github.com/eoscore/metacore/internal/rebalance"
	"github.com/eoscore/metacore/internal/symkey"
	"github.com/eoscore/metacore/internal/tracker"
	"github.com/eoscore/metacore/pkg/elog"
)

// Daemon wires every MGM-side component into one runnable unit.
type Daemon struct {
	Cfg *config.MgmdConfig
	Log *elog.Logger

	Keys *symkey.Store
	View *fsview.Handler
	NS   *nsclient.Client

	Controller *fsck.Controller
	Scheduler  *balance.Scheduler
	Balancers  map[string]*rebalance.Balancer
	Drainers   map[string]*rebalance.Drainer

	Metrics *metrics.MgmdCollector

	httpSrv *http.Server
}

// New wires a Daemon from cfg, loading the shared key file and defining
// every configured space's placement policy and per-space balancer/drainer
// pair. It does not start any goroutines; call Serve for that.
func New(cfg *config.MgmdConfig, log *elog.Logger) (*Daemon, error) {
	keys := symkey.NewStore()
	if cfg.Global.SymKeyFile != "" {
		raw, err := os.ReadFile(cfg.Global.SymKeyFile)
		if err != nil {
			return nil, fmt.Errorf("mgmd: reading sym key file: %w", err)
		}
		if _, err := keys.SetKey(string(raw), 0); err != nil {
			return nil, fmt.Errorf("mgmd: installing sym key: %w", err)
		}
	}

	view := fsview.New()
	for name, sp := range cfg.Space {
		view.DefineSpace(fsview.Space{
			Name:       name,
			GroupSize:  sp.GroupSize,
			GroupMod:   sp.GroupMod,
			SchedGroup: sp.SchedGroup,
		})
	}

	ns := &nsclient.Client{
		Transport: mgmproto.HTTPTransport{BaseURL: cfg.Global.NamespaceAddr},
		Log:       log,
	}

	dial := func(fs fsview.FileSystem) mgmproto.Transport {
		return mgmproto.HTTPTransport{BaseURL: fmt.Sprintf("http://%s:%d", fs.Host, fs.Port)}
	}

	collector := &fsck.Collector{
		Broadcaster: &FanoutBroadcaster{View: view, Dial: dial, Log: log},
		View:        fsck.ViewAdapter{Handler: view, Namespace: ns},
		ShowOffline: cfg.Global.FsckShowOffline,
		Log:         log,
	}
	dispatcher, err := fsck.NewRepairDispatcher(FSTRepairer{View: view, Dial: dial}, cfg.Global.FsckMaxQueuedJobs, log)
	if err != nil {
		return nil, fmt.Errorf("mgmd: building repair dispatcher: %w", err)
	}
	controller := fsck.NewController(collector, dispatcher, cfg.Global.FsckWorkers, fsck.FileConfigStore{Path: cfg.Global.FsckStateFile}, log)
	mtr := metrics.NewMgmdCollector()
	controller.OnCycle = func(entries, scheduled int) {
		mtr.AddFsckCycle(entries)
		mtr.AddFsckRepairsScheduled(scheduled)
	}

	sched := balance.NewScheduler(view, ns, authz.SSSChecker{Keys: keys}, keys, tracker.New(balance.DefaultCapabilityTTL, 2*balance.DefaultCapabilityTTL))
	sched.ManagerHostPort = cfg.Global.ListenAddr
	sched.CapabilityTTL = cfg.BalanceCapabilityTTL(balance.DefaultCapabilityTTL)
	sched.Log = log

	isMaster := func() bool { return cfg.Global.Master }
	converterOn := func() bool { return true }

	balancers := make(map[string]*rebalance.Balancer)
	drainers := make(map[string]*rebalance.Drainer)
	for name := range cfg.Space {
		balancers[name] = &rebalance.Balancer{
			View:        view,
			NS:          ns,
			Sink:        nil,
			Tracker:     tracker.New(10*time.Minute, 2*time.Hour),
			Cfg:         rebalance.BalancerConfig{Space: name, Threshold: cfg.Global.RebalanceThreshold, Ntx: cfg.Global.RebalanceNtx, DryRun: true},
			Log:         log,
			IsMaster:    isMaster,
			ConverterOn: converterOn,
			OnJob:       mtr.AddRebalanceJob,
		}
		drainers[name] = &rebalance.Drainer{
			View:        view,
			NS:          ns,
			Sink:        nil,
			Tracker:     tracker.New(10*time.Minute, 2*time.Hour),
			Cfg:         rebalance.DrainerConfig{Space: name, Ntx: cfg.Global.DrainNtx, DryRun: true},
			Log:         log,
			IsMaster:    isMaster,
			ConverterOn: converterOn,
			OnJob:       mtr.AddDrainJob,
		}
	}

	return &Daemon{
		Cfg:        cfg,
		Log:        log,
		Keys:       keys,
		View:       view,
		NS:         ns,
		Controller: controller,
		Scheduler:  sched,
		Balancers:  balancers,
		Drainers:   drainers,
		Metrics:    mtr,
	}, nil
}

// WireConversionSink installs the converter subsystem's queue as the
// destination for conversion jobs once it is available; until this is
// called the balancer/drainer run in log-only mode (equivalent to
// DryRun), since there is nowhere to submit a real job (§4.6, §1
// Non-goals: the converter subsystem itself is external).
func (d *Daemon) WireConversionSink(sink rebalance.ConversionSink) {
	for _, b := range d.Balancers {
		b.Sink = sink
		b.Cfg.DryRun = false
	}
	for _, dr := range d.Drainers {
		dr.Sink = sink
		dr.Cfg.DryRun = false
	}
}

// Serve starts the per-space rebalance/drain cycles and the HTTP surface
// (opaque-query-style balance pull endpoint, fsck admin endpoints,
// /metrics), blocking until ctx is cancelled.
func (d *Daemon) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for name, b := range d.Balancers {
		wg.Add(1)
		go d.runCycleLoop(ctx, &wg, fmt.Sprintf("rebalance[%s]", name), b.RunCycle)
	}
	for name, dr := range d.Drainers {
		wg.Add(1)
		go d.runCycleLoop(ctx, &wg, fmt.Sprintf("drain[%s]", name), dr.RunCycle)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/opaque", d.handleOpaque)
	mux.HandleFunc("/balance/schedule", d.handleBalanceSchedule)
	mux.HandleFunc("/fsck/enable", d.handleFsckEnable)
	mux.HandleFunc("/fsck/disable", d.handleFsckDisable)
	mux.HandleFunc("/fsck/state", d.handleFsckState)
	reg := prometheus.NewRegistry()
	reg.MustRegister(d.Metrics)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	d.httpSrv = &http.Server{Addr: d.Cfg.Global.ListenAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- d.httpSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			d.Log.Errorf("mgmd: http server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = d.httpSrv.Shutdown(shutdownCtx)
	wg.Wait()
	return nil
}

// runCycleLoop drives a rebalance/drain RunCycle every
// rebalance.DefaultCycleInterval until ctx is cancelled.
func (d *Daemon) runCycleLoop(ctx context.Context, wg *sync.WaitGroup, name string, run func(context.Context) error) {
	defer wg.Done()
	ticker := time.NewTicker(rebalance.DefaultCycleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := run(ctx); err != nil && d.Log != nil {
				d.Log.Warnf("mgmd: %s cycle failed: %v", name, err)
			}
		}
	}
}
