// Package app wires the component graph and owns its lifecycle. The graph
// is constructed once at startup and passed down explicitly; there is no
// process-wide mutable state outside of it.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"statusninja/internal/auth"
	"statusninja/internal/bot"
	"statusninja/internal/config"
	"statusninja/internal/monitor"
	"statusninja/internal/notify"
	"statusninja/internal/registry"
	"statusninja/internal/server"
	"statusninja/internal/storage"
	"statusninja/internal/transport"
	"statusninja/internal/transport/telegram"
	logx "statusninja/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store      storage.Store
	adapter    *telegram.Adapter
	registry   *registry.Service
	guard      *auth.Guard
	dispatcher *notify.Dispatcher
	sweeper    *monitor.Sweeper
	router     *bot.Router
	server     *server.Server
	cron       *cron.Cron
	schedule   string

	updates   chan transport.Update
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// New loads the config at cfgPath and constructs the full component graph.
// Nothing is started; call Start.
func New(cfgPath string) (*App, error) {
	cfgMgr := config.NewManager(cfgPath)
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logCfg(cfg))
	cfgMgr.SetLogger(log.With(logx.String("comp", "config")))

	// Runtime-applied settings: logging only. Everything else takes
	// effect on the next restart.
	cfgMgr.OnReload(func(c *config.Config) {
		logSvc.Apply(logCfg(c))
	})

	busyTimeout, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	probeTimeout, err := config.ParseDurationOrDefault("monitor.probe_timeout", cfg.Monitor.ProbeTimeout, 10*time.Second)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	reg := registry.New(store, log.With(logx.String("comp", "registry")))
	guard := auth.NewGuard(store, adapter, log.With(logx.String("comp", "auth")))
	dispatcher := notify.NewDispatcher(notify.Config{
		RatePerSec: cfg.Monitor.NotifyRatePerSec,
	}, adapter, log.With(logx.String("comp", "notify")))

	prober := monitor.NewProber(monitor.ProberConfig{
		Timeout:   probeTimeout,
		UserAgent: cfg.Monitor.UserAgent,
	}, log.With(logx.String("comp", "prober")))
	resolver := monitor.NewResolver(store, log.With(logx.String("comp", "resolver")))
	sweeper := monitor.NewSweeper(store, prober, resolver, dispatcher, log.With(logx.String("comp", "sweeper")))

	router := bot.NewRouter(reg, guard, dispatcher, log.With(logx.String("comp", "router")))
	srv := server.New(server.Config{
		Addr:     cfg.Server.Addr,
		APIToken: cfg.Server.APIToken,
	}, reg, sweeper, log.With(logx.String("comp", "http")))

	return &App{
		cfgMgr:     cfgMgr,
		logSvc:     logSvc,
		log:        log,
		store:      store,
		adapter:    adapter,
		registry:   reg,
		guard:      guard,
		dispatcher: dispatcher,
		sweeper:    sweeper,
		router:     router,
		server:     srv,
		schedule:   cfg.Monitor.ScheduleOrDefault(),
	}, nil
}

// Logger returns the root logger for the process entry point.
func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel

	a.updates = make(chan transport.Update, 128)
	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.router.Run(runCtx, a.updates)
	}()

	// Scheduled sweeps. Each tick detaches onto the run context so a slow
	// sweep never blocks the cron loop; overlapping sweeps are harmless
	// because the store is the single source of truth.
	a.cron = cron.New()
	if _, err := a.cron.AddFunc(a.schedule, func() {
		go a.sweeper.RunSweep(runCtx)
	}); err != nil {
		cancel()
		return fmt.Errorf("invalid monitor.schedule %q: %w", a.schedule, err)
	}
	a.cron.Start()

	if err := a.server.Start(runCtx); err != nil {
		cancel()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgMgr.Watch(runCtx); err != nil && runCtx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	a.log.Info("started", logx.String("schedule", a.schedule))
	return nil
}

// Stop shuts the graph down in reverse dependency order. The context bounds
// how long Stop waits for in-flight work.
func (a *App) Stop(ctx context.Context) error {
	if a.runCancel != nil {
		a.runCancel()
	}
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	if a.server != nil {
		_ = a.server.Stop(ctx)
	}
	if a.adapter != nil {
		_ = a.adapter.Stop(ctx)
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("stopped")
	if a.logSvc != nil {
		_ = a.logSvc.Close()
	}
	return nil
}

func logCfg(c *config.Config) logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
	}
}
