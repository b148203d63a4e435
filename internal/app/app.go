package app

import (
	"context"
	"sync"
	"time"

	"github.com/felitouuuu/Naruto-sub000/internal/commands"
	"github.com/felitouuuu/Naruto-sub000/internal/config"
	"github.com/felitouuuu/Naruto-sub000/internal/monitor"
	"github.com/felitouuuu/Naruto-sub000/internal/pricefeed"
	"github.com/felitouuuu/Naruto-sub000/internal/storage"
	kit "github.com/felitouuuu/Naruto-sub000/internal/transport"
	telegram "github.com/felitouuuu/Naruto-sub000/internal/transport/telegram"
	logx "github.com/felitouuuu/Naruto-sub000/pkg/logx"
)

// App owns the wiring and lifecycle of all services.
type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	adapter *telegram.Adapter
	mon     *monitor.Service
	router  *commands.Router

	updates chan kit.Update

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	feedTimeout, err := config.ParseDurationOrDefault("pricefeed.timeout", cfg.Pricefeed.Timeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	prices := pricefeed.NewClient(pricefeed.Config{
		BaseURL: cfg.Pricefeed.BaseURL,
		Timeout: feedTimeout,
	}, log.With(logx.String("comp", "pricefeed")))

	chartTTL, err := config.ParseDurationOrDefault("pricefeed.chart_cache_ttl", cfg.Pricefeed.ChartCacheTTL, 2*time.Minute)
	if err != nil {
		return nil, err
	}
	charts := pricefeed.NewChartCache(prices, chartTTL)

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	pollPeriod, err := config.ParseDurationOrDefault("monitor.poll_period", cfg.Monitor.PollPeriod, time.Minute)
	if err != nil {
		return nil, err
	}
	mon := monitor.New(monitor.Config{
		Enabled:    cfg.Monitor.Enabled,
		PollPeriod: pollPeriod,
		RatePerSec: cfg.Monitor.RatePerSec,
	},
		store,
		prices,
		monitor.AdapterResolver{Adapter: adapter},
		monitor.AdapterSink{Adapter: adapter},
		log.With(logx.String("comp", "monitor")),
	)

	router := commands.NewRouter(adapter, store, prices, charts, adapter.BotName(),
		log.With(logx.String("comp", "commands")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		adapter: adapter,
		mon:     mon,
		router:  router,
		updates: make(chan kit.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.router.Run(runCtx, a.updates)
	}()

	a.mon.Start(runCtx)

	// Hot-reload: the watcher republishes validated config changes; only the
	// logging section is applied at runtime.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch unavailable", logx.Err(err))
		}
	}()
	sub := a.cfgm.Subscribe(1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(mapLoggingConfig(cfg))
				a.log.Info("logging config applied", logx.String("level", cfg.Logging.Level))
			}
		}
	}()

	a.log.Info("started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	a.mon.Stop(ctx)
	_ = a.adapter.Stop(ctx)

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
	_ = a.logs.Close()
	return nil
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}
