package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	logx "github.com/felitouuuu/Naruto-sub000/pkg/logx"
)

// Service drives the periodic evaluation of all price subscriptions.
//
// Each instance owns its timer: Start() runs one tick immediately and then on
// the fixed poll period; Stop() cancels the pending timer. Instances are
// independent, so tests can run several side by side.
type Service struct {
	cfg      Config
	log      logx.Logger
	store    SubscriptionStore
	prices   PriceSource
	resolver Resolver
	sink     Sink

	// limiter paces successive deliveries within a tick so bursts do not trip
	// the chat platform's rate limits.
	limiter *rate.Limiter

	mu        sync.Mutex
	c         *cron.Cron
	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup

	// inTick guards against a slow tick overlapping the next timer firing.
	// A new tick is skipped, not queued.
	inTick atomic.Bool

	now func() time.Time // test hook
}

func New(cfg Config, store SubscriptionStore, prices PriceSource, resolver Resolver, sink Sink, log logx.Logger) *Service {
	if cfg.PollPeriod <= 0 {
		cfg.PollPeriod = time.Minute
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg,
		log:      log,
		store:    store,
		prices:   prices,
		resolver: resolver,
		sink:     sink,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		now:      time.Now,
	}
}

func (s *Service) Enabled() bool { return s.cfg.Enabled }

// Start begins the recurring tick. The first tick runs immediately.
func (s *Service) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("monitor disabled")
		return
	}

	s.mu.Lock()
	if s.c != nil {
		s.mu.Unlock()
		return
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	runCtx := s.runCtx

	c := cron.New()
	// @every keeps the fixed-period semantics: the next tick fires per the
	// timer, not per tick-completion.
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.PollPeriod), func() {
		s.runTick(runCtx)
	}); err != nil {
		s.mu.Unlock()
		s.log.Error("monitor schedule registration failed", logx.Err(err))
		return
	}
	s.c = c
	s.mu.Unlock()

	c.Start()
	s.log.Info("monitor started", logx.Duration("poll_period", s.cfg.PollPeriod))

	// Immediate first pass, off the caller's goroutine.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runTick(runCtx)
	}()
}

// Stop cancels the pending timer and waits for an in-flight tick to finish
// (bounded by ctx).
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.runCancel = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cronDone := c.Stop().Done()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		<-cronDone
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("monitor stopped")
	case <-ctx.Done():
		s.log.Warn("monitor stop timed out")
	}
}

// runTick is the loop-boundary wrapper around one tick: overlap guard plus
// panic containment. The tick itself can never fail observably.
func (s *Service) runTick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !s.inTick.CompareAndSwap(false, true) {
		s.log.Warn("previous tick still running; skipping")
		return
	}
	defer s.inTick.Store(false)

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in monitor tick", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()

	start := s.now()
	s.tick(ctx)
	s.log.Debug("tick finished", logx.Duration("took", s.now().Sub(start)))
}
