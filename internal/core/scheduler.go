package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type Poller interface {
	Poll(ctx context.Context) (PollResult, error)
}

type Drainer interface {
	ProcessNext(ctx context.Context) (bool, error)
}

type SchedulerConfig struct {
	PollInterval  time.Duration
	DrainInterval time.Duration
	PollTimeout   time.Duration
	DrainTimeout  time.Duration
}

// Scheduler runs the poll and drain activities on their own tickers. Each
// activity has at most one run in flight; a tick that finds a run still
// going is dropped.
type Scheduler struct {
	cfg     SchedulerConfig
	poller  Poller
	drainer Drainer
	logger  *zap.Logger

	pollSem  *semaphore.Weighted
	drainSem *semaphore.Weighted

	mu       sync.Mutex
	running  bool
	stopping bool
	cancel   context.CancelFunc
	loops    sync.WaitGroup
	runs     sync.WaitGroup
}

func NewScheduler(cfg SchedulerConfig, poller Poller, drainer Drainer, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = 5 * time.Second
	}
	return &Scheduler{
		cfg:      cfg,
		poller:   poller,
		drainer:  drainer,
		logger:   logger,
		pollSem:  semaphore.NewWeighted(1),
		drainSem: semaphore.NewWeighted(1),
	}
}

// Start polls once immediately, then keeps both tickers running until Stop
// is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	s.logger.Info("scheduler started",
		zap.Duration("poll_interval", s.cfg.PollInterval),
		zap.Duration("drain_interval", s.cfg.DrainInterval))

	s.PollOnce(ctx)

	s.loops.Add(2)
	go s.loop(ctx, s.cfg.PollInterval, s.PollOnce)
	go s.loop(ctx, s.cfg.DrainInterval, s.DrainOnce)
}

// Stop cancels the tickers and waits for in-flight runs to return. No new
// run starts while Stop is waiting.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.stopping = true
	s.cancel()
	s.mu.Unlock()

	s.loops.Wait()
	s.runs.Wait()

	s.mu.Lock()
	s.stopping = false
	s.mu.Unlock()
	s.logger.Info("scheduler stopped")
}

// beginRun reserves a slot on sem and registers the run with s.runs. It
// fails while Stop is waiting or when sem is taken.
func (s *Scheduler) beginRun(sem *semaphore.Weighted) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	if !sem.TryAcquire(1) {
		return false
	}
	s.runs.Add(1)
	return true
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, run func(context.Context) bool) {
	defer s.loops.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

// PollOnce starts a poll run unless one is in flight or the scheduler is
// stopping. It reports whether a run was started.
func (s *Scheduler) PollOnce(ctx context.Context) bool {
	if !s.beginRun(s.pollSem) {
		s.logger.Debug("skipping poll tick")
		return false
	}
	go func() {
		defer s.runs.Done()
		defer s.pollSem.Release(1)

		runCtx, cancel := withOptionalTimeout(ctx, s.cfg.PollTimeout)
		defer cancel()

		start := time.Now()
		result, err := s.poller.Poll(runCtx)
		if err != nil {
			s.logger.Error("order poll failed", zap.Duration("took", time.Since(start)), zap.Error(err))
			return
		}
		s.logger.Debug("order poll finished",
			zap.Duration("took", time.Since(start)),
			zap.Int("orders", result.Orders),
			zap.Int("queued", result.Queued))
	}()
	return true
}

// DrainOnce processes one queued job unless a drain is in flight or the
// scheduler is stopping.
func (s *Scheduler) DrainOnce(ctx context.Context) bool {
	if !s.beginRun(s.drainSem) {
		s.logger.Debug("skipping drain tick")
		return false
	}
	go func() {
		defer s.runs.Done()
		defer s.drainSem.Release(1)

		runCtx, cancel := withOptionalTimeout(ctx, s.cfg.DrainTimeout)
		defer cancel()

		// Failures are already logged and recorded on the job.
		_, _ = s.drainer.ProcessNext(runCtx)
	}()
	return true
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
