package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/service"
)

const sweepLockKey = "account-service:dormant-sweep"

// Sweeper runs one dormant sweep.
type Sweeper interface {
	SweepDormant(ctx context.Context, now time.Time, idleThreshold time.Duration, pageSize int) (service.SweepResult, error)
}

// Locker hands out a cross-process lock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// DormantSweeper triggers the dormant sweep on a fixed interval. A tick that fires
// while the previous sweep is still running is skipped.
type DormantSweeper struct {
	sweeper  Sweeper
	locker   Locker
	cfg      config.SweepConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
	clock    func() time.Time
	interval time.Duration

	running atomic.Bool
	wg      sync.WaitGroup
	mu      sync.Mutex
	cancel  context.CancelFunc
}

// SweeperDependencies bundles collaborators for the sweeper. Locker and Metrics may be nil.
type SweeperDependencies struct {
	Sweeper Sweeper
	Locker  Locker
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Clock   func() time.Time
}

// NewDormantSweeper constructs the sweeper.
func NewDormantSweeper(cfg config.SweepConfig, deps SweeperDependencies) *DormantSweeper {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &DormantSweeper{
		sweeper:  deps.Sweeper,
		locker:   deps.Locker,
		cfg:      cfg,
		logger:   logger,
		metrics:  deps.Metrics,
		clock:    clock,
		interval: cfg.Interval(),
	}
}

// Start launches the ticker loop. It returns immediately; call Stop to end it.
func (s *DormantSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()

	s.logger.Info("dormant sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("idle_threshold", s.cfg.IdleThreshold()),
		zap.Int("page_size", s.cfg.PageSize))
}

// Stop cancels the loop and any running sweep, then waits for them to exit.
func (s *DormantSweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("dormant sweeper stopped")
}

func (s *DormantSweeper) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				_, _, _ = s.RunOnce(ctx)
			}()
		}
	}
}

// RunOnce performs a single sweep unless one is already in progress locally, or another
// replica holds the distributed lock. ran reports whether a sweep actually executed.
func (s *DormantSweeper) RunOnce(ctx context.Context) (result service.SweepResult, ran bool, err error) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.RecordSweepSkipped()
		s.logger.Warn("previous dormant sweep still running; skipping tick")
		return result, false, nil
	}
	defer s.running.Store(false)

	if s.locker != nil && s.cfg.DistributedLock {
		release, acquired, lockErr := s.locker.TryLock(ctx, sweepLockKey, s.cfg.LockTTL())
		switch {
		case lockErr != nil:
			s.logger.Warn("sweep lock unavailable; relying on local guard", zap.Error(lockErr))
		case !acquired:
			s.metrics.RecordSweepSkipped()
			s.logger.Debug("dormant sweep lock held elsewhere; skipping tick")
			return result, false, nil
		default:
			defer func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := release(releaseCtx); err != nil {
					s.logger.Warn("release sweep lock", zap.Error(err))
				}
			}()
		}
	}

	now := s.clock()
	began := time.Now()
	result, err = s.sweeper.SweepDormant(ctx, now, s.cfg.IdleThreshold(), s.cfg.PageSize)
	elapsed := time.Since(began)
	s.metrics.RecordSweep(now, elapsed, result.Transitioned, result.Failed, err)

	fields := []zap.Field{
		zap.Time("cutoff", result.Cutoff),
		zap.Int("scanned", result.Scanned),
		zap.Int("transitioned", result.Transitioned),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		s.logger.Error("dormant sweep failed", append(fields, zap.Error(err))...)
		return result, true, err
	}
	if result.Transitioned > 0 || result.Failed > 0 {
		s.logger.Info("dormant sweep completed", fields...)
	} else {
		s.logger.Debug("dormant sweep completed", fields...)
	}
	return result, true, nil
}
