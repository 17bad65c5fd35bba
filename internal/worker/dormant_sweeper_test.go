package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/repository"
	"github.com/spec-kit/account-service/internal/service"
)

type blockingSweeper struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newBlockingSweeper() *blockingSweeper {
	return &blockingSweeper{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (b *blockingSweeper) SweepDormant(ctx context.Context, now time.Time, idle time.Duration, _ int) (service.SweepResult, error) {
	b.calls.Add(1)
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		return service.SweepResult{}, ctx.Err()
	}
	return service.SweepResult{Cutoff: now.Add(-idle)}, nil
}

type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	err      error
	released int
}

func (l *fakeLocker) TryLock(_ context.Context, _ string, _ time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held = false
		l.released++
		return nil
	}, true, nil
}

func sweepConfig() config.SweepConfig {
	return config.SweepConfig{
		Enabled:              true,
		IntervalSeconds:      10,
		IdleThresholdSeconds: 10,
		PageSize:             10,
	}
}

func TestRunOnce_SkipsWhileRunning(t *testing.T) {
	sw := newBlockingSweeper()
	metrics := observability.NewMetrics()
	s := NewDormantSweeper(sweepConfig(), SweeperDependencies{Sweeper: sw, Metrics: metrics})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, ran, err := s.RunOnce(context.Background()); !ran || err != nil {
			t.Errorf("first RunOnce() ran=%v err=%v", ran, err)
		}
	}()
	<-sw.started

	if _, ran, _ := s.RunOnce(context.Background()); ran {
		t.Error("overlapping RunOnce() should be skipped")
	}

	close(sw.release)
	<-done

	if got := sw.calls.Load(); got != 1 {
		t.Errorf("sweep calls = %d, want 1", got)
	}
	snap := metrics.Snapshot()
	if snap.Sweep.SkippedTicks != 1 || snap.Sweep.Runs != 1 {
		t.Errorf("sweep stats = %+v", snap.Sweep)
	}
}

func TestRunOnce_DistributedLock(t *testing.T) {
	cfg := sweepConfig()
	cfg.DistributedLock = true

	sw := newBlockingSweeper()
	close(sw.release)
	locker := &fakeLocker{}
	s := NewDormantSweeper(cfg, SweeperDependencies{Sweeper: sw, Locker: locker})

	if _, ran, err := s.RunOnce(context.Background()); !ran || err != nil {
		t.Fatalf("RunOnce() ran=%v err=%v", ran, err)
	}
	if locker.released != 1 {
		t.Errorf("released = %d, want 1", locker.released)
	}

	locker.held = true
	if _, ran, _ := s.RunOnce(context.Background()); ran {
		t.Error("RunOnce() should skip when another replica holds the lock")
	}

	locker.held = false
	locker.err = errors.New("redis down")
	if _, ran, err := s.RunOnce(context.Background()); !ran || err != nil {
		t.Errorf("RunOnce() should fall back to local guard: ran=%v err=%v", ran, err)
	}
	if got := sw.calls.Load(); got != 2 {
		t.Errorf("sweep calls = %d, want 2", got)
	}
}

func TestRunOnce_UsesClockAndThreshold(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	sw := newBlockingSweeper()
	close(sw.release)
	s := NewDormantSweeper(sweepConfig(), SweeperDependencies{
		Sweeper: sw,
		Clock:   func() time.Time { return now },
	})

	res, _, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if want := now.Add(-10 * time.Second); !res.Cutoff.Equal(want) {
		t.Errorf("Cutoff = %v, want %v", res.Cutoff, want)
	}
}

func TestStartStop_SweepsOnTicks(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryUserRepository()
	last := time.Now().UTC().Add(-time.Hour)
	if err := repo.Create(ctx, &domain.User{
		ID:            "idle",
		Name:          "Idle",
		Email:         "idle@example.com",
		PasswordHash:  "hash",
		Status:        domain.UserStatusActive,
		LastLoginDate: &last,
	}); err != nil {
		t.Fatal(err)
	}

	svc := service.NewAccountService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, service.AccountDependencies{UserRepo: repo})
	s := NewDormantSweeper(sweepConfig(), SweeperDependencies{Sweeper: svc})
	s.interval = 5 * time.Millisecond

	s.Start(ctx)
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		u, err := repo.GetByID(ctx, "idle")
		if err != nil {
			t.Fatal(err)
		}
		if u.Status == domain.UserStatusDormant {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("account was not swept to DORMANT")
}

func TestStop_CancelsRunningSweep(t *testing.T) {
	sw := newBlockingSweeper()
	s := NewDormantSweeper(sweepConfig(), SweeperDependencies{Sweeper: sw})
	s.interval = time.Millisecond

	s.Start(context.Background())
	<-sw.started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}
	s.Stop()
}
