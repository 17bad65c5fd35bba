package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
)

func seedUser(t *testing.T, repo repository.UserRepository, id string, status domain.UserStatus, lastLogin *time.Time) {
	t.Helper()
	u := &domain.User{
		ID:            id,
		Name:          id,
		Email:         id + "@example.com",
		PasswordHash:  "hash",
		Status:        status,
		LastLoginDate: lastLogin,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func ago(d time.Duration) *time.Time {
	t := testNow.Add(-d)
	return &t
}

func statusOf(t *testing.T, repo repository.UserRepository, id string) domain.UserStatus {
	t.Helper()
	u, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s): %v", id, err)
	}
	return u.Status
}

func TestSweepDormant_TransitionsIdleAccount(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryUserRepository()
	svc, d := newTestService(repo)
	seedUser(t, repo, "u1", domain.UserStatusActive, ago(20*time.Second))

	res, err := svc.SweepDormant(ctx, testNow, 10*time.Second, 10)
	if err != nil {
		t.Fatalf("SweepDormant() failed: %v", err)
	}
	if res.Transitioned != 1 || res.Scanned != 1 {
		t.Errorf("result = %+v, want 1 scanned and transitioned", res)
	}
	if got := statusOf(t, repo, "u1"); got != domain.UserStatusDormant {
		t.Errorf("u1 status = %s, want DORMANT", got)
	}
	if !res.Cutoff.Equal(testNow.Add(-10 * time.Second)) {
		t.Errorf("Cutoff = %v", res.Cutoff)
	}
	if types := d.types(); len(types) != 1 || types[0] != events.EventAccountStatusChanged {
		t.Errorf("events = %v, want one status change", types)
	}

	again, err := svc.SweepDormant(ctx, testNow, 10*time.Second, 10)
	if err != nil {
		t.Fatalf("second SweepDormant() failed: %v", err)
	}
	if again.Scanned != 0 || again.Transitioned != 0 {
		t.Errorf("second sweep = %+v, want no-op", again)
	}
}

func TestSweepDormant_LeavesOthersAlone(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryUserRepository()
	svc, _ := newTestService(repo)

	seedUser(t, repo, "never", domain.UserStatusActive, nil)
	seedUser(t, repo, "recent", domain.UserStatusActive, ago(5*time.Second))
	seedUser(t, repo, "boundary", domain.UserStatusActive, ago(10*time.Second))
	seedUser(t, repo, "deleted", domain.UserStatusDeleted, ago(time.Hour))

	res, err := svc.SweepDormant(ctx, testNow, 10*time.Second, 10)
	if err != nil {
		t.Fatalf("SweepDormant() failed: %v", err)
	}
	if res.Scanned != 0 || res.Skipped != 0 {
		t.Errorf("result = %+v, want nothing selected", res)
	}

	want := map[string]domain.UserStatus{
		"never":    domain.UserStatusActive,
		"recent":   domain.UserStatusActive,
		"boundary": domain.UserStatusActive,
		"deleted":  domain.UserStatusDeleted,
	}
	for id, status := range want {
		if got := statusOf(t, repo, id); got != status {
			t.Errorf("%s status = %s, want %s", id, got, status)
		}
	}
}

func TestSweepDormant_AllPages(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryUserRepository()
	svc, _ := newTestService(repo)
	for i := 0; i < 23; i++ {
		seedUser(t, repo, fmt.Sprintf("idle%02d", i), domain.UserStatusActive, ago(time.Hour))
	}

	res, err := svc.SweepDormant(ctx, testNow, time.Minute, 5)
	if err != nil {
		t.Fatalf("SweepDormant() failed: %v", err)
	}
	if res.Transitioned != 23 {
		t.Errorf("Transitioned = %d, want 23", res.Transitioned)
	}

	left, _ := repo.ListIdleBefore(ctx, testNow, domain.UserStatusActive, domain.PageRequest{Size: 50})
	if left.Total != 0 {
		t.Errorf("%d idle ACTIVE accounts left after sweep", left.Total)
	}
}

// loginDuringSweepRepo simulates a login that lands after candidates are listed.
type loginDuringSweepRepo struct {
	*repository.MemoryUserRepository
	loginID string
	done    bool
}

func (r *loginDuringSweepRepo) ListIdleBefore(ctx context.Context, cutoff time.Time, status domain.UserStatus, page domain.PageRequest) (domain.UserPage, error) {
	p, err := r.MemoryUserRepository.ListIdleBefore(ctx, cutoff, status, page)
	if err == nil && !r.done {
		r.done = true
		u, _ := r.MemoryUserRepository.GetByID(ctx, r.loginID)
		now := testNow
		u.LastLoginDate = &now
		_ = r.MemoryUserRepository.Update(ctx, u)
	}
	return p, err
}

func TestSweepDormant_SkipsAccountThatLoggedIn(t *testing.T) {
	ctx := context.Background()
	repo := &loginDuringSweepRepo{MemoryUserRepository: repository.NewMemoryUserRepository(), loginID: "a"}
	svc, _ := newTestService(repo)
	seedUser(t, repo, "a", domain.UserStatusActive, ago(time.Hour))
	seedUser(t, repo, "b", domain.UserStatusActive, ago(time.Hour))

	res, err := svc.SweepDormant(ctx, testNow, time.Minute, 10)
	if err != nil {
		t.Fatalf("SweepDormant() failed: %v", err)
	}
	if res.Scanned != 2 || res.Transitioned != 1 || res.Skipped != 1 {
		t.Errorf("result = %+v, want 2 scanned, 1 transitioned, 1 skipped", res)
	}
	if got := statusOf(t, repo, "a"); got != domain.UserStatusActive {
		t.Errorf("a status = %s, want ACTIVE", got)
	}
	if got := statusOf(t, repo, "b"); got != domain.UserStatusDormant {
		t.Errorf("b status = %s, want DORMANT", got)
	}
}

func TestSweepDormant_StopsOnCancelledContext(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	svc, _ := newTestService(repo)
	seedUser(t, repo, "u1", domain.UserStatusActive, ago(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.SweepDormant(ctx, testNow, time.Minute, 10)
	if err == nil {
		t.Fatal("expected context error")
	}
	if res.Transitioned != 0 {
		t.Errorf("Transitioned = %d, want 0", res.Transitioned)
	}
	if got := statusOf(t, repo, "u1"); got != domain.UserStatusActive {
		t.Errorf("u1 status = %s, want ACTIVE", got)
	}
}
