package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

// MemoryUserRepository keeps accounts in process memory. It mirrors the SQL
// backends closely enough to run the service without a database.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
	now   func() time.Time
}

// NewMemoryUserRepository returns an empty in-memory store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[string]*domain.User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return ErrDuplicate
	}
	if r.emailTakenLocked(user.Email, "") {
		return ErrDuplicate
	}

	now := r.now()
	user.Version = 1
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user.Clone()
	return nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != user.Version {
		return ErrVersionConflict
	}
	if r.emailTakenLocked(user.Email, user.ID) {
		return ErrDuplicate
	}

	user.Version++
	user.CreatedAt = stored.CreatedAt
	user.UpdatedAt = r.now()
	r.users[user.ID] = user.Clone()
	return nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return user.Clone(), nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Email == email {
			return user.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepository) Exists(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.users[id]
	return ok, nil
}

func (r *MemoryUserRepository) ListByName(_ context.Context, name string, page domain.PageRequest) (domain.UserPage, error) {
	return r.listPage(page, func(u *domain.User) bool { return u.Name == name }), nil
}

func (r *MemoryUserRepository) List(_ context.Context, page domain.PageRequest) (domain.UserPage, error) {
	return r.listPage(page, func(*domain.User) bool { return true }), nil
}

func (r *MemoryUserRepository) ListIdleBefore(_ context.Context, cutoff time.Time, status domain.UserStatus, page domain.PageRequest) (domain.UserPage, error) {
	return r.listPage(page, func(u *domain.User) bool {
		return u.Status == status && u.IdleSince(cutoff)
	}), nil
}

func (r *MemoryUserRepository) Ping(context.Context) error {
	return nil
}

func (r *MemoryUserRepository) emailTakenLocked(email, exceptID string) bool {
	for id, user := range r.users {
		if id != exceptID && user.Email == email {
			return true
		}
	}
	return false
}

func (r *MemoryUserRepository) listPage(page domain.PageRequest, match func(*domain.User) bool) domain.UserPage {
	page = page.Normalize()

	r.mu.RLock()
	matched := make([]domain.User, 0)
	for _, user := range r.users {
		if match(user) {
			matched = append(matched, *user.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	start := page.Offset()
	if start < 0 || start > len(matched) {
		start = len(matched)
	}
	end := start + page.Size
	if end < start || end > len(matched) {
		end = len(matched)
	}
	return domain.NewUserPage(matched[start:end], page, int64(len(matched)))
}
