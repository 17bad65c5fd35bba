package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned when an insert or update violates a unique key.
	ErrDuplicate = errors.New("duplicate user key")
	// ErrVersionConflict is returned when an update carries a stale version.
	ErrVersionConflict = errors.New("user version conflict")
)

// UserRepository defines persistence access for accounts.
//
// Update is version-checked: it succeeds only when user.Version matches the stored
// version, and bumps user.Version on success. All paged queries order by user id.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	ListByName(ctx context.Context, name string, page domain.PageRequest) (domain.UserPage, error)
	List(ctx context.Context, page domain.PageRequest) (domain.UserPage, error)
	ListIdleBefore(ctx context.Context, cutoff time.Time, status domain.UserStatus, page domain.PageRequest) (domain.UserPage, error)
	Ping(ctx context.Context) error
}
