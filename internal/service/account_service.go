package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// maxWriteAttempts bounds optimistic read-modify-write retries.
const maxWriteAttempts = 3

// AccountService coordinates account lifecycle and authentication.
type AccountService struct {
	users      repository.UserRepository
	hasher     *auth.Hasher
	validate   *validator.Validate
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// AccountDependencies bundles collaborators for the account service.
type AccountDependencies struct {
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	// Clock defaults to time.Now in UTC.
	Clock func() time.Time
}

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	UserID   string `json:"userId" validate:"required,notblank,max=20"`
	Name     string `json:"userName" validate:"required,notblank,max=20"`
	Email    string `json:"userEmail" validate:"required,email,max=50"`
	Password string `json:"userPassword" validate:"required,min=6,max=72"`
}

// UpdateInput replaces every mutable field of an account.
type UpdateInput struct {
	Name     string            `json:"userName" validate:"required,notblank,max=20"`
	Email    string            `json:"userEmail" validate:"required,email,max=50"`
	Password string            `json:"userPassword" validate:"required,min=6,max=72"`
	Status   domain.UserStatus `json:"userStatus" validate:"required,oneof=ACTIVE DORMANT DELETED"`
}

// NewAccountService builds the service.
func NewAccountService(cfg config.AuthConfig, deps AccountDependencies) *AccountService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher()
	}
	return &AccountService{
		users:      deps.UserRepo,
		hasher:     auth.NewHasher(cfg.BcryptCost),
		validate:   newValidator(),
		dispatcher: dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// Exists reports whether an account with userID is stored.
func (s *AccountService) Exists(ctx context.Context, userID string) (bool, error) {
	return s.users.Exists(ctx, userID)
}

// Register creates a new ACTIVE account.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, emailTaken(input.Email)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           input.UserID,
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, s.duplicateOnCreate(ctx, input)
		}
		return nil, err
	}

	s.publish(ctx, events.EventAccountRegistered, user.ID, events.TriggerRequest, nil)
	return user, nil
}

// GetByID returns the account or a NOT_FOUND error.
func (s *AccountService) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(userID)
	}
	return user, err
}

// GetByEmail looks an account up by email. A missing account is reported through the
// boolean, not as an error.
func (s *AccountService) GetByEmail(ctx context.Context, email string) (*domain.User, bool, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// ListByName returns a page of accounts with the exact user name.
func (s *AccountService) ListByName(ctx context.Context, name string, page, size int) (domain.UserPage, error) {
	return s.users.ListByName(ctx, name, domain.PageRequest{Page: page, Size: size})
}

// ListAll returns a page of all accounts.
func (s *AccountService) ListAll(ctx context.Context, page, size int) (domain.UserPage, error) {
	return s.users.List(ctx, domain.PageRequest{Page: page, Size: size})
}

// Update overwrites name, email, password and status of an account.
func (s *AccountService) Update(ctx context.Context, userID string, input UpdateInput) (*domain.User, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	var (
		oldStatus domain.UserStatus
		hash      string
	)
	user, err := s.mutate(ctx, userID, func(u *domain.User) error {
		if owner, err := s.users.GetByEmail(ctx, input.Email); err == nil && owner.ID != u.ID {
			return emailTaken(input.Email)
		} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if hash == "" {
			h, err := s.hashPassword(input.Password)
			if err != nil {
				return err
			}
			hash = h
		}
		oldStatus = u.Status
		u.Name = input.Name
		u.Email = input.Email
		u.PasswordHash = hash
		u.Status = input.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventAccountUpdated, userID, events.TriggerRequest, nil)
	if oldStatus != user.Status {
		s.publishStatusChange(ctx, userID, events.TriggerRequest, oldStatus, user.Status)
	}
	return user, nil
}

// SoftDelete marks an account DELETED and keeps the record.
func (s *AccountService) SoftDelete(ctx context.Context, userID string) (*domain.User, error) {
	var oldStatus domain.UserStatus
	user, err := s.mutate(ctx, userID, func(u *domain.User) error {
		oldStatus = u.Status
		u.Status = domain.UserStatusDeleted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventAccountDeleted, userID, events.TriggerRequest, events.DeletedPayload{Permanent: false})
	if oldStatus != user.Status {
		s.publishStatusChange(ctx, userID, events.TriggerRequest, oldStatus, user.Status)
	}
	return user, nil
}

// HardDelete removes an account permanently.
func (s *AccountService) HardDelete(ctx context.Context, userID string) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(userID)
		}
		return err
	}
	s.publish(ctx, events.EventAccountDeleted, userID, events.TriggerRequest, events.DeletedPayload{Permanent: true})
	return nil
}

// Authenticate checks the password of a non-deleted account. On success the account
// becomes ACTIVE and its last login date is stamped.
func (s *AccountService) Authenticate(ctx context.Context, userID, password string) (*domain.User, error) {
	var oldStatus domain.UserStatus
	user, err := s.mutate(ctx, userID, func(u *domain.User) error {
		if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
			if errors.Is(err, auth.ErrPasswordMismatch) {
				return apperrors.NewUnauthorized("invalid credentials")
			}
			return err
		}
		if u.Status == domain.UserStatusDeleted {
			return apperrors.NewUnauthorized("account deleted")
		}
		oldStatus = u.Status
		now := s.now()
		u.Status = domain.UserStatusActive
		u.LastLoginDate = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventAccountAuthenticated, userID, events.TriggerRequest, nil)
	if oldStatus != user.Status {
		s.publishStatusChange(ctx, userID, events.TriggerRequest, oldStatus, user.Status)
	}
	return user, nil
}

// mutate loads the account, applies fn and writes it back, retrying on version
// conflicts. An error from fn aborts without writing.
func (s *AccountService) mutate(ctx context.Context, userID string, fn func(*domain.User) error) (*domain.User, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		user, err := s.users.GetByID(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(userID)
		}
		if err != nil {
			return nil, err
		}

		if err := fn(user); err != nil {
			return nil, err
		}

		err = s.users.Update(ctx, user)
		switch {
		case err == nil:
			return user, nil
		case errors.Is(err, repository.ErrVersionConflict):
			s.logger.Debug("version conflict, retrying",
				zap.String("user_id", userID),
				zap.Int("attempt", attempt))
			continue
		case errors.Is(err, repository.ErrNotFound):
			return nil, notFound(userID)
		case errors.Is(err, repository.ErrDuplicate):
			return nil, emailTaken(user.Email)
		default:
			return nil, err
		}
	}
	return nil, apperrors.NewConflict("account modified concurrently", map[string]any{"userId": userID})
}

func (s *AccountService) publishStatusChange(ctx context.Context, userID string, trigger events.Trigger, from, to domain.UserStatus) {
	s.publish(ctx, events.EventAccountStatusChanged, userID, trigger, events.StatusChangedPayload{
		OldStatus: from,
		NewStatus: to,
	})
}

func (s *AccountService) publish(ctx context.Context, eventType events.EventType, userID string, trigger events.Trigger, payload interface{}) {
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Trigger:   trigger,
		Timestamp: s.now(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(eventType)),
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// duplicateOnCreate tells a lost race on the user id apart from one on the email.
func (s *AccountService) duplicateOnCreate(ctx context.Context, input RegisterInput) error {
	if exists, err := s.users.Exists(ctx, input.UserID); err == nil && exists {
		return apperrors.NewConflict("user id already exists", map[string]any{"userId": input.UserID})
	}
	return emailTaken(input.Email)
}

func (s *AccountService) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", apperrors.NewValidationError("invalid user fields", map[string]any{
			"userPassword": fmt.Sprintf("max=%d bytes", auth.MaxPasswordBytes),
		})
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// IsEmailConflict reports whether err is the CONFLICT raised for an email owned by
// another account.
func IsEmailConflict(err error) bool {
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		return false
	}
	_, ok := apperrors.ToDomainError(err).Details["userEmail"]
	return ok
}

func emailTaken(email string) error {
	return apperrors.NewConflict("email already registered", map[string]any{"userEmail": email})
}

func notFound(userID string) error {
	return apperrors.NewNotFound("user", map[string]any{"userId": userID})
}
