package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/spec-kit/account-service/internal/domain"
)

// UserRecord is the gorm model backing the users table.
type UserRecord struct {
	UserID        string     `gorm:"column:user_id;primaryKey;size:20"`
	UserName      string     `gorm:"column:user_name;size:20;not null;index"`
	UserEmail     string     `gorm:"column:user_email;size:50;not null;uniqueIndex"`
	PasswordHash  string     `gorm:"column:password_hash;size:255;not null"`
	UserStatus    string     `gorm:"column:user_status;size:16;not null;index:idx_users_status_last_login,priority:1"`
	LastLoginDate *time.Time `gorm:"column:last_login_date;index:idx_users_status_last_login,priority:2"`
	Version       int64      `gorm:"column:version;not null;default:1"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
}

// TableName pins the table name shared with the Postgres schema.
func (UserRecord) TableName() string {
	return "users"
}

func recordFromUser(u *domain.User) UserRecord {
	return UserRecord{
		UserID:        u.ID,
		UserName:      u.Name,
		UserEmail:     u.Email,
		PasswordHash:  u.PasswordHash,
		UserStatus:    string(u.Status),
		LastLoginDate: u.LastLoginDate,
		Version:       u.Version,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (rec UserRecord) toDomain() domain.User {
	return domain.User{
		ID:            rec.UserID,
		Name:          rec.UserName,
		Email:         rec.UserEmail,
		PasswordHash:  rec.PasswordHash,
		Status:        domain.UserStatus(rec.UserStatus),
		LastLoginDate: rec.LastLoginDate,
		Version:       rec.Version,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository returns a gorm-backed implementation. The *gorm.DB should be
// opened with TranslateError so unique violations surface as gorm.ErrDuplicatedKey.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) Create(ctx context.Context, user *domain.User) error {
	rec := recordFromUser(user)
	rec.Version = 1
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return translateGormError(err)
	}
	user.Version = rec.Version
	user.CreatedAt = rec.CreatedAt
	user.UpdatedAt = rec.UpdatedAt
	return nil
}

func (r *gormUserRepository) Update(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&UserRecord{}).
		Where("user_id = ? AND version = ?", user.ID, user.Version).
		Updates(map[string]any{
			"user_name":       user.Name,
			"user_email":      user.Email,
			"password_hash":   user.PasswordHash,
			"user_status":     string(user.Status),
			"last_login_date": user.LastLoginDate,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      now,
		})
	if res.Error != nil {
		return translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		exists, err := r.Exists(ctx, user.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrVersionConflict
		}
		return ErrNotFound
	}
	user.Version++
	user.UpdatedAt = now
	return nil
}

func (r *gormUserRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("user_id = ?", id).Delete(&UserRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, "user_id = ?", id)
}

func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "user_email = ?", email)
}

func (r *gormUserRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&UserRecord{}).Where("user_id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *gormUserRepository) ListByName(ctx context.Context, name string, page domain.PageRequest) (domain.UserPage, error) {
	return r.listPage(ctx, page, func(q *gorm.DB) *gorm.DB {
		return q.Where("user_name = ?", name)
	})
}

func (r *gormUserRepository) List(ctx context.Context, page domain.PageRequest) (domain.UserPage, error) {
	return r.listPage(ctx, page, func(q *gorm.DB) *gorm.DB { return q })
}

func (r *gormUserRepository) ListIdleBefore(ctx context.Context, cutoff time.Time, status domain.UserStatus, page domain.PageRequest) (domain.UserPage, error) {
	return r.listPage(ctx, page, func(q *gorm.DB) *gorm.DB {
		return q.Where("last_login_date < ? AND user_status = ?", cutoff, string(status))
	})
}

func (r *gormUserRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *gormUserRepository) first(ctx context.Context, cond string, arg any) (*domain.User, error) {
	var rec UserRecord
	err := r.db.WithContext(ctx).Where(cond, arg).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	user := rec.toDomain()
	return &user, nil
}

func (r *gormUserRepository) listPage(ctx context.Context, page domain.PageRequest, scope func(*gorm.DB) *gorm.DB) (domain.UserPage, error) {
	page = page.Normalize()

	var total int64
	if err := scope(r.db.WithContext(ctx).Model(&UserRecord{})).Count(&total).Error; err != nil {
		return domain.UserPage{}, err
	}

	var recs []UserRecord
	err := scope(r.db.WithContext(ctx).Model(&UserRecord{})).
		Order("user_id ASC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&recs).Error
	if err != nil {
		return domain.UserPage{}, err
	}

	items := make([]domain.User, 0, len(recs))
	for _, rec := range recs {
		items = append(items, rec.toDomain())
	}
	return domain.NewUserPage(items, page, total), nil
}

func translateGormError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}
