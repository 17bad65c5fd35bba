package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/account-service/internal/domain"
)

const pgUniqueViolation = "23505"

const userColumns = `user_id, user_name, user_email, password_hash, user_status, last_login_date, version, created_at, updated_at`

type postgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository returns a Postgres-backed implementation.
func NewPostgresUserRepository(pool *pgxpool.Pool) UserRepository {
	return &postgresUserRepository{pool: pool}
}

func (r *postgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (user_id, user_name, user_email, password_hash, user_status, last_login_date)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING version, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Status,
		user.LastLoginDate,
	).Scan(&user.Version, &user.CreatedAt, &user.UpdatedAt)
	return translatePgError(err)
}

func (r *postgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users
        SET user_name=$1, user_email=$2, password_hash=$3, user_status=$4, last_login_date=$5,
            version=version+1, updated_at=NOW()
        WHERE user_id=$6 AND version=$7
        RETURNING version, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Status,
		user.LastLoginDate,
		user.ID,
		user.Version,
	).Scan(&user.Version, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		exists, existsErr := r.Exists(ctx, user.ID)
		if existsErr != nil {
			return existsErr
		}
		if exists {
			return ErrVersionConflict
		}
		return ErrNotFound
	}
	return translatePgError(err)
}

func (r *postgresUserRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM users WHERE user_id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id=$1`
	return r.getOne(ctx, query, id)
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_email=$1`
	return r.getOne(ctx, query, email)
}

func (r *postgresUserRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE user_id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *postgresUserRepository) ListByName(ctx context.Context, name string, page domain.PageRequest) (domain.UserPage, error) {
	return r.listPage(ctx, `user_name=$1`, page, name)
}

func (r *postgresUserRepository) List(ctx context.Context, page domain.PageRequest) (domain.UserPage, error) {
	return r.listPage(ctx, ``, page)
}

func (r *postgresUserRepository) ListIdleBefore(ctx context.Context, cutoff time.Time, status domain.UserStatus, page domain.PageRequest) (domain.UserPage, error) {
	return r.listPage(ctx, `last_login_date < $1 AND user_status = $2`, page, cutoff, status)
}

func (r *postgresUserRepository) Ping(ctx context.Context) error {
	if r.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return r.pool.Ping(ctx)
}

func (r *postgresUserRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *postgresUserRepository) listPage(ctx context.Context, where string, page domain.PageRequest, args ...any) (domain.UserPage, error) {
	page = page.Normalize()

	filter := ""
	if where != "" {
		filter = " WHERE " + where
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+filter, args...).Scan(&total); err != nil {
		return domain.UserPage{}, fmt.Errorf("count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users` + filter +
		fmt.Sprintf(" ORDER BY user_id ASC LIMIT %d OFFSET %d", page.Size, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return domain.UserPage{}, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return domain.UserPage{}, err
		}
		result = append(result, *user)
	}
	if err := rows.Err(); err != nil {
		return domain.UserPage{}, err
	}
	return domain.NewUserPage(result, page, total), nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Status,
		&user.LastLoginDate,
		&user.Version,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}
