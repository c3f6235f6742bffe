package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

type UserRepo struct {
	pool *pgxpool.Pool
}

type UserRecord struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         string
	PhotoKey     *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, name, email, passwordHash, role string) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || passwordHash == "" {
		return UserRecord{}, fmt.Errorf("invalid user create payload")
	}
	if role == "" {
		role = "student"
	}

	record, err := scanUser(r.pool.QueryRow(ctx, `
INSERT INTO users (name, email, password_hash, role, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW())
RETURNING id, name, email, password_hash, role, photo_key, created_at, updated_at
`, name, email, passwordHash, strings.ToLower(role)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return UserRecord{}, ErrEmailTaken
		}
		return UserRecord{}, fmt.Errorf("create user: %w", err)
	}

	return record, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return UserRecord{}, fmt.Errorf("invalid email")
	}

	record, err := scanUser(r.pool.QueryRow(ctx, `
SELECT id, name, email, password_hash, role, photo_key, created_at, updated_at
FROM users
WHERE email = $1
LIMIT 1
`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("find user by email: %w", err)
	}

	return record, nil
}

func (r *UserRepo) FindByID(ctx context.Context, userID int64) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return UserRecord{}, fmt.Errorf("invalid user id")
	}

	record, err := scanUser(r.pool.QueryRow(ctx, `
SELECT id, name, email, password_hash, role, photo_key, created_at, updated_at
FROM users
WHERE id = $1
LIMIT 1
`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("find user by id: %w", err)
	}

	return record, nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, userID int64, name string, photoKey *string) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return UserRecord{}, fmt.Errorf("invalid user id")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return UserRecord{}, fmt.Errorf("invalid user name")
	}

	record, err := scanUser(r.pool.QueryRow(ctx, `
UPDATE users
SET
	name = $2,
	photo_key = COALESCE($3, photo_key),
	updated_at = NOW()
WHERE id = $1
RETURNING id, name, email, password_hash, role, photo_key, created_at, updated_at
`, userID, name, photoKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("update user profile: %w", err)
	}

	return record, nil
}

func scanUser(row pgx.Row) (UserRecord, error) {
	var record UserRecord
	if err := row.Scan(
		&record.ID,
		&record.Name,
		&record.Email,
		&record.PasswordHash,
		&record.Role,
		&record.PhotoKey,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return UserRecord{}, err
	}
	return record, nil
}
