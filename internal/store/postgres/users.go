package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Verdantwebserver/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersStore struct {
	pool *pgxpool.Pool
}

func NewUsersStore(pool *pgxpool.Pool) *UsersStore {
	return &UsersStore{pool: pool}
}

const userCols = `id, email, name, is_active, email_verified, failed_login_count,
	locked_until, password_reset_expires_at, created_at, updated_at, last_login_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u           domain.User
		idUUID      pgtype.UUID
		lockedTS    pgtype.Timestamptz
		resetExpTS  pgtype.Timestamptz
		lastLoginTS pgtype.Timestamptz
	)
	err := row.Scan(
		&idUUID,
		&u.Email,
		&u.Name,
		&u.IsActive,
		&u.EmailVerified,
		&u.FailedLoginCount,
		&lockedTS,
		&resetExpTS,
		&u.CreatedAt,
		&u.UpdatedAt,
		&lastLoginTS,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.ID = uuidOrEmpty(idUUID)
	u.LockedUntil = timestamptzPtr(lockedTS)
	u.PasswordResetExpiresAt = timestamptzPtr(resetExpTS)
	u.LastLoginAt = timestamptzPtr(lastLoginTS)
	return u, nil
}

func scanUserWithPassword(row pgx.Row) (domain.UserWithPassword, error) {
	var (
		u           domain.UserWithPassword
		idUUID      pgtype.UUID
		lockedTS    pgtype.Timestamptz
		resetExpTS  pgtype.Timestamptz
		lastLoginTS pgtype.Timestamptz
	)
	err := row.Scan(
		&idUUID,
		&u.Email,
		&u.Name,
		&u.IsActive,
		&u.EmailVerified,
		&u.FailedLoginCount,
		&lockedTS,
		&resetExpTS,
		&u.CreatedAt,
		&u.UpdatedAt,
		&lastLoginTS,
		&u.PasswordHash,
	)
	if err != nil {
		return domain.UserWithPassword{}, err
	}
	u.ID = uuidOrEmpty(idUUID)
	u.LockedUntil = timestamptzPtr(lockedTS)
	u.PasswordResetExpiresAt = timestamptzPtr(resetExpTS)
	u.LastLoginAt = timestamptzPtr(lastLoginTS)
	return u, nil
}

func (s *UsersStore) CreateUser(ctx context.Context, email, name, passwordHash, verifyTokenHash string) (domain.User, error) {
	const q = `
		INSERT INTO users (email, name, password_hash, email_verification_token_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userCols

	u, err := scanUser(s.pool.QueryRow(ctx, q, email, name, passwordHash, nullIfEmpty(verifyTokenHash)))
	if err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == "23505" {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByIDWithPassword(ctx context.Context, id string) (domain.UserWithPassword, error) {
	const q = `SELECT ` + userCols + `, password_hash FROM users WHERE id = $1`

	u, err := scanUserWithPassword(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	const q = `SELECT ` + userCols + `, password_hash FROM users WHERE email = $1 LIMIT 1`

	u, err := scanUserWithPassword(s.pool.QueryRow(ctx, q, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByResetTokenHash(ctx context.Context, tokenHash string) (domain.UserWithPassword, error) {
	const q = `SELECT ` + userCols + `, password_hash FROM users WHERE password_reset_token_hash = $1 LIMIT 1`

	u, err := scanUserWithPassword(s.pool.QueryRow(ctx, q, tokenHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by reset token: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByVerifyTokenHash(ctx context.Context, tokenHash string) (domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email_verification_token_hash = $1 LIMIT 1`

	u, err := scanUser(s.pool.QueryRow(ctx, q, tokenHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by verify token: %w", err)
	}
	return u, nil
}

func (s *UsersStore) SetFailedLogin(ctx context.Context, userID string, count int, lockedUntil *time.Time) error {
	const q = `
		UPDATE users
		SET failed_login_count = $2, locked_until = $3, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, q, userID, count, lockedUntil); err != nil {
		return fmt.Errorf("set failed login: %w", err)
	}
	return nil
}

func (s *UsersStore) RecordLogin(ctx context.Context, userID string, when time.Time) error {
	const q = `
		UPDATE users
		SET failed_login_count = 0, last_login_at = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, q, userID, when); err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

func (s *UsersStore) SetPasswordHash(ctx context.Context, userID, passwordHash string) error {
	const q = `
		UPDATE users
		SET password_hash = $2,
		    password_reset_token_hash = NULL,
		    password_reset_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, q, userID, passwordHash); err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	return nil
}

func (s *UsersStore) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	const q = `
		UPDATE users
		SET password_reset_token_hash = $2, password_reset_expires_at = $3, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, q, userID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return nil
}

func (s *UsersStore) ClearResetToken(ctx context.Context, userID string) error {
	const q = `
		UPDATE users
		SET password_reset_token_hash = NULL, password_reset_expires_at = NULL, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	return nil
}

func (s *UsersStore) MarkEmailVerified(ctx context.Context, userID string) error {
	const q = `
		UPDATE users
		SET email_verified = true, email_verification_token_hash = NULL, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return nil
}
