package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"Verdantwebserver/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminsStore struct {
	pool *pgxpool.Pool
}

func NewAdminsStore(pool *pgxpool.Pool) *AdminsStore {
	return &AdminsStore{pool: pool}
}

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx so the scan and
// append helpers work inside and outside transactions.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const adminCols = `id, email, admin_id, name, role, permissions, is_active, failed_login_count,
	locked_until, password_reset_expires_at, two_factor_enabled, created_at, updated_at, last_login_at`

func scanAdmin(row pgx.Row) (domain.Admin, error) {
	var (
		a           domain.Admin
		idUUID      pgtype.UUID
		permsJSON   []byte
		lockedTS    pgtype.Timestamptz
		resetExpTS  pgtype.Timestamptz
		lastLoginTS pgtype.Timestamptz
	)
	err := row.Scan(
		&idUUID,
		&a.Email,
		&a.AdminID,
		&a.Name,
		&a.Role,
		&permsJSON,
		&a.IsActive,
		&a.FailedLoginCount,
		&lockedTS,
		&resetExpTS,
		&a.TwoFactorEnabled,
		&a.CreatedAt,
		&a.UpdatedAt,
		&lastLoginTS,
	)
	if err != nil {
		return domain.Admin{}, err
	}
	a.ID = uuidOrEmpty(idUUID)
	a.LockedUntil = timestamptzPtr(lockedTS)
	a.PasswordResetExpiresAt = timestamptzPtr(resetExpTS)
	a.LastLoginAt = timestamptzPtr(lastLoginTS)
	if len(permsJSON) > 0 {
		if err := json.Unmarshal(permsJSON, &a.Permissions); err != nil {
			return domain.Admin{}, fmt.Errorf("decode permissions: %w", err)
		}
	}
	return a, nil
}

func scanAdminWithPassword(row pgx.Row) (domain.AdminWithPassword, error) {
	var (
		a           domain.AdminWithPassword
		idUUID      pgtype.UUID
		permsJSON   []byte
		lockedTS    pgtype.Timestamptz
		resetExpTS  pgtype.Timestamptz
		lastLoginTS pgtype.Timestamptz
	)
	err := row.Scan(
		&idUUID,
		&a.Email,
		&a.AdminID,
		&a.Name,
		&a.Role,
		&permsJSON,
		&a.IsActive,
		&a.FailedLoginCount,
		&lockedTS,
		&resetExpTS,
		&a.TwoFactorEnabled,
		&a.CreatedAt,
		&a.UpdatedAt,
		&lastLoginTS,
		&a.PasswordHash,
	)
	if err != nil {
		return domain.AdminWithPassword{}, err
	}
	a.ID = uuidOrEmpty(idUUID)
	a.LockedUntil = timestamptzPtr(lockedTS)
	a.PasswordResetExpiresAt = timestamptzPtr(resetExpTS)
	a.LastLoginAt = timestamptzPtr(lastLoginTS)
	if len(permsJSON) > 0 {
		if err := json.Unmarshal(permsJSON, &a.Permissions); err != nil {
			return domain.AdminWithPassword{}, fmt.Errorf("decode permissions: %w", err)
		}
	}
	return a, nil
}

func (s *AdminsStore) CreateAdmin(ctx context.Context, admin domain.Admin, passwordHash string) (domain.Admin, error) {
	perms, err := json.Marshal(admin.Permissions)
	if err != nil {
		return domain.Admin{}, fmt.Errorf("encode permissions: %w", err)
	}

	const q = `
		INSERT INTO admins (email, admin_id, name, role, permissions, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + adminCols

	a, err := scanAdmin(s.pool.QueryRow(ctx, q, admin.Email, admin.AdminID, admin.Name, admin.Role, perms, passwordHash))
	if err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == "23505" {
			switch pgerr.ConstraintName {
			case "admins_admin_id_uq":
				return domain.Admin{}, domain.ErrAdminIDTaken
			default:
				return domain.Admin{}, domain.ErrEmailTaken
			}
		}
		return domain.Admin{}, fmt.Errorf("create admin: %w", err)
	}
	return a, nil
}

func (s *AdminsStore) GetAdminByID(ctx context.Context, id string) (domain.Admin, error) {
	const q = `SELECT ` + adminCols + ` FROM admins WHERE id = $1`

	a, err := scanAdmin(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Admin{}, domain.ErrNotFound
		}
		return domain.Admin{}, fmt.Errorf("get admin by id: %w", err)
	}
	return a, nil
}

func (s *AdminsStore) GetAdminByIDWithPassword(ctx context.Context, id string) (domain.AdminWithPassword, error) {
	const q = `SELECT ` + adminCols + `, password_hash FROM admins WHERE id = $1`

	a, err := scanAdminWithPassword(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AdminWithPassword{}, domain.ErrNotFound
		}
		return domain.AdminWithPassword{}, fmt.Errorf("get admin by id: %w", err)
	}
	return a, nil
}

func (s *AdminsStore) GetAdminByLogin(ctx context.Context, login string) (domain.AdminWithPassword, error) {
	const q = `
		SELECT ` + adminCols + `, password_hash
		FROM admins
		WHERE email = $1 OR admin_id = $1
		LIMIT 1
	`

	a, err := scanAdminWithPassword(s.pool.QueryRow(ctx, q, login))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AdminWithPassword{}, domain.ErrNotFound
		}
		return domain.AdminWithPassword{}, fmt.Errorf("get admin by login: %w", err)
	}
	return a, nil
}

func (s *AdminsStore) GetAdminByResetTokenHash(ctx context.Context, tokenHash string) (domain.AdminWithPassword, error) {
	const q = `SELECT ` + adminCols + `, password_hash FROM admins WHERE password_reset_token_hash = $1 LIMIT 1`

	a, err := scanAdminWithPassword(s.pool.QueryRow(ctx, q, tokenHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AdminWithPassword{}, domain.ErrNotFound
		}
		return domain.AdminWithPassword{}, fmt.Errorf("get admin by reset token: %w", err)
	}
	return a, nil
}

func (s *AdminsStore) ListAdmins(ctx context.Context) ([]domain.Admin, error) {
	const q = `SELECT ` + adminCols + ` FROM admins ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var out []domain.Admin
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}

	return out, nil
}

func (s *AdminsStore) SetAdminActive(ctx context.Context, adminID string, active bool, act domain.Activity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("set admin active: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `UPDATE admins SET is_active = $2, updated_at = now() WHERE id = $1`
	tag, err := tx.Exec(ctx, q, adminID, active)
	if err != nil {
		return fmt.Errorf("set admin active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if err := insertActivity(ctx, tx, act); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("set admin active: commit: %w", err)
	}
	return nil
}

func (s *AdminsStore) SetFailedLogin(ctx context.Context, adminID string, count int, lockedUntil *time.Time) error {
	const q = `
		UPDATE admins
		SET failed_login_count = $2, locked_until = $3, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, q, adminID, count, lockedUntil); err != nil {
		return fmt.Errorf("set failed login: %w", err)
	}
	return nil
}

func (s *AdminsStore) RecordLogin(ctx context.Context, adminID string, when time.Time, sess domain.Session, act domain.Activity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("record login: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		UPDATE admins
		SET failed_login_count = 0, last_login_at = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, q, adminID, when); err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	if err := insertSession(ctx, tx, sess); err != nil {
		return err
	}
	if err := insertActivity(ctx, tx, act); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("record login: commit: %w", err)
	}
	return nil
}

func (s *AdminsStore) SetPasswordHash(ctx context.Context, adminID, passwordHash string, act domain.Activity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("set password hash: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		UPDATE admins
		SET password_hash = $2,
		    password_reset_token_hash = NULL,
		    password_reset_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, q, adminID, passwordHash); err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if err := insertActivity(ctx, tx, act); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("set password hash: commit: %w", err)
	}
	return nil
}

func (s *AdminsStore) SetResetToken(ctx context.Context, adminID, tokenHash string, expiresAt time.Time) error {
	const q = `
		UPDATE admins
		SET password_reset_token_hash = $2, password_reset_expires_at = $3, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, q, adminID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return nil
}

func (s *AdminsStore) ClearResetToken(ctx context.Context, adminID string) error {
	const q = `
		UPDATE admins
		SET password_reset_token_hash = NULL, password_reset_expires_at = NULL, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, q, adminID); err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	return nil
}

func (s *AdminsStore) GetTwoFactorSecret(ctx context.Context, adminID string) (string, error) {
	const q = `SELECT two_factor_secret FROM admins WHERE id = $1`

	var secret pgtype.Text
	if err := s.pool.QueryRow(ctx, q, adminID).Scan(&secret); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("get two-factor secret: %w", err)
	}
	return textOrEmpty(secret), nil
}

func (s *AdminsStore) SetTwoFactor(ctx context.Context, adminID, secret string, enabled bool, act domain.Activity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("set two-factor: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		UPDATE admins
		SET two_factor_secret = $2, two_factor_enabled = $3, updated_at = now()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, q, adminID, nullIfEmpty(secret), enabled); err != nil {
		return fmt.Errorf("set two-factor: %w", err)
	}
	if err := insertActivity(ctx, tx, act); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("set two-factor: commit: %w", err)
	}
	return nil
}
