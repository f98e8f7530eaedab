package postgres

import (
	"context"
	"fmt"
	"time"

	"Verdantwebserver/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
)

func insertSession(ctx context.Context, db dbtx, sess domain.Session) error {
	const q = `
		INSERT INTO admin_sessions (id, admin_id, session_id, is_active, ip, user_agent, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := db.Exec(ctx, q,
		sess.ID,
		sess.AdminID,
		sess.SessionID,
		sess.IsActive,
		nullIfEmpty(sess.IP),
		nullIfEmpty(sess.UserAgent),
		sess.CreatedAt,
		sess.LastActivityAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *AdminsStore) ListSessions(ctx context.Context, adminID string) ([]domain.Session, error) {
	const q = `
		SELECT id, admin_id, session_id, is_active, ip, user_agent, created_at, last_activity_at
		FROM admin_sessions
		WHERE admin_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, q, adminID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		var (
			sess        domain.Session
			idUUID      pgtype.UUID
			adminIDUUID pgtype.UUID
			ipText      pgtype.Text
			uaText      pgtype.Text
		)
		if err := rows.Scan(&idUUID, &adminIDUUID, &sess.SessionID, &sess.IsActive, &ipText, &uaText, &sess.CreatedAt, &sess.LastActivityAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.ID = uuidOrEmpty(idUUID)
		sess.AdminID = uuidOrEmpty(adminIDUUID)
		sess.IP = textOrEmpty(ipText)
		sess.UserAgent = textOrEmpty(uaText)
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	return out, nil
}

func (s *AdminsStore) TouchSession(ctx context.Context, adminID, sessionID string, when time.Time) error {
	const q = `
		UPDATE admin_sessions
		SET last_activity_at = $3
		WHERE admin_id = $1 AND session_id = $2 AND is_active
	`
	if _, err := s.pool.Exec(ctx, q, adminID, sessionID, when); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *AdminsStore) TerminateSession(ctx context.Context, adminID, sessionID string, when time.Time, act domain.Activity) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("terminate session: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		UPDATE admin_sessions
		SET is_active = false, last_activity_at = $3
		WHERE admin_id = $1 AND session_id = $2 AND is_active
	`
	tag, err := tx.Exec(ctx, q, adminID, sessionID, when)
	if err != nil {
		return false, fmt.Errorf("terminate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err := insertActivity(ctx, tx, act); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("terminate session: commit: %w", err)
	}
	return true, nil
}
