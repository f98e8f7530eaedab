package postgres

import (
	"context"
	"fmt"

	"Verdantwebserver/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
)

func insertActivity(ctx context.Context, db dbtx, act domain.Activity) error {
	const q = `
		INSERT INTO admin_activity (id, admin_id, action, category, description, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := db.Exec(ctx, q,
		act.ID,
		act.AdminID,
		act.Action,
		act.Category,
		act.Description,
		nullIfEmpty(act.IP),
		nullIfEmpty(act.UserAgent),
		act.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *AdminsStore) AppendActivity(ctx context.Context, act domain.Activity) error {
	return insertActivity(ctx, s.pool, act)
}

func (s *AdminsStore) ListActivity(ctx context.Context, adminID string) ([]domain.Activity, error) {
	const q = `
		SELECT id, admin_id, action, category, description, ip, user_agent, created_at
		FROM admin_activity
		WHERE admin_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, q, adminID)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []domain.Activity
	for rows.Next() {
		var (
			act         domain.Activity
			idUUID      pgtype.UUID
			adminIDUUID pgtype.UUID
			ipText      pgtype.Text
			uaText      pgtype.Text
		)
		if err := rows.Scan(&idUUID, &adminIDUUID, &act.Action, &act.Category, &act.Description, &ipText, &uaText, &act.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		act.ID = uuidOrEmpty(idUUID)
		act.AdminID = uuidOrEmpty(adminIDUUID)
		act.IP = textOrEmpty(ipText)
		act.UserAgent = textOrEmpty(uaText)
		out = append(out, act)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}

	return out, nil
}
