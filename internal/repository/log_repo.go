package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
)

// ActivityLogRepository stores the operator audit trail
type ActivityLogRepository struct {
	pool *pgxpool.Pool
}

func NewActivityLogRepository(pool *pgxpool.Pool) *ActivityLogRepository {
	return &ActivityLogRepository{pool: pool}
}

// Create appends an activity entry
func (r *ActivityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO activity_logs (id, user_id, action, target_type, target_id, description, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		entry.ID, entry.UserID, entry.Action, entry.TargetType, entry.TargetID,
		entry.Description, entry.IPAddress, entry.UserAgent,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

// List returns the newest entries matching f
func (r *ActivityLogRepository) List(ctx context.Context, f models.ActivityLogFilter) ([]*models.ActivityLog, error) {
	query := `
		SELECT a.id, a.user_id, u.username, a.action, a.target_type, a.target_id,
		       a.description, a.ip_address, a.user_agent, a.created_at
		FROM activity_logs a
		JOIN users u ON u.id = a.user_id
		WHERE ($1 = '' OR a.user_id::text = $1)
		  AND ($2 = '' OR a.action = $2)
		ORDER BY a.created_at DESC
		LIMIT $3
	`
	rows, err := conn(ctx, r.pool).Query(ctx, query, f.UserID, f.Action, listLimit)
	if err != nil {
		return nil, fmt.Errorf("query activity logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.ActivityLog
	for rows.Next() {
		e := &models.ActivityLog{}
		err := rows.Scan(
			&e.ID, &e.UserID, &e.Username, &e.Action, &e.TargetType, &e.TargetID,
			&e.Description, &e.IPAddress, &e.UserAgent, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan activity log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteBefore removes entries older than cutoff and returns how many went
func (r *ActivityLogRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM activity_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete activity logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
