package repository

import (
	"context"
	"encoding/json"

	"divan_bot/internal/domain"

	"github.com/jackc/pgx/v5"
)

// AuditLogger persists audit entries outside of business transactions.
type AuditLogger interface {
	CreateAudit(ctx context.Context, log *domain.AuditLog) error
	RecentAudit(ctx context.Context, category string, limit int) ([]*domain.AuditLog, error)
}

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db Querier
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db Querier) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateAudit inserts a new audit log entry
func (r *AuditRepository) CreateAudit(ctx context.Context, log *domain.AuditLog) error {
	detailsJSON, err := json.Marshal(log.Details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	return r.db.QueryRow(ctx, `
		INSERT INTO audit_logs (user_id, action, category, details, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, log.UserID, log.Action, log.Category, detailsJSON, log.IP, log.UserAgent, log.CreatedAt).Scan(&log.ID)
}

// RecentAudit returns the newest entries, optionally for one category.
func (r *AuditRepository) RecentAudit(ctx context.Context, category string, limit int) ([]*domain.AuditLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, action, category, details, COALESCE(ip, ''), COALESCE(user_agent, ''), created_at
		FROM audit_logs
		WHERE $1 = '' OR category = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, category, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAuditLogs(rows)
}

func scanAuditLogs(rows pgx.Rows) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	for rows.Next() {
		var log domain.AuditLog
		var detailsJSON []byte
		if err := rows.Scan(&log.ID, &log.UserID, &log.Action, &log.Category, &detailsJSON, &log.IP, &log.UserAgent, &log.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(detailsJSON, &log.Details); err != nil {
			log.Details = make(map[string]any)
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}

var _ AuditLogger = (*AuditRepository)(nil)
