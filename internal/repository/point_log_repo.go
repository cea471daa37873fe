package repository

import (
	"context"
	"time"

	"divan_bot/internal/domain"
)

type PointLogRepository struct {
	db Querier
}

func NewPointLogRepository(db Querier) *PointLogRepository {
	return &PointLogRepository{db: db}
}

func (r *PointLogRepository) InsertPointLog(ctx context.Context, l *domain.PointLog) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO point_logs (user_id, delta, action_type, description, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		l.UserID, l.Delta, l.ActionType, l.Description, l.CreatedAt,
	).Scan(&l.ID)
}

// SumPoints adds up positive deltas of one action type in [from, to).
func (r *PointLogRepository) SumPoints(ctx context.Context, userID int64, actionType string, from, to time.Time) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(delta), 0)
		 FROM point_logs
		 WHERE user_id = $1 AND action_type = $2 AND delta > 0
		   AND created_at >= $3 AND created_at < $4`,
		userID, actionType, from, to,
	).Scan(&total)
	return total, err
}

func (r *PointLogRepository) CountPointLogs(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM point_logs WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (r *PointLogRepository) ListPointLogs(ctx context.Context, userID int64, limit int) ([]*domain.PointLog, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, delta, action_type, description, created_at
		 FROM point_logs
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.PointLog
	for rows.Next() {
		var l domain.PointLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Delta, &l.ActionType, &l.Description, &l.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, &l)
	}
	return res, rows.Err()
}
