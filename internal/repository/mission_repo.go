package repository

import (
	"context"

	"divan_bot/internal/domain"

	"github.com/jackc/pgx/v5"
)

const missionColumns = `id, name, description, points_reward, cadence, is_active, requires_action,
	target_message_id, event_id, created_at`

type MissionRepository struct {
	db Querier
}

func NewMissionRepository(db Querier) *MissionRepository {
	return &MissionRepository{db: db}
}

func scanMission(row pgx.Row) (*domain.Mission, error) {
	var (
		m        domain.Mission
		targetID *int64
	)
	if err := row.Scan(&m.ID, &m.Name, &m.Description, &m.PointsReward, &m.Cadence, &m.IsActive,
		&m.RequiresAction, &targetID, &m.EventID, &m.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	if targetID != nil {
		m.Action = &domain.MissionAction{TargetMessageID: targetID}
	}
	return &m, nil
}

func (r *MissionRepository) GetMission(ctx context.Context, id string) (*domain.Mission, error) {
	return scanMission(r.db.QueryRow(ctx, `SELECT `+missionColumns+` FROM missions WHERE id = $1`, id))
}

func (r *MissionRepository) ListMissions(ctx context.Context, activeOnly bool) ([]*domain.Mission, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+missionColumns+`
		 FROM missions
		 WHERE is_active OR NOT $1
		 ORDER BY created_at, id`,
		activeOnly,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *MissionRepository) CreateMission(ctx context.Context, m *domain.Mission) error {
	var targetID *int64
	if id, ok := m.TargetMessageID(); ok {
		targetID = &id
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO missions (id, name, description, points_reward, cadence, is_active,
		                       requires_action, target_message_id, event_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.Name, m.Description, m.PointsReward, m.Cadence, m.IsActive,
		m.RequiresAction, targetID, m.EventID, m.CreatedAt,
	)
	return mapErr(err)
}

func (r *MissionRepository) SetMissionActive(ctx context.Context, id string, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE missions SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MissionRepository) ListCompletions(ctx context.Context, userID int64) ([]*domain.MissionCompletion, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id, mission_id, target_key, completed_at
		 FROM mission_completions
		 WHERE user_id = $1
		 ORDER BY completed_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.MissionCompletion
	for rows.Next() {
		var c domain.MissionCompletion
		if err := rows.Scan(&c.UserID, &c.MissionID, &c.TargetKey, &c.CompletedAt); err != nil {
			return nil, err
		}
		res = append(res, &c)
	}
	return res, rows.Err()
}

func (r *MissionRepository) GetCompletion(ctx context.Context, userID int64, missionID, targetKey string) (*domain.MissionCompletion, error) {
	var c domain.MissionCompletion
	err := r.db.QueryRow(ctx,
		`SELECT user_id, mission_id, target_key, completed_at
		 FROM mission_completions
		 WHERE user_id = $1 AND mission_id = $2 AND target_key = $3`,
		userID, missionID, targetKey,
	).Scan(&c.UserID, &c.MissionID, &c.TargetKey, &c.CompletedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

// CountCompletions counts completion records, optionally for one cadence.
func (r *MissionRepository) CountCompletions(ctx context.Context, userID int64, cadence domain.Cadence) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM mission_completions mc
		 JOIN missions m ON m.id = mc.mission_id
		 WHERE mc.user_id = $1 AND ($2 = '' OR m.cadence = $2)`,
		userID, string(cadence),
	).Scan(&n)
	return n, err
}

// SaveCompletion stores the latest completion for (user, mission, target).
func (r *MissionRepository) SaveCompletion(ctx context.Context, c *domain.MissionCompletion) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO mission_completions (user_id, mission_id, target_key, completed_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, mission_id, target_key) DO UPDATE
		 SET completed_at = EXCLUDED.completed_at`,
		c.UserID, c.MissionID, c.TargetKey, c.CompletedAt,
	)
	return err
}
