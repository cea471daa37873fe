package repository

import (
	"context"

	"divan_bot/internal/domain"
)

type AchievementRepository struct {
	db Querier
}

func NewAchievementRepository(db Querier) *AchievementRepository {
	return &AchievementRepository{db: db}
}

func (r *AchievementRepository) ListGrants(ctx context.Context, userID int64) ([]*domain.AchievementGrant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id, achievement_id, granted_at
		 FROM achievement_grants
		 WHERE user_id = $1
		 ORDER BY granted_at DESC, achievement_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.AchievementGrant
	for rows.Next() {
		var g domain.AchievementGrant
		if err := rows.Scan(&g.UserID, &g.AchievementID, &g.GrantedAt); err != nil {
			return nil, err
		}
		res = append(res, &g)
	}
	return res, rows.Err()
}

// InsertGrant writes the grant once. It reports false when it already existed.
func (r *AchievementRepository) InsertGrant(ctx context.Context, g *domain.AchievementGrant) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO achievement_grants (user_id, achievement_id, granted_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, achievement_id) DO NOTHING`,
		g.UserID, g.AchievementID, g.GrantedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
