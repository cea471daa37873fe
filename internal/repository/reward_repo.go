package repository

import (
	"context"

	"divan_bot/internal/domain"

	"github.com/jackc/pgx/v5"
)

const rewardColumns = `id, name, description, cost, stock, is_active, created_at`

type RewardRepository struct {
	db Querier
}

func NewRewardRepository(db Querier) *RewardRepository {
	return &RewardRepository{db: db}
}

func scanReward(row pgx.Row) (*domain.Reward, error) {
	var rw domain.Reward
	if err := row.Scan(&rw.ID, &rw.Name, &rw.Description, &rw.Cost, &rw.Stock, &rw.IsActive, &rw.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &rw, nil
}

func (r *RewardRepository) GetReward(ctx context.Context, id int64) (*domain.Reward, error) {
	return scanReward(r.db.QueryRow(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE id = $1`, id))
}

// LockReward reads the reward with SELECT ... FOR UPDATE.
func (r *RewardRepository) LockReward(ctx context.Context, id int64) (*domain.Reward, error) {
	return scanReward(r.db.QueryRow(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE id = $1 FOR UPDATE`, id))
}

func (r *RewardRepository) ListRewards(ctx context.Context, activeOnly bool) ([]*domain.Reward, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+rewardColumns+`
		 FROM rewards
		 WHERE is_active OR NOT $1
		 ORDER BY cost, id`,
		activeOnly,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Reward
	for rows.Next() {
		rw, err := scanReward(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rw)
	}
	return res, rows.Err()
}

func (r *RewardRepository) CreateReward(ctx context.Context, rw *domain.Reward) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO rewards (name, description, cost, stock, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		rw.Name, rw.Description, rw.Cost, rw.Stock, rw.IsActive, rw.CreatedAt,
	).Scan(&rw.ID)
}

func (r *RewardRepository) UpdateReward(ctx context.Context, rw *domain.Reward) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE rewards
		 SET name = $1, description = $2, cost = $3, stock = $4, is_active = $5
		 WHERE id = $6`,
		rw.Name, rw.Description, rw.Cost, rw.Stock, rw.IsActive, rw.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RewardRepository) InsertPurchase(ctx context.Context, p *domain.Purchase) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO purchases (id, user_id, reward_id, cost, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.UserID, p.RewardID, p.Cost, p.CreatedAt,
	)
	return err
}

func (r *RewardRepository) CountPurchases(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM purchases WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}
