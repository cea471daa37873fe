package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"divan_bot/internal/domain"
	"divan_bot/internal/logger"
	"divan_bot/internal/metrics"
	"divan_bot/internal/repository"

	"github.com/google/uuid"
)

// RewardStore sells catalog items for points.
type RewardStore struct {
	deps   Deps
	ledger *PointLedger
	log    *slog.Logger
}

func NewRewardStore(deps Deps, ledger *PointLedger) *RewardStore {
	return &RewardStore{deps: deps.normalize(), ledger: ledger, log: logger.With("component", "reward_store")}
}

func rewardErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrRewardNotFound
	}
	return err
}

// Purchase spends the reward cost and takes one unit of stock. Both rows are
// locked, user first, so concurrent buyers serialize and nothing changes
// unless every precondition holds.
func (s *RewardStore) Purchase(ctx context.Context, userID, rewardID int64) (*domain.Receipt, error) {
	ctx, cancel := s.deps.withTimeout(ctx)
	defer cancel()

	var (
		receipt *domain.Receipt
		newIDs  []string
	)
	err := s.deps.Store.InTx(ctx, func(tx repository.Tx) error {
		u, err := tx.LockUser(ctx, userID)
		if err != nil {
			return userErr(err)
		}
		r, err := tx.LockReward(ctx, rewardID)
		if err != nil {
			return rewardErr(err)
		}
		switch {
		case !r.IsActive:
			return ErrRewardInactive
		case !r.InStock():
			return ErrOutOfStock
		case u.Points < r.Cost:
			return ErrInsufficientPoints
		}

		now := s.deps.Clock.Now()
		if err := s.ledger.deductTx(ctx, tx, u, r.Cost, domain.ActionRewardPurchase, "Canje: "+r.Name, now); err != nil {
			return err
		}
		if r.Stock != nil {
			left := *r.Stock - 1
			r.Stock = &left
			if err := tx.UpdateReward(ctx, r); err != nil {
				return fmt.Errorf("update stock: %w", err)
			}
		}
		p := &domain.Purchase{
			ID:        uuid.NewString(),
			UserID:    u.ID,
			RewardID:  r.ID,
			Cost:      r.Cost,
			CreatedAt: now,
		}
		if err := tx.InsertPurchase(ctx, p); err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}
		if s.ledger.achievements != nil {
			if newIDs, err = s.ledger.achievements.evaluateTx(ctx, tx, u, now); err != nil {
				return err
			}
		}
		receipt = &domain.Receipt{
			PurchaseID: p.ID,
			RewardID:   r.ID,
			RewardName: r.Name,
			Cost:       r.Cost,
			Balance:    u.Points,
			StockLeft:  r.Stock,
			NewBadges:  newIDs,
			CreatedAt:  now,
		}
		return nil
	})
	if err != nil {
		metrics.Purchases.WithLabelValues(Reason(err)).Inc()
		logFailure(s.log, "purchase", err, "user_id", userID, "reward_id", rewardID)
		return nil, err
	}

	metrics.Purchases.WithLabelValues("ok").Inc()
	metrics.PointsSpent.WithLabelValues(domain.ActionRewardPurchase).Add(float64(receipt.Cost))
	if s.ledger.achievements != nil {
		s.ledger.achievements.announce(ctx, userID, newIDs)
	}
	s.deps.notify(ctx, domain.NotifyRewardClaimed, userID, map[string]any{
		"purchase_id": receipt.PurchaseID,
		"reward_id":   receipt.RewardID,
		"name":        receipt.RewardName,
		"balance":     receipt.Balance,
	})
	return receipt, nil
}

// ListRewards returns the catalog. Inactive rewards are only included for admins.
func (s *RewardStore) ListRewards(ctx context.Context, activeOnly bool) ([]*domain.Reward, error) {
	ctx, cancel := s.deps.withTimeout(ctx)
	defer cancel()
	return s.deps.Store.ListRewards(ctx, activeOnly)
}

func (s *RewardStore) GetReward(ctx context.Context, id int64) (*domain.Reward, error) {
	ctx, cancel := s.deps.withTimeout(ctx)
	defer cancel()
	r, err := s.deps.Store.GetReward(ctx, id)
	if err != nil {
		return nil, rewardErr(err)
	}
	return r, nil
}

type NewReward struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Cost        int64  `json:"cost"`
	Stock       *int64 `json:"stock"`
}

func validReward(name string, cost int64, stock *int64) bool {
	return strings.TrimSpace(name) != "" && cost > 0 && (stock == nil || *stock >= 0)
}

func (s *RewardStore) CreateReward(ctx context.Context, in NewReward) (*domain.Reward, error) {
	if !validReward(in.Name, in.Cost, in.Stock) {
		return nil, ErrInvalidReward
	}
	r := &domain.Reward{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Cost:        in.Cost,
		Stock:       in.Stock,
		IsActive:    true,
		CreatedAt:   s.deps.Clock.Now(),
	}
	ctx, cancel := s.deps.withTimeout(ctx)
	defer cancel()
	if err := s.deps.Store.InTx(ctx, func(tx repository.Tx) error {
		return tx.CreateReward(ctx, r)
	}); err != nil {
		logFailure(s.log, "create_reward", err)
		return nil, err
	}
	s.log.Info("reward created", "reward_id", r.ID, "cost", r.Cost)
	return r, nil
}

// RewardPatch updates only the fields that are set. ClearStock makes the
// reward unlimited.
type RewardPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Cost        *int64  `json:"cost"`
	Stock       *int64  `json:"stock"`
	ClearStock  bool    `json:"unlimited"`
	IsActive    *bool   `json:"is_active"`
}

func (s *RewardStore) UpdateReward(ctx context.Context, id int64, patch RewardPatch) (*domain.Reward, error) {
	ctx, cancel := s.deps.withTimeout(ctx)
	defer cancel()

	var r *domain.Reward
	err := s.deps.Store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		if r, err = tx.LockReward(ctx, id); err != nil {
			return rewardErr(err)
		}
		if patch.Name != nil {
			r.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Description != nil {
			r.Description = *patch.Description
		}
		if patch.Cost != nil {
			r.Cost = *patch.Cost
		}
		switch {
		case patch.ClearStock:
			r.Stock = nil
		case patch.Stock != nil:
			st := *patch.Stock
			r.Stock = &st
		}
		if patch.IsActive != nil {
			r.IsActive = *patch.IsActive
		}
		if !validReward(r.Name, r.Cost, r.Stock) {
			return ErrInvalidReward
		}
		return tx.UpdateReward(ctx, r)
	})
	if err != nil {
		logFailure(s.log, "update_reward", err, "reward_id", id)
		return nil, err
	}
	return r, nil
}
