// Package memory is an in-process repository.Store for development and tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"divan_bot/internal/domain"
	"divan_bot/internal/repository"
)

// Store serializes transactions with one mutex. A transaction works on a
// copy of the committed state which replaces it on success.
type Store struct {
	txMu sync.Mutex

	mu sync.RWMutex
	st *state

	auditMu sync.Mutex
	audit   []*domain.AuditLog
	auditID int64
}

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.snapshot().clone()
	if err := fn(work); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.snapshot().GetUserByID(ctx, id)
}

func (s *Store) GetUserByTgID(ctx context.Context, tgID int64) (*domain.User, error) {
	return s.snapshot().GetUserByTgID(ctx, tgID)
}

func (s *Store) FindUser(ctx context.Context, identifier string) (*domain.User, error) {
	return s.snapshot().FindUser(ctx, identifier)
}

func (s *Store) TopUsers(ctx context.Context, limit int) ([]*domain.User, error) {
	return s.snapshot().TopUsers(ctx, limit)
}

func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	return s.snapshot().ListUserIDs(ctx)
}

func (s *Store) ActiveUserIDsSince(ctx context.Context, since time.Time) ([]int64, error) {
	return s.snapshot().ActiveUserIDsSince(ctx, since)
}

func (s *Store) Stats(ctx context.Context, dayStart, weekStart time.Time) (*domain.Stats, error) {
	return s.snapshot().Stats(ctx, dayStart, weekStart)
}

func (s *Store) SumPoints(ctx context.Context, userID int64, actionType string, from, to time.Time) (int64, error) {
	return s.snapshot().SumPoints(ctx, userID, actionType, from, to)
}

func (s *Store) CountPointLogs(ctx context.Context, userID int64) (int64, error) {
	return s.snapshot().CountPointLogs(ctx, userID)
}

func (s *Store) ListPointLogs(ctx context.Context, userID int64, limit int) ([]*domain.PointLog, error) {
	return s.snapshot().ListPointLogs(ctx, userID, limit)
}

func (s *Store) GetMission(ctx context.Context, id string) (*domain.Mission, error) {
	return s.snapshot().GetMission(ctx, id)
}

func (s *Store) ListMissions(ctx context.Context, activeOnly bool) ([]*domain.Mission, error) {
	return s.snapshot().ListMissions(ctx, activeOnly)
}

func (s *Store) ListCompletions(ctx context.Context, userID int64) ([]*domain.MissionCompletion, error) {
	return s.snapshot().ListCompletions(ctx, userID)
}

func (s *Store) GetCompletion(ctx context.Context, userID int64, missionID, targetKey string) (*domain.MissionCompletion, error) {
	return s.snapshot().GetCompletion(ctx, userID, missionID, targetKey)
}

func (s *Store) CountCompletions(ctx context.Context, userID int64, cadence domain.Cadence) (int64, error) {
	return s.snapshot().CountCompletions(ctx, userID, cadence)
}

func (s *Store) ListGrants(ctx context.Context, userID int64) ([]*domain.AchievementGrant, error) {
	return s.snapshot().ListGrants(ctx, userID)
}

func (s *Store) GetReward(ctx context.Context, id int64) (*domain.Reward, error) {
	return s.snapshot().GetReward(ctx, id)
}

func (s *Store) ListRewards(ctx context.Context, activeOnly bool) ([]*domain.Reward, error) {
	return s.snapshot().ListRewards(ctx, activeOnly)
}

func (s *Store) CountPurchases(ctx context.Context, userID int64) (int64, error) {
	return s.snapshot().CountPurchases(ctx, userID)
}

func (s *Store) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	return s.snapshot().GetEvent(ctx, id)
}

func (s *Store) ListActiveEvents(ctx context.Context) ([]*domain.Event, error) {
	return s.snapshot().ListActiveEvents(ctx)
}

// CreateAudit implements repository.AuditLogger.
func (s *Store) CreateAudit(_ context.Context, log *domain.AuditLog) error {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	s.auditID++
	log.ID = s.auditID
	c := *log
	s.audit = append(s.audit, &c)
	return nil
}

func (s *Store) RecentAudit(_ context.Context, category string, limit int) ([]*domain.AuditLog, error) {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	var res []*domain.AuditLog
	for _, l := range slices.Backward(s.audit) {
		if category != "" && l.Category != category {
			continue
		}
		c := *l
		res = append(res, &c)
		if limit > 0 && len(res) == limit {
			break
		}
	}
	return res, nil
}

var (
	_ repository.Store       = (*Store)(nil)
	_ repository.AuditLogger = (*Store)(nil)
)
