package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"divan_bot/internal/domain"
	"divan_bot/internal/logger"
	"divan_bot/internal/repository"
)

// AdminService provides admin statistics and operations. Every mutation is
// written to the audit log.
type AdminService struct {
	deps     Deps
	ledger   *PointLedger
	levels   *LevelResolver
	missions *MissionEngine
	rewards  *RewardStore
	events   *EventMultiplier
	audit    *AuditService
	log      *slog.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(deps Deps, ledger *PointLedger, levels *LevelResolver, missions *MissionEngine,
	rewards *RewardStore, events *EventMultiplier, audit *AuditService) *AdminService {
	return &AdminService{
		deps:     deps.normalize(),
		ledger:   ledger,
		levels:   levels,
		missions: missions,
		rewards:  rewards,
		events:   events,
		audit:    audit,
		log:      logger.With("component", "admin"),
	}
}

// GetStats returns platform statistics
func (s *AdminService) GetStats(ctx context.Context) (*domain.Stats, error) {
	ctx, cancel := s.deps.withTimeout(ctx)
	defer cancel()
	now := s.deps.Clock.Now()
	st, err := s.deps.Store.Stats(ctx, dayStart(now, s.deps.Location), weekStart(now, s.deps.Location))
	if err != nil {
		logFailure(s.log, "stats", err)
		return nil, err
	}
	return st, nil
}

// UserInfo represents user information for admin
type UserInfo struct {
	User         *domain.User       `json:"user"`
	Level        domain.Level       `json:"level"`
	Achievements int                `json:"achievements"`
	Completions  int64              `json:"completions"`
	Purchases    int64              `json:"purchases"`
	RecentLogs   []*domain.PointLog `json:"recent_logs"`
}

// GetUser resolves an internal id, telegram id or @username.
func (s *AdminService) GetUser(ctx context.Context, identifier string) (*UserInfo, error) {
	ctx, cancel := s.deps.withTimeout(ctx)
	defer cancel()

	u, err := s.deps.Store.FindUser(ctx, identifier)
	if err != nil {
		return nil, userErr(err)
	}
	info := &UserInfo{User: u, Level: s.levels.Level(u.Level)}
	grants, err := s.deps.Store.ListGrants(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	info.Achievements = len(grants)
	if info.Completions, err = s.deps.Store.CountCompletions(ctx, u.ID, ""); err != nil {
		return nil, err
	}
	if info.Purchases, err = s.deps.Store.CountPurchases(ctx, u.ID); err != nil {
		return nil, err
	}
	if info.RecentLogs, err = s.deps.Store.ListPointLogs(ctx, u.ID, 5); err != nil {
		return nil, err
	}
	return info, nil
}

// ResolveUserIdentifier resolves @username, tg_id or id to the internal user ID
func (s *AdminService) ResolveUserIdentifier(ctx context.Context, identifier string) (int64, error) {
	ctx, cancel := s.deps.withTimeout(ctx)
	defer cancel()
	u, err := s.deps.Store.FindUser(ctx, identifier)
	if err != nil {
		return 0, userErr(err)
	}
	return u.ID, nil
}

// AdjustPoints grants a positive delta as a forced admin grant or deducts a
// negative one. It returns the new balance.
func (s *AdminService) AdjustPoints(ctx context.Context, adminID int64, identifier string, delta int64, reason string) (int64, error) {
	if delta == 0 {
		return 0, ErrInvalidAmount
	}
	userID, err := s.ResolveUserIdentifier(ctx, identifier)
	if err != nil {
		return 0, err
	}
	if reason == "" {
		reason = "Ajuste de administrador"
	}

	var (
		balance int64
		action  string
	)
	if delta > 0 {
		res, err := s.ledger.Grant(ctx, GrantRequest{
			UserID:      userID,
			Amount:      delta,
			ActionType:  domain.ActionAdmin,
			Description: reason,
			Forced:      true,
		})
		if err != nil {
			return 0, err
		}
		balance, action = res.Balance, domain.AuditActionAdminAddPoints
	} else {
		if balance, err = s.ledger.Deduct(ctx, userID, -delta, domain.ActionAdmin, reason); err != nil {
			return 0, err
		}
		action = domain.AuditActionAdminDeductPoints
	}

	s.audit.LogAdminAction(ctx, adminID, action, domain.AuditCategoryPoints, userID, map[string]any{
		"delta":   delta,
		"reason":  reason,
		"balance": balance,
	})
	return balance, nil
}

// SetPoints overrides a balance and recomputes the level.
func (s *AdminService) SetPoints(ctx context.Context, adminID int64, identifier string, balance int64, reason string) (*domain.User, error) {
	userID, err := s.ResolveUserIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "Saldo fijado por administrador"
	}
	u, err := s.ledger.Override(ctx, userID, balance, reason)
	if err != nil {
		return nil, err
	}
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionAdminSetPoints, domain.AuditCategoryPoints, userID, map[string]any{
		"balance": balance,
		"reason":  reason,
	})
	return u, nil
}

// ResetSeason zeroes every user's points, level and streak and clears their
// achievements, completions and point history.
func (s *AdminService) ResetSeason(ctx context.Context, adminID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 4*s.deps.Timeout)
	defer cancel()

	var n int64
	err := s.deps.Store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		n, err = tx.ResetSeason(ctx)
		return err
	})
	if err != nil {
		logFailure(s.log, "reset_season", err, "admin_id", adminID)
		return 0, fmt.Errorf("reset season: %w", err)
	}
	s.log.Warn("season reset", "admin_id", adminID, "users", n)
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionSeasonReset, domain.AuditCategoryAdmin, 0, map[string]any{
		"users": n,
	})
	return n, nil
}

func (s *AdminService) CreateMission(ctx context.Context, adminID int64, in NewMission) (*domain.Mission, error) {
	m, err := s.missions.CreateMission(ctx, in)
	if err != nil {
		return nil, err
	}
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionMissionCreate, domain.AuditCategoryMission, 0, map[string]any{
		"mission_id": m.ID,
		"cadence":    m.Cadence,
		"points":     m.PointsReward,
	})
	return m, nil
}

func (s *AdminService) ToggleMission(ctx context.Context, adminID int64, id string, active bool) (*domain.Mission, error) {
	m, err := s.missions.ToggleMissionStatus(ctx, id, active)
	if err != nil {
		return nil, err
	}
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionMissionToggle, domain.AuditCategoryMission, 0, map[string]any{
		"mission_id": id,
		"active":     active,
	})
	return m, nil
}

func (s *AdminService) CreateReward(ctx context.Context, adminID int64, in NewReward) (*domain.Reward, error) {
	r, err := s.rewards.CreateReward(ctx, in)
	if err != nil {
		return nil, err
	}
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionRewardCreate, domain.AuditCategoryReward, 0, map[string]any{
		"reward_id": r.ID,
		"cost":      r.Cost,
	})
	return r, nil
}

func (s *AdminService) UpdateReward(ctx context.Context, adminID, id int64, patch RewardPatch) (*domain.Reward, error) {
	r, err := s.rewards.UpdateReward(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionRewardUpdate, domain.AuditCategoryReward, 0, map[string]any{
		"reward_id": id,
		"active":    r.IsActive,
		"cost":      r.Cost,
	})
	return r, nil
}

func (s *AdminService) ActivateEvent(ctx context.Context, adminID int64, name, description string, multiplier int64, duration time.Duration) (*domain.Event, error) {
	e, err := s.events.Activate(ctx, name, description, multiplier, duration)
	if err != nil {
		return nil, err
	}
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionEventActivate, domain.AuditCategoryEvent, 0, map[string]any{
		"event_id":   e.ID,
		"multiplier": e.Multiplier,
		"hours":      duration.Hours(),
	})
	return e, nil
}

func (s *AdminService) StopEvent(ctx context.Context, adminID, id int64) (*domain.Event, error) {
	e, err := s.events.Deactivate(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionEventStop, domain.AuditCategoryEvent, 0, map[string]any{
		"event_id": id,
	})
	return e, nil
}

// RecentAudit returns the newest audit entries for a category.
func (s *AdminService) RecentAudit(ctx context.Context, category string, limit int) ([]*domain.AuditLog, error) {
	return s.audit.Recent(ctx, category, limit)
}
