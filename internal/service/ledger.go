package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"divan_bot/internal/domain"
	"divan_bot/internal/logger"
	"divan_bot/internal/metrics"
	"divan_bot/internal/repository"
)

// CapPolicy decides what happens to a grant that would overflow a cap.
type CapPolicy string

const (
	CapClamp  CapPolicy = "clamp"
	CapReject CapPolicy = "reject"
)

func ParseCapPolicy(s string) (CapPolicy, error) {
	switch CapPolicy(s) {
	case CapClamp, CapReject:
		return CapPolicy(s), nil
	}
	return "", fmt.Errorf("unknown cap policy %q", s)
}

// Limits caps non-forced grants per action type. Daily windows start at
// local midnight, weekly windows on Monday.
type Limits struct {
	Daily   int64
	Weekly  int64
	Actions []string
	Policy  CapPolicy
}

var DefaultLimits = Limits{
	Daily:   20,
	Weekly:  120,
	Actions: []string{domain.ActionInteraction, domain.ActionReaction},
	Policy:  CapClamp,
}

// MaxBalance bounds every balance and therefore every single grant.
const MaxBalance int64 = 1_000_000_000

func (l Limits) applies(action string) bool {
	return (l.Daily > 0 || l.Weekly > 0) && slices.Contains(l.Actions, action)
}

type GrantRequest struct {
	UserID      int64
	Amount      int64
	ActionType  string
	Description string
	// Forced skips the caps. Admin and bonus grants are forced.
	Forced bool
	// ApplyEvents scales the amount by the active event multiplier.
	ApplyEvents bool
}

type GrantResult struct {
	UserID          int64        `json:"user_id"`
	Requested       int64        `json:"requested"`
	Granted         int64        `json:"granted"`
	Clamped         bool         `json:"clamped"`
	Multiplier      int64        `json:"multiplier"`
	Balance         int64        `json:"balance"`
	PreviousLevel   int          `json:"previous_level"`
	Level           domain.Level `json:"level"`
	LeveledUp       bool         `json:"leveled_up"`
	NewAchievements []string     `json:"new_achievements,omitempty"`
}

// PointLedger owns every balance mutation.
type PointLedger struct {
	deps         Deps
	limits       Limits
	levels       *LevelResolver
	achievements *AchievementEvaluator
	events       *EventMultiplier
	log          *slog.Logger
}

func NewPointLedger(deps Deps, limits Limits, levels *LevelResolver, achievements *AchievementEvaluator, events *EventMultiplier) *PointLedger {
	if limits.Policy == "" {
		limits.Policy = CapClamp
	}
	return &PointLedger{
		deps:         deps.normalize(),
		limits:       limits,
		levels:       levels,
		achievements: achievements,
		events:       events,
		log:          logger.With("component", "point_ledger"),
	}
}

func (l *PointLedger) Limits() Limits { return l.limits }

func userErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// Grant credits points to a user. Non-forced grants of capped action types
// are clamped to, or rejected by, the remaining daily and weekly allowance.
func (l *PointLedger) Grant(ctx context.Context, req GrantRequest) (*GrantResult, error) {
	ctx, cancel := l.deps.withTimeout(ctx)
	defer cancel()

	mult := int64(1)
	if req.ApplyEvents && l.events != nil {
		var err error
		if mult, err = l.events.ActiveMultiplier(ctx); err != nil {
			logFailure(l.log, "grant", err, "user_id", req.UserID)
			return nil, err
		}
	}

	var res *GrantResult
	err := l.deps.Store.InTx(ctx, func(tx repository.Tx) error {
		u, err := tx.LockUser(ctx, req.UserID)
		if err != nil {
			return userErr(err)
		}
		res, err = l.grantTx(ctx, tx, u, req, mult, l.deps.Clock.Now())
		return err
	})
	if err != nil {
		if errors.Is(err, ErrRateLimitExceeded) {
			metrics.GrantsRejected.WithLabelValues(req.ActionType, "rejected").Inc()
		}
		logFailure(l.log, "grant", err, "user_id", req.UserID, "action_type", req.ActionType)
		return nil, err
	}
	l.publish(ctx, res, req.ActionType)
	return res, nil
}

// grantTx applies a grant to a locked user inside tx.
func (l *PointLedger) grantTx(ctx context.Context, tx repository.Tx, u *domain.User, req GrantRequest, mult int64, now time.Time) (*GrantResult, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if mult < 1 {
		mult = 1
	}
	if req.Amount > MaxBalance/mult {
		return nil, ErrAmountTooLarge
	}
	requested := req.Amount * mult
	amount := requested

	if !req.Forced && l.limits.applies(req.ActionType) {
		remaining, err := l.remaining(ctx, tx, u.ID, req.ActionType, now)
		if err != nil {
			return nil, err
		}
		switch {
		case remaining <= 0:
			return nil, ErrRateLimitExceeded
		case amount > remaining && l.limits.Policy == CapReject:
			return nil, ErrRateLimitExceeded
		case amount > remaining:
			amount = remaining
		}
	}

	if amount > MaxBalance-u.Points {
		return nil, ErrAmountTooLarge
	}
	u.Points += amount
	if err := tx.InsertPointLog(ctx, &domain.PointLog{
		UserID:      u.ID,
		Delta:       amount,
		ActionType:  req.ActionType,
		Description: req.Description,
		CreatedAt:   now,
	}); err != nil {
		return nil, fmt.Errorf("insert point log: %w", err)
	}

	prev := u.Level
	leveled := l.levels.CheckForLevelUp(u)
	if err := tx.SaveUserProgress(ctx, u); err != nil {
		return nil, fmt.Errorf("save user progress: %w", err)
	}

	res := &GrantResult{
		UserID:        u.ID,
		Requested:     requested,
		Granted:       amount,
		Clamped:       amount < requested,
		Multiplier:    mult,
		Balance:       u.Points,
		PreviousLevel: prev,
		Level:         l.levels.Level(u.Level),
		LeveledUp:     leveled,
	}
	if l.achievements != nil {
		ids, err := l.achievements.evaluateTx(ctx, tx, u, now)
		if err != nil {
			return nil, err
		}
		res.NewAchievements = ids
	}
	return res, nil
}

// remaining is the allowance left in the current day and week.
func (l *PointLedger) remaining(ctx context.Context, r repository.Reader, userID int64, action string, now time.Time) (int64, error) {
	loc := l.deps.Location
	rem := int64(-1)
	if l.limits.Daily > 0 {
		from := dayStart(now, loc)
		sum, err := r.SumPoints(ctx, userID, action, from, from.AddDate(0, 0, 1))
		if err != nil {
			return 0, fmt.Errorf("sum daily points: %w", err)
		}
		rem = l.limits.Daily - sum
	}
	if l.limits.Weekly > 0 {
		from := weekStart(now, loc)
		sum, err := r.SumPoints(ctx, userID, action, from, from.AddDate(0, 0, 7))
		if err != nil {
			return 0, fmt.Errorf("sum weekly points: %w", err)
		}
		if w := l.limits.Weekly - sum; rem < 0 || w < rem {
			rem = w
		}
	}
	return rem, nil
}

// publish runs after commit. Notification failures never affect the grant.
func (l *PointLedger) publish(ctx context.Context, res *GrantResult, action string) {
	metrics.PointsGranted.WithLabelValues(action).Add(float64(res.Granted))
	if res.Clamped {
		metrics.GrantsRejected.WithLabelValues(action, "clamped").Inc()
	}
	if res.LeveledUp {
		metrics.LevelUps.Inc()
		l.deps.notify(ctx, domain.NotifyLevelUp, res.UserID, map[string]any{
			"level":      res.Level.Number,
			"level_name": res.Level.Name,
			"balance":    res.Balance,
		})
	}
	if l.achievements != nil {
		l.achievements.announce(ctx, res.UserID, res.NewAchievements)
	}
}

// Deduct removes points. It is never capped and never lowers the level.
func (l *PointLedger) Deduct(ctx context.Context, userID, amount int64, actionType, description string) (int64, error) {
	ctx, cancel := l.deps.withTimeout(ctx)
	defer cancel()

	var balance int64
	err := l.deps.Store.InTx(ctx, func(tx repository.Tx) error {
		u, err := tx.LockUser(ctx, userID)
		if err != nil {
			return userErr(err)
		}
		if err := l.deductTx(ctx, tx, u, amount, actionType, description, l.deps.Clock.Now()); err != nil {
			return err
		}
		balance = u.Points
		return nil
	})
	if err != nil {
		logFailure(l.log, "deduct", err, "user_id", userID)
		return 0, err
	}
	metrics.PointsSpent.WithLabelValues(actionType).Add(float64(amount))
	return balance, nil
}

func (l *PointLedger) deductTx(ctx context.Context, tx repository.Tx, u *domain.User, amount int64, actionType, description string, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > u.Points {
		return ErrInsufficientPoints
	}
	u.Points -= amount
	if err := tx.InsertPointLog(ctx, &domain.PointLog{
		UserID:      u.ID,
		Delta:       -amount,
		ActionType:  actionType,
		Description: description,
		CreatedAt:   now,
	}); err != nil {
		return fmt.Errorf("insert point log: %w", err)
	}
	if err := tx.SaveUserProgress(ctx, u); err != nil {
		return fmt.Errorf("save user progress: %w", err)
	}
	return nil
}

// Override sets a balance directly and recomputes the level from scratch,
// lowering it if needed. Admin only.
func (l *PointLedger) Override(ctx context.Context, userID, balance int64, description string) (*domain.User, error) {
	if balance < 0 {
		return nil, ErrInvalidAmount
	}
	if balance > MaxBalance {
		return nil, ErrAmountTooLarge
	}
	ctx, cancel := l.deps.withTimeout(ctx)
	defer cancel()

	var out *domain.User
	err := l.deps.Store.InTx(ctx, func(tx repository.Tx) error {
		u, err := tx.LockUser(ctx, userID)
		if err != nil {
			return userErr(err)
		}
		delta := balance - u.Points
		u.Points = balance
		u.Level = l.levels.LevelFor(balance).Number
		if delta != 0 {
			if err := tx.InsertPointLog(ctx, &domain.PointLog{
				UserID:      u.ID,
				Delta:       delta,
				ActionType:  domain.ActionAdmin,
				Description: description,
				CreatedAt:   l.deps.Clock.Now(),
			}); err != nil {
				return fmt.Errorf("insert point log: %w", err)
			}
		}
		if err := tx.SaveUserProgress(ctx, u); err != nil {
			return fmt.Errorf("save user progress: %w", err)
		}
		out = u
		return nil
	})
	if err != nil {
		logFailure(l.log, "override", err, "user_id", userID)
		return nil, err
	}
	return out, nil
}
