package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"divan_bot/internal/domain"
	"divan_bot/internal/logger"
	"divan_bot/internal/metrics"
	"divan_bot/internal/repository"
)

// AchievementSubject is the user state achievement predicates look at.
type AchievementSubject struct {
	User      *domain.User
	PointLogs int64
	Missions  int64
	Reactions int64
	Purchases int64
	Now       time.Time
}

// Achievement is a static badge definition. Check must be pure.
type Achievement struct {
	ID          string
	Name        string
	Icon        string
	Description string
	Check       func(s AchievementSubject) bool
}

const veteranAge = 180 * 24 * time.Hour

var DefaultAchievements = []Achievement{
	{
		ID: "veterano_intimo", Name: "Veterano Íntimo", Icon: "🏆",
		Description: "Seis meses en El Diván",
		Check: func(s AchievementSubject) bool {
			return !s.User.CreatedAt.IsZero() && s.Now.Sub(s.User.CreatedAt) >= veteranAge
		},
	},
	{
		ID: "big_spender_vip", Name: "Big Spender VIP", Icon: "💎",
		Description: "Acumula 500 puntos",
		Check:       func(s AchievementSubject) bool { return s.User.Points >= 500 },
	},
	{
		ID: "fan_leal", Name: "Fan Leal", Icon: "❤️",
		Description: "50 movimientos de puntos",
		Check:       func(s AchievementSubject) bool { return s.PointLogs >= 50 },
	},
	{
		ID: "first_mission", Name: "Primera Misión", Icon: "🎯",
		Description: "Completa tu primera misión",
		Check:       func(s AchievementSubject) bool { return s.Missions >= 1 },
	},
	{
		ID: "first_purchase", Name: "Primer Canje", Icon: "🛍️",
		Description: "Canjea tu primera recompensa",
		Check:       func(s AchievementSubject) bool { return s.Purchases >= 1 },
	},
	{
		ID: "reaccionador", Name: "Reaccionador", Icon: "🔥",
		Description: "Reacciona a 10 publicaciones",
		Check:       func(s AchievementSubject) bool { return s.Reactions >= 10 },
	},
}

type AchievementEvaluator struct {
	deps    Deps
	catalog []Achievement
	byID    map[string]Achievement
	log     *slog.Logger
}

func NewAchievementEvaluator(deps Deps, catalog []Achievement) (*AchievementEvaluator, error) {
	byID := make(map[string]Achievement, len(catalog))
	for _, a := range catalog {
		if a.ID == "" || a.Check == nil {
			return nil, fmt.Errorf("achievement %q needs an id and a check", a.ID)
		}
		if _, dup := byID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate achievement %q", a.ID)
		}
		byID[a.ID] = a
	}
	return &AchievementEvaluator{
		deps:    deps.normalize(),
		catalog: append([]Achievement(nil), catalog...),
		byID:    byID,
		log:     logger.With("component", "achievements"),
	}, nil
}

func (e *AchievementEvaluator) Catalog() []Achievement {
	return append([]Achievement(nil), e.catalog...)
}

func (e *AchievementEvaluator) subject(ctx context.Context, r repository.Reader, u *domain.User, now time.Time) (AchievementSubject, error) {
	s := AchievementSubject{User: u, Now: now}
	var err error
	if s.PointLogs, err = r.CountPointLogs(ctx, u.ID); err != nil {
		return s, err
	}
	if s.Missions, err = r.CountCompletions(ctx, u.ID, ""); err != nil {
		return s, err
	}
	if s.Reactions, err = r.CountCompletions(ctx, u.ID, domain.CadenceReaction); err != nil {
		return s, err
	}
	if s.Purchases, err = r.CountPurchases(ctx, u.ID); err != nil {
		return s, err
	}
	return s, nil
}

// evaluateTx grants every achievement whose predicate now holds and that the
// user does not own yet. It returns the ids granted by this call.
func (e *AchievementEvaluator) evaluateTx(ctx context.Context, tx repository.Tx, u *domain.User, now time.Time) ([]string, error) {
	grants, err := tx.ListGrants(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	owned := make(map[string]bool, len(grants))
	for _, g := range grants {
		owned[g.AchievementID] = true
	}

	var (
		subj    AchievementSubject
		loaded  bool
		granted []string
	)
	for _, a := range e.catalog {
		if owned[a.ID] {
			continue
		}
		if !loaded {
			if subj, err = e.subject(ctx, tx, u, now); err != nil {
				return nil, fmt.Errorf("load achievement subject: %w", err)
			}
			loaded = true
		}
		if !a.Check(subj) {
			continue
		}
		inserted, err := tx.InsertGrant(ctx, &domain.AchievementGrant{UserID: u.ID, AchievementID: a.ID, GrantedAt: now})
		if err != nil {
			return nil, fmt.Errorf("insert grant %s: %w", a.ID, err)
		}
		if inserted {
			granted = append(granted, a.ID)
		}
	}
	return granted, nil
}

// EvaluateAndGrant runs the evaluator in its own transaction.
func (e *AchievementEvaluator) EvaluateAndGrant(ctx context.Context, userID int64) ([]string, error) {
	ctx, cancel := e.deps.withTimeout(ctx)
	defer cancel()

	var granted []string
	err := e.deps.Store.InTx(ctx, func(tx repository.Tx) error {
		u, err := tx.LockUser(ctx, userID)
		if err != nil {
			return userErr(err)
		}
		granted, err = e.evaluateTx(ctx, tx, u, e.deps.Clock.Now())
		return err
	})
	if err != nil {
		logFailure(e.log, "evaluate_achievements", err, "user_id", userID)
		return nil, err
	}
	e.announce(ctx, userID, granted)
	return granted, nil
}

func (e *AchievementEvaluator) announce(ctx context.Context, userID int64, ids []string) {
	for _, id := range ids {
		metrics.AchievementsGranted.WithLabelValues(id).Inc()
		a := e.byID[id]
		e.deps.notify(ctx, domain.NotifyAchievement, userID, map[string]any{
			"achievement_id": id,
			"name":           a.Name,
			"icon":           a.Icon,
		})
	}
}

// GetGranted returns the user's achievements, newest first. Grants whose
// definition was removed are skipped.
func (e *AchievementEvaluator) GetGranted(ctx context.Context, userID int64) ([]domain.GrantedAchievement, error) {
	ctx, cancel := e.deps.withTimeout(ctx)
	defer cancel()

	grants, err := e.deps.Store.ListGrants(ctx, userID)
	if err != nil {
		logFailure(e.log, "get_granted", err, "user_id", userID)
		return nil, err
	}
	res := make([]domain.GrantedAchievement, 0, len(grants))
	for _, g := range grants {
		a, ok := e.byID[g.AchievementID]
		if !ok {
			continue
		}
		res = append(res, domain.GrantedAchievement{
			ID:          a.ID,
			Name:        a.Name,
			Icon:        a.Icon,
			Description: a.Description,
			GrantedAt:   g.GrantedAt,
		})
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].GrantedAt.After(res[j].GrantedAt) })
	return res, nil
}
