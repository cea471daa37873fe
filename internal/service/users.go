package service

import (
	"context"
	"log/slog"
	"strings"

	"divan_bot/internal/domain"
	"divan_bot/internal/logger"
	"divan_bot/internal/repository"
)

// Profile is what a user sees about themselves.
type Profile struct {
	User         *domain.User                `json:"user"`
	Progress     domain.LevelProgress        `json:"progress"`
	Achievements []domain.GrantedAchievement `json:"achievements"`
}

type UserService struct {
	deps         Deps
	levels       *LevelResolver
	achievements *AchievementEvaluator
	log          *slog.Logger
}

func NewUserService(deps Deps, levels *LevelResolver, achievements *AchievementEvaluator) *UserService {
	return &UserService{
		deps:         deps.normalize(),
		levels:       levels,
		achievements: achievements,
		log:          logger.With("component", "users"),
	}
}

// EnsureUser creates the user on first contact and refreshes the profile
// fields afterwards. Progress is never touched.
func (s *UserService) EnsureUser(ctx context.Context, tgID int64, username, firstName string) (*domain.User, error) {
	ctx, cancel := s.deps.withTimeout(ctx)
	defer cancel()

	var u *domain.User
	err := s.deps.Store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		u, err = tx.UpsertUser(ctx, &domain.User{
			TgID:      tgID,
			Username:  strings.TrimPrefix(username, "@"),
			FirstName: firstName,
			CreatedAt: s.deps.Clock.Now(),
		})
		return err
	})
	if err != nil {
		logFailure(s.log, "ensure_user", err, "tg_id", tgID)
		return nil, err
	}
	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	ctx, cancel := s.deps.withTimeout(ctx)
	defer cancel()
	u, err := s.deps.Store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, userErr(err)
	}
	return u, nil
}

func (s *UserService) GetUserByTgID(ctx context.Context, tgID int64) (*domain.User, error) {
	ctx, cancel := s.deps.withTimeout(ctx)
	defer cancel()
	u, err := s.deps.Store.GetUserByTgID(ctx, tgID)
	if err != nil {
		return nil, userErr(err)
	}
	return u, nil
}

func (s *UserService) Profile(ctx context.Context, userID int64) (*Profile, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	achievements, err := s.achievements.GetGranted(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{
		User:         u,
		Progress:     s.levels.Progress(u.Points),
		Achievements: achievements,
	}, nil
}

// History returns the newest point log entries.
func (s *UserService) History(ctx context.Context, userID int64, limit int) ([]*domain.PointLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	ctx, cancel := s.deps.withTimeout(ctx)
	defer cancel()
	logs, err := s.deps.Store.ListPointLogs(ctx, userID, limit)
	if err != nil {
		logFailure(s.log, "history", err, "user_id", userID)
		return nil, err
	}
	return logs, nil
}

// Ranking returns the top users. Names are masked except for the viewer.
func (s *UserService) Ranking(ctx context.Context, viewerID int64, limit int) ([]domain.RankedUser, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	ctx, cancel := s.deps.withTimeout(ctx)
	defer cancel()
	users, err := s.deps.Store.TopUsers(ctx, limit)
	if err != nil {
		logFailure(s.log, "ranking", err)
		return nil, err
	}
	res := make([]domain.RankedUser, 0, len(users))
	for i, u := range users {
		name := u.DisplayName()
		if u.ID != viewerID {
			name = MaskName(name)
		}
		res = append(res, domain.RankedUser{
			Rank:   i + 1,
			UserID: u.ID,
			Name:   name,
			Points: u.Points,
			Level:  u.Level,
		})
	}
	return res, nil
}

// MaskName keeps the first letter: "Diana" -> "D*****".
func MaskName(name string) string {
	for _, r := range name {
		return string(r) + "*****"
	}
	return "*****"
}
