package service

import (
	"divan_bot/internal/repository"
)

// Services is the wired set of components used by the transports.
type Services struct {
	Levels       *LevelResolver
	Achievements *AchievementEvaluator
	Events       *EventMultiplier
	Ledger       *PointLedger
	Missions     *MissionEngine
	Rewards      *RewardStore
	Bonus        *BonusService
	Users        *UserService
	Audit        *AuditService
	Admin        *AdminService
}

// New wires every component over one store with the default level table
// and achievement catalog.
func New(deps Deps, limits Limits, audit repository.AuditLogger) (*Services, error) {
	deps = deps.normalize()

	levels, err := NewLevelResolver(DefaultLevels)
	if err != nil {
		return nil, err
	}
	achievements, err := NewAchievementEvaluator(deps, DefaultAchievements)
	if err != nil {
		return nil, err
	}

	s := &Services{Levels: levels, Achievements: achievements}
	s.Events = NewEventMultiplier(deps)
	s.Ledger = NewPointLedger(deps, limits, levels, achievements, s.Events)
	s.Missions = NewMissionEngine(deps, s.Ledger, s.Events)
	s.Rewards = NewRewardStore(deps, s.Ledger)
	s.Bonus = NewBonusService(deps, s.Ledger)
	s.Users = NewUserService(deps, levels, achievements)
	s.Audit = NewAuditService(audit, deps.Clock)
	s.Admin = NewAdminService(deps, s.Ledger, levels, s.Missions, s.Rewards, s.Events, s.Audit)
	return s, nil
}
