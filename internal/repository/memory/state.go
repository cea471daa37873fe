package memory

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"divan_bot/internal/domain"
	"divan_bot/internal/repository"
)

type completionKey struct {
	userID    int64
	missionID string
	targetKey string
}

type grantKey struct {
	userID        int64
	achievementID string
}

// state is one committed snapshot. Entries are replaced, never mutated in
// place, so a snapshot stays valid after a newer one is committed.
type state struct {
	nextUserID   int64
	nextLogID    int64
	nextRewardID int64
	nextEventID  int64

	users       map[int64]*domain.User
	byTgID      map[int64]int64
	logs        []*domain.PointLog
	missions    map[string]*domain.Mission
	completions map[completionKey]*domain.MissionCompletion
	grants      map[grantKey]*domain.AchievementGrant
	rewards     map[int64]*domain.Reward
	purchases   []*domain.Purchase
	events      map[int64]*domain.Event
}

func newState() *state {
	return &state{
		users:       map[int64]*domain.User{},
		byTgID:      map[int64]int64{},
		missions:    map[string]*domain.Mission{},
		completions: map[completionKey]*domain.MissionCompletion{},
		grants:      map[grantKey]*domain.AchievementGrant{},
		rewards:     map[int64]*domain.Reward{},
		events:      map[int64]*domain.Event{},
	}
}

func (s *state) clone() *state {
	c := *s
	c.users = maps.Clone(s.users)
	c.byTgID = maps.Clone(s.byTgID)
	c.logs = slices.Clip(s.logs)
	c.missions = maps.Clone(s.missions)
	c.completions = maps.Clone(s.completions)
	c.grants = maps.Clone(s.grants)
	c.rewards = maps.Clone(s.rewards)
	c.purchases = slices.Clip(s.purchases)
	c.events = maps.Clone(s.events)
	return &c
}

// users

func (s *state) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *state) GetUserByTgID(ctx context.Context, tgID int64) (*domain.User, error) {
	id, ok := s.byTgID[tgID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}

func (s *state) FindUser(ctx context.Context, identifier string) (*domain.User, error) {
	identifier = strings.TrimPrefix(strings.TrimSpace(identifier), "@")
	if n, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		if u, err := s.GetUserByTgID(ctx, n); err == nil {
			return u, nil
		}
		if u, err := s.GetUserByID(ctx, n); err == nil {
			return u, nil
		}
	}
	for _, id := range slices.Sorted(maps.Keys(s.users)) {
		if u := s.users[id]; u.Username != "" && strings.EqualFold(u.Username, identifier) {
			return u.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *state) LockUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.GetUserByID(ctx, id)
}

func (s *state) UpsertUser(_ context.Context, u *domain.User) (*domain.User, error) {
	if id, ok := s.byTgID[u.TgID]; ok {
		cur := s.users[id].Clone()
		if u.Username != "" {
			cur.Username = u.Username
		}
		if u.FirstName != "" {
			cur.FirstName = u.FirstName
		}
		s.users[id] = cur
		return cur.Clone(), nil
	}

	s.nextUserID++
	nu := &domain.User{
		ID:        s.nextUserID,
		TgID:      u.TgID,
		Username:  u.Username,
		FirstName: u.FirstName,
		Level:     1,
		CreatedAt: u.CreatedAt,
	}
	if nu.CreatedAt.IsZero() {
		nu.CreatedAt = time.Now()
	}
	s.users[nu.ID] = nu
	s.byTgID[nu.TgID] = nu.ID
	return nu.Clone(), nil
}

func (s *state) SaveUserProgress(_ context.Context, u *domain.User) error {
	cur, ok := s.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	next := cur.Clone()
	next.Points = u.Points
	next.Level = u.Level
	next.WeeklyStreak = u.WeeklyStreak
	s.users[u.ID] = next
	return nil
}

func (s *state) ResetWeeklyStreaks(_ context.Context, keep []int64) (int64, error) {
	var n int64
	for id, u := range s.users {
		if u.WeeklyStreak == 0 || slices.Contains(keep, id) {
			continue
		}
		next := u.Clone()
		next.WeeklyStreak = 0
		s.users[id] = next
		n++
	}
	return n, nil
}

func (s *state) ResetSeason(_ context.Context) (int64, error) {
	s.grants = map[grantKey]*domain.AchievementGrant{}
	s.completions = map[completionKey]*domain.MissionCompletion{}
	s.logs = nil
	for id, u := range s.users {
		next := u.Clone()
		next.Points = 0
		next.Level = 1
		next.WeeklyStreak = 0
		s.users[id] = next
	}
	return int64(len(s.users)), nil
}

func (s *state) TopUsers(_ context.Context, limit int) ([]*domain.User, error) {
	res := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		res = append(res, u.Clone())
	}
	slices.SortFunc(res, func(a, b *domain.User) int {
		if a.Points != b.Points {
			if a.Points > b.Points {
				return -1
			}
			return 1
		}
		return int(a.ID - b.ID)
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *state) ListUserIDs(_ context.Context) ([]int64, error) {
	return slices.Sorted(maps.Keys(s.users)), nil
}

func (s *state) ActiveUserIDsSince(_ context.Context, since time.Time) ([]int64, error) {
	seen := map[int64]struct{}{}
	for _, l := range s.logs {
		if l.Delta <= 0 || l.CreatedAt.Before(since) {
			continue
		}
		switch l.ActionType {
		case domain.ActionStreakBonus, domain.ActionMonthBonus, domain.ActionMilestoneBonus:
			continue
		}
		seen[l.UserID] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

func (s *state) Stats(_ context.Context, dayStart, weekStart time.Time) (*domain.Stats, error) {
	st := &domain.Stats{TotalUsers: int64(len(s.users))}
	for _, u := range s.users {
		st.TotalPoints += u.Points
	}
	today, week := map[int64]struct{}{}, map[int64]struct{}{}
	for _, l := range s.logs {
		if !l.CreatedAt.Before(dayStart) {
			today[l.UserID] = struct{}{}
			if l.Delta > 0 {
				st.PointsGrantedToday += l.Delta
			}
		}
		if !l.CreatedAt.Before(weekStart) {
			week[l.UserID] = struct{}{}
		}
	}
	st.ActiveUsersToday = int64(len(today))
	st.ActiveUsersWeek = int64(len(week))
	for _, c := range s.completions {
		st.MissionsCompleted++
		if !c.CompletedAt.Before(dayStart) {
			st.CompletionsToday++
		}
	}
	st.PurchasesTotal = int64(len(s.purchases))
	for _, m := range s.missions {
		if m.IsActive {
			st.ActiveMissions++
		}
	}
	for _, r := range s.rewards {
		if r.IsActive {
			st.ActiveRewards++
		}
	}
	for _, e := range s.events {
		if e.IsActive {
			st.ActiveEvents++
		}
	}
	st.AchievementsGranted = int64(len(s.grants))
	return st, nil
}

// point logs

func (s *state) InsertPointLog(_ context.Context, l *domain.PointLog) error {
	s.nextLogID++
	l.ID = s.nextLogID
	c := *l
	s.logs = append(s.logs, &c)
	return nil
}

func (s *state) SumPoints(_ context.Context, userID int64, actionType string, from, to time.Time) (int64, error) {
	var total int64
	for _, l := range s.logs {
		if l.UserID != userID || l.ActionType != actionType || l.Delta <= 0 {
			continue
		}
		if l.CreatedAt.Before(from) || !l.CreatedAt.Before(to) {
			continue
		}
		total += l.Delta
	}
	return total, nil
}

func (s *state) CountPointLogs(_ context.Context, userID int64) (int64, error) {
	var n int64
	for _, l := range s.logs {
		if l.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *state) ListPointLogs(_ context.Context, userID int64, limit int) ([]*domain.PointLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var res []*domain.PointLog
	for i := len(s.logs) - 1; i >= 0 && len(res) < limit; i-- {
		if l := s.logs[i]; l.UserID == userID {
			c := *l
			res = append(res, &c)
		}
	}
	slices.SortStableFunc(res, func(a, b *domain.PointLog) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return res, nil
}

// missions

func (s *state) GetMission(_ context.Context, id string) (*domain.Mission, error) {
	m, ok := s.missions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *state) ListMissions(_ context.Context, activeOnly bool) ([]*domain.Mission, error) {
	var res []*domain.Mission
	for _, m := range s.missions {
		if activeOnly && !m.IsActive {
			continue
		}
		res = append(res, m.Clone())
	}
	slices.SortFunc(res, func(a, b *domain.Mission) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return res, nil
}

func (s *state) CreateMission(_ context.Context, m *domain.Mission) error {
	if _, ok := s.missions[m.ID]; ok {
		return repository.ErrConflict
	}
	s.missions[m.ID] = m.Clone()
	return nil
}

func (s *state) SetMissionActive(_ context.Context, id string, active bool) error {
	m, ok := s.missions[id]
	if !ok {
		return repository.ErrNotFound
	}
	next := m.Clone()
	next.IsActive = active
	s.missions[id] = next
	return nil
}

func (s *state) ListCompletions(_ context.Context, userID int64) ([]*domain.MissionCompletion, error) {
	var res []*domain.MissionCompletion
	for k, c := range s.completions {
		if k.userID == userID {
			cc := *c
			res = append(res, &cc)
		}
	}
	slices.SortFunc(res, func(a, b *domain.MissionCompletion) int { return b.CompletedAt.Compare(a.CompletedAt) })
	return res, nil
}

func (s *state) GetCompletion(_ context.Context, userID int64, missionID, targetKey string) (*domain.MissionCompletion, error) {
	c, ok := s.completions[completionKey{userID, missionID, targetKey}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cc := *c
	return &cc, nil
}

func (s *state) CountCompletions(_ context.Context, userID int64, cadence domain.Cadence) (int64, error) {
	var n int64
	for k := range s.completions {
		if k.userID != userID {
			continue
		}
		if cadence != "" {
			m, ok := s.missions[k.missionID]
			if !ok || m.Cadence != cadence {
				continue
			}
		}
		n++
	}
	return n, nil
}

func (s *state) SaveCompletion(_ context.Context, c *domain.MissionCompletion) error {
	cc := *c
	s.completions[completionKey{c.UserID, c.MissionID, c.TargetKey}] = &cc
	return nil
}

// achievements

func (s *state) ListGrants(_ context.Context, userID int64) ([]*domain.AchievementGrant, error) {
	var res []*domain.AchievementGrant
	for k, g := range s.grants {
		if k.userID == userID {
			gg := *g
			res = append(res, &gg)
		}
	}
	slices.SortFunc(res, func(a, b *domain.AchievementGrant) int {
		if c := b.GrantedAt.Compare(a.GrantedAt); c != 0 {
			return c
		}
		return strings.Compare(a.AchievementID, b.AchievementID)
	})
	return res, nil
}

func (s *state) InsertGrant(_ context.Context, g *domain.AchievementGrant) (bool, error) {
	k := grantKey{g.UserID, g.AchievementID}
	if _, ok := s.grants[k]; ok {
		return false, nil
	}
	gg := *g
	s.grants[k] = &gg
	return true, nil
}

// rewards

func (s *state) GetReward(_ context.Context, id int64) (*domain.Reward, error) {
	r, ok := s.rewards[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *state) LockReward(ctx context.Context, id int64) (*domain.Reward, error) {
	return s.GetReward(ctx, id)
}

func (s *state) ListRewards(_ context.Context, activeOnly bool) ([]*domain.Reward, error) {
	var res []*domain.Reward
	for _, r := range s.rewards {
		if activeOnly && !r.IsActive {
			continue
		}
		res = append(res, r.Clone())
	}
	slices.SortFunc(res, func(a, b *domain.Reward) int {
		if a.Cost != b.Cost {
			return int(a.Cost - b.Cost)
		}
		return int(a.ID - b.ID)
	})
	return res, nil
}

func (s *state) CreateReward(_ context.Context, r *domain.Reward) error {
	s.nextRewardID++
	r.ID = s.nextRewardID
	s.rewards[r.ID] = r.Clone()
	return nil
}

func (s *state) UpdateReward(_ context.Context, r *domain.Reward) error {
	cur, ok := s.rewards[r.ID]
	if !ok {
		return repository.ErrNotFound
	}
	next := r.Clone()
	next.CreatedAt = cur.CreatedAt
	s.rewards[r.ID] = next
	return nil
}

func (s *state) InsertPurchase(_ context.Context, p *domain.Purchase) error {
	c := *p
	s.purchases = append(s.purchases, &c)
	return nil
}

func (s *state) CountPurchases(_ context.Context, userID int64) (int64, error) {
	var n int64
	for _, p := range s.purchases {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

// events

func (s *state) GetEvent(_ context.Context, id int64) (*domain.Event, error) {
	e, ok := s.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *state) ListActiveEvents(_ context.Context) ([]*domain.Event, error) {
	var res []*domain.Event
	for _, e := range s.events {
		if e.IsActive {
			res = append(res, e.Clone())
		}
	}
	slices.SortFunc(res, func(a, b *domain.Event) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
	return res, nil
}

func (s *state) CreateEvent(_ context.Context, e *domain.Event) error {
	s.nextEventID++
	e.ID = s.nextEventID
	s.events[e.ID] = e.Clone()
	return nil
}

func (s *state) DeactivateEvent(_ context.Context, id int64) (bool, error) {
	e, ok := s.events[id]
	if !ok || !e.IsActive {
		return false, nil
	}
	next := e.Clone()
	next.IsActive = false
	s.events[id] = next
	return true, nil
}

var _ repository.Tx = (*state)(nil)
