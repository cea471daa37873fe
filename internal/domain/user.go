package domain

import "time"

type User struct {
	ID           int64     `db:"id" json:"id"`
	TgID         int64     `db:"tg_id" json:"tg_id"`
	Username     string    `db:"username" json:"username"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Points       int64     `db:"points" json:"points"`
	Level        int       `db:"level" json:"level"`
	WeeklyStreak int       `db:"weekly_streak" json:"weekly_streak"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// DisplayName returns the name shown in rankings and admin replies.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return u.Username
	}
	return "Usuario"
}

// Clone returns a copy safe to hand out of a store.
func (u *User) Clone() *User {
	c := *u
	return &c
}

// RankedUser is a leaderboard row.
type RankedUser struct {
	Rank   int    `json:"rank"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Points int64  `json:"points"`
	Level  int    `json:"level"`
}

// Stats is the admin overview of the current season.
type Stats struct {
	TotalUsers          int64 `json:"total_users"`
	ActiveUsersToday    int64 `json:"active_users_today"`
	ActiveUsersWeek     int64 `json:"active_users_week"`
	TotalPoints         int64 `json:"total_points"`
	PointsGrantedToday  int64 `json:"points_granted_today"`
	MissionsCompleted   int64 `json:"missions_completed"`
	CompletionsToday    int64 `json:"completions_today"`
	PurchasesTotal      int64 `json:"purchases_total"`
	ActiveMissions      int64 `json:"active_missions"`
	ActiveRewards       int64 `json:"active_rewards"`
	ActiveEvents        int64 `json:"active_events"`
	AchievementsGranted int64 `json:"achievements_granted"`
}
