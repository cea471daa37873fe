package domain

import "time"

// Level is one row of the level table.
type Level struct {
	Number    int    `json:"number"`
	Name      string `json:"name"`
	MinPoints int64  `json:"min_points"`
}

// LevelProgress describes how far a balance is from the next level.
type LevelProgress struct {
	Current      Level  `json:"current_level"`
	Next         *Level `json:"next_level,omitempty"`
	Points       int64  `json:"current_points"`
	PointsToNext int64  `json:"points_to_next"`
	Percent      int    `json:"percent"`
}

// AchievementGrant is a write-once fact.
type AchievementGrant struct {
	UserID        int64     `db:"user_id" json:"user_id"`
	AchievementID string    `db:"achievement_id" json:"achievement_id"`
	GrantedAt     time.Time `db:"granted_at" json:"granted_at"`
}

// GrantedAchievement is a grant joined with its display metadata.
type GrantedAchievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon"`
	Description string    `json:"description"`
	GrantedAt   time.Time `json:"granted_at"`
}
