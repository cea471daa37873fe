package domain

import "time"

// Action types recorded on point logs.
const (
	ActionInteraction    = "interaction"
	ActionReaction       = "reaction"
	ActionMission        = "mission"
	ActionPurchase       = "purchase"
	ActionRewardPurchase = "reward_purchase"
	ActionAdmin          = "admin"
	ActionStreakBonus    = "streak_bonus"
	ActionMonthBonus     = "month_bonus"
	ActionMilestoneBonus = "milestone_bonus"
)

// PointLog is an append-only balance change.
type PointLog struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Delta       int64     `db:"delta" json:"delta"`
	ActionType  string    `db:"action_type" json:"action_type"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
