package domain

import "time"

const (
	NotifyLevelUp       = "level_up"
	NotifyAchievement   = "achievement"
	NotifyEventStarted  = "event_started"
	NotifyEventEnded    = "event_ended"
	NotifyMissionDone   = "mission_completed"
	NotifyRewardClaimed = "reward_purchased"
)

// Notification is pushed to realtime clients and the channel. UserID 0
// addresses everybody.
type Notification struct {
	Type      string         `json:"type"`
	UserID    int64          `json:"user_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
