package domain

import "time"

// AuditLog records an admin or security relevant action.
type AuditLog struct {
	ID        int64          `db:"id" json:"id"`
	UserID    int64          `db:"user_id" json:"user_id"`
	Action    string         `db:"action" json:"action"`
	Category  string         `db:"category" json:"category"`
	Details   map[string]any `db:"details" json:"details"`
	IP        string         `db:"ip" json:"ip,omitempty"`
	UserAgent string         `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

const (
	AuditCategoryAuth    = "auth"
	AuditCategoryPoints  = "points"
	AuditCategoryMission = "mission"
	AuditCategoryReward  = "reward"
	AuditCategoryEvent   = "event"
	AuditCategoryAdmin   = "admin"
)

const (
	AuditActionLogin = "login"

	AuditActionAdminAddPoints    = "admin_add_points"
	AuditActionAdminDeductPoints = "admin_deduct_points"
	AuditActionAdminSetPoints    = "admin_set_points"
	AuditActionSeasonReset       = "season_reset"

	AuditActionMissionCreate = "mission_create"
	AuditActionMissionToggle = "mission_toggle"
	AuditActionRewardCreate  = "reward_create"
	AuditActionRewardUpdate  = "reward_update"
	AuditActionEventActivate = "event_activate"
	AuditActionEventStop     = "event_stop"
)
