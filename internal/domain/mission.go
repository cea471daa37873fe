package domain

import (
	"fmt"
	"time"
)

// Cadence decides when a completed mission becomes available again.
type Cadence string

const (
	CadenceOneTime  Cadence = "one_time"
	CadenceDaily    Cadence = "daily"
	CadenceWeekly   Cadence = "weekly"
	CadenceEvent    Cadence = "event"
	CadenceReaction Cadence = "reaction"
)

// Cadences lists every valid cadence in display order.
var Cadences = []Cadence{CadenceOneTime, CadenceDaily, CadenceWeekly, CadenceEvent, CadenceReaction}

// ParseCadence validates a cadence name.
func ParseCadence(s string) (Cadence, error) {
	for _, c := range Cadences {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown mission cadence %q", s)
}

// DailyCooldown is how long a daily mission stays completed.
const DailyCooldown = 24 * time.Hour

// MissionAction carries trigger data for missions completed by an action.
type MissionAction struct {
	TargetMessageID *int64 `json:"target_message_id,omitempty"`
}

type Mission struct {
	ID             string         `db:"id" json:"id"`
	Name           string         `db:"name" json:"name"`
	Description    string         `db:"description" json:"description"`
	PointsReward   int64          `db:"points_reward" json:"points_reward"`
	Cadence        Cadence        `db:"cadence" json:"type"`
	IsActive       bool           `db:"is_active" json:"is_active"`
	RequiresAction bool           `db:"requires_action" json:"requires_action"`
	Action         *MissionAction `db:"action_data" json:"action_data,omitempty"`
	EventID        *int64         `db:"event_id" json:"event_id,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// TargetMessageID returns the fixed message a reaction mission is bound to, if any.
func (m *Mission) TargetMessageID() (int64, bool) {
	if m.Action == nil || m.Action.TargetMessageID == nil {
		return 0, false
	}
	return *m.Action.TargetMessageID, true
}

// EventWindow bounds an event-bound mission.
type EventWindow struct {
	Start time.Time
	End   *time.Time
}

// CompletedForPeriod reports whether a completion at last still blocks the
// mission at now. loc is the calendar used for weekly boundaries.
func (m *Mission) CompletedForPeriod(last, now time.Time, window *EventWindow, loc *time.Location) bool {
	switch m.Cadence {
	case CadenceOneTime, CadenceReaction:
		// reaction completions are keyed per message, any record blocks that message
		return true
	case CadenceDaily:
		return now.Sub(last) < DailyCooldown
	case CadenceWeekly:
		return SameISOWeek(last, now, loc)
	case CadenceEvent:
		if window == nil {
			return true
		}
		return !last.Before(window.Start)
	default:
		panic(fmt.Sprintf("unhandled mission cadence %q", m.Cadence))
	}
}

// SameISOWeek reports whether a and b fall in the same Monday-based week.
func SameISOWeek(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	ay, aw := a.In(loc).ISOWeek()
	by, bw := b.In(loc).ISOWeek()
	return ay == by && aw == bw
}

// MissionCompletion is the last completion of a mission by a user. TargetKey
// is the message id for reaction missions and empty otherwise.
type MissionCompletion struct {
	UserID      int64     `db:"user_id" json:"user_id"`
	MissionID   string    `db:"mission_id" json:"mission_id"`
	TargetKey   string    `db:"target_key" json:"target_key,omitempty"`
	CompletedAt time.Time `db:"completed_at" json:"completed_at"`
}

func (m *Mission) Clone() *Mission {
	c := *m
	if m.Action != nil {
		a := *m.Action
		if a.TargetMessageID != nil {
			id := *a.TargetMessageID
			a.TargetMessageID = &id
		}
		c.Action = &a
	}
	if m.EventID != nil {
		id := *m.EventID
		c.EventID = &id
	}
	return &c
}
