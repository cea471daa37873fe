package domain

import "time"

// Event is a global point multiplier. A nil EndTime never expires.
type Event struct {
	ID          int64      `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	Multiplier  int64      `db:"multiplier" json:"multiplier"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	StartTime   time.Time  `db:"start_time" json:"start_time"`
	EndTime     *time.Time `db:"end_time" json:"end_time,omitempty"`
}

// Expired reports whether the end time has passed at now.
func (e *Event) Expired(now time.Time) bool {
	return e.EndTime != nil && !now.Before(*e.EndTime)
}

// Applies reports whether the event scales grants made at now.
func (e *Event) Applies(now time.Time) bool {
	return e.IsActive && !now.Before(e.StartTime) && !e.Expired(now)
}

// Window returns the event bounds for event-bound missions.
func (e *Event) Window() *EventWindow {
	return &EventWindow{Start: e.StartTime, End: e.EndTime}
}

func (e *Event) Clone() *Event {
	c := *e
	if e.EndTime != nil {
		t := *e.EndTime
		c.EndTime = &t
	}
	return &c
}
