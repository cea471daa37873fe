package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"divan_bot/internal/domain"
	"divan_bot/internal/logger"
	"divan_bot/internal/metrics"
	"divan_bot/internal/repository"
)

// EventMultiplier manages time-bounded global multipliers. Active
// multipliers combine by max.
type EventMultiplier struct {
	deps Deps
	log  *slog.Logger
}

func NewEventMultiplier(deps Deps) *EventMultiplier {
	return &EventMultiplier{deps: deps.normalize(), log: logger.With("component", "event_multiplier")}
}

// ActiveMultiplier returns the largest multiplier among events that apply
// now, or 1. Expired events found on the way are deactivated first.
func (m *EventMultiplier) ActiveMultiplier(ctx context.Context) (int64, error) {
	events, err := m.ActiveEvents(ctx)
	if err != nil {
		return 0, err
	}
	return maxMultiplier(events, m.deps.Clock.Now()), nil
}

func maxMultiplier(events []*domain.Event, now time.Time) int64 {
	mult := int64(1)
	for _, e := range events {
		if e.Applies(now) && e.Multiplier > mult {
			mult = e.Multiplier
		}
	}
	return mult
}

// ActiveEvents lists active, unexpired events.
func (m *EventMultiplier) ActiveEvents(ctx context.Context) ([]*domain.Event, error) {
	ctx, cancel := m.deps.withTimeout(ctx)
	defer cancel()

	events, err := m.deps.Store.ListActiveEvents(ctx)
	if err != nil {
		logFailure(m.log, "list_active_events", err)
		return nil, err
	}
	now := m.deps.Clock.Now()
	var live, expired []*domain.Event
	for _, e := range events {
		if e.Expired(now) {
			expired = append(expired, e)
			continue
		}
		live = append(live, e)
	}
	if len(expired) > 0 {
		if _, err := m.expire(ctx, expired); err != nil {
			return nil, err
		}
	}
	return live, nil
}

// expire flips the given events inactive in one transaction and announces
// the ones this call actually deactivated.
func (m *EventMultiplier) expire(ctx context.Context, events []*domain.Event) (int, error) {
	var ended []*domain.Event
	err := m.deps.Store.InTx(ctx, func(tx repository.Tx) error {
		ended = ended[:0]
		for _, e := range events {
			ok, err := tx.DeactivateEvent(ctx, e.ID)
			if err != nil {
				return fmt.Errorf("deactivate event %d: %w", e.ID, err)
			}
			if ok {
				ended = append(ended, e)
			}
		}
		return nil
	})
	if err != nil {
		logFailure(m.log, "expire_events", err)
		return 0, err
	}
	for _, e := range ended {
		metrics.EventsExpired.Inc()
		m.log.Info("event expired", "event_id", e.ID, "name", e.Name)
		m.notifyEnded(ctx, e)
	}
	return len(ended), nil
}

// SweepExpired deactivates every expired event. Run periodically.
func (m *EventMultiplier) SweepExpired(ctx context.Context) (int, error) {
	ctx, cancel := m.deps.withTimeout(ctx)
	defer cancel()

	events, err := m.deps.Store.ListActiveEvents(ctx)
	if err != nil {
		logFailure(m.log, "sweep_events", err)
		return 0, err
	}
	now := m.deps.Clock.Now()
	var expired []*domain.Event
	for _, e := range events {
		if e.Expired(now) {
			expired = append(expired, e)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}
	return m.expire(ctx, expired)
}

// Activate starts an event now. A zero duration never expires.
func (m *EventMultiplier) Activate(ctx context.Context, name, description string, multiplier int64, duration time.Duration) (*domain.Event, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, newKindError(ErrInvalidState, "event name is required")
	case multiplier < 1:
		return nil, ErrInvalidMultiplier
	case duration < 0:
		return nil, ErrInvalidDuration
	}
	ctx, cancel := m.deps.withTimeout(ctx)
	defer cancel()

	now := m.deps.Clock.Now()
	e := &domain.Event{
		Name:        name,
		Description: description,
		Multiplier:  multiplier,
		IsActive:    true,
		StartTime:   now,
	}
	if duration > 0 {
		end := now.Add(duration)
		e.EndTime = &end
	}
	if err := m.deps.Store.InTx(ctx, func(tx repository.Tx) error {
		return tx.CreateEvent(ctx, e)
	}); err != nil {
		logFailure(m.log, "activate_event", err)
		return nil, err
	}

	m.log.Info("event activated", "event_id", e.ID, "name", e.Name, "multiplier", e.Multiplier)
	payload := map[string]any{
		"event_id":   e.ID,
		"name":       e.Name,
		"multiplier": e.Multiplier,
	}
	if e.EndTime != nil {
		payload["end_time"] = *e.EndTime
	}
	m.deps.notify(ctx, domain.NotifyEventStarted, 0, payload)
	return e, nil
}

// Deactivate stops an event manually. Stopping an inactive event is a no-op.
func (m *EventMultiplier) Deactivate(ctx context.Context, id int64) (*domain.Event, error) {
	ctx, cancel := m.deps.withTimeout(ctx)
	defer cancel()

	var (
		e       *domain.Event
		flipped bool
	)
	err := m.deps.Store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		if e, err = tx.GetEvent(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrEventNotFound
			}
			return err
		}
		flipped, err = tx.DeactivateEvent(ctx, id)
		return err
	})
	if err != nil {
		logFailure(m.log, "deactivate_event", err, "event_id", id)
		return nil, err
	}
	e.IsActive = false
	if flipped {
		m.notifyEnded(ctx, e)
	}
	return e, nil
}

func (m *EventMultiplier) notifyEnded(ctx context.Context, e *domain.Event) {
	m.deps.notify(ctx, domain.NotifyEventEnded, 0, map[string]any{
		"event_id": e.ID,
		"name":     e.Name,
	})
}
