package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"divan_bot/internal/domain"
	"divan_bot/internal/logger"
	"divan_bot/internal/metrics"
	"divan_bot/internal/repository"

	"github.com/gosimple/slug"
)

// MissionResult describes a successful completion.
type MissionResult struct {
	Mission    *domain.Mission `json:"mission"`
	TargetKey  string          `json:"target_key,omitempty"`
	Multiplier int64           `json:"multiplier"`
	Grant      *GrantResult    `json:"grant,omitempty"`
}

// MissionEngine decides mission eligibility per user and records completions.
type MissionEngine struct {
	deps   Deps
	ledger *PointLedger
	events *EventMultiplier
	log    *slog.Logger
}

func NewMissionEngine(deps Deps, ledger *PointLedger, events *EventMultiplier) *MissionEngine {
	return &MissionEngine{
		deps:   deps.normalize(),
		ledger: ledger,
		events: events,
		log:    logger.With("component", "mission_engine"),
	}
}

func missionErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrMissionNotFound
	}
	return err
}

// GetActiveMissions lists the active missions the user can complete now,
// optionally filtered by cadence. Generic reaction missions are always
// listed since they key completions per message.
func (e *MissionEngine) GetActiveMissions(ctx context.Context, userID int64, filter *domain.Cadence) ([]*domain.Mission, error) {
	// lists and lazily expires events, so it runs before the reads below
	active, err := e.events.ActiveEvents(ctx)
	if err != nil {
		return nil, err
	}
	events := make(map[int64]*domain.Event, len(active))
	for _, ev := range active {
		events[ev.ID] = ev
	}

	ctx, cancel := e.deps.withTimeout(ctx)
	defer cancel()

	if _, err := e.deps.Store.GetUserByID(ctx, userID); err != nil {
		return nil, userErr(err)
	}
	missions, err := e.deps.Store.ListMissions(ctx, true)
	if err != nil {
		logFailure(e.log, "list_missions", err, "user_id", userID)
		return nil, err
	}
	completions, err := e.deps.Store.ListCompletions(ctx, userID)
	if err != nil {
		logFailure(e.log, "list_completions", err, "user_id", userID)
		return nil, err
	}
	last := make(map[string]*domain.MissionCompletion, len(completions))
	for _, c := range completions {
		last[c.MissionID+"\x00"+c.TargetKey] = c
	}

	now := e.deps.Clock.Now()
	var res []*domain.Mission
	for _, m := range missions {
		if filter != nil && m.Cadence != *filter {
			continue
		}
		var window *domain.EventWindow
		if m.Cadence == domain.CadenceEvent && m.EventID != nil {
			ev, ok := events[*m.EventID]
			if !ok || !ev.Applies(now) {
				continue
			}
			window = ev.Window()
		}
		key := ""
		if m.Cadence == domain.CadenceReaction {
			target, ok := m.TargetMessageID()
			if !ok {
				res = append(res, m)
				continue
			}
			key = strconv.FormatInt(target, 10)
		}
		if c, ok := last[m.ID+"\x00"+key]; ok && m.CompletedForPeriod(c.CompletedAt, now, window, e.deps.Location) {
			continue
		}
		res = append(res, m)
	}
	return res, nil
}

// CompleteMission is the direct completion path used by buttons and the
// API. Missions that require an out-of-band action are rejected here,
// except reaction missions which carry their target message.
func (e *MissionEngine) CompleteMission(ctx context.Context, userID int64, missionID string, targetMessageID *int64) (*MissionResult, error) {
	return e.complete(ctx, userID, missionID, targetMessageID, false)
}

// RecordReaction completes every active reaction mission that matches
// messageID for the user: missions bound to that message and generic ones.
// Missions already completed for the message are skipped. It returns the
// completions made; when none succeed the first error is returned.
func (e *MissionEngine) RecordReaction(ctx context.Context, userID, messageID int64) ([]*MissionResult, error) {
	cadence := domain.CadenceReaction
	missions, err := e.listActive(ctx, &cadence)
	if err != nil {
		return nil, err
	}

	var (
		results  []*MissionResult
		firstErr error
	)
	for _, m := range missions {
		if target, ok := m.TargetMessageID(); ok && target != messageID {
			continue
		}
		res, err := e.complete(ctx, userID, m.ID, &messageID, true)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if Reason(err) == ReasonInternal {
				return results, err
			}
			continue
		}
		results = append(results, res)
	}
	if len(results) == 0 {
		if firstErr == nil {
			firstErr = ErrMissionNotFound
		}
		return nil, firstErr
	}
	return results, nil
}

func (e *MissionEngine) listActive(ctx context.Context, filter *domain.Cadence) ([]*domain.Mission, error) {
	ctx, cancel := e.deps.withTimeout(ctx)
	defer cancel()
	missions, err := e.deps.Store.ListMissions(ctx, true)
	if err != nil {
		logFailure(e.log, "list_missions", err)
		return nil, err
	}
	if filter == nil {
		return missions, nil
	}
	var res []*domain.Mission
	for _, m := range missions {
		if m.Cadence == *filter {
			res = append(res, m)
		}
	}
	return res, nil
}

// complete runs the check-then-act sequence under the user's row lock. The
// completion record and the point grant commit together.
func (e *MissionEngine) complete(ctx context.Context, userID int64, missionID string, targetMessageID *int64, triggered bool) (*MissionResult, error) {
	mult, err := e.events.ActiveMultiplier(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.deps.withTimeout(ctx)
	defer cancel()

	var res *MissionResult
	err = e.deps.Store.InTx(ctx, func(tx repository.Tx) error {
		u, err := tx.LockUser(ctx, userID)
		if err != nil {
			return userErr(err)
		}
		m, err := tx.GetMission(ctx, missionID)
		if err != nil {
			return missionErr(err)
		}
		if !m.IsActive {
			return ErrMissionInactive
		}
		if m.RequiresAction && m.Cadence != domain.CadenceReaction && !triggered {
			return ErrActionRequired
		}

		now := e.deps.Clock.Now()
		key := ""
		if m.Cadence == domain.CadenceReaction {
			if key, err = reactionKey(m, targetMessageID); err != nil {
				return err
			}
		}

		var window *domain.EventWindow
		if m.Cadence == domain.CadenceEvent && m.EventID != nil {
			ev, err := tx.GetEvent(ctx, *m.EventID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrMissionInactive
				}
				return err
			}
			if !ev.Applies(now) {
				return ErrMissionInactive
			}
			window = ev.Window()
		}

		last, err := tx.GetCompletion(ctx, u.ID, m.ID, key)
		switch {
		case err == nil:
			if m.CompletedForPeriod(last.CompletedAt, now, window, e.deps.Location) {
				return ErrAlreadyCompleted
			}
		case errors.Is(err, repository.ErrNotFound):
		default:
			return fmt.Errorf("get completion: %w", err)
		}

		if err := tx.SaveCompletion(ctx, &domain.MissionCompletion{
			UserID:      u.ID,
			MissionID:   m.ID,
			TargetKey:   key,
			CompletedAt: now,
		}); err != nil {
			return fmt.Errorf("save completion: %w", err)
		}

		res = &MissionResult{Mission: m, TargetKey: key, Multiplier: mult}
		if m.PointsReward > 0 {
			action := domain.ActionMission
			if m.Cadence == domain.CadenceReaction {
				action = domain.ActionReaction
			}
			res.Grant, err = e.ledger.grantTx(ctx, tx, u, GrantRequest{
				UserID:      u.ID,
				Amount:      m.PointsReward,
				ActionType:  action,
				Description: "Misión: " + m.Name,
				ApplyEvents: true,
			}, mult, now)
			return err
		}
		if e.ledger.achievements != nil {
			ids, err := e.ledger.achievements.evaluateTx(ctx, tx, u, now)
			if err != nil {
				return err
			}
			res.Grant = &GrantResult{
				UserID:          u.ID,
				Multiplier:      mult,
				Balance:         u.Points,
				PreviousLevel:   u.Level,
				Level:           e.ledger.levels.Level(u.Level),
				NewAchievements: ids,
			}
		}
		return nil
	})
	if err != nil {
		logFailure(e.log, "complete_mission", err, "user_id", userID, "mission_id", missionID)
		return nil, err
	}

	metrics.MissionsCompleted.WithLabelValues(string(res.Mission.Cadence)).Inc()
	if res.Grant != nil {
		action := domain.ActionMission
		if res.Mission.Cadence == domain.CadenceReaction {
			action = domain.ActionReaction
		}
		e.ledger.publish(ctx, res.Grant, action)
	}
	payload := map[string]any{
		"mission_id": res.Mission.ID,
		"name":       res.Mission.Name,
	}
	if res.Grant != nil {
		payload["points"] = res.Grant.Granted
		payload["balance"] = res.Grant.Balance
	}
	e.deps.notify(ctx, domain.NotifyMissionDone, userID, payload)
	return res, nil
}

// reactionKey resolves the message a reaction completion is keyed by. A
// mission bound to a message only accepts that message.
func reactionKey(m *domain.Mission, targetMessageID *int64) (string, error) {
	fixed, bound := m.TargetMessageID()
	switch {
	case targetMessageID == nil && !bound:
		return "", ErrTargetRequired
	case targetMessageID == nil:
		return strconv.FormatInt(fixed, 10), nil
	case bound && *targetMessageID != fixed:
		return "", ErrTargetMismatch
	default:
		return strconv.FormatInt(*targetMessageID, 10), nil
	}
}

// NewMission is the admin input for CreateMission. An empty ID is derived
// from the cadence and the name.
type NewMission struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	PointsReward    int64          `json:"points_reward"`
	Cadence         domain.Cadence `json:"type"`
	RequiresAction  bool           `json:"requires_action"`
	TargetMessageID *int64         `json:"target_message_id"`
	EventID         *int64         `json:"event_id"`
	Inactive        bool           `json:"inactive"`
}

// MissionID builds ids like "daily_comenta_hoy".
func MissionID(cadence domain.Cadence, name string) string {
	return string(cadence) + "_" + strings.ReplaceAll(slug.Make(name), "-", "_")
}

func (e *MissionEngine) CreateMission(ctx context.Context, in NewMission) (*domain.Mission, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.PointsReward < 0 || in.PointsReward > MaxBalance {
		return nil, ErrInvalidMission
	}
	if _, err := domain.ParseCadence(string(in.Cadence)); err != nil {
		return nil, newKindError(ErrInvalidState, err.Error())
	}
	if in.EventID != nil && in.Cadence != domain.CadenceEvent {
		return nil, newKindError(ErrInvalidState, "only event missions can be bound to an event")
	}
	if in.TargetMessageID != nil && in.Cadence != domain.CadenceReaction {
		return nil, newKindError(ErrInvalidState, "only reaction missions can target a message")
	}
	id := in.ID
	if id == "" {
		id = MissionID(in.Cadence, in.Name)
	}

	m := &domain.Mission{
		ID:             id,
		Name:           in.Name,
		Description:    in.Description,
		PointsReward:   in.PointsReward,
		Cadence:        in.Cadence,
		IsActive:       !in.Inactive,
		RequiresAction: in.RequiresAction || in.Cadence == domain.CadenceReaction,
		EventID:        in.EventID,
		CreatedAt:      e.deps.Clock.Now(),
	}
	if in.TargetMessageID != nil {
		m.Action = &domain.MissionAction{TargetMessageID: in.TargetMessageID}
	}

	ctx, cancel := e.deps.withTimeout(ctx)
	defer cancel()
	err := e.deps.Store.InTx(ctx, func(tx repository.Tx) error {
		if m.EventID != nil {
			if _, err := tx.GetEvent(ctx, *m.EventID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrEventNotFound
				}
				return err
			}
		}
		if err := tx.CreateMission(ctx, m); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrMissionExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		logFailure(e.log, "create_mission", err, "mission_id", id)
		return nil, err
	}
	e.log.Info("mission created", "mission_id", m.ID, "cadence", m.Cadence, "points", m.PointsReward)
	return m, nil
}

func (e *MissionEngine) ToggleMissionStatus(ctx context.Context, id string, active bool) (*domain.Mission, error) {
	ctx, cancel := e.deps.withTimeout(ctx)
	defer cancel()

	var m *domain.Mission
	err := e.deps.Store.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.SetMissionActive(ctx, id, active); err != nil {
			return missionErr(err)
		}
		var err error
		m, err = tx.GetMission(ctx, id)
		return missionErr(err)
	})
	if err != nil {
		logFailure(e.log, "toggle_mission", err, "mission_id", id)
		return nil, err
	}
	return m, nil
}

func (e *MissionEngine) GetMission(ctx context.Context, id string) (*domain.Mission, error) {
	ctx, cancel := e.deps.withTimeout(ctx)
	defer cancel()
	m, err := e.deps.Store.GetMission(ctx, id)
	if err != nil {
		return nil, missionErr(err)
	}
	return m, nil
}

// ListAllMissions includes inactive missions. Admin only.
func (e *MissionEngine) ListAllMissions(ctx context.Context) ([]*domain.Mission, error) {
	ctx, cancel := e.deps.withTimeout(ctx)
	defer cancel()
	return e.deps.Store.ListMissions(ctx, false)
}
