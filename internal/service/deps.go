package service

import (
	"context"
	"log/slog"
	"time"

	"divan_bot/internal/domain"
	"divan_bot/internal/repository"

	"github.com/jonboulle/clockwork"
)

const defaultOpTimeout = 5 * time.Second

// Notifier delivers best-effort notifications. Implementations must not
// block the caller for long and handle their own errors.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// Notifiers fans a notification out to several notifiers.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, n domain.Notification) {
	for _, nt := range ns {
		if nt != nil {
			nt.Notify(ctx, n)
		}
	}
}

// Deps is shared by every service.
type Deps struct {
	Store    repository.Store
	Clock    clockwork.Clock
	Location *time.Location
	Timeout  time.Duration
	Notifier Notifier
}

func (d Deps) normalize() Deps {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Timeout <= 0 {
		d.Timeout = defaultOpTimeout
	}
	if d.Notifier == nil {
		d.Notifier = Notifiers(nil)
	}
	return d
}

func (d Deps) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.Timeout)
}

func (d Deps) notify(ctx context.Context, typ string, userID int64, payload map[string]any) {
	d.Notifier.Notify(ctx, domain.Notification{
		Type:      typ,
		UserID:    userID,
		Payload:   payload,
		CreatedAt: d.Clock.Now(),
	})
}

// logFailure logs infrastructure errors. Typed domain errors are expected
// outcomes and are not logged.
func logFailure(log *slog.Logger, op string, err error, args ...any) {
	if Reason(err) != ReasonInternal {
		return
	}
	log.Error("operation failed", append([]any{"op", op, "error", err}, args...)...)
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// weekStart returns midnight of the Monday starting t's week.
func weekStart(t time.Time, loc *time.Location) time.Time {
	d := dayStart(t, loc)
	wd := int(d.Weekday())
	if wd == 0 {
		wd = 7
	}
	return d.AddDate(0, 0, -(wd - 1))
}

func monthStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// monthsBetween counts whole calendar months from a to b.
func monthsBetween(a, b time.Time) int {
	if b.Before(a) {
		return 0
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
