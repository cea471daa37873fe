package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"divan_bot/internal/domain"
	"divan_bot/internal/repository/memory"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// monday is 2025-01-06 10:00 UTC.
var monday = time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) ofType(typ string) []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []domain.Notification
	for _, n := range r.sent {
		if n.Type == typ {
			res = append(res, n)
		}
	}
	return res
}

type fixture struct {
	*Services
	store    *memory.Store
	clock    *clockwork.FakeClock
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithLimits(t, DefaultLimits)
}

func newFixtureWithLimits(t *testing.T, limits Limits) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.New(),
		clock:    clockwork.NewFakeClockAt(monday),
		notifier: &recordingNotifier{},
	}
	svc, err := New(Deps{
		Store:    f.store,
		Clock:    f.clock,
		Location: time.UTC,
		Notifier: f.notifier,
	}, limits, f.store)
	require.NoError(t, err)
	f.Services = svc
	return f
}

func (f *fixture) user(t *testing.T, tgID int64, name string) *domain.User {
	t.Helper()
	u, err := f.Users.EnsureUser(context.Background(), tgID, name, name)
	require.NoError(t, err)
	return u
}

func (f *fixture) mission(t *testing.T, in NewMission) *domain.Mission {
	t.Helper()
	m, err := f.Missions.CreateMission(context.Background(), in)
	require.NoError(t, err)
	return m
}

func (f *fixture) reload(t *testing.T, id int64) *domain.User {
	t.Helper()
	u, err := f.Users.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

func ptr[T any](v T) *T { return &v }
