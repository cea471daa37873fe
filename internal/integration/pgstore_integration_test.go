package integration

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"divan_bot/internal/domain"
	"divan_bot/internal/repository"
	"divan_bot/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID = 900

func applyMigrations(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	dir := filepath.Join("..", "migrations")
	files, err := os.ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		if filepath.Ext(f.Name()) == ".sql" {
			names = append(names, f.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		_, err = pool.Exec(context.Background(), string(b))
		require.NoError(t, err, "apply migration %s", name)
	}
}

// setup needs DATABASE_URL pointing at a disposable database; every table is truncated.
func setup(t *testing.T) (*service.Services, *repository.PgStore) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	applyMigrations(t, pool)
	_, err = pool.Exec(context.Background(), `TRUNCATE users, point_logs, events, missions, mission_completions,
		achievement_grants, rewards, purchases, audit_logs RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	store := repository.NewPgStore(pool)
	svc, err := service.New(service.Deps{Store: store, Location: time.UTC}, service.DefaultLimits, repository.NewAuditRepository(pool))
	require.NoError(t, err)
	return svc, store
}

func TestPg_MissionCompletionWithEvent(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	u, err := svc.Users.EnsureUser(ctx, 1001, "ana", "Ana")
	require.NoError(t, err)
	m, err := svc.Admin.CreateMission(ctx, adminID, service.NewMission{Name: "Comenta hoy", PointsReward: 50, Cadence: domain.CadenceDaily})
	require.NoError(t, err)
	_, err = svc.Admin.ActivateEvent(ctx, adminID, "Doble", "", 2, time.Hour)
	require.NoError(t, err)

	res, err := svc.Missions.CompleteMission(ctx, u.ID, m.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Grant)
	assert.Equal(t, int64(100), res.Grant.Granted)
	assert.Equal(t, int64(2), res.Multiplier)
	assert.True(t, res.Grant.LeveledUp)

	_, err = svc.Missions.CompleteMission(ctx, u.ID, m.ID, nil)
	assert.ErrorIs(t, err, service.ErrAlreadyCompleted)

	got, err := store.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Points)
	assert.Equal(t, 2, got.Level)

	logs, err := store.ListPointLogs(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, int64(100), logs[0].Delta)
}

func TestPg_ConcurrentPurchaseOfLastUnit(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	stock := int64(1)
	r, err := svc.Admin.CreateReward(ctx, adminID, service.NewReward{Name: "Única", Cost: 10, Stock: &stock})
	require.NoError(t, err)

	const buyers = 6
	ids := make([]int64, buyers)
	for i := range ids {
		u, err := svc.Users.EnsureUser(ctx, int64(2000+i), "", "Fan")
		require.NoError(t, err)
		_, err = svc.Ledger.Grant(ctx, service.GrantRequest{UserID: u.ID, Amount: 50, ActionType: domain.ActionAdmin, Forced: true})
		require.NoError(t, err)
		ids[i] = u.ID
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := svc.Rewards.Purchase(ctx, id, r.ID); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else {
				assert.Equal(t, service.ReasonOutOfStock, service.Reason(err))
			}
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 1, ok)

	stored, err := store.GetReward(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Stock)
	assert.Zero(t, *stored.Stock)
}

func TestPg_AuditTrail(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	u, err := svc.Users.EnsureUser(ctx, 3001, "bea", "Bea")
	require.NoError(t, err)
	_, err = svc.Admin.AdjustPoints(ctx, adminID, "@bea", 25, "bienvenida")
	require.NoError(t, err)

	logs, err := svc.Admin.RecentAudit(ctx, domain.AuditCategoryPoints, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, domain.AuditActionAdminAddPoints, logs[0].Action)
	assert.Equal(t, u.ID, logs[0].UserID)
}
