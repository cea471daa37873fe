package service

import (
	"context"
	"math"
	"testing"
	"time"

	"divan_bot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interaction(userID, amount int64) GrantRequest {
	return GrantRequest{UserID: userID, Amount: amount, ActionType: domain.ActionInteraction, Description: "mensaje"}
}

func TestGrant_DailyCapClamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, "ana")

	for i := 0; i < 3; i++ {
		res, err := f.Ledger.Grant(ctx, interaction(u.ID, 6))
		require.NoError(t, err)
		assert.Equal(t, int64(6), res.Granted)
	}

	res, err := f.Ledger.Grant(ctx, interaction(u.ID, 6))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Granted)
	assert.True(t, res.Clamped)
	assert.Equal(t, int64(20), res.Balance)

	_, err = f.Ledger.Grant(ctx, interaction(u.ID, 1))
	assert.ErrorIs(t, err, ErrRateLimitExceeded)
	assert.Equal(t, ReasonRateLimited, Reason(err))

	sum, err := f.store.SumPoints(ctx, u.ID, domain.ActionInteraction, dayStart(monday, time.UTC), dayStart(monday, time.UTC).AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(20), sum)

	// next day the allowance is back
	f.clock.Advance(24 * time.Hour)
	res, err = f.Ledger.Grant(ctx, interaction(u.ID, 5))
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Granted)
}

func TestGrant_WeeklyCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, "ana")

	var total int64
	for day := 0; day < 7; day++ {
		res, err := f.Ledger.Grant(ctx, interaction(u.ID, 20))
		if err != nil {
			assert.ErrorIs(t, err, ErrRateLimitExceeded)
		} else {
			total += res.Granted
		}
		f.clock.Advance(24 * time.Hour)
	}
	assert.Equal(t, int64(120), total)
}

func TestGrant_RejectPolicy(t *testing.T) {
	limits := DefaultLimits
	limits.Policy = CapReject
	f := newFixtureWithLimits(t, limits)
	ctx := context.Background()
	u := f.user(t, 1, "ana")

	_, err := f.Ledger.Grant(ctx, interaction(u.ID, 15))
	require.NoError(t, err)

	_, err = f.Ledger.Grant(ctx, interaction(u.ID, 10))
	assert.ErrorIs(t, err, ErrRateLimitExceeded)

	res, err := f.Ledger.Grant(ctx, interaction(u.ID, 5))
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.Balance)
}

func TestGrant_ForcedAndUncappedBypassCaps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, "ana")

	req := interaction(u.ID, 500)
	req.Forced = true
	res, err := f.Ledger.Grant(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.Granted)

	res, err = f.Ledger.Grant(ctx, GrantRequest{UserID: u.ID, Amount: 300, ActionType: domain.ActionMission})
	require.NoError(t, err)
	assert.Equal(t, int64(300), res.Granted)
}

func TestGrant_LevelMatchesPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, "ana")

	prev := 1
	for _, amount := range []int64{40, 80, 450, 900, 1500, 2000} {
		res, err := f.Ledger.Grant(ctx, GrantRequest{UserID: u.ID, Amount: amount, ActionType: domain.ActionAdmin, Forced: true})
		require.NoError(t, err)
		got := f.reload(t, u.ID)
		assert.Equal(t, f.Levels.LevelFor(got.Points).Number, got.Level)
		assert.GreaterOrEqual(t, got.Level, prev)
		assert.Equal(t, got.Level > prev, res.LeveledUp)
		prev = got.Level
	}
	assert.Equal(t, 6, prev)
}

func TestGrant_EventMultiplierOnlyWhenRequested(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, "ana")
	_, err := f.Events.Activate(ctx, "Triple", "", 3, time.Hour)
	require.NoError(t, err)

	res, err := f.Ledger.Grant(ctx, GrantRequest{UserID: u.ID, Amount: 10, ActionType: domain.ActionMission, ApplyEvents: true})
	require.NoError(t, err)
	assert.Equal(t, int64(30), res.Granted)

	res, err = f.Ledger.Grant(ctx, GrantRequest{UserID: u.ID, Amount: 10, ActionType: domain.ActionAdmin, Forced: true})
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Granted)
	assert.Equal(t, int64(1), res.Multiplier)
}

func TestGrant_InvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, "ana")

	_, err := f.Ledger.Grant(ctx, interaction(u.ID, 0))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.Ledger.Grant(ctx, interaction(12345, 5))
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, ReasonNotFound, Reason(err))
}

func TestGrant_BalanceLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, "ana")

	_, err := f.Ledger.Grant(ctx, GrantRequest{UserID: u.ID, Amount: math.MaxInt64, ActionType: domain.ActionAdmin, Forced: true})
	assert.ErrorIs(t, err, ErrAmountTooLarge)
	assert.Equal(t, ReasonInvalidState, Reason(err))

	_, err = f.Events.Activate(ctx, "Triple", "", 3, 0)
	require.NoError(t, err)
	_, err = f.Ledger.Grant(ctx, GrantRequest{UserID: u.ID, Amount: MaxBalance/2 + 1, ActionType: domain.ActionMission, ApplyEvents: true})
	assert.ErrorIs(t, err, ErrAmountTooLarge, "multiplied amount must not wrap")

	res, err := f.Ledger.Grant(ctx, GrantRequest{UserID: u.ID, Amount: MaxBalance, ActionType: domain.ActionAdmin, Forced: true})
	require.NoError(t, err)
	assert.Equal(t, MaxBalance, res.Balance)

	_, err = f.Ledger.Grant(ctx, GrantRequest{UserID: u.ID, Amount: 1, ActionType: domain.ActionAdmin, Forced: true})
	assert.ErrorIs(t, err, ErrAmountTooLarge)
	assert.Equal(t, MaxBalance, f.reload(t, u.ID).Points)

	_, err = f.Ledger.Override(ctx, u.ID, MaxBalance+1, "")
	assert.ErrorIs(t, err, ErrAmountTooLarge)
}

func TestDeduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, "ana")
	_, err := f.Ledger.Grant(ctx, GrantRequest{UserID: u.ID, Amount: 150, ActionType: domain.ActionAdmin, Forced: true})
	require.NoError(t, err)

	_, err = f.Ledger.Deduct(ctx, u.ID, 151, domain.ActionPurchase, "")
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	balance, err := f.Ledger.Deduct(ctx, u.ID, 100, domain.ActionPurchase, "compra")
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	got := f.reload(t, u.ID)
	assert.Equal(t, int64(50), got.Points)
	assert.Equal(t, 2, got.Level, "deduct never lowers the level")

	logs, err := f.store.ListPointLogs(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, int64(-100), logs[0].Delta)
}

func TestOverride_RecomputesLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, "ana")
	_, err := f.Ledger.Grant(ctx, GrantRequest{UserID: u.ID, Amount: 1200, ActionType: domain.ActionAdmin, Forced: true})
	require.NoError(t, err)

	got, err := f.Ledger.Override(ctx, u.ID, 120, "ajuste")
	require.NoError(t, err)
	assert.Equal(t, int64(120), got.Points)
	assert.Equal(t, 2, got.Level)

	_, err = f.Ledger.Override(ctx, u.ID, -1, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
