package service

import (
	"context"
	"sync"
	"testing"

	"divan_bot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) fund(t *testing.T, userID, amount int64) {
	t.Helper()
	_, err := f.Ledger.Grant(context.Background(), GrantRequest{UserID: userID, Amount: amount, ActionType: domain.ActionAdmin, Forced: true})
	require.NoError(t, err)
}

func TestPurchase_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, "ana")
	f.fund(t, u.ID, 300)
	r, err := f.Rewards.CreateReward(ctx, NewReward{Name: "Foto exclusiva", Cost: 120, Stock: ptr(int64(3))})
	require.NoError(t, err)

	receipt, err := f.Rewards.Purchase(ctx, u.ID, r.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.PurchaseID)
	assert.Equal(t, int64(180), receipt.Balance)
	require.NotNil(t, receipt.StockLeft)
	assert.Equal(t, int64(2), *receipt.StockLeft)
	assert.Contains(t, receipt.NewBadges, "first_purchase")

	got := f.reload(t, u.ID)
	assert.Equal(t, int64(180), got.Points)
	assert.Equal(t, 2, got.Level)

	stored, err := f.Rewards.GetReward(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), *stored.Stock)
	assert.Len(t, f.notifier.ofType(domain.NotifyRewardClaimed), 1)
}

func TestPurchase_FailuresDoNotMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, "ana")
	f.fund(t, u.ID, 50)

	cheap, err := f.Rewards.CreateReward(ctx, NewReward{Name: "Sticker", Cost: 10, Stock: ptr(int64(0))})
	require.NoError(t, err)
	pricey, err := f.Rewards.CreateReward(ctx, NewReward{Name: "Videollamada", Cost: 1000})
	require.NoError(t, err)
	paused, err := f.Rewards.CreateReward(ctx, NewReward{Name: "Pausado", Cost: 10})
	require.NoError(t, err)
	_, err = f.Rewards.UpdateReward(ctx, paused.ID, RewardPatch{IsActive: ptr(false)})
	require.NoError(t, err)

	tests := []struct {
		name     string
		rewardID int64
		want     error
		reason   string
	}{
		{"missing", 999, ErrRewardNotFound, ReasonNotFound},
		{"inactive", paused.ID, ErrRewardInactive, ReasonInactive},
		{"out of stock", cheap.ID, ErrOutOfStock, ReasonOutOfStock},
		{"insufficient", pricey.ID, ErrInsufficientPoints, ReasonInsufficientPoints},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Rewards.Purchase(ctx, u.ID, tt.rewardID)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.reason, Reason(err))
		})
	}

	assert.Equal(t, int64(50), f.reload(t, u.ID).Points)
	n, err := f.store.CountPurchases(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPurchase_ConcurrentLastUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.Rewards.CreateReward(ctx, NewReward{Name: "Única", Cost: 10, Stock: ptr(int64(1))})
	require.NoError(t, err)

	const buyers = 8
	ids := make([]int64, buyers)
	for i := range ids {
		u := f.user(t, int64(100+i), "u")
		f.fund(t, u.ID, 50)
		ids[i] = u.ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		outStock int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := f.Rewards.Purchase(ctx, id, r.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case Reason(err) == ReasonOutOfStock:
				outStock++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, buyers-1, outStock)

	stored, err := f.Rewards.GetReward(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), *stored.Stock)

	var spent int64
	for _, id := range ids {
		spent += 50 - f.reload(t, id).Points
	}
	assert.Equal(t, int64(10), spent)
}

func TestPurchase_SameUserDoubleTap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, "ana")
	f.fund(t, u.ID, 15)
	r, err := f.Rewards.CreateReward(ctx, NewReward{Name: "Audio", Cost: 10})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.Rewards.Purchase(ctx, u.ID, r.ID)
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrInsufficientPoints)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, int64(5), f.reload(t, u.ID).Points)
}

func TestRewardValidationAndPatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.Rewards.CreateReward(ctx, NewReward{Name: "gratis", Cost: 0})
	assert.ErrorIs(t, err, ErrInvalidReward)
	_, err = f.Rewards.CreateReward(ctx, NewReward{Name: "neg", Cost: 5, Stock: ptr(int64(-1))})
	assert.ErrorIs(t, err, ErrInvalidReward)

	r, err := f.Rewards.CreateReward(ctx, NewReward{Name: "Limitado", Cost: 5, Stock: ptr(int64(2))})
	require.NoError(t, err)
	r, err = f.Rewards.UpdateReward(ctx, r.ID, RewardPatch{ClearStock: true, Cost: ptr(int64(7))})
	require.NoError(t, err)
	assert.Nil(t, r.Stock)
	assert.Equal(t, int64(7), r.Cost)

	_, err = f.Rewards.UpdateReward(ctx, 999, RewardPatch{})
	assert.ErrorIs(t, err, ErrRewardNotFound)
}
