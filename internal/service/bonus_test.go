package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) advanceTo(t time.Time) {
	f.clock.Advance(t.Sub(f.clock.Now()))
}

func TestAwardWeeklyStreaks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	active := f.user(t, 1, "ana")
	idle := f.user(t, 2, "bea")

	_, err := f.Ledger.Grant(ctx, interaction(active.ID, 5))
	require.NoError(t, err)

	f.advanceTo(time.Date(2025, 1, 13, 0, 5, 0, 0, time.UTC))
	report, err := f.Bonus.AwardWeeklyStreaks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Users)
	assert.Equal(t, StreakBonuses[1], report.Points)

	got := f.reload(t, active.ID)
	assert.Equal(t, 1, got.WeeklyStreak)
	assert.Equal(t, int64(5)+StreakBonuses[1], got.Points)
	assert.Zero(t, f.reload(t, idle.ID).Points)

	// retry in the same week pays nothing
	report, err = f.Bonus.AwardWeeklyStreaks(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Users)
	assert.Equal(t, 1, f.reload(t, active.ID).WeeklyStreak)

	// no activity during the following week resets the streak
	f.advanceTo(time.Date(2025, 1, 27, 0, 5, 0, 0, time.UTC))
	_, err = f.Bonus.AwardWeeklyStreaks(ctx)
	require.NoError(t, err)
	assert.Zero(t, f.reload(t, active.ID).WeeklyStreak)
}

func TestAwardWeeklyStreaks_Cycles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, "ana")

	var paid []int64
	for week := 0; week < 6; week++ {
		_, err := f.Ledger.Grant(ctx, interaction(u.ID, 1))
		require.NoError(t, err)
		f.clock.Advance(7 * 24 * time.Hour)
		report, err := f.Bonus.AwardWeeklyStreaks(ctx)
		require.NoError(t, err)
		paid = append(paid, report.Points)
	}
	assert.Equal(t, []int64{11, 12, 13, 14, 15, 11}, paid)
}

func TestAwardTenureBonuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 1, "ana")

	report, err := f.Bonus.AwardTenureBonuses(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Points, "new members get nothing")

	f.advanceTo(time.Date(2025, 2, 7, 10, 0, 0, 0, time.UTC))
	report, err = f.Bonus.AwardTenureBonuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, MonthBonus, report.Points)

	report, err = f.Bonus.AwardTenureBonuses(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Points, "once per month")

	f.advanceTo(time.Date(2025, 7, 7, 10, 0, 0, 0, time.UTC))
	report, err = f.Bonus.AwardTenureBonuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, MonthBonus+SixMonthMilestone, report.Points)

	f.advanceTo(time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC))
	report, err = f.Bonus.AwardTenureBonuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, MonthBonus+YearMilestone, report.Points)

	assert.Equal(t, 3*MonthBonus+SixMonthMilestone+YearMilestone, f.reload(t, u.ID).Points)
}

func TestMonthsBetween(t *testing.T) {
	a := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, monthsBetween(a, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, monthsBetween(a, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, monthsBetween(a, a.Add(-time.Hour)))
}

func TestWeekStartIsMonday(t *testing.T) {
	sunday := time.Date(2025, 1, 12, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), weekStart(sunday, time.UTC))
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), weekStart(monday, time.UTC))
}
