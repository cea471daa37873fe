package service

import (
	"testing"

	"divan_bot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFor(t *testing.T) {
	r := MustLevelResolver(DefaultLevels)

	tests := []struct {
		points int64
		want   int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{499, 2},
		{500, 3},
		{1000, 4},
		{1999, 4},
		{2000, 5},
		{3500, 6},
		{1_000_000, 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.LevelFor(tt.points).Number, "points=%d", tt.points)
	}
}

func TestProgress(t *testing.T) {
	r := MustLevelResolver(DefaultLevels)

	p := r.Progress(250)
	assert.Equal(t, 2, p.Current.Number)
	require.NotNil(t, p.Next)
	assert.Equal(t, 3, p.Next.Number)
	assert.Equal(t, int64(250), p.PointsToNext)
	assert.Equal(t, 37, p.Percent)

	top := r.Progress(5000)
	assert.Equal(t, 6, top.Current.Number)
	assert.Nil(t, top.Next)
	assert.Zero(t, top.PointsToNext)
	assert.Equal(t, 100, top.Percent)
}

func TestCheckForLevelUp_MultipleStepsAndNeverDown(t *testing.T) {
	r := MustLevelResolver(DefaultLevels)
	u := &domain.User{Points: 1200, Level: 1}

	assert.True(t, r.CheckForLevelUp(u))
	assert.Equal(t, 4, u.Level)

	assert.False(t, r.CheckForLevelUp(u))

	u.Points = 10
	assert.False(t, r.CheckForLevelUp(u))
	assert.Equal(t, 4, u.Level)
}

func TestNewLevelResolver_Validation(t *testing.T) {
	_, err := NewLevelResolver(nil)
	assert.Error(t, err)

	_, err = NewLevelResolver([]domain.Level{{Number: 1, MinPoints: 10}})
	assert.Error(t, err)

	_, err = NewLevelResolver([]domain.Level{
		{Number: 1, MinPoints: 0},
		{Number: 2, MinPoints: 100},
		{Number: 3, MinPoints: 100},
	})
	assert.Error(t, err)
}
