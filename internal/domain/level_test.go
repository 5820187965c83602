package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		points int
		want   Level
	}{
		{0, LevelBronze},
		{999, LevelBronze},
		{1000, LevelSilver},
		{1999, LevelSilver},
		{2000, LevelGold},
		{3500, LevelPlatinum},
		{4999, LevelPlatinum},
		{5000, LevelDiamond},
		{100000, LevelDiamond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.points, DefaultLevelThresholds), "points=%d", tt.points)
	}
}

func TestNextLevel(t *testing.T) {
	next, ok := NextLevel(LevelBronze)
	require.True(t, ok)
	assert.Equal(t, LevelSilver, next)

	_, ok = NextLevel(LevelDiamond)
	assert.False(t, ok)
}

func TestProgressToNext(t *testing.T) {
	progress := ProgressToNext(1500, DefaultLevelThresholds)
	assert.Equal(t, LevelSilver, progress.Level)
	require.NotNil(t, progress.NextLevel)
	assert.Equal(t, LevelGold, *progress.NextLevel)
	assert.Equal(t, 1000, progress.PointsForNextLevel)
	assert.Equal(t, 50, progress.ProgressPercent)
}

func TestProgressToNextAtTopLevel(t *testing.T) {
	progress := ProgressToNext(9000, DefaultLevelThresholds)
	assert.Equal(t, LevelDiamond, progress.Level)
	assert.Nil(t, progress.NextLevel)
	assert.Equal(t, 100, progress.ProgressPercent)
}
