package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProfileCoversCatalog(t *testing.T) {
	catalog := DefaultCatalog()
	profile := NewProfile("ana", catalog)

	assert.Equal(t, LevelBronze, profile.Level)
	assert.Zero(t, profile.TotalPoints)
	require.Len(t, profile.Achievements, len(catalog))
	for _, ua := range profile.Achievements {
		assert.Zero(t, ua.Progress)
		assert.False(t, ua.Completed)
	}
}

func TestBackfillAchievements(t *testing.T) {
	catalog := DefaultCatalog()
	profile := NewProfile("ana", catalog[:3])

	require.True(t, profile.BackfillAchievements(catalog))
	assert.Len(t, profile.Achievements, len(catalog))

	// A second pass changes nothing
	assert.False(t, profile.BackfillAchievements(catalog))
}

func TestAchievementLookup(t *testing.T) {
	profile := NewProfile("ana", DefaultCatalog())

	entry := profile.Achievement(AchievementSpeedster)
	require.NotNil(t, entry)
	assert.Equal(t, AchievementSpeedster, entry.AchievementID)

	assert.Nil(t, profile.Achievement("unknown"))
}
