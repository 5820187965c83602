package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettingsValidate(t *testing.T) {
	valid := DefaultSettings()
	assert.NoError(t, valid.Validate())

	negativeRate := DefaultSettings()
	negativeRate.PointsDecayRate = -0.1
	assert.ErrorIs(t, negativeRate.Validate(), ErrInvalidSettings)

	fullRate := DefaultSettings()
	fullRate.PointsDecayRate = 1
	assert.ErrorIs(t, fullRate.Validate(), ErrInvalidSettings)

	zeroWindow := DefaultSettings()
	zeroWindow.StreakRequirementHours = 0
	assert.ErrorIs(t, zeroWindow.Validate(), ErrInvalidSettings)

	noThresholds := DefaultSettings()
	noThresholds.LevelThresholds = nil
	assert.ErrorIs(t, noThresholds.Validate(), ErrInvalidSettings)
}
