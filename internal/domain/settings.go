package domain

import "time"

// Settings is one version of the gamification tunables. Exactly one
// version is active at a time; updates deactivate the prior version and
// insert a new one rather than mutating in place.
type Settings struct {
	LevelThresholds        map[Level]int `json:"level_thresholds"`
	PointsDecayRate        float64       `json:"points_decay_rate"`
	StreakRequirementHours int           `json:"streak_requirement_hours"`
	Version                int           `json:"version"`
	Active                 bool          `json:"active"`
	CreatedAt              time.Time     `json:"created_at"`
}

// Validate rejects settings that would corrupt scoring
func (s *Settings) Validate() error {
	if s.PointsDecayRate < 0 || s.PointsDecayRate >= 1 {
		return ErrInvalidSettings
	}
	if s.StreakRequirementHours <= 0 {
		return ErrInvalidSettings
	}
	if len(s.LevelThresholds) == 0 {
		return ErrInvalidSettings
	}
	return nil
}

// DefaultSettings returns the built-in tunables used to seed the store
func DefaultSettings() Settings {
	thresholds := make(map[Level]int, len(DefaultLevelThresholds))
	for level, points := range DefaultLevelThresholds {
		thresholds[level] = points
	}
	return Settings{
		LevelThresholds:        thresholds,
		PointsDecayRate:        0,
		StreakRequirementHours: 24,
	}
}
