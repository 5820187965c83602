package domain

import "math"

// Level represents a profile's gamification tier
type Level string

const (
	LevelBronze   Level = "bronze"
	LevelSilver   Level = "silver"
	LevelGold     Level = "gold"
	LevelPlatinum Level = "platinum"
	LevelDiamond  Level = "diamond"
)

// LevelOrder lists levels from lowest to highest
var LevelOrder = []Level{LevelBronze, LevelSilver, LevelGold, LevelPlatinum, LevelDiamond}

// DefaultLevelThresholds maps each level to the cumulative points required to reach it
var DefaultLevelThresholds = map[Level]int{
	LevelBronze:   0,
	LevelSilver:   1000,
	LevelGold:     2000,
	LevelPlatinum: 3500,
	LevelDiamond:  5000,
}

// LevelProgress describes how far a profile is from the next level
type LevelProgress struct {
	Level              Level  `json:"level"`
	NextLevel          *Level `json:"next_level"`
	CurrentPoints      int    `json:"current_points"`
	PointsForNextLevel int    `json:"points_for_next_level"`
	ProgressPercent    int    `json:"progress_percent"`
}

// LevelFor returns the highest level whose threshold is covered by totalPoints.
// Bronze is the fallback for any non-negative total.
func LevelFor(totalPoints int, thresholds map[Level]int) Level {
	for i := len(LevelOrder) - 1; i >= 0; i-- {
		level := LevelOrder[i]
		if totalPoints >= thresholds[level] {
			return level
		}
	}
	return LevelBronze
}

// NextLevel returns the level above the given one, or false at the top tier
func NextLevel(level Level) (Level, bool) {
	for i, l := range LevelOrder {
		if l == level && i < len(LevelOrder)-1 {
			return LevelOrder[i+1], true
		}
	}
	return "", false
}

// ProgressToNext computes progress from the current level toward the next one.
// At the top level the progress is pinned to 100% with no next level.
func ProgressToNext(totalPoints int, thresholds map[Level]int) LevelProgress {
	level := LevelFor(totalPoints, thresholds)

	next, ok := NextLevel(level)
	if !ok {
		return LevelProgress{
			Level:           level,
			NextLevel:       nil,
			CurrentPoints:   totalPoints,
			ProgressPercent: 100,
		}
	}

	span := thresholds[next] - thresholds[level]
	earned := totalPoints - thresholds[level]
	percent := 0
	if span > 0 {
		percent = int(math.Round(float64(earned) / float64(span) * 100))
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	return LevelProgress{
		Level:              level,
		NextLevel:          &next,
		CurrentPoints:      totalPoints,
		PointsForNextLevel: span,
		ProgressPercent:    percent,
	}
}
