package domain

import "time"

// RankingEntry is one row of the computed weekly ranking, denormalized
// with directory fields for display
type RankingEntry struct {
	Position            int    `json:"position"`
	UserID              string `json:"user_id"`
	Name                string `json:"name"`
	AvatarInitials      string `json:"avatar_initials,omitempty"`
	Level               Level  `json:"level"`
	WeeklyPoints        int    `json:"weekly_points"`
	ActivitiesCompleted int    `json:"activities_completed"`
	DealsProgressed     int    `json:"deals_progressed"`
}

// WeeklyRankingRow is a persisted ranking position for one week
type WeeklyRankingRow struct {
	UserID    string    `json:"user_id"`
	WeekStart time.Time `json:"week_start"`
	Position  int       `json:"position"`
	Points    int       `json:"points"`
}

// WeekStart truncates t to the most recent Sunday at midnight UTC,
// the boundary the ranking jobs key their rows on.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := t.Truncate(24 * time.Hour)
	offset := int(day.Weekday())
	return day.AddDate(0, 0, -offset)
}

// ActivityStats aggregates a user's completed-activity history for
// achievement progress derivation
type ActivityStats struct {
	Completed         int `json:"completed"`
	CompletedOnTime   int `json:"completed_on_time"`
	MaxCompletedInDay int `json:"max_completed_in_day"`
}

// DealStats aggregates a user's deal history
type DealStats struct {
	Progressed         int `json:"progressed"`
	ClosedTrailingWeek int `json:"closed_trailing_week"`
}
