package domain

import "time"

// PointsSource tags a ledger entry with the kind of action that produced it
type PointsSource string

const (
	SourceActivity      PointsSource = "activity"
	SourceDeal          PointsSource = "deal"
	SourceCommunication PointsSource = "communication"
	SourceAchievement   PointsSource = "achievement"
	SourceDecay         PointsSource = "decay"
	SourceLevelUp       PointsSource = "level_up"
	SourceBonus         PointsSource = "bonus"
)

// PointsHistoryEntry is one append-only ledger record. Entries are never
// updated or deleted; negative points appear only through decay.
type PointsHistoryEntry struct {
	ID         string       `json:"id"`
	UserID     string       `json:"user_id"`
	Points     int          `json:"points"`
	Reason     string       `json:"reason"`
	SourceType PointsSource `json:"source_type"`
	SourceID   string       `json:"source_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}
