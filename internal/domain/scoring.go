package domain

import "fmt"

// Point values for scored events
const (
	PointsActivityOnTime = 10
	PointsActivityLate   = 5
	PointsPerStage       = 10
	PointsClosingBonus   = 25
	PointsMessageSent    = 2
)

// ActivityPoints returns the points and ledger reason for a completed
// activity. On time means the completion timestamp is before the due date.
func ActivityPoints(e Event) (int, string) {
	if e.CompletedAt.Before(e.DueDate) {
		return PointsActivityOnTime, fmt.Sprintf("Activity %s completed on time", e.ActivityID)
	}
	return PointsActivityLate, fmt.Sprintf("Activity %s completed late", e.ActivityID)
}

// DealPoints returns the points and ledger reason for a deal stage change.
// Only forward movement scores; reaching closing adds a flat bonus on top
// of the per-stage points. A zero return means no grant at all.
func DealPoints(e Event) (int, string) {
	from := StageRank(e.FromStage)
	to := StageRank(e.ToStage)
	if to <= from {
		return 0, ""
	}

	points := PointsPerStage * (to - from)
	if e.ToStage == StageClosing {
		points += PointsClosingBonus
	}
	return points, fmt.Sprintf("Deal %s advanced to %s", e.DealID, e.ToStage)
}

// MessagePoints returns the flat grant for team communication
func MessagePoints() (int, string) {
	return PointsMessageSent, "Team communication"
}
