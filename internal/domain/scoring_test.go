package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActivityPoints(t *testing.T) {
	now := time.Now()

	points, reason := ActivityPoints(Event{ActivityID: "a1", DueDate: now.Add(time.Hour), CompletedAt: now})
	assert.Equal(t, PointsActivityOnTime, points)
	assert.Equal(t, "Activity a1 completed on time", reason)

	points, reason = ActivityPoints(Event{ActivityID: "a1", DueDate: now.Add(-time.Hour), CompletedAt: now})
	assert.Equal(t, PointsActivityLate, points)
	assert.Equal(t, "Activity a1 completed late", reason)

	// Exactly at the due date counts as late
	points, _ = ActivityPoints(Event{ActivityID: "a1", DueDate: now, CompletedAt: now})
	assert.Equal(t, PointsActivityLate, points)
}

func TestDealPoints(t *testing.T) {
	tests := []struct {
		name string
		from DealStage
		to   DealStage
		want int
	}{
		{"one stage forward", StageInitialContact, StageVisit, 10},
		{"two stages forward", StageVisit, StageClosing, 45},
		{"full pipeline", StageInitialContact, StageClosing, 55},
		{"closing includes bonus", StageProposal, StageClosing, 35},
		{"backward", StageProposal, StageVisit, 0},
		{"lateral", StageVisit, StageVisit, 0},
		{"from unknown stage", "", StageInitialContact, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, reason := DealPoints(Event{DealID: "d1", FromStage: tt.from, ToStage: tt.to})
			assert.Equal(t, tt.want, points)
			if tt.want == 0 {
				assert.Empty(t, reason)
			} else {
				assert.Contains(t, reason, "d1")
			}
		})
	}
}

func TestMessagePoints(t *testing.T) {
	points, reason := MessagePoints()
	assert.Equal(t, PointsMessageSent, points)
	assert.Equal(t, "Team communication", reason)
}

func TestStageRank(t *testing.T) {
	assert.Equal(t, 1, StageRank(StageInitialContact))
	assert.Equal(t, 4, StageRank(StageClosing))
	assert.Equal(t, 0, StageRank("negotiation"))
}
