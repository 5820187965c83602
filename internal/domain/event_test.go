package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventValidate(t *testing.T) {
	now := time.Now()

	valid := Event{
		UserID:      "ana",
		Type:        EventActivityCompleted,
		ActivityID:  "a1",
		DueDate:     now,
		CompletedAt: now,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		event Event
	}{
		{"missing user", Event{Type: EventMessageSent}},
		{"unknown type", Event{UserID: "ana", Type: "promotion"}},
		{"activity without id", Event{UserID: "ana", Type: EventActivityCompleted, DueDate: now, CompletedAt: now}},
		{"activity without due date", Event{UserID: "ana", Type: EventActivityCompleted, ActivityID: "a1", CompletedAt: now}},
		{"deal without id", Event{UserID: "ana", Type: EventDealStageChanged, ToStage: StageVisit}},
		{"deal with unknown target stage", Event{UserID: "ana", Type: EventDealStageChanged, DealID: "d1", ToStage: "negotiation"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.event.Validate(), ErrInvalidEvent)
		})
	}

	message := Event{UserID: "ana", Type: EventMessageSent}
	assert.NoError(t, message.Validate())
}

func TestWeekStart(t *testing.T) {
	// Wednesday 2026-03-04 15:30 UTC
	wednesday := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, want, WeekStart(wednesday))

	// A Sunday is its own week start
	sunday := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, want, WeekStart(sunday))
}
