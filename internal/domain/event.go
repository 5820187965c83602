package domain

import "time"

// EventType identifies the upstream domain action being scored
type EventType string

const (
	EventActivityCompleted EventType = "activity_completed"
	EventDealStageChanged  EventType = "deal_stage_changed"
	EventMessageSent       EventType = "message_sent"
)

// DealStage is a pipeline stage for a negotiation
type DealStage string

const (
	StageInitialContact DealStage = "initial_contact"
	StageVisit          DealStage = "visit"
	StageProposal       DealStage = "proposal"
	StageClosing        DealStage = "closing"
)

// StageRank orders deal stages; unknown stages rank 0
func StageRank(stage DealStage) int {
	switch stage {
	case StageInitialContact:
		return 1
	case StageVisit:
		return 2
	case StageProposal:
		return 3
	case StageClosing:
		return 4
	default:
		return 0
	}
}

// Event is a domain action submitted to the scoring engine
type Event struct {
	UserID     string    `json:"user_id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`

	// Activity fields
	ActivityID  string    `json:"activity_id,omitempty"`
	DueDate     time.Time `json:"due_date,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`

	// Deal fields
	DealID    string    `json:"deal_id,omitempty"`
	FromStage DealStage `json:"from_stage,omitempty"`
	ToStage   DealStage `json:"to_stage,omitempty"`
}

// Validate checks that the event carries the fields its type requires.
// Runs before any mutation so a rejected event leaves no state behind.
func (e *Event) Validate() error {
	if e.UserID == "" {
		return ErrInvalidEvent
	}
	switch e.Type {
	case EventActivityCompleted:
		if e.ActivityID == "" || e.DueDate.IsZero() || e.CompletedAt.IsZero() {
			return ErrInvalidEvent
		}
	case EventDealStageChanged:
		if e.DealID == "" || StageRank(e.ToStage) == 0 {
			return ErrInvalidEvent
		}
	case EventMessageSent:
		// No extra context required; any message counts.
	default:
		return ErrInvalidEvent
	}
	return nil
}
