package domain

import "time"

// NotificationType classifies outbound notifications
type NotificationType string

const (
	NotificationAchievement NotificationType = "achievement"
	NotificationLevelUp     NotificationType = "level_up"
	NotificationRanking     NotificationType = "ranking"
)

// Notification is a record handed to the notification sink. The scoring
// engine collects these instead of calling the transport directly, so
// delivery failures can never reach back into a points grant.
type Notification struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Content     string           `json:"content"`
	UserID      string           `json:"user_id"`
	RelatedID   string           `json:"related_id,omitempty"`
	RelatedType string           `json:"related_type,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
