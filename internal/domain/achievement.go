package domain

import "time"

// AchievementType categorizes achievements by the kind of event that drives them
type AchievementType string

const (
	AchievementTypeActivity      AchievementType = "activity"
	AchievementTypeDeal          AchievementType = "deal"
	AchievementTypeCommunication AchievementType = "communication"
	AchievementTypeStreak        AchievementType = "streak"
	AchievementTypeRanking       AchievementType = "ranking"
)

// Achievement codes identify the hard-coded progress derivation for each
// catalog entry. Titles are display text; codes are stable keys.
const (
	AchievementSpeedster        = "speedster"
	AchievementCommunicator     = "communicator"
	AchievementMasterNegotiator = "master_negotiator"
	AchievementConsistency      = "consistency"
	AchievementSuperProductive  = "super_productive"
	AchievementFirstPlace       = "first_place"
)

// Achievement is an immutable catalog entry loaded once at startup
type Achievement struct {
	ID           string          `json:"id"`
	Code         string          `json:"code"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Type         AchievementType `json:"type"`
	Icon         string          `json:"icon"`
	PointsReward int             `json:"points_reward"`
	Requirement  int             `json:"requirement"`
	Level        int             `json:"level"`
	CreatedAt    time.Time       `json:"created_at"`
}

// UserAchievement tracks one user's progress against a catalog entry.
// Once Completed is set it is never unset and Progress is frozen.
type UserAchievement struct {
	AchievementID string     `json:"achievement_id"`
	Progress      int        `json:"progress"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// DefaultCatalog returns the built-in achievement definitions
func DefaultCatalog() []Achievement {
	now := time.Now()
	return []Achievement{
		{
			ID:           AchievementSpeedster,
			Code:         AchievementSpeedster,
			Title:        "Speedster",
			Description:  "Complete 5 activities before their due date",
			Type:         AchievementTypeActivity,
			Icon:         "⚡",
			PointsReward: 50,
			Requirement:  5,
			Level:        0,
			CreatedAt:    now,
		},
		{
			ID:           AchievementCommunicator,
			Code:         AchievementCommunicator,
			Title:        "Communicator",
			Description:  "Keep up daily communication for 5 consecutive days",
			Type:         AchievementTypeCommunication,
			Icon:         "💬",
			PointsReward: 50,
			Requirement:  5,
			Level:        0,
			CreatedAt:    now,
		},
		{
			ID:           AchievementMasterNegotiator,
			Code:         AchievementMasterNegotiator,
			Title:        "Master Negotiator",
			Description:  "Close 3 deals within a single week",
			Type:         AchievementTypeDeal,
			Icon:         "🤝",
			PointsReward: 100,
			Requirement:  3,
			Level:        0,
			CreatedAt:    now,
		},
		{
			ID:           AchievementConsistency,
			Code:         AchievementConsistency,
			Title:        "Consistency",
			Description:  "Stay active every day for 7 days in a row",
			Type:         AchievementTypeStreak,
			Icon:         "🔄",
			PointsReward: 75,
			Requirement:  7,
			Level:        0,
			CreatedAt:    now,
		},
		{
			ID:           AchievementSuperProductive,
			Code:         AchievementSuperProductive,
			Title:        "Super Productive",
			Description:  "Complete 10 activities in a single day",
			Type:         AchievementTypeActivity,
			Icon:         "🚀",
			PointsReward: 150,
			Requirement:  10,
			Level:        1,
			CreatedAt:    now,
		},
		{
			ID:           AchievementFirstPlace,
			Code:         AchievementFirstPlace,
			Title:        "First Place",
			Description:  "Finish first in the weekly ranking",
			Type:         AchievementTypeRanking,
			Icon:         "🏆",
			PointsReward: 200,
			Requirement:  1,
			Level:        1,
			CreatedAt:    now,
		},
	}
}
