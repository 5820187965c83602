package domain

import "time"

// Profile holds one user's gamification state. Created lazily on the
// user's first scored event.
type Profile struct {
	UserID       string            `json:"user_id"`
	Level        Level             `json:"level"`
	TotalPoints  int               `json:"total_points"`
	WeeklyPoints int               `json:"weekly_points"`
	Streak       int               `json:"streak"`
	LastActive   *time.Time        `json:"last_active,omitempty"`
	Achievements []UserAchievement `json:"achievements"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NewProfile builds a zeroed profile covering the given catalog
func NewProfile(userID string, catalog []Achievement) *Profile {
	now := time.Now()
	achievements := make([]UserAchievement, len(catalog))
	for i, a := range catalog {
		achievements[i] = UserAchievement{AchievementID: a.ID}
	}
	return &Profile{
		UserID:       userID,
		Level:        LevelBronze,
		Achievements: achievements,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Achievement returns the progress entry for a catalog id, if present
func (p *Profile) Achievement(achievementID string) *UserAchievement {
	for i := range p.Achievements {
		if p.Achievements[i].AchievementID == achievementID {
			return &p.Achievements[i]
		}
	}
	return nil
}

// BackfillAchievements appends zero-progress entries for catalog
// achievements the profile does not know yet. Returns true if the
// profile changed.
func (p *Profile) BackfillAchievements(catalog []Achievement) bool {
	changed := false
	for _, a := range catalog {
		if p.Achievement(a.ID) == nil {
			p.Achievements = append(p.Achievements, UserAchievement{AchievementID: a.ID})
			changed = true
		}
	}
	return changed
}

// User is the directory's view of an account
type User struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	AvatarInitials string `json:"avatar_initials,omitempty"`
	TeamID         string `json:"team_id,omitempty"`
	ManagerID      string `json:"manager_id,omitempty"`
}

// RoleBroker is the role whose profiles compete in the weekly ranking
const RoleBroker = "broker"
