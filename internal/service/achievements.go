package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brokerhub/gamification/internal/domain"
)

// evaluate re-derives achievement progress for the given categories
// from the user's aggregate state. The stored progress is overwritten
// with the fresh value, never incremented; completion is write-once and
// grants the reward through the regular points path. Evaluation is a
// side path: any failure here is logged and never unwinds the grant
// that triggered it.
func (s *GamificationService) evaluate(
	ctx context.Context,
	profile *domain.Profile,
	settings *domain.Settings,
	result *Result,
	categories ...domain.AchievementType,
) {
	// Unknown users silently skip evaluation; the grant stands
	if _, err := s.store.GetUser(ctx, profile.UserID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Debug("skipping achievement evaluation for unknown user", "user_id", profile.UserID)
		} else {
			s.logger.Warn("achievement evaluation aborted", "user_id", profile.UserID, "error", err)
		}
		return
	}

	var (
		activityStats *domain.ActivityStats
		dealStats     *domain.DealStats
	)

	changed := false
	for _, achievement := range s.catalog {
		if !containsType(categories, achievement.Type) {
			continue
		}

		entry := profile.Achievement(achievement.ID)
		if entry == nil || entry.Completed {
			continue
		}

		var progress int
		switch achievement.Code {
		case domain.AchievementSpeedster:
			if activityStats == nil {
				stats, err := s.store.ActivityStats(ctx, profile.UserID)
				if err != nil {
					s.logger.Warn("failed to load activity stats", "user_id", profile.UserID, "error", err)
					continue
				}
				activityStats = &stats
			}
			progress = activityStats.CompletedOnTime

		case domain.AchievementSuperProductive:
			if activityStats == nil {
				stats, err := s.store.ActivityStats(ctx, profile.UserID)
				if err != nil {
					s.logger.Warn("failed to load activity stats", "user_id", profile.UserID, "error", err)
					continue
				}
				activityStats = &stats
			}
			progress = activityStats.MaxCompletedInDay

		case domain.AchievementMasterNegotiator:
			if dealStats == nil {
				stats, err := s.store.DealStats(ctx, profile.UserID, time.Now().AddDate(0, 0, -7))
				if err != nil {
					s.logger.Warn("failed to load deal stats", "user_id", profile.UserID, "error", err)
					continue
				}
				dealStats = &stats
			}
			progress = dealStats.ClosedTrailingWeek

		case domain.AchievementCommunicator, domain.AchievementConsistency:
			progress = profile.Streak

		default:
			// Ranking achievements are granted by the weekly reset,
			// not derived here
			continue
		}

		entry.Progress = progress
		changed = true

		if progress >= achievement.Requirement {
			s.completeAchievement(ctx, profile, achievement, entry, settings, result)
		}
	}

	if changed {
		profile.UpdatedAt = time.Now()
		if err := s.store.UpsertProfile(ctx, profile); err != nil {
			s.logger.Warn("failed to save achievement progress", "user_id", profile.UserID, "error", err)
		}
	}
}

// completeAchievement marks an achievement done and grants its reward.
// The completed flag is set before the recursive grant so a re-entrant
// evaluation can never double-complete it.
func (s *GamificationService) completeAchievement(
	ctx context.Context,
	profile *domain.Profile,
	achievement domain.Achievement,
	entry *domain.UserAchievement,
	settings *domain.Settings,
	result *Result,
) {
	now := time.Now()
	entry.Completed = true
	entry.CompletedAt = &now
	result.CompletedAchievements = append(result.CompletedAchievements, achievement)

	reason := fmt.Sprintf("Achievement: %s", achievement.Title)
	if err := s.addPoints(ctx, profile, achievement.PointsReward, reason, domain.SourceAchievement, achievement.ID, settings, result); err != nil {
		s.logger.Warn("failed to grant achievement reward",
			"user_id", profile.UserID,
			"achievement", achievement.Code,
			"error", err,
		)
	}

	result.Notifications = append(result.Notifications, domain.Notification{
		ID:          uuid.New().String(),
		Type:        domain.NotificationAchievement,
		Title:       "New Achievement!",
		Content:     fmt.Sprintf("You unlocked %q", achievement.Title),
		UserID:      profile.UserID,
		RelatedID:   achievement.ID,
		RelatedType: "achievement",
		CreatedAt:   now,
	})

	s.logger.Info("achievement completed",
		"user_id", profile.UserID,
		"achievement", achievement.Code,
		"reward", achievement.PointsReward,
	)
}

func containsType(types []domain.AchievementType, t domain.AchievementType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
