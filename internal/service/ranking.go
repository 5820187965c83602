package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/brokerhub/gamification/internal/domain"
)

// ComputeWeeklyRanking builds the live weekly ranking from current
// profiles. Only brokers participate; entries are ordered by weekly
// points descending with positions assigned 1..N. A limit of 0 means
// no truncation.
func (s *GamificationService) ComputeWeeklyRanking(ctx context.Context, limit int) ([]domain.RankingEntry, error) {
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	weekAgo := time.Now().AddDate(0, 0, -7)
	entries := make([]domain.RankingEntry, 0, len(profiles))
	for i := range profiles {
		profile := &profiles[i]

		user, err := s.store.GetUser(ctx, profile.UserID)
		if err != nil {
			if !domain.IsNotFoundError(err) {
				s.logger.Warn("failed to load user for ranking", "user_id", profile.UserID, "error", err)
			}
			continue
		}
		if user.Role != domain.RoleBroker {
			continue
		}

		entry := domain.RankingEntry{
			UserID:         user.ID,
			Name:           user.Name,
			AvatarInitials: user.AvatarInitials,
			Level:          profile.Level,
			WeeklyPoints:   profile.WeeklyPoints,
		}

		if stats, err := s.store.ActivityStats(ctx, profile.UserID); err == nil {
			entry.ActivitiesCompleted = stats.Completed
		} else {
			s.logger.Warn("failed to load activity stats for ranking", "user_id", profile.UserID, "error", err)
		}
		if stats, err := s.store.DealStats(ctx, profile.UserID, weekAgo); err == nil {
			entry.DealsProgressed = stats.Progressed
		} else {
			s.logger.Warn("failed to load deal stats for ranking", "user_id", profile.UserID, "error", err)
		}

		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].WeeklyPoints > entries[j].WeeklyPoints
	})
	for i := range entries {
		entries[i].Position = i + 1
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// PersistedWeeklyRanking reads the stored ranking rows for the current week
func (s *GamificationService) PersistedWeeklyRanking(ctx context.Context, limit int) ([]domain.RankingEntry, error) {
	limit = s.clampLimit(limit)
	return s.store.GetWeeklyRanking(ctx, domain.WeekStart(time.Now()), limit)
}

// RecalculateWeeklyRanking replaces the persisted ranking rows for the
// current week with a fresh snapshot of weekly points
func (s *GamificationService) RecalculateWeeklyRanking(ctx context.Context) error {
	weekStart := domain.WeekStart(time.Now())
	if err := s.store.ReplaceWeeklyRanking(ctx, weekStart); err != nil {
		return fmt.Errorf("failed to recalculate weekly ranking: %w", err)
	}
	s.logger.Info("weekly ranking recalculated", "week_start", weekStart.Format("2006-01-02"))
	return nil
}

// ResetWeeklyCycle closes out the week: the final ranking is computed,
// the top broker receives the first place achievement, and weekly
// points are zeroed for the next cycle. The reset step can be disabled
// in configuration for carry-over scoring.
func (s *GamificationService) ResetWeeklyCycle(ctx context.Context) error {
	ranking, err := s.ComputeWeeklyRanking(ctx, 0)
	if err != nil {
		return err
	}

	if len(ranking) > 0 {
		if err := s.grantFirstPlace(ctx, ranking[0].UserID); err != nil {
			s.logger.Warn("failed to grant first place", "user_id", ranking[0].UserID, "error", err)
		}
	}

	if s.ranking.KeepWeeklyPoints {
		s.logger.Info("weekly points reset disabled, keeping scores")
		return nil
	}

	if err := s.store.ResetAllWeeklyPoints(ctx); err != nil {
		return fmt.Errorf("failed to reset weekly points: %w", err)
	}
	if s.leaderboard != nil {
		if err := s.leaderboard.Reset(ctx); err != nil {
			s.logger.Warn("failed to reset live leaderboard", "error", err)
		}
	}

	s.logger.Info("weekly points reset", "participants", len(ranking))
	return nil
}

// grantFirstPlace completes the first place achievement for the week's
// winner. Already-completed grants are a silent no-op.
func (s *GamificationService) grantFirstPlace(ctx context.Context, userID string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	achievement, ok := s.catalogByID[domain.AchievementFirstPlace]
	if !ok {
		return domain.ErrAchievementNotFound
	}

	settings := s.activeSettings(ctx)
	profile, err := s.ensureProfile(ctx, userID)
	if err != nil {
		return err
	}

	entry := profile.Achievement(achievement.ID)
	if entry == nil || entry.Completed {
		return nil
	}

	entry.Progress = achievement.Requirement
	result := &Result{Profile: profile}
	s.completeAchievement(ctx, profile, achievement, entry, settings, result)

	profile.UpdatedAt = time.Now()
	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	s.dispatch(result.Notifications)
	return nil
}

// ApplyWeeklyDecay reduces every profile's weekly points by the active
// decay rate, writing a negative ledger entry per decayed profile. Total
// points and levels are untouched. A zero rate disables the job.
func (s *GamificationService) ApplyWeeklyDecay(ctx context.Context) error {
	settings := s.activeSettings(ctx)
	rate := settings.PointsDecayRate
	if rate <= 0 {
		s.logger.Info("points decay disabled, skipping")
		return nil
	}

	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	decayed := 0
	for i := range profiles {
		if s.decayProfile(ctx, profiles[i].UserID, rate) {
			decayed++
		}
	}

	s.logger.Info("weekly points decay applied", "rate", rate, "profiles", decayed)
	return nil
}

// decayProfile applies the decay to one user. The profile is re-read
// under the user's lock so a grant landing after the list snapshot is
// decayed too, not overwritten.
func (s *GamificationService) decayProfile(ctx context.Context, userID string, rate float64) bool {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load profile for decay", "user_id", userID, "error", err)
		return false
	}
	if profile.WeeklyPoints <= 0 {
		return false
	}

	next := int(math.Floor(float64(profile.WeeklyPoints) * (1 - rate)))
	delta := next - profile.WeeklyPoints
	if delta == 0 {
		return false
	}

	profile.WeeklyPoints = next
	profile.UpdatedAt = time.Now()
	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		s.logger.Error("failed to decay profile", "user_id", userID, "error", err)
		return false
	}

	entry := domain.PointsHistoryEntry{
		ID:         uuid.New().String(),
		UserID:     userID,
		Points:     delta,
		Reason:     "Weekly points decay",
		SourceType: domain.SourceDecay,
		CreatedAt:  time.Now(),
	}
	if err := s.store.AppendLedgerEntry(ctx, entry); err != nil {
		s.logger.Warn("failed to record decay entry", "user_id", userID, "error", err)
	}

	if s.leaderboard != nil {
		if err := s.leaderboard.SetPoints(ctx, userID, next); err != nil {
			s.logger.Warn("failed to update live leaderboard", "user_id", userID, "error", err)
		}
	}

	return true
}

// ExpireStreaks zeroes the streak of every profile whose last activity
// is older than the streak window. Last-active timestamps are kept so a
// later event restarts the streak at one.
func (s *GamificationService) ExpireStreaks(ctx context.Context) error {
	settings := s.activeSettings(ctx)
	cutoff := time.Now().Add(-time.Duration(settings.StreakRequirementHours) * time.Hour)

	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	expired := 0
	for i := range profiles {
		if s.expireStreak(ctx, profiles[i].UserID, cutoff) {
			expired++
		}
	}

	s.logger.Info("streak sweep finished", "expired", expired)
	return nil
}

// expireStreak zeroes one user's streak if it is still stale when
// re-read under the user's lock. Activity between the list snapshot
// and the lock keeps the streak alive.
func (s *GamificationService) expireStreak(ctx context.Context, userID string, cutoff time.Time) bool {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load profile for streak sweep", "user_id", userID, "error", err)
		return false
	}
	if profile.Streak == 0 || profile.LastActive == nil || !profile.LastActive.Before(cutoff) {
		return false
	}

	profile.Streak = 0
	profile.UpdatedAt = time.Now()
	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		s.logger.Error("failed to expire streak", "user_id", userID, "error", err)
		return false
	}

	return true
}

func (s *GamificationService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.ranking.DefaultLimit
	}
	if limit > s.ranking.MaxLimit {
		return s.ranking.MaxLimit
	}
	return limit
}
