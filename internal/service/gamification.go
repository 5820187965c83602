package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brokerhub/gamification/internal/config"
	"github.com/brokerhub/gamification/internal/domain"
)

// Store is the persistence contract the service depends on. The
// postgres repository satisfies it; tests use in-memory fakes.
type Store interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, profile *domain.Profile) error
	ListProfiles(ctx context.Context) ([]domain.Profile, error)
	ResetAllWeeklyPoints(ctx context.Context) error

	AppendLedgerEntry(ctx context.Context, entry domain.PointsHistoryEntry) error
	ListLedgerEntries(ctx context.Context, userID string, limit int) ([]domain.PointsHistoryEntry, error)

	ReplaceWeeklyRanking(ctx context.Context, weekStart time.Time) error
	GetWeeklyRanking(ctx context.Context, weekStart time.Time, limit int) ([]domain.RankingEntry, error)

	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUsersByRole(ctx context.Context, role string) ([]domain.User, error)

	RecordActivity(ctx context.Context, activityID, userID string, dueDate, completedAt time.Time) error
	RecordDealStage(ctx context.Context, dealID, userID string, stage domain.DealStage, updatedAt time.Time) error
	ActivityStats(ctx context.Context, userID string) (domain.ActivityStats, error)
	DealStats(ctx context.Context, userID string, closedSince time.Time) (domain.DealStats, error)

	ActiveSettings(ctx context.Context) (*domain.Settings, error)
	InsertSettingsVersion(ctx context.Context, settings domain.Settings) (*domain.Settings, error)
}

// LiveLeaderboard is the optional real-time leaderboard cache
type LiveLeaderboard interface {
	IncrementPoints(ctx context.Context, userID string, delta int) (int64, error)
	SetPoints(ctx context.Context, userID string, points int) error
	Reset(ctx context.Context) error
}

// Notifier receives notifications produced by the scoring engine.
// Delivery is fire-and-forget; implementations must not block.
type Notifier interface {
	Notify(notification domain.Notification)
}

// Result describes everything a scored event changed
type Result struct {
	Profile               *domain.Profile       `json:"profile"`
	PointsAwarded         int                   `json:"points_awarded"`
	LevelChanged          bool                  `json:"level_changed"`
	PreviousLevel         domain.Level          `json:"previous_level,omitempty"`
	CompletedAchievements []domain.Achievement  `json:"completed_achievements,omitempty"`
	Notifications         []domain.Notification `json:"-"`
}

// GamificationService is the scoring engine: it converts domain events
// into points, level transitions, streaks and achievement completions.
type GamificationService struct {
	store       Store
	leaderboard LiveLeaderboard
	notifier    Notifier
	catalog     []domain.Achievement
	catalogByID map[string]domain.Achievement
	ranking     *config.RankingConfig
	logger      *slog.Logger

	// Per-user serialization: a profile's read-modify-write spans
	// several store round-trips, so concurrent events for the same
	// user must not interleave.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewGamificationService creates the scoring engine. leaderboard and
// notifier may be nil; both are side paths that never fail a grant.
func NewGamificationService(
	store Store,
	leaderboard LiveLeaderboard,
	notifier Notifier,
	rankingCfg *config.RankingConfig,
	logger *slog.Logger,
) *GamificationService {
	catalog := domain.DefaultCatalog()
	byID := make(map[string]domain.Achievement, len(catalog))
	for _, a := range catalog {
		byID[a.ID] = a
	}
	return &GamificationService{
		store:       store,
		leaderboard: leaderboard,
		notifier:    notifier,
		catalog:     catalog,
		catalogByID: byID,
		ranking:     rankingCfg,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
	}
}

// Catalog returns the achievement definitions
func (s *GamificationService) Catalog() []domain.Achievement {
	return s.catalog
}

func (s *GamificationService) userLock(userID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// RecordEvent scores one domain event: grants points, updates the
// streak for message events, and re-evaluates the achievements of the
// event's category. Side-path failures (history recording, achievement
// evaluation, notification delivery) are logged and never roll back
// the points grant.
func (s *GamificationService) RecordEvent(ctx context.Context, event domain.Event) (*Result, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	lock := s.userLock(event.UserID)
	lock.Lock()
	defer lock.Unlock()

	settings := s.activeSettings(ctx)

	profile, err := s.ensureProfile(ctx, event.UserID)
	if err != nil {
		return nil, err
	}

	result := &Result{Profile: profile}

	switch event.Type {
	case domain.EventActivityCompleted:
		if err := s.store.RecordActivity(ctx, event.ActivityID, event.UserID, event.DueDate, event.CompletedAt); err != nil {
			s.logger.Warn("failed to record activity history", "activity_id", event.ActivityID, "error", err)
		}

		points, reason := domain.ActivityPoints(event)
		if err := s.addPoints(ctx, profile, points, reason, domain.SourceActivity, event.ActivityID, settings, result); err != nil {
			return nil, err
		}
		s.evaluate(ctx, profile, settings, result, domain.AchievementTypeActivity)

	case domain.EventDealStageChanged:
		if err := s.store.RecordDealStage(ctx, event.DealID, event.UserID, event.ToStage, event.OccurredAt); err != nil {
			s.logger.Warn("failed to record deal history", "deal_id", event.DealID, "error", err)
		}

		points, reason := domain.DealPoints(event)
		if points == 0 {
			// Backward or lateral stage moves score nothing
			return result, nil
		}
		if err := s.addPoints(ctx, profile, points, reason, domain.SourceDeal, event.DealID, settings, result); err != nil {
			return nil, err
		}
		s.evaluate(ctx, profile, settings, result, domain.AchievementTypeDeal)

	case domain.EventMessageSent:
		points, reason := domain.MessagePoints()
		if err := s.addPoints(ctx, profile, points, reason, domain.SourceCommunication, "", settings, result); err != nil {
			return nil, err
		}

		s.applyStreak(profile, event.OccurredAt)
		profile.UpdatedAt = time.Now()
		if err := s.store.UpsertProfile(ctx, profile); err != nil {
			return nil, fmt.Errorf("saving streak update: %w", err)
		}

		// Communicator and Consistency both watch the streak
		s.evaluate(ctx, profile, settings, result,
			domain.AchievementTypeCommunication, domain.AchievementTypeStreak)
	}

	s.dispatch(result.Notifications)
	return result, nil
}

// addPoints is the single points-grant path: it bumps totals, reruns
// the level calculation, appends exactly one ledger entry for the
// delta, and records a zero-point level_up entry on upward transitions.
func (s *GamificationService) addPoints(
	ctx context.Context,
	profile *domain.Profile,
	points int,
	reason string,
	source domain.PointsSource,
	sourceID string,
	settings *domain.Settings,
	result *Result,
) error {
	previousLevel := profile.Level

	profile.TotalPoints += points
	profile.WeeklyPoints += points
	if profile.WeeklyPoints < 0 {
		profile.WeeklyPoints = 0
	}
	profile.Level = domain.LevelFor(profile.TotalPoints, settings.LevelThresholds)
	profile.UpdatedAt = time.Now()

	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}

	entry := domain.PointsHistoryEntry{
		ID:         uuid.New().String(),
		UserID:     profile.UserID,
		Points:     points,
		Reason:     reason,
		SourceType: source,
		SourceID:   sourceID,
		CreatedAt:  time.Now(),
	}
	if err := s.store.AppendLedgerEntry(ctx, entry); err != nil {
		return fmt.Errorf("appending ledger entry: %w", err)
	}

	result.PointsAwarded += points

	if profile.Level != previousLevel {
		result.LevelChanged = true
		result.PreviousLevel = previousLevel

		levelEntry := domain.PointsHistoryEntry{
			ID:         uuid.New().String(),
			UserID:     profile.UserID,
			Points:     0,
			Reason:     fmt.Sprintf("New level reached: %s", profile.Level),
			SourceType: domain.SourceLevelUp,
			CreatedAt:  time.Now(),
		}
		if err := s.store.AppendLedgerEntry(ctx, levelEntry); err != nil {
			s.logger.Warn("failed to record level up", "user_id", profile.UserID, "error", err)
		}

		result.Notifications = append(result.Notifications, domain.Notification{
			ID:        uuid.New().String(),
			Type:      domain.NotificationLevelUp,
			Title:     "Level Up!",
			Content:   fmt.Sprintf("You reached the %s level", profile.Level),
			UserID:    profile.UserID,
			CreatedAt: time.Now(),
		})
	}

	if s.leaderboard != nil && points != 0 {
		if _, err := s.leaderboard.IncrementPoints(ctx, profile.UserID, points); err != nil {
			s.logger.Warn("failed to update live leaderboard", "user_id", profile.UserID, "error", err)
		}
	}

	return nil
}

// ensureProfile loads a profile, lazily creating it on first contact
// and backfilling achievement entries added to the catalog since the
// profile was created.
func (s *GamificationService) ensureProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		profile = domain.NewProfile(userID, s.catalog)
		if err := s.store.UpsertProfile(ctx, profile); err != nil {
			return nil, fmt.Errorf("creating profile: %w", err)
		}
		return profile, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	if profile.BackfillAchievements(s.catalog) {
		profile.UpdatedAt = time.Now()
		if err := s.store.UpsertProfile(ctx, profile); err != nil {
			s.logger.Warn("failed to backfill achievements", "user_id", userID, "error", err)
		}
	}
	return profile, nil
}

// applyStreak updates the consecutive-day streak using calendar-day
// comparison: yesterday extends, today is a no-op, any gap restarts at
// one because the current event itself counts as day one.
func (s *GamificationService) applyStreak(profile *domain.Profile, now time.Time) {
	last := profile.LastActive
	switch {
	case last == nil:
		profile.Streak = 1
	case sameDay(*last, now):
		// Already counted today
	case sameDay(*last, now.AddDate(0, 0, -1)):
		profile.Streak++
	default:
		profile.Streak = 1
	}

	active := now
	profile.LastActive = &active
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// activeSettings loads the active settings version, falling back to
// the built-in defaults when the store has none yet.
func (s *GamificationService) activeSettings(ctx context.Context) *domain.Settings {
	settings, err := s.store.ActiveSettings(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrSettingsNotFound) {
			s.logger.Warn("failed to load settings, using defaults", "error", err)
		}
		defaults := domain.DefaultSettings()
		return &defaults
	}
	return settings
}

// dispatch forwards notifications to the sink, fire-and-forget
func (s *GamificationService) dispatch(notifications []domain.Notification) {
	if s.notifier == nil {
		return
	}
	for _, n := range notifications {
		s.notifier.Notify(n)
	}
}

// Profile returns a user's profile, creating it lazily
func (s *GamificationService) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.ensureProfile(ctx, userID)
}

// LevelProgress reports how close a user is to the next level
func (s *GamificationService) LevelProgress(ctx context.Context, userID string) (*domain.LevelProgress, error) {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	settings := s.activeSettings(ctx)
	progress := domain.ProgressToNext(profile.TotalPoints, settings.LevelThresholds)
	return &progress, nil
}

// PointsHistory returns a user's ledger entries, newest first
func (s *GamificationService) PointsHistory(ctx context.Context, userID string, limit int) ([]domain.PointsHistoryEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListLedgerEntries(ctx, userID, limit)
}

// CompletedAchievements returns the catalog entries a user has earned
func (s *GamificationService) CompletedAchievements(ctx context.Context, userID string) ([]domain.Achievement, error) {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var completed []domain.Achievement
	for _, ua := range profile.Achievements {
		if !ua.Completed {
			continue
		}
		if a, ok := s.catalogByID[ua.AchievementID]; ok {
			completed = append(completed, a)
		}
	}
	return completed, nil
}

// Settings returns the active settings version
func (s *GamificationService) Settings(ctx context.Context) (*domain.Settings, error) {
	return s.store.ActiveSettings(ctx)
}

// UpdateSettings validates and installs a new settings version,
// deactivating the previous one
func (s *GamificationService) UpdateSettings(ctx context.Context, settings domain.Settings) (*domain.Settings, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return s.store.InsertSettingsVersion(ctx, settings)
}

// SeedSettings installs the configured defaults when no settings
// version exists yet. Called once at startup.
func (s *GamificationService) SeedSettings(ctx context.Context, settings domain.Settings) error {
	_, err := s.store.ActiveSettings(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrSettingsNotFound) {
		return err
	}
	if verr := settings.Validate(); verr != nil {
		return verr
	}
	installed, err := s.store.InsertSettingsVersion(ctx, settings)
	if err != nil {
		return err
	}
	s.logger.Info("seeded gamification settings", "version", installed.Version)
	return nil
}
