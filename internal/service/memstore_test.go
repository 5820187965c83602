package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/brokerhub/gamification/internal/domain"
)

type memActivity struct {
	userID      string
	dueDate     time.Time
	completedAt time.Time
}

type memDeal struct {
	userID    string
	stage     domain.DealStage
	updatedAt time.Time
}

// memStore is an in-memory Store for tests. Reads return copies so the
// engine's mutations only land through UpsertProfile, mirroring the
// database round-trip.
type memStore struct {
	mu         sync.Mutex
	profiles   map[string]domain.Profile
	ledger     []domain.PointsHistoryEntry
	users      map[string]domain.User
	activities map[string]memActivity
	deals      map[string]memDeal
	settings   []domain.Settings
	rankings   map[time.Time][]domain.RankingEntry
}

func newMemStore() *memStore {
	return &memStore{
		profiles:   make(map[string]domain.Profile),
		users:      make(map[string]domain.User),
		activities: make(map[string]memActivity),
		deals:      make(map[string]memDeal),
		rankings:   make(map[time.Time][]domain.RankingEntry),
	}
}

func copyProfile(p domain.Profile) domain.Profile {
	achievements := make([]domain.UserAchievement, len(p.Achievements))
	copy(achievements, p.Achievements)
	p.Achievements = achievements
	return p
}

func (s *memStore) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	out := copyProfile(p)
	return &out, nil
}

func (s *memStore) UpsertProfile(_ context.Context, profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = copyProfile(*profile)
	return nil
}

func (s *memStore) ListProfiles(_ context.Context) ([]domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, copyProfile(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *memStore) ResetAllWeeklyPoints(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.profiles {
		p.WeeklyPoints = 0
		s.profiles[id] = p
	}
	return nil
}

func (s *memStore) AppendLedgerEntry(_ context.Context, entry domain.PointsHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = append(s.ledger, entry)
	return nil
}

func (s *memStore) ListLedgerEntries(_ context.Context, userID string, limit int) ([]domain.PointsHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PointsHistoryEntry
	for i := len(s.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if s.ledger[i].UserID == userID {
			out = append(out, s.ledger[i])
		}
	}
	return out, nil
}

func (s *memStore) entriesFor(userID string) []domain.PointsHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PointsHistoryEntry
	for _, e := range s.ledger {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) ReplaceWeeklyRanking(_ context.Context, weekStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []domain.RankingEntry
	for id, p := range s.profiles {
		user, ok := s.users[id]
		if !ok || user.Role != domain.RoleBroker || p.WeeklyPoints <= 0 {
			continue
		}
		rows = append(rows, domain.RankingEntry{
			UserID:       id,
			Name:         user.Name,
			Level:        p.Level,
			WeeklyPoints: p.WeeklyPoints,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].WeeklyPoints > rows[j].WeeklyPoints })
	for i := range rows {
		rows[i].Position = i + 1
	}
	s.rankings[weekStart] = rows
	return nil
}

func (s *memStore) GetWeeklyRanking(_ context.Context, weekStart time.Time, limit int) ([]domain.RankingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rankings[weekStart]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]domain.RankingEntry, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *memStore) GetUser(_ context.Context, userID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}

func (s *memStore) GetUsersByRole(_ context.Context, role string) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.User
	for _, u := range s.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *memStore) RecordActivity(_ context.Context, activityID, userID string, dueDate, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities[activityID] = memActivity{userID: userID, dueDate: dueDate, completedAt: completedAt}
	return nil
}

func (s *memStore) RecordDealStage(_ context.Context, dealID, userID string, stage domain.DealStage, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deals[dealID] = memDeal{userID: userID, stage: stage, updatedAt: updatedAt}
	return nil
}

func (s *memStore) ActivityStats(_ context.Context, userID string) (domain.ActivityStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := domain.ActivityStats{}
	perDay := make(map[string]int)
	for _, a := range s.activities {
		if a.userID != userID {
			continue
		}
		stats.Completed++
		if a.completedAt.Before(a.dueDate) {
			stats.CompletedOnTime++
		}
		day := a.completedAt.Format("2006-01-02")
		perDay[day]++
		if perDay[day] > stats.MaxCompletedInDay {
			stats.MaxCompletedInDay = perDay[day]
		}
	}
	return stats, nil
}

func (s *memStore) DealStats(_ context.Context, userID string, closedSince time.Time) (domain.DealStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := domain.DealStats{}
	for _, d := range s.deals {
		if d.userID != userID {
			continue
		}
		if d.stage != domain.StageInitialContact {
			stats.Progressed++
		}
		if d.stage == domain.StageClosing && !d.updatedAt.Before(closedSince) {
			stats.ClosedTrailingWeek++
		}
	}
	return stats, nil
}

func (s *memStore) ActiveSettings(_ context.Context) (*domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.settings) - 1; i >= 0; i-- {
		if s.settings[i].Active {
			out := s.settings[i]
			return &out, nil
		}
	}
	return nil, domain.ErrSettingsNotFound
}

func (s *memStore) InsertSettingsVersion(_ context.Context, settings domain.Settings) (*domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version := 0
	for i := range s.settings {
		if s.settings[i].Version > version {
			version = s.settings[i].Version
		}
		s.settings[i].Active = false
	}
	settings.Version = version + 1
	settings.Active = true
	settings.CreatedAt = time.Now()
	s.settings = append(s.settings, settings)
	out := settings
	return &out, nil
}
