package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerhub/gamification/internal/domain"
)

func seedProfile(t *testing.T, store *memStore, userID string, weekly, total int) {
	t.Helper()
	profile := domain.NewProfile(userID, domain.DefaultCatalog())
	profile.WeeklyPoints = weekly
	profile.TotalPoints = total
	require.NoError(t, store.UpsertProfile(context.Background(), profile))
}

func TestComputeWeeklyRankingBrokersOnly(t *testing.T) {
	store := newMemStore()
	seedBroker(store, "ana", "Ana")
	seedBroker(store, "bruno", "Bruno")
	store.users["carla"] = domain.User{ID: "carla", Name: "Carla", Role: "manager"}

	seedProfile(t, store, "ana", 120, 120)
	seedProfile(t, store, "bruno", 300, 300)
	seedProfile(t, store, "carla", 500, 500)

	svc := newTestService(store)
	entries, err := svc.ComputeWeeklyRanking(context.Background(), 0)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "bruno", entries[0].UserID)
	assert.Equal(t, 1, entries[0].Position)
	assert.Equal(t, 300, entries[0].WeeklyPoints)
	assert.Equal(t, "ana", entries[1].UserID)
	assert.Equal(t, 2, entries[1].Position)
}

func TestComputeWeeklyRankingHonorsLimit(t *testing.T) {
	store := newMemStore()
	seedBroker(store, "ana", "Ana")
	seedBroker(store, "bruno", "Bruno")
	seedBroker(store, "diego", "Diego")

	seedProfile(t, store, "ana", 100, 100)
	seedProfile(t, store, "bruno", 200, 200)
	seedProfile(t, store, "diego", 300, 300)

	svc := newTestService(store)
	entries, err := svc.ComputeWeeklyRanking(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "diego", entries[0].UserID)
}

func TestResetWeeklyCycleGrantsFirstPlace(t *testing.T) {
	store := newMemStore()
	seedBroker(store, "ana", "Ana")
	seedBroker(store, "bruno", "Bruno")

	seedProfile(t, store, "ana", 150, 150)
	seedProfile(t, store, "bruno", 90, 90)

	svc := newTestService(store)
	require.NoError(t, svc.ResetWeeklyCycle(context.Background()))

	winner, err := store.GetProfile(context.Background(), "ana")
	require.NoError(t, err)

	entry := winner.Achievement(domain.AchievementFirstPlace)
	require.NotNil(t, entry)
	assert.True(t, entry.Completed)
	// The 200 point reward lands on the total; the weekly reset wipes
	// the weekly balance afterwards
	assert.Equal(t, 150+200, winner.TotalPoints)
	assert.Zero(t, winner.WeeklyPoints)

	loser, err := store.GetProfile(context.Background(), "bruno")
	require.NoError(t, err)
	assert.Zero(t, loser.WeeklyPoints)
	assert.Equal(t, 90, loser.TotalPoints)
}

func TestResetWeeklyCycleFirstPlaceIsWriteOnce(t *testing.T) {
	store := newMemStore()
	seedBroker(store, "ana", "Ana")
	seedProfile(t, store, "ana", 100, 100)

	svc := newTestService(store)
	require.NoError(t, svc.ResetWeeklyCycle(context.Background()))

	// Win again the following week
	profile, err := store.GetProfile(context.Background(), "ana")
	require.NoError(t, err)
	profile.WeeklyPoints = 80
	require.NoError(t, store.UpsertProfile(context.Background(), profile))

	require.NoError(t, svc.ResetWeeklyCycle(context.Background()))

	var rewards int
	for _, e := range store.entriesFor("ana") {
		if e.SourceType == domain.SourceAchievement {
			rewards++
		}
	}
	assert.Equal(t, 1, rewards)
}

func TestResetWeeklyCycleCanKeepScores(t *testing.T) {
	store := newMemStore()
	seedBroker(store, "ana", "Ana")
	seedProfile(t, store, "ana", 100, 100)

	svc := newTestService(store)
	svc.ranking.KeepWeeklyPoints = true

	require.NoError(t, svc.ResetWeeklyCycle(context.Background()))

	profile, err := store.GetProfile(context.Background(), "ana")
	require.NoError(t, err)
	// First place reward still lands, scores carry over
	assert.Equal(t, 100+200, profile.WeeklyPoints)
}

func TestApplyWeeklyDecay(t *testing.T) {
	store := newMemStore()
	seedBroker(store, "ana", "Ana")
	seedProfile(t, store, "ana", 100, 400)

	svc := newTestService(store)
	settings := domain.DefaultSettings()
	settings.PointsDecayRate = 0.3
	_, err := store.InsertSettingsVersion(context.Background(), settings)
	require.NoError(t, err)

	require.NoError(t, svc.ApplyWeeklyDecay(context.Background()))

	profile, err := store.GetProfile(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, 70, profile.WeeklyPoints)
	// Decay never touches the lifetime total
	assert.Equal(t, 400, profile.TotalPoints)

	entries := store.entriesFor("ana")
	require.Len(t, entries, 1)
	assert.Equal(t, -30, entries[0].Points)
	assert.Equal(t, domain.SourceDecay, entries[0].SourceType)
	assert.Equal(t, "Weekly points decay", entries[0].Reason)
}

func TestApplyWeeklyDecayZeroRateIsNoOp(t *testing.T) {
	store := newMemStore()
	seedBroker(store, "ana", "Ana")
	seedProfile(t, store, "ana", 100, 100)

	svc := newTestService(store)
	require.NoError(t, svc.ApplyWeeklyDecay(context.Background()))

	profile, err := store.GetProfile(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, 100, profile.WeeklyPoints)
	assert.Empty(t, store.entriesFor("ana"))
}

func TestExpireStreaks(t *testing.T) {
	store := newMemStore()
	seedBroker(store, "ana", "Ana")
	seedBroker(store, "bruno", "Bruno")

	stale := time.Now().Add(-72 * time.Hour)
	fresh := time.Now().Add(-2 * time.Hour)

	staleProfile := domain.NewProfile("ana", domain.DefaultCatalog())
	staleProfile.Streak = 4
	staleProfile.LastActive = &stale
	require.NoError(t, store.UpsertProfile(context.Background(), staleProfile))

	freshProfile := domain.NewProfile("bruno", domain.DefaultCatalog())
	freshProfile.Streak = 2
	freshProfile.LastActive = &fresh
	require.NoError(t, store.UpsertProfile(context.Background(), freshProfile))

	svc := newTestService(store)
	require.NoError(t, svc.ExpireStreaks(context.Background()))

	expired, err := store.GetProfile(context.Background(), "ana")
	require.NoError(t, err)
	assert.Zero(t, expired.Streak)
	// The timestamp survives so a later event restarts the streak at one
	require.NotNil(t, expired.LastActive)
	assert.Equal(t, stale.Unix(), expired.LastActive.Unix())

	kept, err := store.GetProfile(context.Background(), "bruno")
	require.NoError(t, err)
	assert.Equal(t, 2, kept.Streak)
	assert.Empty(t, store.entriesFor("ana"))
}

func TestRecalculateWeeklyRankingPersistsRows(t *testing.T) {
	store := newMemStore()
	seedBroker(store, "ana", "Ana")
	seedBroker(store, "bruno", "Bruno")
	seedProfile(t, store, "ana", 50, 50)
	seedProfile(t, store, "bruno", 120, 120)

	svc := newTestService(store)
	require.NoError(t, svc.RecalculateWeeklyRanking(context.Background()))

	entries, err := svc.PersistedWeeklyRanking(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bruno", entries[0].UserID)
	assert.Equal(t, 1, entries[0].Position)
}

// staleListStore delegates to memStore but runs a hook after every
// ListProfiles, simulating writes that land between a job's snapshot
// and its per-user pass.
type staleListStore struct {
	*memStore
	afterList func()
}

func (s *staleListStore) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	profiles, err := s.memStore.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	if s.afterList != nil {
		s.afterList()
		s.afterList = nil
	}
	return profiles, nil
}

func TestApplyWeeklyDecaySeesWritesAfterSnapshot(t *testing.T) {
	mem := newMemStore()
	seedBroker(mem, "ana", "Ana")
	seedProfile(t, mem, "ana", 100, 400)

	store := &staleListStore{memStore: mem}
	store.afterList = func() {
		// A grant lands right after the job listed the profiles
		profile, err := mem.GetProfile(context.Background(), "ana")
		require.NoError(t, err)
		profile.WeeklyPoints += 100
		profile.TotalPoints += 100
		require.NoError(t, mem.UpsertProfile(context.Background(), profile))
	}

	svc := newTestService(store)
	settings := domain.DefaultSettings()
	settings.PointsDecayRate = 0.5
	_, err := mem.InsertSettingsVersion(context.Background(), settings)
	require.NoError(t, err)

	require.NoError(t, svc.ApplyWeeklyDecay(context.Background()))

	profile, err := mem.GetProfile(context.Background(), "ana")
	require.NoError(t, err)
	// The decay applies to the fresh 200, not the stale 100 snapshot
	assert.Equal(t, 100, profile.WeeklyPoints)

	entries := mem.entriesFor("ana")
	require.Len(t, entries, 1)
	assert.Equal(t, -100, entries[0].Points)
}

func TestExpireStreaksKeepsStreakRefreshedAfterSnapshot(t *testing.T) {
	mem := newMemStore()
	seedBroker(mem, "ana", "Ana")

	stale := time.Now().Add(-72 * time.Hour)
	profile := domain.NewProfile("ana", domain.DefaultCatalog())
	profile.Streak = 4
	profile.LastActive = &stale
	require.NoError(t, mem.UpsertProfile(context.Background(), profile))

	store := &staleListStore{memStore: mem}
	store.afterList = func() {
		// The user becomes active again before the sweep reaches them
		fresh, err := mem.GetProfile(context.Background(), "ana")
		require.NoError(t, err)
		now := time.Now()
		fresh.Streak = 5
		fresh.LastActive = &now
		require.NoError(t, mem.UpsertProfile(context.Background(), fresh))
	}

	svc := newTestService(store)
	require.NoError(t, svc.ExpireStreaks(context.Background()))

	kept, err := mem.GetProfile(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, 5, kept.Streak)
}
