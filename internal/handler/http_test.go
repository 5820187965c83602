package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerhub/gamification/internal/config"
	"github.com/brokerhub/gamification/internal/domain"
	"github.com/brokerhub/gamification/internal/service"
	"github.com/brokerhub/gamification/internal/websocket"
)

// stubStore satisfies service.Store with canned responses, enough to
// route requests through the real service into the handler's error
// mapping.
type stubStore struct {
	settingsErr error
}

func (s *stubStore) GetProfile(context.Context, string) (*domain.Profile, error) {
	return nil, domain.ErrProfileNotFound
}

func (s *stubStore) UpsertProfile(context.Context, *domain.Profile) error { return nil }

func (s *stubStore) ListProfiles(context.Context) ([]domain.Profile, error) { return nil, nil }

func (s *stubStore) ResetAllWeeklyPoints(context.Context) error { return nil }

func (s *stubStore) AppendLedgerEntry(context.Context, domain.PointsHistoryEntry) error { return nil }

func (s *stubStore) ListLedgerEntries(context.Context, string, int) ([]domain.PointsHistoryEntry, error) {
	return nil, nil
}

func (s *stubStore) ReplaceWeeklyRanking(context.Context, time.Time) error { return nil }

func (s *stubStore) GetWeeklyRanking(context.Context, time.Time, int) ([]domain.RankingEntry, error) {
	return nil, nil
}

func (s *stubStore) GetUser(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func (s *stubStore) GetUsersByRole(context.Context, string) ([]domain.User, error) { return nil, nil }

func (s *stubStore) RecordActivity(context.Context, string, string, time.Time, time.Time) error {
	return nil
}

func (s *stubStore) RecordDealStage(context.Context, string, string, domain.DealStage, time.Time) error {
	return nil
}

func (s *stubStore) ActivityStats(context.Context, string) (domain.ActivityStats, error) {
	return domain.ActivityStats{}, nil
}

func (s *stubStore) DealStats(context.Context, string, time.Time) (domain.DealStats, error) {
	return domain.DealStats{}, nil
}

func (s *stubStore) ActiveSettings(context.Context) (*domain.Settings, error) {
	if s.settingsErr != nil {
		return nil, s.settingsErr
	}
	settings := domain.DefaultSettings()
	settings.Version = 1
	settings.Active = true
	return &settings, nil
}

func (s *stubStore) InsertSettingsVersion(_ context.Context, settings domain.Settings) (*domain.Settings, error) {
	settings.Version = 1
	settings.Active = true
	return &settings, nil
}

func newTestHandler(store service.Store) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewGamificationService(store, nil, nil, &config.RankingConfig{
		DefaultLimit: 20,
		MaxLimit:     100,
	}, logger)
	hub := websocket.NewHub(logger)
	return NewHandler(svc, nil, nil, hub, logger)
}

func TestGetSettingsMapsWrappedNotFound(t *testing.T) {
	// A store layer may wrap the sentinel; the handler must still map
	// it to 404
	store := &stubStore{
		settingsErr: fmt.Errorf("loading settings: %w", domain.ErrSettingsNotFound),
	}
	router := newTestHandler(store).Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScoreEventRejectsInvalidPayload(t *testing.T) {
	router := newTestHandler(&stubStore{}).Router()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/message-sent", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.ErrInvalidEvent.Error())
}

func TestUpdateSettingsRejectsInvalid(t *testing.T) {
	router := newTestHandler(&stubStore{}).Router()

	body := `{"level_thresholds":{"bronze":0},"points_decay_rate":2.0,"streak_requirement_hours":24}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateSettingsInstallsVersion(t *testing.T) {
	router := newTestHandler(&stubStore{}).Router()

	body := `{"level_thresholds":{"bronze":0,"silver":1000},"points_decay_rate":0.1,"streak_requirement_hours":24}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":1`)
}
