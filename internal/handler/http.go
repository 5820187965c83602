package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brokerhub/gamification/internal/domain"
	"github.com/brokerhub/gamification/internal/redis"
	"github.com/brokerhub/gamification/internal/service"
	"github.com/brokerhub/gamification/internal/websocket"
)

// JobRunner triggers a maintenance job outside its schedule
type JobRunner interface {
	Trigger(ctx context.Context, name string) error
}

// LiveRanking reads the Redis-backed weekly leaderboard
type LiveRanking interface {
	GetTopN(ctx context.Context, n int) ([]redis.Entry, error)
	GetUserRank(ctx context.Context, userID string) (*redis.Entry, error)
	GetCount(ctx context.Context) (int64, error)
}

// Handler provides HTTP handlers for the gamification API
type Handler struct {
	service *service.GamificationService
	jobs    JobRunner
	live    LiveRanking
	hub     *websocket.Hub
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler. jobs may be nil when the
// scheduler is disabled; the trigger endpoints then return 404.
func NewHandler(service *service.GamificationService, jobs JobRunner, live LiveRanking, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		jobs:    jobs,
		live:    live,
		hub:     hub,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Event ingestion
		r.Route("/events", func(r chi.Router) {
			r.Post("/activity-completed", h.ActivityCompleted)
			r.Post("/deal-progressed", h.DealProgressed)
			r.Post("/message-sent", h.MessageSent)
		})

		// Per-user gamification state
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/profile", h.GetProfile)
			r.Get("/level-progress", h.GetLevelProgress)
			r.Get("/points-history", h.GetPointsHistory)
			r.Get("/achievements", h.GetUserAchievements)
			r.Get("/achievements/completed", h.GetCompletedAchievements)
		})

		// Achievement catalog
		r.Get("/achievements", h.GetCatalog)

		// Weekly ranking
		r.Route("/ranking", func(r chi.Router) {
			r.Get("/weekly", h.GetWeeklyRanking)
			r.Get("/weekly/persisted", h.GetPersistedRanking)
			r.Get("/live", h.GetLiveRanking)
			r.Get("/live/{userID}", h.GetLiveUserRank)
		})

		// Settings
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.GetSettings)
			r.Put("/", h.UpdateSettings)
		})

		// Manual job triggers
		r.Post("/jobs/{jobName}/run", h.RunJob)

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections":   h.hub.GetTotalConnections(),
		"ranking_subscribers": h.hub.GetSubscriberCount(websocket.ChannelRanking),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// ActivityCompleted scores a completed-activity event
func (h *Handler) ActivityCompleted(w http.ResponseWriter, r *http.Request) {
	h.scoreEvent(w, r, domain.EventActivityCompleted)
}

// DealProgressed scores a deal stage change event
func (h *Handler) DealProgressed(w http.ResponseWriter, r *http.Request) {
	h.scoreEvent(w, r, domain.EventDealStageChanged)
}

// MessageSent scores a team communication event
func (h *Handler) MessageSent(w http.ResponseWriter, r *http.Request) {
	h.scoreEvent(w, r, domain.EventMessageSent)
}

// scoreEvent decodes the event payload, forces the endpoint's type and
// hands it to the scoring engine
func (h *Handler) scoreEvent(w http.ResponseWriter, r *http.Request, eventType domain.EventType) {
	var event domain.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	event.Type = eventType

	result, err := h.service.RecordEvent(r.Context(), event)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidEvent) {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("failed to score event", "type", eventType, "user_id", event.UserID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	if result.PointsAwarded != 0 {
		h.broadcastRanking()
	}

	h.writeSuccess(w, result)
}

// broadcastRanking pushes a fresh weekly ranking to subscribed clients.
// Runs detached so a slow recompute never delays the event response.
func (h *Handler) broadcastRanking() {
	if h.hub.GetSubscriberCount(websocket.ChannelRanking) == 0 {
		return
	}
	go func() {
		entries, err := h.service.ComputeWeeklyRanking(context.Background(), 0)
		if err != nil {
			h.logger.Warn("failed to compute ranking for broadcast", "error", err)
			return
		}
		h.hub.BroadcastRankingUpdate(entries)
	}()
}

// GetProfile returns a user's gamification profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	profile, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get profile", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, profile)
}

// GetLevelProgress returns a user's progress toward the next level
func (h *Handler) GetLevelProgress(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	progress, err := h.service.LevelProgress(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get level progress", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, progress)
}

// GetPointsHistory returns a user's ledger entries, newest first
func (h *Handler) GetPointsHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	entries, err := h.service.PointsHistory(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to get points history", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, entries)
}

// GetUserAchievements returns a user's per-achievement progress
func (h *Handler) GetUserAchievements(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	profile, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get achievements", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, profile.Achievements)
}

// GetCompletedAchievements returns the catalog entries a user has earned
func (h *Handler) GetCompletedAchievements(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	completed, err := h.service.CompletedAchievements(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get completed achievements", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, completed)
}

// GetCatalog returns the achievement definitions
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.service.Catalog())
}

// GetWeeklyRanking returns the live weekly ranking
func (h *Handler) GetWeeklyRanking(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ComputeWeeklyRanking(r.Context(), h.limitParam(r))
	if err != nil {
		h.logger.Error("failed to compute ranking", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, entries)
}

// GetPersistedRanking returns the stored ranking rows for the current week
func (h *Handler) GetPersistedRanking(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.PersistedWeeklyRanking(r.Context(), h.limitParam(r))
	if err != nil {
		h.logger.Error("failed to get persisted ranking", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, entries)
}

// GetLiveRanking returns the Redis-backed leaderboard, points only.
// Cheaper than the joined weekly ranking; meant for high-frequency polling.
func (h *Handler) GetLiveRanking(w http.ResponseWriter, r *http.Request) {
	limit := h.limitParam(r)
	if limit == 0 {
		limit = 20
	}

	entries, err := h.live.GetTopN(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to read live ranking", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	count, err := h.live.GetCount(r.Context())
	if err != nil {
		h.logger.Warn("failed to count live ranking", "error", err)
	}

	h.writeSuccess(w, map[string]interface{}{
		"entries":      entries,
		"participants": count,
	})
}

// GetLiveUserRank returns one user's position on the live leaderboard
func (h *Handler) GetLiveUserRank(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	entry, err := h.live.GetUserRank(r.Context(), userID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to read live rank", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, entry)
}

func (h *Handler) limitParam(r *http.Request) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return l
		}
	}
	return 0
}

// GetSettings returns the active settings version
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrSettingsNotFound) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get settings", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, settings)
}

// UpdateSettings installs a new settings version
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	installed, err := h.service.UpdateSettings(r.Context(), settings)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSettings) {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger.Error("failed to update settings", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    installed,
	})
}

// RunJob triggers a maintenance job immediately
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		h.writeError(w, http.StatusNotFound, domain.ErrInvalidRequest)
		return
	}

	jobName := chi.URLParam(r, "jobName")
	if err := h.jobs.Trigger(r.Context(), jobName); err != nil {
		h.logger.Error("manual job run failed", "job", jobName, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}

	h.writeSuccess(w, map[string]string{"status": "completed", "job": jobName})
}
