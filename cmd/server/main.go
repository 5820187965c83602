package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brokerhub/gamification/internal/config"
	"github.com/brokerhub/gamification/internal/domain"
	"github.com/brokerhub/gamification/internal/handler"
	"github.com/brokerhub/gamification/internal/kafka"
	"github.com/brokerhub/gamification/internal/postgres"
	"github.com/brokerhub/gamification/internal/redis"
	"github.com/brokerhub/gamification/internal/service"
	"github.com/brokerhub/gamification/internal/websocket"
	"github.com/brokerhub/gamification/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	leaderboard, err := redis.NewLeaderboard(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer leaderboard.Close()
	logger.Info("connected to Redis")

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize the scoring engine; the hub doubles as notification sink
	gamificationService := service.NewGamificationService(
		repo,
		leaderboard,
		wsHub,
		&cfg.Ranking,
		logger,
	)

	// Seed settings on first run
	if err := gamificationService.SeedSettings(ctx, seedSettings(&cfg.Gamification)); err != nil {
		logger.Error("failed to seed settings", "error", err)
		os.Exit(1)
	}

	// Rebuild the live leaderboard from the database (recovery)
	if err := rebuildLeaderboard(ctx, repo, leaderboard); err != nil {
		logger.Warn("failed to rebuild live leaderboard on startup", "error", err)
	}

	// Initialize the maintenance scheduler
	scheduler := worker.NewScheduler(gamificationService, &cfg.Scheduler, logger)
	if !cfg.Scheduler.Disabled {
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for event ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, gamificationService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(gamificationService, scheduler, leaderboard, wsHub, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop scheduler
	if err := scheduler.Stop(); err != nil {
		logger.Error("failed to stop scheduler", "error", err)
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}

// seedSettings converts the configured tunables into the settings
// version installed on first run
func seedSettings(cfg *config.GamificationConfig) domain.Settings {
	settings := domain.DefaultSettings()
	settings.PointsDecayRate = cfg.PointsDecayRate
	if cfg.StreakRequirementHours > 0 {
		settings.StreakRequirementHours = cfg.StreakRequirementHours
	}
	if len(cfg.LevelThresholds) > 0 {
		thresholds := make(map[domain.Level]int, len(cfg.LevelThresholds))
		for level, points := range cfg.LevelThresholds {
			thresholds[domain.Level(level)] = points
		}
		settings.LevelThresholds = thresholds
	}
	return settings
}

// rebuildLeaderboard reloads weekly points into Redis so the live
// ranking survives a cache flush or restart
func rebuildLeaderboard(ctx context.Context, repo *postgres.Repository, leaderboard *redis.Leaderboard) error {
	profiles, err := repo.ListProfiles(ctx)
	if err != nil {
		return err
	}

	points := make(map[string]int, len(profiles))
	for i := range profiles {
		if profiles[i].WeeklyPoints > 0 {
			points[profiles[i].UserID] = profiles[i].WeeklyPoints
		}
	}
	if len(points) == 0 {
		return nil
	}
	return leaderboard.BatchSetPoints(ctx, points)
}
