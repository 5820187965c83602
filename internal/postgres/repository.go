package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brokerhub/gamification/internal/config"
	"github.com/brokerhub/gamification/internal/domain"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			role VARCHAR(32) NOT NULL,
			avatar_initials VARCHAR(8),
			team_id VARCHAR(64),
			manager_id VARCHAR(64),
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS gamification_profiles (
			user_id VARCHAR(64) PRIMARY KEY,
			level VARCHAR(16) NOT NULL DEFAULT 'bronze',
			total_points INT NOT NULL DEFAULT 0,
			weekly_points INT NOT NULL DEFAULT 0,
			streak INT NOT NULL DEFAULT 0,
			last_active TIMESTAMPTZ,
			achievements JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS points_history (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			points INT NOT NULL,
			reason TEXT NOT NULL,
			source_type VARCHAR(20) NOT NULL,
			source_id VARCHAR(64),
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS weekly_rankings (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			week_start DATE NOT NULL,
			position INT NOT NULL,
			points INT NOT NULL,
			UNIQUE(user_id, week_start)
		)`,
		`CREATE TABLE IF NOT EXISTS gamification_settings (
			id BIGSERIAL PRIMARY KEY,
			level_thresholds JSONB NOT NULL,
			points_decay_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			streak_requirement_hours INT NOT NULL DEFAULT 24,
			version INT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS activities (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			due_date TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS deals (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			stage VARCHAR(32) NOT NULL,
			last_updated TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_points_history_user ON points_history(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_weekly_rankings_week ON weekly_rankings(week_start, position)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_user ON activities(user_id, completed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_deals_user ON deals(user_id, stage)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// GetProfile retrieves a gamification profile by user id
func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `
		SELECT user_id, level, total_points, weekly_points, streak, last_active, achievements, created_at, updated_at
		FROM gamification_profiles
		WHERE user_id = $1
	`
	var profile domain.Profile
	var achievementsJSON []byte
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.Level,
		&profile.TotalPoints,
		&profile.WeeklyPoints,
		&profile.Streak,
		&profile.LastActive,
		&achievementsJSON,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("getting profile: %w", err)
	}

	if err := json.Unmarshal(achievementsJSON, &profile.Achievements); err != nil {
		return nil, fmt.Errorf("decoding achievements: %w", err)
	}
	return &profile, nil
}

// UpsertProfile inserts or replaces a gamification profile
func (r *Repository) UpsertProfile(ctx context.Context, profile *domain.Profile) error {
	achievementsJSON, err := json.Marshal(profile.Achievements)
	if err != nil {
		return fmt.Errorf("encoding achievements: %w", err)
	}

	query := `
		INSERT INTO gamification_profiles
			(user_id, level, total_points, weekly_points, streak, last_active, achievements, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id)
		DO UPDATE SET
			level = $2,
			total_points = $3,
			weekly_points = $4,
			streak = $5,
			last_active = $6,
			achievements = $7,
			updated_at = $9
	`
	_, err = r.pool.Exec(ctx, query,
		profile.UserID,
		string(profile.Level),
		profile.TotalPoints,
		profile.WeeklyPoints,
		profile.Streak,
		profile.LastActive,
		achievementsJSON,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	return nil
}

// ListProfiles retrieves all gamification profiles
func (r *Repository) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	query := `
		SELECT user_id, level, total_points, weekly_points, streak, last_active, achievements, created_at, updated_at
		FROM gamification_profiles
		ORDER BY user_id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var profile domain.Profile
		var achievementsJSON []byte
		err := rows.Scan(
			&profile.UserID,
			&profile.Level,
			&profile.TotalPoints,
			&profile.WeeklyPoints,
			&profile.Streak,
			&profile.LastActive,
			&achievementsJSON,
			&profile.CreatedAt,
			&profile.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		if err := json.Unmarshal(achievementsJSON, &profile.Achievements); err != nil {
			return nil, fmt.Errorf("decoding achievements: %w", err)
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

// ResetAllWeeklyPoints zeroes weekly points across every profile
func (r *Repository) ResetAllWeeklyPoints(ctx context.Context) error {
	query := `UPDATE gamification_profiles SET weekly_points = 0, updated_at = $1 WHERE weekly_points <> 0`
	_, err := r.pool.Exec(ctx, query, time.Now())
	if err != nil {
		return fmt.Errorf("resetting weekly points: %w", err)
	}
	return nil
}

// AppendLedgerEntry records one points history entry
func (r *Repository) AppendLedgerEntry(ctx context.Context, entry domain.PointsHistoryEntry) error {
	query := `
		INSERT INTO points_history (id, user_id, points, reason, source_type, source_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Points,
		entry.Reason,
		string(entry.SourceType),
		entry.SourceID,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appending ledger entry: %w", err)
	}
	return nil
}

// ListLedgerEntries retrieves a user's points history, newest first
func (r *Repository) ListLedgerEntries(ctx context.Context, userID string, limit int) ([]domain.PointsHistoryEntry, error) {
	query := `
		SELECT id, user_id, points, reason, source_type, COALESCE(source_id, ''), created_at
		FROM points_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.PointsHistoryEntry
	for rows.Next() {
		var entry domain.PointsHistoryEntry
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Points,
			&entry.Reason,
			&entry.SourceType,
			&entry.SourceID,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ActiveSettings retrieves the single active settings version
func (r *Repository) ActiveSettings(ctx context.Context) (*domain.Settings, error) {
	query := `
		SELECT level_thresholds, points_decay_rate, streak_requirement_hours, version, active, created_at
		FROM gamification_settings
		WHERE active = TRUE
		ORDER BY version DESC
		LIMIT 1
	`
	var settings domain.Settings
	var thresholdsJSON []byte
	err := r.pool.QueryRow(ctx, query).Scan(
		&thresholdsJSON,
		&settings.PointsDecayRate,
		&settings.StreakRequirementHours,
		&settings.Version,
		&settings.Active,
		&settings.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("getting settings: %w", err)
	}

	if err := json.Unmarshal(thresholdsJSON, &settings.LevelThresholds); err != nil {
		return nil, fmt.Errorf("decoding level thresholds: %w", err)
	}
	return &settings, nil
}

// InsertSettingsVersion deactivates the current settings and inserts a
// new active version. Settings rows are never mutated in place.
func (r *Repository) InsertSettingsVersion(ctx context.Context, settings domain.Settings) (*domain.Settings, error) {
	thresholdsJSON, err := json.Marshal(settings.LevelThresholds)
	if err != nil {
		return nil, fmt.Errorf("encoding level thresholds: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE gamification_settings SET active = FALSE WHERE active = TRUE`); err != nil {
		return nil, fmt.Errorf("deactivating settings: %w", err)
	}

	var lastVersion int
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM gamification_settings`).Scan(&lastVersion); err != nil {
		return nil, fmt.Errorf("reading last settings version: %w", err)
	}

	settings.Version = lastVersion + 1
	settings.Active = true
	settings.CreatedAt = time.Now()

	_, err = tx.Exec(ctx, `
		INSERT INTO gamification_settings
			(level_thresholds, points_decay_rate, streak_requirement_hours, version, active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)`,
		thresholdsJSON,
		settings.PointsDecayRate,
		settings.StreakRequirementHours,
		settings.Version,
		settings.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting settings version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing settings version: %w", err)
	}
	return &settings, nil
}
