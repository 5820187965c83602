package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/brokerhub/gamification/internal/domain"
)

// GetUser retrieves a user from the directory
func (r *Repository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT id, name, role, COALESCE(avatar_initials, ''), COALESCE(team_id, ''), COALESCE(manager_id, '')
		FROM users
		WHERE id = $1
	`
	var user domain.User
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Name,
		&user.Role,
		&user.AvatarInitials,
		&user.TeamID,
		&user.ManagerID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &user, nil
}

// GetUsersByRole retrieves all users with a given role
func (r *Repository) GetUsersByRole(ctx context.Context, role string) ([]domain.User, error) {
	query := `
		SELECT id, name, role, COALESCE(avatar_initials, ''), COALESCE(team_id, ''), COALESCE(manager_id, '')
		FROM users
		WHERE role = $1
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("listing users by role: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// GetBrokersByManager retrieves the brokers reporting to a manager
func (r *Repository) GetBrokersByManager(ctx context.Context, managerID string) ([]domain.User, error) {
	query := `
		SELECT id, name, role, COALESCE(avatar_initials, ''), COALESCE(team_id, ''), COALESCE(manager_id, '')
		FROM users
		WHERE role = $1 AND manager_id = $2
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query, domain.RoleBroker, managerID)
	if err != nil {
		return nil, fmt.Errorf("listing brokers by manager: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// UpsertUser inserts or updates a directory entry
func (r *Repository) UpsertUser(ctx context.Context, user domain.User) error {
	query := `
		INSERT INTO users (id, name, role, avatar_initials, team_id, manager_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))
		ON CONFLICT (id)
		DO UPDATE SET name = $2, role = $3, avatar_initials = NULLIF($4, ''), team_id = NULLIF($5, ''), manager_id = NULLIF($6, '')
	`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Name, user.Role, user.AvatarInitials, user.TeamID, user.ManagerID)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

func scanUsers(rows pgx.Rows) ([]domain.User, error) {
	var users []domain.User
	for rows.Next() {
		var user domain.User
		err := rows.Scan(
			&user.ID,
			&user.Name,
			&user.Role,
			&user.AvatarInitials,
			&user.TeamID,
			&user.ManagerID,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// RecordActivity stores a completed activity for progress derivation
func (r *Repository) RecordActivity(ctx context.Context, activityID, userID string, dueDate, completedAt time.Time) error {
	query := `
		INSERT INTO activities (id, user_id, due_date, completed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET due_date = $3, completed_at = $4
	`
	_, err := r.pool.Exec(ctx, query, activityID, userID, dueDate, completedAt)
	if err != nil {
		return fmt.Errorf("recording activity: %w", err)
	}
	return nil
}

// RecordDealStage stores a deal's current stage for progress derivation
func (r *Repository) RecordDealStage(ctx context.Context, dealID, userID string, stage domain.DealStage, updatedAt time.Time) error {
	query := `
		INSERT INTO deals (id, user_id, stage, last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET stage = $3, last_updated = $4
	`
	_, err := r.pool.Exec(ctx, query, dealID, userID, string(stage), updatedAt)
	if err != nil {
		return fmt.Errorf("recording deal stage: %w", err)
	}
	return nil
}

// ActivityStats re-derives a user's completed-activity aggregates
func (r *Repository) ActivityStats(ctx context.Context, userID string) (domain.ActivityStats, error) {
	var stats domain.ActivityStats

	query := `
		SELECT COUNT(*) FILTER (WHERE completed_at IS NOT NULL),
		       COUNT(*) FILTER (WHERE completed_at IS NOT NULL AND completed_at < due_date)
		FROM activities
		WHERE user_id = $1
	`
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&stats.Completed, &stats.CompletedOnTime); err != nil {
		return stats, fmt.Errorf("getting activity counts: %w", err)
	}

	// Busiest single calendar day, grouped by completion date
	query = `
		SELECT COALESCE(MAX(cnt), 0) FROM (
			SELECT COUNT(*) AS cnt
			FROM activities
			WHERE user_id = $1 AND completed_at IS NOT NULL
			GROUP BY completed_at::DATE
		) daily
	`
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&stats.MaxCompletedInDay); err != nil {
		return stats, fmt.Errorf("getting max daily activities: %w", err)
	}

	return stats, nil
}

// DealStats re-derives a user's deal aggregates. The trailing-week
// window counts closing-stage deals updated after the given cutoff.
func (r *Repository) DealStats(ctx context.Context, userID string, closedSince time.Time) (domain.DealStats, error) {
	var stats domain.DealStats
	query := `
		SELECT COUNT(*) FILTER (WHERE stage <> $2),
		       COUNT(*) FILTER (WHERE stage = $3 AND last_updated >= $4)
		FROM deals
		WHERE user_id = $1
	`
	err := r.pool.QueryRow(ctx, query,
		userID,
		string(domain.StageInitialContact),
		string(domain.StageClosing),
		closedSince,
	).Scan(&stats.Progressed, &stats.ClosedTrailingWeek)
	if err != nil {
		return stats, fmt.Errorf("getting deal stats: %w", err)
	}
	return stats, nil
}
