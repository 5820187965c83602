package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/brokerhub/gamification/internal/domain"
)

// ReplaceWeeklyRanking deletes the given week's ranking rows and
// reinserts them from the current weekly points, densely ranked.
// Delete-then-insert guarantees contiguous positions with no stale rows.
func (r *Repository) ReplaceWeeklyRanking(ctx context.Context, weekStart time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM weekly_rankings WHERE week_start = $1`, weekStart); err != nil {
		return fmt.Errorf("deleting current week rankings: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO weekly_rankings (user_id, week_start, position, points)
		SELECT gp.user_id,
		       $1,
		       ROW_NUMBER() OVER (ORDER BY gp.weekly_points DESC),
		       gp.weekly_points
		FROM gamification_profiles gp
		JOIN users u ON u.id = gp.user_id
		WHERE u.role = $2 AND gp.weekly_points > 0
		ORDER BY gp.weekly_points DESC`,
		weekStart, domain.RoleBroker,
	)
	if err != nil {
		return fmt.Errorf("inserting week rankings: %w", err)
	}

	return tx.Commit(ctx)
}

// GetWeeklyRanking retrieves a persisted week's ranking joined with
// directory and profile display fields
func (r *Repository) GetWeeklyRanking(ctx context.Context, weekStart time.Time, limit int) ([]domain.RankingEntry, error) {
	query := `
		SELECT r.position, u.id, u.name, COALESCE(u.avatar_initials, ''), gp.level, r.points
		FROM weekly_rankings r
		JOIN users u ON u.id = r.user_id
		JOIN gamification_profiles gp ON gp.user_id = r.user_id
		WHERE r.week_start = $1
		ORDER BY r.position
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, weekStart, limit)
	if err != nil {
		return nil, fmt.Errorf("getting weekly ranking: %w", err)
	}
	defer rows.Close()

	var entries []domain.RankingEntry
	for rows.Next() {
		var entry domain.RankingEntry
		err := rows.Scan(
			&entry.Position,
			&entry.UserID,
			&entry.Name,
			&entry.AvatarInitials,
			&entry.Level,
			&entry.WeeklyPoints,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning ranking entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
