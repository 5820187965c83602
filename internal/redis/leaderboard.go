package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/brokerhub/gamification/internal/config"
	"github.com/brokerhub/gamification/internal/domain"
)

// weeklyKey is the sorted set holding live weekly points per user
const weeklyKey = "gamification:weekly:points"

// Entry is one live leaderboard row
type Entry struct {
	Rank   int64  `json:"rank"`
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
}

// Leaderboard provides the Redis-backed live weekly leaderboard
type Leaderboard struct {
	client *redis.Client
	logger *slog.Logger
}

// NewLeaderboard creates a new Redis leaderboard cache
func NewLeaderboard(cfg *config.RedisConfig, logger *slog.Logger) (*Leaderboard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Leaderboard{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (l *Leaderboard) Close() error {
	return l.client.Close()
}

// Client returns the underlying Redis client
func (l *Leaderboard) Client() *redis.Client {
	return l.client
}

// IncrementPoints adds delta to a user's live weekly score and returns
// the new value
func (l *Leaderboard) IncrementPoints(ctx context.Context, userID string, delta int) (int64, error) {
	score, err := l.client.ZIncrBy(ctx, weeklyKey, float64(delta), userID).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing weekly points: %w", err)
	}
	return int64(score), nil
}

// SetPoints overwrites a user's live weekly score
func (l *Leaderboard) SetPoints(ctx context.Context, userID string, points int) error {
	err := l.client.ZAdd(ctx, weeklyKey, redis.Z{
		Score:  float64(points),
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("setting weekly points: %w", err)
	}
	return nil
}

// GetTopN returns the top N users by live weekly points
func (l *Leaderboard) GetTopN(ctx context.Context, n int) ([]Entry, error) {
	results, err := l.client.ZRevRangeWithScores(ctx, weeklyKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]Entry, len(results))
	for i, result := range results {
		entries[i] = Entry{
			Rank:   int64(i + 1),
			UserID: result.Member.(string),
			Points: int64(result.Score),
		}
	}
	return entries, nil
}

// GetUserRank returns a user's live rank and points
func (l *Leaderboard) GetUserRank(ctx context.Context, userID string) (*Entry, error) {
	pipe := l.client.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, weeklyKey, userID)
	scoreCmd := pipe.ZScore(ctx, weeklyKey, userID)
	_, err := pipe.Exec(ctx)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("getting user rank: %w", err)
	}

	rank, err := rankCmd.Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("getting rank result: %w", err)
	}

	score, err := scoreCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("getting score result: %w", err)
	}

	return &Entry{
		Rank:   rank + 1, // 0-indexed to 1-indexed
		UserID: userID,
		Points: int64(score),
	}, nil
}

// GetCount returns the number of users on the live leaderboard
func (l *Leaderboard) GetCount(ctx context.Context) (int64, error) {
	count, err := l.client.ZCard(ctx, weeklyKey).Result()
	if err != nil {
		return 0, fmt.Errorf("getting count: %w", err)
	}
	return count, nil
}

// Reset clears the live leaderboard for a new weekly cycle
func (l *Leaderboard) Reset(ctx context.Context) error {
	if err := l.client.Del(ctx, weeklyKey).Err(); err != nil {
		return fmt.Errorf("resetting leaderboard: %w", err)
	}
	return nil
}

// BatchSetPoints loads scores in bulk, used to rebuild the live
// leaderboard from the profile store on startup
func (l *Leaderboard) BatchSetPoints(ctx context.Context, points map[string]int) error {
	if len(points) == 0 {
		return nil
	}

	pipe := l.client.Pipeline()
	for userID, score := range points {
		pipe.ZAdd(ctx, weeklyKey, redis.Z{
			Score:  float64(score),
			Member: userID,
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("batch setting points: %w", err)
	}
	return nil
}
