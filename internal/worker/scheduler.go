package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-co-op/gocron/v2"

	"github.com/brokerhub/gamification/internal/config"
)

// Jobs is the maintenance surface the scheduler drives. The
// gamification service implements it.
type Jobs interface {
	RecalculateWeeklyRanking(ctx context.Context) error
	ResetWeeklyCycle(ctx context.Context) error
	ApplyWeeklyDecay(ctx context.Context) error
	ExpireStreaks(ctx context.Context) error
}

// Scheduler runs the periodic maintenance jobs on cron schedules:
// the weekly ranking close-out, the weekly points decay, and the
// daily streak sweep. Job failures are logged, never fatal; the next
// tick retries.
type Scheduler struct {
	jobs   Jobs
	config *config.SchedulerConfig
	logger *slog.Logger

	mu        sync.Mutex
	scheduler gocron.Scheduler
	running   bool
}

// NewScheduler creates the maintenance scheduler
func NewScheduler(jobs Jobs, cfg *config.SchedulerConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		jobs:   jobs,
		config: cfg,
		logger: logger,
	}
}

// Start registers the cron jobs and begins running them
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	specs := []struct {
		name string
		cron string
		run  func(context.Context) error
	}{
		{"weekly_ranking", s.config.RankingCron, s.runWeeklyRanking},
		{"weekly_decay", s.config.DecayCron, s.jobs.ApplyWeeklyDecay},
		{"streak_sweep", s.config.StreakSweepCron, s.jobs.ExpireStreaks},
	}

	for _, spec := range specs {
		spec := spec
		_, err := sched.NewJob(
			gocron.CronJob(spec.cron, false),
			gocron.NewTask(func() {
				s.runJob(ctx, spec.name, spec.run)
			}),
			gocron.WithName(spec.name),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", spec.name, err)
		}
		s.logger.Info("job scheduled", "job", spec.name, "cron", spec.cron)
	}

	sched.Start()
	s.scheduler = sched
	s.running = true

	s.logger.Info("maintenance scheduler started")
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}

	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	s.running = false

	s.logger.Info("maintenance scheduler stopped")
	return nil
}

// runWeeklyRanking persists the final ranking for the week and then
// closes the cycle. Persisting first keeps the stored rows consistent
// with the scores the winner was picked on.
func (s *Scheduler) runWeeklyRanking(ctx context.Context) error {
	if err := s.jobs.RecalculateWeeklyRanking(ctx); err != nil {
		return err
	}
	return s.jobs.ResetWeeklyCycle(ctx)
}

func (s *Scheduler) runJob(ctx context.Context, name string, run func(context.Context) error) {
	s.logger.Info("job starting", "job", name)
	if err := run(ctx); err != nil {
		s.logger.Error("job failed", "job", name, "error", err)
		return
	}
	s.logger.Info("job finished", "job", name)
}

// Trigger runs one named job immediately, outside its schedule. Used
// by the manual trigger endpoints.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	switch name {
	case "weekly_ranking":
		return s.runWeeklyRanking(ctx)
	case "weekly_decay":
		return s.jobs.ApplyWeeklyDecay(ctx)
	case "streak_sweep":
		return s.jobs.ExpireStreaks(ctx)
	default:
		return fmt.Errorf("unknown job %q", name)
	}
}
