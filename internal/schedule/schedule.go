// Package schedule runs publish jobs on a fixed interval.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

// Scheduler wraps a gocron scheduler.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// New creates a stopped scheduler.
func New(logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("schedule: create scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// Every registers task to run immediately and then once per interval.
// A run that is still in progress when the next one is due causes that
// tick to be skipped, so runs never overlap.
func (s *Scheduler) Every(ctx context.Context, interval time.Duration, name string, task Task) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			start := time.Now()
			s.logger.Info("schedule: run starting", slog.String("job", name))
			if err := task(ctx); err != nil {
				s.logger.Error("schedule: run failed",
					slog.String("job", name),
					slog.String("error", err.Error()))
				return
			}
			s.logger.Info("schedule: run finished",
				slog.String("job", name),
				slog.Duration("took", time.Since(start)))
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule: add job %s: %w", name, err)
	}
	return nil
}

// Start begins running registered jobs.
func (s *Scheduler) Start() {
	s.logger.Info("schedule: started")
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for running jobs to return.
func (s *Scheduler) Stop() error {
	s.logger.Info("schedule: stopping")
	return s.scheduler.Shutdown()
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	return s.Stop()
}
