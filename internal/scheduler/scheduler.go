package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/easy-homey/internal/coordinator"
)

// DefaultRunTimeout bounds a single scheduled refresh.
const DefaultRunTimeout = 2 * time.Minute

// Scheduler periodically refreshes each coordinator at its own interval.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	runners    []coordinator.Runner
	logger     *slog.Logger
	runTimeout time.Duration
}

// New creates a new Scheduler. The first refresh is expected to have run
// already, so jobs wait one interval before firing.
func New(runners []coordinator.Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:  s,
		runners:    runners,
		logger:     logger.With("component", "scheduler"),
		runTimeout: DefaultRunTimeout,
	}
}

// Start schedules one job per coordinator and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.runners) == 0 {
		s.logger.Info("no coordinators configured; nothing to schedule")
		return nil
	}

	for _, r := range s.runners {
		interval := r.Interval()
		if interval <= 0 {
			interval = 15 * time.Minute
		}

		_, err := s.scheduler.Every(interval).Tag(r.Name()).WaitForSchedule().Do(s.run, r)
		if err != nil {
			return err
		}
		s.logger.Info("scheduled coordinator", "coordinator", r.Name(), "interval", interval)
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run(r coordinator.Runner) {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	if err := r.Run(ctx); err != nil {
		s.logger.Warn("scheduled refresh failed", "coordinator", r.Name(), "error", err)
		return
	}
	s.logger.Debug("scheduled refresh completed", "coordinator", r.Name())
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return len(s.scheduler.Jobs())
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
