// Package scheduler runs the periodic housekeeping jobs: expiring sessions
// together with their cached dashboards, and abandoned OAuth states.
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"strava-activity-mapper/internal/metrics"
)

// SessionSweeper removes sessions that have expired by now
type SessionSweeper interface {
	Sweep(now time.Time) (int, error)
}

// StateCleaner removes OAuth states that have expired by now
type StateCleaner interface {
	DeleteExpiredOAuthStates(now time.Time) (int64, error)
}

// Job is one unit of periodic work. It returns how many items it removed.
type Job func(now time.Time) (int64, error)

// Scheduler periodically runs the registered jobs
type Scheduler struct {
	scheduler *gocron.Scheduler
	interval  time.Duration
	jobs      map[string]Job
	order     []string
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a scheduler running every job once per interval
func New(interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
		jobs:      make(map[string]Job),
		logger:    logger,
		now:       time.Now,
	}
}

// Add registers a job under name. Adding after Start has no effect.
func (s *Scheduler) Add(name string, job Job) {
	if _, ok := s.jobs[name]; !ok {
		s.order = append(s.order, name)
	}
	s.jobs[name] = job
}

// AddSessionCleanup registers the session sweep
func (s *Scheduler) AddSessionCleanup(sweeper SessionSweeper) {
	s.Add(metrics.JobSessionCleanup, func(now time.Time) (int64, error) {
		n, err := sweeper.Sweep(now)
		return int64(n), err
	})
}

// AddStateCleanup registers the OAuth state cleanup
func (s *Scheduler) AddStateCleanup(cleaner StateCleaner) {
	s.Add(metrics.JobStateCleanup, cleaner.DeleteExpiredOAuthStates)
}

// Start schedules every registered job and starts the underlying scheduler
func (s *Scheduler) Start() error {
	if len(s.order) == 0 {
		s.logger.Info("scheduler_idle", "reason", "no jobs registered")
		return nil
	}

	for _, name := range s.order {
		name := name
		if _, err := s.scheduler.Every(s.interval).Do(func() { s.Run(name) }); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", name, err)
		}
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler_started", "jobs", s.order, "interval", s.interval.String())
	return nil
}

// Run executes the named job once and records the outcome. It reports
// whether the job succeeded.
func (s *Scheduler) Run(name string) bool {
	job, ok := s.jobs[name]
	if !ok {
		s.logger.Error("scheduled_job_unknown", "job", name)
		return false
	}

	start := time.Now()
	removed, err := job(s.now())
	if err != nil {
		metrics.ScheduledJobRunsTotal.WithLabelValues(name, metrics.ResultFailure).Inc()
		s.logger.Error("scheduled_job_failed", "job", name, "error", err)
		return false
	}

	metrics.ScheduledJobRunsTotal.WithLabelValues(name, metrics.ResultSuccess).Inc()
	if removed > 0 {
		s.logger.Info("scheduled_job_completed",
			"job", name,
			"removed", removed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return true
}

// Stop stops the scheduler and cancels any future jobs
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
