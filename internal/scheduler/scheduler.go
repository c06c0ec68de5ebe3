// Package scheduler runs periodic background jobs on UTC cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"tg_assistant_bot/internal/logging"
)

// jobTimeout bounds a single run of a registry job.
const jobTimeout = 10 * time.Second

// newScheduler is overridable for tests.
var newScheduler = func(logger *logrus.Entry) (gocron.Scheduler, error) {
	return gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(logging.NewSchedulerLogger(logger)),
	)
}

// Scheduler owns a gocron scheduler and the jobs registered on it.
type Scheduler struct {
	cron   gocron.Scheduler
	logger *logrus.Entry
}

// New constructs a stopped Scheduler.
func New(logger *logrus.Entry) (*Scheduler, error) {
	if logger == nil {
		logger = logging.Logger()
	}

	s, err := newScheduler(logger)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &Scheduler{cron: s, logger: logger}, nil
}

// AddJob schedules job under name using a five-field cron expression.
// Overlapping runs of the same job are skipped.
func (s *Scheduler) AddJob(name, cronExpr string, job func()) error {
	if s == nil || s.cron == nil {
		return errors.New("scheduler is not initialized")
	}
	if job == nil {
		return errors.New("job is required")
	}

	_, err := s.cron.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(job),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule job %q: %w", name, err)
	}

	s.logger.WithFields(logging.Fields{
		"event": "job_scheduled",
		"job":   name,
		"cron":  cronExpr,
	}).Info("job scheduled")

	return nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithFields(logging.Fields{
		"event": "scheduler_started",
		"jobs":  len(s.cron.Jobs()),
	}).Info("scheduler started")
}

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	if s == nil || s.cron == nil {
		return nil
	}

	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}

	s.logger.WithField("event", "scheduler_stopped").Info("scheduler stopped")
	return nil
}

// Counter reports registry totals for the stats job.
type Counter interface {
	CountUsers(ctx context.Context) (int64, error)
	CountActiveSince(ctx context.Context, since time.Time) (int64, error)
}

// RegistryStatsJob returns a job that logs the known-user total and the
// number of users seen in the last 24 hours.
func RegistryStatsJob(counter Counter, logger *logrus.Entry) func() {
	if logger == nil {
		logger = logging.Logger()
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		total, err := counter.CountUsers(ctx)
		if err != nil {
			logger.WithField("event", "registry_stats_error").WithError(err).Warn("failed to count users")
			return
		}
		active, err := counter.CountActiveSince(ctx, time.Now().Add(-24*time.Hour))
		if err != nil {
			logger.WithField("event", "registry_stats_error").WithError(err).Warn("failed to count active users")
			return
		}

		logger.WithFields(logging.Fields{
			"event":      "registry_stats",
			"users":      total,
			"active_24h": active,
		}).Info("user registry stats")
	}
}
