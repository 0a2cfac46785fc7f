package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Notifier is the set of periodic sweeps run by the scheduler.
type Notifier interface {
	DispatchNewTasks(ctx context.Context) error
	RetryDelayedTasks(ctx context.Context) error
	RemindIgnoredTasks(ctx context.Context) error
	EscalateExpiredTasks(ctx context.Context) error
}

// Specs holds the cron expression of every sweep.
type Specs struct {
	Dispatch string
	Ignored  string
	Expired  string
	Delayed  string
}

const jobTimeout = 2 * time.Minute

type TaskScheduler struct {
	cronEngine *cron.Cron
	notifier   Notifier
	specs      Specs
	logger     *logrus.Entry
}

func NewTaskScheduler(notifier Notifier, specs Specs, loc *time.Location, logger *logrus.Entry) *TaskScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &TaskScheduler{
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cron.PrintfLogger(logger)),
			// A sweep still running when its next tick fires is not started twice.
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
		),
		notifier: notifier,
		specs:    specs,
		logger:   logger,
	}
}

// Start registers the sweeps and starts the cron engine.
func (s *TaskScheduler) Start() error {
	s.logger.Info("Starting task scheduler...")

	jobs := []struct {
		name  string
		spec  string
		sweep func(ctx context.Context) error
	}{
		{"dispatch_new_tasks", s.specs.Dispatch, s.notifier.DispatchNewTasks},
		{"retry_delayed_tasks", s.specs.Delayed, s.notifier.RetryDelayedTasks},
		{"remind_ignored_tasks", s.specs.Ignored, s.notifier.RemindIgnoredTasks},
		{"escalate_expired_tasks", s.specs.Expired, s.notifier.EscalateExpiredTasks},
	}
	for _, job := range jobs {
		if _, err := s.cronEngine.AddFunc(job.spec, s.wrap(job.name, job.sweep)); err != nil {
			return fmt.Errorf("could not add %s cron job with spec %q: %w", job.name, job.spec, err)
		}
		s.logger.WithFields(logrus.Fields{"job": job.name, "spec": job.spec}).Info("Scheduled sweep")
	}

	s.cronEngine.Start()
	s.logger.Info("Task scheduler started with jobs.")
	return nil
}

func (s *TaskScheduler) wrap(name string, sweep func(ctx context.Context) error) func() {
	return func() {
		logCtx := s.logger.WithField("job", name)
		logCtx.Debug("Cron job triggered")
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := sweep(ctx); err != nil {
			logCtx.WithError(err).Error("Sweep failed")
		}
	}
}

func (s *TaskScheduler) Stop() {
	s.logger.Info("Stopping task scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Task scheduler gracefully stopped.")
}
