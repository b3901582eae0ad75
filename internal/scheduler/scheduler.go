// Package scheduler runs jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// parser accepts five-field expressions, six fields with leading seconds,
// and descriptors such as @daily or @every 1h.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler manages background jobs. A job never overlaps with itself: a
// tick that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	cronLog := cronLogger{log: log}

	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		log:    log,
		ctx:    context.Background(),
		cancel: func() {},
	}
}

// ValidateSchedule reports whether schedule is a valid expression.
func ValidateSchedule(schedule string) error {
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return nil
}

// Start starts the scheduler. Jobs receive a context derived from ctx that
// is canceled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "0 6 * * *"          - 6 AM every day
//   - "0 0 7 * * MON-FRI"  - 7 AM weekdays
//   - "@every 6h"          - Every 6 hours
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()

		s.run(ctx, job)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", schedule, job.Name(), err)
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// Next returns the next activation time across all jobs, or the zero time
// when nothing is scheduled or the scheduler is not running.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, entry := range s.cron.Entries() {
		if entry.Next.IsZero() {
			continue
		}
		if next.IsZero() || entry.Next.Before(next) {
			next = entry.Next
		}
	}
	return next
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run(ctx)
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	s.log.Debug().Str("job", job.Name()).Msg("Running job")
	start := time.Now()

	if err := job.Run(ctx); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Msg("Job failed")
		return
	}

	s.log.Debug().
		Str("job", job.Name()).
		Dur("duration_ms", time.Since(start)).
		Msg("Job completed")
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
