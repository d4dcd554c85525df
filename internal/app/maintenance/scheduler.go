package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/hrconsole/internal/monitoring"
	"github.com/charlesng35/hrconsole/pkg/logger"
)

const defaultJobTimeout = 5 * time.Minute

// Scheduler runs jobs on their cron specs. A run that is still going when its next tick fires
// is skipped, and every run is recorded in the tracker.
type Scheduler struct {
	jobs    []Job
	cron    *cron.Cron
	tracker *monitoring.JobTracker
	timeout time.Duration
	log     *zap.Logger
}

type Option func(*Scheduler)

// WithTracker records every run in tracker. Without one only metrics are updated.
func WithTracker(tracker *monitoring.JobTracker) Option {
	return func(s *Scheduler) { s.tracker = tracker }
}

// WithJobTimeout bounds each run. Zero disables the bound.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) { s.cron = c }
}

func NewScheduler(jobs []Job, opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:    jobs,
		timeout: defaultJobTimeout,
		log:     logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(
			cron.WithLogger(cron.DiscardLogger),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		)
	}
	return s
}

// Start validates every spec before scheduling anything, then starts the cron loop.
func (s *Scheduler) Start() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	var invalid error
	for _, job := range s.jobs {
		if job.Run == nil {
			invalid = multierr.Append(invalid, fmt.Errorf("job %s: no run function", job.Name))
			continue
		}
		if _, err := parser.Parse(job.Spec); err != nil {
			invalid = multierr.Append(invalid, fmt.Errorf("job %s: %w", job.Name, err))
		}
	}
	if invalid != nil {
		return invalid
	}
	if len(s.jobs) == 0 {
		return nil
	}

	for _, job := range s.jobs {
		s.tracker.Register(job.Name)
		if _, err := s.cron.AddFunc(job.Spec, func() { _ = s.run(context.Background(), job) }); err != nil {
			return fmt.Errorf("job %s: %w", job.Name, err)
		}
	}
	s.cron.Start()
	s.log.Info("maintenance scheduled", zap.Int("jobs", len(s.jobs)))
	return nil
}

// Stop halts scheduling. The returned context is done once in-flight runs return.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce runs every job in order, keeps going past failures and returns them combined.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs error
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		errs = multierr.Append(errs, s.run(ctx, job))
	}
	return errs
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	removed, err := job.Run(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", s.timeout, err)
	}
	s.tracker.Record(job.Name, err, time.Since(started))

	log := s.log.With(zap.String("job", job.Name))
	switch {
	case err != nil:
		log.Warn("maintenance job failed", zap.Error(err))
		return fmt.Errorf("%s: %w", job.Name, err)
	case removed > 0:
		log.Info("maintenance job removed rows", zap.Int64("removed", removed))
	default:
		log.Debug("maintenance job found nothing to remove")
	}
	return nil
}
