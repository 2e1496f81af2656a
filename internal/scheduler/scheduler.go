// Package scheduler repeats a job on a cron schedule for daemon mode.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one complete run.
type Job func(ctx context.Context) error

type options struct {
	Logger   *slog.Logger
	Location *time.Location
}

// Option applies configuration to the scheduler.
type Option func(*options)

// WithLogger injects the logger runs are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.Logger = l
	}
}

// WithLocation sets the time zone the schedule is read in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.Location = loc
	}
}

// Scheduler runs a Job on a cron schedule. Runs never overlap: a run that
// comes due while another is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	entry   cron.EntryID
	job     Job
	logger  *slog.Logger
	ctx     context.Context
	running sync.Mutex
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}

// New returns a scheduler for spec, a standard five field cron expression or
// a descriptor such as "@daily".
func New(spec string, job Job, opts ...Option) (*Scheduler, error) {
	o := options{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Location: time.UTC,
	}
	for _, opt := range opts {
		opt(&o)
	}

	clog := cronLogger{l: o.Logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(o.Location),
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
		job:    job,
		logger: o.Logger,
		ctx:    context.Background(),
	}

	entry, err := s.cron.AddFunc(spec, func() {
		s.RunNow(s.ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.entry = entry

	return s, nil
}

// RunNow runs the job in the calling goroutine unless a run is in progress.
// It reports whether the job ran. A failed run is logged, not returned, so the
// schedule keeps going.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	if !s.running.TryLock() {
		s.logger.Warn("previous run still in progress, skipping")
		return false
	}
	defer s.running.Unlock()

	start := time.Now()
	s.logger.Info("scheduled run started")
	if err := s.job(ctx); err != nil {
		s.logger.Error("scheduled run failed", "error", err, "elapsed", time.Since(start))
		return true
	}
	s.logger.Info("scheduled run finished", "elapsed", time.Since(start))
	return true
}

// Start begins firing the schedule in the background. Scheduled runs receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("scheduler started", "next_run", s.Next())
}

// Next returns the next time the job is due, or the zero time when stopped.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Stop halts the schedule and waits for a running job, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
