// Package scheduler triggers reconciliation runs on a cron schedule.
//
// Runs never overlap. When a run finishes after the next firing was due, the
// missed firings collapse into a single immediate run flagged as past due.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RunFunc performs one scheduled run. pastDue reports that the run starts late
// because an earlier run overshot its slot.
type RunFunc func(ctx context.Context, pastDue bool) error

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Parse accepts five or six field cron expressions (seconds optional) and
// descriptors such as "@hourly" or "@every 5m".
func Parse(spec string) (cron.Schedule, error) {
	s, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

// Scheduler runs a RunFunc on a schedule until its context is cancelled.
type Scheduler struct {
	schedule     cron.Schedule
	run          RunFunc
	runOnStartup bool
	now          func() time.Time
	logger       *slog.Logger
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithRunOnStartup fires once immediately when Start is called.
func WithRunOnStartup(enabled bool) Option {
	return func(s *Scheduler) {
		s.runOnStartup = enabled
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a scheduler.
func New(schedule cron.Schedule, run RunFunc, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		schedule: schedule,
		run:      run,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start blocks until ctx is cancelled. Run errors are logged and the next
// firing proceeds as usual.
func (s *Scheduler) Start(ctx context.Context) error {
	prev := s.now()
	if s.runOnStartup {
		s.fire(ctx, false)
		if ctx.Err() != nil {
			return nil
		}
	}

	next, pastDue := s.advance(prev, s.now())
	for {
		delay := next.Sub(s.now())
		if delay < 0 {
			delay = 0
		}
		s.logger.Debug("next run scheduled", "at", next, "past_due", pastDue)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		s.fire(ctx, pastDue)
		if ctx.Err() != nil {
			return nil
		}
		next, pastDue = s.advance(next, s.now())
	}
}

// advance returns the firing that follows prev. If that firing is already
// behind now, the caller should fire immediately with pastDue set.
func (s *Scheduler) advance(prev, now time.Time) (time.Time, bool) {
	next := s.schedule.Next(prev)
	if next.After(now) {
		return next, false
	}
	return now, true
}

func (s *Scheduler) fire(ctx context.Context, pastDue bool) {
	started := s.now()
	if err := s.run(ctx, pastDue); err != nil {
		s.logger.Error("scheduled run failed", "past_due", pastDue, "error", err)
		return
	}
	s.logger.Debug("scheduled run finished", "past_due", pastDue, "duration", s.now().Sub(started))
}
