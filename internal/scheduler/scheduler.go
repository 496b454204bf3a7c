// Package scheduler runs the background tasks of the bancho server: the
// idle-session sweep and periodic occupancy logging.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/soumetsu-project/soumetsu/internal/util"
)

// Expirer removes sessions that stopped polling.
type Expirer interface {
	Expire(ctx context.Context, timeout time.Duration) int
}

// Options configure the scheduler. Zero durations fall back to defaults.
type Options struct {
	SweepInterval  time.Duration
	SessionTimeout time.Duration
	StatsInterval  time.Duration
	// Online reports the current session count for the stats log.
	Online func() int
}

// Scheduler manages periodic background tasks.
type Scheduler struct {
	target Expirer
	opts   Options
	logger zerolog.Logger
}

// NewScheduler creates a new task scheduler.
func NewScheduler(target Expirer, opts Options) *Scheduler {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 30 * time.Second
	}
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = 5 * time.Minute
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = 15 * time.Minute
	}
	return &Scheduler{
		target: target,
		opts:   opts,
		logger: util.ComponentLogger("scheduler"),
	}
}

// Start runs every task until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().
		Dur("sweep_interval", s.opts.SweepInterval).
		Dur("session_timeout", s.opts.SessionTimeout).
		Msg("scheduler started")

	go s.runStatsLoop(ctx)
	s.runSweepLoop(ctx)

	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep expires idle sessions once and returns how many were removed.
func (s *Scheduler) Sweep(ctx context.Context) int {
	start := time.Now()
	n := s.target.Expire(ctx, s.opts.SessionTimeout)
	if n > 0 {
		s.logger.Info().
			Int("expired", n).
			Dur("took", time.Since(start)).
			Msg("idle sessions expired")
	}
	return n
}

func (s *Scheduler) runStatsLoop(ctx context.Context) {
	if s.opts.Online == nil {
		return
	}
	ticker := time.NewTicker(s.opts.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logger.Info().Int("online", s.opts.Online()).Msg("occupancy")
		}
	}
}
