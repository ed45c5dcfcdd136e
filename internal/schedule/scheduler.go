package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lucapisano/Az.Monitor.Extensions/internal/logging"
)

// Scheduler runs Runner at every activation of Schedule until the context
// ends. Nothing runs at startup; the first pass waits for the first
// activation. A pass that is still running when the next activation passes
// delays it rather than overlapping.
type Scheduler struct {
	Name     string
	Runner   Runner
	Schedule cron.Schedule
	Logger   *slog.Logger

	// Now and After are swapped in tests.
	Now   func() time.Time
	After func(time.Duration) <-chan time.Time
}

func (s *Scheduler) Run(ctx context.Context) {
	if s.Runner == nil || s.Schedule == nil {
		return
	}
	logger := logging.ForSchedule(s.Logger, s.Name)
	now := s.Now
	if now == nil {
		now = time.Now
	}
	after := s.After
	if after == nil {
		after = time.After
	}

	next := s.Schedule.Next(now())
	logger.Info("schedule armed", "next", next)
	var last time.Time
	for {
		if ctx.Err() != nil {
			return
		}
		if next.IsZero() {
			logger.Warn("schedule has no further activations")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-after(next.Sub(now())):
		}
		if now().Before(next) {
			// Woke early; wait out the remainder.
			continue
		}

		started := now()
		logger.Info("scheduled run started", "at", started, "last", last)
		if err := s.Runner.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return
			}
			logger.Error("scheduled run failed", "err", err)
		}
		last = started
		next = s.Schedule.Next(now())
		logger.Info("scheduled run finished", "next", next)
	}
}
