package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 10, 2, 30, 0, time.UTC)
	tests := []struct {
		expr string
		want time.Time
	}{
		{expr: "0 */5 * * * *", want: time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)},
		{expr: "*/5 * * * *", want: time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)},
		{expr: "30 0 6 * * *", want: time.Date(2026, 3, 2, 6, 0, 30, 0, time.UTC)},
		{expr: "@hourly", want: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)},
		{expr: "  0 0 * * *  ", want: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		s, err := Parse(tt.expr)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.expr, err)
		}
		if got := s.Next(base); !got.Equal(tt.want) {
			t.Fatalf("Parse(%q).Next = %s, want %s", tt.expr, got, tt.want)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{"", "   ", "not a cron", "* * *", "61 * * * * *"} {
		if _, err := Parse(expr); err == nil {
			t.Fatalf("Parse(%q) expected error", expr)
		}
	}
}

// fakeClock jumps straight to the requested wake-up time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

type recordingRunner struct {
	clock  *fakeClock
	limit  int
	cancel context.CancelFunc
	err    error
	at     []time.Time
}

func (r *recordingRunner) RunOnce(context.Context) error {
	r.at = append(r.at, r.clock.Now())
	if len(r.at) == r.limit {
		r.cancel()
	}
	return r.err
}

func TestScheduler_RunsAtActivations(t *testing.T) {
	t.Parallel()

	sched, err := Parse("0 */5 * * * *")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &recordingRunner{clock: clock, limit: 3, cancel: cancel}

	s := &Scheduler{
		Name:     "fileshares",
		Runner:   runner,
		Schedule: sched,
		Logger:   slog.New(slog.DiscardHandler),
		Now:      clock.Now,
		After:    clock.After,
	}
	s.Run(ctx)

	want := []time.Time{
		time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 10, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC),
	}
	if len(runner.at) != len(want) {
		t.Fatalf("runs = %v, want %v", runner.at, want)
	}
	for i := range want {
		if !runner.at[i].Equal(want[i]) {
			t.Fatalf("run %d at %s, want %s", i, runner.at[i], want[i])
		}
	}
}

func TestScheduler_ContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	sched, err := Parse("@every 1m")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &recordingRunner{clock: clock, limit: 2, cancel: cancel, err: errors.New("boom")}

	s := &Scheduler{Runner: runner, Schedule: sched, Logger: slog.New(slog.DiscardHandler), Now: clock.Now, After: clock.After}
	s.Run(ctx)

	if len(runner.at) != 2 {
		t.Fatalf("runs = %d, want 2", len(runner.at))
	}
}

func TestScheduler_DoesNotRunBeforeFirstActivation(t *testing.T) {
	t.Parallel()

	sched, err := Parse("@hourly")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &recordingRunner{clock: &fakeClock{}, limit: 1, cancel: func() {}}

	blocked := func(time.Duration) <-chan time.Time { return nil }
	s := &Scheduler{Runner: runner, Schedule: sched, Logger: slog.New(slog.DiscardHandler), After: blocked}
	s.Run(ctx)

	if len(runner.at) != 0 {
		t.Fatalf("runs = %d, want 0", len(runner.at))
	}
}
