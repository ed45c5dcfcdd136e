package isolate

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"testing"
)

type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.records = append(h.records, r.Clone())
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) errors() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []slog.Record
	for _, r := range h.records {
		if r.Level == slog.LevelError {
			out = append(out, r)
		}
	}
	return out
}

func attr(r slog.Record, key string) (slog.Value, bool) {
	var found slog.Value
	var ok bool
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			found, ok = a.Value, true
			return false
		}
		return true
	})
	return found, ok
}

func seqOf[T any](items []T, failAt int, failErr error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for i, item := range items {
			if failAt >= 0 && i == failAt {
				var zero T
				yield(zero, failErr)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

func TestEachContinuesPastFailingItem(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	logger := slog.New(h)

	var seen []string
	res, err := Each(context.Background(), logger, "retrieve share usage",
		seqOf([]string{"a", "b", "c"}, -1, nil),
		func(s string) []any { return []any{"share_id", s} },
		func(_ context.Context, s string) error {
			seen = append(seen, s)
			if s == "b" {
				return errors.New("stats fetch failed")
			}
			return nil
		})
	if err != nil {
		t.Fatalf("Each() error = %v", err)
	}
	if res.Processed != 2 || res.Failed != 1 || res.Total() != 3 {
		t.Fatalf("result = %+v", res)
	}
	if len(seen) != 3 || seen[2] != "c" {
		t.Fatalf("seen = %v, want all three items", seen)
	}

	errs := h.errors()
	if len(errs) != 1 {
		t.Fatalf("error logs = %d, want 1", len(errs))
	}
	if errs[0].Message != "unable to retrieve share usage" {
		t.Fatalf("message = %q", errs[0].Message)
	}
	if v, ok := attr(errs[0], "share_id"); !ok || v.String() != "b" {
		t.Fatalf("share_id attr = %v (ok=%v)", v, ok)
	}
}

func TestEachRecoversPanics(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	res, err := Each(context.Background(), slog.New(h), "process item",
		seqOf([]int{1, 2, 3}, -1, nil),
		nil,
		func(_ context.Context, n int) error {
			if n == 1 {
				var m map[string]int
				m["boom"] = n
			}
			return nil
		})
	if err != nil {
		t.Fatalf("Each() error = %v", err)
	}
	if res.Processed != 2 || res.Failed != 1 {
		t.Fatalf("result = %+v", res)
	}
	errs := h.errors()
	if len(errs) != 1 {
		t.Fatalf("error logs = %d, want 1", len(errs))
	}
	v, _ := attr(errs[0], "err")
	var pe *PanicError
	if e, ok := v.Any().(error); !ok || !errors.As(e, &pe) {
		t.Fatalf("err attr = %v, want *PanicError", v.Any())
	}
}

func TestEachStopsOnListingError(t *testing.T) {
	t.Parallel()

	listErr := errors.New("page 2 failed")
	var calls int
	res, err := Each(context.Background(), slog.New(&recordingHandler{}), "process item",
		seqOf([]int{1, 2, 3}, 2, listErr),
		nil,
		func(context.Context, int) error {
			calls++
			return nil
		})
	if !errors.Is(err, listErr) {
		t.Fatalf("err = %v, want %v", err, listErr)
	}
	if calls != 2 || res.Processed != 2 {
		t.Fatalf("calls=%d result=%+v", calls, res)
	}
}

func TestEachStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	_, err := Each(ctx, slog.New(&recordingHandler{}), "process item",
		seqOf([]int{1, 2, 3}, -1, nil),
		nil,
		func(context.Context, int) error {
			calls++
			cancel()
			return nil
		})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoReportsSuccess(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	if !Do(context.Background(), slog.New(h), "noop", nil, func(context.Context) error { return nil }) {
		t.Fatal("Do() = false, want true")
	}
	if len(h.errors()) != 0 {
		t.Fatal("unexpected error log")
	}
}

func TestSliceStopsWhenConsumerBreaks(t *testing.T) {
	t.Parallel()

	var got []int
	for v, err := range Slice([]int{1, 2, 3}) {
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		got = append(got, v)
		if v == 2 {
			break
		}
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want [1 2]", got)
	}
}
