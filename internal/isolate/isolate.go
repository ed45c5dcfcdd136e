// Package isolate runs units of work so that one failing item never aborts
// its siblings. A failure is logged with the item's identity and dropped;
// there is no retry.
package isolate

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"runtime/debug"

	"github.com/lucapisano/Az.Monitor.Extensions/internal/logging"
)

// Result counts the outcome of one enumeration level.
type Result struct {
	Processed int
	Failed    int
}

func (r Result) Total() int {
	return r.Processed + r.Failed
}

// PanicError wraps a value recovered from a panicking unit of work.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Do runs fn once. A returned error or a panic is logged at error level as
// "unable to <op>" with attrs appended, and Do reports false.
func Do(ctx context.Context, logger *slog.Logger, op string, attrs []any, fn func(context.Context) error) (ok bool) {
	logger = logging.OrDefault(logger)

	defer func() {
		if r := recover(); r != nil {
			err := &PanicError{Value: r, Stack: debug.Stack()}
			logFailure(ctx, logger, op, attrs, err)
			ok = false
		}
	}()

	if err := fn(ctx); err != nil {
		logFailure(ctx, logger, op, attrs, err)
		return false
	}
	return true
}

// Each applies fn to every item of seq through Do. describe returns the log
// attrs identifying an item.
//
// An error yielded by seq itself means the listing failed: the walk stops and
// the error is returned so the enclosing level can contain it. A cancelled
// context also stops the walk.
func Each[T any](
	ctx context.Context,
	logger *slog.Logger,
	op string,
	seq iter.Seq2[T, error],
	describe func(T) []any,
	fn func(context.Context, T) error,
) (Result, error) {
	var res Result
	for item, err := range seq {
		if err != nil {
			return res, err
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var attrs []any
		if describe != nil {
			attrs = describe(item)
		}
		if Do(ctx, logger, op, attrs, func(ctx context.Context) error { return fn(ctx, item) }) {
			res.Processed++
		} else {
			res.Failed++
		}
	}
	return res, nil
}

func logFailure(ctx context.Context, logger *slog.Logger, op string, attrs []any, err error) {
	args := make([]any, 0, len(attrs)+2)
	args = append(args, attrs...)
	args = append(args, "err", err)
	logger.ErrorContext(ctx, "unable to "+op, args...)
}

// Slice adapts an in-memory slice to the sequence shape Each walks.
func Slice[T any](items []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}
