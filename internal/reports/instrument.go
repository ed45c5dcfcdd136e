package reports

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lucapisano/Az.Monitor.Extensions/internal/logging"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/metrics"
)

type instrumented struct {
	inner  Report
	logger *slog.Logger
	now    func() time.Time
}

// Instrument wraps report so every run gets a run_id on its logger and is
// recorded in the report run metrics.
func Instrument(report Report, logger *slog.Logger) Report {
	return &instrumented{inner: report, logger: logging.OrDefault(logger), now: time.Now}
}

func (i *instrumented) Name() string { return i.inner.Name() }

func (i *instrumented) Run(ctx context.Context, filter string) error {
	name := i.inner.Name()
	runID := uuid.NewString()
	logger := logging.ForRun(Logger(ctx, i.logger), name, runID)
	ctx = WithLogger(ctx, logger)

	start := i.now()
	logger.InfoContext(ctx, "report started", "filter", NormalizeFilter(filter))
	err := i.inner.Run(ctx, filter)
	elapsed := i.now().Sub(start)

	metrics.ReportDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		metrics.ReportRunsTotal.WithLabelValues(name, metrics.StatusFailure).Inc()
		if errors.Is(err, context.Canceled) {
			logger.WarnContext(ctx, "report canceled", "duration", elapsed)
		} else {
			logger.ErrorContext(ctx, "report failed", "duration", elapsed, "err", err)
		}
		return err
	}
	metrics.ReportRunsTotal.WithLabelValues(name, metrics.StatusSuccess).Inc()
	metrics.ReportLastSuccessTimestamp.WithLabelValues(name).Set(float64(i.now().Unix()))
	logger.InfoContext(ctx, "report finished", "duration", elapsed)
	return nil
}
