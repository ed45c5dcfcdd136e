package schedule

import (
	"context"

	"github.com/lucapisano/Az.Monitor.Extensions/internal/reports"
)

// Runner executes a single scheduled pass.
type Runner interface {
	RunOnce(context.Context) error
}

// ReportRunner runs a report over its full scope.
type ReportRunner struct {
	Report reports.Report
}

func (r ReportRunner) RunOnce(ctx context.Context) error {
	return r.Report.Run(ctx, "")
}
