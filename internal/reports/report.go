// Package reports holds the glue shared by every monitoring report: the
// Report contract, filter normalization, the name-keyed registry and the
// run instrumentation.
package reports

import (
	"context"
	"strings"
)

// minFilterLen is the shortest filter value that narrows a run. Anything
// shorter is treated as no filter at all.
const minFilterLen = 4

// Report is one monitoring job. Run walks the report's full scope, or only the
// item named by filter, and returns an error only when the run as a whole
// could not proceed.
type Report interface {
	Name() string
	Run(ctx context.Context, filter string) error
}

// NormalizeFilter trims raw and drops it when it is too short to identify
// anything.
func NormalizeFilter(raw string) string {
	v := strings.TrimSpace(raw)
	if len(v) < minFilterLen {
		return ""
	}
	return v
}
