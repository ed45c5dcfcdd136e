package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lucapisano/Az.Monitor.Extensions/internal/logging"
)

const (
	exitFailure  = 1
	exitConfig   = 2
	exitCanceled = 130
)

func main() {
	code := runMain(Execute, os.Stderr)
	if code != 0 {
		os.Exit(code)
	}
}

func runMain(execute func() error, stderr io.Writer) int {
	if err := execute(); err != nil {
		return exitCodeForError(err, stderr)
	}
	return 0
}

// failure is a command error resolved to what gets printed and returned.
type failure struct {
	code    int
	message string
	report  string
	err     error
	silent  bool
}

func classify(err error) failure {
	f := failure{code: exitFailure, message: "command failed", err: err}

	var ee *exitError
	switch {
	case errors.As(err, &ee):
		f.code, f.silent = ee.code, ee.silent
		if ee.err != nil {
			f.err = ee.err
		}
		if ee.code == exitConfig {
			f.message = "invalid configuration"
		}
	case errors.Is(err, context.Canceled):
		f.code, f.message = exitCanceled, "command canceled"
	}

	var re *reportError
	if errors.As(err, &re) {
		f.report = re.report
		switch f.code {
		case exitCanceled:
			f.message = "report canceled"
		case exitFailure:
			f.message = "report failed"
		}
	}
	return f
}

func exitCodeForError(err error, stderr io.Writer) int {
	f := classify(err)
	if !f.silent {
		emitCommandError(f, stderr)
	}
	return f.code
}

func emitCommandError(f failure, stderr io.Writer) {
	ctx := currentCommandExecutionContext()
	if !ctx.UsesStructuredLog {
		switch {
		case f.code == exitCanceled && f.report != "":
			fmt.Fprintf(stderr, "%s: canceled\n", f.report)
		case f.code == exitCanceled:
			fmt.Fprintln(stderr, "canceled")
		default:
			fmt.Fprintln(stderr, f.err)
		}
		return
	}

	attrs := []any{"exit_code", f.code, "error", f.err}
	if f.report != "" {
		attrs = append(attrs, logging.KeyReport, f.report)
	}
	loggerForFatalPath(ctx, stderr).Error(f.message, attrs...)
}

func loggerForFatalPath(ctx commandExecutionContext, stderr io.Writer) *slog.Logger {
	cfg, err := logging.LoadConfigFromEnv()
	if err != nil {
		cfg = logging.DefaultConfig()
	}
	return logging.NewLogger(cfg, stderr, ctx.CommandPath)
}
