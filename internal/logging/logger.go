// Package logging builds the slog loggers used by azmonitor commands,
// schedules and report runs.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	// EnvFormat selects the handler: json (default) or text.
	EnvFormat = "LOG_FORMAT"
	// EnvLevel is the minimum severity. Function host names such as
	// "Information" and "Warning" are accepted alongside slog's own.
	EnvLevel = "LOG_LEVEL"

	// AppName is attached to every log line as the "app" attribute.
	AppName = "azmonitor"

	KeyReport   = "report"
	KeyRunID    = "run_id"
	KeySchedule = "schedule"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

var levels = map[string]slog.Level{
	"debug":       slog.LevelDebug,
	"info":        slog.LevelInfo,
	"information": slog.LevelInfo,
	"warn":        slog.LevelWarn,
	"warning":     slog.LevelWarn,
	"error":       slog.LevelError,
	"critical":    slog.LevelError,
}

// Config is the logging configuration derived from environment variables.
type Config struct {
	Format Format
	Level  slog.Level
}

// BootstrapOptions controls logger initialization behavior.
type BootstrapOptions struct {
	Command string
	Writer  io.Writer
}

func DefaultConfig() Config {
	return Config{Format: FormatJSON, Level: slog.LevelInfo}
}

// LoadConfigFromEnv parses LOG_FORMAT and LOG_LEVEL, reporting every invalid
// value at once.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	var errs []error

	switch f := Format(strings.ToLower(strings.TrimSpace(os.Getenv(EnvFormat)))); f {
	case "":
	case FormatJSON, FormatText:
		cfg.Format = f
	default:
		errs = append(errs, fmt.Errorf("%s must be one of: json, text", EnvFormat))
	}

	if raw := strings.ToLower(strings.TrimSpace(os.Getenv(EnvLevel))); raw != "" {
		level, ok := levels[raw]
		if !ok {
			errs = append(errs, fmt.Errorf("%s must be one of: debug, info, warn, error", EnvLevel))
		}
		cfg.Level = level
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewLogger creates a logger tagged with the app name and the cobra command
// path that is running.
func NewLogger(cfg Config, writer io.Writer, command string) *slog.Logger {
	if writer == nil {
		writer = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler = slog.NewJSONHandler(writer, opts)
	if cfg.Format == FormatText {
		handler = slog.NewTextHandler(writer, opts)
	}

	command = strings.TrimSpace(command)
	if command == "" {
		command = AppName
	}
	return slog.New(handler).With("app", AppName, "command", command)
}

// ForRun scopes logger to one execution of a report.
func ForRun(logger *slog.Logger, report, runID string) *slog.Logger {
	return OrDefault(logger).With(KeyReport, report, KeyRunID, runID)
}

// ForSchedule scopes logger to the scheduler driving one report.
func ForSchedule(logger *slog.Logger, name string) *slog.Logger {
	return OrDefault(logger).With(KeySchedule, name)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func OrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// BootstrapFromEnv loads logging config from env, installs the default logger, and returns it.
func BootstrapFromEnv(opts BootstrapOptions) (*slog.Logger, error) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg, opts.Writer, opts.Command)
	slog.SetDefault(logger)
	return logger, nil
}
