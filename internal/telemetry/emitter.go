// Package telemetry sends report metrics, traces and events to Application Insights.
//
// An Emitter without a configured backend accepts every call and drops it.
package telemetry

import (
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
	"github.com/microsoft/ApplicationInsights-Go/appinsights/contracts"
)

// DisabledWarning is logged once per run when no backend is configured.
const DisabledWarning = "telemetry client does not have an InstrumentationKey. Data will not be sent to Application Insights"

// Sink is the subset of an Application Insights client the emitter needs.
type Sink interface {
	Track(appinsights.Telemetry)
	Flush()
	Close(timeout time.Duration)
}

type Config struct {
	ConnectionString   string
	InstrumentationKey string
	MaxBatchSize       int
	MaxBatchInterval   time.Duration
}

type Emitter struct {
	sink Sink
}

// New builds an emitter from cfg. A connection string takes precedence over a
// bare instrumentation key; neither yields a disabled emitter.
func New(cfg Config) (*Emitter, error) {
	var settings ConnectionSettings
	switch {
	case strings.TrimSpace(cfg.ConnectionString) != "":
		parsed, err := ParseConnectionString(cfg.ConnectionString)
		if err != nil {
			return nil, err
		}
		settings = parsed
	case strings.TrimSpace(cfg.InstrumentationKey) != "":
		settings.InstrumentationKey = strings.TrimSpace(cfg.InstrumentationKey)
	default:
		return Disabled(), nil
	}

	tc := appinsights.NewTelemetryConfiguration(settings.InstrumentationKey)
	if settings.EndpointURL != "" {
		tc.EndpointUrl = settings.EndpointURL
	}
	if cfg.MaxBatchSize > 0 {
		tc.MaxBatchSize = cfg.MaxBatchSize
	}
	if cfg.MaxBatchInterval > 0 {
		tc.MaxBatchInterval = cfg.MaxBatchInterval
	}
	return NewWithSink(&clientSink{client: appinsights.NewTelemetryClientFromConfig(tc)}), nil
}

// NewWithSink wraps an existing sink. A nil sink yields a disabled emitter.
func NewWithSink(sink Sink) *Emitter {
	return &Emitter{sink: sink}
}

func Disabled() *Emitter {
	return &Emitter{}
}

func (e *Emitter) Enabled() bool {
	return e != nil && e.sink != nil
}

// WarnIfDisabled logs DisabledWarning when no backend is configured.
func (e *Emitter) WarnIfDisabled(logger *slog.Logger) {
	if e.Enabled() || logger == nil {
		return
	}
	logger.Warn(DisabledWarning)
}

func (e *Emitter) Metric(name string, value float64, tags map[string]string) {
	if !e.Enabled() {
		return
	}
	m := appinsights.NewMetricTelemetry(name, value)
	copyTags(m.Properties, tags)
	e.sink.Track(m)
}

func (e *Emitter) Trace(message string, tags map[string]string) {
	if !e.Enabled() {
		return
	}
	tr := appinsights.NewTraceTelemetry(message, contracts.Information)
	copyTags(tr.Properties, tags)
	e.sink.Track(tr)
}

func (e *Emitter) Event(name string, tags map[string]string) {
	if !e.Enabled() {
		return
	}
	ev := appinsights.NewEventTelemetry(name)
	copyTags(ev.Properties, tags)
	e.sink.Track(ev)
}

// Flush asks the backend to deliver buffered items. Delivery is asynchronous.
func (e *Emitter) Flush() {
	if !e.Enabled() {
		return
	}
	e.sink.Flush()
}

// Close flushes and waits up to timeout for in-flight items.
func (e *Emitter) Close(timeout time.Duration) {
	if !e.Enabled() {
		return
	}
	e.sink.Close(timeout)
}

func copyTags(dst, src map[string]string) {
	if dst == nil {
		return
	}
	maps.Copy(dst, src)
}

type clientSink struct {
	client appinsights.TelemetryClient
}

func (s *clientSink) Track(t appinsights.Telemetry) {
	s.client.Track(t)
}

func (s *clientSink) Flush() {
	s.client.Channel().Flush()
}

func (s *clientSink) Close(timeout time.Duration) {
	select {
	case <-s.client.Channel().Close(timeout):
	case <-time.After(timeout + time.Second):
	}
}
