package telemetry

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
	"github.com/microsoft/ApplicationInsights-Go/appinsights/contracts"
)

type recordingSink struct {
	mu      sync.Mutex
	items   []appinsights.Telemetry
	flushes int
	closes  int
}

func (s *recordingSink) Track(t appinsights.Telemetry) {
	s.mu.Lock()
	s.items = append(s.items, t)
	s.mu.Unlock()
}

func (s *recordingSink) Flush() {
	s.mu.Lock()
	s.flushes++
	s.mu.Unlock()
}

func (s *recordingSink) Close(time.Duration) {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
}

func TestEmitterTracksMetricTraceEvent(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	e := NewWithSink(sink)
	tags := map[string]string{"applicationId": "app-1"}

	e.Metric("secretsDaysExpiry", 12.5, tags)
	e.Trace("secretsDaysExpiry", tags)
	e.Event("secretsDaysExpiry", tags)
	e.Flush()

	tags["applicationId"] = "mutated"

	if len(sink.items) != 3 {
		t.Fatalf("tracked %d items, want 3", len(sink.items))
	}
	m, ok := sink.items[0].(*appinsights.MetricTelemetry)
	if !ok {
		t.Fatalf("item 0 = %T, want *appinsights.MetricTelemetry", sink.items[0])
	}
	if m.Name != "secretsDaysExpiry" || m.Value != 12.5 {
		t.Fatalf("metric = %s/%v", m.Name, m.Value)
	}
	if m.Properties["applicationId"] != "app-1" {
		t.Fatalf("metric properties = %v", m.Properties)
	}
	tr, ok := sink.items[1].(*appinsights.TraceTelemetry)
	if !ok {
		t.Fatalf("item 1 = %T, want *appinsights.TraceTelemetry", sink.items[1])
	}
	if tr.SeverityLevel != contracts.Information || tr.Message != "secretsDaysExpiry" {
		t.Fatalf("trace = %q severity %v", tr.Message, tr.SeverityLevel)
	}
	if _, ok := sink.items[2].(*appinsights.EventTelemetry); !ok {
		t.Fatalf("item 2 = %T, want *appinsights.EventTelemetry", sink.items[2])
	}
	if sink.flushes != 1 {
		t.Fatalf("flushes = %d, want 1", sink.flushes)
	}
}

func TestDisabledEmitterIsNoop(t *testing.T) {
	t.Parallel()

	e := Disabled()
	if e.Enabled() {
		t.Fatal("Disabled().Enabled() = true")
	}
	e.Metric("shareSpacePercentage", 1, nil)
	e.Trace("x", nil)
	e.Event("x", nil)
	e.Flush()
	e.Close(time.Millisecond)

	var nilEmitter *Emitter
	nilEmitter.Metric("shareSpacePercentage", 1, nil)
	nilEmitter.Flush()
}

func TestWarnIfDisabled(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, nil))

	Disabled().WarnIfDisabled(logger)
	NewWithSink(&recordingSink{}).WarnIfDisabled(logger)

	if got := strings.Count(out.String(), "level=WARN"); got != 1 {
		t.Fatalf("warnings = %d, want 1: %q", got, out.String())
	}
	if !strings.Contains(out.String(), "InstrumentationKey") {
		t.Fatalf("unexpected warning text: %q", out.String())
	}
}

func TestNewWithoutConfigIsDisabled(t *testing.T) {
	t.Parallel()

	e, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if e.Enabled() {
		t.Fatal("expected disabled emitter")
	}
}

func TestNewRejectsBadConnectionString(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{ConnectionString: "IngestionEndpoint=https://example.com/"}); err == nil {
		t.Fatal("expected error for connection string without key")
	}
}

func TestParseConnectionString(t *testing.T) {
	t.Parallel()

	got, err := ParseConnectionString("InstrumentationKey=00000000-0000-0000-0000-000000000001;IngestionEndpoint=https://westeurope-5.in.applicationinsights.azure.com/;LiveEndpoint=https://westeurope.livediagnostics.monitor.azure.com/")
	if err != nil {
		t.Fatalf("ParseConnectionString() error = %v", err)
	}
	if got.InstrumentationKey != "00000000-0000-0000-0000-000000000001" {
		t.Fatalf("InstrumentationKey = %q", got.InstrumentationKey)
	}
	if got.EndpointURL != "https://westeurope-5.in.applicationinsights.azure.com/v2/track" {
		t.Fatalf("EndpointURL = %q", got.EndpointURL)
	}

	got, err = ParseConnectionString("instrumentationkey=abc")
	if err != nil {
		t.Fatalf("ParseConnectionString() error = %v", err)
	}
	if got.InstrumentationKey != "abc" || got.EndpointURL != "" {
		t.Fatalf("got = %+v", got)
	}

	if _, err := ParseConnectionString("InstrumentationKey"); err == nil {
		t.Fatal("expected malformed segment error")
	}
}
