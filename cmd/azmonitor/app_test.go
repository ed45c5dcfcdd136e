package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/lucapisano/Az.Monitor.Extensions/internal/config"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/logging"
)

func TestNewApp_RegistersBothReports(t *testing.T) {
	t.Parallel()

	a, err := newApp(config.Config{RunMode: "unattended", Cloud: "AzurePublicCloud"}, logging.Discard())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close()

	if got := strings.Join(a.registry.Names(), ","); got != "fileshares,secrets" {
		t.Fatalf("reports = %q, want fileshares,secrets", got)
	}
	if a.emitter.Enabled() {
		t.Fatal("telemetry should be disabled without a connection string")
	}
}

func TestNewApp_RejectsMalformedConnectionString(t *testing.T) {
	t.Parallel()

	_, err := newApp(config.Config{TelemetryConnectionString: "IngestionEndpoint=https://example.invalid/"}, logging.Discard())
	if err == nil {
		t.Fatal("expected error for connection string without instrumentation key")
	}
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != 2 {
		t.Fatalf("err = %v, want configuration exit error", err)
	}
}
