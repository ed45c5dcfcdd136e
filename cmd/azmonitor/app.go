package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lucapisano/Az.Monitor.Extensions/internal/config"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/connectors/azurerm"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/connectors/entra"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/credential"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/reports"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/reports/appcreds"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/reports/fileshare"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/telemetry"
)

const telemetryCloseTimeout = 5 * time.Second

// app holds what every command shares: the telemetry emitter and the
// instrumented report registry.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	emitter  *telemetry.Emitter
	registry *reports.Registry
}

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	emitter, err := telemetry.New(telemetry.Config{
		ConnectionString:   cfg.TelemetryConnectionString,
		InstrumentationKey: cfg.TelemetryInstrumentation,
	})
	if err != nil {
		return nil, configError(err)
	}

	credOpts := credential.Options{
		TenantID: cfg.TenantID,
		Mode:     credential.ParseMode(cfg.RunMode),
		Cloud:    credential.ResolveCloud(cfg.Cloud),
	}
	graphBase := cfg.GraphBaseURL
	if graphBase == "" {
		graphBase = entra.GraphBaseForCloud(cfg.Cloud)
	}

	// Each run builds a fresh credential and clients.
	connectARM := func(context.Context) (fileshare.Source, error) {
		cred, err := credential.New(credOpts)
		if err != nil {
			return nil, fmt.Errorf("build credential: %w", err)
		}
		client, err := azurerm.New(cred, azurerm.Options{Cloud: credOpts.Cloud})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	connectGraph := func(context.Context) (appcreds.Source, error) {
		cred, err := credential.New(credOpts)
		if err != nil {
			return nil, fmt.Errorf("build credential: %w", err)
		}
		client, err := entra.NewWithOptions(cred, entra.Options{GraphBaseURL: graphBase})
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	shares, err := fileshare.New(fileshare.Options{
		Connect: connectARM,
		Emitter: emitter,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	secrets, err := appcreds.New(appcreds.Options{
		Connect:     connectGraph,
		Emitter:     emitter,
		Logger:      logger,
		SettleDelay: cfg.TelemetrySettleDelay,
	})
	if err != nil {
		return nil, err
	}

	reg, err := reports.NewRegistry(
		reports.Instrument(shares, logger),
		reports.Instrument(secrets, logger),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("reports configured",
		"reports", reg.Names(),
		"run_mode", string(credOpts.Mode),
		"cloud", cfg.Cloud,
		"telemetry_enabled", emitter.Enabled(),
	)
	return &app{cfg: cfg, logger: logger, emitter: emitter, registry: reg}, nil
}

// close drains buffered telemetry before the process exits.
func (a *app) close() {
	a.emitter.Close(telemetryCloseTimeout)
}
