package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lucapisano/Az.Monitor.Extensions/internal/config"
	httpapp "github.com/lucapisano/Az.Monitor.Extensions/internal/http"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/metrics"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/reports/appcreds"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/reports/fileshare"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/schedule"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP triggers, both report schedules and the metrics endpoint.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return configError(err)
	}
	logger := slog.Default()

	schedules := []struct {
		report string
		expr   string
	}{
		{report: fileshare.Name, expr: cfg.FileShareCron},
		{report: appcreds.Name, expr: cfg.SecretsCron},
	}
	schedulers := make([]*schedule.Scheduler, 0, len(schedules))
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	for _, s := range schedules {
		sched, err := schedule.Parse(s.expr)
		if err != nil {
			return configError(err)
		}
		report, err := a.registry.Get(s.report)
		if err != nil {
			return err
		}
		schedulers = append(schedulers, &schedule.Scheduler{
			Name:     s.report,
			Runner:   schedule.ReportRunner{Report: report},
			Schedule: sched,
			Logger:   logger,
		})
	}

	srv, err := httpapp.NewEchoServer(a.registry, httpapp.DefaultRoutes(fileshare.Name, appcreds.Name), logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range schedulers {
		g.Go(func() error {
			s.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		return srv.Serve(gctx, cfg.HTTPAddr)
	})

	metricsServer, metricsErrCh := metrics.StartServer(gctx, cfg.MetricsAddr)
	if metricsErrCh != nil {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			case err := <-metricsErrCh:
				logger.Error("metrics server failed", "err", err)
				return err
			}
		})
	}

	err = g.Wait()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
