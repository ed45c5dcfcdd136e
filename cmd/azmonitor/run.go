package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lucapisano/Az.Monitor.Extensions/internal/config"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/reports/appcreds"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/reports/fileshare"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one report once and exit.",
}

var runFileSharesCmd = &cobra.Command{
	Use:   fileshare.Name,
	Short: "Report space used by every Azure file share.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, _ := cmd.Flags().GetString("account-id")
		return runReportOnce(cmd.Context(), fileshare.Name, accountID)
	},
}

var runSecretsCmd = &cobra.Command{
	Use:   appcreds.Name,
	Short: "Report days until expiry of application secrets and certificates.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appID, _ := cmd.Flags().GetString("app-id")
		return runReportOnce(cmd.Context(), appcreds.Name, appID)
	},
}

func init() {
	runFileSharesCmd.Flags().String("account-id", "", "Storage account resource ID to restrict the run to")
	runSecretsCmd.Flags().String("app-id", "", "Application (client) ID to restrict the run to")
	runCmd.AddCommand(runFileSharesCmd, runSecretsCmd)
}

func runReportOnce(parent context.Context, name, filter string) error {
	cfg, err := config.LoadOneOff()
	if err != nil {
		return configError(err)
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.registry.Get(name)
	if err != nil {
		return err
	}
	if err := report.Run(ctx, filter); err != nil {
		return &reportError{report: name, err: err}
	}
	return nil
}
