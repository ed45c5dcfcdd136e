package main

import (
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/lucapisano/Az.Monitor.Extensions/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           logging.AppName,
	Short:         "azmonitor reports Azure file share usage and app credential expiry to Application Insights.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandExecutionContext{
			CommandPath:       cmd.CommandPath(),
			UsesStructuredLog: commandUsesStructuredLogging(cmd),
		}
		setCommandExecutionContext(ctx)
		if !ctx.UsesStructuredLog {
			return nil
		}
		_, err := logging.BootstrapFromEnv(logging.BootstrapOptions{
			Command: ctx.CommandPath,
			Writer:  os.Stderr,
		})
		return err
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd, runCmd)
}

type commandExecutionContext struct {
	CommandPath       string
	UsesStructuredLog bool
}

var (
	commandContextMu sync.Mutex
	commandContext   commandExecutionContext
)

func setCommandExecutionContext(ctx commandExecutionContext) {
	commandContextMu.Lock()
	commandContext = ctx
	commandContextMu.Unlock()
}

func resetCommandExecutionContext() {
	setCommandExecutionContext(commandExecutionContext{})
}

func currentCommandExecutionContext() commandExecutionContext {
	commandContextMu.Lock()
	defer commandContextMu.Unlock()
	return commandContext
}

// commandUsesStructuredLogging reports whether cmd writes slog output. Only
// the long-running and report commands do; help and completion stay plain.
func commandUsesStructuredLogging(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c {
		case serveCmd, runCmd:
			return true
		}
	}
	return false
}
