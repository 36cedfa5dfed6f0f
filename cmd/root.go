// Package cmd implements the nebula-console command tree.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quantum-n3bula/console/internal/config"
	"github.com/quantum-n3bula/console/internal/console"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "nebula-console",
		Short:         "Terminal console for the Quantum-N3BULA task orchestrator",
		Long:          "nebula-console mirrors the Quantum-N3BULA backend into the terminal: it follows the push stream, keeps tasks, logs, and agents in sync, and lets you dispatch commands.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newWatchCmd(),
		newStatusCmd(),
		newTasksCmd(),
		newLogsCmd(),
		newAgentsCmd(),
		newExecCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newRegisterCmd(),
	)

	return rootCmd
}

// newConsole loads configuration from the environment and builds a console
// session. Callers own the returned console and must Close it.
func newConsole() (*console.Console, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.LogLevel)
	c, err := console.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("build console: %w", err)
	}
	return c, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}
