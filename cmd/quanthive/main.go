package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "quanthive"
	version = "v1.0.0"
)

func main() {
	logger := newLogger()

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Regime-aware trading research for a single asset",
		Version: version,
		Long: `quanthive trains per-regime trading specialists with walk-forward
optimization and replays them through an event-driven backtest simulator.

Typical flow:
  quanthive optimize    sample the search space, persist the winning models
  quanthive backtest    replay the persisted team over a history window`,
		SilenceUsage: true,
	}

	var configPath string
	var logLevel string
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (defaults apply when omitted)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace|debug|info|warn|error)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		zerolog.SetGlobalLevel(level)
		return nil
	}

	rootCmd.AddCommand(newOptimizeCmd(&configPath, logger))
	rootCmd.AddCommand(newBacktestCmd(&configPath, logger))

	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// newLogger emits console output on a TTY and JSON lines otherwise, so
// captured runs stay machine-readable.
func newLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		return zerolog.New(writer).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
