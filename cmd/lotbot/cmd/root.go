package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lotbot",
	Short: "A FIFO lot ledger and risk-managed execution engine",
	Long: `Lotbot turns a per-bar directional signal into position changes under
fixed risk constraints. It keeps an exact FIFO ledger of open lots,
sizes orders against allocation and cash limits, and reports equity,
realized P&L, drawdown and risk-adjusted return.

It runs in two modes:
  - simulate: deterministic simulation over a historical price+signal series
  - run:      live trading, reconciling the ledger against the venue's
              fill history

Complete documentation is available at https://github.com/rmeyers/lotbot`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(logLevel)
	},
}

var logLevel string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func setupLogging(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}
