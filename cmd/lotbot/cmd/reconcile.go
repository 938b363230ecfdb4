package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rmeyers/lotbot/config"
	"github.com/rmeyers/lotbot/journal"
	"github.com/rmeyers/lotbot/ledger"
	"github.com/rmeyers/lotbot/reconcile"
	"github.com/rmeyers/lotbot/venue"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation batch against the venue",
	Long: `Reconcile fetches the venue's fill history for every configured
instrument and applies the fills the ledger has not seen yet. Safe to
run repeatedly: already-processed fills are skipped.

Example:
  lotbot reconcile --config lotbot.yaml`,
	RunE: runReconcile,
}

var reconcileConfigPath string

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVarP(&reconcileConfigPath, "config", "f", "", "path to config file (required)")
	reconcileCmd.MarkFlagRequired("config")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(reconcileConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	token, err := cfg.Venue.Token()
	if err != nil {
		return err
	}

	jrn, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jrn.Close()

	client := venue.NewClient(cfg.Venue.BaseURL, token, cfg.Venue.QuoteAsset)
	engine := reconcile.New(ledger.NewStore(), jrn, client, slog.Default())

	ctx := context.Background()
	for _, instrument := range cfg.Instruments() {
		trades, err := engine.Reconcile(ctx, instrument)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", instrument, err)
		}
		fmt.Printf("%s: %d new realized trades\n", instrument, len(trades))
		for _, tr := range trades {
			fmt.Printf("  %s  %.6f @ %.2f -> %.2f  pnl %.2f (%.2f%%)\n",
				tr.Time.Format("2006-01-02 15:04:05"),
				tr.Units, tr.AvgEntryPrice, tr.ExitPrice,
				tr.RealizedPnL, tr.RealizedPnLPct)
		}
	}
	return nil
}
