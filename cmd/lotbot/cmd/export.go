package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmeyers/lotbot/journal"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export journal data to CSV",
	Long: `Export realized trades and the recorded equity curve for an
instrument from the journal database.

Example:
  lotbot export --db lotbot.db --instrument ETH-USD --trades trades.csv --equity equity.csv`,
	RunE: runExport,
}

var (
	exportDBPath     string
	exportInstrument string
	exportTradesOut  string
	exportEquityOut  string
	exportStart      string
	exportEnd        string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportDBPath, "db", "d", "./lotbot.db", "path to journal database")
	exportCmd.Flags().StringVarP(&exportInstrument, "instrument", "i", "", "instrument to export (required)")
	exportCmd.Flags().StringVar(&exportTradesOut, "trades", "", "write realized trades to this CSV")
	exportCmd.Flags().StringVar(&exportEquityOut, "equity", "", "write equity samples to this CSV")
	exportCmd.Flags().StringVar(&exportStart, "start", "", "equity range start (RFC3339, default all)")
	exportCmd.Flags().StringVar(&exportEnd, "end", "", "equity range end (RFC3339, exclusive, default all)")

	exportCmd.MarkFlagRequired("instrument")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportTradesOut == "" && exportEquityOut == "" {
		return fmt.Errorf("nothing to export: pass --trades and/or --equity")
	}

	jrn, err := journal.NewSQLite(exportDBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jrn.Close()

	ctx := context.Background()

	if exportTradesOut != "" {
		trades, err := jrn.ListTrades(ctx, exportInstrument)
		if err != nil {
			return fmt.Errorf("list trades: %w", err)
		}
		if err := journal.ExportTradesCSV(exportTradesOut, trades); err != nil {
			return fmt.Errorf("write trades: %w", err)
		}
		fmt.Printf("%d trades written to %s\n", len(trades), exportTradesOut)
	}

	if exportEquityOut != "" {
		start, end, err := exportRange()
		if err != nil {
			return err
		}
		samples, err := jrn.ListEquityBetween(ctx, exportInstrument, start, end)
		if err != nil {
			return fmt.Errorf("list equity: %w", err)
		}
		if err := journal.ExportEquityCSV(exportEquityOut, samples); err != nil {
			return fmt.Errorf("write equity: %w", err)
		}
		fmt.Printf("%d equity samples written to %s\n", len(samples), exportEquityOut)
	}
	return nil
}

func exportRange() (time.Time, time.Time, error) {
	start := time.Unix(0, 0).UTC()
	end := time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

	if exportStart != "" {
		t, err := time.Parse(time.RFC3339, exportStart)
		if err != nil {
			return start, end, fmt.Errorf("bad --start: %w", err)
		}
		start = t
	}
	if exportEnd != "" {
		t, err := time.Parse(time.RFC3339, exportEnd)
		if err != nil {
			return start, end, fmt.Errorf("bad --end: %w", err)
		}
		end = t
	}
	return start, end, nil
}
