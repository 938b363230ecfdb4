package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rmeyers/lotbot/backtest"
	"github.com/rmeyers/lotbot/config"
	"github.com/rmeyers/lotbot/journal"
	"github.com/rmeyers/lotbot/risk"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a deterministic simulation over a bar CSV",
	Long: `Simulate replays a historical price+signal series through the ledger
and sizing policy and reports the resulting stats.

The CSV needs a "time,price,signal" header with RFC3339 timestamps and
signals in {-1, 0, 1}.

Defaults can come from a config file (backtest.data_file,
backtest.annualization, account.initial_cash and the instrument's risk
section); explicit flags override them.

Examples:
  lotbot simulate --bars data/eth-usd.csv --cash 10000 --stoploss 0.05
  lotbot simulate --config lotbot.yaml --instrument ETH-USD`,
	RunE: runSimulate,
}

var (
	simConfigPath    string
	simBarsPath      string
	simInstrument    string
	simCash          float64
	simStoploss      float64
	simPositionSize  float64
	simMaxAllocation float64
	simPartialSell   float64
	simAnnualization float64
	simTradesOut     string
	simEquityOut     string
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVarP(&simConfigPath, "config", "f", "", "config file supplying defaults")
	simulateCmd.Flags().StringVarP(&simBarsPath, "bars", "b", "", "path to bar CSV (time,price,signal)")
	simulateCmd.Flags().StringVarP(&simInstrument, "instrument", "i", "SIM", "instrument name for reporting")
	simulateCmd.Flags().Float64Var(&simCash, "cash", 10_000, "starting cash")
	simulateCmd.Flags().Float64Var(&simStoploss, "stoploss", 0.05, "per-lot stoploss fraction")
	simulateCmd.Flags().Float64Var(&simPositionSize, "size", 0.10, "position size fraction of free equity")
	simulateCmd.Flags().Float64Var(&simMaxAllocation, "max-alloc", 0.50, "max allocation fraction of portfolio")
	simulateCmd.Flags().Float64Var(&simPartialSell, "partial-sell", 0.50, "fraction of allocation sold per sell signal")
	simulateCmd.Flags().Float64Var(&simAnnualization, "annualization", backtest.DefaultAnnualization, "bar periods per year for Sharpe/Sortino")
	simulateCmd.Flags().StringVar(&simTradesOut, "trades-csv", "", "write realized trades to this CSV")
	simulateCmd.Flags().StringVar(&simEquityOut, "equity-csv", "", "write the equity curve to this CSV")
}

// applySimulateConfig fills in flag values the user did not set from
// the config file.
func applySimulateConfig(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if !flags.Changed("bars") && cfg.Backtest.DataFile != "" {
		simBarsPath = cfg.Backtest.DataFile
	}
	if !flags.Changed("annualization") && cfg.Backtest.Annualization > 0 {
		simAnnualization = float64(cfg.Backtest.Annualization)
	}
	if !flags.Changed("cash") && cfg.Account.InitialCash > 0 {
		simCash = cfg.Account.InitialCash
	}

	p, ok := cfg.Risk[simInstrument]
	if !ok {
		return
	}
	if !flags.Changed("stoploss") {
		simStoploss = p.Stoploss
	}
	if !flags.Changed("size") {
		simPositionSize = p.PositionSize
	}
	if !flags.Changed("max-alloc") {
		simMaxAllocation = p.MaxAllocation
	}
	if !flags.Changed("partial-sell") {
		simPartialSell = p.PartialSellFraction
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simConfigPath != "" {
		cfg, err := config.LoadFromFile(simConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applySimulateConfig(cmd, cfg)
	}
	if simBarsPath == "" {
		return fmt.Errorf("no bar data: pass --bars or set backtest.data_file in the config")
	}

	params, err := risk.NewParams(simStoploss, simPositionSize, simMaxAllocation, simPartialSell)
	if err != nil {
		return err
	}

	feed, err := backtest.OpenCSVFeed(simBarsPath)
	if err != nil {
		return fmt.Errorf("open bars: %w", err)
	}
	defer feed.Close()

	runner := backtest.Runner{
		Instrument:    simInstrument,
		InitialCash:   simCash,
		Params:        params,
		Annualization: simAnnualization,
		Logger:        slog.Default(),
	}

	res := runner.Run(context.Background(), feed)

	fmt.Printf("Simulation complete: %s (%d bars)\n", simInstrument, len(res.Curve))
	fmt.Printf("  PnL:          %.2f\n", res.Stats.PnL)
	fmt.Printf("  Sharpe:       %.4f\n", res.Stats.Sharpe)
	fmt.Printf("  Sortino:      %.4f\n", res.Stats.Sortino)
	fmt.Printf("  Max Drawdown: %.2f%%\n", res.Stats.MaxDrawdown)
	fmt.Printf("  Trades:       %d\n", res.Stats.Trades)

	if simTradesOut != "" {
		if err := journal.ExportTradesCSV(simTradesOut, res.Trades); err != nil {
			return fmt.Errorf("write trades: %w", err)
		}
		fmt.Printf("\nTrades written to %s\n", simTradesOut)
	}
	if simEquityOut != "" {
		if err := journal.ExportEquityCSV(simEquityOut, res.Curve); err != nil {
			return fmt.Errorf("write equity: %w", err)
		}
		fmt.Printf("Equity curve written to %s\n", simEquityOut)
	}
	return nil
}
