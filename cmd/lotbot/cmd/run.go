package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmeyers/lotbot/config"
	"github.com/rmeyers/lotbot/exec"
	"github.com/rmeyers/lotbot/feed"
	"github.com/rmeyers/lotbot/journal"
	"github.com/rmeyers/lotbot/ledger"
	"github.com/rmeyers/lotbot/metrics"
	"github.com/rmeyers/lotbot/oracle"
	"github.com/rmeyers/lotbot/reconcile"
	"github.com/rmeyers/lotbot/venue"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the live execution coordinator",
	Long: `Run starts live trading: a fast stoploss cadence, a slow signal
cadence, and a reconciliation loop that replays the venue's fill
history into the ledger. Orders are only ever submitted; the ledger
changes exclusively through reconciled fills.

Example:
  lotbot run --config lotbot.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (required)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	token, err := cfg.Venue.Token()
	if err != nil {
		return err
	}
	if cfg.Oracle.BaseURL == "" {
		return fmt.Errorf("oracle.base_url is required for live trading")
	}
	fast, slow, recEvery, err := cfg.Coordinator.Intervals()
	if err != nil {
		return err
	}

	log := slog.Default()
	instruments := cfg.Instruments()

	params, err := cfg.ParamStore()
	if err != nil {
		return err
	}

	jrn, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jrn.Close()

	store := ledger.NewStore()
	client := venue.NewClient(cfg.Venue.BaseURL, token, cfg.Venue.QuoteAsset)
	signals := oracle.NewClient(cfg.Oracle.BaseURL)
	prices := feed.NewPriceFeed(cfg.Venue.WSURL, instruments, log)
	engine := reconcile.New(store, jrn, client, log)

	coordinator := exec.New(instruments, cfg.Coordinator.Timeframe, exec.Deps{
		Store:   store,
		Params:  params,
		Prices:  prices,
		Signals: signals,
		Account: client,
		Orders:  client,
		Journal: jrn,
		Logger:  log,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load durable state and catch up on fills before trading.
	for _, instrument := range instruments {
		if _, err := engine.Reconcile(ctx, instrument); err != nil {
			return fmt.Errorf("initial reconcile %s: %w", instrument, err)
		}
	}

	go func() {
		if err := prices.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("price feed stopped", "err", err)
		}
	}()

	go reconcileLoop(ctx, engine, instruments, recEvery, log)

	if cfg.Metrics.Enabled {
		go serveMetrics(ctx, cfg.Metrics.Addr, log)
	}

	log.Info("coordinator starting",
		"instruments", instruments,
		"stoploss_interval", fast,
		"signal_interval", slow,
		"reconcile_interval", recEvery)

	if err := coordinator.Run(ctx, fast, slow); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("shutting down")
	return nil
}

func reconcileLoop(ctx context.Context, engine *reconcile.Engine, instruments []string, every time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, instrument := range instruments {
				trades, err := engine.Reconcile(ctx, instrument)
				if err != nil {
					log.Error("reconcile failed", "instrument", instrument, "err", err)
					continue
				}
				if len(trades) > 0 {
					log.Info("fills reconciled", "instrument", instrument, "realized_trades", len(trades))
				}
			}
		}
	}
}

func serveMetrics(ctx context.Context, addr string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("metrics server failed", "err", err)
	}
}
