package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rmeyers/lotbot/internal/id"
	"github.com/rmeyers/lotbot/journal"
	"github.com/rmeyers/lotbot/ledger"
	"github.com/rmeyers/lotbot/market"
	"github.com/rmeyers/lotbot/risk"
)

// Close reasons recorded on realized trades.
const (
	ReasonStoploss = "stoploss"
	ReasonSignal   = "signal"
)

// Runner drives one instrument's ledger bar by bar: stoploss scan
// first, then signal-driven sizing, then a valuation sample. Any fault
// inside the loop becomes a zeroed-stats result instead of propagating,
// so a parameter search can score a bad combination instead of dying.
type Runner struct {
	Instrument  string
	InitialCash float64
	Params      risk.Params

	// Annualization is the number of bar periods per year used for the
	// Sharpe/Sortino scaling factor. Zero means DefaultAnnualization,
	// which assumes daily-equivalent bars; callers running hourly bars
	// should pass 252*24, and so on.
	Annualization float64

	Logger *slog.Logger
}

// Result is the typed outcome of one simulation run. A failed run has
// zero Stats and a nil curve, never an error.
type Result struct {
	Curve  []journal.EquitySample
	Trades []journal.RealizedTrade
	Stats  Stats
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Run executes the simulation. The returned Result is always usable;
// see Runner's doc for the fault policy.
func (r *Runner) Run(ctx context.Context, feed Feed) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger().Error("simulation panic, returning zeroed stats",
				"instrument", r.Instrument, "panic", p)
			res = Result{}
		}
	}()

	res, err := r.run(ctx, feed)
	if err != nil {
		r.logger().Error("simulation failed, returning zeroed stats",
			"instrument", r.Instrument, "err", err)
		return Result{}
	}
	return res
}

func (r *Runner) run(ctx context.Context, feed Feed) (Result, error) {
	if r.InitialCash <= 0 {
		return Result{}, fmt.Errorf("initial cash must be positive, got %f", r.InitialCash)
	}
	if err := r.Params.Validate(); err != nil {
		return Result{}, err
	}
	defer feed.Close()

	led := ledger.New(r.Instrument)
	cash := r.InitialCash
	highWater := r.InitialCash

	var res Result

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		bar, ok, err := feed.Next()
		if err != nil {
			return Result{}, err
		}
		if !ok {
			break
		}

		// STOPLOSS phase, before the signal: a simultaneous buy signal
		// must never mask an exit from a losing lot.
		closed := led.CloseStopped(bar.Price, r.Params.Stoploss)
		cash += r.realize(&res, closed, bar.Price, bar.Time, ReasonStoploss)

		// SIGNAL phase. The allocation cap below already reflects the
		// post-stoploss position.
		switch bar.Signal {
		case market.SignalBuy:
			v := led.Valuation(bar.Price)
			sz := risk.Decide(risk.Buy, risk.Inputs{
				CapitalBase:     cash,
				FreeCash:        cash,
				AllocationValue: v.MarketValue,
				PortfolioValue:  cash + v.MarketValue,
				Price:           bar.Price,
			}, r.Params)
			if sz.Kind == risk.SizeBuy {
				if err := led.Open(bar.Price, sz.Value/bar.Price, bar.Time); err != nil {
					return Result{}, err
				}
				cash -= sz.Value
			}

		case market.SignalSell:
			if !led.Empty() {
				v := led.Valuation(bar.Price)
				sz := risk.Decide(risk.Sell, risk.Inputs{
					AllocationValue: v.MarketValue,
					PortfolioValue:  cash + v.MarketValue,
					Price:           bar.Price,
				}, r.Params)

				var closed []ledger.Closed
				switch sz.Kind {
				case risk.SizeFullClose:
					closed = led.CloseAll()
				case risk.SizeSell:
					closed = led.CloseOldest(sz.Units)
				}
				cash += r.realize(&res, closed, bar.Price, bar.Time, ReasonSignal)
			}
		}

		// VALUATION phase.
		v := led.Valuation(bar.Price)
		equity := cash + v.MarketValue
		if equity > highWater {
			highWater = equity
		}

		sample := journal.EquitySample{
			Time:          bar.Time,
			Cash:          cash,
			PositionValue: v.MarketValue,
			TotalEquity:   equity,
			DrawdownPct:   (highWater - equity) / highWater * 100,
		}
		if equity > 0 {
			sample.InvestedPct = v.MarketValue / equity * 100
		}
		res.Curve = append(res.Curve, sample)
	}

	res.Stats = computeStats(res.Curve, r.InitialCash, r.Annualization, len(res.Trades))
	return res, nil
}

// realize appends one trade record per consumed (entry, units) pair and
// returns the cash credited by the close.
func (r *Runner) realize(res *Result, closed []ledger.Closed, price float64, at time.Time, reason string) float64 {
	var credited float64
	for _, c := range closed {
		credited += c.Units * price
		res.Trades = append(res.Trades, journal.RealizedTrade{
			TradeID:        id.New(),
			Instrument:     r.Instrument,
			Time:           at,
			AvgEntryPrice:  c.EntryPrice,
			ExitPrice:      price,
			Units:          c.Units,
			CostBasis:      c.Units * c.EntryPrice,
			RealizedPnL:    c.Units * (price - c.EntryPrice),
			RealizedPnLPct: (price - c.EntryPrice) / c.EntryPrice * 100,
			Reason:         reason,
		})
	}
	return credited
}
