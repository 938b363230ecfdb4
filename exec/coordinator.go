// Package exec drives live trading: a fast stoploss cadence and a slow
// signal cadence over a shared instrument set.
package exec

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rmeyers/lotbot/journal"
	"github.com/rmeyers/lotbot/ledger"
	"github.com/rmeyers/lotbot/market"
	"github.com/rmeyers/lotbot/metrics"
	"github.com/rmeyers/lotbot/risk"
	"github.com/rmeyers/lotbot/venue"
)

// Phase names a coordinator cadence.
type Phase string

const (
	PhaseStoploss Phase = "stoploss"
	PhaseSignal   Phase = "signal"
)

// Status classifies what happened to one instrument in one pass.
type Status int

const (
	Applied Status = iota
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Applied:
		return "applied"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Outcome reports one instrument's result for one pass.
type Outcome struct {
	Instrument string
	Phase      Phase
	Status     Status
	Reason     string
	Err        error
}

// Coordinator submits orders; it never mutates the ledger. Ledger state
// changes only through fill reconciliation, so a submitted order that
// the venue rejects or partially fills leaves the books correct.
type Coordinator struct {
	Instruments []string
	Timeframe   string

	store   *ledger.Store
	params  risk.ParamSource
	prices  market.PriceSource
	signals market.SignalSource
	account venue.AccountSource
	orders  venue.OrderPlacer
	journal journal.Journal
	log     *slog.Logger

	// passMu gives passes single-flight semantics: a tick that finds a
	// pass still running is dropped, not queued.
	passMu sync.Mutex

	actedMu   sync.Mutex
	lastActed map[string]time.Time

	hwmMu     sync.Mutex
	highWater map[string]float64
}

type Deps struct {
	Store   *ledger.Store
	Params  risk.ParamSource
	Prices  market.PriceSource
	Signals market.SignalSource
	Account venue.AccountSource
	Orders  venue.OrderPlacer
	Journal journal.Journal // optional; records per-pass equity samples
	Logger  *slog.Logger
}

func New(instruments []string, timeframe string, d Deps) *Coordinator {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		Instruments: instruments,
		Timeframe:   timeframe,
		store:       d.Store,
		params:      d.Params,
		prices:      d.Prices,
		signals:     d.Signals,
		account:     d.Account,
		orders:      d.Orders,
		journal:     d.Journal,
		log:         log,
		lastActed:   make(map[string]time.Time),
		highWater:   make(map[string]float64),
	}
}

// Run ticks both cadences until the context ends. Reconciliation runs
// on its own schedule outside this loop.
func (c *Coordinator) Run(ctx context.Context, fast, slow time.Duration) error {
	fastTick := time.NewTicker(fast)
	defer fastTick.Stop()
	slowTick := time.NewTicker(slow)
	defer slowTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-fastTick.C:
			c.StoplossPass(ctx)
		case <-slowTick.C:
			c.SignalPass(ctx)
		}
	}
}

// StoplossPass checks every instrument's open lots against the current
// price and submits exit orders for breached lots.
func (c *Coordinator) StoplossPass(ctx context.Context) []Outcome {
	if !c.passMu.TryLock() {
		c.log.Warn("stoploss pass skipped, previous pass still running")
		metrics.PassesSkipped.WithLabelValues(string(PhaseStoploss)).Inc()
		return nil
	}
	defer c.passMu.Unlock()
	metrics.PassesRun.WithLabelValues(string(PhaseStoploss)).Inc()

	return c.fanout(PhaseStoploss, func(instrument string) Outcome {
		return c.stoplossOne(ctx, instrument)
	})
}

// SignalPass acts on each instrument's latest signal, once per signal.
func (c *Coordinator) SignalPass(ctx context.Context) []Outcome {
	if !c.passMu.TryLock() {
		c.log.Warn("signal pass skipped, previous pass still running")
		metrics.PassesSkipped.WithLabelValues(string(PhaseSignal)).Inc()
		return nil
	}
	defer c.passMu.Unlock()
	metrics.PassesRun.WithLabelValues(string(PhaseSignal)).Inc()

	return c.fanout(PhaseSignal, func(instrument string) Outcome {
		return c.signalOne(ctx, instrument)
	})
}

// fanout runs fn per instrument concurrently. A panic in one
// instrument becomes a Failed outcome; the rest of the pass proceeds.
func (c *Coordinator) fanout(phase Phase, fn func(instrument string) Outcome) []Outcome {
	out := make([]Outcome, len(c.Instruments))
	var wg sync.WaitGroup
	for i, instrument := range c.Instruments {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					c.log.Error("pass panicked", "phase", phase, "instrument", instrument, "panic", r)
					out[i] = Outcome{
						Instrument: instrument,
						Phase:      phase,
						Status:     Failed,
						Err:        fmt.Errorf("panic: %v", r),
					}
				}
			}()
			out[i] = fn(instrument)
		}()
	}
	wg.Wait()
	return out
}

func (c *Coordinator) stoplossOne(ctx context.Context, instrument string) Outcome {
	o := Outcome{Instrument: instrument, Phase: PhaseStoploss}

	p, err := c.params.Get(instrument)
	if err != nil {
		return fail(o, "params", err)
	}
	price, err := c.prices.LatestPrice(ctx, instrument)
	if err != nil {
		return fail(o, "price", err)
	}

	var breached float64
	err = c.store.With(instrument, func(led *ledger.Ledger) error {
		for _, lot := range led.StoplossScan(price, p.Stoploss) {
			breached += lot.Units
		}
		return nil
	})
	if err != nil {
		return fail(o, "ledger", err)
	}

	if breached <= 0 {
		o.Status = Skipped
		o.Reason = "no_breach"
		return o
	}

	c.log.Info("stoploss breach, submitting exit",
		"instrument", instrument, "price", price, "units", breached)
	if _, err := c.orders.SubmitOrder(ctx, venue.OrderRequest{
		Instrument: instrument,
		Side:       venue.SideSell,
		Units:      breached,
	}); err != nil {
		metrics.OrderFailures.Inc()
		return fail(o, "order", err)
	}
	metrics.OrdersSubmitted.WithLabelValues(string(venue.SideSell)).Inc()
	metrics.StoplossExits.Inc()

	o.Status = Applied
	o.Reason = "stoploss_exit"
	return o
}

func (c *Coordinator) signalOne(ctx context.Context, instrument string) Outcome {
	o := Outcome{Instrument: instrument, Phase: PhaseSignal}

	sig, err := c.signals.LatestSignal(ctx, instrument, c.Timeframe)
	if err != nil {
		// An unreachable oracle skips this instrument this pass; it
		// does not take the whole pass down.
		return fail(o, "signal", err)
	}
	if !c.freshSignal(instrument, sig.Time) {
		o.Status = Skipped
		o.Reason = "already_acted"
		return o
	}
	p, err := c.params.Get(instrument)
	if err != nil {
		return fail(o, "params", err)
	}
	price, err := c.prices.LatestPrice(ctx, instrument)
	if err != nil {
		return fail(o, "price", err)
	}
	capital, err := c.account.GetCapital(ctx)
	if err != nil {
		return fail(o, "capital", err)
	}

	var val ledger.Valuation
	var breached float64
	err = c.store.With(instrument, func(led *ledger.Ledger) error {
		val = led.Valuation(price)
		for _, lot := range led.StoplossScan(price, p.Stoploss) {
			breached += lot.Units
		}
		return nil
	})
	if err != nil {
		return fail(o, "ledger", err)
	}
	metrics.PositionValue.WithLabelValues(instrument).Set(val.MarketValue)
	c.recordEquity(ctx, instrument, capital, val.MarketValue)

	// Stoploss exits come first. The ledger itself only changes when
	// the exit fill reconciles, but sizing must already see the
	// reduced allocation so a buy in the same pass cannot reuse it.
	alloc := val.MarketValue
	if breached > 0 {
		if _, err := c.orders.SubmitOrder(ctx, venue.OrderRequest{
			Instrument: instrument,
			Side:       venue.SideSell,
			Units:      breached,
		}); err != nil {
			metrics.OrderFailures.Inc()
			return fail(o, "stoploss order", err)
		}
		metrics.OrdersSubmitted.WithLabelValues(string(venue.SideSell)).Inc()
		metrics.StoplossExits.Inc()
		alloc -= breached * price
		if alloc < 0 {
			alloc = 0
		}
	}

	// The signal is consumed only once evaluation reaches the sizing
	// decision. A sizing no-op still consumes it (a capped buy must not
	// retry every pass), but a failed params/price/capital fetch leaves
	// it fresh so the next pass retries the same signal.
	var action risk.Action
	switch sig.Direction {
	case market.SignalBuy:
		action = risk.Buy
	case market.SignalSell:
		action = risk.Sell
	default:
		c.markActed(instrument, sig.Time)
		o.Status = Skipped
		o.Reason = "flat_signal"
		return o
	}

	// Live capital is shared across instruments, so total capital is
	// the sizing base rather than a per-instrument slice.
	sz := risk.Decide(action, risk.Inputs{
		CapitalBase:     capital.Total,
		FreeCash:        capital.Free,
		AllocationValue: alloc,
		PortfolioValue:  capital.Total,
		Price:           price,
	}, p)

	var req venue.OrderRequest
	switch sz.Kind {
	case risk.SizeSkip:
		c.markActed(instrument, sig.Time)
		o.Status = Skipped
		o.Reason = sz.Reason
		return o
	case risk.SizeBuy:
		req = venue.OrderRequest{Instrument: instrument, Side: venue.SideBuy, Value: sz.Value}
	case risk.SizeSell:
		req = venue.OrderRequest{Instrument: instrument, Side: venue.SideSell, Units: sz.Units}
	case risk.SizeFullClose:
		units := val.Units - breached
		if units <= 0 {
			c.markActed(instrument, sig.Time)
			o.Status = Skipped
			o.Reason = risk.SkipNoPosition
			return o
		}
		req = venue.OrderRequest{Instrument: instrument, Side: venue.SideSell, Units: units}
	}

	orderID, err := c.orders.SubmitOrder(ctx, req)
	if err != nil {
		metrics.OrderFailures.Inc()
		return fail(o, "order", err)
	}
	metrics.OrdersSubmitted.WithLabelValues(string(req.Side)).Inc()
	c.markActed(instrument, sig.Time)
	c.log.Info("order submitted",
		"instrument", instrument, "side", req.Side,
		"value", req.Value, "units", req.Units, "order", orderID)

	o.Status = Applied
	o.Reason = string(req.Side)
	return o
}

// recordEquity journals one point on the live equity curve. Failures
// are logged and swallowed: a missing sample must not block trading.
func (c *Coordinator) recordEquity(ctx context.Context, instrument string, capital venue.Capital, positionValue float64) {
	if c.journal == nil {
		return
	}

	c.hwmMu.Lock()
	hwm := c.highWater[instrument]
	if capital.Total > hwm {
		hwm = capital.Total
		c.highWater[instrument] = hwm
	}
	c.hwmMu.Unlock()

	sample := journal.EquitySample{
		Time:          time.Now().UTC(),
		Cash:          capital.Free,
		PositionValue: positionValue,
		TotalEquity:   capital.Total,
	}
	if hwm > 0 {
		sample.DrawdownPct = (hwm - capital.Total) / hwm * 100
	}
	if capital.Total > 0 {
		sample.InvestedPct = positionValue / capital.Total * 100
	}
	if err := c.journal.RecordEquity(ctx, instrument, sample); err != nil {
		c.log.Warn("equity sample not recorded", "instrument", instrument, "err", err)
	}
}

func (c *Coordinator) freshSignal(instrument string, at time.Time) bool {
	c.actedMu.Lock()
	defer c.actedMu.Unlock()
	return at.After(c.lastActed[instrument])
}

func (c *Coordinator) markActed(instrument string, at time.Time) {
	c.actedMu.Lock()
	defer c.actedMu.Unlock()
	if at.After(c.lastActed[instrument]) {
		c.lastActed[instrument] = at
	}
}

func fail(o Outcome, stage string, err error) Outcome {
	o.Status = Failed
	o.Reason = stage
	o.Err = fmt.Errorf("%s: %w", stage, err)
	return o
}
