package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/rmeyers/lotbot/internal/id"
	"github.com/rmeyers/lotbot/journal"
	"github.com/rmeyers/lotbot/ledger"
	"github.com/rmeyers/lotbot/metrics"
	"github.com/rmeyers/lotbot/venue"
)

// ReasonFill marks realized trades produced by replaying venue fills.
const ReasonFill = "fill"

// Engine replays the venue's fill history into the ledger exactly once
// per fill id. The feed may redeliver fills, deliver them out of order,
// or report partial fills; none of that may double-apply.
//
// After each batch the ledger snapshot, the processed-id set and the new
// realized trades persist as one atomic unit. If that persist fails the
// in-memory state is thrown away and reloaded from the journal on the
// next cycle: skipping a cycle beats diverging from durable state.
type Engine struct {
	store   *ledger.Store
	journal journal.Journal
	fills   venue.FillSource
	log     *slog.Logger

	mu     sync.Mutex
	states map[string]*instrumentState
}

type instrumentState struct {
	mu        sync.Mutex
	loaded    bool
	processed map[string]bool
}

func New(store *ledger.Store, j journal.Journal, fills venue.FillSource, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:   store,
		journal: j,
		fills:   fills,
		log:     log,
		states:  make(map[string]*instrumentState),
	}
}

func (e *Engine) state(instrument string) *instrumentState {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[instrument]
	if !ok {
		st = &instrumentState{processed: make(map[string]bool)}
		e.states[instrument] = st
	}
	return st
}

// Reconcile fetches the instrument's fill history and applies every
// unseen fill, returning the realized trades this batch produced.
func (e *Engine) Reconcile(ctx context.Context, instrument string) ([]journal.RealizedTrade, error) {
	st := e.state(instrument)

	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.loaded {
		durable, err := e.journal.LoadState(ctx, instrument)
		if err != nil {
			return nil, fmt.Errorf("load state %s: %w", instrument, err)
		}
		e.store.Replace(instrument, durable.Lots)
		st.processed = durable.ProcessedIDs
		if st.processed == nil {
			st.processed = make(map[string]bool)
		}
		st.loaded = true
	}

	fills, err := e.fills.ListFills(ctx, instrument)
	if err != nil {
		return nil, fmt.Errorf("list fills %s: %w", instrument, err)
	}

	// The feed is unsorted; fills for one instrument must be applied in
	// increasing timestamp order.
	sort.SliceStable(fills, func(i, j int) bool {
		if !fills[i].Time.Equal(fills[j].Time) {
			return fills[i].Time.Before(fills[j].Time)
		}
		return fills[i].ID < fills[j].ID
	})

	processed := make(map[string]bool, len(st.processed)+len(fills))
	for fid := range st.processed {
		processed[fid] = true
	}

	var trades []journal.RealizedTrade
	var snapshot []ledger.Lot
	var applied int

	err = e.store.With(instrument, func(led *ledger.Ledger) error {
		for _, f := range fills {
			if f.ID == "" || processed[f.ID] {
				continue
			}
			if f.Units <= 0 {
				// Canceled or unfilled order row; nothing to apply.
				processed[f.ID] = true
				continue
			}

			switch f.Side {
			case venue.SideBuy:
				if err := led.Open(f.AvgPrice, f.Units, f.Time); err != nil {
					return err
				}
				applied++

			case venue.SideSell:
				if led.Empty() {
					e.log.Warn("sell fill against empty ledger ignored",
						"instrument", instrument, "fill", f.ID)
					processed[f.ID] = true
					continue
				}
				for _, c := range led.CloseOldest(f.Units) {
					trades = append(trades, journal.RealizedTrade{
						TradeID:        id.New(),
						Instrument:     instrument,
						Time:           f.Time,
						AvgEntryPrice:  c.EntryPrice,
						ExitPrice:      f.AvgPrice,
						Units:          c.Units,
						CostBasis:      c.Units * c.EntryPrice,
						RealizedPnL:    c.Units * (f.AvgPrice - c.EntryPrice),
						RealizedPnLPct: (f.AvgPrice - c.EntryPrice) / c.EntryPrice * 100,
						Reason:         ReasonFill,
					})
				}
				applied++

			default:
				e.log.Warn("fill with unknown side skipped",
					"instrument", instrument, "fill", f.ID, "side", f.Side)
			}

			processed[f.ID] = true
		}

		snapshot = led.Snapshot()
		return nil
	})
	if err != nil {
		st.loaded = false // reload from durable state next cycle
		return nil, err
	}

	saveErr := e.journal.SaveState(ctx, instrument,
		journal.State{Lots: snapshot, ProcessedIDs: processed}, trades)
	if saveErr != nil {
		// The batch is not durable: the in-memory ledger and processed
		// set must not be treated as authoritative for the next cycle.
		st.loaded = false
		return nil, fmt.Errorf("persist state %s: %w", instrument, saveErr)
	}

	st.processed = processed
	metrics.FillsApplied.Add(float64(applied))
	return trades, nil
}
