package ledger

import (
	"fmt"
	"time"
)

// epsilon is the unit count below which a lot is considered empty and
// removed, absorbing floating-point drift from partial closes.
const epsilon = 1e-8

// Lot is an open quantity of an instrument bought at a specific price.
// EntryPrice never changes; Units only shrinks via Close* calls.
type Lot struct {
	EntryPrice float64
	Units      float64
	OpenedAt   time.Time
}

// Closed is one (entry price, units) pair consumed by a close. The
// caller derives cost basis and realized PnL from it.
type Closed struct {
	EntryPrice float64
	Units      float64
}

// Ledger holds the open lots of one instrument, oldest first.
//
// A Ledger is not safe for concurrent use; see Store for the
// per-instrument locking layer.
type Ledger struct {
	instrument string
	lots       []Lot
}

func New(instrument string) *Ledger {
	return &Ledger{instrument: instrument}
}

// FromLots rebuilds a ledger from a persisted snapshot. Lot order is
// preserved; near-empty lots are dropped.
func FromLots(instrument string, lots []Lot) *Ledger {
	l := &Ledger{instrument: instrument}
	for _, lot := range lots {
		if lot.Units > epsilon {
			l.lots = append(l.lots, lot)
		}
	}
	return l
}

func (l *Ledger) Instrument() string { return l.instrument }

func (l *Ledger) Len() int { return len(l.lots) }

func (l *Ledger) Empty() bool { return len(l.lots) == 0 }

// Lots returns a copy of the open lots, oldest first.
func (l *Ledger) Lots() []Lot {
	out := make([]Lot, len(l.lots))
	copy(out, l.lots)
	return out
}

// Snapshot is the persistable form of the ledger.
func (l *Ledger) Snapshot() []Lot { return l.Lots() }

func (l *Ledger) TotalUnits() float64 {
	var total float64
	for _, lot := range l.lots {
		total += lot.Units
	}
	return total
}

// Open appends a new, newest lot. Price and units must both be positive.
func (l *Ledger) Open(price, units float64, openedAt time.Time) error {
	if price <= 0 {
		return fmt.Errorf("ledger %s: open with non-positive price %f", l.instrument, price)
	}
	if units <= 0 {
		return fmt.Errorf("ledger %s: open with non-positive units %f", l.instrument, units)
	}
	l.lots = append(l.lots, Lot{EntryPrice: price, Units: units, OpenedAt: openedAt})
	return nil
}

// CloseOldest consumes up to units from the front of the ledger and
// returns the (entry price, units) pairs taken. The caller prices the
// consumed pairs at its own exit price. Requests beyond the held
// quantity are clipped, not rejected: the ledger never goes short.
func (l *Ledger) CloseOldest(units float64) []Closed {
	if units <= 0 {
		return nil
	}

	var consumed []Closed
	remaining := units

	for remaining > epsilon && len(l.lots) > 0 {
		lot := &l.lots[0]
		if lot.Units <= remaining+epsilon {
			// Whole lot goes.
			consumed = append(consumed, Closed{EntryPrice: lot.EntryPrice, Units: lot.Units})
			remaining -= lot.Units
			l.lots = l.lots[1:]
		} else {
			consumed = append(consumed, Closed{EntryPrice: lot.EntryPrice, Units: remaining})
			lot.Units -= remaining
			remaining = 0
		}
	}

	l.cleanup()
	return consumed
}

// CloseAll closes the full position.
func (l *Ledger) CloseAll() []Closed {
	return l.CloseOldest(l.TotalUnits())
}

// StoplossScan returns the lots whose own entry price has been breached:
// entry*(1-stoploss) > price, strict. The scan is per lot, so a ledger
// may be only partially stopped out.
func (l *Ledger) StoplossScan(price, stoploss float64) []Lot {
	var breached []Lot
	for _, lot := range l.lots {
		if lot.EntryPrice*(1-stoploss) > price {
			breached = append(breached, lot)
		}
	}
	return breached
}

// CloseStopped removes every breached lot entirely and returns the
// consumed pairs, oldest first.
func (l *Ledger) CloseStopped(price, stoploss float64) []Closed {
	var consumed []Closed
	kept := l.lots[:0]
	for _, lot := range l.lots {
		if lot.EntryPrice*(1-stoploss) > price {
			consumed = append(consumed, Closed{EntryPrice: lot.EntryPrice, Units: lot.Units})
		} else {
			kept = append(kept, lot)
		}
	}
	l.lots = kept
	l.cleanup()
	return consumed
}

// Valuation is a point-in-time view of the ledger at a market price.
// AvgEntryPrice is display-only and never used as a matching basis.
type Valuation struct {
	Units         float64
	MarketValue   float64
	AvgEntryPrice float64
}

func (l *Ledger) Valuation(price float64) Valuation {
	var units, invested float64
	for _, lot := range l.lots {
		units += lot.Units
		invested += lot.Units * lot.EntryPrice
	}

	v := Valuation{Units: units, MarketValue: units * price}
	if units > 0 {
		v.AvgEntryPrice = invested / units
	}
	return v
}

func (l *Ledger) cleanup() {
	kept := l.lots[:0]
	for _, lot := range l.lots {
		if lot.Units > epsilon {
			kept = append(kept, lot)
		}
	}
	l.lots = kept
}
