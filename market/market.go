package market

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoData signals that a source has no bar, price or signal yet for the
// requested instrument. Callers treat it as "skip this cycle", not a fault.
var ErrNoData = errors.New("market: no data")

// Direction is the per-bar trading signal emitted by an external
// indicator pipeline.
type Direction int

const (
	SignalSell Direction = -1
	SignalFlat Direction = 0
	SignalBuy  Direction = 1
)

func (d Direction) Valid() bool {
	return d == SignalSell || d == SignalFlat || d == SignalBuy
}

func (d Direction) String() string {
	switch d {
	case SignalSell:
		return "sell"
	case SignalFlat:
		return "flat"
	case SignalBuy:
		return "buy"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Bar is one evaluation interval of an instrument: the close price and
// the signal the oracle produced for it.
type Bar struct {
	Time   time.Time
	Price  float64
	Signal Direction
}

// SignalEvent is the latest signal available for an instrument on a
// given timeframe. Timestamps are strictly increasing per instrument.
type SignalEvent struct {
	Instrument string
	Time       time.Time
	Direction  Direction
}

// BarSource yields bars for (instrument, timeframe), monotonically
// advancing per stream. Returns ErrNoData when nothing new exists.
type BarSource interface {
	GetBar(ctx context.Context, instrument, timeframe string) (Bar, error)
}

// PriceSource provides the most recent traded price for an instrument.
type PriceSource interface {
	LatestPrice(ctx context.Context, instrument string) (float64, error)
}

// SignalSource provides the most recent signal for an instrument.
type SignalSource interface {
	LatestSignal(ctx context.Context, instrument, timeframe string) (SignalEvent, error)
}
