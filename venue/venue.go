package venue

import (
	"context"
	"time"
)

// Side of a venue order or fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Fill is one executed trade from the venue's history. It is external
// and read-only; the engine's sole obligation is to consume each ID
// exactly once. The feed may redeliver fills, out of order, partially
// filled.
type Fill struct {
	ID         string
	Instrument string
	Side       Side
	Units      float64 // filled base units
	AvgPrice   float64
	Cost       float64 // quote amount
	Time       time.Time
}

// OrderRequest is a market order. Buys are specified by quote value,
// sells by base units, matching how spot venues take market orders.
type OrderRequest struct {
	Instrument string
	Side       Side
	Value      float64 // quote value, buys only
	Units      float64 // base units, sells only
}

// Capital is the account-wide money view used for live sizing: total
// capital across every asset, and the free quote balance spendable on
// new buys.
type Capital struct {
	Total float64
	Free  float64
}

// FillSource lists the venue's fill history for an instrument. The
// result is idempotently re-fetchable and unsorted.
type FillSource interface {
	ListFills(ctx context.Context, instrument string) ([]Fill, error)
}

// OrderPlacer submits a market order, fire-and-forget from the
// engine's view; the resulting fill arrives later through FillSource.
type OrderPlacer interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (orderID string, err error)
}

// AccountSource reports the account's capital.
type AccountSource interface {
	GetCapital(ctx context.Context) (Capital, error)
}
