// journal/journal.go
package journal

import (
	"context"
	"time"

	"github.com/rmeyers/lotbot/ledger"
)

// RealizedTrade is created exactly once per unit of closed quantity and
// never mutated afterward.
type RealizedTrade struct {
	TradeID        string
	Instrument     string
	Time           time.Time
	AvgEntryPrice  float64
	ExitPrice      float64
	Units          float64
	CostBasis      float64
	RealizedPnL    float64
	RealizedPnLPct float64
	Reason         string
}

// EquitySample is one point on the equity curve.
type EquitySample struct {
	Time          time.Time
	Cash          float64
	PositionValue float64
	TotalEquity   float64
	InvestedPct   float64
	DrawdownPct   float64
}

// State is the durable per-instrument unit: the open lots and the set
// of venue fill ids already applied to them. The two always persist
// together — a crash must never advance one without the other.
type State struct {
	Lots         []ledger.Lot
	ProcessedIDs map[string]bool
}

func NewState() State {
	return State{ProcessedIDs: make(map[string]bool)}
}

type Journal interface {
	LoadState(ctx context.Context, instrument string) (State, error)
	SaveState(ctx context.Context, instrument string, st State, trades []RealizedTrade) error
	RecordEquity(ctx context.Context, instrument string, s EquitySample) error
	ListTrades(ctx context.Context, instrument string) ([]RealizedTrade, error)
	Close() error
}
