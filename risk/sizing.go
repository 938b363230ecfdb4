package risk

// Action is what the signal asks the sizing policy to do.
type Action int

const (
	Buy Action = iota
	Sell
)

// SizeKind tags the sizing outcome. A skip is an expected no-op
// (allocation cap reached, no cash, nothing to sell), never an error.
type SizeKind int

const (
	SizeSkip SizeKind = iota
	SizeBuy
	SizeSell
	SizeFullClose
)

// Skip reasons surfaced in Size.Reason.
const (
	SkipAtAllocationCap  = "at_allocation_cap"
	SkipInsufficientCash = "insufficient_cash"
	SkipNoPosition       = "no_position"
	SkipNoPrice          = "no_price"
)

// Inputs is the named parameter bag for Decide.
//
// CapitalBase differs by mode on purpose: simulation passes the single
// instrument's free equity, live passes total capital across all
// instruments, because live capital is shared.
type Inputs struct {
	CapitalBase     float64 // base for position_size sizing
	FreeCash        float64 // spendable quote balance
	AllocationValue float64 // market value of this instrument's open lots
	PortfolioValue  float64 // cash + open positions
	Price           float64 // current price, used to convert sell value to units
}

// Size is the order the policy asks for. Buys are expressed as quote
// value (market buy by cost), sells as base units for FIFO matching.
type Size struct {
	Kind   SizeKind
	Reason string

	Value float64 // quote value to buy
	Units float64 // base units to sell
}

// Decide is the pure sizing policy.
//
// BUY: desired = position_size * capital base, capped by the allocation
// headroom (max_allocation * portfolio - current allocation) and by free
// cash; a non-positive result is a skip. SELL: an allocation below the
// full-close cutoff closes entirely, otherwise partial_sell_fraction of
// the allocation value is sold FIFO.
func Decide(action Action, in Inputs, p Params) Size {
	switch action {
	case Buy:
		headroom := p.MaxAllocation*in.PortfolioValue - in.AllocationValue
		if headroom <= 0 {
			return Size{Kind: SizeSkip, Reason: SkipAtAllocationCap}
		}

		value := p.PositionSize * in.CapitalBase
		if value > headroom {
			value = headroom
		}
		if value > in.FreeCash {
			value = in.FreeCash
		}
		if value <= 0 {
			return Size{Kind: SizeSkip, Reason: SkipInsufficientCash}
		}
		return Size{Kind: SizeBuy, Value: value}

	case Sell:
		if in.AllocationValue <= 0 {
			return Size{Kind: SizeSkip, Reason: SkipNoPosition}
		}
		if in.AllocationValue < p.cutoff()*in.PortfolioValue {
			return Size{Kind: SizeFullClose}
		}
		if in.Price <= 0 {
			// A position exists but cannot be converted to units
			// without a usable price.
			return Size{Kind: SizeSkip, Reason: SkipNoPrice}
		}
		return Size{
			Kind:  SizeSell,
			Units: p.PartialSellFraction * in.AllocationValue / in.Price,
		}
	}

	return Size{Kind: SizeSkip, Reason: "unknown_action"}
}
