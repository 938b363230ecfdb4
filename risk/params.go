package risk

import (
	"fmt"
	"sync"
)

// DefaultFullCloseCutoff: an allocation worth less than this fraction of
// the portfolio is closed entirely on a sell signal instead of
// partially. Partial execution of immaterial size has no economic
// benefit and only adds bookkeeping noise.
const DefaultFullCloseCutoff = 0.01

// Params are the per-instrument risk knobs. All fields are fractions in
// [0,1]. Build through NewParams; a zero Params is not valid.
type Params struct {
	Stoploss            float64 `json:"stoploss" yaml:"stoploss"`
	PositionSize        float64 `json:"position_size" yaml:"position_size"`
	MaxAllocation       float64 `json:"max_allocation" yaml:"max_allocation"`
	PartialSellFraction float64 `json:"partial_sell_fraction" yaml:"partial_sell_fraction"`

	// FullCloseCutoff defaults to DefaultFullCloseCutoff when zero.
	FullCloseCutoff float64 `json:"full_close_cutoff,omitempty" yaml:"full_close_cutoff,omitempty"`
}

func NewParams(stoploss, positionSize, maxAllocation, partialSell float64) (Params, error) {
	p := Params{
		Stoploss:            stoploss,
		PositionSize:        positionSize,
		MaxAllocation:       maxAllocation,
		PartialSellFraction: partialSell,
		FullCloseCutoff:     DefaultFullCloseCutoff,
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

func (p *Params) Validate() error {
	check := func(name string, v float64) error {
		if v < 0 || v > 1 {
			return fmt.Errorf("risk: %s must be in [0,1], got %f", name, v)
		}
		return nil
	}
	if err := check("stoploss", p.Stoploss); err != nil {
		return err
	}
	if err := check("position_size", p.PositionSize); err != nil {
		return err
	}
	if err := check("max_allocation", p.MaxAllocation); err != nil {
		return err
	}
	if err := check("partial_sell_fraction", p.PartialSellFraction); err != nil {
		return err
	}
	if err := check("full_close_cutoff", p.FullCloseCutoff); err != nil {
		return err
	}
	return nil
}

func (p Params) cutoff() float64 {
	if p.FullCloseCutoff > 0 {
		return p.FullCloseCutoff
	}
	return DefaultFullCloseCutoff
}

// ParamSource is the per-cycle read side of the risk parameter store.
// Parameters are mutable externally and read fresh each cycle.
type ParamSource interface {
	Get(instrument string) (Params, error)
}

// ParamStore is an in-memory ParamSource with a write side.
type ParamStore struct {
	mu     sync.RWMutex
	params map[string]Params
}

func NewParamStore() *ParamStore {
	return &ParamStore{params: make(map[string]Params)}
}

func (s *ParamStore) Get(instrument string) (Params, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.params[instrument]
	if !ok {
		return Params{}, fmt.Errorf("risk: no parameters for %q", instrument)
	}
	return p, nil
}

func (s *ParamStore) Put(instrument string, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[instrument] = p
	return nil
}
