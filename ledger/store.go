package ledger

import (
	"sort"
	"sync"
)

// Store is an explicit registry of ledgers keyed by instrument. Every
// access goes through With, which holds that instrument's own mutex:
// reconciliation and the fast stoploss scan may interleave on the same
// instrument even when outer coordination passes are serialized.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu     sync.Mutex
	ledger *Ledger
}

func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

func (s *Store) get(instrument string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[instrument]
	if !ok {
		e = &entry{ledger: New(instrument)}
		s.entries[instrument] = e
	}
	return e
}

// With runs fn with exclusive access to the instrument's ledger,
// creating an empty ledger on first reference.
func (s *Store) With(instrument string, fn func(*Ledger) error) error {
	e := s.get(instrument)

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.ledger)
}

// Replace swaps in a ledger rebuilt from persisted lots.
func (s *Store) Replace(instrument string, lots []Lot) {
	e := s.get(instrument)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.ledger = FromLots(instrument, lots)
}

// Instruments lists every instrument the store has seen, sorted.
func (s *Store) Instruments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.entries))
	for instrument := range s.entries {
		out = append(out, instrument)
	}
	sort.Strings(out)
	return out
}
