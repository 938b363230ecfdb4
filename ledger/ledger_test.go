package ledger

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func mustOpen(t *testing.T, l *Ledger, price, units float64) {
	t.Helper()
	if err := l.Open(price, units, time.Now()); err != nil {
		t.Fatalf("open: %v", err)
	}
}

func TestOpenRejectsNonPositive(t *testing.T) {
	l := New("BTC/USDT")

	if err := l.Open(0, 1, time.Now()); err == nil {
		t.Fatal("expected error for zero price")
	}
	if err := l.Open(100, 0, time.Now()); err == nil {
		t.Fatal("expected error for zero units")
	}
	if err := l.Open(100, -1, time.Now()); err == nil {
		t.Fatal("expected error for negative units")
	}
	if l.Len() != 0 {
		t.Fatalf("rejected opens must not add lots, got %d", l.Len())
	}
}

func TestCloseOldestFIFOOrder(t *testing.T) {
	// Property: consumption order matches insertion order exactly,
	// checked against a manual oldest-first walk over the same lots.
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 50; trial++ {
		l := New("BTC/USDT")
		type opened struct{ price, units float64 }
		var manual []opened

		n := 1 + rng.Intn(8)
		for i := 0; i < n; i++ {
			price := 100 + rng.Float64()*50
			units := 0.1 + rng.Float64()*2
			mustOpen(t, l, price, units)
			manual = append(manual, opened{price, units})
		}

		total := l.TotalUnits()
		want := total * rng.Float64()

		consumed := l.CloseOldest(want)

		remaining := want
		for i, c := range consumed {
			if !approxEqual(c.EntryPrice, manual[i].price, 1e-9) {
				t.Fatalf("trial %d: pair %d entry %.6f, want oldest-first %.6f",
					trial, i, c.EntryPrice, manual[i].price)
			}
			if c.Units > manual[i].units+1e-9 {
				t.Fatalf("trial %d: pair %d took %.9f from lot of %.9f", trial, i, c.Units, manual[i].units)
			}
			remaining -= c.Units
		}
		if remaining > 1e-6 {
			t.Fatalf("trial %d: %.9f units left unconsumed with lots available", trial, remaining)
		}
		if l.TotalUnits() < 0 {
			t.Fatalf("trial %d: negative total units %.9f", trial, l.TotalUnits())
		}
	}
}

func TestCloseOldestClipsOversell(t *testing.T) {
	l := New("BTC/USDT")
	mustOpen(t, l, 100, 1.0)
	mustOpen(t, l, 110, 0.5)

	consumed := l.CloseOldest(10.0)

	var taken float64
	for _, c := range consumed {
		taken += c.Units
	}
	if !approxEqual(taken, 1.5, 1e-9) {
		t.Fatalf("oversell must clip to held 1.5 units, took %.9f", taken)
	}
	if !l.Empty() {
		t.Fatalf("ledger should be empty after clipped full close, %d lots left", l.Len())
	}
	if l.TotalUnits() != 0 {
		t.Fatalf("total units must be zero, got %.9f", l.TotalUnits())
	}

	// A second oversell against the now-empty ledger takes nothing.
	if again := l.CloseOldest(1.0); len(again) != 0 {
		t.Fatalf("close on empty ledger consumed %d pairs", len(again))
	}
}

func TestCloseOldestPartialLot(t *testing.T) {
	l := New("ETH/USDT")
	mustOpen(t, l, 2000, 1.0)
	mustOpen(t, l, 2100, 1.0)

	consumed := l.CloseOldest(1.4)

	if len(consumed) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(consumed))
	}
	if !approxEqual(consumed[0].Units, 1.0, 1e-9) || !approxEqual(consumed[0].EntryPrice, 2000, 1e-9) {
		t.Fatalf("first pair should be the whole older lot, got %+v", consumed[0])
	}
	if !approxEqual(consumed[1].Units, 0.4, 1e-9) || !approxEqual(consumed[1].EntryPrice, 2100, 1e-9) {
		t.Fatalf("second pair should take 0.4 from the newer lot, got %+v", consumed[1])
	}
	if !approxEqual(l.TotalUnits(), 0.6, 1e-9) {
		t.Fatalf("remaining units %.9f, want 0.6", l.TotalUnits())
	}
}

func TestStoplossScanStrictPerLot(t *testing.T) {
	l := New("BTC/USDT")
	mustOpen(t, l, 100, 1.0)
	mustOpen(t, l, 80, 1.0)

	// 100*(1-0.10) = 90: a price of exactly 90 does not breach (strict >).
	if breached := l.StoplossScan(90, 0.10); len(breached) != 0 {
		t.Fatalf("price at threshold must not breach, got %d lots", len(breached))
	}

	// At 85 the 100-entry lot is breached, the 80-entry lot is not:
	// the scan is against each lot's own entry, not the average.
	breached := l.StoplossScan(85, 0.10)
	if len(breached) != 1 {
		t.Fatalf("expected exactly 1 breached lot, got %d", len(breached))
	}
	if !approxEqual(breached[0].EntryPrice, 100, 1e-9) {
		t.Fatalf("breached lot entry %.2f, want 100", breached[0].EntryPrice)
	}
}

func TestCloseStoppedPartialStopout(t *testing.T) {
	l := New("BTC/USDT")
	mustOpen(t, l, 100, 1.0)
	mustOpen(t, l, 80, 2.0)

	consumed := l.CloseStopped(85, 0.10)

	if len(consumed) != 1 {
		t.Fatalf("expected 1 consumed pair, got %d", len(consumed))
	}
	if !approxEqual(consumed[0].Units, 1.0, 1e-9) {
		t.Fatalf("stopped lot must close entirely, took %.9f", consumed[0].Units)
	}
	if !approxEqual(l.TotalUnits(), 2.0, 1e-9) {
		t.Fatalf("surviving lot units %.9f, want 2.0", l.TotalUnits())
	}
}

func TestEpsilonCleanup(t *testing.T) {
	l := New("BTC/USDT")
	mustOpen(t, l, 100, 1.0)

	// Closing all but a sliver below epsilon must drop the lot.
	l.CloseOldest(1.0 - 1e-12)
	if !l.Empty() {
		t.Fatalf("near-empty lot should be cleaned up, %d lots remain", l.Len())
	}
}

func TestValuation(t *testing.T) {
	l := New("BTC/USDT")
	mustOpen(t, l, 100, 1.0)
	mustOpen(t, l, 200, 1.0)

	v := l.Valuation(150)
	if !approxEqual(v.Units, 2.0, 1e-9) {
		t.Fatalf("units %.9f, want 2", v.Units)
	}
	if !approxEqual(v.MarketValue, 300, 1e-9) {
		t.Fatalf("market value %.9f, want 300", v.MarketValue)
	}
	if !approxEqual(v.AvgEntryPrice, 150, 1e-9) {
		t.Fatalf("weighted avg entry %.9f, want 150", v.AvgEntryPrice)
	}

	empty := New("ETH/USDT").Valuation(150)
	if empty.Units != 0 || empty.MarketValue != 0 || empty.AvgEntryPrice != 0 {
		t.Fatalf("empty ledger valuation should be all zero, got %+v", empty)
	}
}

func TestFromLotsDropsEmpty(t *testing.T) {
	l := FromLots("BTC/USDT", []Lot{
		{EntryPrice: 100, Units: 1.0},
		{EntryPrice: 110, Units: 0},
		{EntryPrice: 120, Units: 1e-12},
	})
	if l.Len() != 1 {
		t.Fatalf("expected 1 restored lot, got %d", l.Len())
	}
}

func TestStoreWithCreatesOnFirstReference(t *testing.T) {
	s := NewStore()

	err := s.With("BTC/USDT", func(l *Ledger) error {
		return l.Open(100, 1.0, time.Now())
	})
	if err != nil {
		t.Fatalf("with: %v", err)
	}

	var units float64
	_ = s.With("BTC/USDT", func(l *Ledger) error {
		units = l.TotalUnits()
		return nil
	})
	if !approxEqual(units, 1.0, 1e-9) {
		t.Fatalf("units %.9f, want 1.0 after open through store", units)
	}

	if got := s.Instruments(); len(got) != 1 || got[0] != "BTC/USDT" {
		t.Fatalf("instruments = %v", got)
	}
}

func TestStoreReplace(t *testing.T) {
	s := NewStore()
	_ = s.With("BTC/USDT", func(l *Ledger) error {
		return l.Open(100, 5.0, time.Now())
	})

	s.Replace("BTC/USDT", []Lot{{EntryPrice: 90, Units: 2.0}})

	var v Valuation
	_ = s.With("BTC/USDT", func(l *Ledger) error {
		v = l.Valuation(90)
		return nil
	})
	if !approxEqual(v.Units, 2.0, 1e-9) {
		t.Fatalf("replaced ledger units %.9f, want 2.0", v.Units)
	}
}
