package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rmeyers/lotbot/market"
)

// Feed yields price+signal bars one at a time. Implementations should
// be deterministic and return (ok=false, err=nil) at EOF.
type Feed interface {
	Next() (bar market.Bar, ok bool, err error)
	Close() error
}

// SeriesFeed replays an in-memory bar slice. Bars must have strictly
// increasing timestamps; an out-of-order bar is rejected at Next rather
// than applied out of sequence.
type SeriesFeed struct {
	bars []market.Bar
	idx  int
	last time.Time
}

func NewSeriesFeed(bars []market.Bar) *SeriesFeed {
	return &SeriesFeed{bars: bars}
}

func (f *SeriesFeed) Next() (market.Bar, bool, error) {
	if f.idx >= len(f.bars) {
		return market.Bar{}, false, nil
	}

	bar := f.bars[f.idx]
	f.idx++

	if !bar.Signal.Valid() {
		return market.Bar{}, false, fmt.Errorf("bar %d: invalid signal %d", f.idx-1, int(bar.Signal))
	}
	if !f.last.IsZero() && !bar.Time.After(f.last) {
		return market.Bar{}, false, fmt.Errorf("bar %d: timestamp %s not after %s",
			f.idx-1, bar.Time.Format(time.RFC3339), f.last.Format(time.RFC3339))
	}
	f.last = bar.Time

	return bar, true, nil
}

func (f *SeriesFeed) Close() error { return nil }

// CSVFeed reads bars from a CSV file with a "time,price,signal" header.
// Time is RFC3339, signal is -1, 0 or 1.
type CSVFeed struct {
	file   *os.File
	reader *csv.Reader
	last   time.Time
	row    int
}

func OpenCSVFeed(path string) (*CSVFeed, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(file)
	header, err := r.Read()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 3 || header[0] != "time" || header[1] != "price" || header[2] != "signal" {
		file.Close()
		return nil, fmt.Errorf("unexpected header %v, want time,price,signal", header)
	}

	return &CSVFeed{file: file, reader: r}, nil
}

func (f *CSVFeed) Next() (market.Bar, bool, error) {
	rec, err := f.reader.Read()
	if err == io.EOF {
		return market.Bar{}, false, nil
	}
	if err != nil {
		return market.Bar{}, false, err
	}
	f.row++

	ts, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return market.Bar{}, false, fmt.Errorf("row %d: %w", f.row, err)
	}
	price, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return market.Bar{}, false, fmt.Errorf("row %d: %w", f.row, err)
	}
	sig, err := strconv.Atoi(rec[2])
	if err != nil {
		return market.Bar{}, false, fmt.Errorf("row %d: %w", f.row, err)
	}

	bar := market.Bar{Time: ts, Price: price, Signal: market.Direction(sig)}
	if !bar.Signal.Valid() {
		return market.Bar{}, false, fmt.Errorf("row %d: invalid signal %d", f.row, sig)
	}
	if !f.last.IsZero() && !bar.Time.After(f.last) {
		return market.Bar{}, false, fmt.Errorf("row %d: timestamp not increasing", f.row)
	}
	f.last = bar.Time

	return bar, true, nil
}

func (f *CSVFeed) Close() error { return f.file.Close() }
