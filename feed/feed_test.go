package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmeyers/lotbot/market"
)

func newFeed() *PriceFeed {
	return NewPriceFeed("wss://example.test/ws", []string{"ETH-USD"},
		slog.New(slog.DiscardHandler))
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestHandleTickerUpdatesCache(t *testing.T) {
	f := newFeed()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return at }

	f.handleTicker(payload(t, tickerPayload{
		Instrument: "ETH-USD",
		Price:      1234.5,
		Time:       at.UnixMilli(),
	}))

	price, err := f.LatestPrice(context.Background(), "ETH-USD")
	require.NoError(t, err)
	assert.InDelta(t, 1234.5, price, 1e-9)
}

func TestLatestPriceNoData(t *testing.T) {
	f := newFeed()

	_, err := f.LatestPrice(context.Background(), "ETH-USD")
	require.Error(t, err)
	assert.ErrorIs(t, err, market.ErrNoData)
}

func TestLatestPriceStale(t *testing.T) {
	f := newFeed()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	f.handleTicker(payload(t, tickerPayload{
		Instrument: "ETH-USD",
		Price:      1234.5,
		Time:       at.UnixMilli(),
	}))

	// Just inside the freshness window.
	f.now = func() time.Time { return at.Add(f.MaxAge) }
	_, err := f.LatestPrice(context.Background(), "ETH-USD")
	require.NoError(t, err)

	// Past it: a stale price must not be served.
	f.now = func() time.Time { return at.Add(f.MaxAge + time.Second) }
	_, err = f.LatestPrice(context.Background(), "ETH-USD")
	assert.ErrorIs(t, err, market.ErrNoData)
}

func TestHandleTickerRejectsBadPayloads(t *testing.T) {
	f := newFeed()

	f.handleTicker(json.RawMessage(`{not json`))
	f.handleTicker(payload(t, tickerPayload{Instrument: "", Price: 10}))
	f.handleTicker(payload(t, tickerPayload{Instrument: "ETH-USD", Price: 0}))

	_, err := f.LatestPrice(context.Background(), "ETH-USD")
	assert.ErrorIs(t, err, market.ErrNoData)
}
