package venue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFills(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/v1/fills", r.URL.Path)
		assert.Equal(t, "BTC/USDT", r.URL.Query().Get("instrument"))

		json.NewEncoder(w).Encode(fillsResponse{Fills: []apiFill{
			{
				ID:         "f-1",
				Instrument: "BTC/USDT",
				Side:       "buy",
				Units:      0.5,
				AvgPrice:   40000,
				Cost:       20000,
				Timestamp:  1740800000000,
			},
		}})
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-token", "USDT")
	fills, err := c.ListFills(context.Background(), "BTC/USDT")
	require.NoError(t, err)

	require.Len(t, fills, 1)
	assert.Equal(t, "f-1", fills[0].ID)
	assert.Equal(t, SideBuy, fills[0].Side)
	assert.InDelta(t, 0.5, fills[0].Units, 1e-9)
	assert.InDelta(t, 40000, fills[0].AvgPrice, 1e-9)
	assert.Equal(t, int64(1740800000), fills[0].Time.Unix())
}

func TestSubmitOrder(t *testing.T) {
	t.Parallel()

	var received orderRequestBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		json.NewEncoder(w).Encode(orderResponse{OrderID: "o-77", Status: "open"})
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-token", "USDT")
	orderID, err := c.SubmitOrder(context.Background(), OrderRequest{
		Instrument: "BTC/USDT",
		Side:       SideBuy,
		Value:      250,
	})
	require.NoError(t, err)
	assert.Equal(t, "o-77", orderID)

	assert.Equal(t, "BTC/USDT", received.Instrument)
	assert.Equal(t, "buy", received.Side)
	assert.Equal(t, "market", received.Type)
	assert.InDelta(t, 250, received.Value, 1e-9)

	// Client order ids must be fresh UUIDs, one per submit.
	_, err = uuid.Parse(received.ClientOrderID)
	assert.NoError(t, err)
}

func TestGetCapital(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/balances", r.URL.Path)
		json.NewEncoder(w).Encode(balancesResponse{Balances: []apiBalance{
			{Asset: "USDT", Total: 1000, Available: 400, QuoteValue: 1000},
			{Asset: "BTC", Total: 0.05, Available: 0.05, QuoteValue: 2000},
		}})
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-token", "USDT")
	capital, err := c.GetCapital(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 3000, capital.Total, 1e-9)
	assert.InDelta(t, 400, capital.Free, 1e-9)
}

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such instrument", http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-token", "USDT")
	_, err := c.ListFills(context.Background(), "NOPE/USDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
