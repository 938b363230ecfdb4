package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmeyers/lotbot/market"
)

func TestLatestSignal(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/signal", r.URL.Path)
		assert.Equal(t, "ETH-USD", r.URL.Query().Get("instrument"))
		assert.Equal(t, "1h", r.URL.Query().Get("timeframe"))
		w.Write([]byte(`{"instrument":"ETH-USD","timeframe":"1h","direction":1,"timestamp":` +
			"1772366400000" + `}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	sig, err := c.LatestSignal(context.Background(), "ETH-USD", "1h")
	require.NoError(t, err)
	assert.Equal(t, market.SignalBuy, sig.Direction)
	assert.True(t, sig.Time.Equal(at), "got %s", sig.Time)
}

func TestLatestSignalNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).LatestSignal(context.Background(), "ETH-USD", "1h")
	assert.ErrorIs(t, err, market.ErrNoData)
}

func TestLatestSignalBadDirection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"direction":7,"timestamp":1772366400000}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).LatestSignal(context.Background(), "ETH-USD", "1h")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "direction")
}
