// Package oracle fetches trade signals from the external signal service.
// The engine treats the oracle as opaque: it asks for the latest signal
// per instrument and timeframe and never looks inside the model.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rmeyers/lotbot/market"
)

// Client is an HTTP market.SignalSource.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ market.SignalSource = (*Client)(nil)

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type apiSignal struct {
	Instrument string `json:"instrument"`
	Timeframe  string `json:"timeframe"`
	Direction  int    `json:"direction"` // -1 sell, 0 flat, 1 buy
	Timestamp  int64  `json:"timestamp"` // unix milliseconds
}

// LatestSignal returns the newest signal for the instrument and
// timeframe. market.ErrNoData means the oracle has not produced one yet.
func (c *Client) LatestSignal(ctx context.Context, instrument, timeframe string) (market.SignalEvent, error) {
	u := fmt.Sprintf("%s/api/v1/signal?%s", c.baseURL, url.Values{
		"instrument": {instrument},
		"timeframe":  {timeframe},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return market.SignalEvent{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return market.SignalEvent{}, fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return market.SignalEvent{}, fmt.Errorf("%s %s: %w", instrument, timeframe, market.ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return market.SignalEvent{}, fmt.Errorf("oracle status %d: %s", resp.StatusCode, body)
	}

	var s apiSignal
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return market.SignalEvent{}, fmt.Errorf("decode signal: %w", err)
	}

	dir := market.Direction(s.Direction)
	if !dir.Valid() {
		return market.SignalEvent{}, fmt.Errorf("oracle returned direction %d for %s", s.Direction, instrument)
	}

	return market.SignalEvent{
		Instrument: instrument,
		Time:       time.UnixMilli(s.Timestamp),
		Direction:  dir,
	}, nil
}
