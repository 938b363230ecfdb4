package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Client talks to the venue's REST API. It implements FillSource,
// OrderPlacer and AccountSource.
type Client struct {
	baseURL    string
	token      string
	quoteAsset string
	httpClient *http.Client
}

func NewClient(baseURL, token, quoteAsset string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		quoteAsset: quoteAsset,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type apiFill struct {
	ID         string  `json:"id"`
	Instrument string  `json:"instrument"`
	Side       string  `json:"side"`
	Units      float64 `json:"filled"`
	AvgPrice   float64 `json:"price_avg"`
	Cost       float64 `json:"cost"`
	Timestamp  int64   `json:"timestamp"` // unix milliseconds
}

type fillsResponse struct {
	Fills []apiFill `json:"fills"`
}

func (c *Client) ListFills(ctx context.Context, instrument string) ([]Fill, error) {
	q := url.Values{}
	q.Set("instrument", instrument)

	var resp fillsResponse
	if err := c.get(ctx, "/api/v1/fills", q, &resp); err != nil {
		return nil, fmt.Errorf("list fills %s: %w", instrument, err)
	}

	fills := make([]Fill, 0, len(resp.Fills))
	for _, f := range resp.Fills {
		fills = append(fills, Fill{
			ID:         f.ID,
			Instrument: f.Instrument,
			Side:       Side(f.Side),
			Units:      f.Units,
			AvgPrice:   f.AvgPrice,
			Cost:       f.Cost,
			Time:       time.UnixMilli(f.Timestamp).UTC(),
		})
	}
	return fills, nil
}

type orderRequestBody struct {
	ClientOrderID string  `json:"client_order_id"`
	Instrument    string  `json:"instrument"`
	Side          string  `json:"side"`
	Type          string  `json:"type"`
	Value         float64 `json:"value,omitempty"`
	Units         float64 `json:"units,omitempty"`
}

type orderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (string, error) {
	body := orderRequestBody{
		ClientOrderID: uuid.NewString(),
		Instrument:    req.Instrument,
		Side:          string(req.Side),
		Type:          "market",
		Value:         req.Value,
		Units:         req.Units,
	}

	var resp orderResponse
	if err := c.post(ctx, "/api/v1/orders", body, &resp); err != nil {
		return "", fmt.Errorf("submit %s %s: %w", req.Side, req.Instrument, err)
	}
	return resp.OrderID, nil
}

type apiBalance struct {
	Asset      string  `json:"asset"`
	Total      float64 `json:"total"`
	Available  float64 `json:"available"`
	QuoteValue float64 `json:"quote_value"` // total converted to quote asset
}

type balancesResponse struct {
	Balances []apiBalance `json:"balances"`
}

// GetCapital sums every asset's quote value into total capital and
// takes the quote asset's available balance as free cash.
func (c *Client) GetCapital(ctx context.Context) (Capital, error) {
	var resp balancesResponse
	if err := c.get(ctx, "/api/v1/balances", nil, &resp); err != nil {
		return Capital{}, fmt.Errorf("get balances: %w", err)
	}

	var total Capital
	for _, b := range resp.Balances {
		total.Total += b.QuoteValue
		if b.Asset == c.quoteAsset {
			total.Free = b.Available
		}
	}
	return total, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
