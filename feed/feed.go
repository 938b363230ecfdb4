// Package feed streams venue ticker prices over WebSocket and serves
// them as the engine's price source.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rmeyers/lotbot/market"
)

const (
	readTimeout      = 30 * time.Second
	writeTimeout     = 10 * time.Second
	pingInterval     = 10 * time.Second
	reconnectBackoff = 2 * time.Second

	// DefaultMaxAge is how old a cached price may be before LatestPrice
	// refuses to serve it. A stale price must not size orders.
	DefaultMaxAge = 2 * time.Minute
)

type quote struct {
	price float64
	at    time.Time
}

// PriceFeed keeps the last traded price per subscribed instrument.
// Run maintains the connection; LatestPrice reads the cache.
type PriceFeed struct {
	URL         string
	Instruments []string
	MaxAge      time.Duration

	log *slog.Logger
	now func() time.Time

	mu     sync.RWMutex
	quotes map[string]quote

	connected atomic.Bool
}

var _ market.PriceSource = (*PriceFeed)(nil)

func NewPriceFeed(url string, instruments []string, log *slog.Logger) *PriceFeed {
	if log == nil {
		log = slog.Default()
	}
	return &PriceFeed{
		URL:         url,
		Instruments: instruments,
		MaxAge:      DefaultMaxAge,
		log:         log,
		now:         time.Now,
		quotes:      make(map[string]quote),
	}
}

func (f *PriceFeed) IsConnected() bool {
	return f.connected.Load()
}

// LatestPrice returns the cached price for the instrument, or
// market.ErrNoData when no fresh enough tick has arrived.
func (f *PriceFeed) LatestPrice(ctx context.Context, instrument string) (float64, error) {
	f.mu.RLock()
	q, ok := f.quotes[instrument]
	f.mu.RUnlock()

	if !ok {
		return 0, fmt.Errorf("%s: %w", instrument, market.ErrNoData)
	}
	if age := f.now().Sub(q.at); age > f.MaxAge {
		return 0, fmt.Errorf("%s: price %s old: %w", instrument, age.Round(time.Second), market.ErrNoData)
	}
	return q.price, nil
}

// Run maintains the WebSocket connection with automatic reconnection.
func (f *PriceFeed) Run(ctx context.Context) error {
	for {
		if err := f.connect(ctx); err != nil {
			f.log.Warn("price feed disconnected", "err", err)
		}
		f.connected.Store(false)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectBackoff):
			f.log.Info("price feed reconnecting")
		}
	}
}

func (f *PriceFeed) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(readTimeout))

	if err := f.subscribe(conn); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.connected.Store(true)
	f.log.Info("price feed connected", "instruments", len(f.Instruments))

	ctx2, cancel := context.WithCancel(ctx)
	defer cancel()
	go f.pingLoop(ctx2, conn)
	return f.readLoop(ctx2, conn)
}

func (f *PriceFeed) subscribe(conn *websocket.Conn) error {
	cmd := wsCommand{
		Op:          "subscribe",
		Channel:     "ticker",
		Instruments: f.Instruments,
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(cmd); err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Time{})
	return nil
}

func (f *PriceFeed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				f.log.Debug("price feed ping failed", "err", err)
				return
			}
		}
	}
}

type wsCommand struct {
	Op          string   `json:"op"`
	Channel     string   `json:"channel"`
	Instruments []string `json:"instruments"`
}

type wsEnvelope struct {
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
}

type tickerPayload struct {
	Instrument string  `json:"instrument"`
	Price      float64 `json:"price"`
	Time       int64   `json:"timestamp"` // unix milliseconds
}

func (f *PriceFeed) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		var env wsEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			f.log.Debug("price feed: unmarshal error", "err", err)
			continue
		}

		switch env.Type {
		case "ticker":
			f.handleTicker(env.Msg)
		case "error":
			f.log.Warn("price feed error message", "msg", string(env.Msg))
		default:
			f.log.Debug("price feed: unknown message type", "type", env.Type)
		}
	}
}

func (f *PriceFeed) handleTicker(raw json.RawMessage) {
	var t tickerPayload
	if err := json.Unmarshal(raw, &t); err != nil {
		f.log.Debug("price feed: ticker unmarshal error", "err", err)
		return
	}
	if t.Instrument == "" || t.Price <= 0 {
		return
	}

	at := time.UnixMilli(t.Time)
	if t.Time == 0 {
		at = f.now()
	}

	f.mu.Lock()
	f.quotes[t.Instrument] = quote{price: t.Price, at: at}
	f.mu.Unlock()
}
