package feed

// feed.go — streaming BTC/USD reference price from the Kraken v2 WebSocket.
//
// One background goroutine owns the connection: dial, subscribe, read until
// the socket drops, reconnect after a fixed 5s. A second goroutine pings
// the socket every 30s. Samples land in a bounded history guarded by a
// RWMutex; readers derive stats from a copy.

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/updown/internal/domain"
)

const (
	// MaxHistory bounds the sample window (600 samples ≈ 10 min at 1/s).
	MaxHistory = 600

	reconnectDelay    = 5 * time.Second
	heartbeatInterval = 30 * time.Second
	staleAfter        = 30 * time.Second
	availableWithin   = 60 * time.Second

	defaultWSURL = "wss://ws.kraken.com/v2"
)

// Feed maintains the reference-price history and connection state.
type Feed struct {
	url    string
	symbol string
	now    func() time.Time

	mu         sync.RWMutex
	samples    []domain.PriceSample
	lastUpdate time.Time
	connected  bool

	connMu sync.Mutex
	conn   *websocket.Conn

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a feed for the given symbol ("BTC/USD"). Empty url uses the
// production Kraken endpoint.
func New(url, symbol string) *Feed {
	if url == "" {
		url = defaultWSURL
	}
	return &Feed{
		url:    url,
		symbol: symbol,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
}

// Start launches the receive loop and the heartbeat timer.
func (f *Feed) Start(ctx context.Context) {
	f.wg.Add(2)
	go f.runLoop(ctx)
	go f.heartbeat(ctx)
}

// Stop closes the connection and waits for the goroutines.
func (f *Feed) Stop() {
	close(f.stop)
	f.closeConn()
	f.wg.Wait()
}

// Latest returns the newest quote with connection/staleness flags.
func (f *Feed) Latest() domain.PriceQuote {
	f.mu.RLock()
	defer f.mu.RUnlock()

	q := domain.PriceQuote{
		LastUpdate: f.lastUpdate,
		Connected:  f.connected,
		Stale:      f.lastUpdate.IsZero() || f.now().Sub(f.lastUpdate) > staleAfter,
	}
	if n := len(f.samples); n > 0 {
		last := f.samples[n-1]
		q.Price, q.Bid, q.Ask = last.Price, last.Bid, last.Ask
	}
	return q
}

// Context derives the direction/momentum statistics from the history.
func (f *Feed) Context() domain.PriceContext {
	f.mu.RLock()
	samples := make([]domain.PriceSample, len(f.samples))
	copy(samples, f.samples)
	f.mu.RUnlock()

	return buildContext(samples, f.now())
}

// Describe renders the current context for the policy prompt.
func (f *Feed) Describe() string {
	return f.Context().Describe()
}

// append stores a sample, keeping timestamps monotone and the window
// bounded. Out-of-order samples are clamped to the previous timestamp.
func (f *Feed) append(s domain.PriceSample) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n := len(f.samples); n > 0 && s.At.Before(f.samples[n-1].At) {
		s.At = f.samples[n-1].At
	}
	f.samples = append(f.samples, s)
	if len(f.samples) > MaxHistory {
		f.samples = f.samples[len(f.samples)-MaxHistory:]
	}
	f.lastUpdate = s.At
}

func (f *Feed) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

// runLoop dials, subscribes and reads until the socket drops, then waits a
// fixed 5s and reconnects. No backoff: the venue tolerates steady retries.
func (f *Feed) runLoop(ctx context.Context) {
	defer f.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stop:
			return
		default:
		}

		if err := f.connect(ctx); err != nil {
			slog.Warn("feed: connect failed", "err", err)
			f.wait(ctx, reconnectDelay)
			continue
		}

		f.setConnected(true)
		slog.Info("feed: connected", "symbol", f.symbol)

		if err := f.readLoop(ctx); err != nil {
			slog.Warn("feed: read loop ended", "err", err)
		}

		f.setConnected(false)
		f.closeConn()

		select {
		case <-ctx.Done():
			return
		case <-f.stop:
			return
		default:
			f.wait(ctx, reconnectDelay)
		}
	}
}

func (f *Feed) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}

	sub := map[string]any{
		"method": "subscribe",
		"params": map[string]any{
			"channel": "ticker",
			"symbol":  []string{f.symbol},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return err
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	return nil
}

// tickerMessage is the Kraken v2 ticker envelope. Unknown fields dropped.
type tickerMessage struct {
	Channel string `json:"channel"`
	Data    []struct {
		Symbol string  `json:"symbol"`
		Last   float64 `json:"last"`
		Bid    float64 `json:"bid"`
		Ask    float64 `json:"ask"`
	} `json:"data"`
}

func (f *Feed) readLoop(_ context.Context) error {
	for {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()
		if conn == nil {
			return nil
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg tickerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue // best effort: malformed frames are dropped
		}
		if msg.Channel != "ticker" || len(msg.Data) == 0 {
			continue
		}

		d := msg.Data[0]
		if d.Last <= 0 {
			continue
		}
		f.append(domain.PriceSample{
			Price: d.Last,
			Bid:   d.Bid,
			Ask:   d.Ask,
			At:    f.now(),
		})
	}
}

// heartbeat pings the socket every 30s. A failed ping closes the socket,
// which ends the read loop with a read error; the reconnect handles it.
func (f *Feed) heartbeat(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stop:
			return
		case <-ticker.C:
			f.connMu.Lock()
			conn := f.conn
			f.connMu.Unlock()
			if conn == nil {
				continue
			}
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				slog.Debug("feed: ping failed", "err", err)
				f.closeConn()
			}
		}
	}
}

func (f *Feed) closeConn() {
	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()
}

func (f *Feed) wait(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	case <-f.stop:
	}
}
