package pumpportal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// DefaultStreamURL is the PumpPortal data websocket.
const DefaultStreamURL = "wss://pumpportal.fun/api/data"

// StreamConfig configures stream behavior.
type StreamConfig struct {
	URL string
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// MaxQuoteAge is how long a last trade counts as a live price.
	MaxQuoteAge time.Duration
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		URL:               DefaultStreamURL,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxQuoteAge:       2 * time.Minute,
	}
}

// Trade is one swap event from the stream.
type Trade struct {
	Signature      string  `json:"signature"`
	Mint           string  `json:"mint"`
	Trader         string  `json:"traderPublicKey"`
	TxType         string  `json:"txType"` // buy | sell
	TokenAmount    float64 `json:"tokenAmount"`
	SolAmount      float64 `json:"solAmount"`
	VTokensInCurve float64 `json:"vTokensInBondingCurve"`
	VSolInCurve    float64 `json:"vSolInBondingCurve"`
	MarketCapSol   float64 `json:"marketCapSol"`
	Pool           string  `json:"pool"`

	ReceivedAt time.Time `json:"-"`
}

// PriceSol returns the token price in SOL implied by the trade: curve
// reserves when present, otherwise the fill ratio.
func (t Trade) PriceSol() (float64, bool) {
	if t.VTokensInCurve > 0 && t.VSolInCurve > 0 {
		return t.VSolInCurve / t.VTokensInCurve, true
	}
	if t.TokenAmount > 0 && t.SolAmount > 0 {
		return t.SolAmount / t.TokenAmount, true
	}
	return 0, false
}

// Stream keeps the last trade per subscribed mint.
// It reconnects with exponential backoff and resubscribes all mints.
type Stream struct {
	config StreamConfig
	solUsd float64
	log    zerolog.Logger
	now    func() time.Time

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// keys is the set of subscribed mints, replayed after reconnect
	keys   map[string]struct{}
	keysMu sync.RWMutex

	last   map[string]Trade
	lastMu sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// Dial connects to the stream and starts the read and ping goroutines.
// solUsd converts SOL prices to USD.
func Dial(ctx context.Context, config *StreamConfig, solUsd float64, log zerolog.Logger) (*Stream, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.URL == "" {
		cfg.URL = DefaultStreamURL
	}

	s := &Stream{
		config: cfg,
		solUsd: solUsd,
		log:    log.With().Str("component", "pumpportal_stream").Logger(),
		now:    time.Now,
		keys:   make(map[string]struct{}),
		last:   make(map[string]Trade),
		done:   make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()

	return s, nil
}

func (s *Stream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.config.URL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	s.conn = conn
	return nil
}

type streamRequest struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys"`
}

func (s *Stream) send(req streamRequest) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write %s: %w", req.Method, err)
	}
	return nil
}

// Subscribe starts receiving trades for mints.
func (s *Stream) Subscribe(ctx context.Context, mints ...string) error {
	if s.closed.Load() {
		return fmt.Errorf("stream closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var fresh []string
	s.keysMu.Lock()
	for _, m := range mints {
		if _, ok := s.keys[m]; !ok {
			s.keys[m] = struct{}{}
			fresh = append(fresh, m)
		}
	}
	s.keysMu.Unlock()

	if len(fresh) == 0 {
		return nil
	}
	return s.send(streamRequest{Method: "subscribeTokenTrade", Keys: fresh})
}

// Unsubscribe stops trades for mints and forgets their last price.
func (s *Stream) Unsubscribe(ctx context.Context, mints ...string) error {
	if s.closed.Load() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.keysMu.Lock()
	for _, m := range mints {
		delete(s.keys, m)
	}
	s.keysMu.Unlock()

	s.lastMu.Lock()
	for _, m := range mints {
		delete(s.last, m)
	}
	s.lastMu.Unlock()

	return s.send(streamRequest{Method: "unsubscribeTokenTrade", Keys: mints})
}

// LastTrade returns the most recent trade seen for mint.
func (s *Stream) LastTrade(mint string) (Trade, bool) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	t, ok := s.last[mint]
	return t, ok
}

// TokenPriceUsd returns the last trade price when fresh. An unsubscribed
// mint is subscribed on first ask and reports no price until a trade arrives.
func (s *Stream) TokenPriceUsd(ctx context.Context, mint string) (*float64, error) {
	t, ok := s.LastTrade(mint)
	if !ok {
		if err := s.Subscribe(ctx, mint); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if s.config.MaxQuoteAge > 0 && s.now().Sub(t.ReceivedAt) > s.config.MaxQuoteAge {
		return nil, nil
	}
	p, ok := t.PriceSol()
	if !ok || s.solUsd <= 0 {
		return nil, nil
	}
	usd := p * s.solUsd
	return &usd, nil
}

// Close closes the connection and waits for goroutines to exit.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Stream) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			if !s.reconnecting.Swap(true) {
				s.log.Warn().Err(err).Dur("delay", reconnectDelay).Msg("stream read failed, reconnecting")
				go s.reconnect(conn, reconnectDelay)
			}
			reconnectDelay *= 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = s.config.ReconnectDelay
		s.handleMessage(message)
	}
}

// reconnect replaces a dead connection and replays subscriptions.
func (s *Stream) reconnect(dead *websocket.Conn, delay time.Duration) {
	defer s.reconnecting.Store(false)

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn == dead && s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.connect(ctx); err != nil {
		s.log.Warn().Err(err).Msg("stream reconnect failed")
		return
	}

	s.keysMu.RLock()
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	s.keysMu.RUnlock()

	if len(keys) > 0 {
		if err := s.send(streamRequest{Method: "subscribeTokenTrade", Keys: keys}); err != nil {
			s.log.Warn().Err(err).Int("mints", len(keys)).Msg("resubscribe failed")
			return
		}
	}
	s.log.Info().Int("mints", len(keys)).Msg("stream reconnected")
}

func (s *Stream) handleMessage(message []byte) {
	var t Trade
	if err := json.Unmarshal(message, &t); err != nil || t.Mint == "" || t.TxType == "" {
		// Subscription acks and errors carry a "message" or "errors" field.
		return
	}

	s.keysMu.RLock()
	_, wanted := s.keys[t.Mint]
	s.keysMu.RUnlock()
	if !wanted {
		return
	}

	t.ReceivedAt = s.now()
	s.lastMu.Lock()
	s.last[t.Mint] = t
	s.lastMu.Unlock()
}

func (s *Stream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				// A failed ping surfaces as a read error and triggers reconnect.
				_ = s.conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.connMu.Unlock()
		}
	}
}
