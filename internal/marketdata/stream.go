package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stock-scannerv1/internal/model"
)

const (
	heartbeatInterval = 10 * time.Second
	writeTimeout      = 5 * time.Second

	// reconnect backoff
	reconnectBase = 2 * time.Second
	reconnectMax  = 60 * time.Second
)

// StreamConfig configures the live quote stream.
type StreamConfig struct {
	URL        string // wss endpoint
	APIKey     string
	ClientCode string
	FeedToken  string
	AuthToken  string
}

// quoteMessage is the provider's JSON quote frame.
type quoteMessage struct {
	Symbol    string  `json:"symbol"`
	LTP       float64 `json:"ltp"`
	Volume    float64 `json:"volume"`
	ChangePct float64 `json:"change_pct"`
	AvgVolume float64 `json:"avg_volume"`
	ExchTS    int64   `json:"exch_ts"`
}

// Stream maintains a websocket subscription to the provider's quote feed
// and caches the latest sample per symbol. Consumers read the cache via
// Latest; nothing blocks on the socket.
type Stream struct {
	cfg    StreamConfig
	dialer *websocket.Dialer

	mu        sync.RWMutex
	conn      *websocket.Conn
	latest    map[model.Symbol]model.Sample
	subscribe []model.Symbol
	connected bool

	// Callbacks for metrics/health wiring.
	OnSample    func(model.Sample)
	OnReconnect func()
	OnConnected func(bool)
}

// NewStream creates a quote stream. Call Run to connect.
func NewStream(cfg StreamConfig) *Stream {
	return &Stream{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		latest: make(map[model.Symbol]model.Sample),
	}
}

// Subscribe sets the symbols to subscribe on (re)connect and sends the
// subscription immediately when connected.
func (s *Stream) Subscribe(symbols []model.Symbol) error {
	s.mu.Lock()
	s.subscribe = append([]model.Symbol(nil), symbols...)
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil // sent on connect
	}
	return s.sendSubscribe(conn, symbols)
}

// Latest returns the cached sample for sym.
func (s *Stream) Latest(sym model.Symbol) (model.Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sample, ok := s.latest[sym]
	return sample, ok
}

// Connected reports whether the socket is currently up.
func (s *Stream) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Run connects and re-connects with exponential backoff until ctx is
// cancelled. Each successful connect resubscribes the current symbol set.
func (s *Stream) Run(ctx context.Context) {
	delay := reconnectBase
	for {
		start := time.Now()
		err := s.connectAndRead(ctx)
		if time.Since(start) > time.Minute {
			// A connection that held for a while resets the backoff.
			delay = reconnectBase
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[stream] connection lost: %v, reconnecting in %v", err, delay)
			if s.OnReconnect != nil {
				s.OnReconnect()
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > reconnectMax {
			delay = reconnectMax
		}
	}
}

func (s *Stream) connectAndRead(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.cfg.AuthToken)
	header.Set("x-api-key", s.cfg.APIKey)
	header.Set("x-client-code", s.cfg.ClientCode)
	header.Set("x-feed-token", s.cfg.FeedToken)

	conn, resp, err := s.dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: status %s: %w", s.cfg.URL, resp.Status, err)
		}
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	defer conn.Close()

	log.Printf("[stream] connected to %s", s.cfg.URL)

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeTimeout))
	})

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	symbols := append([]model.Symbol(nil), s.subscribe...)
	s.mu.Unlock()
	if s.OnConnected != nil {
		s.OnConnected(true)
	}
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.connected = false
		s.mu.Unlock()
		if s.OnConnected != nil {
			s.OnConnected(false)
		}
	}()

	if len(symbols) > 0 {
		if err := s.sendSubscribe(conn, symbols); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	// Heartbeat keeps the provider from idling out the socket.
	hbCtx, hbCancel := context.WithCancel(ctx)
	defer hbCancel()
	go s.heartbeat(hbCtx, conn)

	// Read loop. Cancellation closes the socket, which unblocks ReadMessage.
	go func() {
		<-hbCtx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		s.handleMessage(data)
	}
}

func (s *Stream) sendSubscribe(conn *websocket.Conn, symbols []model.Symbol) error {
	raw := make([]string, len(symbols))
	for i, sym := range symbols {
		raw[i] = string(sym)
	}
	req := map[string]interface{}{
		"action": "subscribe",
		"params": map[string]interface{}{
			"mode":    "QUOTE",
			"symbols": raw,
		},
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(req)
}

func (s *Stream) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (s *Stream) handleMessage(data []byte) {
	var msg quoteMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[stream] parse error: %v", err)
		return
	}
	if msg.Symbol == "" {
		return // control frame
	}

	sym, err := model.ParseSymbol(msg.Symbol)
	if err != nil {
		log.Printf("[stream] bad symbol %q: %v", msg.Symbol, err)
		return
	}

	relVol := 0.0
	if msg.AvgVolume > 0 {
		relVol = msg.Volume / msg.AvgVolume
	}
	ts := time.Unix(msg.ExchTS, 0).UTC()
	if msg.ExchTS == 0 {
		ts = time.Now().UTC()
	}

	sample := model.Sample{
		Symbol:    sym,
		Price:     msg.LTP,
		Volume:    int64(msg.Volume),
		ChangePct: msg.ChangePct,
		RelVolume: relVol,
		TS:        ts,
	}

	s.mu.Lock()
	s.latest[sym] = sample
	s.mu.Unlock()

	if s.OnSample != nil {
		s.OnSample(sample)
	}
}
