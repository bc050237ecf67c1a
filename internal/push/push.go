// Package push consumes the bot's realtime event channel: a websocket carrying
// one JSON frame per event, {"event": "<name>", "data": {...}}.
package push

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Event names. Connect and disconnect are synthesized locally when the
// connection opens or drops.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
	EventLogUpdate  = "log_update"
	EventBotStatus  = "bot_status"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("push client closed")

// Event is one frame of the push channel.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s: empty payload", e.Name)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("event %s: %w", e.Name, err)
	}
	return nil
}

// LogUpdate is the payload of log_update.
type LogUpdate struct {
	Message string `json:"message"`
}

// BotStatus is the payload of bot_status.
type BotStatus struct {
	Status string `json:"status"`
}

// Handler receives events in arrival order. Delivery is at most once.
type Handler interface {
	HandleEvent(Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Event)

func (f HandlerFunc) HandleEvent(e Event) { f(e) }

// Backoff defaults for reconnection
const (
	DefaultInitialBackoff   = 1 * time.Second
	DefaultMaxBackoff       = 60 * time.Second
	DefaultPingWait         = 90 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	backoffFactor           = 2
	writeWait               = 10 * time.Second
)

// Config configures the push client.
type Config struct {
	URL              string
	TLS              *tls.Config
	Header           http.Header
	HandshakeTimeout time.Duration
	// PingWait is how long the connection may stay silent before it is considered dead.
	// The client pings the server every PingWait/2.
	PingWait       time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Logger         *slog.Logger
}

// Client maintains the push connection and reconnects when it drops.
type Client struct {
	cfg       Config
	dialer    *websocket.Dialer
	logger    *slog.Logger
	connected atomic.Bool
	closed    chan struct{}
	closeOnce atomic.Bool
}

// New creates a push client. It does not connect until Run.
func New(cfg Config) *Client {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.PingWait <= 0 {
		cfg.PingWait = DefaultPingWait
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		logger: cfg.Logger,
		closed: make(chan struct{}),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
			TLSClientConfig:  cfg.TLS,
		},
	}
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool { return c.connected.Load() }

// Close stops Run and drops the connection.
func (c *Client) Close() {
	if c.closeOnce.CompareAndSwap(false, true) {
		close(c.closed)
	}
}

// Run connects and delivers events to h until ctx is done or Close is called,
// reconnecting with exponential backoff whenever the connection drops.
func (c *Client) Run(ctx context.Context, h Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	attempt := 0
	for {
		connected, err := c.session(ctx, h)
		if connected {
			attempt = 0
		}
		if err := c.stopped(ctx); err != nil {
			return err
		}

		delay := c.backoff(attempt)
		attempt++
		c.logger.Warn("push channel unavailable, reconnecting", "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			return c.stopped(ctx)
		case <-time.After(delay):
		}
	}
}

// stopped returns ErrClosed after Close, the context error once ctx is done, nil otherwise.
func (c *Client) stopped(ctx context.Context) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	return ctx.Err()
}

// session runs one connection. It reports whether the dial succeeded.
func (c *Client) session(ctx context.Context, h Handler) (bool, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		return false, fmt.Errorf("dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PingWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.PingWait))
	})
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PingWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	// keep an idle channel alive and unblock ReadMessage when the context ends
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(c.cfg.PingWait / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					c.logger.Debug("push ping failed", "error", err)
					_ = conn.Close()
					return
				}
			case <-stop:
				return
			}
		}
	}()

	c.connected.Store(true)
	c.logger.Info("push channel connected", "url", c.cfg.URL)
	h.HandleEvent(Event{Name: EventConnect})
	defer func() {
		c.connected.Store(false)
		h.HandleEvent(Event{Name: EventDisconnect})
	}()

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read failed: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PingWait))
		if msgType != websocket.TextMessage {
			continue
		}

		var ev Event
		if err := json.Unmarshal(message, &ev); err != nil {
			c.logger.Warn("invalid push frame", "error", err)
			continue
		}
		if ev.Name == "" {
			c.logger.Warn("push frame without event name")
			continue
		}
		h.HandleEvent(ev)
	}
}

// backoff returns the delay before reconnect attempt n (0-based).
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.cfg.InitialBackoff
	for i := 0; i < attempt; i++ {
		delay *= backoffFactor
		if delay > c.cfg.MaxBackoff {
			return c.cfg.MaxBackoff
		}
	}
	return delay
}

// DecodeLogUpdate decodes a log_update payload.
func DecodeLogUpdate(e Event) (LogUpdate, error) {
	var p LogUpdate
	err := e.Decode(&p)
	return p, err
}

// DecodeBotStatus decodes a bot_status payload.
func DecodeBotStatus(e Event) (BotStatus, error) {
	var p BotStatus
	err := e.Decode(&p)
	return p, err
}
