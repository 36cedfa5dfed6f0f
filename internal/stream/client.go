package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// State is the connection state of the stream client.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosed       State = "closed" // terminal, set by Close
)

// Connection parameters.
const (
	handshakeTimeout      = 10 * time.Second
	pingInterval          = 30 * time.Second
	writeWait             = 10 * time.Second
	closeGracePeriod      = 5 * time.Second
	DefaultReconnectDelay = 5 * time.Second
)

// Handler receives connection transitions and decoded events. All callbacks
// run on the client's run goroutine, so handlers observe events in receipt
// order and never concurrently.
type Handler interface {
	OnConnected()
	OnDisconnected()
	OnEvent(ev Event, raw []byte)
}

// Config holds stream client settings.
type Config struct {
	// URL is the ws:// or wss:// endpoint.
	URL string
	// Token, when set, is sent as a bearer Authorization header on dial.
	Token string
	// ReconnectDelay is the fixed wait between reconnection attempts.
	// Zero means DefaultReconnectDelay. The fixed delay mirrors the
	// upstream dashboard behavior; it is deliberate, not a missing backoff.
	ReconnectDelay time.Duration
}

// Client owns one logical connection to the push endpoint. It reconnects
// after a fixed delay on close or error, decodes inbound frames, and drops
// malformed frames without aborting the connection.
type Client struct {
	cfg     Config
	log     zerolog.Logger
	handler Handler

	mu    sync.Mutex
	conn  *websocket.Conn
	state State

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a stream client. Run must be called to connect.
func NewClient(cfg Config, log zerolog.Logger, handler Handler) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	return &Client{
		cfg:     cfg,
		log:     log.With().Str("component", "stream").Logger(),
		handler: handler,
		state:   StateDisconnected,
		done:    make(chan struct{}),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the client currently holds an open connection.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// setState transitions to s unless the client is already terminally closed.
func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return
	}
	c.state = s
}

// Run connects to the endpoint and maintains the connection until the
// context is cancelled or Close is called. Each disconnect is followed by a
// fixed delay and a fresh connection attempt.
func (c *Client) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return
		case <-c.done:
			return
		default:
		}

		if err := c.connect(ctx); err != nil {
			c.log.Error().Err(err).Dur("delay", c.cfg.ReconnectDelay).Msg("connection failed, retrying")
			c.setState(StateDisconnected)
			if !c.waitReconnect(ctx) {
				return
			}
			continue
		}

		c.readLoop(ctx)

		if !c.waitReconnect(ctx) {
			return
		}
	}
}

// connect opens a new transport handle and transitions to Connected.
func (c *Client) connect(ctx context.Context) error {
	c.setState(StateConnecting)
	c.log.Debug().Str("url", c.cfg.URL).Msg("connecting")

	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			c.log.Error().Msg("stream authentication failed: 401 Unauthorized")
		}
		return err
	}

	c.mu.Lock()
	// Close may have raced the dial; drop the fresh connection in that case.
	if c.state == StateClosed {
		c.mu.Unlock()
		_ = conn.Close()
		return websocket.ErrCloseSent
	}
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	c.handler.OnConnected()
	c.log.Info().Msg("stream connected")
	return nil
}

// readLoop reads frames until the connection drops. Decode failures are
// reported and the frame dropped; the connection stays open. The loop owns
// the ping loop for its connection and stops it on the way out.
func (c *Client) readLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		// Close raced the dial; balance the OnConnected callback.
		c.handler.OnDisconnected()
		return
	}

	pingStop := make(chan struct{})
	go c.pingLoop(ctx, conn, pingStop)

	defer func() {
		close(pingStop)
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		if c.state == StateConnected {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		c.handler.OnDisconnected()
		c.log.Info().Msg("stream disconnected")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Error().Err(err).Msg("read error")
			}
			return
		}

		ev, err := Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Str("frame", string(data)).Msg("dropping malformed frame")
			continue
		}

		c.handler.OnEvent(ev, data)
	}
}

// pingLoop keeps one connection alive through idle proxies. It is bound to
// the conn it was started for and exits when that conn's read loop stops,
// so a reconnect never inherits a stale ping loop.
func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}

// waitReconnect sleeps for the fixed reconnect delay. It returns false when
// the client was torn down while waiting.
func (c *Client) waitReconnect(ctx context.Context) bool {
	timer := time.NewTimer(c.cfg.ReconnectDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-c.done:
		return false
	case <-timer.C:
		return true
	}
}

// Send marshals v and writes it as a text frame. It is best-effort: when the
// client is not connected, or the write fails, the message is silently
// dropped rather than queued, and no error is surfaced to the caller.
func (c *Client) Send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to marshal outbound message")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.conn == nil {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Debug().Err(err).Msg("outbound write failed")
	}
}

// Close tears the client down: it cancels any pending reconnect wait, sends
// a close frame when a connection is open, and forbids further transitions.
// Idempotent and safe to call before Run.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.state = StateClosed
		c.mu.Unlock()

		if conn != nil {
			deadline := time.Now().Add(closeGracePeriod)
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
				deadline,
			)
			_ = conn.Close()
		}
	})
}
