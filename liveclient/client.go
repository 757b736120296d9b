package liveclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultMaxAttempts  = 5
	defaultRetryBackoff = 2 * time.Second
)

// Envelope mirrors the server's wire frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type joinPayload struct {
	SessionID string `json:"session_id"`
}

// Config describes one viewer connection.
type Config struct {
	URL       string
	SessionID string
	// MaxAttempts bounds the reconnect loop; exhausting it surfaces
	// StateFailed instead of retrying forever.
	MaxAttempts  int
	RetryBackoff time.Duration
	Logger       *slog.Logger

	// OnMessage receives every inbound frame. OnStateChange observes
	// lifecycle transitions; both are optional.
	OnMessage     func(Envelope)
	OnStateChange func(State)
}

// Client maintains one viewer websocket, rejoining the session room on every
// successful (re)connect.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	mu       sync.Mutex
	state    State
	attempts int
	conn     *websocket.Conn
	closed   bool
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("liveclient: url is required")
	}
	if cfg.SessionID == "" {
		return nil, fmt.Errorf("liveclient: session id is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		state:  StateIdle,
	}, nil
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the reconnect attempts made since the last successful
// connect.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Run connects and services the connection until the context is cancelled,
// Close is called, or the retry budget is exhausted (returned as an error so
// the caller can surface a "reload required" state).
func (c *Client) Run(ctx context.Context) error {
	c.transition(EventDial)

	for {
		if err := ctx.Err(); err != nil {
			c.transition(EventClientClosed)
			return err
		}

		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			c.cfg.Logger.Warn("dial failed", slog.String("url", c.cfg.URL), slog.Any("error", err))
			c.transition(EventDialFailed)
			if failed := c.retryOrFail(ctx); failed != nil {
				return failed
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.transition(EventConnected)

		// Room membership is per-connection server state, so the join has
		// to be re-issued after every reconnect.
		if err := c.joinRoom(conn); err != nil {
			c.cfg.Logger.Warn("room join failed", slog.Any("error", err))
			_ = conn.Close()
			c.transition(EventServerClosed)
			if failed := c.retryOrFail(ctx); failed != nil {
				return failed
			}
			continue
		}

		err = c.readLoop(conn)
		if c.isClosed() {
			c.transition(EventClientClosed)
			return nil
		}
		c.cfg.Logger.Warn("connection lost", slog.Any("error", err))
		c.transition(EventServerClosed)
		if failed := c.retryOrFail(ctx); failed != nil {
			return failed
		}
	}
}

// Close tears the connection down deliberately; Run returns without retrying.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Client) joinRoom(conn *websocket.Conn) error {
	payload, err := json.Marshal(joinPayload{SessionID: c.cfg.SessionID})
	if err != nil {
		return err
	}
	return conn.WriteJSON(Envelope{Type: "session:join", Payload: payload})
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.cfg.Logger.Debug("skipping malformed frame", slog.Any("error", err))
			continue
		}
		if c.cfg.OnMessage != nil {
			c.cfg.OnMessage(env)
		}
	}
}

// retryOrFail consumes one attempt from the budget; a non-nil return means
// the budget is spent and the client is parked in StateFailed.
func (c *Client) retryOrFail(ctx context.Context) error {
	state := c.transition(EventRetry)
	if state == StateFailed {
		c.cfg.Logger.Error("unable to reconnect, giving up",
			slog.Int("attempts", c.Attempts()))
		return fmt.Errorf("liveclient: unable to reconnect after %d attempts", c.Attempts())
	}
	select {
	case <-time.After(c.cfg.RetryBackoff):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) transition(ev Event) State {
	c.mu.Lock()
	c.state, c.attempts = Transition(c.state, ev, c.attempts, c.cfg.MaxAttempts)
	state := c.state
	c.mu.Unlock()
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(state)
	}
	return state
}
