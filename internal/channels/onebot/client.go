// Package onebot connects to an OneBot v11 endpoint over a websocket.
// Inbound pushes and API responses share the one connection; responses are
// matched to calls by echo token.
package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"candybear/internal/channels"
	"candybear/internal/config"
	"candybear/pkg/retrylimit"
)

// apiTimeout bounds one echo-correlated API call.
const apiTimeout = 10 * time.Second

type Client struct {
	url string
	cfg *config.Config

	mu   sync.Mutex // guards conn and writes to it
	conn *websocket.Conn

	pendingMu sync.Mutex
	pending   map[string]chan json.RawMessage

	limiter *retrylimit.AdaptiveLimiter
	echoSeq atomic.Int64
}

func New(cfg *config.Config) *Client {
	return &Client{
		url:     cfg.OneBotWSURL,
		cfg:     cfg,
		pending: make(map[string]chan json.RawMessage),
		// outbound pacing: start at 2 msg/s, back off hard on errors
		limiter: retrylimit.NewAdaptiveLimiter(2, 1, 5, 1, 0.5),
	}
}

func (c *Client) Name() string { return "onebot" }

// Run dials the endpoint and pumps events until ctx is cancelled. A broken
// connection is redialed with backoff; Run only returns on cancellation.
func (c *Client) Run(ctx context.Context, events chan<- channels.Event) error {
	for {
		if err := c.dial(ctx); err != nil {
			return fmt.Errorf("onebot: dial %s: %w", c.url, err)
		}
		log.Printf("[INFO] onebot: connected url=%s", c.url)

		err := c.readLoop(ctx, events)
		c.closeConn()
		c.failPending()
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("[WARN] onebot: connection lost err=%v, reconnecting", err)
	}
}

func (c *Client) dial(ctx context.Context) error {
	cfg := retrylimit.DefaultRetryConfig()
	cfg.InitialDelay = 5 * time.Second
	cfg.MaxDelay = time.Minute
	cfg.OnRetry = func(attempt int, err error) {
		log.Printf("[WARN] onebot: dial attempt=%d err=%v", attempt, err)
	}
	return retrylimit.WithRetryConfig(ctx, func() error {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		return nil
	}, nil, cfg)
}

func (c *Client) readLoop(ctx context.Context, events chan<- channels.Event) error {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return fmt.Errorf("connection closed")
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev wireEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("[WARN] onebot: bad frame err=%v", err)
			continue
		}
		// API responses carry the echo we sent.
		if ev.Echo != "" {
			c.resolve(ev.Echo, ev.Data)
			continue
		}
		parsed, ok := parseEvent(ev)
		if !ok {
			continue
		}
		if !c.allowed(parsed) {
			continue
		}
		select {
		case events <- parsed:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Client) allowed(ev channels.Event) bool {
	if ev.Private {
		return c.cfg.PrivateAllowed(ev.UserID)
	}
	return c.cfg.GroupAllowed(ev.GroupID)
}

func (c *Client) SendGroup(ctx context.Context, groupID, text string) error {
	req, err := sendGroupMsg(groupID, text)
	if err != nil {
		return err
	}
	return c.call(ctx, req)
}

func (c *Client) SendPrivate(ctx context.Context, userID, text string) error {
	req, err := sendPrivateMsg(userID, text)
	if err != nil {
		return err
	}
	return c.call(ctx, req)
}

// call performs one echo-correlated API request, paced by the adaptive
// limiter.
func (c *Client) call(ctx context.Context, req apiRequest) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req.Echo = fmt.Sprintf("req_%d_%d", time.Now().UnixMilli(), c.echoSeq.Add(1))

	ch := make(chan json.RawMessage, 1)
	c.pendingMu.Lock()
	c.pending[req.Echo] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, req.Echo)
		c.pendingMu.Unlock()
	}()

	if err := c.write(req); err != nil {
		c.limiter.RateLimited()
		return err
	}

	timer := time.NewTimer(apiTimeout)
	defer timer.Stop()
	select {
	case <-ch:
		c.limiter.Success()
		return nil
	case <-timer.C:
		c.limiter.RateLimited()
		return fmt.Errorf("onebot: %s timed out echo=%s", req.Action, req.Echo)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("onebot: not connected")
	}
	return c.conn.WriteJSON(v)
}

func (c *Client) resolve(echo string, data json.RawMessage) {
	c.pendingMu.Lock()
	ch := c.pending[echo]
	delete(c.pending, echo)
	c.pendingMu.Unlock()
	if ch != nil {
		ch <- data
	}
}

// failPending drops every in-flight call after a disconnect; their callers
// time out instead of hanging on a dead connection.
func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for echo := range c.pending {
		delete(c.pending, echo)
	}
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
