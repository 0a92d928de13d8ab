// Package transport carries sync protocol frames over a websocket with
// ping keepalive and bounded reconnect.
package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-gamecenter/internal/syncproto"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

var ErrNotConnected = errors.New("websocket not connected")

type MessageCallback func(msg syncproto.Message)

type StateCallback func(state State)

// HeaderProvider supplies handshake headers on every dial.
type HeaderProvider func() map[string]string

type Options struct {
	MaxReconnect   int
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	Headers        HeaderProvider
	Logger         *zap.Logger
}

// Client implements syncproto.Sender.
type Client struct {
	url  string
	opts Options

	connM sync.RWMutex
	conn  *websocket.Conn
	// generation increments per connection so stale loops exit quietly.
	generation int
	writeM     sync.Mutex

	stateM sync.RWMutex
	state  State

	cbM      sync.RWMutex
	msgCbs   []MessageCallback
	stateCbs []StateCallback

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func NewClient(url string, opts Options) *Client {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:        url,
		opts:       opts,
		state:      StateDisconnected,
		stopCh:     make(chan struct{}),
		rootCtx:    ctx,
		rootCancel: cancel,
	}
}

func (c *Client) State() State {
	c.stateM.RLock()
	defer c.stateM.RUnlock()
	return c.state
}

// Connect dials once. On failure a background reconnect is scheduled and
// the dial error is returned.
func (c *Client) Connect(ctx context.Context) error {
	switch c.State() {
	case StateConnected, StateConnecting, StateReconnecting:
		return nil
	}
	c.setState(StateConnecting)
	if err := c.dial(ctx); err != nil {
		c.opts.Logger.Warn("ws_connect_failed", zap.String("url", c.url), zap.Error(err))
		c.setState(StateFailed)
		c.scheduleReconnect()
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      c.headers(),
	})
	if err != nil {
		return err
	}

	c.connM.Lock()
	c.conn = conn
	c.generation++
	gen := c.generation
	c.connM.Unlock()

	c.setState(StateConnected)
	c.wg.Add(2)
	go c.listen(conn, gen)
	go c.pingLoop(conn, gen)
	return nil
}

// Send writes one frame. Writes are serialised.
func (c *Client) Send(ctx context.Context, msg syncproto.Message) error {
	c.connM.RLock()
	conn := c.conn
	c.connM.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeM.Lock()
	defer c.writeM.Unlock()
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(writeCtx, conn, msg)
}

func (c *Client) listen(conn *websocket.Conn, gen int) {
	defer c.wg.Done()
	for {
		var msg syncproto.Message
		if err := wsjson.Read(c.rootCtx, conn, &msg); err != nil {
			if c.stopping() {
				return
			}
			c.opts.Logger.Warn("ws_read_failed", zap.Error(err))
			c.drop(gen, "reconnect")
			return
		}
		if msg.Type == "" {
			c.opts.Logger.Debug("ws_frame_without_type")
			continue
		}
		c.cbM.RLock()
		cbs := append([]MessageCallback(nil), c.msgCbs...)
		c.cbM.RUnlock()
		for _, cb := range cbs {
			cb(msg)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, gen int) {
	defer c.wg.Done()
	t := time.NewTicker(c.opts.PingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			if !c.current(gen) {
				return
			}
			ctx, cancel := context.WithTimeout(c.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				if c.stopping() {
					return
				}
				c.opts.Logger.Warn("ws_ping_failed", zap.Error(err))
				c.drop(gen, "ping failure")
				return
			}
		}
	}
}

// drop closes the connection of generation gen and starts reconnecting.
// Only the first caller for a generation acts.
func (c *Client) drop(gen int, reason string) {
	c.connM.Lock()
	if c.generation != gen || c.conn == nil {
		c.connM.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	c.connM.Unlock()

	_ = conn.Close(websocket.StatusGoingAway, reason)
	c.setState(StateDisconnected)
	c.scheduleReconnect()
}

func (c *Client) current(gen int) bool {
	c.connM.RLock()
	defer c.connM.RUnlock()
	return c.generation == gen && c.conn != nil
}

func (c *Client) scheduleReconnect() {
	if c.opts.MaxReconnect <= 0 || c.stopping() {
		return
	}
	c.setState(StateReconnecting)
	go func() {
		for attempt := 1; attempt <= c.opts.MaxReconnect; attempt++ {
			select {
			case <-c.stopCh:
				return
			case <-time.After(c.backoff(attempt)):
			}
			if err := c.dial(c.rootCtx); err != nil {
				c.opts.Logger.Warn("ws_reconnect_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			c.opts.Logger.Info("ws_reconnected", zap.Int("attempt", attempt))
			return
		}
		c.setState(StateFailed)
	}()
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.ReconnectDelay
	for i := 1; i < attempt && d < 30*time.Second; i++ {
		d *= 2
	}
	return min(d, 30*time.Second)
}

func (c *Client) OnMessage(cb MessageCallback) {
	c.cbM.Lock()
	c.msgCbs = append(c.msgCbs, cb)
	c.cbM.Unlock()
}

func (c *Client) OnStateChange(cb StateCallback) {
	c.cbM.Lock()
	c.stateCbs = append(c.stateCbs, cb)
	c.cbM.Unlock()
}

func (c *Client) setState(s State) {
	c.stateM.Lock()
	c.state = s
	c.stateM.Unlock()

	c.cbM.RLock()
	cbs := append([]StateCallback(nil), c.stateCbs...)
	c.cbM.RUnlock()
	for _, cb := range cbs {
		cb(s)
	}
}

// Close stops reconnecting and waits for the read and ping loops.
func (c *Client) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	c.connM.Lock()
	conn := c.conn
	c.conn = nil
	c.connM.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		c.rootCancel()
		c.setState(StateDisconnected)
		return nil
	}
}

func (c *Client) stopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Client) headers() http.Header {
	hdr := http.Header{}
	if c.opts.Headers == nil {
		return hdr
	}
	for k, v := range c.opts.Headers() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
