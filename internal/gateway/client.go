// ABOUTME: Correlation-based RPC client multiplexing calls over one gateway connection.
// ABOUTME: Tracks pending calls by id with per-call timeouts and fail-all on disconnect.

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Default timeouts, matching the gateway's documented bounds.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Options configures a Client.
type Options struct {
	URL            string
	Token          string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	// Dialer overrides the default WebSocket dialer. Used by tests.
	Dialer Dialer
}

// request is the wire format for an outbound call frame.
type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

// responseFrame is the wire format for an inbound frame. Frames without a
// numeric id are notifications and are never correlated.
type responseFrame struct {
	ID     *uint64          `json:"id"`
	Result json.RawMessage  `json:"result"`
	Error  *remoteErrorBody `json:"error"`
}

type remoteErrorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type callResult struct {
	result json.RawMessage
	err    error
}

// pendingCall is one outstanding correlated request. It lives in the
// client's pending map from issuance until its response arrives, its
// timeout fires, or the connection drops, whichever happens first.
type pendingCall struct {
	done  chan callResult // buffered, completed exactly once
	timer *time.Timer
}

// Client is the RPC transport to the OpenClaw gateway. Many calls may be in
// flight concurrently over the single connection; each caller resumes only
// when its own correlated response, timeout, or a disconnect occurs.
type Client struct {
	opts   Options
	dialer Dialer
	logger *slog.Logger

	mu         sync.Mutex
	conn       Conn
	connecting chan struct{} // non-nil while a connect attempt is in flight
	connectErr error         // outcome of the last finished connect attempt
	nextID     uint64
	pending    map[uint64]*pendingCall
}

// NewClient creates a gateway client. The connection is opened lazily on the
// first call.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &WebSocketDialer{URL: opts.URL, Token: opts.Token}
	}

	return &Client{
		opts:    opts,
		dialer:  dialer,
		logger:  logger.With("component", "gateway"),
		pending: make(map[uint64]*pendingCall),
	}
}

// Connected reports whether the connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect ensures the connection is open. Concurrent connect requests share
// a single in-flight attempt rather than opening duplicate connections.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}

	if ch := c.connecting; ch != nil {
		// Another connect is in flight; await its outcome.
		c.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.conn != nil {
			return nil
		}
		return c.connectErr
	}

	ch := make(chan struct{})
	c.connecting = ch
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	conn, err := c.dialer.Dial(dialCtx, c.handleFrame, c.handleClose)
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s", ErrConnectTimeout, c.opts.ConnectTimeout)
	}

	c.mu.Lock()
	c.connecting = nil // clear the in-flight marker so a later attempt can retry
	if err != nil {
		c.connectErr = err
	} else {
		c.conn = conn
		c.connectErr = nil
		c.logger.Info("gateway connected", "url", c.opts.URL)
	}
	c.mu.Unlock()
	close(ch)

	return err
}

// Close disconnects explicitly. Every pending call fails with ErrConnClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	c.handleClose(nil)
	return err
}

// Call issues a correlated request and blocks until the matching response
// frame arrives, the request timeout fires, or the connection drops.
//
// There is no early retraction: a caller abandoning the call via ctx leaves
// the entry in the pending set until one of those three outcomes removes it.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	if params == nil {
		params = map[string]any{}
	}

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", method, ErrConnClosed)
	}
	c.nextID++
	id := c.nextID
	pc := &pendingCall{done: make(chan callResult, 1)}
	timeout := c.opts.RequestTimeout
	pc.timer = time.AfterFunc(timeout, func() { c.expire(id, method, timeout) })
	c.pending[id] = pc
	c.mu.Unlock()

	frame, err := json.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		c.remove(id)
		return nil, fmt.Errorf("encoding %s request: %w", method, err)
	}

	if err := conn.Send(frame); err != nil {
		c.remove(id)
		return nil, fmt.Errorf("sending %s request: %w", method, err)
	}

	c.logger.Debug("call issued", "method", method, "id", id)

	select {
	case res := <-pc.done:
		return res.result, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// remove drops a pending call without completing it, for local send failures.
func (c *Client) remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pc, ok := c.pending[id]; ok {
		pc.timer.Stop()
		delete(c.pending, id)
	}
}

// expire fires when a call's deadline passes with no response. The call is
// removed from the pending set; a response racing in later finds an unknown
// id and is ignored.
func (c *Client) expire(id uint64, method string, timeout time.Duration) {
	c.mu.Lock()
	pc, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	c.logger.Warn("call timed out", "method", method, "id", id, "timeout", timeout)
	pc.done <- callResult{err: fmt.Errorf("%s: %w after %s", method, ErrCallTimeout, timeout)}
}

// handleFrame routes one inbound frame to its pending call. Frames that are
// not valid JSON objects, lack a numeric id, or carry an unknown id are
// asynchronous events or stale responses and are dropped.
func (c *Client) handleFrame(data []byte) {
	var frame responseFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}
	if frame.ID == nil {
		return
	}

	c.mu.Lock()
	pc, ok := c.pending[*frame.ID]
	if ok {
		delete(c.pending, *frame.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("dropping frame for unknown call id", "id", *frame.ID)
		return
	}

	pc.timer.Stop()
	if frame.Error != nil {
		pc.done <- callResult{err: &RemoteError{Code: frame.Error.Code, Message: frame.Error.Message}}
		return
	}
	pc.done <- callResult{result: frame.Result}
}

// handleClose transitions to disconnected and fails every pending call with
// a connection-closed error, leaving the pending set empty.
func (c *Client) handleClose(cause error) {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	failed := c.pending
	c.pending = make(map[uint64]*pendingCall)
	c.mu.Unlock()

	if len(failed) > 0 || cause != nil {
		c.logger.Info("gateway disconnected", "pending_failed", len(failed), "cause", cause)
	}
	for _, pc := range failed {
		pc.timer.Stop()
		pc.done <- callResult{err: ErrConnClosed}
	}
}
