// ABOUTME: Tests for the correlated RPC client over a fake connection.
// ABOUTME: Covers timeouts, disconnect fan-out, out-of-order responses, and frame filtering.

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records sent frames so tests can correlate replies.
type fakeConn struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("send on closed conn")
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) sentFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// fakeDialer hands out fakeConns and captures the client's callbacks so
// tests can inject inbound frames and close events.
type fakeDialer struct {
	mu      sync.Mutex
	dials   int
	delay   time.Duration
	dialErr error
	conn    *fakeConn
	onFrame func([]byte)
	onClose func(error)
}

func (d *fakeDialer) Dial(ctx context.Context, onFrame func([]byte), onClose func(error)) (Conn, error) {
	d.mu.Lock()
	d.dials++
	delay := d.delay
	dialErr := d.dialErr
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if dialErr != nil {
		return nil, dialErr
	}

	c := &fakeConn{}
	d.mu.Lock()
	d.conn = c
	d.onFrame = onFrame
	d.onClose = onClose
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) inject(frame string) {
	d.mu.Lock()
	onFrame := d.onFrame
	d.mu.Unlock()
	onFrame([]byte(frame))
}

func (d *fakeDialer) dropConnection() {
	d.mu.Lock()
	onClose := d.onClose
	d.mu.Unlock()
	onClose(errors.New("connection reset"))
}

func newTestClient(t *testing.T, opts Options, dialer *fakeDialer) *Client {
	t.Helper()
	opts.Dialer = dialer
	return NewClient(opts, slog.Default())
}

// waitForFrames polls until the conn has sent at least n frames.
func waitForFrames(t *testing.T, conn *fakeConn, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		frames := conn.sentFrames()
		if len(frames) >= n {
			return frames
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sent frames", n)
	return nil
}

func frameID(t *testing.T, frame []byte) uint64 {
	t.Helper()
	var req request
	require.NoError(t, json.Unmarshal(frame, &req))
	return req.ID
}

func (c *Client) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func TestCallSuccess(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(t, Options{}, dialer)

	type result struct {
		raw json.RawMessage
		err error
	}
	done := make(chan result, 1)
	go func() {
		raw, err := client.Call(context.Background(), "config.get", nil)
		done <- result{raw, err}
	}()

	frames := waitForFrames(t, waitForConn(t, dialer), 1)
	id := frameID(t, frames[0])
	dialer.inject(fmt.Sprintf(`{"id": %d, "result": {"ok": true}}`, id))

	res := <-done
	require.NoError(t, res.err)
	assert.JSONEq(t, `{"ok": true}`, string(res.raw))
	assert.Equal(t, 0, client.pendingCount())
}

func waitForConn(t *testing.T, d *fakeDialer) *fakeConn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d.mu.Lock()
		conn := d.conn
		d.mu.Unlock()
		if conn != nil {
			return conn
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for connection")
	return nil
}

func TestCallRemoteError(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(t, Options{}, dialer)

	done := make(chan error, 1)
	go func() {
		_, err := client.Call(context.Background(), "config.patch", map[string]any{"patch": map[string]any{}})
		done <- err
	}()

	frames := waitForFrames(t, waitForConn(t, dialer), 1)
	id := frameID(t, frames[0])
	dialer.inject(fmt.Sprintf(`{"id": %d, "error": {"message": "config hash mismatch", "code": 409}}`, id))

	err := <-done
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, 409, remoteErr.Code)
	assert.Equal(t, "config hash mismatch", remoteErr.Message)
}

func TestCallTimeout(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(t, Options{RequestTimeout: 30 * time.Millisecond}, dialer)

	start := time.Now()
	_, err := client.Call(context.Background(), "config.get", nil)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrCallTimeout)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Equal(t, 0, client.pendingCount(), "expired call must leave the pending set")

	// A late response for the expired id is an unknown id and must be ignored.
	dialer.inject(`{"id": 1, "result": {"late": true}}`)
	assert.Equal(t, 0, client.pendingCount())
}

func TestTimeoutErrorDistinguishable(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(t, Options{RequestTimeout: 20 * time.Millisecond}, dialer)

	_, err := client.Call(context.Background(), "config.get", nil)
	require.ErrorIs(t, err, ErrCallTimeout)
	assert.NotErrorIs(t, err, ErrConnClosed)
	var remoteErr *RemoteError
	assert.False(t, errors.As(err, &remoteErr))
}

func TestOutOfOrderResponses(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(t, Options{}, dialer)

	type result struct {
		raw json.RawMessage
		err error
	}
	first := make(chan result, 1)
	second := make(chan result, 1)

	go func() {
		raw, err := client.Call(context.Background(), "chat.history", map[string]any{"key": "a"})
		first <- result{raw, err}
	}()
	conn := waitForConn(t, dialer)
	waitForFrames(t, conn, 1)

	go func() {
		raw, err := client.Call(context.Background(), "chat.history", map[string]any{"key": "b"})
		second <- result{raw, err}
	}()
	frames := waitForFrames(t, conn, 2)

	idA := frameID(t, frames[0])
	idB := frameID(t, frames[1])
	assert.Greater(t, idB, idA, "correlation ids must be monotonically increasing")

	// Respond to the second call first.
	dialer.inject(fmt.Sprintf(`{"id": %d, "result": {"call": "b"}}`, idB))
	dialer.inject(fmt.Sprintf(`{"id": %d, "result": {"call": "a"}}`, idA))

	resB := <-second
	require.NoError(t, resB.err)
	assert.JSONEq(t, `{"call": "b"}`, string(resB.raw))

	resA := <-first
	require.NoError(t, resA.err)
	assert.JSONEq(t, `{"call": "a"}`, string(resA.raw))
}

func TestDisconnectFailsAllPending(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(t, Options{}, dialer)

	const calls = 5
	errs := make(chan error, calls)
	conn := waitForConnAfterFirstCall(t, client, dialer, errs)
	waitForFrames(t, conn, calls)

	dialer.dropConnection()

	for i := 0; i < calls; i++ {
		require.ErrorIs(t, <-errs, ErrConnClosed)
	}
	assert.Equal(t, 0, client.pendingCount())
	assert.False(t, client.Connected())
}

// waitForConnAfterFirstCall launches five concurrent calls and returns the
// established fake connection once the first call has dialed.
func waitForConnAfterFirstCall(t *testing.T, client *Client, dialer *fakeDialer, errs chan error) *fakeConn {
	t.Helper()
	for i := 0; i < cap(errs); i++ {
		go func() {
			_, err := client.Call(context.Background(), "sessions.list", nil)
			errs <- err
		}()
	}
	return waitForConn(t, dialer)
}

func TestExplicitCloseFailsPending(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(t, Options{}, dialer)

	done := make(chan error, 1)
	go func() {
		_, err := client.Call(context.Background(), "config.get", nil)
		done <- err
	}()
	conn := waitForConn(t, dialer)
	waitForFrames(t, conn, 1)

	require.NoError(t, client.Close())
	require.ErrorIs(t, <-done, ErrConnClosed)
}

func TestIgnoresNonResponseFrames(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(t, Options{}, dialer)

	done := make(chan error, 1)
	go func() {
		_, err := client.Call(context.Background(), "config.get", nil)
		done <- err
	}()
	conn := waitForConn(t, dialer)
	frames := waitForFrames(t, conn, 1)
	id := frameID(t, frames[0])

	// None of these may complete or disturb the pending call.
	dialer.inject(`not json at all`)
	dialer.inject(`{"method": "agent.event", "params": {}}`)
	dialer.inject(`{"id": "string-id", "result": {}}`)
	dialer.inject(`{"id": 999999, "result": {}}`)
	dialer.inject(`[1, 2, 3]`)

	assert.Equal(t, 1, client.pendingCount())

	dialer.inject(fmt.Sprintf(`{"id": %d, "result": {"still": "alive"}}`, id))
	require.NoError(t, <-done)
}

func TestConnectTimeout(t *testing.T) {
	dialer := &fakeDialer{delay: 200 * time.Millisecond}
	client := newTestClient(t, Options{ConnectTimeout: 20 * time.Millisecond}, dialer)

	err := client.Connect(context.Background())
	require.ErrorIs(t, err, ErrConnectTimeout)

	// The failed attempt must clear the in-flight marker so a retry works.
	dialer.mu.Lock()
	dialer.delay = 0
	dialer.mu.Unlock()

	require.NoError(t, client.Connect(context.Background()))
	assert.True(t, client.Connected())
	assert.Equal(t, 2, dialer.dialCount())
}

func TestConcurrentConnectShared(t *testing.T) {
	dialer := &fakeDialer{delay: 50 * time.Millisecond}
	client := newTestClient(t, Options{ConnectTimeout: time.Second}, dialer)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = client.Connect(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, dialer.dialCount(), "concurrent connects must share one attempt")
}

func TestConnectIsNoOpWhenOpen(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(t, Options{}, dialer)

	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, client.Connect(context.Background()))
	assert.Equal(t, 1, dialer.dialCount())
}

func TestReconnectAfterDisconnect(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(t, Options{}, dialer)

	require.NoError(t, client.Connect(context.Background()))
	dialer.dropConnection()
	assert.False(t, client.Connected())

	require.NoError(t, client.Connect(context.Background()))
	assert.True(t, client.Connected())
	assert.Equal(t, 2, dialer.dialCount())
}
