// ABOUTME: Narrow connection capabilities for the gateway transport.
// ABOUTME: WebSocket implementation over gorilla/websocket with a frame read loop.

package gateway

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is the narrow surface the client needs from an open connection.
// Inbound frames and the close event are delivered through the callbacks
// passed to Dial.
type Conn interface {
	Send(payload []byte) error
	Close() error
}

// Dialer opens a connection and wires frame/close delivery.
type Dialer interface {
	Dial(ctx context.Context, onFrame func([]byte), onClose func(error)) (Conn, error)
}

// WebSocketDialer dials the OpenClaw gateway WebSocket endpoint.
type WebSocketDialer struct {
	URL   string
	Token string
}

// Dial opens the WebSocket and starts a read loop that feeds onFrame with
// each text frame and calls onClose once when the connection drops.
func (d *WebSocketDialer) Dial(ctx context.Context, onFrame func([]byte), onClose func(error)) (Conn, error) {
	header := http.Header{}
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, d.URL, header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c := &wsConn{ws: ws}
	go c.readLoop(onFrame, onClose)
	return c, nil
}

// wsConn wraps a gorilla websocket connection. Writes are serialized because
// gorilla/websocket allows only one concurrent writer.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

func (c *wsConn) readLoop(onFrame func([]byte), onClose func(error)) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			onClose(err)
			return
		}
		onFrame(data)
	}
}
