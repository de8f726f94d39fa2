package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one established message-oriented socket connection.
// Implementations must support one concurrent reader and serialize
// writes internally.
type Conn interface {
	// ReadMessage blocks until the next frame arrives or the
	// connection fails.
	ReadMessage() (messageType int, data []byte, err error)

	// WriteMessage writes one frame.
	WriteMessage(messageType int, data []byte) error

	// Close requests closure with the given status code and releases
	// the socket. Safe to call more than once.
	Close(code int, reason string) error
}

// Dialer establishes connections to the service endpoint.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer dials over WebSocket using gorilla/websocket.
// The handshake timeout is a transport-level guard; the client itself
// imposes no connection-establishment timeout.
type WSDialer struct {
	// HandshakeTimeout bounds the WebSocket opening handshake.
	// Zero means 10 seconds.
	HandshakeTimeout time.Duration
}

// Dial implements Dialer.
func (d *WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
	}

	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", redactKey(url), err)
	}

	return &wsConn{ws: ws}, nil
}

// wsConn adapts *websocket.Conn to the Conn interface.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex // serializes writes
}

func (c *wsConn) ReadMessage() (int, []byte, error) {
	return c.ws.ReadMessage()
}

func (c *wsConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(messageType, data)
}

func (c *wsConn) Close(code int, reason string) error {
	c.mu.Lock()
	// Best-effort close frame; the peer is not guaranteed to see it.
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.ws.Close()
}
