package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voxkit/go-live/pkg/wire"
)

// Status represents the connection lifecycle state.
type Status int

const (
	// StatusIdle indicates no connection and no attempt in flight.
	StatusIdle Status = iota
	// StatusConnecting indicates a connection attempt is in flight.
	StatusConnecting
	// StatusOpen indicates an established session.
	StatusOpen
	// StatusClosing indicates a local teardown in progress.
	StatusClosing
)

// String returns a human-readable status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// connectAttempt is the single in-flight connection attempt. Concurrent
// Connect callers share one attempt and observe the same outcome.
type connectAttempt struct {
	done chan struct{}
	err  error
}

// Client is the connection state machine and inbound dispatcher.
type Client struct {
	cfg    Config
	dialer Dialer
	logger *slog.Logger
	h      *Handlers

	mu         sync.Mutex
	conn       Conn
	status     Status
	attempt    *connectAttempt
	localClose bool
}

// Option configures a Client.
type Option func(*Client)

// WithDialer overrides the default WebSocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithLogger sets the process logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the given configuration. Events are
// delivered through h; nil handler fields are ignored.
func NewClient(cfg Config, h *Handlers, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if h == nil {
		h = &Handlers{}
	}

	c := &Client{
		cfg:    cfg,
		dialer: &WSDialer{},
		logger: slog.Default(),
		h:      h,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Status returns the current lifecycle state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// IsOpen reports whether the session is established.
func (c *Client) IsOpen() bool {
	return c.Status() == StatusOpen
}

// Connect establishes the session. If a connection attempt is already
// in flight, the caller joins it and shares its outcome instead of
// starting a second one; if the session is already open, Connect
// returns nil immediately.
//
// On success the setup frame has been transmitted (it is always the
// first outbound frame) and the open event has fired. Every failure
// path clears the attempt, discards the transport, and reports the
// error both as the return value and through the error event.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.status == StatusOpen {
		c.mu.Unlock()
		return nil
	}
	if a := c.attempt; a != nil {
		c.mu.Unlock()
		<-a.done
		return a.err
	}
	a := &connectAttempt{done: make(chan struct{})}
	c.attempt = a
	c.status = StatusConnecting
	c.localClose = false
	c.mu.Unlock()

	err := c.connect(ctx)

	c.mu.Lock()
	c.attempt = nil
	if err != nil && c.status == StatusConnecting {
		c.status = StatusIdle
	}
	c.mu.Unlock()

	a.err = err
	close(a.done)

	if err != nil {
		c.h.emitError(err)
	}
	return err
}

// connect performs one connection attempt: dial, then transmit the
// setup frame before the open event becomes observable.
func (c *Client) connect(ctx context.Context) error {
	endpoint := c.cfg.endpoint()

	conn, err := c.dialer.Dial(ctx, endpoint)
	if err != nil {
		return &ConnectionError{Reason: "dial failed", Cause: err}
	}

	setupFrame, err := wire.Marshal(c.cfg.setupMessage())
	if err != nil {
		conn.Close(websocket.CloseInternalServerErr, "setup encode failed")
		return &ConnectionError{Reason: "encode setup", Cause: err}
	}
	if err := conn.WriteMessage(websocket.TextMessage, setupFrame); err != nil {
		conn.Close(websocket.CloseAbnormalClosure, "setup send failed")
		return &ConnectionError{Reason: "send setup", Cause: err}
	}

	c.mu.Lock()
	if c.localClose {
		// Disconnect raced the handshake; stay idle.
		c.mu.Unlock()
		conn.Close(websocket.CloseNormalClosure, "cancelled")
		return ErrConnectCancelled
	}
	c.conn = conn
	c.status = StatusOpen
	c.mu.Unlock()

	c.log("client.open", redactKey(endpoint))
	c.h.emitOpen()

	go c.readLoop(conn)
	return nil
}

// Disconnect tears the session down. It is idempotent: the first call
// closes the transport and synthesizes exactly one close notification
// (the transport's own close event is not guaranteed to fire after a
// local close request); subsequent calls are no-ops. Safe to call in
// any state, including mid-handshake.
func (c *Client) Disconnect() {
	c.mu.Lock()
	// StatusClosing means another caller is already tearing down and
	// will emit the close notification.
	if c.status == StatusClosing || (c.status == StatusIdle && c.conn == nil) {
		c.mu.Unlock()
		return
	}
	// Mark before teardown so a late transport close/error is
	// recognized as redundant and suppressed.
	c.localClose = true
	c.status = StatusClosing
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close(websocket.CloseNormalClosure, "client disconnect")
	}

	c.mu.Lock()
	c.status = StatusIdle
	c.mu.Unlock()

	c.log("client.close", "disconnected")
	c.h.emitClose(websocket.CloseNormalClosure, "client disconnect")
}

// Send wraps the given parts in a single user turn and transmits it as
// one frame. Parts with no payload are filtered out first; if nothing
// remains, or the session is not open, the call is a no-op beyond a
// logged warning.
func (c *Client) Send(parts []wire.Part, turnComplete bool) {
	if !c.IsOpen() {
		c.logger.Warn("send skipped: not connected")
		return
	}

	filtered := make([]wire.Part, 0, len(parts))
	for _, p := range parts {
		if !p.IsEmpty() {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		c.logger.Warn("send skipped: no non-empty parts")
		return
	}

	msg := wire.ClientContentMessage{
		ClientContent: wire.ClientContent{
			Turns: []wire.Turn{
				{Role: "user", Parts: filtered},
			},
			TurnComplete: turnComplete,
		},
	}
	c.sendJSON("client.send", msg)
}

// SendRealtimeInput streams media chunks (audio/image) to the model.
// No-op with a warning when the session is not open.
func (c *Client) SendRealtimeInput(chunks []wire.Blob) {
	if !c.IsOpen() {
		c.logger.Warn("realtime input skipped: not connected")
		return
	}
	msg := wire.RealtimeInputMessage{
		RealtimeInput: wire.RealtimeInput{MediaChunks: chunks},
	}
	c.sendJSON("client.realtimeInput", msg)
}

// SendToolResponse returns function results to the model.
// No-op with a warning when the session is not open.
func (c *Client) SendToolResponse(resp wire.ToolResponse) {
	if !c.IsOpen() {
		c.logger.Warn("tool response skipped: not connected")
		return
	}
	c.sendJSON("client.toolResponse", wire.ToolResponseMessage{ToolResponse: resp})
}

// sendJSON serializes and writes one frame. Serialization and write
// failures are logged and surfaced as error events; they never
// propagate to the caller.
func (c *Client) sendJSON(category string, v any) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		c.logger.Warn("frame dropped: no transport", "category", category)
		return
	}

	data, err := wire.Marshal(v)
	if err != nil {
		c.logger.Error("frame encode failed", "category", category, "error", err)
		c.h.emitError(err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Error("frame write failed", "category", category, "error", err)
		c.h.emitError(fmt.Errorf("live: write frame: %w", err))
		return
	}

	c.log(category, string(data))
}

// readLoop consumes frames until the transport fails or closes.
func (c *Client) readLoop(conn Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			c.handleTransportClose(conn, err)
			return
		}
		c.dispatch(frame)
	}
}

// handleTransportClose normalizes a read failure into close/error
// events, unless the closure was initiated locally (in which case
// Disconnect already notified subscribers).
func (c *Client) handleTransportClose(conn Conn, err error) {
	c.mu.Lock()
	if c.localClose || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.status = StatusIdle
	c.mu.Unlock()

	var ce *websocket.CloseError
	switch {
	case errors.As(err, &ce):
		c.log("server.close", ce.Text)
		c.h.emitClose(ce.Code, ce.Text)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.log("server.close", "connection lost")
		c.h.emitClose(websocket.CloseAbnormalClosure, "connection lost")
	default:
		c.logger.Error("transport read failed", "error", err)
		c.h.emitError(fmt.Errorf("live: read frame: %w", err))
		c.h.emitClose(websocket.CloseAbnormalClosure, err.Error())
	}
}

// dispatch parses and classifies one inbound frame and emits the
// corresponding typed events. Unparseable frames produce an error
// event and are discarded; unrecognized envelopes are logged, not
// errored.
func (c *Client) dispatch(frame []byte) {
	msg, err := wire.ParseServerMessage(frame)
	if err != nil {
		c.logger.Warn("dropping unparseable frame", "error", err)
		c.h.emitError(err)
		return
	}

	switch msg.Kind() {
	case wire.KindSetupComplete:
		c.log("server.setupComplete", "")
		c.h.emitSetupComplete()
	case wire.KindToolCall:
		c.log("server.toolCall", string(frame))
		c.h.emitToolCall(*msg.ToolCall)
	case wire.KindToolCallCancellation:
		c.log("server.toolCallCancellation", string(frame))
		c.h.emitToolCallCancellation(*msg.ToolCallCancellation)
	case wire.KindServerContent:
		c.handleServerContent(msg.ServerContent)
	default:
		c.log("server.unhandled", string(frame))
		c.logger.Debug("unhandled server message")
	}
}

// handleServerContent emits, in order: the raw content event, the
// interruption marker, the turn-complete marker, then one audio event
// per decodable inline audio part. A part that fails to decode is
// reported and skipped without aborting the rest.
func (c *Client) handleServerContent(sc *wire.ServerContent) {
	c.log("server.content", "")
	c.h.emitContent(*sc)

	if sc.Interrupted {
		c.h.emitInterrupted()
	}
	if sc.TurnComplete {
		c.h.emitTurnComplete()
	}

	for _, blob := range sc.AudioParts() {
		pcm, err := blob.Decode()
		if err != nil {
			c.logger.Warn("dropping undecodable audio part", "error", err)
			c.h.emitError(err)
			continue
		}
		c.h.emitAudio(pcm)
	}
}

// log records one streaming diagnostic entry.
func (c *Client) log(category, message string) {
	c.h.emitLog(LogEntry{
		Time:     time.Now(),
		Category: category,
		Message:  message,
	})
}
