// Package live implements a bidirectional streaming client for a
// multimodal realtime generative AI service reachable over a
// persistent WebSocket connection.
//
// The client owns the connection lifecycle (connect, setup handshake,
// open, close, error), classifies inbound frames into typed events
// delivered through Handlers, and exposes send primitives for text
// content, realtime media chunks, and tool responses. It never retries
// on its own; retry policy belongs to the caller.
package live
