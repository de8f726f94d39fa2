// Package bridge exposes a local WebSocket hub that mirrors a live
// session to monitoring clients (debug UIs, transcript viewers).
package bridge

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// MessageType identifies the type of monitor message.
type MessageType string

const (
	// Session → monitors
	TypeStatus     MessageType = "status"     // Connection lifecycle change
	TypeLog        MessageType = "log"        // Streaming diagnostic entry
	TypeTranscript MessageType = "transcript" // Text exchanged with the model
	TypeAudio      MessageType = "audio"      // Playback activity change
	TypeClose      MessageType = "close"      // Session closed
	TypeError      MessageType = "error"      // Session error

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the envelope for all monitor traffic.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"ts,omitempty"` // Unix milliseconds
	Data      any         `json:"data,omitempty"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(msgType MessageType, data any) *Message {
	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// Bytes returns the JSON-encoded message.
func (m *Message) Bytes() ([]byte, error) {
	data, err := sonic.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("bridge: marshal message: %w", err)
	}
	return data, nil
}

// ParseMessage decodes one monitor frame.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("bridge: parse message: %w", err)
	}
	return &msg, nil
}

// StatusData reports a connection lifecycle change.
type StatusData struct {
	Status string `json:"status"`
}

// LogData mirrors one streaming diagnostic entry.
type LogData struct {
	Category string `json:"category"`
	Message  string `json:"message,omitempty"`
}

// TranscriptData carries text exchanged with the model.
type TranscriptData struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

// AudioData reports playback starting or stopping.
type AudioData struct {
	Active bool `json:"active"`
}

// CloseData reports session closure.
type CloseData struct {
	Code   int    `json:"code"`
	Reason string `json:"reason,omitempty"`
}

// ErrorData reports a session error.
type ErrorData struct {
	Error string `json:"error"`
}
