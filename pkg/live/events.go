package live

import (
	"time"

	"github.com/voxkit/go-live/pkg/wire"
)

// LogEntry is one diagnostic entry of the streaming session log.
// Entries are append-only and advisory; they are not authoritative
// connection state.
type LogEntry struct {
	// Time is when the entry was recorded.
	Time time.Time

	// Category tags the entry, e.g. "client.send" or "server.content".
	Category string

	// Message is the entry payload.
	Message string
}

// Handlers groups the client's event callbacks, one per event kind.
// Nil fields are ignored. All callbacks are invoked from the client's
// read loop (or the calling goroutine for connect/disconnect events),
// so they must not block for long.
type Handlers struct {
	// OnOpen fires once the session handshake completed.
	OnOpen func()

	// OnClose fires exactly once per session teardown, whether the
	// closure was local or remote.
	OnClose func(code int, reason string)

	// OnError receives every error kind: connection, transmission,
	// decode, and playback-adjacent errors. Severity is left to the
	// subscriber's judgment.
	OnError func(err error)

	// OnSetupComplete fires when the service acknowledges the setup frame.
	OnSetupComplete func()

	// OnContent receives every server content envelope, including
	// text parts. Consumers extract text from here.
	OnContent func(content wire.ServerContent)

	// OnAudio receives each decoded inline audio part, in turn order.
	OnAudio func(pcm []byte)

	// OnInterrupted fires when the model's turn was interrupted.
	OnInterrupted func()

	// OnTurnComplete fires when the model finished its turn.
	OnTurnComplete func()

	// OnToolCall receives function-call requests.
	OnToolCall func(call wire.ToolCall)

	// OnToolCallCancellation receives cancelled call ids.
	OnToolCallCancellation func(cancel wire.ToolCallCancellation)

	// OnLog receives streaming diagnostic entries.
	OnLog func(entry LogEntry)
}

func (h *Handlers) emitOpen() {
	if h.OnOpen != nil {
		h.OnOpen()
	}
}

func (h *Handlers) emitClose(code int, reason string) {
	if h.OnClose != nil {
		h.OnClose(code, reason)
	}
}

func (h *Handlers) emitError(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

func (h *Handlers) emitSetupComplete() {
	if h.OnSetupComplete != nil {
		h.OnSetupComplete()
	}
}

func (h *Handlers) emitContent(content wire.ServerContent) {
	if h.OnContent != nil {
		h.OnContent(content)
	}
}

func (h *Handlers) emitAudio(pcm []byte) {
	if h.OnAudio != nil {
		h.OnAudio(pcm)
	}
}

func (h *Handlers) emitInterrupted() {
	if h.OnInterrupted != nil {
		h.OnInterrupted()
	}
}

func (h *Handlers) emitTurnComplete() {
	if h.OnTurnComplete != nil {
		h.OnTurnComplete()
	}
}

func (h *Handlers) emitToolCall(call wire.ToolCall) {
	if h.OnToolCall != nil {
		h.OnToolCall(call)
	}
}

func (h *Handlers) emitToolCallCancellation(cancel wire.ToolCallCancellation) {
	if h.OnToolCallCancellation != nil {
		h.OnToolCallCancellation(cancel)
	}
}

func (h *Handlers) emitLog(entry LogEntry) {
	if h.OnLog != nil {
		h.OnLog(entry)
	}
}
