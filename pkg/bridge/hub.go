package bridge

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// MonitorConnection represents one connected monitoring client.
type MonitorConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	mu sync.Mutex
}

// Send writes one message to the monitor.
func (m *MonitorConnection) Send(msg *Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans session events out to every connected monitor. Monitors
// are read-only observers; the only inbound frame the hub answers is
// a ping.
type Hub struct {
	logger *slog.Logger

	mu       sync.RWMutex
	monitors map[string]*MonitorConnection

	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
}

// NewHub creates an empty monitor hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:   logger,
		monitors: make(map[string]*MonitorConnection),
	}
}

// RegisterRoutes registers the monitor WebSocket route on a Fiber app.
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/monitor", websocket.New(h.handleMonitor))
}

// RegisterAPIRoutes registers the HTTP status routes.
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	api.Get("/monitors", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"monitors": h.MonitorInfos(),
			"count":    h.MonitorCount(),
		})
	})
	api.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}

// handleMonitor owns one monitor connection for its lifetime.
func (h *Hub) handleMonitor(c *websocket.Conn) {
	monitor := &MonitorConnection{
		ID:        uuid.NewString(),
		Conn:      c,
		Connected: time.Now(),
	}

	h.mu.Lock()
	h.monitors[monitor.ID] = monitor
	count := len(h.monitors)
	h.mu.Unlock()
	h.logger.Debug("monitor connected", "id", monitor.ID, "total", count)

	defer func() {
		h.mu.Lock()
		delete(h.monitors, monitor.ID)
		count := len(h.monitors)
		h.mu.Unlock()
		h.logger.Debug("monitor disconnected", "id", monitor.ID, "total", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		h.messagesReceived.Add(1)

		msg, err := ParseMessage(data)
		if err != nil {
			h.logger.Debug("dropping unparseable monitor frame", "error", err)
			continue
		}
		if msg.Type == TypePing {
			h.messagesSent.Add(1)
			monitor.Send(NewMessage(TypePong, nil))
		}
	}
}

// Broadcast sends one message to every connected monitor. A failed
// write is logged and does not stop delivery to the rest.
func (h *Hub) Broadcast(msg *Message) {
	h.mu.RLock()
	monitors := make([]*MonitorConnection, 0, len(h.monitors))
	for _, m := range h.monitors {
		monitors = append(monitors, m)
	}
	h.mu.RUnlock()

	for _, m := range monitors {
		h.messagesSent.Add(1)
		if err := m.Send(msg); err != nil {
			h.logger.Debug("monitor send failed", "id", m.ID, "error", err)
		}
	}
}

// PublishStatus mirrors a connection lifecycle change.
func (h *Hub) PublishStatus(status string) {
	h.Broadcast(NewMessage(TypeStatus, StatusData{Status: status}))
}

// PublishLog mirrors one streaming diagnostic entry.
func (h *Hub) PublishLog(category, message string) {
	h.Broadcast(NewMessage(TypeLog, LogData{Category: category, Message: message}))
}

// PublishTranscript mirrors text exchanged with the model.
func (h *Hub) PublishTranscript(role, text string) {
	h.Broadcast(NewMessage(TypeTranscript, TranscriptData{Role: role, Text: text}))
}

// PublishAudioActivity mirrors playback starting or stopping.
func (h *Hub) PublishAudioActivity(active bool) {
	h.Broadcast(NewMessage(TypeAudio, AudioData{Active: active}))
}

// PublishClose mirrors session closure.
func (h *Hub) PublishClose(code int, reason string) {
	h.Broadcast(NewMessage(TypeClose, CloseData{Code: code, Reason: reason}))
}

// PublishError mirrors a session error.
func (h *Hub) PublishError(err error) {
	h.Broadcast(NewMessage(TypeError, ErrorData{Error: err.Error()}))
}

// MonitorCount returns the number of connected monitors.
func (h *Hub) MonitorCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.monitors)
}

// MonitorInfo describes one connected monitor.
type MonitorInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
}

// MonitorInfos returns info about every connected monitor.
func (h *Hub) MonitorInfos() []MonitorInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]MonitorInfo, 0, len(h.monitors))
	for _, m := range h.monitors {
		infos = append(infos, MonitorInfo{ID: m.ID, Connected: m.Connected})
	}
	return infos
}

// Stats contains hub statistics.
type Stats struct {
	MonitorCount     int    `json:"monitor_count"`
	MessagesSent     uint64 `json:"messages_sent"`
	MessagesReceived uint64 `json:"messages_received"`
}

// GetStats returns hub statistics.
func (h *Hub) GetStats() Stats {
	return Stats{
		MonitorCount:     h.MonitorCount(),
		MessagesSent:     h.messagesSent.Load(),
		MessagesReceived: h.messagesReceived.Load(),
	}
}
