package live

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/voxkit/go-live/pkg/wire"
)

const (
	// DefaultHost is the default service host.
	DefaultHost = "generativelanguage.googleapis.com"

	// bidiPath is the bidirectional streaming endpoint path.
	bidiPath = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
)

// Config holds the session configuration handed to Connect.
// The caller owns it; it must not be mutated while a connection is
// open (reconfiguration requires a reconnect).
type Config struct {
	// APIKey is the credential passed as a URL query parameter.
	APIKey string

	// Host overrides the service host. Empty means DefaultHost.
	// A host with an explicit scheme (e.g. "ws://127.0.0.1:9090")
	// is used verbatim, which test servers rely on.
	Host string

	// Model is the model identifier, e.g. "models/gemini-2.0-flash-exp".
	Model string

	// GenerationConfig selects response modalities and voice.
	GenerationConfig *wire.GenerationConfig

	// SystemInstruction is the optional system prompt.
	SystemInstruction string

	// Tools declares functions the model may call.
	Tools []wire.Tool
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Model == "" {
		return ErrMissingModel
	}
	return nil
}

// endpoint builds the connection URL with the credential attached.
func (c Config) endpoint() string {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	base := host
	if !strings.Contains(host, "://") {
		base = "wss://" + host + bidiPath
	}
	return fmt.Sprintf("%s?key=%s", base, url.QueryEscape(c.APIKey))
}

// setupMessage builds the mandatory first frame of a session.
func (c Config) setupMessage() wire.SetupMessage {
	setup := wire.Setup{
		Model:            c.Model,
		GenerationConfig: c.GenerationConfig,
		Tools:            c.Tools,
	}
	if c.SystemInstruction != "" {
		setup.SystemInstruction = &wire.Turn{
			Parts: []wire.Part{wire.TextPart(c.SystemInstruction)},
		}
	}
	return wire.SetupMessage{Setup: setup}
}

// redactKey strips the credential from a URL before it is logged.
func redactKey(raw string) string {
	if i := strings.Index(raw, "?key="); i >= 0 {
		return raw[:i] + "?key=..."
	}
	return raw
}
