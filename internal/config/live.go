// Package config provides configuration helpers for go-live commands.
package config

import (
	"fmt"
	"os"
)

// Default session configuration.
const (
	DefaultHost  = "generativelanguage.googleapis.com"
	DefaultModel = "models/gemini-2.0-flash-exp"
	DefaultVoice = "Puck"
)

// APIKey returns the API key from the LIVE_API_KEY env var.
// Falls back to GOOGLE_API_KEY for convenience.
func APIKey() string {
	if key := os.Getenv("LIVE_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("GOOGLE_API_KEY")
}

// APIKeyRequired returns the API key or exits with usage help.
func APIKeyRequired() string {
	key := APIKey()
	if key == "" {
		fmt.Fprintln(os.Stderr, "Error: LIVE_API_KEY environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: LIVE_API_KEY=... go run ./cmd/livechat")
		os.Exit(1)
	}
	return key
}

// Host returns the service host from LIVE_HOST or the default.
func Host() string {
	if host := os.Getenv("LIVE_HOST"); host != "" {
		return host
	}
	return DefaultHost
}

// Model returns the model identifier from LIVE_MODEL or the default.
func Model() string {
	if model := os.Getenv("LIVE_MODEL"); model != "" {
		return model
	}
	return DefaultModel
}

// Voice returns the voice name from LIVE_VOICE or the default.
func Voice() string {
	if voice := os.Getenv("LIVE_VOICE"); voice != "" {
		return voice
	}
	return DefaultVoice
}
