package wire

import (
	"encoding/base64"
	"fmt"

	"github.com/bytedance/sonic"
)

// EncodeData encodes raw bytes into the text-safe transport encoding
// used to embed binary audio/image payloads inside JSON frames.
func EncodeData(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeData decodes a text-safe payload back into raw bytes.
func DecodeData(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("wire: decode data: %w", err)
	}
	return data, nil
}

// Marshal serializes an outbound frame to its wire form.
func Marshal(v any) ([]byte, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal frame: %w", err)
	}
	return data, nil
}

// ParseServerMessage parses one inbound frame into a tagged envelope.
// Transport frames may arrive as text or binary; either way the bytes
// are UTF-8 JSON.
func ParseServerMessage(frame []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := sonic.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("wire: parse server message: %w", err)
	}
	return &msg, nil
}
