package wire

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	allBytes := make([]byte, 256)
	for i := range allBytes {
		allBytes[i] = byte(i)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: []byte{}},
		{name: "single byte", data: []byte{0x42}},
		{name: "pcm-like", data: []byte{0x00, 0x01, 0xFF, 0xFE, 0x80, 0x7F}},
		{name: "all byte values", data: allBytes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeData(tt.data)
			decoded, err := DecodeData(encoded)
			if err != nil {
				t.Fatalf("DecodeData() error = %v", err)
			}
			if !bytes.Equal(decoded, tt.data) {
				t.Errorf("round trip mismatch: got %v, want %v", decoded, tt.data)
			}
		})
	}
}

func TestDecodeDataInvalid(t *testing.T) {
	if _, err := DecodeData("not!!valid!!base64"); err == nil {
		t.Error("DecodeData should fail on malformed input")
	}
}

func TestMarshalSetupMessage(t *testing.T) {
	msg := SetupMessage{Setup: Setup{Model: "models/test"}}

	data, err := Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := `{"setup":{"model":"models/test"}}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestParseServerMessageMalformed(t *testing.T) {
	if _, err := ParseServerMessage([]byte("{not json")); err == nil {
		t.Error("ParseServerMessage should fail on malformed input")
	}
}
