// Package wire defines the JSON frame types exchanged with the
// multimodal live service and the classifier over inbound envelopes.
package wire

import "strings"

// =============================================================================
// Content parts
// =============================================================================

// Part is one unit of content within a turn. Exactly one field is set.
// Ordering of parts within a turn is significant.
type Part struct {
	Text                string               `json:"text,omitempty"`
	InlineData          *Blob                `json:"inlineData,omitempty"`
	FunctionCall        *FunctionCall        `json:"functionCall,omitempty"`
	FunctionResponse    *FunctionResponse    `json:"functionResponse,omitempty"`
	ExecutableCode      *ExecutableCode      `json:"executableCode,omitempty"`
	CodeExecutionResult *CodeExecutionResult `json:"codeExecutionResult,omitempty"`
}

// IsEmpty reports whether the part carries no payload at all.
// Empty parts are filtered out before transmission.
func (p Part) IsEmpty() bool {
	return p.Text == "" &&
		p.InlineData == nil &&
		p.FunctionCall == nil &&
		p.FunctionResponse == nil &&
		p.ExecutableCode == nil &&
		p.CodeExecutionResult == nil
}

// TextPart creates a text content part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// DataPart creates an inline binary content part with the given MIME type.
func DataPart(mimeType string, data []byte) Part {
	return Part{InlineData: &Blob{MIMEType: mimeType, Data: EncodeData(data)}}
}

// Blob is an inline binary payload tagged with a MIME type.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// IsAudio reports whether the blob's MIME type indicates audio
// (e.g. "audio/pcm" or "audio/pcm;rate=24000").
func (b *Blob) IsAudio() bool {
	return strings.HasPrefix(b.MIMEType, "audio/")
}

// Decode returns the raw bytes of the blob.
func (b *Blob) Decode() ([]byte, error) {
	return DecodeData(b.Data)
}

// FunctionCall is a request from the model to invoke a function.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name,omitempty"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse carries a function result back to the model.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name,omitempty"`
	Response map[string]any `json:"response,omitempty"`
}

// ExecutableCode is code the model proposes to run.
type ExecutableCode struct {
	Language string `json:"language,omitempty"`
	Code     string `json:"code,omitempty"`
}

// CodeExecutionResult is the outcome of executed code.
type CodeExecutionResult struct {
	Outcome string `json:"outcome,omitempty"`
	Output  string `json:"output,omitempty"`
}

// Turn is an ordered sequence of parts attributed to one role.
type Turn struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

// =============================================================================
// Client -> Server frames
// =============================================================================

// SetupMessage is the first frame of every session.
type SetupMessage struct {
	Setup Setup `json:"setup"`
}

// Setup carries the session configuration.
type Setup struct {
	Model             string            `json:"model"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *Turn             `json:"systemInstruction,omitempty"`
	Tools             []Tool            `json:"tools,omitempty"`
}

// GenerationConfig selects response modalities and voice.
type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

// SpeechConfig selects the synthesis voice.
type SpeechConfig struct {
	VoiceConfig *VoiceConfig `json:"voiceConfig,omitempty"`
}

// VoiceConfig wraps the prebuilt voice selection.
type VoiceConfig struct {
	PrebuiltVoiceConfig *PrebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

// PrebuiltVoiceConfig names one of the service's built-in voices.
type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName,omitempty"`
}

// Tool declares functions the model may call.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

// FunctionDeclaration describes one callable function.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ClientContentMessage sends user content turns.
type ClientContentMessage struct {
	ClientContent ClientContent `json:"clientContent"`
}

// ClientContent wraps user turns and the completion flag.
type ClientContent struct {
	Turns        []Turn `json:"turns"`
	TurnComplete bool   `json:"turnComplete"`
}

// RealtimeInputMessage streams media chunks (audio/image) to the model.
type RealtimeInputMessage struct {
	RealtimeInput RealtimeInput `json:"realtimeInput"`
}

// RealtimeInput carries one batch of media chunks.
type RealtimeInput struct {
	MediaChunks []Blob `json:"mediaChunks"`
}

// ToolResponseMessage returns function results to the model.
type ToolResponseMessage struct {
	ToolResponse ToolResponse `json:"toolResponse"`
}

// ToolResponse carries one batch of function responses.
type ToolResponse struct {
	FunctionResponses []FunctionResponse `json:"functionResponses"`
}

// =============================================================================
// Server -> Client envelope
// =============================================================================

// MessageKind classifies an inbound envelope.
type MessageKind int

const (
	// KindUnhandled is an envelope with no recognized tag.
	KindUnhandled MessageKind = iota
	// KindSetupComplete acknowledges the setup frame.
	KindSetupComplete
	// KindServerContent carries a model turn and/or turn markers.
	KindServerContent
	// KindToolCall requests function invocations.
	KindToolCall
	// KindToolCallCancellation cancels in-flight function calls.
	KindToolCallCancellation
)

// String returns a human-readable kind name.
func (k MessageKind) String() string {
	switch k {
	case KindSetupComplete:
		return "setupcomplete"
	case KindServerContent:
		return "servercontent"
	case KindToolCall:
		return "toolcall"
	case KindToolCallCancellation:
		return "toolcallcancellation"
	default:
		return "unhandled"
	}
}

// ServerMessage is one parsed inbound envelope. Exactly one variant
// field is non-nil for recognized messages.
type ServerMessage struct {
	SetupComplete        *SetupComplete        `json:"setupComplete,omitempty"`
	ServerContent        *ServerContent        `json:"serverContent,omitempty"`
	ToolCall             *ToolCall             `json:"toolCall,omitempty"`
	ToolCallCancellation *ToolCallCancellation `json:"toolCallCancellation,omitempty"`
}

// Kind classifies the envelope by its tag. Envelopes carrying none of
// the known tags classify as KindUnhandled, which is not an error.
func (m *ServerMessage) Kind() MessageKind {
	switch {
	case m.SetupComplete != nil:
		return KindSetupComplete
	case m.ServerContent != nil:
		return KindServerContent
	case m.ToolCall != nil:
		return KindToolCall
	case m.ToolCallCancellation != nil:
		return KindToolCallCancellation
	default:
		return KindUnhandled
	}
}

// SetupComplete has no payload.
type SetupComplete struct{}

// ServerContent wraps a model turn and/or turn markers.
type ServerContent struct {
	ModelTurn    *Turn `json:"modelTurn,omitempty"`
	TurnComplete bool  `json:"turnComplete,omitempty"`
	Interrupted  bool  `json:"interrupted,omitempty"`
}

// AudioParts returns the inline-data parts of the model turn whose
// MIME type indicates audio, in turn order.
func (c *ServerContent) AudioParts() []*Blob {
	if c.ModelTurn == nil {
		return nil
	}
	var blobs []*Blob
	for i := range c.ModelTurn.Parts {
		if d := c.ModelTurn.Parts[i].InlineData; d != nil && d.IsAudio() {
			blobs = append(blobs, d)
		}
	}
	return blobs
}

// Text concatenates the text parts of the model turn, in turn order.
func (c *ServerContent) Text() string {
	if c.ModelTurn == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range c.ModelTurn.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// ToolCall is an ordered list of function-call requests.
type ToolCall struct {
	FunctionCalls []FunctionCall `json:"functionCalls,omitempty"`
}

// ToolCallCancellation lists the ids of cancelled calls.
type ToolCallCancellation struct {
	IDs []string `json:"ids,omitempty"`
}
