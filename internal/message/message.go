package message

import "encoding/json"

// Message types emitted by the CLI that the engine recognizes.
const (
	TypeSystem    = "system"
	TypeAssistant = "assistant"
	TypeUser      = "user"
	TypeResult    = "result"

	// SubtypeInit marks the system message carrying the CLI session token.
	SubtypeInit = "init"
)

// Message is one decoded line of CLI output.
// Use a type switch to reach the concrete variant.
type Message interface {
	MessageType() string
	MessageSubtype() string
	// SessionToken returns the CLI's own session identifier, if the line carried one.
	SessionToken() string
	// Raw returns the decoded JSON object exactly as received.
	Raw() map[string]any
}

// Compile-time verification that all message types implement Message.
var (
	_ Message = (*SystemMessage)(nil)
	_ Message = (*AssistantMessage)(nil)
	_ Message = (*UserMessage)(nil)
	_ Message = (*ResultMessage)(nil)
	_ Message = (*UnknownMessage)(nil)
)

// SystemMessage is a "system" line. The init subtype carries the session token.
type SystemMessage struct {
	Subtype string
	Token   string
	Data    map[string]any
}

func (m *SystemMessage) MessageType() string    { return TypeSystem }
func (m *SystemMessage) MessageSubtype() string { return m.Subtype }
func (m *SystemMessage) SessionToken() string   { return m.Token }
func (m *SystemMessage) Raw() map[string]any    { return m.Data }

// MarshalJSON re-encodes the original payload.
func (m *SystemMessage) MarshalJSON() ([]byte, error) { return json.Marshal(m.Data) }

// IsInit reports whether this is the session initialization message.
func (m *SystemMessage) IsInit() bool { return m.Subtype == SubtypeInit }

// AssistantMessage is an "assistant" line. Model is extracted when present.
type AssistantMessage struct {
	Model string
	Token string
	Data  map[string]any
}

func (m *AssistantMessage) MessageType() string          { return TypeAssistant }
func (m *AssistantMessage) MessageSubtype() string       { return "" }
func (m *AssistantMessage) SessionToken() string         { return m.Token }
func (m *AssistantMessage) Raw() map[string]any          { return m.Data }
func (m *AssistantMessage) MarshalJSON() ([]byte, error) { return json.Marshal(m.Data) }

// UserMessage is a "user" line echoed by the CLI, typically tool results.
type UserMessage struct {
	Token string
	Data  map[string]any
}

func (m *UserMessage) MessageType() string          { return TypeUser }
func (m *UserMessage) MessageSubtype() string       { return "" }
func (m *UserMessage) SessionToken() string         { return m.Token }
func (m *UserMessage) Raw() map[string]any          { return m.Data }
func (m *UserMessage) MarshalJSON() ([]byte, error) { return json.Marshal(m.Data) }

// ResultMessage is the "result" line that ends one turn of the conversation.
//
//nolint:tagliatelle // Claude CLI uses snake_case
type ResultMessage struct {
	Subtype      string   `json:"subtype"`
	DurationMs   int      `json:"duration_ms"`
	IsError      bool     `json:"is_error"`
	NumTurns     int      `json:"num_turns"`
	Token        string   `json:"session_id"`
	TotalCostUSD *float64 `json:"total_cost_usd,omitempty"`
	Result       *string  `json:"result,omitempty"`

	Data map[string]any `json:"-"`
}

func (m *ResultMessage) MessageType() string          { return TypeResult }
func (m *ResultMessage) MessageSubtype() string       { return m.Subtype }
func (m *ResultMessage) SessionToken() string         { return m.Token }
func (m *ResultMessage) Raw() map[string]any          { return m.Data }
func (m *ResultMessage) MarshalJSON() ([]byte, error) { return json.Marshal(m.Data) }

// UnknownMessage carries any line whose type the engine does not model,
// such as stream_event or control_response. It is forwarded as-is.
type UnknownMessage struct {
	Type    string
	Subtype string
	Token   string
	Data    map[string]any
}

func (m *UnknownMessage) MessageType() string          { return m.Type }
func (m *UnknownMessage) MessageSubtype() string       { return m.Subtype }
func (m *UnknownMessage) SessionToken() string         { return m.Token }
func (m *UnknownMessage) Raw() map[string]any          { return m.Data }
func (m *UnknownMessage) MarshalJSON() ([]byte, error) { return json.Marshal(m.Data) }
