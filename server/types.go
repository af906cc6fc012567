package server

import (
	"time"

	"github.com/teranos/promptc/prompt"
)

const (
	// MaxClients is the maximum number of concurrent WebSocket clients
	MaxClients = 100
	// MaxClientMessageQueueSize is the size of per-client response queues
	MaxClientMessageQueueSize = 32
	// ShutdownTimeout is how long Stop waits for in-flight requests and clients
	ShutdownTimeout = 10 * time.Second
)

// ServerState represents the server lifecycle state
type ServerState int32

const (
	ServerStateRunning  ServerState = iota // Normal operation
	ServerStateDraining                    // Graceful shutdown in progress
	ServerStateStopped                     // Shutdown complete
)

// ParseRequest is the body of POST /api/parse and of "parse" WebSocket messages
type ParseRequest struct {
	Prompt      string `json:"prompt"`
	Tree        bool   `json:"tree,omitempty"`         // Return the unflattened tree
	LegacyBlend *bool  `json:"legacy_blend,omitempty"` // Overrides parser.legacy_blend
}

// ParseResponse holds both sides of a parsed prompt
type ParseResponse struct {
	PositiveText string     `json:"positive_text"`
	NegativeText string     `json:"negative_text"`
	Positive     prompt.Doc `json:"positive"`
	Negative     prompt.Doc `json:"negative"`
}

// LegacyRequest is the body of POST /api/legacy
type LegacyRequest struct {
	Prompt string `json:"prompt"`
}

// LegacyResponse reports whether the colon syntax applied and the resulting blend
type LegacyResponse struct {
	Applicable bool        `json:"applicable"`
	Blend      *prompt.Doc `json:"blend,omitempty"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Error      string             `json:"error"`
	Diagnostic *prompt.Diagnostic `json:"diagnostic,omitempty"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string  `json:"status"`
	Version   string  `json:"version"`
	Commit    string  `json:"commit"`
	Clients   int     `json:"clients"`
	PlusBase  float64 `json:"attention_plus_base"`
	MinusBase float64 `json:"attention_minus_base"`
}

// Message types exchanged over /ws
const (
	MessageParse  = "parse"
	MessageLegacy = "legacy"
	MessagePing   = "ping"

	MessageResult       = "result"
	MessageLegacyResult = "legacy_result"
	MessageError        = "error"
	MessagePong         = "pong"
)

// ClientMessage is one request read from a WebSocket client
type ClientMessage struct {
	ID          string `json:"id,omitempty"`   // Echoed in the response
	Type        string `json:"type,omitempty"` // parse (default), legacy or ping
	Prompt      string `json:"prompt"`
	Tree        bool   `json:"tree,omitempty"`
	LegacyBlend *bool  `json:"legacy_blend,omitempty"`
}

// ServerMessage is the single response written for each ClientMessage
type ServerMessage struct {
	ID         string             `json:"id,omitempty"`
	Type       string             `json:"type"`
	Result     *ParseResponse     `json:"result,omitempty"`
	Legacy     *LegacyResponse    `json:"legacy,omitempty"`
	Error      string             `json:"error,omitempty"`
	Diagnostic *prompt.Diagnostic `json:"diagnostic,omitempty"`
}
