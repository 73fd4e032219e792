package models

import "time"

// Message roles accepted in a chat conversation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single conversational message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams carries the tunable completion parameters for one request.
type ChatParams struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
	Seed        *int
	Stream      bool
	JSONMode    bool
	Timeout     time.Duration
}

// DefaultParams returns the documented per-field defaults.
func DefaultParams() ChatParams {
	seed := 42
	return ChatParams{
		Temperature: 0.2,
		TopP:        0.9,
		MaxTokens:   512,
		Seed:        &seed,
		Stream:      false,
		JSONMode:    false,
		Timeout:     30 * time.Second,
	}
}

// ChatRequest is the canonical representation of one chat invocation.
type ChatRequest struct {
	Messages   []Message
	ModelAlias string
	Params     ChatParams
	UseRAG     bool
}

// Usage records token accounting for a single completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Fragment is a single retrieved context snippet. Fragments are produced
// per query and never persisted.
type Fragment struct {
	Text string `json:"text"`
}

// ErrorCode is the stable failure taxonomy exposed to callers.
type ErrorCode string

const (
	CodeInvalidInput  ErrorCode = "INVALID_INPUT"
	CodeConfigError   ErrorCode = "CONFIG_ERROR"
	CodeAliasNotFound ErrorCode = "MODEL_ALIAS_NOT_FOUND"
	CodeTimeout       ErrorCode = "TIMEOUT_ERROR"
	CodeAuth          ErrorCode = "AUTH_ERROR"
	CodeProvider      ErrorCode = "PROVIDER_ERROR"
)

// ErrorInfo is the structured failure payload carried by a ChatResult.
type ErrorInfo struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ChatResult is the stable response envelope returned for every chat
// invocation. Exactly one of OutputText or Error is set; RequestID is
// always present.
type ChatResult struct {
	OutputText    *string    `json:"output_text,omitempty"`
	Provider      string     `json:"provider,omitempty"`
	Model         string     `json:"model,omitempty"`
	Usage         *Usage     `json:"usage,omitempty"`
	LatencyMS     int64      `json:"latency_ms,omitempty"`
	CostEstimated *float64   `json:"cost_estimated"`
	RequestID     string     `json:"request_id"`
	Error         *ErrorInfo `json:"error,omitempty"`
}

// OK reports whether the result is a success envelope.
func (r ChatResult) OK() bool {
	return r.Error == nil
}
