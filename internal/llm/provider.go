package llm

import (
	"context"
)

// Provider defines the interface for LLM (Large Language Model) providers.
// Different providers (OpenAI, Z.ai, local gateways exposing the same wire
// format) must implement this interface.
type Provider interface {
	// Chat sends a chat completion request to the LLM provider.
	// It takes a context for cancellation/timeout and a ChatRequest with the
	// conversation parameters, and returns a ChatResponse with the model's reply.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// SupportsJSONMode returns true if the provider can be asked for
	// strict-JSON output. Schedule generation requires this; providers
	// without it fall back to best-effort parsing of the raw text.
	SupportsJSONMode() bool

	// GetDefaultModel returns the default model identifier for this provider.
	// Used when no specific model is requested.
	GetDefaultModel() string
}

// Role represents the role of a message sender in the conversation.
type Role string

const (
	RoleSystem    Role = "system"    // System message provides context/instructions
	RoleUser      Role = "user"      // User message represents user input
	RoleAssistant Role = "assistant" // Assistant message represents model response
)

// Message represents a single message in the chat conversation.
type Message struct {
	Role    Role   `json:"role"`    // The role of the message sender
	Content string `json:"content"` // The content of the message
}

// ResponseFormat selects the output shape requested from the model.
type ResponseFormat string

const (
	// ResponseFormatText requests plain conversational text (the default).
	ResponseFormatText ResponseFormat = "text"

	// ResponseFormatJSON requests a strict JSON object. Used for schedule
	// generation where the reply is parsed into a ScheduleItem.
	ResponseFormatJSON ResponseFormat = "json"
)

// FinishReason indicates why the model stopped generating tokens.
type FinishReason string

const (
	FinishReasonStop   FinishReason = "stop"   // Model reached a natural stopping point
	FinishReasonLength FinishReason = "length" // Model exceeded max tokens
	FinishReasonError  FinishReason = "error"  // Generation stopped due to an error
)

// Usage tracks token usage information for the request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`     // Number of tokens in the prompt
	CompletionTokens int `json:"completion_tokens"` // Number of tokens in the completion
	TotalTokens      int `json:"total_tokens"`      // Total number of tokens used
}

// ChatRequest represents a request to send to the LLM provider for chat completion.
type ChatRequest struct {
	Messages    []Message      `json:"messages"`    // The conversation history
	Model       string         `json:"model"`       // The model to use for completion
	Temperature float64        `json:"temperature"` // Sampling temperature (0.0-2.0)
	MaxTokens   int            `json:"max_tokens"`  // Maximum tokens to generate
	Format      ResponseFormat `json:"format"`      // Requested output shape (text/json)
}

// ChatResponse represents a response from the LLM provider.
type ChatResponse struct {
	Content      string       `json:"content"`       // The model's text response
	FinishReason FinishReason `json:"finish_reason"` // Reason generation stopped
	Usage        Usage        `json:"usage"`         // Token usage information

	// Model is the actual model used for the completion (may differ from request)
	Model string `json:"model"`
}
