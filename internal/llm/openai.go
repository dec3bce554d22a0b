package llm

import (
	"bytes"
	stdcontext "context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/persona-dev/personad/internal/logger"
)

const (
	// OpenAIDefaultBaseURL is the default base URL for the OpenAI API.
	// Any OpenAI-compatible gateway can be substituted via config.
	OpenAIDefaultBaseURL = "https://api.openai.com/v1"
	// OpenAIRequestTimeout is the default timeout for API requests
	OpenAIRequestTimeout = 60 * time.Second
)

// OpenAIConfig contains configuration for the OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey         string `json:"api_key"`         // API key for authentication
	BaseURL        string `json:"base_url"`        // Base URL (optional, defaults to api.openai.com)
	Model          string `json:"model"`           // Default model to use
	TimeoutSeconds int    `json:"timeout_seconds"` // Timeout for HTTP requests in seconds

	// RequestsPerMinute caps the request rate across all callers sharing
	// this provider. Zero disables rate limiting.
	RequestsPerMinute int `json:"requests_per_minute"`
}

// OpenAIProvider implements the Provider interface for OpenAI-compatible
// chat completion APIs.
type OpenAIProvider struct {
	client  *http.Client // HTTP client for API requests
	config  OpenAIConfig // Provider configuration
	apiURL  string       // Full chat completions endpoint URL
	logger  *logger.Logger
	limiter *TokenBucketRateLimiter
}

// oaiRequest represents the request format for the chat completions API.
type oaiRequest struct {
	Messages       []oaiMessage       `json:"messages"`                  // Conversation messages
	Model          string             `json:"model"`                     // Model identifier
	Temperature    float64            `json:"temperature,omitempty"`     // Sampling temperature
	MaxTokens      int                `json:"max_tokens,omitempty"`      // Maximum tokens to generate
	ResponseFormat *oaiResponseFormat `json:"response_format,omitempty"` // Strict-JSON mode switch
}

// oaiMessage represents a message in API format.
type oaiMessage struct {
	Role    string `json:"role"`    // Role of the message sender
	Content string `json:"content"` // Message content
}

// oaiResponseFormat selects json_object output on compatible APIs.
type oaiResponseFormat struct {
	Type string `json:"type"` // "json_object" or "text"
}

// oaiResponse represents the response format from the API.
type oaiResponse struct {
	ID      string       `json:"id"`              // Response identifier
	Object  string       `json:"object"`          // Response object type
	Created int64        `json:"created"`         // Unix timestamp
	Model   string       `json:"model"`           // Model used
	Choices []oaiChoice  `json:"choices"`         // Response choices
	Usage   oaiUsage     `json:"usage"`           // Token usage
	Error   *oaiAPIError `json:"error,omitempty"` // API error if present
}

// oaiChoice represents a choice in the response.
type oaiChoice struct {
	Index        int        `json:"index"`                   // Choice index
	Message      oaiMessage `json:"message"`                 // The generated message
	FinishReason string     `json:"finish_reason,omitempty"` // Reason generation stopped
}

// oaiUsage represents token usage information.
type oaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`     // Tokens in prompt
	CompletionTokens int `json:"completion_tokens"` // Tokens in completion
	TotalTokens      int `json:"total_tokens"`      // Total tokens used
}

// oaiAPIError represents an error response from the API.
type oaiAPIError struct {
	Message string `json:"message"` // Error message
	Type    string `json:"type"`    // Error type
	Code    string `json:"code"`    // Error code
}

// NewOpenAIProvider creates a new OpenAIProvider instance.
func NewOpenAIProvider(cfg OpenAIConfig, log *logger.Logger) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = OpenAIDefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = OpenAIRequestTimeout
	}

	var limiter *TokenBucketRateLimiter
	if cfg.RequestsPerMinute > 0 {
		limiter = NewTokenBucketRateLimiter(cfg.RequestsPerMinute, time.Minute, cfg.RequestsPerMinute)
	}

	return &OpenAIProvider{
		client: &http.Client{
			Timeout: timeout,
		},
		config:  cfg,
		apiURL:  baseURL + "/chat/completions",
		logger:  log,
		limiter: limiter,
	}
}

// oaiHTTPError represents an HTTP error from the API.
type oaiHTTPError struct {
	StatusCode int    // HTTP status code
	Body       string // Response body
}

func (e *oaiHTTPError) Error() string {
	return fmt.Sprintf("HTTP error: status=%d, body=%s", e.StatusCode, e.Body)
}

// doRequest executes a single HTTP request to the chat completions endpoint.
func (p *OpenAIProvider) doRequest(ctx stdcontext.Context, reqBody []byte) (*oaiResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.config.APIKey))

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.ErrorCtx(ctx, "Failed to execute LLM API request", err)
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		p.logger.ErrorCtx(ctx, "Failed to read LLM API response body", err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		p.logger.ErrorCtx(ctx, "LLM API returned error status", nil,
			logger.Field{Key: "status_code", Value: httpResp.StatusCode},
			logger.Field{Key: "response_body", Value: string(respBody)})

		return nil, &oaiHTTPError{
			StatusCode: httpResp.StatusCode,
			Body:       string(respBody),
		}
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		p.logger.ErrorCtx(ctx, "Failed to unmarshal LLM API response", err,
			logger.Field{Key: "response_body", Value: string(respBody)})
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if oaiResp.Error != nil {
		p.logger.ErrorCtx(ctx, "LLM API returned error", nil,
			logger.Field{Key: "error_type", Value: oaiResp.Error.Type},
			logger.Field{Key: "error_code", Value: oaiResp.Error.Code},
			logger.Field{Key: "error_message", Value: oaiResp.Error.Message})
		return nil, fmt.Errorf("API error: %s (code: %s): %s",
			oaiResp.Error.Type, oaiResp.Error.Code, oaiResp.Error.Message)
	}

	return &oaiResp, nil
}

// mapChatRequest maps internal ChatRequest to API format.
func (p *OpenAIProvider) mapChatRequest(req ChatRequest) oaiRequest {
	messages := make([]oaiMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = oaiMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	oaiReq := oaiRequest{
		Messages:    messages,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	if req.Format == ResponseFormatJSON {
		oaiReq.ResponseFormat = &oaiResponseFormat{Type: "json_object"}
	}

	return oaiReq
}

// mapChatResponse maps an API response to internal ChatResponse format.
func (p *OpenAIProvider) mapChatResponse(oaiResp *oaiResponse) *ChatResponse {
	usage := Usage{
		PromptTokens:     oaiResp.Usage.PromptTokens,
		CompletionTokens: oaiResp.Usage.CompletionTokens,
		TotalTokens:      oaiResp.Usage.TotalTokens,
	}

	if len(oaiResp.Choices) == 0 {
		return &ChatResponse{
			Content:      "",
			FinishReason: FinishReasonError,
			Usage:        usage,
			Model:        oaiResp.Model,
		}
	}

	choice := oaiResp.Choices[0]

	return &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: FinishReason(choice.FinishReason),
		Usage:        usage,
		Model:        oaiResp.Model,
	}
}

// Chat sends a chat completion request to the API.
func (p *OpenAIProvider) Chat(ctx stdcontext.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = p.config.Model
	}

	if p.limiter != nil {
		if ok, wait := p.limiter.TryAcquire(); !ok {
			p.logger.WarnCtx(ctx, "LLM rate limit hit, waiting",
				logger.Field{Key: "wait", Value: wait})
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			p.limiter.Acquire()
		}
	}

	p.logger.DebugCtx(ctx, "Sending chat request to LLM API",
		logger.Field{Key: "model", Value: req.Model},
		logger.Field{Key: "messages_count", Value: len(req.Messages)},
		logger.Field{Key: "format", Value: string(req.Format)})

	reqBody := p.mapChatRequest(req)
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		p.logger.ErrorCtx(ctx, "Failed to marshal request", err)
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	oaiResp, err := p.doRequest(ctx, jsonBody)
	if err != nil {
		return nil, err
	}

	return p.mapChatResponse(oaiResp), nil
}

// SupportsJSONMode returns true; the chat completions API accepts
// response_format json_object.
func (p *OpenAIProvider) SupportsJSONMode() bool {
	return true
}

// GetDefaultModel returns the configured default model.
func (p *OpenAIProvider) GetDefaultModel() string {
	return p.config.Model
}
