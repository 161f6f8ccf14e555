// Package ai defines the model-client abstraction used by the extraction
// pipeline. Concrete providers live in subpackages (ai/anthropic); the
// pipeline only depends on the Client interface so tests can script
// responses.
package ai

import "context"

// ChatRequest represents a single prompt/completion exchange
type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  *float64 // Override default temperature
	MaxTokens    *int     // Override default max tokens
	Model        *string  // Override default model
}

// ChatResponse represents the AI response
type ChatResponse struct {
	Content string
	Usage   Usage
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Client is the AI collaborator consumed by the pipeline
type Client interface {
	// Chat sends a prompt and returns the raw model output.
	// Implementations must respect ctx cancellation and deadlines.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// IsConfigured reports whether the client has usable credentials
	IsConfigured() bool
}

// Float64 returns a pointer to v, for ChatRequest overrides
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for ChatRequest overrides
func Int(v int) *int { return &v }
