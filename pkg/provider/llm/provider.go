// Package llm defines the Provider interface for Large Language Model
// backends.
//
// An LLM provider wraps a remote or local model API (e.g., OpenAI GPT-4o or a
// local Ollama instance) and exposes a uniform one-shot completion interface
// for the medical-term classifier, without coupling it to any specific SDK.
// The validation engine never streams — classification is a single structured
// JSON round-trip — so the surface is deliberately small.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Message is one turn of a conversation sent to the model.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string

	// Content is the textual message body.
	Content string
}

// Usage holds token accounting information returned by the LLM backend.
// Counts are in the model's native token unit and may differ between
// providers for the same textual content.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation. Providers map it to their native system mechanism.
	SystemPrompt string

	// Messages is the ordered conversation. The last message is typically
	// from the "user" role and drives the response.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0]. Zero means use
	// the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider
	// default.
	MaxTokens int
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	// Content is the full response text.
	Content string

	// Usage is the token accounting for this call. Zero-valued when the
	// backend does not report usage.
	Usage Usage
}

// Provider is a one-shot LLM completion backend.
//
// Implementations must be safe for concurrent use and must respect context
// cancellation.
type Provider interface {
	// Complete sends req to the model and returns its response.
	// Returns a non-nil *CompletionResponse on success.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
