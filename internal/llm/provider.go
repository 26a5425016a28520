package llm

import "context"

// Provider defines the interface for LLM providers.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends a prompt and returns the raw completion text.
	// Callers must treat the content as untrusted and validate it
	// against their own schema.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest contains the input for a single LLM call.
type CompletionRequest struct {
	// System is the system-role instruction (optional)
	System string

	// Prompt is the user-role content
	Prompt string

	// Model overrides the configured model (optional)
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature controls sampling; extraction uses 0
	Temperature float32

	// JSONMode asks the provider for a structured JSON object response
	JSONMode bool
}

// CompletionResponse contains the LLM's output.
type CompletionResponse struct {
	// Content is the raw completion text
	Content string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}
