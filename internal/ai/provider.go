package ai

import "context"

// Provider executes one prompt pair against an AI completion backend.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Name() string
	ModelName() string
}

// CompletionRequest describes one completion call. The batch wire protocol
// lives entirely inside SystemPrompt/UserPrompt; no structured contract is
// assumed from the backend.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Model        string
	Temperature  float64
	MaxTokens    int
}

// Usage carries the backend's token accounting for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Completion contains raw response text and provider metadata.
type Completion struct {
	Content      string
	Usage        Usage
	ProviderName string
	LatencyMs    int64
}
