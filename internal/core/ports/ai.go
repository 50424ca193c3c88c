package ports

import "context"

// CompletionOptions tune a single AI call.
type CompletionOptions struct {
	// System is prepended as the system prompt when non-empty.
	System string
	// ReasoningBudget caps the model's generation, in tokens. Zero
	// means the provider default.
	ReasoningBudget int
}

// Completer is the AI text-completion collaborator. The returned text
// is free-form but expected to contain a JSON payload; extraction is
// the caller's concern.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}
