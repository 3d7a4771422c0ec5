package port

import "context"

// LLM represents a language model for text generation.
type LLM interface {
	// Generate produces text from a system instruction and a user prompt.
	// Failures carry one of the domain error kinds: ErrAuthFailure,
	// ErrRateLimited, ErrModelUnavailable or ErrMalformedResponse.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
