package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts, one vector per input.
	// Failures surface as domain.ErrEmbeddingUnavailable (or
	// domain.ErrAuthFailure for a rejected credential).
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
