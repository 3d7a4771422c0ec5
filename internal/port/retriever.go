package port

import (
	"context"

	"sopqa/internal/domain"
)

// Retriever finds the passages most relevant to a question.
type Retriever interface {
	// Retrieve embeds the question and returns the top-k passages by
	// similarity. k <= 0 is an input error.
	Retrieve(ctx context.Context, question string, k int) ([]domain.ScoredPassage, error)
}
