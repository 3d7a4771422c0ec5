// Package retriever turns questions into ranked passages.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"sopqa/internal/domain"
	"sopqa/internal/port"
)

// Semantic retrieves passages by embedding the question and searching a
// vector index. It is built per query over whichever index is live, so
// a concurrent rebuild can never tear the view mid-search.
type Semantic struct {
	embedder port.Embedder
	index    port.VectorIndex
}

func NewSemantic(embedder port.Embedder, index port.VectorIndex) *Semantic {
	return &Semantic{
		embedder: embedder,
		index:    index,
	}
}

func (r *Semantic) Retrieve(ctx context.Context, question string, k int) ([]domain.ScoredPassage, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}
	if r.index == nil {
		return nil, fmt.Errorf("%w: no index to search", domain.ErrIndexNotReady)
	}

	vectors, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: embedding returned %d vectors for one question",
			domain.ErrEmbeddingUnavailable, len(vectors))
	}

	results, err := r.index.Search(vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return results, nil
}
