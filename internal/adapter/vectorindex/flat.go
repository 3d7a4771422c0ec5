// Package vectorindex provides an exact nearest-neighbour index over
// passage embeddings. Brute-force cosine scan is plenty for the working
// set here (hundreds to low thousands of passages).
package vectorindex

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"sopqa/internal/domain"
)

type Flat struct {
	mu        sync.RWMutex
	dimension int
	model     string
	passages  []domain.Passage
	vectors   [][]float32
}

func NewFlat(dimension int, model string) *Flat {
	return &Flat{dimension: dimension, model: model}
}

// FromSnapshot rebuilds an index from persisted state. The snapshot must
// be internally consistent; mismatches mean the store handed us corrupt
// data.
func FromSnapshot(snap domain.IndexSnapshot) (*Flat, error) {
	if len(snap.Passages) != len(snap.Vectors) {
		return nil, fmt.Errorf("%w: %d passages but %d vectors",
			domain.ErrCorruptIndex, len(snap.Passages), len(snap.Vectors))
	}
	for i, v := range snap.Vectors {
		if len(v) != snap.Dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d",
				domain.ErrCorruptIndex, i, len(v), snap.Dimension)
		}
	}

	ix := NewFlat(snap.Dimension, snap.Model)
	ix.passages = append(ix.passages, snap.Passages...)
	ix.vectors = append(ix.vectors, snap.Vectors...)
	return ix, nil
}

func (ix *Flat) Add(passage domain.Passage, vector []float32) error {
	if len(vector) != ix.dimension {
		return fmt.Errorf("%w: vector dimension %d, index dimension %d",
			domain.ErrInvalidInput, len(vector), ix.dimension)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.passages = append(ix.passages, passage)
	ix.vectors = append(ix.vectors, vector)
	return nil
}

// Search returns the min(k, Len()) most similar passages in order of
// non-increasing similarity. Equal scores keep insertion order.
func (ix *Flat) Search(query []float32, k int) ([]domain.ScoredPassage, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d",
			domain.ErrInvalidInput, len(query), ix.dimension)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.vectors) == 0 {
		return []domain.ScoredPassage{}, nil
	}

	scored := make([]domain.ScoredPassage, len(ix.vectors))
	for i, vec := range ix.vectors {
		scored[i] = domain.ScoredPassage{
			Passage: ix.passages[i],
			Score:   cosineSimilarity(query, vec),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func (ix *Flat) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.passages)
}

func (ix *Flat) Dimension() int {
	return ix.dimension
}

// Snapshot copies the index contents for persistence.
func (ix *Flat) Snapshot() domain.IndexSnapshot {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	passages := make([]domain.Passage, len(ix.passages))
	copy(passages, ix.passages)
	vectors := make([][]float32, len(ix.vectors))
	for i, v := range ix.vectors {
		vec := make([]float32, len(v))
		copy(vec, v)
		vectors[i] = vec
	}

	return domain.IndexSnapshot{
		Model:     ix.model,
		Dimension: ix.dimension,
		SavedAt:   time.Now().UTC(),
		Passages:  passages,
		Vectors:   vectors,
	}
}

// cosineSimilarity calculates the cosine similarity between two vectors.
// Embedding magnitude carries no meaning for this model family, so the
// angle is the whole signal.
func cosineSimilarity(a, b []float32) float64 {
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
