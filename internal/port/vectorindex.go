package port

import "sopqa/internal/domain"

// VectorIndex stores (passage, vector) pairs and answers exact
// nearest-neighbour queries by cosine similarity.
type VectorIndex interface {
	// Add appends a passage and its vector. The vector must match the
	// index dimension.
	Add(passage domain.Passage, vector []float32) error

	// Search returns the min(k, Len()) most similar passages, ordered by
	// descending similarity with ties broken by insertion order. An empty
	// index yields an empty result, not an error.
	Search(query []float32, k int) ([]domain.ScoredPassage, error)

	// Len returns the number of stored passages.
	Len() int

	// Dimension returns the vector dimension.
	Dimension() int

	// Snapshot returns a copy of the index contents for persistence.
	Snapshot() domain.IndexSnapshot
}
