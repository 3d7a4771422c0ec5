package port

import "sopqa/internal/domain"

type Chunker interface {
	Chunk(doc domain.Document) ([]domain.Passage, error)
}
