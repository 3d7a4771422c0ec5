package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// MockEmbedder produces deterministic bag-of-words embeddings by hashing
// tokens into a fixed number of buckets. Texts sharing vocabulary get
// similar vectors, which is enough for tests and offline development.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.embedOne(text)
	}
	return vectors, nil
}

func (e *MockEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimension)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, token := range tokens {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[h.Sum32()%uint32(e.dimension)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
