package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"sopqa/config"
	"sopqa/internal/adapter/chunker"
	"sopqa/internal/adapter/embedding"
	"sopqa/internal/adapter/llm"
	"sopqa/internal/adapter/loader"
	"sopqa/internal/adapter/store"
	"sopqa/internal/metrics"
	"sopqa/internal/port"
	"sopqa/internal/usecase"
)

// newEmbedder creates the configured embedding provider.
func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	e := cfg.Embedding
	switch e.Provider {
	case "gemini":
		return embedding.NewGeminiEmbedder(e.APIKeyEnv, e.Model, e.BaseURL, e.BatchSize, e.MaxRetries)
	case "openai":
		return embedding.NewOpenAIEmbedder(e.APIKeyEnv, e.Model, e.BaseURL, e.BatchSize, e.MaxRetries)
	case "mock":
		return embedding.NewMockEmbedder(0), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", e.Provider)
	}
}

// newLLM creates the configured answer-generation provider.
func newLLM(cfg *config.Config) (port.LLM, error) {
	l := cfg.LLM
	switch l.Provider {
	case "gemini":
		return llm.NewGeminiClient(l.APIKeyEnv, l.Model, l.BaseURL, l.Temperature, l.MaxRetries)
	case "ollama":
		return llm.NewOllamaClient(l.Model, l.BaseURL, l.Temperature, l.MaxRetries), nil
	case "mock":
		return llm.NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", l.Provider)
	}
}

func newLoader(cfg *config.Config) *loader.FSLoader {
	return loader.NewFSLoader(cfg.Documents.Includes, cfg.Documents.Excludes)
}

// openStore opens the index database under the root directory.
func openStore() (*store.BoltStore, error) {
	if err := config.EnsureStateDir(GetRootDir()); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return store.NewBoltStore(config.IndexDBPath(GetRootDir()))
}

// newPipeline wires the configured providers into a pipeline.
func newPipeline(cfg *config.Config, st *store.BoltStore, m *metrics.Metrics) (*usecase.Pipeline, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	generator, err := newLLM(cfg)
	if err != nil {
		return nil, err
	}

	return usecase.NewPipeline(
		chunker.NewTextChunker(cfg.Chunking.Size, cfg.Chunking.Overlap),
		embedder,
		st,
		generator,
		usecase.Options{
			TopK:         cfg.Retrieve.TopK,
			MinScore:     cfg.Retrieve.MinScore,
			EmbedTimeout: time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
			LLMTimeout:   time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
			Metrics:      m,
		},
	), nil
}

// documentsDir resolves the documents directory against the root.
func documentsDir(cfg *config.Config) string {
	dir := cfg.Documents.Dir
	if dir == "" {
		dir = "docs"
	}
	if !filepath.IsAbs(dir) {
		return filepath.Join(GetRootDir(), dir)
	}
	return dir
}
