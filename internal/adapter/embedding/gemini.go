// Package embedding provides embedding providers behind port.Embedder.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"sopqa/internal/adapter/backoff"
	"sopqa/internal/domain"
)

// GeminiEmbedder calls the Google Generative Language embedding API.
type GeminiEmbedder struct {
	apiKey     string
	model      string
	baseURL    string
	dimension  int
	batchSize  int
	maxRetries int
	client     *http.Client
}

type geminiEmbedRequest struct {
	Requests []geminiEmbedItem `json:"requests"`
}

type geminiEmbedItem struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiEmbedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

func NewGeminiEmbedder(apiKeyEnv, model, baseURL string, batchSize, maxRetries int) (*GeminiEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	dimension := 768
	switch model {
	case "models/embedding-001", "models/text-embedding-004":
		dimension = 768
	}

	return &GeminiEmbedder{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		dimension:  dimension,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var all [][]float32
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		var batch [][]float32
		err := backoff.Retry(ctx, e.maxRetries, backoff.DefaultBase, func() error {
			var err error
			batch, err = e.embedBatch(ctx, texts[i:end])
			return err
		})
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
	}

	return all, nil
}

func (e *GeminiEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := geminiEmbedRequest{Requests: make([]geminiEmbedItem, len(texts))}
	for i, text := range texts {
		reqBody.Requests[i] = geminiEmbedItem{
			Model:   e.model,
			Content: geminiContent{Parts: []geminiPart{{Text: text}}},
		}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/%s:batchEmbedContents?key=%s", e.baseURL, e.model, e.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", domain.ErrEmbeddingUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, embeddingStatusError(resp.StatusCode)
	}

	var embResp geminiEmbedResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("%w: unparseable response: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if len(embResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			domain.ErrEmbeddingUnavailable, len(embResp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range embResp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

func (e *GeminiEmbedder) ModelName() string {
	return e.model
}

// embeddingStatusError maps an HTTP status to the embedding error
// taxonomy. A rejected credential must not be retried; everything else
// counts as the provider being unavailable.
func embeddingStatusError(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: embedding API returned status %d", domain.ErrAuthFailure, status)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: embedding API returned status %d", domain.ErrRateLimited, status)
	default:
		return fmt.Errorf("%w: embedding API returned status %d", domain.ErrEmbeddingUnavailable, status)
	}
}
