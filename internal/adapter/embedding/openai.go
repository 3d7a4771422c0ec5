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

// OpenAIEmbedder calls any OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	apiKey     string
	model      string
	baseURL    string
	dimension  int
	batchSize  int
	maxRetries int
	client     *http.Client
}

type openaiEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func NewOpenAIEmbedder(apiKeyEnv, model, baseURL string, batchSize, maxRetries int) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	dimension := 1536
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		dimension = 1536
	case "text-embedding-3-large":
		dimension = 3072
	}

	return &OpenAIEmbedder{
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

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
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

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	jsonData, err := json.Marshal(openaiEmbedRequest{Input: texts, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

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

	var embResp openaiEmbedResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("%w: unparseable response: %v", domain.ErrEmbeddingUnavailable, err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("%w: API error: %s", domain.ErrEmbeddingUnavailable, embResp.Error.Message)
	}

	vectors := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < len(vectors) {
			vectors[data.Index] = data.Embedding
		}
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("%w: missing embedding for input %d", domain.ErrEmbeddingUnavailable, i)
		}
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
