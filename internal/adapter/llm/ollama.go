package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sopqa/internal/adapter/backoff"
	"sopqa/internal/domain"
)

// OllamaClient talks to a local Ollama server. No credential is involved,
// so the only fatal kind it produces is a malformed response.
type OllamaClient struct {
	baseURL     string
	model       string
	temperature float64
	maxRetries  int
	client      *http.Client
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	System  string        `json:"system,omitempty"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func NewOllamaClient(model, baseURL string, temperature float64, maxRetries int) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434/api"
	}
	return &OllamaClient{
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		maxRetries:  maxRetries,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

func (c *OllamaClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var answer string
	err := backoff.Retry(ctx, c.maxRetries, backoff.DefaultBase, func() error {
		var err error
		answer, err = c.generate(ctx, systemPrompt, userPrompt)
		return err
	})
	return answer, err
}

func (c *OllamaClient) generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := ollamaRequest{
		Model:   c.model,
		System:  systemPrompt,
		Prompt:  userPrompt,
		Stream:  false,
		Options: ollamaOptions{Temperature: c.temperature},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", domain.ErrModelUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", generationStatusError(resp.StatusCode)
	}

	var genResp ollamaResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("%w: unparseable response: %v", domain.ErrMalformedResponse, err)
	}

	answer := strings.TrimSpace(genResp.Response)
	if answer == "" {
		return "", fmt.Errorf("%w: empty response", domain.ErrMalformedResponse)
	}
	return answer, nil
}

func (c *OllamaClient) ModelName() string {
	return c.model
}
