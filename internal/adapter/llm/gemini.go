// Package llm provides answer-generation providers behind port.LLM.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"sopqa/internal/adapter/backoff"
	"sopqa/internal/domain"
)

// GeminiClient calls the Google Generative Language generateContent API.
type GeminiClient struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxRetries  int
	client      *http.Client
}

type geminiGenerateRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiTurn           `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiTurn struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func NewGeminiClient(apiKeyEnv, model, baseURL string, temperature float64, maxRetries int) (*GeminiClient, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	return &GeminiClient{
		apiKey:      apiKey,
		model:       model,
		baseURL:     baseURL,
		temperature: temperature,
		maxRetries:  maxRetries,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var answer string
	err := backoff.Retry(ctx, c.maxRetries, backoff.DefaultBase, func() error {
		var err error
		answer, err = c.generate(ctx, systemPrompt, userPrompt)
		return err
	})
	return answer, err
}

func (c *GeminiClient) generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := geminiGenerateRequest{
		Contents: []geminiTurn{
			{Role: "user", Parts: []geminiPart{{Text: userPrompt}}},
		},
		GenerationConfig: geminiGenerationConfig{Temperature: c.temperature},
	}
	if systemPrompt != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
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

	var genResp geminiGenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("%w: unparseable response: %v", domain.ErrMalformedResponse, err)
	}
	if len(genResp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates returned", domain.ErrMalformedResponse)
	}

	var sb strings.Builder
	for _, part := range genResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", fmt.Errorf("%w: candidate carries no text", domain.ErrMalformedResponse)
	}
	return answer, nil
}

func (c *GeminiClient) ModelName() string {
	return c.model
}

// generationStatusError maps an HTTP status to the generation error
// taxonomy. 401/403 must not be retried; 429 and server errors are
// transient.
func generationStatusError(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: LLM API returned status %d", domain.ErrAuthFailure, status)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: LLM API returned status %d", domain.ErrRateLimited, status)
	case status >= 500:
		return fmt.Errorf("%w: LLM API returned status %d", domain.ErrModelUnavailable, status)
	default:
		return fmt.Errorf("%w: LLM API returned status %d", domain.ErrMalformedResponse, status)
	}
}
