package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockClient answers without a model, echoing how much context it was
// given. Useful for local development and wiring tests.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Generate(_ context.Context, _, userPrompt string) (string, error) {
	sources := strings.Count(userPrompt, "[Source:")
	if sources == 0 {
		return "The answer is not available in the provided documents.", nil
	}
	return fmt.Sprintf("Mock answer derived from %d context passage(s).", sources), nil
}

func (c *MockClient) ModelName() string {
	return "mock"
}
