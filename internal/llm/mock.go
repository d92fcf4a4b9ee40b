package llm

import (
	"context"

	"github.com/live-neon/neon-soul-sub008/internal/domain"
)

// MockClient is a configurable LLM client for testing.
// Set the response fields to control what each method returns.
type MockClient struct {
	ClassifyResponse    domain.Dimension
	ClassifyByText      map[string]domain.Dimension
	ClassifyError       error
	GenerateResponse    string
	GenerateError       error
	ContradictsResponse bool
	ContradictsError    error

	// Call tracking for assertions
	ClassifyCalls    []string
	GenerateCalls    []string
	ContradictsCalls []struct{ A, B string }
}

func NewMockClient() *MockClient {
	return &MockClient{
		ClassifyResponse: domain.DimensionGeneral,
		GenerateResponse: "Mock notation",
	}
}

func (c *MockClient) Classify(ctx context.Context, text string) (domain.Dimension, error) {
	c.ClassifyCalls = append(c.ClassifyCalls, text)
	if c.ClassifyError != nil {
		return "", c.ClassifyError
	}
	if d, ok := c.ClassifyByText[text]; ok {
		return d, nil
	}
	return c.ClassifyResponse, nil
}

func (c *MockClient) Generate(ctx context.Context, prompt string) (string, error) {
	c.GenerateCalls = append(c.GenerateCalls, prompt)
	if c.GenerateError != nil {
		return "", c.GenerateError
	}
	return c.GenerateResponse, nil
}

func (c *MockClient) Contradicts(ctx context.Context, a, b string) (bool, error) {
	c.ContradictsCalls = append(c.ContradictsCalls, struct{ A, B string }{a, b})
	if c.ContradictsError != nil {
		return false, c.ContradictsError
	}
	return c.ContradictsResponse, nil
}

// Reset clears all recorded calls and resets responses to defaults.
func (c *MockClient) Reset() {
	c.ClassifyResponse = domain.DimensionGeneral
	c.ClassifyByText = nil
	c.ClassifyError = nil
	c.GenerateResponse = "Mock notation"
	c.GenerateError = nil
	c.ContradictsResponse = false
	c.ContradictsError = nil
	c.ClassifyCalls = nil
	c.GenerateCalls = nil
	c.ContradictsCalls = nil
}
