package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

const mockDimensions = 16

// MockClient is a deterministic embedding client for testing. Identical
// texts always embed to identical vectors; set Vectors to pin exact outputs
// for specific texts.
type MockClient struct {
	Vectors  map[string][]float32
	EmbedErr error

	// Call tracking for assertions
	EmbedCalls []string
}

func NewMockClient() *MockClient {
	return &MockClient{
		Vectors: make(map[string][]float32),
	}
}

func (c *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	c.EmbedCalls = append(c.EmbedCalls, text)
	if c.EmbedErr != nil {
		return nil, c.EmbedErr
	}
	if v, ok := c.Vectors[text]; ok {
		return v, nil
	}
	return hashVector(text), nil
}

// hashVector derives a unit vector from the text's bytes. Unrelated texts
// land far apart with high probability; equal texts always coincide.
func hashVector(text string) []float32 {
	v := make([]float32, mockDimensions)
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	var norm float64
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float32(int64(seed>>32)) / float32(math.MaxInt32)
		norm += float64(v[i]) * float64(v[i])
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
