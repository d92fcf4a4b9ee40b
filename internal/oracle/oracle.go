// Package oracle provides semantic-equivalence oracles for the matcher.
// The production oracle embeds both sides and compares by cosine
// similarity; the judgement itself stays pluggable behind
// domain.SemanticOracle.
package oracle

import (
	"context"
	"fmt"
	"math"

	"github.com/live-neon/neon-soul-sub008/internal/domain"
)

// EmbeddingOracle judges semantic equivalence by embedding the candidate
// and every existing text with the same provider and taking cosine
// similarity as the confidence. Confidences are clamped to [0,1].
type EmbeddingOracle struct {
	client domain.EmbeddingClient
}

func NewEmbeddingOracle(client domain.EmbeddingClient) (*EmbeddingOracle, error) {
	if client == nil {
		return nil, fmt.Errorf("embedding oracle requires an embedding client")
	}
	return &EmbeddingOracle{client: client}, nil
}

func (o *EmbeddingOracle) Compare(ctx context.Context, candidate string, texts []string) ([]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	candVec, err := o.client.Embed(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("embed candidate: %w", err)
	}

	confidences := make([]float32, len(texts))
	for i, text := range texts {
		vec, err := o.client.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed comparison text %d: %w", i, err)
		}
		confidences[i] = clamp01(cosineSimilarity(candVec, vec))
	}

	return confidences, nil
}

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
