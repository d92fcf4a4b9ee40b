package oracle

import (
	"context"
)

// MockOracle is a configurable semantic oracle for testing. Scores maps a
// "candidate|text" pair to a confidence; unmapped pairs score 1.0 when the
// strings are equal and DefaultScore otherwise.
type MockOracle struct {
	Scores       map[string]float32
	DefaultScore float32
	CompareErr   error

	// Call tracking for assertions
	CompareCalls []string
}

func NewMockOracle() *MockOracle {
	return &MockOracle{
		Scores: make(map[string]float32),
	}
}

// Pair builds the Scores key for a candidate/text pairing.
func Pair(candidate, text string) string {
	return candidate + "|" + text
}

func (o *MockOracle) Compare(ctx context.Context, candidate string, texts []string) ([]float32, error) {
	o.CompareCalls = append(o.CompareCalls, candidate)
	if o.CompareErr != nil {
		return nil, o.CompareErr
	}

	confidences := make([]float32, len(texts))
	for i, text := range texts {
		if score, ok := o.Scores[Pair(candidate, text)]; ok {
			confidences[i] = score
		} else if candidate == text {
			confidences[i] = 1.0
		} else {
			confidences[i] = o.DefaultScore
		}
	}
	return confidences, nil
}
