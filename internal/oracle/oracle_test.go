package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/live-neon/neon-soul-sub008/internal/embedding"
)

func TestNewEmbeddingOracle_RequiresClient(t *testing.T) {
	if _, err := NewEmbeddingOracle(nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestEmbeddingOracle_IdenticalTextScoresOne(t *testing.T) {
	client := embedding.NewMockClient()
	o, err := NewEmbeddingOracle(client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	confidences, err := o.Compare(context.Background(), "I value honesty", []string{"I value honesty"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(confidences) != 1 {
		t.Fatalf("expected 1 confidence, got %d", len(confidences))
	}
	if confidences[0] < 0.999 {
		t.Errorf("identical text should score ~1.0, got %f", confidences[0])
	}
}

func TestEmbeddingOracle_ConfidencesStayInRange(t *testing.T) {
	client := embedding.NewMockClient()
	// Opposed vectors cosine to -1; the oracle clamps to 0.
	client.Vectors["up"] = []float32{0, 1}
	client.Vectors["down"] = []float32{0, -1}

	o, _ := NewEmbeddingOracle(client)
	confidences, err := o.Compare(context.Background(), "up", []string{"down", "up"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confidences[0] != 0 {
		t.Errorf("opposed vectors should clamp to 0, got %f", confidences[0])
	}
	if confidences[1] != 1 {
		t.Errorf("identical vectors should score 1, got %f", confidences[1])
	}
}

func TestEmbeddingOracle_EmptyListSkipsEmbedding(t *testing.T) {
	client := embedding.NewMockClient()
	o, _ := NewEmbeddingOracle(client)

	confidences, err := o.Compare(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confidences != nil {
		t.Errorf("expected nil confidences, got %v", confidences)
	}
	if len(client.EmbedCalls) != 0 {
		t.Errorf("embedding consulted for empty list: %d calls", len(client.EmbedCalls))
	}
}

func TestEmbeddingOracle_EmbedFailurePropagates(t *testing.T) {
	client := embedding.NewMockClient()
	client.EmbedErr = errors.New("embedding api down")

	o, _ := NewEmbeddingOracle(client)
	if _, err := o.Compare(context.Background(), "a", []string{"b"}); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}

func TestMockOracle_ScoresAndDefaults(t *testing.T) {
	mock := NewMockOracle()
	mock.Scores[Pair("a", "b")] = 0.9
	mock.DefaultScore = 0.1

	confidences, err := mock.Compare(context.Background(), "a", []string{"b", "a", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float32{0.9, 1.0, 0.1}
	for i, w := range want {
		if confidences[i] != w {
			t.Errorf("confidence %d: expected %f, got %f", i, w, confidences[i])
		}
	}
}
