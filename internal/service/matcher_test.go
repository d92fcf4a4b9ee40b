package service

import (
	"context"
	"errors"
	"testing"

	"github.com/live-neon/neon-soul-sub008/internal/oracle"
)

func TestNewMatcher_RequiresOracle(t *testing.T) {
	if _, err := NewMatcher(nil); err == nil {
		t.Fatal("expected error for nil oracle")
	}
}

func TestMatcher_EmptyListIsNoMatch(t *testing.T) {
	mock := oracle.NewMockOracle()
	m, err := NewMatcher(mock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := m.MatchBest(context.Background(), "anything", nil, 0.85)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Matched {
		t.Error("expected no match for empty list")
	}
	if result.Index != -1 {
		t.Errorf("expected index -1, got %d", result.Index)
	}
	if len(mock.CompareCalls) != 0 {
		t.Errorf("oracle consulted for empty list: %d calls", len(mock.CompareCalls))
	}
}

func TestMatcher_PicksHighestConfidence(t *testing.T) {
	mock := oracle.NewMockOracle()
	mock.Scores[oracle.Pair("candidate", "a")] = 0.70
	mock.Scores[oracle.Pair("candidate", "b")] = 0.92
	mock.Scores[oracle.Pair("candidate", "c")] = 0.88

	m, _ := NewMatcher(mock)
	result, err := m.MatchBest(context.Background(), "candidate", []string{"a", "b", "c"}, 0.85)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Matched {
		t.Fatal("expected a match")
	}
	if result.Index != 1 || result.Text != "b" {
		t.Errorf("expected index 1 (b), got %d (%s)", result.Index, result.Text)
	}
	if result.Confidence != 0.92 {
		t.Errorf("expected confidence 0.92, got %f", result.Confidence)
	}
}

func TestMatcher_TieBreaksTowardFirst(t *testing.T) {
	mock := oracle.NewMockOracle()
	mock.Scores[oracle.Pair("candidate", "first")] = 0.90
	mock.Scores[oracle.Pair("candidate", "second")] = 0.90

	m, _ := NewMatcher(mock)
	result, err := m.MatchBest(context.Background(), "candidate", []string{"first", "second"}, 0.85)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Index != 0 {
		t.Errorf("tie should break toward index 0, got %d", result.Index)
	}
}

func TestMatcher_BelowThresholdIsNoMatch(t *testing.T) {
	mock := oracle.NewMockOracle()
	mock.Scores[oracle.Pair("candidate", "a")] = 0.84

	m, _ := NewMatcher(mock)
	result, err := m.MatchBest(context.Background(), "candidate", []string{"a"}, 0.85)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Matched {
		t.Error("0.84 should not clear a 0.85 threshold")
	}
	if result.Confidence != 0.84 {
		t.Errorf("expected best confidence reported, got %f", result.Confidence)
	}
}

func TestMatcher_OracleFailureIsFatal(t *testing.T) {
	mock := oracle.NewMockOracle()
	mock.CompareErr = errors.New("embedding api down")

	m, _ := NewMatcher(mock)
	_, err := m.MatchBest(context.Background(), "candidate", []string{"a"}, 0.85)
	if err == nil {
		t.Fatal("expected error when oracle fails")
	}
	var oracleErr *OracleError
	if !errors.As(err, &oracleErr) {
		t.Errorf("expected OracleError, got %T", err)
	}
}

func TestMatcher_ConfidenceCountMismatch(t *testing.T) {
	m, _ := NewMatcher(shortOracle{})
	_, err := m.MatchBest(context.Background(), "candidate", []string{"a", "b"}, 0.85)
	if err == nil {
		t.Fatal("expected error for mismatched confidence count")
	}
	var oracleErr *OracleError
	if !errors.As(err, &oracleErr) {
		t.Errorf("expected OracleError, got %T", err)
	}
}

// shortOracle returns fewer confidences than texts.
type shortOracle struct{}

func (shortOracle) Compare(ctx context.Context, candidate string, texts []string) ([]float32, error) {
	return []float32{0.5}, nil
}
