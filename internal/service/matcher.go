package service

import (
	"context"
	"fmt"

	"github.com/live-neon/neon-soul-sub008/internal/domain"
)

// MatchResult reports the outcome of a single best-match query.
// Index is -1 when nothing matched.
type MatchResult struct {
	Matched    bool    `json:"matched"`
	Index      int     `json:"index"`
	Text       string  `json:"text,omitempty"`
	Confidence float32 `json:"confidence"`
}

// Matcher decides whether a candidate statement is a semantic restatement
// of one of a set of canonical statements. The judgement is made entirely
// by the oracle; the matcher only selects the argmax and applies the
// threshold.
type Matcher struct {
	oracle domain.SemanticOracle
}

func NewMatcher(oracle domain.SemanticOracle) (*Matcher, error) {
	if oracle == nil {
		return nil, fmt.Errorf("matcher requires a semantic oracle")
	}
	return &Matcher{oracle: oracle}, nil
}

// MatchBest returns the best-matching text whose oracle confidence reaches
// threshold. An empty text list is "no match" without consulting the
// oracle. Ties break toward the earlier index so results are deterministic.
func (m *Matcher) MatchBest(ctx context.Context, candidate string, texts []string, threshold float32) (MatchResult, error) {
	none := MatchResult{Index: -1}

	if len(texts) == 0 {
		return none, nil
	}

	confidences, err := m.oracle.Compare(ctx, candidate, texts)
	if err != nil {
		return none, &OracleError{Op: "match best", Err: err}
	}
	if len(confidences) != len(texts) {
		return none, &OracleError{
			Op:  "match best",
			Err: fmt.Errorf("oracle returned %d confidences for %d texts", len(confidences), len(texts)),
		}
	}

	bestIdx := 0
	for i, conf := range confidences {
		if conf > confidences[bestIdx] {
			bestIdx = i
		}
	}

	best := confidences[bestIdx]
	if best < threshold {
		return MatchResult{Index: -1, Confidence: best}, nil
	}

	return MatchResult{
		Matched:    true,
		Index:      bestIdx,
		Text:       texts[bestIdx],
		Confidence: best,
	}, nil
}
