package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/live-neon/neon-soul-sub008/internal/domain"
	"go.uber.org/zap"
)

// DefaultMatchThreshold is the reinforcement bar: oracle confidence at or
// above it merges a signal into an existing principle.
const DefaultMatchThreshold = 0.85

// AddAction reports what AddSignal did with a signal.
type AddAction string

const (
	ActionCreated    AddAction = "created"
	ActionReinforced AddAction = "reinforced"
	ActionSkipped    AddAction = "skipped"
)

// AddResult is the outcome of one AddSignal call.
type AddResult struct {
	Action      AddAction `json:"action"`
	PrincipleID uuid.UUID `json:"principle_id"`
	Similarity  float32   `json:"similarity"`
}

// PrincipleStore accumulates signals into principles. It is a per-run
// object owned by one caller; it is not internally synchronized, and the
// workspace lock serializes everything that mutates it during a cycle.
type PrincipleStore struct {
	matcher    *Matcher
	classifier domain.Classifier
	logger     *zap.Logger

	threshold  float32
	principles []*domain.Principle
	byID       map[uuid.UUID]*domain.Principle
	seen       map[uuid.UUID]uuid.UUID // signal id -> owning principle
}

// NewPrincipleStore creates an empty store. Both the matcher and the
// classifier are mandatory; a store without them is a programming error,
// not a store with weaker matching.
func NewPrincipleStore(matcher *Matcher, classifier domain.Classifier, logger *zap.Logger) (*PrincipleStore, error) {
	if matcher == nil {
		return nil, fmt.Errorf("principle store requires a matcher")
	}
	if classifier == nil {
		return nil, fmt.Errorf("principle store requires a dimension classifier")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrincipleStore{
		matcher:    matcher,
		classifier: classifier,
		logger:     logger,
		threshold:  DefaultMatchThreshold,
		byID:       make(map[uuid.UUID]*domain.Principle),
		seen:       make(map[uuid.UUID]uuid.UUID),
	}, nil
}

// Threshold returns the match threshold currently in effect.
func (s *PrincipleStore) Threshold() float32 {
	return s.threshold
}

// SetThreshold changes the match threshold for signals added from now on.
// Existing principles and their counts are untouched: provenance stays
// auditable as "whatever matched at call time".
func (s *PrincipleStore) SetThreshold(v float32) {
	s.logger.Info("match threshold changed",
		zap.Float32("old", s.threshold),
		zap.Float32("new", v))
	s.threshold = v
}

// Seed loads previously persisted principles, registering their signals so
// re-ingestion stays idempotent across incremental cycles.
func (s *PrincipleStore) Seed(principles []domain.Principle) {
	for i := range principles {
		p := principles[i]
		s.principles = append(s.principles, &p)
		s.byID[p.ID] = &p
		for _, sig := range p.Signals {
			s.seen[sig.ID] = p.ID
		}
	}
}

// AddSignal folds one signal into the store: a duplicate id is skipped, a
// close-enough match reinforces the owning principle, anything else founds
// a new principle with the signal's text as canon.
func (s *PrincipleStore) AddSignal(ctx context.Context, sig domain.Signal, dimensionHint *domain.Dimension) (AddResult, error) {
	if sig.ID == uuid.Nil {
		return AddResult{}, ErrSignalIDMissing
	}
	if sig.Text == "" {
		return AddResult{}, ErrSignalTextEmpty
	}

	if owner, ok := s.seen[sig.ID]; ok {
		return AddResult{Action: ActionSkipped, PrincipleID: owner}, nil
	}

	dim, err := s.resolveDimension(ctx, sig, dimensionHint)
	if err != nil {
		return AddResult{}, err
	}
	sig.Dimension = dim

	candidates := s.inDimension(dim)
	texts := make([]string, len(candidates))
	for i, p := range candidates {
		texts[i] = p.CanonicalText
	}

	match, err := s.matcher.MatchBest(ctx, sig.Text, texts, s.threshold)
	if err != nil {
		return AddResult{}, err
	}

	now := time.Now()

	if match.Matched {
		p := candidates[match.Index]
		p.Signals = append(p.Signals, sig)
		p.ReinforcementCount++
		p.LastMatchThreshold = s.threshold
		p.History = append(p.History, domain.HistoryEntry{
			Event:      domain.PrincipleReinforced,
			SignalID:   sig.ID,
			Similarity: match.Confidence,
			Threshold:  s.threshold,
			At:         now,
		})
		s.seen[sig.ID] = p.ID

		s.logger.Debug("principle reinforced",
			zap.String("principle_id", p.ID.String()),
			zap.String("dimension", string(dim)),
			zap.Int("reinforcement_count", p.ReinforcementCount),
			zap.Float32("similarity", match.Confidence))

		return AddResult{Action: ActionReinforced, PrincipleID: p.ID, Similarity: match.Confidence}, nil
	}

	p := &domain.Principle{
		ID:                 uuid.New(),
		Dimension:          dim,
		CanonicalText:      sig.Text,
		ReinforcementCount: 1,
		Signals:            []domain.Signal{sig},
		LastMatchThreshold: s.threshold,
		CreatedAt:          now,
		History: []domain.HistoryEntry{{
			Event:      domain.PrincipleCreated,
			SignalID:   sig.ID,
			Similarity: match.Confidence,
			Threshold:  s.threshold,
			At:         now,
		}},
	}
	s.principles = append(s.principles, p)
	s.byID[p.ID] = p
	s.seen[sig.ID] = p.ID

	s.logger.Debug("principle created",
		zap.String("principle_id", p.ID.String()),
		zap.String("dimension", string(dim)))

	return AddResult{Action: ActionCreated, PrincipleID: p.ID, Similarity: match.Confidence}, nil
}

// Principles returns a snapshot of all principles in insertion order.
func (s *PrincipleStore) Principles() []domain.Principle {
	out := make([]domain.Principle, len(s.principles))
	for i, p := range s.principles {
		out[i] = *p
	}
	return out
}

// Len returns the number of principles in the store.
func (s *PrincipleStore) Len() int {
	return len(s.principles)
}

func (s *PrincipleStore) inDimension(dim domain.Dimension) []*domain.Principle {
	var out []*domain.Principle
	for _, p := range s.principles {
		if p.Dimension == dim {
			out = append(out, p)
		}
	}
	return out
}

func (s *PrincipleStore) resolveDimension(ctx context.Context, sig domain.Signal, hint *domain.Dimension) (domain.Dimension, error) {
	if hint != nil && domain.ValidDimension(string(*hint)) {
		return *hint, nil
	}
	if domain.ValidDimension(string(sig.Dimension)) {
		return sig.Dimension, nil
	}

	dim, err := s.classifier.Classify(ctx, sig.Text)
	if err != nil {
		return "", &OracleError{Op: fmt.Sprintf("classify signal %s", sig.ID), Err: err}
	}
	if !domain.ValidDimension(string(dim)) {
		dim = domain.DimensionGeneral
	}
	return dim, nil
}

// ClassifyDimensions classifies a batch of texts. When the classifier
// offers the optional batch capability it is used in one call; otherwise
// each text is classified sequentially, in order. The fallback is always
// correct, just slower.
func ClassifyDimensions(ctx context.Context, classifier domain.Classifier, texts []string) ([]domain.Dimension, error) {
	if classifier == nil {
		return nil, &OracleError{Op: "classify dimensions"}
	}
	if len(texts) == 0 {
		return nil, nil
	}

	if batch, ok := classifier.(domain.BatchClassifier); ok {
		dims, err := batch.ClassifyBatch(ctx, texts)
		if err != nil {
			return nil, &OracleError{Op: "classify dimensions", Err: err}
		}
		if len(dims) != len(texts) {
			return nil, &OracleError{Op: "classify dimensions", Err: fmt.Errorf("got %d dimensions for %d texts", len(dims), len(texts))}
		}
		return dims, nil
	}

	dims := make([]domain.Dimension, len(texts))
	for i, text := range texts {
		dim, err := classifier.Classify(ctx, text)
		if err != nil {
			return nil, &OracleError{Op: "classify dimensions", Err: err}
		}
		dims[i] = dim
	}
	return dims, nil
}
