package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/live-neon/neon-soul-sub008/internal/domain"
	"go.uber.org/zap"
)

// SynthesisRequest is one batch of signals to fold into a soul.
type SynthesisRequest struct {
	SoulID        uuid.UUID
	Signals       []domain.Signal
	DimensionHint *domain.Dimension
	Force         bool
}

// SignalOutcome reports what happened to one submitted signal.
type SignalOutcome struct {
	SignalID    uuid.UUID `json:"signal_id"`
	Action      AddAction `json:"action"`
	PrincipleID uuid.UUID `json:"principle_id"`
	Similarity  float32   `json:"similarity,omitempty"`
}

// SynthesisReport summarizes a completed run.
type SynthesisReport struct {
	SoulID         uuid.UUID          `json:"soul_id"`
	Decision       CycleDecision      `json:"decision"`
	Outcomes       []SignalOutcome    `json:"outcomes"`
	Metrics        CompressionMetrics `json:"metrics"`
	CycleCount     int                `json:"cycle_count"`
	AxiomCount     int                `json:"axiom_count"`
	PrincipleCount int                `json:"principle_count"`
}

// Synthesizer runs synthesis cycles. It holds only long-lived
// dependencies; all per-run state (principle store, lock, soul file)
// is built fresh inside Run, so concurrent runs against different souls
// never share mutable state.
type Synthesizer struct {
	oracle           domain.SemanticOracle
	classifier       domain.Classifier
	generator        domain.Generator
	detector         domain.ContradictionDetector
	root             string
	threshold        float32
	resynthesisRatio float64
	logger           *zap.Logger
}

func NewSynthesizer(oracle domain.SemanticOracle, classifier domain.Classifier, generator domain.Generator, root string, logger *zap.Logger) (*Synthesizer, error) {
	if oracle == nil {
		return nil, fmt.Errorf("synthesizer requires a semantic oracle")
	}
	if classifier == nil {
		return nil, fmt.Errorf("synthesizer requires a dimension classifier")
	}
	if generator == nil {
		return nil, fmt.Errorf("synthesizer requires a text generator")
	}
	if root == "" {
		return nil, fmt.Errorf("synthesizer requires a workspace root")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{
		oracle:           oracle,
		classifier:       classifier,
		generator:        generator,
		detector:         NewNegationHeuristic(),
		root:             root,
		threshold:        DefaultMatchThreshold,
		resynthesisRatio: DefaultResynthesisRatio,
		logger:           logger,
	}, nil
}

// SetTensionDetector swaps the contradiction detector. Passing nil
// disables tension and contradiction checks.
func (s *Synthesizer) SetTensionDetector(d domain.ContradictionDetector) {
	s.detector = d
}

// SetMatchThreshold sets the similarity bar used when clustering signals
// into principles.
func (s *Synthesizer) SetMatchThreshold(v float32) {
	s.threshold = v
}

// SetResynthesisRatio sets the new-principle share past which a run
// escalates from incremental merging to full resynthesis.
func (s *Synthesizer) SetResynthesisRatio(v float64) {
	s.resynthesisRatio = v
}

// Workspace returns the directory holding one soul's files.
func (s *Synthesizer) Workspace(soulID uuid.UUID) string {
	return filepath.Join(s.root, soulID.String())
}

// GetSoul loads the persisted soul for an id, or nil when none exists.
func (s *Synthesizer) GetSoul(soulID uuid.UUID) (*domain.Soul, error) {
	if soulID == uuid.Nil {
		return nil, fmt.Errorf("soul id is required")
	}
	return NewSoulFile(s.Workspace(soulID), s.logger).Load()
}

// classifySignals fills in missing dimensions for a run's signals up
// front, so a batch-capable classifier is asked once instead of once per
// signal. Signals that already carry a valid dimension keep it; empty
// texts are left for AddSignal to reject.
func (s *Synthesizer) classifySignals(ctx context.Context, signals []domain.Signal) error {
	var idx []int
	var texts []string
	for i, sig := range signals {
		if sig.Text == "" || domain.ValidDimension(string(sig.Dimension)) {
			continue
		}
		idx = append(idx, i)
		texts = append(texts, sig.Text)
	}
	if len(texts) == 0 {
		return nil
	}

	dims, err := ClassifyDimensions(ctx, s.classifier, texts)
	if err != nil {
		return err
	}
	for j, i := range idx {
		dim := dims[j]
		if !domain.ValidDimension(string(dim)) {
			dim = domain.DimensionGeneral
		}
		signals[i].Dimension = dim
	}
	return nil
}

// Run executes one synthesis cycle under the soul's workspace lock:
// load prior state, fold in signals, compress, decide the cycle mode,
// and persist the updated soul atomically.
func (s *Synthesizer) Run(ctx context.Context, req SynthesisRequest) (*domain.Soul, *SynthesisReport, error) {
	if req.SoulID == uuid.Nil {
		return nil, nil, fmt.Errorf("soul id is required")
	}

	workspace := s.Workspace(req.SoulID)
	lock := NewWorkspaceLock(workspace, s.logger)
	if err := lock.Acquire(); err != nil {
		return nil, nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			s.logger.Warn("failed to release workspace lock",
				zap.String("workspace", workspace),
				zap.Error(err))
		}
	}()

	file := NewSoulFile(workspace, s.logger)
	prior, err := file.Load()
	if err != nil {
		return nil, nil, err
	}

	matcher, err := NewMatcher(s.oracle)
	if err != nil {
		return nil, nil, err
	}
	store, err := NewPrincipleStore(matcher, s.classifier, s.logger)
	if err != nil {
		return nil, nil, err
	}
	store.SetThreshold(s.threshold)
	if prior != nil {
		store.Seed(prior.Principles)
	}

	if req.DimensionHint == nil {
		if err := s.classifySignals(ctx, req.Signals); err != nil {
			return nil, nil, err
		}
	}

	outcomes := make([]SignalOutcome, 0, len(req.Signals))
	createdIDs := make(map[uuid.UUID]bool)
	for _, sig := range req.Signals {
		res, err := store.AddSignal(ctx, sig, req.DimensionHint)
		if err != nil {
			return nil, nil, err
		}
		if res.Action == ActionCreated {
			createdIDs[res.PrincipleID] = true
		}
		outcomes = append(outcomes, SignalOutcome{
			SignalID:    sig.ID,
			Action:      res.Action,
			PrincipleID: res.PrincipleID,
			Similarity:  res.Similarity,
		})
	}

	compressor, err := NewCompressor(s.generator, s.logger)
	if err != nil {
		return nil, nil, err
	}
	compressor.SetTensionDetector(s.detector)

	principles := store.Principles()
	var created []domain.Principle
	for _, p := range principles {
		if createdIDs[p.ID] {
			created = append(created, p)
		}
	}

	result := compressor.CompressWithCascade(principles)
	if err := compressor.AnnotateAxioms(ctx, result.Axioms); err != nil {
		return nil, nil, err
	}

	cycles := NewCycleManager(s.detector, s.logger)
	cycles.SetResynthesisRatio(s.resynthesisRatio)
	decision, err := cycles.DecideCycleMode(ctx, prior, result.Axioms, created, store.Len(), req.Force)
	if err != nil {
		return nil, nil, err
	}

	axioms := result.Axioms
	cycleCount := 1
	if prior != nil {
		cycleCount = prior.CycleCount + 1
		if decision.Mode == CycleIncremental {
			axioms = cycles.MergeAxioms(prior.Axioms, result.Axioms)
		}
	}

	soul := &domain.Soul{
		ID:         req.SoulID,
		UpdatedAt:  time.Now(),
		Axioms:     axioms,
		Principles: principles,
		CycleCount: cycleCount,
	}
	if err := file.Save(soul); err != nil {
		return nil, nil, err
	}

	report := &SynthesisReport{
		SoulID:         req.SoulID,
		Decision:       decision,
		Outcomes:       outcomes,
		Metrics:        result.Metrics,
		CycleCount:     cycleCount,
		AxiomCount:     len(axioms),
		PrincipleCount: len(principles),
	}

	s.logger.Info("synthesis cycle complete",
		zap.String("soul_id", req.SoulID.String()),
		zap.String("mode", string(decision.Mode)),
		zap.Int("cycle_count", cycleCount),
		zap.Int("signals", len(req.Signals)),
		zap.Int("axioms", len(axioms)),
		zap.Int("principles", len(principles)))

	return soul, report, nil
}
