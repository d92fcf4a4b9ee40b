package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/live-neon/neon-soul-sub008/internal/domain"
	"github.com/live-neon/neon-soul-sub008/internal/llm"
	"github.com/live-neon/neon-soul-sub008/internal/oracle"
	"go.uber.org/zap"
)

func newTestSynthesizer(t *testing.T, mock *oracle.MockOracle, client *llm.MockClient) *Synthesizer {
	t.Helper()
	s, err := NewSynthesizer(mock, client, client, t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func signalsFromTexts(texts ...string) []domain.Signal {
	signals := make([]domain.Signal, len(texts))
	for i, text := range texts {
		signals[i] = domain.Signal{
			ID:         uuid.New(),
			Text:       text,
			Provenance: domain.ProvenanceSelf,
			Stance:     domain.StanceAssert,
			Dimension:  domain.DimensionValues,
		}
	}
	return signals
}

func TestSynthesizer_FirstRunIsInitial(t *testing.T) {
	s := newTestSynthesizer(t, oracle.NewMockOracle(), llm.NewMockClient())
	soulID := uuid.New()

	soul, report, err := s.Run(context.Background(), SynthesisRequest{
		SoulID:  soulID,
		Signals: signalsFromTexts("I value honesty", "I speak plainly"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Decision.Mode != CycleInitial {
		t.Errorf("expected initial mode, got %s", report.Decision.Mode)
	}
	if soul.CycleCount != 1 {
		t.Errorf("expected cycle count 1, got %d", soul.CycleCount)
	}
	if len(soul.Principles) != 2 {
		t.Errorf("expected 2 principles, got %d", len(soul.Principles))
	}

	// The soul survives on disk.
	if _, err := os.Stat(filepath.Join(s.Workspace(soulID), SoulFileName)); err != nil {
		t.Errorf("soul file not written: %v", err)
	}

	loaded, err := s.GetSoul(soulID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded == nil || loaded.ID != soulID {
		t.Error("persisted soul does not round-trip")
	}
}

func TestSynthesizer_CycleCountIncrements(t *testing.T) {
	s := newTestSynthesizer(t, oracle.NewMockOracle(), llm.NewMockClient())
	soulID := uuid.New()
	ctx := context.Background()

	if _, _, err := s.Run(ctx, SynthesisRequest{SoulID: soulID, Signals: signalsFromTexts("a")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	soul, report, err := s.Run(ctx, SynthesisRequest{SoulID: soulID, Signals: nil})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if soul.CycleCount != 2 {
		t.Errorf("expected cycle count 2, got %d", soul.CycleCount)
	}
	if report.Decision.Mode != CycleIncremental {
		t.Errorf("a signal-free second run should be incremental, got %s", report.Decision.Mode)
	}
}

func TestSynthesizer_ReingestionIsIdempotent(t *testing.T) {
	s := newTestSynthesizer(t, oracle.NewMockOracle(), llm.NewMockClient())
	soulID := uuid.New()
	ctx := context.Background()

	signals := signalsFromTexts("I value honesty")
	if _, _, err := s.Run(ctx, SynthesisRequest{SoulID: soulID, Signals: signals}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same signal ids again on the next cycle.
	soul, report, err := s.Run(ctx, SynthesisRequest{SoulID: soulID, Signals: signals})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Outcomes[0].Action != ActionSkipped {
		t.Errorf("expected skipped on re-ingestion, got %s", report.Outcomes[0].Action)
	}
	if len(soul.Principles) != 1 || soul.Principles[0].ReinforcementCount != 1 {
		t.Error("re-ingestion must not grow principles or counts")
	}
}

func TestSynthesizer_ForceTriggersResynthesis(t *testing.T) {
	s := newTestSynthesizer(t, oracle.NewMockOracle(), llm.NewMockClient())
	soulID := uuid.New()
	ctx := context.Background()

	if _, _, err := s.Run(ctx, SynthesisRequest{SoulID: soulID, Signals: signalsFromTexts("a")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, report, err := s.Run(ctx, SynthesisRequest{SoulID: soulID, Force: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Decision.Mode != CycleFullResynthesis {
		t.Errorf("expected full resynthesis when forced, got %s", report.Decision.Mode)
	}
}

func TestSynthesizer_PromotesReinforcedPrinciples(t *testing.T) {
	mock := oracle.NewMockOracle()
	// Every variant of the honesty statement matches the founding text.
	variants := []string{
		"Honesty matters most to me",
		"I will not trade honesty for comfort",
		"Being honest defines me",
	}
	for _, v := range variants {
		mock.Scores[oracle.Pair(v, "I value honesty")] = 0.95
	}

	client := llm.NewMockClient()
	client.GenerateResponse = "Honesty first"
	s := newTestSynthesizer(t, mock, client)
	soulID := uuid.New()

	signals := signalsFromTexts(append([]string{"I value honesty"}, variants...)...)
	// Mixed evidence so the admission gate has something to approve.
	signals[1].Provenance = domain.ProvenanceExternal

	soul, report, err := s.Run(context.Background(), SynthesisRequest{SoulID: soulID, Signals: signals})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(soul.Principles) != 1 {
		t.Fatalf("expected 1 principle, got %d", len(soul.Principles))
	}
	if soul.Principles[0].ReinforcementCount != 4 {
		t.Errorf("expected count 4, got %d", soul.Principles[0].ReinforcementCount)
	}

	if len(soul.Axioms) != 1 {
		t.Fatalf("expected 1 axiom, got %d", len(soul.Axioms))
	}
	axiom := soul.Axioms[0]
	if axiom.Tier != domain.TierDomain {
		t.Errorf("count 4 should be domain tier, got %s", axiom.Tier)
	}
	if axiom.CanonicalText != "I value honesty" {
		t.Errorf("axiom should carry the founding text, got %q", axiom.CanonicalText)
	}
	if axiom.Notation != "Honesty first" {
		t.Errorf("axiom notation not annotated: %q", axiom.Notation)
	}
	if !axiom.Admission.Promotable {
		t.Errorf("externally corroborated principle should pass admission, blocked by %q", axiom.Admission.Blocker)
	}

	// Cascade bottomed out at 1 since only one axiom emerged.
	if report.Metrics.EffectiveThreshold != 1 {
		t.Errorf("expected threshold 1, got %d", report.Metrics.EffectiveThreshold)
	}
}

func TestSynthesizer_IncrementalRunKeepsAxiomIDs(t *testing.T) {
	mock := oracle.NewMockOracle()
	client := llm.NewMockClient()
	s := newTestSynthesizer(t, mock, client)
	soulID := uuid.New()
	ctx := context.Background()

	first, _, err := s.Run(ctx, SynthesisRequest{SoulID: soulID, Signals: signalsFromTexts("I value honesty")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Axioms) != 1 {
		t.Fatalf("expected 1 axiom, got %d", len(first.Axioms))
	}
	originalID := first.Axioms[0].ID

	second, report, err := s.Run(ctx, SynthesisRequest{SoulID: soulID, Signals: nil})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Decision.Mode != CycleIncremental {
		t.Fatalf("expected incremental, got %s", report.Decision.Mode)
	}
	if len(second.Axioms) != 1 || second.Axioms[0].ID != originalID {
		t.Error("incremental run must keep the axiom's identity")
	}
}

func TestSynthesizer_CorruptedSoulStartsOver(t *testing.T) {
	s := newTestSynthesizer(t, oracle.NewMockOracle(), llm.NewMockClient())
	soulID := uuid.New()
	ctx := context.Background()

	if _, _, err := s.Run(ctx, SynthesisRequest{SoulID: soulID, Signals: signalsFromTexts("a")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Corrupt the file on disk.
	path := filepath.Join(s.Workspace(soulID), SoulFileName)
	if err := os.WriteFile(path, []byte(`{"id":"not-a-uuid"}`), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	soul, report, err := s.Run(ctx, SynthesisRequest{SoulID: soulID, Signals: signalsFromTexts("b")})
	if err != nil {
		t.Fatalf("corrupted soul must not error: %v", err)
	}
	if report.Decision.Mode != CycleInitial {
		t.Errorf("corrupted soul should restart at initial, got %s", report.Decision.Mode)
	}
	if soul.CycleCount != 1 {
		t.Errorf("expected cycle count reset to 1, got %d", soul.CycleCount)
	}
}

func TestSynthesizer_ContradictingSignalsForceResynthesis(t *testing.T) {
	s := newTestSynthesizer(t, oracle.NewMockOracle(), llm.NewMockClient())
	soulID := uuid.New()
	ctx := context.Background()

	_, _, err := s.Run(ctx, SynthesisRequest{SoulID: soulID, Signals: signalsFromTexts(
		"I value privacy",
		"I love working with dogs",
		"I keep my promises",
		"I speak plainly",
		"I own my mistakes",
	)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Two lone denials. Each founds an N=1 principle far below the
	// promotion bar, yet each opposes a standing axiom.
	denials := signalsFromTexts("I do not value privacy", "I do not love working with dogs")
	for i := range denials {
		denials[i].Provenance = domain.ProvenanceExternal
		denials[i].Stance = domain.StanceDeny
	}

	_, report, err := s.Run(ctx, SynthesisRequest{SoulID: soulID, Signals: denials})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Decision.Contradictions != 2 {
		t.Errorf("expected 2 contradictions, got %d", report.Decision.Contradictions)
	}
	if report.Decision.Mode != CycleFullResynthesis {
		t.Errorf("expected full resynthesis, got %s (%s)", report.Decision.Mode, report.Decision.Reason)
	}
	// 2 of 7 principles are new, so only the contradictions fired.
	if report.Decision.NewRatio > DefaultResynthesisRatio {
		t.Errorf("ratio %.2f should stay under the trigger", report.Decision.NewRatio)
	}
}

func TestSynthesizer_ResynthesisRatioIsConfigurable(t *testing.T) {
	s := newTestSynthesizer(t, oracle.NewMockOracle(), llm.NewMockClient())
	soulID := uuid.New()
	ctx := context.Background()

	if _, _, err := s.Run(ctx, SynthesisRequest{SoulID: soulID, Signals: signalsFromTexts("a", "b", "c", "d")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 1 new of 5 is 0.20: quiet at the default ratio, over a 0.10 one.
	s.SetResynthesisRatio(0.10)
	_, report, err := s.Run(ctx, SynthesisRequest{SoulID: soulID, Signals: signalsFromTexts("e")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Decision.Mode != CycleFullResynthesis {
		t.Errorf("expected full resynthesis at ratio 0.20 > 0.10, got %s", report.Decision.Mode)
	}
	if len(report.Decision.Triggers) != 1 || report.Decision.Triggers[0] != TriggerNewPrinciples {
		t.Errorf("expected new-principle trigger, got %v", report.Decision.Triggers)
	}
}

func TestSynthesizer_BatchClassifiesUnlabeledSignals(t *testing.T) {
	batch := &batchClassifierMock{dims: []domain.Dimension{
		domain.DimensionValues, domain.DimensionVoice,
	}}
	s, err := NewSynthesizer(oracle.NewMockOracle(), batch, llm.NewMockClient(), t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	signals := []domain.Signal{
		{ID: uuid.New(), Text: "I value honesty", Provenance: domain.ProvenanceSelf, Stance: domain.StanceAssert},
		{ID: uuid.New(), Text: "I speak plainly", Provenance: domain.ProvenanceSelf, Stance: domain.StanceAssert},
	}

	soul, _, err := s.Run(context.Background(), SynthesisRequest{SoulID: uuid.New(), Signals: signals})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if batch.batchCalls != 1 {
		t.Errorf("expected one batch classification, got %d", batch.batchCalls)
	}
	if batch.singleCalls != 0 {
		t.Errorf("batch-capable classifier should not be called per signal, got %d calls", batch.singleCalls)
	}
	if len(soul.Principles) != 2 {
		t.Fatalf("expected 2 principles, got %d", len(soul.Principles))
	}
	if soul.Principles[0].Dimension != domain.DimensionValues || soul.Principles[1].Dimension != domain.DimensionVoice {
		t.Errorf("batch dimensions not applied: %s, %s", soul.Principles[0].Dimension, soul.Principles[1].Dimension)
	}
}

func TestSynthesizer_RequiresSoulID(t *testing.T) {
	s := newTestSynthesizer(t, oracle.NewMockOracle(), llm.NewMockClient())

	_, _, err := s.Run(context.Background(), SynthesisRequest{})
	if err == nil {
		t.Fatal("expected error for missing soul id")
	}
}

func TestSynthesizer_ReleasesLockAfterRun(t *testing.T) {
	s := newTestSynthesizer(t, oracle.NewMockOracle(), llm.NewMockClient())
	soulID := uuid.New()
	ctx := context.Background()

	if _, _, err := s.Run(ctx, SynthesisRequest{SoulID: soulID, Signals: signalsFromTexts("a")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(s.Workspace(soulID), LockFileName)); !os.IsNotExist(err) {
		t.Error("lock file should be released after the run")
	}
}
