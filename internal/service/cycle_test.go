package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/live-neon/neon-soul-sub008/internal/domain"
	"go.uber.org/zap"
)

func axiomWithText(text string) domain.Axiom {
	return domain.Axiom{
		ID:            uuid.New(),
		Tier:          domain.TierCore,
		Dimension:     domain.DimensionValues,
		CanonicalText: text,
		PromotedAt:    time.Now(),
	}
}

func foundedPrinciple(text string) domain.Principle {
	return domain.Principle{
		ID:                 uuid.New(),
		Dimension:          domain.DimensionValues,
		CanonicalText:      text,
		ReinforcementCount: 1,
	}
}

func foundedN(n int) []domain.Principle {
	out := make([]domain.Principle, n)
	for i := range out {
		out[i] = foundedPrinciple(fmt.Sprintf("principle %d", i))
	}
	return out
}

func priorSoul(axioms ...domain.Axiom) *domain.Soul {
	return &domain.Soul{
		ID:         uuid.New(),
		UpdatedAt:  time.Now(),
		Axioms:     axioms,
		CycleCount: 1,
	}
}

func TestCycleManager_NoPriorSoulIsInitial(t *testing.T) {
	m := NewCycleManager(nil, zap.NewNop())

	decision, err := m.DecideCycleMode(context.Background(), nil, nil, nil, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Mode != CycleInitial {
		t.Errorf("expected initial, got %s", decision.Mode)
	}
}

func TestCycleManager_QuietRunIsIncremental(t *testing.T) {
	m := NewCycleManager(nil, zap.NewNop())
	prior := priorSoul(axiomWithText("a"), axiomWithText("b"))
	fresh := []domain.Axiom{axiomWithText("a"), axiomWithText("b")}

	decision, err := m.DecideCycleMode(context.Background(), prior, fresh, foundedN(1), 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Mode != CycleIncremental {
		t.Errorf("expected incremental, got %s (%s)", decision.Mode, decision.Reason)
	}
	if len(decision.Triggers) != 0 {
		t.Errorf("expected no triggers, got %v", decision.Triggers)
	}
}

func TestCycleManager_ForceFlagTriggersResynthesis(t *testing.T) {
	m := NewCycleManager(nil, zap.NewNop())
	prior := priorSoul()

	decision, err := m.DecideCycleMode(context.Background(), prior, nil, nil, 10, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Mode != CycleFullResynthesis {
		t.Errorf("expected full resynthesis, got %s", decision.Mode)
	}
	if len(decision.Triggers) != 1 || decision.Triggers[0] != TriggerForced {
		t.Errorf("expected forced trigger, got %v", decision.Triggers)
	}
}

func TestCycleManager_NewPrincipleRatioTrigger(t *testing.T) {
	m := NewCycleManager(nil, zap.NewNop())
	prior := priorSoul()

	// 4 of 10 new: 0.40 > 0.30.
	decision, err := m.DecideCycleMode(context.Background(), prior, nil, foundedN(4), 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Mode != CycleFullResynthesis {
		t.Errorf("expected full resynthesis at ratio 0.40, got %s", decision.Mode)
	}

	// Exactly 0.30 does not fire: the trigger is strictly greater-than.
	decision, err = m.DecideCycleMode(context.Background(), prior, nil, foundedN(3), 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Mode != CycleIncremental {
		t.Errorf("ratio 0.30 should not fire, got %s", decision.Mode)
	}
}

func TestCycleManager_PriorityShiftTrigger(t *testing.T) {
	m := NewCycleManager(nil, zap.NewNop())

	a := axiomWithText("a")
	b := axiomWithText("b")
	prior := priorSoul(a, b)

	// Same axioms, reversed priority.
	fresh := []domain.Axiom{axiomWithText("b"), axiomWithText("a")}

	decision, err := m.DecideCycleMode(context.Background(), prior, fresh, nil, 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Mode != CycleFullResynthesis {
		t.Errorf("expected full resynthesis on priority shift, got %s", decision.Mode)
	}

	// A new axiom appearing between existing ones is not a shift.
	fresh = []domain.Axiom{axiomWithText("a"), axiomWithText("c"), axiomWithText("b")}
	decision, err = m.DecideCycleMode(context.Background(), prior, fresh, nil, 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Mode != CycleIncremental {
		t.Errorf("insertion should not count as a shift, got %s", decision.Mode)
	}
}

func TestCycleManager_ContradictionTrigger(t *testing.T) {
	m := NewCycleManager(NewNegationHeuristic(), zap.NewNop())

	prior := priorSoul(
		axiomWithText("I value privacy"),
		axiomWithText("I tell the truth"),
	)
	created := []domain.Principle{
		foundedPrinciple("I do not value privacy"),
		foundedPrinciple("I never tell the truth"),
	}

	decision, err := m.DecideCycleMode(context.Background(), prior, prior.Axioms, created, 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Contradictions != 2 {
		t.Errorf("expected 2 contradictions, got %d", decision.Contradictions)
	}
	if decision.Mode != CycleFullResynthesis {
		t.Errorf("expected full resynthesis at 2 contradictions, got %s", decision.Mode)
	}

	// A single contradiction stays below the limit.
	created = created[:1]
	decision, err = m.DecideCycleMode(context.Background(), prior, prior.Axioms, created, 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Mode != CycleIncremental {
		t.Errorf("one contradiction should not fire, got %s", decision.Mode)
	}
}

func TestCycleManager_SubThresholdPrincipleContradictionsCount(t *testing.T) {
	m := NewCycleManager(NewNegationHeuristic(), zap.NewNop())

	prior := priorSoul(
		axiomWithText("I value privacy"),
		axiomWithText("I love working with dogs"),
		axiomWithText("I keep my promises"),
	)

	// Two lone deny signals founded N=1 principles this run. They are
	// nowhere near the promotion bar, so the fresh axiom set is unchanged,
	// yet they oppose standing axioms and must force a rebuild.
	created := []domain.Principle{
		foundedPrinciple("I do not value privacy"),
		foundedPrinciple("I do not love working with dogs"),
	}

	decision, err := m.DecideCycleMode(context.Background(), prior, prior.Axioms, created, 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Contradictions != 2 {
		t.Errorf("expected 2 contradictions, got %d", decision.Contradictions)
	}
	if decision.Mode != CycleFullResynthesis {
		t.Errorf("expected full resynthesis, got %s (%s)", decision.Mode, decision.Reason)
	}
	if len(decision.Triggers) != 1 || decision.Triggers[0] != TriggerContradiction {
		t.Errorf("expected contradiction trigger only, got %v", decision.Triggers)
	}
}

func TestCycleManager_MergeKeepsAxiomIdentity(t *testing.T) {
	m := NewCycleManager(nil, zap.NewNop())

	old := axiomWithText("I value honesty")
	oldPromotion := old.PromotedAt

	fresh := axiomWithText("I value honesty")
	fresh.Tier = domain.TierDomain
	newcomer := axiomWithText("I own my mistakes")

	merged := m.MergeAxioms([]domain.Axiom{old}, []domain.Axiom{fresh, newcomer})
	if len(merged) != 2 {
		t.Fatalf("expected 2 axioms, got %d", len(merged))
	}

	if merged[0].ID != old.ID {
		t.Error("surviving axiom must keep its prior id")
	}
	if !merged[0].PromotedAt.Equal(oldPromotion) {
		t.Error("surviving axiom must keep its original promotion time")
	}
	if merged[0].Tier != domain.TierDomain {
		t.Error("tier must come from the current run")
	}
	if merged[1].ID != newcomer.ID {
		t.Error("new axiom keeps its fresh id")
	}
}

func TestCycleManager_MergeDropsUnsupportedPrior(t *testing.T) {
	m := NewCycleManager(nil, zap.NewNop())

	old := axiomWithText("I used to believe this")
	fresh := axiomWithText("I believe this now")

	merged := m.MergeAxioms([]domain.Axiom{old}, []domain.Axiom{fresh})
	if len(merged) != 1 {
		t.Fatalf("expected 1 axiom, got %d", len(merged))
	}
	if merged[0].CanonicalText != "I believe this now" {
		t.Error("prior axiom without current evidence must not survive the merge")
	}
}
