package service

import (
	"context"
	"fmt"

	"github.com/live-neon/neon-soul-sub008/internal/domain"
	"go.uber.org/zap"
)

// CycleMode is how a synthesis run treats prior state.
type CycleMode string

const (
	// CycleInitial builds the first soul from scratch.
	CycleInitial CycleMode = "initial"
	// CycleIncremental folds new evidence into the existing soul, keeping
	// axiom identities stable.
	CycleIncremental CycleMode = "incremental"
	// CycleFullResynthesis rebuilds the axiom set from the merged
	// principle pool, discarding prior axiom identities.
	CycleFullResynthesis CycleMode = "full_resynthesis"
)

// CycleTrigger names one reason a run escalated to full resynthesis.
type CycleTrigger string

const (
	TriggerForced        CycleTrigger = "forced"
	TriggerNewPrinciples CycleTrigger = "new_principle_ratio"
	TriggerPriorityShift CycleTrigger = "axiom_priority_shift"
	TriggerContradiction CycleTrigger = "contradictions"
)

const (
	// DefaultResynthesisRatio is the share of newly created principles
	// past which incremental merging stops being trustworthy.
	DefaultResynthesisRatio = 0.30
	// DefaultContradictionLimit is how many contradictions between newly
	// founded principles and the prior axiom set force a rebuild.
	DefaultContradictionLimit = 2
)

// CycleDecision explains which mode a run chose and why.
type CycleDecision struct {
	Mode           CycleMode      `json:"mode"`
	Reason         string         `json:"reason"`
	Triggers       []CycleTrigger `json:"triggers,omitempty"`
	NewRatio       float64        `json:"new_principle_ratio"`
	Contradictions int            `json:"contradictions"`
}

// CycleManager decides between incremental and full-resynthesis runs and
// merges axiom sets so that surviving axioms keep their identities.
type CycleManager struct {
	detector           domain.ContradictionDetector
	resynthesisRatio   float64
	contradictionLimit int
	logger             *zap.Logger
}

func NewCycleManager(detector domain.ContradictionDetector, logger *zap.Logger) *CycleManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CycleManager{
		detector:           detector,
		resynthesisRatio:   DefaultResynthesisRatio,
		contradictionLimit: DefaultContradictionLimit,
		logger:             logger,
	}
}

// SetResynthesisRatio overrides the new-principle ratio trigger.
func (m *CycleManager) SetResynthesisRatio(ratio float64) {
	m.resynthesisRatio = ratio
}

// DecideCycleMode picks the mode for a run. With no prior soul every run
// is initial. Otherwise any fired trigger escalates to full resynthesis;
// a quiet run stays incremental.
func (m *CycleManager) DecideCycleMode(ctx context.Context, prior *domain.Soul, fresh []domain.Axiom, created []domain.Principle, totalPrinciples int, force bool) (CycleDecision, error) {
	if prior == nil {
		return CycleDecision{Mode: CycleInitial, Reason: "no prior soul"}, nil
	}

	decision := CycleDecision{Mode: CycleIncremental, Reason: "no resynthesis trigger fired"}

	if force {
		decision.Triggers = append(decision.Triggers, TriggerForced)
	}

	if totalPrinciples > 0 {
		decision.NewRatio = float64(len(created)) / float64(totalPrinciples)
		if decision.NewRatio > m.resynthesisRatio {
			decision.Triggers = append(decision.Triggers, TriggerNewPrinciples)
		}
	}

	if priorityShifted(prior.Axioms, fresh) {
		decision.Triggers = append(decision.Triggers, TriggerPriorityShift)
	}

	if m.detector != nil {
		count, err := m.countContradictions(ctx, prior.Axioms, created)
		if err != nil {
			return CycleDecision{}, err
		}
		decision.Contradictions = count
		if count >= m.contradictionLimit {
			decision.Triggers = append(decision.Triggers, TriggerContradiction)
		}
	}

	if len(decision.Triggers) > 0 {
		decision.Mode = CycleFullResynthesis
		decision.Reason = resynthesisReason(decision)
	}

	m.logger.Info("cycle mode decided",
		zap.String("mode", string(decision.Mode)),
		zap.String("reason", decision.Reason),
		zap.Float64("new_principle_ratio", decision.NewRatio),
		zap.Int("contradictions", decision.Contradictions))

	return decision, nil
}

func resynthesisReason(d CycleDecision) string {
	for _, t := range d.Triggers {
		switch t {
		case TriggerForced:
			return "resynthesis forced by caller"
		case TriggerNewPrinciples:
			return fmt.Sprintf("%.0f%% of principles are new this run", d.NewRatio*100)
		case TriggerPriorityShift:
			return "axiom priority ordering changed"
		case TriggerContradiction:
			return fmt.Sprintf("%d contradictions against the prior axiom set", d.Contradictions)
		}
	}
	return "resynthesis triggered"
}

// priorityShifted reports whether axioms present in both sets appear in a
// different priority order. Both inputs are already sorted by priority,
// so a changed relative order of shared texts means the identity's
// emphasis moved.
func priorityShifted(prior, fresh []domain.Axiom) bool {
	rank := make(map[string]int, len(fresh))
	for i, a := range fresh {
		rank[a.CanonicalText] = i
	}

	last := -1
	for _, a := range prior {
		pos, ok := rank[a.CanonicalText]
		if !ok {
			continue
		}
		if pos < last {
			return true
		}
		last = pos
	}
	return false
}

// countContradictions pairs every prior axiom with every principle
// founded this run. New principles are the operative side: opposing
// evidence matters long before it clears the promotion bar, so a single
// N=1 principle that negates a standing axiom already counts.
func (m *CycleManager) countContradictions(ctx context.Context, prior []domain.Axiom, created []domain.Principle) (int, error) {
	count := 0
	for _, a := range prior {
		for _, p := range created {
			if a.CanonicalText == p.CanonicalText {
				continue
			}
			conflict, err := m.detector.Contradicts(ctx, a.CanonicalText, p.CanonicalText)
			if err != nil {
				return 0, &OracleError{Op: "detect cycle contradictions", Err: err}
			}
			if conflict {
				count++
			}
		}
	}
	return count, nil
}

// MergeAxioms carries identities forward across an incremental run: a
// fresh axiom whose canonical text matches a prior one keeps the prior
// id and promotion time, while its tier and evidence links come from the
// current run. Unmatched fresh axioms keep their new identities; prior
// axioms with no fresh counterpart are dropped, since their backing
// principles no longer clear the bar.
func (m *CycleManager) MergeAxioms(prior, fresh []domain.Axiom) []domain.Axiom {
	byText := make(map[string]*domain.Axiom, len(prior))
	for i := range prior {
		byText[prior[i].CanonicalText] = &prior[i]
	}

	merged := make([]domain.Axiom, len(fresh))
	for i, a := range fresh {
		if old, ok := byText[a.CanonicalText]; ok {
			a.ID = old.ID
			a.PromotedAt = old.PromotedAt
		}
		merged[i] = a
	}
	return merged
}
