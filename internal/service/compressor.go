package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/live-neon/neon-soul-sub008/internal/domain"
	"go.uber.org/zap"
)

// Compression constants
const (
	// Cascade search
	CascadeStartThreshold = 3 // first threshold tried
	MinAxiomYield         = 3 // cascade stops at the first threshold yielding this many

	// Guardrails
	CognitiveLoadCap = 30 // absolute ceiling on a useful axiom count

	// Anti-echo-chamber defaults
	DefaultMinPrincipleCount      = 3
	DefaultMinProvenanceDiversity = 2
)

// PromotionCriteria parameterizes the anti-echo-chamber gate.
type PromotionCriteria struct {
	MinPrincipleCount      int
	MinProvenanceDiversity int
}

func DefaultPromotionCriteria() PromotionCriteria {
	return PromotionCriteria{
		MinPrincipleCount:      DefaultMinPrincipleCount,
		MinProvenanceDiversity: DefaultMinProvenanceDiversity,
	}
}

// GuardrailKind identifies a compression-health warning.
type GuardrailKind string

const (
	GuardrailExpansion     GuardrailKind = "expansion"      // more axioms than signals
	GuardrailCognitiveLoad GuardrailKind = "cognitive_load" // too many axioms to be useful
	GuardrailFallback      GuardrailKind = "fallback"       // cascade bottomed out at threshold 1
)

// GuardrailWarning is advisory. It travels with results and never blocks them.
type GuardrailWarning struct {
	Kind    GuardrailKind `json:"kind"`
	Message string        `json:"message"`
}

// ThresholdAttempt records one cascade level and the axiom count it yielded.
type ThresholdAttempt struct {
	Threshold  int `json:"threshold"`
	AxiomCount int `json:"axiom_count"`
}

// CompressionMetrics describes how a compression run went.
type CompressionMetrics struct {
	EffectiveThreshold int                `json:"effective_threshold"`
	Attempts           []ThresholdAttempt `json:"attempts,omitempty"`
	PrincipleCount     int                `json:"principle_count"`
	SignalCount        int                `json:"signal_count"`
	AxiomCount         int                `json:"axiom_count"`
	UnconvergedCount   int                `json:"unconverged_count"`
	Warnings           []GuardrailWarning `json:"warnings,omitempty"`
}

// CompressionResult carries promoted axioms alongside every principle that
// did not make the bar. Unconverged principles are partial results, never
// discarded.
type CompressionResult struct {
	Axioms      []domain.Axiom     `json:"axioms"`
	Unconverged []domain.Principle `json:"unconverged"`
	Metrics     CompressionMetrics `json:"metrics"`
}

// Compressor promotes principles past an evidence bar into tiered axioms.
// The tension detector is optional; the generator is not.
type Compressor struct {
	generator domain.Generator
	detector  domain.ContradictionDetector
	criteria  PromotionCriteria
	logger    *zap.Logger
}

func NewCompressor(generator domain.Generator, logger *zap.Logger) (*Compressor, error) {
	if generator == nil {
		return nil, fmt.Errorf("compressor requires a text generator")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compressor{
		generator: generator,
		criteria:  DefaultPromotionCriteria(),
		logger:    logger,
	}, nil
}

// SetTensionDetector enables pairwise tension detection between promoted
// axioms. Without one, axioms simply carry no tensions.
func (c *Compressor) SetTensionDetector(d domain.ContradictionDetector) {
	c.detector = d
}

// SetCriteria overrides the anti-echo-chamber gate parameters.
func (c *Compressor) SetCriteria(criteria PromotionCriteria) {
	c.criteria = criteria
}

// CompressPrinciples promotes every principle with N >= threshold. The tier
// comes from N alone; the threshold only decides who gets in, never how
// high they sit. Each axiom carries the admission gate's verdict so
// downstream consumers can tell vetted identity from self-repetition.
func (c *Compressor) CompressPrinciples(principles []domain.Principle, threshold int) CompressionResult {
	result := CompressionResult{
		Metrics: CompressionMetrics{
			EffectiveThreshold: threshold,
			PrincipleCount:     len(principles),
		},
	}

	now := time.Now()
	for i := range principles {
		p := principles[i]
		result.Metrics.SignalCount += p.ReinforcementCount

		if p.ReinforcementCount < threshold {
			result.Unconverged = append(result.Unconverged, p)
			continue
		}

		result.Axioms = append(result.Axioms, domain.Axiom{
			ID:            uuid.New(),
			Tier:          domain.TierForCount(p.ReinforcementCount),
			Dimension:     p.Dimension,
			CanonicalText: p.CanonicalText,
			Principles: []domain.PrincipleLink{{
				PrincipleID:        p.ID,
				ReinforcementCount: p.ReinforcementCount,
			}},
			Admission:  c.CanPromote(p, c.criteria),
			PromotedAt: now,
		})
	}

	// Strongest evidence first; input order breaks ties for determinism.
	sort.SliceStable(result.Axioms, func(i, j int) bool {
		return result.Axioms[i].Principles[0].ReinforcementCount > result.Axioms[j].Principles[0].ReinforcementCount
	})

	result.Metrics.AxiomCount = len(result.Axioms)
	result.Metrics.UnconvergedCount = len(result.Unconverged)
	result.Metrics.Warnings = c.CheckGuardrails(
		result.Metrics.AxiomCount, result.Metrics.SignalCount, threshold)

	return result
}

// CompressWithCascade searches downward from the start threshold for the
// highest bar that still yields enough axioms, accepting the threshold-1
// result when none does. A sparse principle set may legitimately produce
// zero axioms; nothing is fabricated to pad the result.
func (c *Compressor) CompressWithCascade(principles []domain.Principle) CompressionResult {
	var result CompressionResult
	var attempts []ThresholdAttempt

	for threshold := CascadeStartThreshold; threshold >= 1; threshold-- {
		result = c.CompressPrinciples(principles, threshold)
		attempts = append(attempts, ThresholdAttempt{
			Threshold:  threshold,
			AxiomCount: result.Metrics.AxiomCount,
		})
		if result.Metrics.AxiomCount >= MinAxiomYield {
			break
		}
	}

	result.Metrics.Attempts = attempts

	c.logger.Info("compression cascade finished",
		zap.Int("effective_threshold", result.Metrics.EffectiveThreshold),
		zap.Int("axioms", result.Metrics.AxiomCount),
		zap.Int("unconverged", result.Metrics.UnconvergedCount),
		zap.Int("levels_tried", len(attempts)))

	return result
}

// CheckGuardrails computes three independent compression-health warnings.
// All are advisory: the caller gets them attached to results and decides
// what to do.
func (c *Compressor) CheckGuardrails(axiomCount, signalCount, effectiveThreshold int) []GuardrailWarning {
	var warnings []GuardrailWarning

	if axiomCount > signalCount {
		warnings = append(warnings, GuardrailWarning{
			Kind: GuardrailExpansion,
			Message: fmt.Sprintf("compression expanded: %d axioms from %d signals",
				axiomCount, signalCount),
		})
	}

	load := float64(signalCount) * 0.5
	if load > CognitiveLoadCap {
		load = CognitiveLoadCap
	}
	if float64(axiomCount) > load {
		warnings = append(warnings, GuardrailWarning{
			Kind: GuardrailCognitiveLoad,
			Message: fmt.Sprintf("%d axioms exceeds cognitive load limit %.0f for %d signals",
				axiomCount, load, signalCount),
		})
	}

	if effectiveThreshold == 1 {
		warnings = append(warnings, GuardrailWarning{
			Kind:    GuardrailFallback,
			Message: "cascade fell back to threshold 1; every principle promoted",
		})
	}

	return warnings
}

// CanPromote is the anti-echo-chamber gate. It is stricter than and
// independent from the raw evidence count: a principle backed entirely by
// self-sourced, self-affirming signals is never promotable, no matter how
// often it repeats.
func (c *Compressor) CanPromote(p domain.Principle, criteria PromotionCriteria) domain.Admission {
	if p.ReinforcementCount < criteria.MinPrincipleCount {
		return domain.Admission{
			Blocker: fmt.Sprintf("%d reinforcements, need at least %d",
				p.ReinforcementCount, criteria.MinPrincipleCount),
		}
	}

	if diversity := p.ProvenanceDiversity(); diversity < criteria.MinProvenanceDiversity {
		return domain.Admission{
			Blocker: fmt.Sprintf("%d distinct provenance tags, need at least %d",
				diversity, criteria.MinProvenanceDiversity),
		}
	}

	challenged := p.HasStance(domain.StanceQuestion, domain.StanceDeny)
	external := p.HasProvenance(domain.ProvenanceExternal)
	if !challenged && !external {
		return domain.Admission{
			Blocker: "no questioning or denying signal and no external observation; evidence is self-affirming",
		}
	}

	return domain.Admission{Promotable: true}
}

// AnnotateAxioms fills each axiom's display notation via the generator and
// detects pairwise tensions when a detector is configured. A generator
// failure is fatal: notation is part of the contract, not decoration to
// drop quietly.
func (c *Compressor) AnnotateAxioms(ctx context.Context, axioms []domain.Axiom) error {
	for i := range axioms {
		notation, err := c.generator.Generate(ctx, fmt.Sprintf(axiomNotationPrompt, axioms[i].CanonicalText))
		if err != nil {
			return &OracleError{Op: fmt.Sprintf("annotate axiom %s", axioms[i].ID), Err: err}
		}
		axioms[i].Notation = notation
	}

	if c.detector == nil {
		return nil
	}

	for i := range axioms {
		for j := i + 1; j < len(axioms); j++ {
			conflict, err := c.detector.Contradicts(ctx, axioms[i].CanonicalText, axioms[j].CanonicalText)
			if err != nil {
				return &OracleError{Op: "detect axiom tensions", Err: err}
			}
			if !conflict {
				continue
			}
			desc := fmt.Sprintf("conflicts with %q", axioms[j].CanonicalText)
			axioms[i].Tensions = append(axioms[i].Tensions, domain.Tension{AxiomID: axioms[j].ID, Description: desc})
			axioms[j].Tensions = append(axioms[j].Tensions, domain.Tension{
				AxiomID:     axioms[i].ID,
				Description: fmt.Sprintf("conflicts with %q", axioms[i].CanonicalText),
			})
		}
	}

	return nil
}

const axiomNotationPrompt = `Rewrite this identity statement as a single compact first-person axiom, at most twelve words, preserving its meaning. No quotes, no explanation.

Statement: %s`
