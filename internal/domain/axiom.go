package domain

import (
	"time"

	"github.com/google/uuid"
)

// AxiomTier is the confidence level of a promoted axiom. It is a pure
// function of the principle's final reinforcement count, never of the
// threshold that promoted it.
type AxiomTier string

const (
	TierCore     AxiomTier = "core"     // N >= 5
	TierDomain   AxiomTier = "domain"   // 3 <= N < 5
	TierEmerging AxiomTier = "emerging" // N < 3
)

// TierForCount assigns the tier for a reinforcement count.
func TierForCount(n int) AxiomTier {
	switch {
	case n >= 5:
		return TierCore
	case n >= 3:
		return TierDomain
	default:
		return TierEmerging
	}
}

// PrincipleLink ties an axiom back to a contributing principle and the
// evidence count it carried at promotion time.
type PrincipleLink struct {
	PrincipleID        uuid.UUID `json:"principle_id"`
	ReinforcementCount int       `json:"reinforcement_count"`
}

// Tension records a detected conflict between this axiom and another.
type Tension struct {
	AxiomID     uuid.UUID `json:"axiom_id"`
	Description string    `json:"description,omitempty"`
}

// Admission is the anti-echo-chamber gate's verdict for an axiom's
// backing principle. Blocker explains a failed gate; it is empty when
// Promotable is true.
type Admission struct {
	Promotable bool   `json:"promotable"`
	Blocker    string `json:"blocker,omitempty"`
}

// Axiom is a principle promoted past the evidence bar into the identity
// tier. IDs are stable across incremental cycles.
type Axiom struct {
	ID            uuid.UUID       `json:"id"`
	Tier          AxiomTier       `json:"tier"`
	Dimension     Dimension       `json:"dimension"`
	CanonicalText string          `json:"canonical_text"`
	Notation      string          `json:"notation,omitempty"`
	Principles    []PrincipleLink `json:"principles"`
	Tensions      []Tension       `json:"tensions,omitempty"`
	Admission     Admission       `json:"admission"`
	PromotedAt    time.Time       `json:"promoted_at"`
}
