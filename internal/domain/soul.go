package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Soul is the persisted synthesis state for one entity: every axiom, the
// full principle set (promoted or not), and a cycle counter that increases
// by exactly one per completed run.
type Soul struct {
	ID         uuid.UUID   `json:"id"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Axioms     []Axiom     `json:"axioms"`
	Principles []Principle `json:"principles"`
	CycleCount int         `json:"cycle_count"`
}

// Validate checks the structural invariants a soul must satisfy before it
// can be trusted. A soul that fails validation is treated as absent, never
// repaired in place.
func (s *Soul) Validate() error {
	if s.ID == uuid.Nil {
		return fmt.Errorf("soul id is missing")
	}
	if s.UpdatedAt.IsZero() {
		return fmt.Errorf("soul %s: updated_at is missing", s.ID)
	}
	if s.CycleCount < 1 {
		return fmt.Errorf("soul %s: cycle_count %d is not positive", s.ID, s.CycleCount)
	}

	for i := range s.Principles {
		p := &s.Principles[i]
		if p.ID == uuid.Nil {
			return fmt.Errorf("soul %s: principle %d has no id", s.ID, i)
		}
		if p.CanonicalText == "" {
			return fmt.Errorf("soul %s: principle %s has empty canonical text", s.ID, p.ID)
		}
		if !ValidDimension(string(p.Dimension)) {
			return fmt.Errorf("soul %s: principle %s has invalid dimension %q", s.ID, p.ID, p.Dimension)
		}
		if p.ReinforcementCount != len(p.Signals) {
			return fmt.Errorf("soul %s: principle %s reinforcement count %d does not match %d signals",
				s.ID, p.ID, p.ReinforcementCount, len(p.Signals))
		}
		for _, sig := range p.Signals {
			if !ValidProvenance(string(sig.Provenance)) {
				return fmt.Errorf("soul %s: signal %s has invalid provenance %q", s.ID, sig.ID, sig.Provenance)
			}
			if !ValidStance(string(sig.Stance)) {
				return fmt.Errorf("soul %s: signal %s has invalid stance %q", s.ID, sig.ID, sig.Stance)
			}
		}
	}

	for i := range s.Axioms {
		a := &s.Axioms[i]
		if a.ID == uuid.Nil {
			return fmt.Errorf("soul %s: axiom %d has no id", s.ID, i)
		}
		if a.CanonicalText == "" {
			return fmt.Errorf("soul %s: axiom %s has empty canonical text", s.ID, a.ID)
		}
		switch a.Tier {
		case TierCore, TierDomain, TierEmerging:
		default:
			return fmt.Errorf("soul %s: axiom %s has invalid tier %q", s.ID, a.ID, a.Tier)
		}
	}

	return nil
}

// Lock is the ephemeral mutual-exclusion marker guarding soul mutation.
// Presence of the lock file plus liveness of the recorded process is the
// entire protocol.
type Lock struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}
