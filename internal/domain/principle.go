package domain

import (
	"time"

	"github.com/google/uuid"
)

// PrincipleEvent is one entry in a principle's history log.
type PrincipleEvent string

const (
	PrincipleCreated    PrincipleEvent = "created"
	PrincipleReinforced PrincipleEvent = "reinforced"
)

// HistoryEntry records one mutation of a principle, with the match threshold
// that was in effect when it happened.
type HistoryEntry struct {
	Event      PrincipleEvent `json:"event"`
	SignalID   uuid.UUID      `json:"signal_id"`
	Similarity float32        `json:"similarity"`
	Threshold  float32        `json:"threshold"`
	At         time.Time      `json:"at"`
}

// Principle is a cluster of signals judged to express one belief.
// CanonicalText is the founding signal's text and never changes on
// reinforcement. ReinforcementCount always equals len(Signals).
type Principle struct {
	ID                 uuid.UUID      `json:"id"`
	Dimension          Dimension      `json:"dimension"`
	CanonicalText      string         `json:"canonical_text"`
	ReinforcementCount int            `json:"reinforcement_count"`
	Signals            []Signal       `json:"signals"`
	History            []HistoryEntry `json:"history"`
	LastMatchThreshold float32        `json:"last_match_threshold"`
	CreatedAt          time.Time      `json:"created_at"`
}

// ProvenanceDiversity counts distinct provenance tags across the
// contributing signals.
func (p *Principle) ProvenanceDiversity() int {
	seen := make(map[Provenance]bool, 3)
	for _, s := range p.Signals {
		seen[s.Provenance] = true
	}
	return len(seen)
}

// HasStance reports whether any contributing signal carries one of the
// given stances.
func (p *Principle) HasStance(stances ...Stance) bool {
	for _, s := range p.Signals {
		for _, want := range stances {
			if s.Stance == want {
				return true
			}
		}
	}
	return false
}

// HasProvenance reports whether any contributing signal carries the given
// provenance tag.
func (p *Principle) HasProvenance(prov Provenance) bool {
	for _, s := range p.Signals {
		if s.Provenance == prov {
			return true
		}
	}
	return false
}
