package domain

import (
	"github.com/google/uuid"
)

// Provenance indicates where a signal originated relative to the entity.
type Provenance string

const (
	ProvenanceSelf     Provenance = "self"     // the entity's own statements
	ProvenanceCurated  Provenance = "curated"  // hand-picked by a maintainer
	ProvenanceExternal Provenance = "external" // observed by an outside party
)

func ValidProvenance(p string) bool {
	switch Provenance(p) {
	case ProvenanceSelf, ProvenanceCurated, ProvenanceExternal:
		return true
	}
	return false
}

// Stance is the epistemic posture a signal takes toward its claim.
type Stance string

const (
	StanceAssert   Stance = "assert"
	StanceDeny     Stance = "deny"
	StanceQuestion Stance = "question"
	StanceQualify  Stance = "qualify"
	StanceTension  Stance = "tension"
)

func ValidStance(s string) bool {
	switch Stance(s) {
	case StanceAssert, StanceDeny, StanceQuestion, StanceQualify, StanceTension:
		return true
	}
	return false
}

// Dimension is the identity facet a signal speaks to.
type Dimension string

const (
	DimensionValues        Dimension = "values"
	DimensionVoice         Dimension = "voice"
	DimensionBehavior      Dimension = "behavior"
	DimensionRelationships Dimension = "relationships"
	DimensionWorldview     Dimension = "worldview"
	DimensionGeneral       Dimension = "general"
)

func ValidDimension(d string) bool {
	switch Dimension(d) {
	case DimensionValues, DimensionVoice, DimensionBehavior,
		DimensionRelationships, DimensionWorldview, DimensionGeneral:
		return true
	}
	return false
}

// Signal is one atomic observation about the entity. Immutable once ingested.
type Signal struct {
	ID         uuid.UUID  `json:"id"`
	Text       string     `json:"text"`
	Provenance Provenance `json:"provenance"`
	Stance     Stance     `json:"stance"`
	Dimension  Dimension  `json:"dimension,omitempty"`
	SourceRef  string     `json:"source_ref,omitempty"`
}
