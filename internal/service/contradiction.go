package service

import (
	"context"
	"strings"
)

// NegationHeuristic is the default contradiction detector: two statements
// contradict when they share a topic but take opposite polarity, polarity
// being the presence of a negation marker. Best-effort pairing, not a
// logical prover; anything smarter plugs in through the same interface.
type NegationHeuristic struct{}

func NewNegationHeuristic() *NegationHeuristic {
	return &NegationHeuristic{}
}

var negationMarkers = map[string]bool{
	"not":     true,
	"never":   true,
	"no":      true,
	"dont":    true,
	"doesnt":  true,
	"didnt":   true,
	"wont":    true,
	"cant":    true,
	"cannot":  true,
	"isnt":    true,
	"arent":   true,
	"wasnt":   true,
	"refuse":  true,
	"refuses": true,
	"avoid":   true,
	"avoids":  true,
	"stopped": true,
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "i": true, "it": true, "its": true,
	"is": true, "am": true, "are": true, "was": true, "were": true, "be": true,
	"to": true, "of": true, "in": true, "on": true, "and": true, "or": true,
	"my": true, "me": true, "do": true, "does": true, "did": true,
	"this": true, "that": true, "with": true, "for": true, "at": true,
	"have": true, "has": true, "had": true, "will": true, "would": true,
	"always": true, "really": true, "very": true,
}

const topicOverlapMin = 0.5

// Contradicts reports whether a and b pair a claim with its negation.
// The error return exists only to satisfy the detector interface; the
// heuristic itself cannot fail.
func (h *NegationHeuristic) Contradicts(ctx context.Context, a, b string) (bool, error) {
	topicA, negatedA := analyze(a)
	topicB, negatedB := analyze(b)

	if negatedA == negatedB {
		return false, nil
	}
	if len(topicA) == 0 || len(topicB) == 0 {
		return false, nil
	}

	return jaccard(topicA, topicB) >= topicOverlapMin, nil
}

// analyze splits a statement into its topic tokens and polarity. Negation
// markers and stopwords are excluded from the topic so "I value privacy"
// and "I do not value privacy" share one.
func analyze(text string) (topic map[string]bool, negated bool) {
	topic = make(map[string]bool)

	for _, raw := range strings.Fields(strings.ToLower(text)) {
		word := strings.Map(func(r rune) rune {
			if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, raw)
		if word == "" {
			continue
		}
		if negationMarkers[word] {
			negated = !negated
			continue
		}
		if stopwords[word] {
			continue
		}
		topic[word] = true
	}

	return topic, negated
}

func jaccard(a, b map[string]bool) float64 {
	var intersection int
	for word := range a {
		if b[word] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
