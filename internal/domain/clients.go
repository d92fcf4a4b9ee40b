package domain

import "context"

// SemanticOracle judges whether a candidate statement restates each of a
// list of existing statements, returning one confidence in [0,1] per text.
// The returned slice is always the same length as texts.
type SemanticOracle interface {
	Compare(ctx context.Context, candidate string, texts []string) ([]float32, error)
}

// Classifier assigns a text to one identity dimension.
type Classifier interface {
	Classify(ctx context.Context, text string) (Dimension, error)
}

// BatchClassifier is an optional capability a Classifier may provide.
// Callers must check for it with an explicit type assertion; when it is
// absent the documented fallback is one Classify call per text, in order.
type BatchClassifier interface {
	ClassifyBatch(ctx context.Context, texts []string) ([]Dimension, error)
}

// Generator produces free text from a prompt. Used for axiom display
// notation only; synthesis semantics never depend on its output.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EmbeddingClient turns text into a vector. The embedding-backed oracle is
// built on it.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ContradictionDetector reports whether two statements contradict each
// other. The default implementation is a best-effort negation-pairing
// heuristic, not a logical prover; it sits behind this interface so it can
// be swapped without touching cycle-mode decisions.
type ContradictionDetector interface {
	Contradicts(ctx context.Context, a, b string) (bool, error)
}
