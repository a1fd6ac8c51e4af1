package biz

import "strings"

const (
	// DefaultDistanceThreshold is the squared-distance cutoff below which a
	// retrieved chunk counts as relevant to the query.
	DefaultDistanceThreshold float32 = 1.0

	// DefaultMinContextLength is the minimum character count the assembled
	// context must reach to be worth sending to the model.
	DefaultMinContextLength = 20
)

// RelevanceGate decides whether nearest-neighbor results are close enough,
// and substantial enough, to ground an answer.
type RelevanceGate struct {
	// DistanceThreshold drops any result whose distance is not strictly
	// below it.
	DistanceThreshold float32

	// MinContextLength rejects the assembled context when it is shorter
	// than this many characters.
	MinContextLength int
}

// NewRelevanceGate returns a gate with the given cutoffs, falling back to
// the defaults for non-positive values.
func NewRelevanceGate(threshold float32, minContextLength int) *RelevanceGate {
	if threshold <= 0 {
		threshold = DefaultDistanceThreshold
	}
	if minContextLength <= 0 {
		minContextLength = DefaultMinContextLength
	}
	return &RelevanceGate{
		DistanceThreshold: threshold,
		MinContextLength:  minContextLength,
	}
}

// Evaluate filters results by distance, joins the survivors into a single
// context string with spaces, and reports whether that context is usable.
// Survivor order follows the input order.
func (g *RelevanceGate) Evaluate(results []ScoredChunk) (usable bool, context string) {
	var kept []string
	for _, r := range results {
		if r.Distance < g.DistanceThreshold {
			kept = append(kept, r.Text)
		}
	}
	if len(kept) == 0 {
		return false, ""
	}
	context = strings.Join(kept, " ")
	if len(context) < g.MinContextLength {
		return false, context
	}
	return true, context
}
