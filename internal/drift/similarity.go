package drift

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Clamp01 bounds v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Jaccard returns the Jaccard similarity of the whitespace-separated word
// sets of a and b. Two empty texts are identical; one empty text shares
// nothing with the other.
func Jaccard(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	inter := 0
	for w := range setA {
		if setB[w] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]bool {
	fields := strings.Fields(s)
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// Cosine returns the raw cosine of the angle between a and b, in [-1,1].
// It returns 0 when either vector has zero magnitude or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// SemanticSimilarity maps the cosine of two embeddings into [0,1]. Vectors
// with no negative components already have a cosine in [0,1]; otherwise the
// bipolar range is rescaled with (cos+1)/2.
func SemanticSimilarity(a, b []float64) float64 {
	cos := Cosine(a, b)
	if nonNegative(a) && nonNegative(b) {
		return Clamp01(cos)
	}
	return Clamp01((cos + 1) / 2)
}

func nonNegative(v []float64) bool {
	for _, x := range v {
		if x < 0 {
			return false
		}
	}
	return true
}

// Weights are the composite similarity weights.
type Weights struct {
	Self      float64
	Peer      float64
	Canonical float64
}

// DefaultWeights returns the 0.4/0.35/0.25 split.
func DefaultWeights() Weights {
	return Weights{Self: 0.4, Peer: 0.35, Canonical: 0.25}
}

// Composite combines the self, peer and canonical similarity components
// into one weighted similarity. Every component must lie in [0,1].
func Composite(self, peer, canonical float64, w Weights) (float64, error) {
	for name, v := range map[string]float64{"self": self, "peer": peer, "canonical": canonical} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return 0, eris.Errorf("drift: %s similarity %v outside [0,1]", name, v)
		}
	}
	return Clamp01(w.Self*self + w.Peer*peer + w.Canonical*canonical), nil
}
