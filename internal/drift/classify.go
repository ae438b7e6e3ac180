package drift

import "github.com/sells-group/domain-runner/internal/model"

// Thresholds partition drift scores into statuses: drift below Stable is
// stable, drift at or above Decayed is decayed.
type Thresholds struct {
	Stable  float64
	Decayed float64
}

// DefaultThresholds returns stable < 0.3, decayed >= 0.7.
func DefaultThresholds() Thresholds {
	return Thresholds{Stable: 0.3, Decayed: 0.7}
}

// Classify maps a drift score to a status.
func (t Thresholds) Classify(drift float64) model.DriftStatus {
	switch {
	case drift < t.Stable:
		return model.DriftStable
	case drift >= t.Decayed:
		return model.DriftDecayed
	default:
		return model.DriftDrifting
	}
}

// Similarity thresholds used by the weighted composite path.
const (
	SimilarityStable   = 0.8
	SimilarityDrifting = 0.5
)

// ClassifySimilarity maps a composite similarity directly to a status.
func ClassifySimilarity(sim float64) model.DriftStatus {
	switch {
	case sim >= SimilarityStable:
		return model.DriftStable
	case sim >= SimilarityDrifting:
		return model.DriftDrifting
	default:
		return model.DriftDecayed
	}
}
