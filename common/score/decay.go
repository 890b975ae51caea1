// Package score implements the lazily-evaluated exponential-decay counter
// used for ranking. A snapshot is not a live counter: it records the score
// level at one instant and decays only when evaluated.
package score

import (
	"math"
	"time"
)

// DefaultHalfLife is the interval over which an untouched score halves.
const DefaultHalfLife = 30 * 24 * time.Hour

// Snapshot records a score level at a point in time.
type Snapshot struct {
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"` // epoch milliseconds
}

// Evaluate returns the effective score of s at now. A nil snapshot
// evaluates to 0.
func Evaluate(s *Snapshot, now time.Time, halfLife time.Duration) float64 {
	if s == nil {
		return 0
	}
	elapsed := float64(now.UnixMilli() - s.Timestamp)
	return s.Value * math.Exp2(-elapsed/float64(halfLife.Milliseconds()))
}

// Increment returns a new snapshot holding the decayed value plus delta,
// stamped at now. The caller rewrites the stored snapshot whole; it is
// never summed in place, so evaluation stays consistent no matter how many
// increments happened in between.
func Increment(s *Snapshot, delta float64, now time.Time, halfLife time.Duration) Snapshot {
	return Snapshot{
		Value:     Evaluate(s, now, halfLife) + delta,
		Timestamp: now.UnixMilli(),
	}
}
