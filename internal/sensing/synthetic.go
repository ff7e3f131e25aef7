package sensing

import (
	"context"
	"math/rand/v2"
)

// Change-metric ranges for the simulated audit. Sites where work was
// expected draw from the full range; cancelled/announced sites draw from
// a visibly lower one.
const (
	SimLow  = 0.001
	SimHigh = 0.2
	// SimIdleHigh caps the draw for projects where no construction was
	// ever expected.
	SimIdleHigh = 0.01
)

// Synthetic generates reproducible change metrics so the pipeline is
// exercisable without the external Earth-observation dependency. The
// seed is explicit: two Synthetics with the same seed produce the same
// sequence of draws.
type Synthetic struct {
	rng *rand.Rand
}

// NewSynthetic returns a generator seeded deterministically.
func NewSynthetic(seed int64) *Synthetic {
	return &Synthetic{rng: rand.New(rand.NewPCG(uint64(seed), 0))}
}

// Change implements Provider with a draw from the full simulated range.
// Coordinates and years are accepted for interface compatibility but do
// not influence the draw.
func (s *Synthetic) Change(_ context.Context, _, _ float64, _, _ int) Result {
	return Value(s.Draw(SimLow, SimHigh))
}

// Draw returns a uniform draw from [lo, hi). The audit stage uses this
// directly to put never-expected-active projects in the idle sub-range.
func (s *Synthetic) Draw(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}
