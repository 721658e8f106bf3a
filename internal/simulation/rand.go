package simulation

import "math/rand"

// Random is the engine's single source of stochastic decisions. Every draw
// in a run goes through one instance so that a fixed seed and a fixed call
// sequence reproduce byte-identical results: no code path may fall back to
// the package-level math/rand functions, which share mutable global state
// across goroutines and runs.
type Random struct {
	r *rand.Rand
}

// NewRandom constructs a Random seeded deterministically. Two Random values
// built from the same seed and driven through the same call sequence always
// agree.
func NewRandom(seed int64) *Random {
	return &Random{r: rand.New(rand.NewSource(seed))}
}

// Uniform draws from [0, 1).
func (r *Random) Uniform() float64 {
	return r.r.Float64()
}

// UniformRange draws from [lo, hi).
func (r *Random) UniformRange(lo, hi float64) float64 {
	return lo + r.Uniform()*(hi-lo)
}

// Exp draws an exponentially-distributed value with the given mean.
func (r *Random) Exp(mean float64) float64 {
	return r.r.ExpFloat64() * mean
}

// IntRange draws an integer from [lo, hi) — inclusive of lo, exclusive of
// hi, matching the table notation used throughout the component design.
func (r *Random) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.r.Intn(hi-lo)
}

// Bernoulli returns true with probability p.
func (r *Random) Bernoulli(p float64) bool {
	return r.Uniform() < p
}

// Choice performs a weighted draw among items, returning items[i] with
// probability proportional to weights[i]. Weights need not be normalized.
// Panics if the slices are empty or of mismatched length, which would
// indicate a programming error rather than a runtime condition to recover
// from.
func Choice[T any](r *Random, items []T, weights []float64) T {
	if len(items) == 0 || len(items) != len(weights) {
		panic("simulation: Choice called with empty or mismatched items/weights")
	}
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return items[0]
	}
	target := r.Uniform() * total
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if target < cumulative {
			return items[i]
		}
	}
	return items[len(items)-1]
}
