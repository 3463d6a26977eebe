// Package rng provides the seedable randomness source shared by the
// stochastic simulation passes. Components receive a Rand at construction
// instead of reaching for a global generator, so tests can fix the
// sequence and assert exact outputs.
package rng

import "math/rand"

// Rand is the minimal surface the simulation draws randomness from.
// *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// New returns a deterministic source seeded with the given value.
func New(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Jitter returns a multiplier in [1-spread, 1+spread] drawn from r.
// A spread of 0.05 yields the ±5% noise used by the demographic passes.
func Jitter(r Rand, spread float64) float64 {
	return 1 - spread + r.Float64()*2*spread
}
