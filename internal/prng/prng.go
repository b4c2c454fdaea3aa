// Package prng threads an explicit, per-chain random source through every
// sampling entry point in the inference core. There is deliberately no
// global or thread-local generator: independent chains need independent
// streams, and every call that consumes randomness takes a *Stream
// parameter instead of reaching for a package-level default.
package prng

import (
	"math/rand"
)

// Stream is a single chain's random source. It is not safe for concurrent
// use — the core is single-threaded cooperative (see SPEC_FULL.md §5) and
// a Stream must never be shared across goroutines without external locking.
type Stream struct {
	r *rand.Rand
}

// New returns a Stream seeded deterministically from seed. Two Streams
// built from the same seed produce identical sequences.
func New(seed int64) *Stream {
	return &Stream{r: rand.New(rand.NewSource(seed))}
}

// Float64 returns a uniform draw in [0, 1).
func (s *Stream) Float64() float64 {
	return s.r.Float64()
}

// Intn returns a uniform draw in [0, n).
func (s *Stream) Intn(n int) int {
	return s.r.Intn(n)
}

// NormFloat64 returns a standard-normal draw.
func (s *Stream) NormFloat64() float64 {
	return s.r.NormFloat64()
}

// ExpFloat64 returns a standard-exponential draw (rate 1).
func (s *Stream) ExpFloat64() float64 {
	return s.r.ExpFloat64()
}

// Perm returns a random permutation of [0, n).
func (s *Stream) Perm(n int) []int {
	return s.r.Perm(n)
}

// Child derives a new, independent Stream from this one, for callers that
// want to fan out a deterministic sub-chain (e.g. one per parallel restart)
// without disturbing the parent's subsequent draws.
func (s *Stream) Child() *Stream {
	return New(s.r.Int63())
}
