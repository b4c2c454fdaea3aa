package emission

import (
	"github.com/pclean-go/pclean/internal/distribution"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

// Sometimes wraps an inner emission E with an outer fired/not-fired
// Bernoulli switch: sometimes_<E>(p) behaves as E with probability p and as
// a pass-through (dirty == clean) otherwise (§6). Whether the switch fired
// for a given pair is not itself stored — it is inferred deterministically
// as dirty != clean, since a no-op inner emission that happened to leave
// the value unchanged is observationally indistinguishable from the switch
// not firing, and attributing it to "did not fire" keeps the fired-rate
// estimate from being inflated by the inner emission's own identity draws.
type Sometimes struct {
	inner Emission
	fired *distribution.Bernoulli
}

// NewSometimes wraps inner with a fired-probability prior given by alpha,
// beta pseudocounts.
func NewSometimes(inner Emission, alpha, beta float64) *Sometimes {
	return &Sometimes{inner: inner, fired: distribution.NewBernoulli(alpha, beta)}
}

func didFire(v value.Value) bool {
	p := value.AsPair(v)
	return !value.Equal(p.Clean, p.Dirty)
}

func (s *Sometimes) Incorporate(v value.Value, weight float64) {
	fired := didFire(v)
	s.fired.Incorporate(value.Bool(fired), weight)
	if fired {
		s.inner.Incorporate(v, weight)
	}
}

func (s *Sometimes) Unincorporate(v value.Value) { s.Incorporate(v, -1) }

func (s *Sometimes) Logp(v value.Value) float64 {
	fired := didFire(v)
	total := s.fired.Logp(value.Bool(fired))
	if fired {
		total += s.inner.Logp(v)
	}
	return total
}

func (s *Sometimes) LogpScore() float64 { return s.fired.LogpScore() + s.inner.LogpScore() }

func (s *Sometimes) Sample(rng *prng.Stream) value.Value {
	clean := s.inner.Sample(rng)
	p := value.AsPair(clean)
	return value.Pair{Clean: p.Clean, Dirty: s.SampleCorrupted(p.Clean, rng)}
}

func (s *Sometimes) TransitionHyperparameters(rng *prng.Stream) {
	s.fired.TransitionHyperparameters(rng)
	s.inner.TransitionHyperparameters(rng)
}

func (s *Sometimes) SampleCorrupted(clean value.Value, rng *prng.Stream) value.Value {
	if !value.AsBool(s.fired.Sample(rng)) {
		return clean
	}
	return s.inner.SampleCorrupted(clean, rng)
}

func (s *Sometimes) ProposeClean(dirties []value.Value, rng *prng.Stream) value.Value {
	return s.inner.ProposeClean(dirties, rng)
}
