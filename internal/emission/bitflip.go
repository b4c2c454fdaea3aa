package emission

import (
	"github.com/pclean-go/pclean/internal/distribution"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

// BitFlip is the Bool emission: dirty = clean XOR flip, flip ~ Bernoulli(p)
// with p given a Beta-Bernoulli prior, so p is marginalized rather than
// tracked as an explicit parameter.
type BitFlip struct {
	flip *distribution.Bernoulli
}

// NewBitFlip returns a BitFlip emission with the given prior pseudocounts
// on the flip-probability.
func NewBitFlip(alpha, beta float64) *BitFlip {
	return &BitFlip{flip: distribution.NewBernoulli(alpha, beta)}
}

func flipped(v value.Value) bool {
	p := value.AsPair(v)
	return value.AsBool(p.Clean) != value.AsBool(p.Dirty)
}

func (bf *BitFlip) Incorporate(v value.Value, weight float64) {
	bf.flip.Incorporate(value.Bool(flipped(v)), weight)
}

func (bf *BitFlip) Unincorporate(v value.Value) { bf.Incorporate(v, -1) }

func (bf *BitFlip) Logp(v value.Value) float64 {
	return bf.flip.Logp(value.Bool(flipped(v)))
}

func (bf *BitFlip) LogpScore() float64 { return bf.flip.LogpScore() }

func (bf *BitFlip) Sample(s *prng.Stream) value.Value {
	clean := bf.flip.Sample(s) // arbitrary clean draw, only used stand-alone
	return value.Pair{Clean: clean, Dirty: clean}
}

func (bf *BitFlip) TransitionHyperparameters(s *prng.Stream) { bf.flip.TransitionHyperparameters(s) }

func (bf *BitFlip) SampleCorrupted(clean value.Value, s *prng.Stream) value.Value {
	fires := value.AsBool(bf.flip.Sample(s))
	if fires {
		return value.Bool(!value.AsBool(clean))
	}
	return clean
}

// ProposeClean returns the majority vote among the observed dirties — a
// peaked but not necessarily Bayes-optimal guess (§4.3).
func (bf *BitFlip) ProposeClean(dirties []value.Value, s *prng.Stream) value.Value {
	trues, falses := 0, 0
	for _, d := range dirties {
		if value.AsBool(d) {
			trues++
		} else {
			falses++
		}
	}
	return value.Bool(trues >= falses)
}
