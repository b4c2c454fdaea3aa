package emission

import (
	"github.com/pclean-go/pclean/internal/distribution"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

// SimpleString is the simple_string emission: with some probability the
// dirty string is the clean string verbatim, and otherwise it is drawn
// independently of the clean value from a background bigram model. It does
// not attempt character-level alignment between clean and dirty — that is
// left to bigram_string below.
type SimpleString struct {
	corrupted  *distribution.Bernoulli
	background *distribution.Bigram
}

// NewSimpleString returns a SimpleString emission with the given
// corruption-probability prior and background-model concentration.
func NewSimpleString(alpha, beta, backgroundConc float64) *SimpleString {
	return &SimpleString{
		corrupted:  distribution.NewBernoulli(alpha, beta),
		background: distribution.NewBigram(backgroundConc),
	}
}

func isCorrupted(v value.Value) (value.Value, bool) {
	p := value.AsPair(v)
	return p.Dirty, !value.Equal(p.Clean, p.Dirty)
}

func (ss *SimpleString) Incorporate(v value.Value, weight float64) {
	dirty, corrupt := isCorrupted(v)
	ss.corrupted.Incorporate(value.Bool(corrupt), weight)
	if corrupt {
		ss.background.Incorporate(dirty, weight)
	}
}

func (ss *SimpleString) Unincorporate(v value.Value) { ss.Incorporate(v, -1) }

// Logp is computed without mutating either sub-distribution's state: the
// corruption indicator's logp is always side-effect free, and the
// background bigram's logp evaluates on scratch copies of the contexts it
// touches, leaving its live counts unchanged.
func (ss *SimpleString) Logp(v value.Value) float64 {
	dirty, corrupt := isCorrupted(v)
	total := ss.corrupted.Logp(value.Bool(corrupt))
	if corrupt {
		total += ss.background.Logp(dirty)
	}
	return total
}

func (ss *SimpleString) LogpScore() float64 {
	return ss.corrupted.LogpScore() + ss.background.LogpScore()
}

func (ss *SimpleString) Sample(s *prng.Stream) value.Value {
	clean := ss.background.Sample(s)
	return value.Pair{Clean: clean, Dirty: ss.SampleCorrupted(clean, s)}
}

func (ss *SimpleString) TransitionHyperparameters(s *prng.Stream) {
	ss.corrupted.TransitionHyperparameters(s)
	ss.background.TransitionHyperparameters(s)
}

func (ss *SimpleString) SampleCorrupted(clean value.Value, s *prng.Stream) value.Value {
	corrupt := value.AsBool(ss.corrupted.Sample(s))
	if !corrupt {
		return clean
	}
	return ss.background.Sample(s)
}

// ProposeClean returns the most frequent observed dirty string, falling
// back to the first one on a tie — a mode estimate, not a true MAP clean
// value (§4.3 allows this).
func (ss *SimpleString) ProposeClean(dirties []value.Value, s *prng.Stream) value.Value {
	if len(dirties) == 0 {
		return value.Str("")
	}
	counts := make(map[string]int, len(dirties))
	order := make([]string, 0, len(dirties))
	for _, d := range dirties {
		str := value.AsStr(d)
		if _, seen := counts[str]; !seen {
			order = append(order, str)
		}
		counts[str]++
	}
	best := order[0]
	for _, str := range order[1:] {
		if counts[str] > counts[best] {
			best = str
		}
	}
	return value.Str(best)
}
