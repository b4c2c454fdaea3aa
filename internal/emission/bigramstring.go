package emission

import (
	"github.com/pclean-go/pclean/internal/distribution"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

// BigramString is the bigram_string emission: corruption happens character
// by character rather than by replacing the whole string at once (as
// SimpleString does). Each position independently decides whether it was
// typo'd, and the corrupted string as a whole is scored against a
// background bigram model so that plausible-looking garbling (keyboard
// neighbors, repeated letters) scores better than arbitrary noise.
type BigramString struct {
	flip  *distribution.Bernoulli
	subst *distribution.Bigram
}

// NewBigramString returns a BigramString emission with the given
// per-character corruption prior and background bigram concentration.
func NewBigramString(alpha, beta, substConc float64) *BigramString {
	return &BigramString{
		flip:  distribution.NewBernoulli(alpha, beta),
		subst: distribution.NewBigram(substConc),
	}
}

func (bs *BigramString) perCharFlips(clean, dirty string) []bool {
	n := len(dirty)
	flips := make([]bool, n)
	for i := 0; i < n; i++ {
		flips[i] = i >= len(clean) || dirty[i] != clean[i]
	}
	return flips
}

func (bs *BigramString) Incorporate(v value.Value, weight float64) {
	p := value.AsPair(v)
	clean, dirty := value.AsStr(p.Clean), value.AsStr(p.Dirty)
	for _, f := range bs.perCharFlips(clean, dirty) {
		bs.flip.Incorporate(value.Bool(f), weight)
	}
	bs.subst.Incorporate(value.Str(dirty), weight)
}

func (bs *BigramString) Unincorporate(v value.Value) { bs.Incorporate(v, -1) }

func (bs *BigramString) Logp(v value.Value) float64 {
	p := value.AsPair(v)
	clean, dirty := value.AsStr(p.Clean), value.AsStr(p.Dirty)
	total := 0.0
	for _, f := range bs.perCharFlips(clean, dirty) {
		total += bs.flip.Logp(value.Bool(f))
	}
	total += bs.subst.Logp(value.Str(dirty))
	return total
}

func (bs *BigramString) LogpScore() float64 {
	return bs.flip.LogpScore() + bs.subst.LogpScore()
}

func (bs *BigramString) Sample(s *prng.Stream) value.Value {
	clean := bs.subst.Sample(s)
	return value.Pair{Clean: clean, Dirty: bs.SampleCorrupted(clean, s)}
}

func (bs *BigramString) TransitionHyperparameters(s *prng.Stream) {
	bs.flip.TransitionHyperparameters(s)
	bs.subst.TransitionHyperparameters(s)
}

// SampleCorrupted replaces each flipped position with a byte drawn
// uniformly from the printable ASCII range. The background bigram model is
// used to score observed corruptions (Logp/LogpScore), not to drive
// generation — generating a context-consistent replacement per position
// would need a lower-level per-character sampling hook the Bigram
// distribution does not expose.
func (bs *BigramString) SampleCorrupted(clean value.Value, s *prng.Stream) value.Value {
	cleanStr := value.AsStr(clean)
	out := []byte(cleanStr)
	for i := range out {
		if value.AsBool(bs.flip.Sample(s)) {
			out[i] = byte(32 + s.Intn(95)) // printable ASCII
		}
	}
	return value.Str(string(out))
}

// ProposeClean returns the shortest observed dirty string truncated
// nowhere — a crude peak estimate under the assumption that insertions are
// more common than deletions among typos, so the shortest variant has
// accumulated the fewest extra characters.
func (bs *BigramString) ProposeClean(dirties []value.Value, s *prng.Stream) value.Value {
	if len(dirties) == 0 {
		return value.Str("")
	}
	best := value.AsStr(dirties[0])
	for _, d := range dirties[1:] {
		str := value.AsStr(d)
		if len(str) < len(best) {
			best = str
		}
	}
	return value.Str(best)
}
