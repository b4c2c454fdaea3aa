package distribution

import (
	"math"

	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

// bigramAlphabetSize is the number of raw byte symbols modeled; endSymbol
// is an additional symbol marking string termination, and startContext an
// additional context standing in for "no previous character yet".
const (
	bigramAlphabetSize = 256
	bigramEndSymbol    = bigramAlphabetSize
	bigramStartContext = bigramAlphabetSize
	bigramK            = bigramAlphabetSize + 1 // symbols: 0..255 plus END
)

// Bigram is a string distribution built from one Dirichlet-Categorical per
// (previous-byte ∪ {start}) -> next-byte transition (§4.2).
type Bigram struct {
	conc     float64
	contexts map[int]*dirCat
}

// NewBigram returns a Bigram with symmetric-Dirichlet concentration conc on
// every per-context transition distribution.
func NewBigram(conc float64) *Bigram {
	return &Bigram{conc: conc, contexts: make(map[int]*dirCat)}
}

func (b *Bigram) context(ctx int) *dirCat {
	d, ok := b.contexts[ctx]
	if !ok {
		d = newDirCat(bigramK, b.conc)
		b.contexts[ctx] = d
	}
	return d
}

func (b *Bigram) walk(s []byte) []int {
	ctx := bigramStartContext
	path := make([]int, 0, len(s)+1)
	for _, c := range s {
		path = append(path, ctx, int(c))
		ctx = int(c)
	}
	path = append(path, ctx, bigramEndSymbol)
	return path
}

func (b *Bigram) Incorporate(v value.Value, weight float64) {
	path := b.walk([]byte(value.AsStr(v)))
	for i := 0; i < len(path); i += 2 {
		b.context(path[i]).incorporate(path[i+1], weight)
	}
}

func (b *Bigram) Unincorporate(v value.Value) { b.Incorporate(v, -1) }

// Logp conditions each successive character on the sequence of previously
// seen characters within this call by incorporating during the forward
// pass into scratch copies of the contexts it touches, leaving the live
// counts unchanged (§4.2).
func (b *Bigram) Logp(v value.Value) float64 {
	path := b.walk([]byte(value.AsStr(v)))
	scratch := make(map[int]*dirCat)
	total := 0.0
	for i := 0; i < len(path); i += 2 {
		d, ok := scratch[path[i]]
		if !ok {
			if live, exists := b.contexts[path[i]]; exists {
				d = live.clone()
			} else {
				d = newDirCat(bigramK, b.conc)
			}
			scratch[path[i]] = d
		}
		total += d.logp(path[i+1])
		d.incorporate(path[i+1], 1)
	}
	return total
}

func (b *Bigram) LogpScore() float64 {
	total := 0.0
	for _, d := range b.contexts {
		total += d.logpScore()
	}
	if math.IsNaN(total) {
		panic("distribution: bigram logp_score produced NaN")
	}
	return total
}

func (b *Bigram) Sample(s *prng.Stream) value.Value {
	ctx := bigramStartContext
	var out []byte
	const maxLen = 64
	for i := 0; i < maxLen; i++ {
		sym := b.context(ctx).sample(s)
		if sym == bigramEndSymbol {
			break
		}
		out = append(out, byte(sym))
		ctx = sym
	}
	return value.Str(string(out))
}

func (b *Bigram) TransitionHyperparameters(s *prng.Stream) {
	grids := [][]float64{concGrid}
	params := gridSearch("bigram", grids, func(p []float64) float64 {
		orig := make(map[int]float64, len(b.contexts))
		for ctx, d := range b.contexts {
			orig[ctx] = d.conc
			d.conc = p[0]
		}
		score := b.LogpScore()
		for ctx, d := range b.contexts {
			d.conc = orig[ctx]
		}
		return score
	}, s)
	b.conc = params[0]
	for _, d := range b.contexts {
		d.conc = b.conc
	}
}
