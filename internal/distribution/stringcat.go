package distribution

import (
	"math"
	"strings"

	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

// StringCat is a Dirichlet-Categorical conjugate distribution over a fixed,
// finite set of strings (§6: stringcat(strings=S, delim=D) — S is the
// delimited category list given in the schema spec, D the delimiter used
// to split it).
type StringCat struct {
	categories []string
	index      map[string]int
	d          *dirCat
}

// NewStringCat parses a delimiter-joined category list (e.g. "PHD|MD|PT"
// with delim "|") into a StringCat with symmetric-Dirichlet concentration
// conc over the resulting categories.
func NewStringCat(categories string, delim string, conc float64) *StringCat {
	cats := strings.Split(categories, delim)
	idx := make(map[string]int, len(cats))
	for i, c := range cats {
		idx[c] = i
	}
	return &StringCat{categories: cats, index: idx, d: newDirCat(len(cats), conc)}
}

func (sc *StringCat) categoryIndex(v value.Value) int {
	s := value.AsStr(v)
	idx, ok := sc.index[s]
	if !ok {
		panic("distribution: stringcat value not in configured category set: " + s)
	}
	return idx
}

func (sc *StringCat) Incorporate(v value.Value, weight float64) {
	sc.d.incorporate(sc.categoryIndex(v), weight)
}

func (sc *StringCat) Unincorporate(v value.Value) { sc.Incorporate(v, -1) }

func (sc *StringCat) Logp(v value.Value) float64 { return sc.d.logp(sc.categoryIndex(v)) }

func (sc *StringCat) LogpScore() float64 {
	score := sc.d.logpScore()
	if math.IsNaN(score) {
		panic("distribution: stringcat logp_score produced NaN")
	}
	return score
}

func (sc *StringCat) Sample(s *prng.Stream) value.Value {
	return value.Str(sc.categories[sc.d.sample(s)])
}

func (sc *StringCat) TransitionHyperparameters(s *prng.Stream) {
	grids := [][]float64{concGrid}
	params := gridSearch("stringcat", grids, func(p []float64) float64 {
		orig := sc.d.conc
		sc.d.conc = p[0]
		score := sc.LogpScore()
		sc.d.conc = orig
		return score
	}, s)
	sc.d.conc = params[0]
}
