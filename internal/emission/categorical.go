package emission

import (
	"github.com/pclean-go/pclean/internal/distribution"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

// Categorical is the categorical(k=N) emission: a per-clean-category
// confusion row, each row an independent Dirichlet-Categorical over the
// same N categories for the observed dirty value.
type Categorical struct {
	k       int
	conc    float64
	rows    map[int64]*distribution.Categorical
}

// NewCategorical returns a Categorical emission over k categories with
// symmetric-Dirichlet concentration conc on each confusion row.
func NewCategorical(k int, conc float64) *Categorical {
	return &Categorical{k: k, conc: conc, rows: make(map[int64]*distribution.Categorical)}
}

func (c *Categorical) row(clean int64) *distribution.Categorical {
	r, ok := c.rows[clean]
	if !ok {
		r = distribution.NewCategorical(c.k, c.conc)
		c.rows[clean] = r
	}
	return r
}

func (c *Categorical) Incorporate(v value.Value, weight float64) {
	p := value.AsPair(v)
	c.row(value.AsInt(p.Clean)).Incorporate(p.Dirty, weight)
}

func (c *Categorical) Unincorporate(v value.Value) { c.Incorporate(v, -1) }

func (c *Categorical) Logp(v value.Value) float64 {
	p := value.AsPair(v)
	return c.row(value.AsInt(p.Clean)).Logp(p.Dirty)
}

func (c *Categorical) LogpScore() float64 {
	total := 0.0
	for _, r := range c.rows {
		total += r.LogpScore()
	}
	return total
}

func (c *Categorical) Sample(s *prng.Stream) value.Value {
	clean := value.Int(s.Intn(c.k))
	return value.Pair{Clean: clean, Dirty: c.SampleCorrupted(clean, s)}
}

func (c *Categorical) TransitionHyperparameters(s *prng.Stream) {
	for _, r := range c.rows {
		r.TransitionHyperparameters(s)
	}
}

func (c *Categorical) SampleCorrupted(clean value.Value, s *prng.Stream) value.Value {
	return c.row(value.AsInt(clean)).Sample(s)
}

// ProposeClean returns the majority dirty category — treating the
// confusion channel as roughly symmetric around its diagonal, the most
// frequent observed category is a reasonable peaked guess at the clean one.
func (c *Categorical) ProposeClean(dirties []value.Value, s *prng.Stream) value.Value {
	counts := make(map[int64]int, len(dirties))
	for _, d := range dirties {
		counts[value.AsInt(d)]++
	}
	var best int64
	bestCount := -1
	for k, n := range counts {
		if n > bestCount || (n == bestCount && k < best) {
			best, bestCount = k, n
		}
	}
	return value.Int(best)
}
