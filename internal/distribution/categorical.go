package distribution

import (
	"math"

	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

// concGrid is the hyperparameter grid used for Dirichlet concentration
// parameters across the categorical-family distributions.
var concGrid = []float64{0.1, 0.3, 1, 3, 10}

// Categorical is a Dirichlet-Categorical conjugate distribution over
// value.Int in [0, K).
type Categorical struct {
	k int
	d *dirCat
}

// NewCategorical returns a symmetric-Dirichlet categorical over k
// categories with concentration conc.
func NewCategorical(k int, conc float64) *Categorical {
	return &Categorical{k: k, d: newDirCat(k, conc)}
}

func (c *Categorical) index(v value.Value) int {
	idx := int(value.AsInt(v))
	if idx < 0 || idx >= c.k {
		panic("distribution: categorical value out of range")
	}
	return idx
}

func (c *Categorical) Incorporate(v value.Value, weight float64) { c.d.incorporate(c.index(v), weight) }
func (c *Categorical) Unincorporate(v value.Value)                { c.Incorporate(v, -1) }
func (c *Categorical) Logp(v value.Value) float64                 { return c.d.logp(c.index(v)) }
func (c *Categorical) LogpScore() float64 {
	score := c.d.logpScore()
	if math.IsNaN(score) {
		panic("distribution: categorical logp_score produced NaN")
	}
	return score
}
func (c *Categorical) Sample(s *prng.Stream) value.Value { return value.Int(c.d.sample(s)) }

func (c *Categorical) TransitionHyperparameters(s *prng.Stream) {
	grids := [][]float64{concGrid}
	params := gridSearch("categorical", grids, func(p []float64) float64 {
		orig := c.d.conc
		c.d.conc = p[0]
		score := c.LogpScore()
		c.d.conc = orig
		return score
	}, s)
	c.d.conc = params[0]
}
