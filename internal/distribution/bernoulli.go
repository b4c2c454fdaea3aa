package distribution

import (
	"math"

	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

// defaultGrid is the hyperparameter grid shared by the Beta-family
// families below: a handful of log-spaced pseudocount candidates.
var defaultGrid = []float64{0.1, 0.5, 1, 2, 5, 10, 20}

// Bernoulli is a Beta-Bernoulli conjugate distribution over value.Bool.
type Bernoulli struct {
	Alpha, Beta float64 // prior pseudocounts
	n0, n1      float64 // incorporated counts of false, true
}

// NewBernoulli returns a Beta-Bernoulli with the given prior pseudocounts.
func NewBernoulli(alpha, beta float64) *Bernoulli {
	return &Bernoulli{Alpha: alpha, Beta: beta}
}

func (b *Bernoulli) Incorporate(v value.Value, weight float64) {
	if value.AsBool(v) {
		b.n1 += weight
	} else {
		b.n0 += weight
	}
}

func (b *Bernoulli) Unincorporate(v value.Value) { b.Incorporate(v, -1) }

func (b *Bernoulli) Logp(v value.Value) float64 {
	total := b.Alpha + b.Beta + b.n0 + b.n1
	if value.AsBool(v) {
		return math.Log(b.Alpha+b.n1) - math.Log(total)
	}
	return math.Log(b.Beta+b.n0) - math.Log(total)
}

func (b *Bernoulli) LogpScore() float64 {
	lgA, _ := math.Lgamma(b.Alpha)
	lgB, _ := math.Lgamma(b.Beta)
	lgAB, _ := math.Lgamma(b.Alpha + b.Beta)
	lgA1, _ := math.Lgamma(b.Alpha + b.n1)
	lgB0, _ := math.Lgamma(b.Beta + b.n0)
	lgTotal, _ := math.Lgamma(b.Alpha + b.Beta + b.n0 + b.n1)
	score := lgAB - lgA - lgB + lgA1 + lgB0 - lgTotal
	if math.IsNaN(score) {
		panic("distribution: bernoulli logp_score produced NaN")
	}
	return score
}

func (b *Bernoulli) Sample(s *prng.Stream) value.Value {
	p := math.Exp(b.Logp(value.Bool(true)))
	return value.Bool(s.Float64() < p)
}

func (b *Bernoulli) TransitionHyperparameters(s *prng.Stream) {
	grids := [][]float64{defaultGrid, defaultGrid}
	params := gridSearch("bernoulli", grids, func(p []float64) float64 {
		orig := *b
		b.Alpha, b.Beta = p[0], p[1]
		score := b.LogpScore()
		*b = orig
		return score
	}, s)
	b.Alpha, b.Beta = params[0], params[1]
}
