package distribution

import (
	"math"

	"github.com/pclean-go/pclean/internal/prng"
)

// dirCat is a Dirichlet-Categorical conjugate distribution over a fixed,
// small set of K category indices. It is not itself exported as a
// Distribution (its value type is a bare index, not a value.Value) —
// Categorical, Bigram, and StringCat each wrap one or more dirCats to
// implement the public value.Value-typed interface.
type dirCat struct {
	k      int
	conc   float64 // symmetric Dirichlet concentration
	counts []float64
}

func newDirCat(k int, conc float64) *dirCat {
	return &dirCat{k: k, conc: conc, counts: make([]float64, k)}
}

func (d *dirCat) incorporate(idx int, weight float64) {
	d.counts[idx] += weight
}

func (d *dirCat) total() float64 {
	sum := d.conc * float64(d.k)
	for _, c := range d.counts {
		sum += c
	}
	return sum
}

func (d *dirCat) logp(idx int) float64 {
	return math.Log(d.conc+d.counts[idx]) - math.Log(d.total())
}

func (d *dirCat) logpScore() float64 {
	lgConcK, _ := math.Lgamma(d.conc * float64(d.k))
	lgTotal, _ := math.Lgamma(d.total())
	score := lgConcK - lgTotal
	for _, c := range d.counts {
		lgC, _ := math.Lgamma(d.conc + c)
		lgC0, _ := math.Lgamma(d.conc)
		score += lgC - lgC0
	}
	return score
}

func (d *dirCat) sample(s *prng.Stream) int {
	weights := make([]float64, d.k)
	total := d.total()
	for i, c := range d.counts {
		weights[i] = (d.conc + c) / total
	}
	u := s.Float64()
	cum := 0.0
	for i, w := range weights {
		cum += w
		if u < cum {
			return i
		}
	}
	return d.k - 1
}

func (d *dirCat) clone() *dirCat {
	cp := &dirCat{k: d.k, conc: d.conc, counts: make([]float64, d.k)}
	copy(cp.counts, d.counts)
	return cp
}
