package distribution

import (
	"math"

	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

// Normal is a Normal-Inverse-Gamma conjugate distribution over value.Float:
// x | mu, sigma2 ~ Normal(mu, sigma2), mu | sigma2 ~ Normal(m0, sigma2/k0),
// sigma2 ~ InverseGamma(a0, b0).
type Normal struct {
	M0, K0, A0, B0 float64
	n              float64
	sum, sumSq     float64
}

// NewNormal returns a Normal-Inverse-Gamma distribution with the given
// prior hyperparameters.
func NewNormal(m0, k0, a0, b0 float64) *Normal {
	return &Normal{M0: m0, K0: k0, A0: a0, B0: b0}
}

func (n *Normal) Incorporate(v value.Value, weight float64) {
	x := value.AsFloat(v)
	n.n += weight
	n.sum += weight * x
	n.sumSq += weight * x * x
}

func (n *Normal) Unincorporate(v value.Value) { n.Incorporate(v, -1) }

func (n *Normal) posterior() (kn, mn, an, bn float64) {
	kn = n.K0 + n.n
	if n.n == 0 {
		mn = n.M0
	} else {
		mn = (n.K0*n.M0 + n.sum) / kn
	}
	an = n.A0 + n.n/2
	var ss float64
	if n.n > 0 {
		mean := n.sum / n.n
		ss = n.sumSq - n.n*mean*mean
	}
	bn = n.B0 + 0.5*ss + (n.K0*n.n*(n.sum/maxOne(n.n)-n.M0)*(n.sum/maxOne(n.n)-n.M0))/(2*kn)
	return
}

func maxOne(n float64) float64 {
	if n == 0 {
		return 1
	}
	return n
}

func (n *Normal) Logp(v value.Value) float64 {
	x := value.AsFloat(v)
	kn, mn, an, bn := n.posterior()
	df := 2 * an
	scale2 := bn * (kn + 1) / (an * kn)
	return studentTLogPdf(x, df, mn, scale2)
}

func studentTLogPdf(x, df, loc, scale2 float64) float64 {
	lg1, _ := math.Lgamma((df + 1) / 2)
	lg2, _ := math.Lgamma(df / 2)
	z := (x - loc)
	return lg1 - lg2 - 0.5*math.Log(df*math.Pi*scale2) -
		((df+1)/2)*math.Log(1+(z*z)/(df*scale2))
}

func (n *Normal) LogpScore() float64 {
	_, _, an, bn := n.posterior()
	kn := n.K0 + n.n
	lgAn, _ := math.Lgamma(an)
	lgA0, _ := math.Lgamma(n.A0)
	score := lgAn - lgA0 + n.A0*math.Log(n.B0) - an*math.Log(bn) +
		0.5*math.Log(n.K0/kn) - (n.n/2)*math.Log(2*math.Pi)
	if math.IsNaN(score) {
		panic("distribution: normal logp_score produced NaN")
	}
	return score
}

func (n *Normal) Sample(s *prng.Stream) value.Value {
	kn, mn, an, bn := n.posterior()
	sigma2 := bn / sampleGamma(s, an)
	mean := mn + s.NormFloat64()*math.Sqrt(sigma2/kn)
	x := mean + s.NormFloat64()*math.Sqrt(sigma2)
	return value.Float(x)
}

// sampleGamma draws Gamma(shape, rate=1) via Marsaglia-Tsang.
func sampleGamma(s *prng.Stream, shape float64) float64 {
	if shape < 1 {
		u := s.Float64()
		return sampleGamma(s, shape+1) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		x := s.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := s.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

var (
	nigK0Grid = []float64{0.1, 0.5, 1, 2, 5}
	nigA0Grid = []float64{0.5, 1, 2, 5}
	nigB0Grid = []float64{0.5, 1, 2, 5}
)

func (n *Normal) TransitionHyperparameters(s *prng.Stream) {
	grids := [][]float64{nigK0Grid, nigA0Grid, nigB0Grid}
	params := gridSearch("normal", grids, func(p []float64) float64 {
		origK0, origA0, origB0 := n.K0, n.A0, n.B0
		n.K0, n.A0, n.B0 = p[0], p[1], p[2]
		score := n.LogpScore()
		n.K0, n.A0, n.B0 = origK0, origA0, origB0
		return score
	}, s)
	n.K0, n.A0, n.B0 = params[0], params[1], params[2]
}
