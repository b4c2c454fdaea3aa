package distribution

import (
	"math"

	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
	"github.com/pclean-go/pclean/internal/xmath"
)

// Skellam is a nonconjugate distribution over value.Int, the difference of
// two independent Poisson counts, with log-normal priors on mu1 and mu2
// (§9: the source's skellam.hh is syntactically broken; the intent —
// log-normal priors on mu1, mu2 — is implemented here with a log-domain
// Bessel-I evaluation for numerical stability, left as implementer's
// choice by §9).
type Skellam struct {
	PriorMeanLogMu, PriorSDLogMu float64
	Mu1, Mu2                     float64 // latent theta, see InitTheta/TransitionTheta
	counts                       map[int64]float64
}

// NewSkellam returns a Skellam distribution with the given log-normal
// prior on mu1 and mu2. Theta (Mu1, Mu2) is zero until InitTheta is called.
func NewSkellam(priorMean, priorSD float64) *Skellam {
	return &Skellam{
		PriorMeanLogMu: priorMean,
		PriorSDLogMu:   priorSD,
		counts:         make(map[int64]float64),
	}
}

func (sk *Skellam) Incorporate(v value.Value, weight float64) {
	sk.counts[value.AsInt(v)] += weight
}

func (sk *Skellam) Unincorporate(v value.Value) { sk.Incorporate(v, -1) }

func (sk *Skellam) Logp(v value.Value) float64 {
	return logSkellamPmf(value.AsInt(v), sk.Mu1, sk.Mu2)
}

// LogpScore returns the data log-likelihood at the current theta — for a
// nonconjugate family the "marginal of the data incorporated so far" is
// approximated by the likelihood at the current theta sample, with theta
// itself resampled by TransitionTheta (§4.2, Nonconjugate).
func (sk *Skellam) LogpScore() float64 {
	total := 0.0
	for k, weight := range sk.counts {
		total += weight * logSkellamPmf(k, sk.Mu1, sk.Mu2)
	}
	if math.IsNaN(total) {
		panic("distribution: skellam logp_score produced NaN")
	}
	return total
}

func (sk *Skellam) Sample(s *prng.Stream) value.Value {
	k1 := samplePoisson(s, sk.Mu1)
	k2 := samplePoisson(s, sk.Mu2)
	return value.Int(k1 - k2)
}

func samplePoisson(s *prng.Stream, mu float64) int64 {
	l := math.Exp(-mu)
	k := int64(0)
	p := 1.0
	for {
		p *= s.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

func (sk *Skellam) InitTheta(s *prng.Stream) {
	sk.Mu1 = math.Exp(sk.PriorMeanLogMu + sk.PriorSDLogMu*s.NormFloat64())
	sk.Mu2 = math.Exp(sk.PriorMeanLogMu + sk.PriorSDLogMu*s.NormFloat64())
}

func (sk *Skellam) TransitionTheta(s *prng.Stream) {
	factors := []float64{0.5, 0.8, 1, 1.25, 2}
	mu1Grid := make([]float64, len(factors))
	mu2Grid := make([]float64, len(factors))
	for i, f := range factors {
		mu1Grid[i] = sk.Mu1 * f
		mu2Grid[i] = sk.Mu2 * f
	}
	grids := [][]float64{mu1Grid, mu2Grid}
	params := gridSearch("skellam-theta", grids, func(p []float64) float64 {
		origMu1, origMu2 := sk.Mu1, sk.Mu2
		sk.Mu1, sk.Mu2 = p[0], p[1]
		score := sk.LogpScore() + logNormalPdf(math.Log(sk.Mu1), sk.PriorMeanLogMu, sk.PriorSDLogMu) +
			logNormalPdf(math.Log(sk.Mu2), sk.PriorMeanLogMu, sk.PriorSDLogMu)
		sk.Mu1, sk.Mu2 = origMu1, origMu2
		return score
	}, s)
	sk.Mu1, sk.Mu2 = params[0], params[1]
}

var skellamPriorGrid = []float64{0.25, 0.5, 1, 2}

func (sk *Skellam) TransitionHyperparameters(s *prng.Stream) {
	grids := [][]float64{skellamPriorGrid}
	params := gridSearch("skellam-prior", grids, func(p []float64) float64 {
		return logNormalPdf(math.Log(sk.Mu1), sk.PriorMeanLogMu, p[0]) +
			logNormalPdf(math.Log(sk.Mu2), sk.PriorMeanLogMu, p[0])
	}, s)
	sk.PriorSDLogMu = params[0]
}

func logNormalPdf(x, mean, sd float64) float64 {
	z := (x - mean) / sd
	return -0.5*z*z - math.Log(sd) - 0.5*math.Log(2*math.Pi)
}

// logSkellamPmf returns log P(K=k | mu1, mu2) via a log-domain series
// evaluation of the modified Bessel function of the first kind.
func logSkellamPmf(k int64, mu1, mu2 float64) float64 {
	absK := k
	if absK < 0 {
		absK = -absK
	}
	x := 2 * math.Sqrt(mu1*mu2)
	logI := logBesselI(float64(absK), x)
	return -(mu1 + mu2) + (float64(k)/2)*(math.Log(mu1)-math.Log(mu2)) + logI
}

// logBesselI evaluates log(I_v(x)) for integer or half-integer v >= 0 and
// x >= 0 via the series I_v(x) = sum_m (x/2)^(2m+v) / (m! Gamma(m+v+1)),
// summed in log space with xmath.LogSumExp so no term under/overflows.
func logBesselI(v, x float64) float64 {
	if x == 0 {
		if v == 0 {
			return 0
		}
		return math.Inf(-1)
	}
	const terms = 64
	logs := make([]float64, terms)
	logHalfX := math.Log(x / 2)
	for m := 0; m < terms; m++ {
		lgM1, _ := math.Lgamma(float64(m) + 1)
		lgMv1, _ := math.Lgamma(float64(m) + v + 1)
		logs[m] = (2*float64(m)+v)*logHalfX - lgM1 - lgMv1
	}
	return xmath.LogSumExp(logs)
}
