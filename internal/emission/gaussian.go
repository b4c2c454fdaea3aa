package emission

import (
	"github.com/pclean-go/pclean/internal/distribution"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

// Gaussian is the Float emission: dirty = clean + residual, residual ~
// Normal(0, sigma^2) with sigma^2 marginalized via a Normal-Inverse-Gamma
// prior on the residual itself (the prior mean of the residual is fixed at
// 0; its strength k0 is the caller's and is resampled with a0 and b0 by
// TransitionHyperparameters, so a nonzero mean shift is not ruled out).
type Gaussian struct {
	residual *distribution.Normal
}

// NewGaussian returns a Gaussian emission with the given Normal-Inverse-
// Gamma prior on the corruption variance.
func NewGaussian(k0, a0, b0 float64) *Gaussian {
	return &Gaussian{residual: distribution.NewNormal(0, k0, a0, b0)}
}

func residualOf(v value.Value) value.Value {
	p := value.AsPair(v)
	return value.Float(value.AsFloat(p.Dirty) - value.AsFloat(p.Clean))
}

func (g *Gaussian) Incorporate(v value.Value, weight float64) {
	g.residual.Incorporate(residualOf(v), weight)
}

func (g *Gaussian) Unincorporate(v value.Value) { g.Incorporate(v, -1) }

func (g *Gaussian) Logp(v value.Value) float64 { return g.residual.Logp(residualOf(v)) }

func (g *Gaussian) LogpScore() float64 { return g.residual.LogpScore() }

func (g *Gaussian) Sample(s *prng.Stream) value.Value {
	clean := value.Float(0)
	return value.Pair{Clean: clean, Dirty: g.SampleCorrupted(clean, s)}
}

func (g *Gaussian) TransitionHyperparameters(s *prng.Stream) {
	g.residual.TransitionHyperparameters(s)
}

func (g *Gaussian) SampleCorrupted(clean value.Value, s *prng.Stream) value.Value {
	residual := value.AsFloat(g.residual.Sample(s))
	return value.Float(value.AsFloat(clean) + residual)
}

// ProposeClean returns the mean of the observed dirties — the maximum
// likelihood point estimate under additive Gaussian noise, and a
// reasonable peak even though the residual variance is not yet known.
func (g *Gaussian) ProposeClean(dirties []value.Value, s *prng.Stream) value.Value {
	if len(dirties) == 0 {
		return value.Float(0)
	}
	sum := 0.0
	for _, d := range dirties {
		sum += value.AsFloat(d)
	}
	return value.Float(sum / float64(len(dirties)))
}
