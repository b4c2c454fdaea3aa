// Package distribution implements the Distribution<V> interface (§4.2) and
// the six value-type distribution families §6 requires: bernoulli, bigram,
// categorical(k=N), normal, skellam, stringcat(strings=S, delim=D).
//
// Every conjugate family maintains sufficient statistics incrementally.
// TransitionHyperparameters is grid-Gibbs: enumerate the Cartesian product
// of the family's hyperparameter grids, score each with LogpScore, and
// sample by log-weight. If every grid point yields NaN, the family panics
// with ErrHyperparameterDegeneracy wrapped in the message — per §7 this is
// a fatal, process-aborting condition, not a recoverable one.
package distribution

import (
	"errors"
	"fmt"
	"math"

	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
	"github.com/pclean-go/pclean/internal/xmath"
)

// ErrHyperparameterDegeneracy is the sentinel wrapped into the panic value
// raised when a hyperparameter grid search finds every candidate scores to
// NaN (§7).
var ErrHyperparameterDegeneracy = errors.New("distribution: every hyperparameter grid point scored NaN")

// Distribution is a cluster-conditional distribution over a value type V.
type Distribution interface {
	// Incorporate absorbs v into the sufficient statistics with the given
	// weight (negative weight is how Unincorporate is expressed).
	Incorporate(v value.Value, weight float64)
	// Unincorporate is Incorporate(v, -1).
	Unincorporate(v value.Value)
	// Logp returns the predictive log-probability of v given everything
	// incorporated so far.
	Logp(v value.Value) float64
	// LogpScore returns the marginal log-probability of the data
	// incorporated so far (integrating out the family's parameters).
	LogpScore() float64
	// Sample draws a value from the predictive distribution.
	Sample(s *prng.Stream) value.Value
	// TransitionHyperparameters resamples the family's hyperparameters by
	// grid-Gibbs.
	TransitionHyperparameters(s *prng.Stream)
}

// Nonconjugate is a Distribution whose family is not analytically
// marginalized: it carries an explicit latent parameter vector ("theta")
// that must be initialized and periodically resampled.
type Nonconjugate interface {
	Distribution
	InitTheta(s *prng.Stream)
	TransitionTheta(s *prng.Stream)
}

func degeneracyPanic(family string, numPoints int) {
	panic(fmt.Sprintf("%s: %s hyperparameter grid of %d points", ErrHyperparameterDegeneracy, family, numPoints))
}

// gridSearch enumerates the Cartesian product of per-parameter grids,
// scores each combination with score, and samples one combination by
// log-weight. Panics (ErrHyperparameterDegeneracy) if every combination
// scores NaN.
func gridSearch(family string, grids [][]float64, score func(params []float64) float64, s *prng.Stream) []float64 {
	sizes := make([]int, len(grids))
	for i, g := range grids {
		sizes[i] = len(g)
	}
	combos := xmath.CartesianProduct(sizes)
	logWeights := make([]float64, len(combos))
	allNaN := true
	for i, combo := range combos {
		params := paramsFromCombo(grids, combo)
		lw := score(params)
		logWeights[i] = lw
		if !math.IsNaN(lw) {
			allNaN = false
		}
	}
	if allNaN {
		degeneracyPanic(family, len(combos))
	}
	for i := range logWeights {
		if math.IsNaN(logWeights[i]) {
			logWeights[i] = math.Inf(-1)
		}
	}
	idx := xmath.LogWeightedChoice(logWeights, s.Float64())
	return paramsFromCombo(grids, combos[idx])
}

func paramsFromCombo(grids [][]float64, combo []int) []float64 {
	params := make([]float64, len(combo))
	for j, k := range combo {
		params[j] = grids[j][k]
	}
	return params
}
