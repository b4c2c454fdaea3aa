// Package gibbs implements the latent-value resampler (§4.6) and the
// driver loop that sequences Gibbs sweeps across the whole model
// (SPEC_FULL.md [EXPANSION], §6 driver configuration).
package gibbs

import (
	"github.com/pclean-go/pclean/internal/emission"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/relation"
	"github.com/pclean-go/pclean/internal/value"
	"github.com/pclean-go/pclean/internal/xmath"
)

// TransitionLatentValue resamples the clean value stored at tuple b in base,
// conditioning on every noisy observation tracing back to it through
// noisies (§4.6). Every relation's incorporated-tuple count is identical
// before and after the call — only the value at b and the sufficient
// statistics reflecting it change (property #5).
func TransitionLatentValue(base *relation.CleanRelation, noisies []*relation.NoisyRelation, b []int, s *prng.Stream) {
	clean, ok := base.Value(b)
	if !ok {
		panic("gibbs: transition_latent_value on an unincorporated base tuple")
	}
	base.UnincorporateFromCluster(b, clean)

	type savedNoisy struct {
		rel   *relation.NoisyRelation
		items []int
		dirty value.Value
	}
	var saved []savedNoisy
	var allDirty []value.Value
	for _, nr := range noisies {
		for _, items := range nr.NoisyItemsForBase(b) {
			dirty, ok := nr.Value(items)
			if !ok {
				continue
			}
			nr.EmissionRelation().UnincorporateFromCluster(items, value.Pair{Clean: clean, Dirty: dirty})
			saved = append(saved, savedNoisy{nr, items, dirty})
			allDirty = append(allDirty, dirty)
		}
	}

	baseline := 0.0
	for _, nr := range noisies {
		baseline += nr.LogpScore()
	}

	var candidates []value.Value
	for _, nr := range noisies {
		for _, cl := range nr.EmissionRelation().Clusters() {
			candidates = append(candidates, cl.(emission.Emission).ProposeClean(allDirty, s))
		}
	}
	candidates = append(candidates, clean) // always allow "no change"

	logWeights := make([]float64, len(candidates))
	for i, cand := range candidates {
		base.IncorporateToCluster(b, cand)
		for _, sv := range saved {
			sv.rel.EmissionRelation().IncorporateToCluster(sv.items, value.Pair{Clean: cand, Dirty: sv.dirty})
		}

		total := 0.0
		for _, nr := range noisies {
			total += nr.LogpScore()
		}
		logWeights[i] = total - baseline

		base.UnincorporateFromCluster(b, cand)
		for _, sv := range saved {
			sv.rel.EmissionRelation().UnincorporateFromCluster(sv.items, value.Pair{Clean: cand, Dirty: sv.dirty})
		}
	}

	winner := candidates[xmath.LogWeightedChoice(logWeights, s.Float64())]

	base.IncorporateToCluster(b, winner)
	for _, sv := range saved {
		sv.rel.EmissionRelation().IncorporateToCluster(sv.items, value.Pair{Clean: winner, Dirty: sv.dirty})
	}
	base.UpdateValue(b, winner)
}
