package main

import (
	"fmt"

	"github.com/pclean-go/pclean/internal/distribution"
	"github.com/pclean-go/pclean/internal/emission"
	"github.com/pclean-go/pclean/internal/schema"
)

// newClusterFactory returns the cluster-conditional distribution
// constructor for a clean relation's declared family, reading its
// parameters by name with the defaults the distribution package itself
// uses for an unconfigured prior.
func newClusterFactory(spec *schema.ParamSpec) (func() distribution.Distribution, error) {
	if spec == nil {
		return nil, fmt.Errorf("family: dist_spec is required for a clean relation")
	}
	p := spec.Params
	switch spec.Family {
	case "bernoulli":
		alpha, beta := paramOr(p, "alpha", 1), paramOr(p, "beta", 1)
		return func() distribution.Distribution { return distribution.NewBernoulli(alpha, beta) }, nil
	case "normal":
		m0, k0, a0, b0 := paramOr(p, "m0", 0), paramOr(p, "k0", 1), paramOr(p, "a0", 1), paramOr(p, "b0", 1)
		return func() distribution.Distribution { return distribution.NewNormal(m0, k0, a0, b0) }, nil
	case "categorical":
		k, conc := int(paramOr(p, "k", 2)), paramOr(p, "conc", 1)
		return func() distribution.Distribution { return distribution.NewCategorical(k, conc) }, nil
	case "bigram":
		conc := paramOr(p, "conc", 1)
		return func() distribution.Distribution { return distribution.NewBigram(conc) }, nil
	case "skellam":
		mean, sd := paramOr(p, "prior_mean", 0), paramOr(p, "prior_sd", 1)
		return func() distribution.Distribution { return distribution.NewSkellam(mean, sd) }, nil
	default:
		return nil, fmt.Errorf("family: unknown dist family %q", spec.Family)
	}
}

// newEmissionFactory returns the emission constructor for a noisy
// relation's declared family. "sometimes" is not supported here: its inner
// family can't be expressed by the flat (family, params) ParamSpec this
// loader reads schema documents into, so a composite sometimes_* emission
// must be constructed in Go directly rather than from a schema file.
func newEmissionFactory(spec *schema.ParamSpec) (func() distribution.Distribution, error) {
	if spec == nil {
		return nil, fmt.Errorf("family: emission_spec is required for a noisy relation")
	}
	p := spec.Params
	switch spec.Family {
	case "bitflip":
		alpha, beta := paramOr(p, "alpha", 1), paramOr(p, "beta", 1)
		return func() distribution.Distribution { return emission.NewBitFlip(alpha, beta) }, nil
	case "gaussian":
		k0, a0, b0 := paramOr(p, "k0", 1), paramOr(p, "a0", 1), paramOr(p, "b0", 1)
		return func() distribution.Distribution { return emission.NewGaussian(k0, a0, b0) }, nil
	case "categorical":
		k, conc := int(paramOr(p, "k", 2)), paramOr(p, "conc", 1)
		return func() distribution.Distribution { return emission.NewCategorical(k, conc) }, nil
	case "simple_string":
		alpha, beta, bg := paramOr(p, "alpha", 1), paramOr(p, "beta", 1), paramOr(p, "background_conc", 1)
		return func() distribution.Distribution { return emission.NewSimpleString(alpha, beta, bg) }, nil
	case "bigram_string":
		alpha, beta, subst := paramOr(p, "alpha", 1), paramOr(p, "beta", 1), paramOr(p, "subst_conc", 1)
		return func() distribution.Distribution { return emission.NewBigramString(alpha, beta, subst) }, nil
	default:
		return nil, fmt.Errorf("family: unknown emission family %q (sometimes_* composites require a Go-built schema)", spec.Family)
	}
}

func paramOr(params map[string]float64, key string, fallback float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return fallback
}

// valueKind is the value.Value variant a family's observations decode to,
// needed by the observation-file loader since schema documents declare a
// family name, not a Go type.
type valueKind int

const (
	valueKindBool valueKind = iota
	valueKindInt
	valueKindFloat
	valueKindStr
)

func valueKindForFamily(family string) (valueKind, error) {
	switch family {
	case "bernoulli", "bitflip":
		return valueKindBool, nil
	case "categorical", "skellam":
		return valueKindInt, nil
	case "normal", "gaussian":
		return valueKindFloat, nil
	case "bigram", "simple_string", "bigram_string":
		return valueKindStr, nil
	default:
		return 0, fmt.Errorf("family: no known value kind for family %q", family)
	}
}
