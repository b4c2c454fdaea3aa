package relation

import (
	"fmt"

	"github.com/pclean-go/pclean/internal/distribution"
	"github.com/pclean-go/pclean/internal/emission"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

// Base is the minimal surface a NoisyRelation needs from whatever it is
// built on — a CleanRelation, or another NoisyRelation (chaining, §4.5).
type Base interface {
	Value(items []int) (value.Value, bool)
	Arity() int
}

// Arity reports the number of domains a CleanRelation indexes by.
func (r *CleanRelation) Arity() int { return len(r.Domains) }

// NoisyRelation wraps a base relation with an emission channel: its values
// are draws from Emission applied to the base's clean value at the
// corresponding prefix of the tuple (§4.5).
type NoisyRelation struct {
	Name        string
	Domains     []*Domain
	Base        Base
	emissionRel *CleanRelation

	data             map[string]value.Value
	tupleItems       map[string][]int
	baseToNoisyItems map[string]map[string]struct{}
}

// NewNoisyRelation returns an empty noisy relation over domains (which must
// extend base's domains as a prefix) with the given emission family.
func NewNoisyRelation(name string, domains []*Domain, base Base, newEmission func() distribution.Distribution) *NoisyRelation {
	return &NoisyRelation{
		Name:             name,
		Domains:          domains,
		Base:             base,
		emissionRel:      NewCleanRelation(name+"$emission", domains, newEmission),
		data:             make(map[string]value.Value),
		tupleItems:       make(map[string][]int),
		baseToNoisyItems: make(map[string]map[string]struct{}),
	}
}

func (nr *NoisyRelation) prefix(items []int) []int {
	return items[:nr.Base.Arity()]
}

func (nr *NoisyRelation) baseValue(items []int) value.Value {
	v, ok := nr.Base.Value(nr.prefix(items))
	if !ok {
		panic(fmt.Sprintf("relation %s: base relation has no clean value for prefix of %v", nr.Name, items))
	}
	return v
}

// Arity reports the tuple length this noisy relation indexes by (its own
// domains, a superset-as-prefix of its base's).
func (nr *NoisyRelation) Arity() int { return len(nr.Domains) }

// DomainsList returns the relation's ordered domain list, satisfying the
// Relation interface shared with CleanRelation.
func (nr *NoisyRelation) DomainsList() []*Domain { return nr.Domains }

// RebindDomains swaps both the noisy relation's own domain pointers and its
// internal emission relation's (which must always stay index-identical to
// each other) — see CleanRelation.RebindDomains for the caller contract.
func (nr *NoisyRelation) RebindDomains(newDomains []*Domain) {
	if len(newDomains) != len(nr.Domains) {
		panic(fmt.Sprintf("relation %s: rebind arity %d, expected %d", nr.Name, len(newDomains), len(nr.Domains)))
	}
	nr.Domains = newDomains
	nr.emissionRel.RebindDomains(newDomains)
}

// RebuildClusters delegates to the internal emission relation, which holds
// the actual (clean, dirty) pair clusters.
func (nr *NoisyRelation) RebuildClusters() { nr.emissionRel.RebuildClusters() }

// IncorporateToCluster mutates only the emission cluster's sufficient
// statistics for the (clean, dirty) pair at items, bypassing data/data_r
// and the eager empty-cluster deletion rule (§4.4's transient interface,
// used directly by GenDB's reference reassignment, §4.9).
func (nr *NoisyRelation) IncorporateToCluster(items []int, dirty value.Value) {
	nr.emissionRel.IncorporateToCluster(items, value.Pair{Clean: nr.baseValue(items), Dirty: dirty})
}

// UnincorporateFromCluster is the transient inverse of IncorporateToCluster.
func (nr *NoisyRelation) UnincorporateFromCluster(items []int, dirty value.Value) {
	nr.emissionRel.UnincorporateFromCluster(items, value.Pair{Clean: nr.baseValue(items), Dirty: dirty})
}

// ForgetTuple removes items' bookkeeping from both the noisy relation's own
// data and the internal emission relation's (which also releases domain
// references), without touching emission cluster sufficient statistics.
func (nr *NoisyRelation) ForgetTuple(items []int) value.Value {
	k := encodeTuple(items)
	v, ok := nr.data[k]
	if !ok {
		panic(fmt.Sprintf("relation %s: forget_tuple of unknown items %v", nr.Name, items))
	}
	delete(nr.data, k)
	delete(nr.tupleItems, k)
	bk := encodeTuple(nr.prefix(items))
	delete(nr.baseToNoisyItems[bk], k)
	if len(nr.baseToNoisyItems[bk]) == 0 {
		delete(nr.baseToNoisyItems, bk)
	}
	nr.emissionRel.ForgetTuple(items)
	return v
}

// LogpGibbsExact delegates to the internal emission relation: the noisy
// relation's domains are identical, index-for-index, to its emission
// relation's, so a Gibbs move for an entity in one is a Gibbs move for the
// entity in the other.
func (nr *NoisyRelation) LogpGibbsExact(domain *Domain, item int, tables []int) []float64 {
	return nr.emissionRel.LogpGibbsExact(domain, item, tables)
}

// SetClusterAssignmentGibbs delegates to the internal emission relation.
func (nr *NoisyRelation) SetClusterAssignmentGibbs(domain *Domain, item, table int) {
	nr.emissionRel.SetClusterAssignmentGibbs(domain, item, table)
}

// TuplesMentioning delegates to the internal emission relation.
func (nr *NoisyRelation) TuplesMentioning(domainIdx, item int) [][]int {
	return nr.emissionRel.TuplesMentioning(domainIdx, item)
}

// Incorporate absorbs a dirty observation. The clean value is looked up
// from the base relation at incorporation time (§4.5).
func (nr *NoisyRelation) Incorporate(s *prng.Stream, items []int, dirty value.Value) {
	clean := nr.baseValue(items)
	nr.emissionRel.Incorporate(s, items, value.Pair{Clean: clean, Dirty: dirty})

	k := encodeTuple(items)
	nr.data[k] = dirty
	nr.tupleItems[k] = cloneInts(items)
	bk := encodeTuple(nr.prefix(items))
	if nr.baseToNoisyItems[bk] == nil {
		nr.baseToNoisyItems[bk] = make(map[string]struct{})
	}
	nr.baseToNoisyItems[bk][k] = struct{}{}
}

// Unincorporate reverses a prior Incorporate.
func (nr *NoisyRelation) Unincorporate(items []int) {
	k := encodeTuple(items)
	if _, ok := nr.data[k]; !ok {
		panic(fmt.Sprintf("relation %s: unincorporate of unknown items %v", nr.Name, items))
	}
	nr.emissionRel.Unincorporate(items)

	delete(nr.data, k)
	delete(nr.tupleItems, k)
	bk := encodeTuple(nr.prefix(items))
	delete(nr.baseToNoisyItems[bk], k)
	if len(nr.baseToNoisyItems[bk]) == 0 {
		delete(nr.baseToNoisyItems, bk)
	}
}

// Value returns the currently stored dirty value for items, if any.
func (nr *NoisyRelation) Value(items []int) (value.Value, bool) {
	v, ok := nr.data[encodeTuple(items)]
	return v, ok
}

// NoisyItemsForBase returns the stored noisy tuples whose base prefix is
// baseItems, used by the latent-value resampler (§4.6).
func (nr *NoisyRelation) NoisyItemsForBase(baseItems []int) [][]int {
	keys := nr.baseToNoisyItems[encodeTuple(baseItems)]
	out := make([][]int, 0, len(keys))
	for k := range keys {
		out = append(out, nr.tupleItems[k])
	}
	return out
}

// LogpScore delegates to the internal emission relation.
func (nr *NoisyRelation) LogpScore() float64 { return nr.emissionRel.LogpScore() }

// Logp scores v at items by delegating to the emission relation with the
// pair (clean, v).
func (nr *NoisyRelation) Logp(items []int, v value.Value, s *prng.Stream) float64 {
	clean := nr.baseValue(items)
	return nr.emissionRel.Logp(items, value.Pair{Clean: clean, Dirty: v}, s)
}

// EmissionRelation exposes the underlying clean relation over (clean,
// dirty) pairs — used by the latent-value resampler to reach the emission
// clusters directly for incorporate_to_cluster/propose_clean (§4.6).
func (nr *NoisyRelation) EmissionRelation() *CleanRelation { return nr.emissionRel }

// SampleCorrupted draws a dirty value given clean by delegating to the
// emission cluster that items currently belongs to.
func (nr *NoisyRelation) SampleCorrupted(items []int, clean value.Value, s *prng.Stream) value.Value {
	ck, ok := nr.emissionRel.clusterKey(items)
	var em emission.Emission
	if ok {
		if cl, exists := nr.emissionRel.clusters[encodeTuple(ck)]; exists {
			em = cl.(emission.Emission)
		}
	}
	if em == nil {
		em = nr.emissionRel.newCluster().(emission.Emission)
	}
	return em.SampleCorrupted(clean, s)
}
