package relation

import (
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

// Relation is the common surface IRM needs from either a CleanRelation or a
// NoisyRelation: enough to run Gibbs reassignment of entities and to score
// observations, without caring whether the underlying value is a clean
// value or a (clean, dirty) pair.
type Relation interface {
	DomainsList() []*Domain
	Value(items []int) (value.Value, bool)
	Incorporate(s *prng.Stream, items []int, v value.Value)
	Unincorporate(items []int)
	Logp(items []int, v value.Value, s *prng.Stream) float64
	LogpScore() float64
	LogpGibbsExact(domain *Domain, item int, tables []int) []float64
	SetClusterAssignmentGibbs(domain *Domain, item, table int)
	TuplesMentioning(domainIdx, item int) [][]int

	// RebindDomains and RebuildClusters together support moving a relation
	// between IRMs (§4.8): a caller first arranges replacement domain
	// objects with the right per-item membership, rebinds the relation onto
	// them, then rebuilds its clusters fresh against the new assignment.
	RebindDomains(newDomains []*Domain)
	RebuildClusters()

	// IncorporateToCluster/UnincorporateFromCluster are the transient
	// cluster-only mutators (§4.4), also used by GenDB's reference
	// reassignment to probe candidate entities without touching data/data_r
	// (§4.9).
	IncorporateToCluster(items []int, v value.Value)
	UnincorporateFromCluster(items []int, v value.Value)

	// ForgetTuple is the data-only counterpart: it removes a tuple's
	// data/data_r bookkeeping (releasing domain references) without
	// touching cluster sufficient statistics, the other half of the
	// "retain empty clusters" step of GenDB reference reassignment (§4.9).
	ForgetTuple(items []int) value.Value
}

var (
	_ Relation = (*CleanRelation)(nil)
	_ Relation = (*NoisyRelation)(nil)
)
