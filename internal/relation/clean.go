package relation

import (
	"fmt"

	"github.com/pclean-go/pclean/internal/distribution"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
	"github.com/pclean-go/pclean/internal/xmath"
)

// CleanRelation maps tuples of entities to a value through a cluster-
// conditional distribution, bucketed by the per-domain CRP partition (§4.4).
type CleanRelation struct {
	Name       string
	Domains    []*Domain
	newCluster func() distribution.Distribution

	data         map[string]value.Value
	tupleItems   map[string][]int
	dataR        []map[int]map[string]struct{} // per-domain-position: item -> set of tuple keys
	clusters     map[string]distribution.Distribution
	clusterCount map[string]int
}

// NewCleanRelation returns an empty relation of arity len(domains). newCluster
// must return a fresh, empty Distribution of the cluster's value family.
func NewCleanRelation(name string, domains []*Domain, newCluster func() distribution.Distribution) *CleanRelation {
	return &CleanRelation{
		Name:         name,
		Domains:      domains,
		newCluster:   newCluster,
		data:         make(map[string]value.Value),
		tupleItems:   make(map[string][]int),
		dataR:        make([]map[int]map[string]struct{}, len(domains)),
		clusters:     make(map[string]distribution.Distribution),
		clusterCount: make(map[string]int),
	}
}

// DomainsList returns the relation's ordered domain list, satisfying the
// Relation interface shared with NoisyRelation.
func (r *CleanRelation) DomainsList() []*Domain { return r.Domains }

// ForgetTuple removes items' data/data_r bookkeeping (releasing each
// item's domain reference) without touching cluster sufficient statistics —
// the data-only counterpart to UnincorporateFromCluster, used together by
// GenDB's reference reassignment to detach a tuple while retaining its
// (possibly now-empty) cluster for the duration of the resampling (§4.9).
func (r *CleanRelation) ForgetTuple(items []int) value.Value {
	k := encodeTuple(items)
	v, ok := r.data[k]
	if !ok {
		panic(fmt.Sprintf("relation %s: forget_tuple of unknown items %v", r.Name, items))
	}
	delete(r.data, k)
	delete(r.tupleItems, k)
	for i, it := range items {
		delete(r.dataR[i][it], k)
		if len(r.dataR[i][it]) == 0 {
			delete(r.dataR[i], it)
			r.Domains[i].Release(it)
		}
	}
	return v
}

// RebuildClusters discards every existing cluster and re-derives them from
// scratch by replaying the relation's own stored (items, value) pairs
// against the domains it currently points at. Used after RebindDomains:
// rather than try to remap old cluster-key strings onto whatever table ids
// the new domains happen to use (which may differ arbitrarily from the old
// ones), every stored tuple is simply re-incorporated under its freshly
// computed cluster key. Hyperparameter tuning on the rebuilt clusters is
// lost and starts over at the family's defaults — acceptable since a
// transition_hyperparameters sweep retunes them regardless (§4.8, HIRM
// relation movement).
func (r *CleanRelation) RebuildClusters() {
	r.clusters = make(map[string]distribution.Distribution)
	r.clusterCount = make(map[string]int)
	for k, v := range r.data {
		items := r.tupleItems[k]
		ck, ok := r.clusterKey(items)
		if !ok {
			panic(fmt.Sprintf("relation %s: rebuild_clusters with item missing from its domain", r.Name))
		}
		r.incorporateIntoCluster(encodeTuple(ck), v)
	}
}

// RebindDomains swaps the relation's domain pointers in place (same arity
// and order). Existing cluster keys stay valid only if the replacement
// domains report the same table id for every item the relation currently
// references — callers must arrange that (via Domain.Clone/AdoptFrom)
// before calling this (§4.8, HIRM relation movement).
func (r *CleanRelation) RebindDomains(newDomains []*Domain) {
	if len(newDomains) != len(r.Domains) {
		panic(fmt.Sprintf("relation %s: rebind arity %d, expected %d", r.Name, len(newDomains), len(r.Domains)))
	}
	r.Domains = newDomains
}

func (r *CleanRelation) arityCheck(items []int) {
	if len(items) != len(r.Domains) {
		panic(fmt.Sprintf("relation %s: items arity %d, expected %d", r.Name, len(items), len(r.Domains)))
	}
}

// clusterKey derives the cluster key from the domains' current CRP
// assignments. ok is false if some item is not yet a member of its domain.
func (r *CleanRelation) clusterKey(items []int) (ck []int, ok bool) {
	ck = make([]int, len(items))
	for i, it := range items {
		t, present := r.Domains[i].ClusterOf(it)
		if !present {
			return nil, false
		}
		ck[i] = t
	}
	return ck, true
}

func (r *CleanRelation) ensureCluster(ckStr string) distribution.Distribution {
	cl, ok := r.clusters[ckStr]
	if !ok {
		cl = r.newCluster()
		r.clusters[ckStr] = cl
	}
	return cl
}

func (r *CleanRelation) incorporateIntoCluster(ckStr string, v value.Value) {
	r.ensureCluster(ckStr).Incorporate(v, 1)
	r.clusterCount[ckStr]++
}

func (r *CleanRelation) unincorporateFromCluster(ckStr string, v value.Value, retainEmpty bool) {
	cl, ok := r.clusters[ckStr]
	if !ok {
		panic("relation: unincorporate from unknown cluster " + ckStr)
	}
	cl.Unincorporate(v)
	r.clusterCount[ckStr]--
	if !retainEmpty && r.clusterCount[ckStr] <= 0 {
		delete(r.clusters, ckStr)
		delete(r.clusterCount, ckStr)
	}
}

// Incorporate absorbs observation (items, v). Precondition: items is not
// already in the relation (§4.4).
func (r *CleanRelation) Incorporate(s *prng.Stream, items []int, v value.Value) {
	r.arityCheck(items)
	k := encodeTuple(items)
	if _, exists := r.data[k]; exists {
		panic(fmt.Sprintf("relation %s: items %v already incorporated", r.Name, items))
	}
	ck := make([]int, len(items))
	for i, it := range items {
		// Only the first tuple mentioning it at this position takes a domain
		// reference; Unincorporate and ForgetTuple release it with the last.
		if t, ok := r.Domains[i].ClusterOf(it); ok && len(r.dataR[i][it]) > 0 {
			ck[i] = t
			continue
		}
		ck[i] = r.Domains[i].Retain(it, s)
	}
	r.incorporateIntoCluster(encodeTuple(ck), v)

	r.data[k] = v
	r.tupleItems[k] = cloneInts(items)
	for i, it := range items {
		if r.dataR[i] == nil {
			r.dataR[i] = make(map[int]map[string]struct{})
		}
		if r.dataR[i][it] == nil {
			r.dataR[i][it] = make(map[string]struct{})
		}
		r.dataR[i][it][k] = struct{}{}
	}
}

// Unincorporate reverses a prior Incorporate for items.
func (r *CleanRelation) Unincorporate(items []int) {
	r.arityCheck(items)
	k := encodeTuple(items)
	v, ok := r.data[k]
	if !ok {
		panic(fmt.Sprintf("relation %s: unincorporate of unknown items %v", r.Name, items))
	}
	ck, ok := r.clusterKey(items)
	if !ok {
		panic(fmt.Sprintf("relation %s: unincorporate with item missing from its domain", r.Name))
	}
	r.unincorporateFromCluster(encodeTuple(ck), v, false)

	delete(r.data, k)
	delete(r.tupleItems, k)
	for i, it := range items {
		delete(r.dataR[i][it], k)
		if len(r.dataR[i][it]) == 0 {
			delete(r.dataR[i], it)
			r.Domains[i].Release(it)
		}
	}
}

// Value returns the currently stored value for items, if any.
func (r *CleanRelation) Value(items []int) (value.Value, bool) {
	v, ok := r.data[encodeTuple(items)]
	return v, ok
}

// UpdateValue overwrites the stored value for an already-incorporated
// tuple without touching cluster sufficient statistics — callers must have
// already moved the cluster-level statistics themselves (used by the
// latent-value resampler to sync data after incorporate_to_cluster, §4.6).
func (r *CleanRelation) UpdateValue(items []int, v value.Value) {
	k := encodeTuple(items)
	if _, ok := r.data[k]; !ok {
		panic(fmt.Sprintf("relation %s: update_value of unknown items %v", r.Name, items))
	}
	r.data[k] = v
}

// TuplesMentioning returns the item-tuples that reference item at domain
// position domainIdx, for Gibbs reassignment fanout (§4.7).
func (r *CleanRelation) TuplesMentioning(domainIdx, item int) [][]int {
	if r.dataR[domainIdx] == nil {
		return nil
	}
	keys := r.dataR[domainIdx][item]
	out := make([][]int, 0, len(keys))
	for k := range keys {
		out = append(out, r.tupleItems[k])
	}
	return out
}

// Clusters exposes the live cluster-key -> Distribution map, for callers
// that need to enumerate every cluster (e.g. the latent-value resampler's
// propose_clean fanout, §4.6). Callers must not mutate the returned map.
func (r *CleanRelation) Clusters() map[string]distribution.Distribution { return r.clusters }

// LogpScore returns the sum of every cluster's marginal log-score (§4.4).
func (r *CleanRelation) LogpScore() float64 {
	total := 0.0
	for _, cl := range r.clusters {
		total += cl.LogpScore()
	}
	return total
}

func (r *CleanRelation) clusterLogp(ck []int, v value.Value) float64 {
	key := encodeTuple(ck)
	if cl, ok := r.clusters[key]; ok {
		return cl.Logp(v)
	}
	return r.newCluster().Logp(v)
}

// Logp returns the predictive log-probability of observing v at items. If
// some items[i] is not yet a member of its domain, the result marginalizes
// over that domain's Gibbs predictive distribution and over the Cartesian
// product of cluster combinations this induces (§4.4.1).
func (r *CleanRelation) Logp(items []int, v value.Value, s *prng.Stream) float64 {
	r.arityCheck(items)
	fixed := make([]int, len(items))
	var absentPos []int
	var candidateTables [][]int
	var candidateLogp [][]float64
	for i, it := range items {
		if t, ok := r.Domains[i].ClusterOf(it); ok {
			fixed[i] = t
			continue
		}
		fixed[i] = -1
		weights := r.Domains[i].CRP.TablesWeights()
		tables := xmath.SortedKeys(weights)
		lps := make([]float64, len(tables))
		for j, t := range tables {
			lps[j] = r.Domains[i].CRP.Logp(t)
		}
		absentPos = append(absentPos, i)
		candidateTables = append(candidateTables, tables)
		candidateLogp = append(candidateLogp, lps)
	}
	if len(absentPos) == 0 {
		return r.clusterLogp(fixed, v)
	}
	sizes := make([]int, len(absentPos))
	for i, tabs := range candidateTables {
		sizes[i] = len(tabs)
	}
	combos := xmath.CartesianProduct(sizes)
	terms := make([]float64, 0, len(combos))
	for _, combo := range combos {
		ck := cloneInts(fixed)
		logw := 0.0
		for pos, choice := range combo {
			i := absentPos[pos]
			ck[i] = candidateTables[pos][choice]
			logw += candidateLogp[pos][choice]
		}
		terms = append(terms, logw+r.clusterLogp(ck, v))
	}
	return xmath.LogSumExp(terms)
}

// IncorporateToCluster mutates only the cluster sufficient statistics for
// items' current cluster key, bypassing data/data_r and the eager empty-
// cluster deletion rule. Must be paired with an equal UnincorporateFromCluster
// before any other observable method runs (§4.4, transient interface).
func (r *CleanRelation) IncorporateToCluster(items []int, v value.Value) {
	ck, ok := r.clusterKey(items)
	if !ok {
		panic(fmt.Sprintf("relation %s: incorporate_to_cluster with item missing from its domain", r.Name))
	}
	key := encodeTuple(ck)
	r.ensureCluster(key).Incorporate(v, 1)
	r.clusterCount[key]++
}

// UnincorporateFromCluster is the transient inverse of IncorporateToCluster.
func (r *CleanRelation) UnincorporateFromCluster(items []int, v value.Value) {
	ck, ok := r.clusterKey(items)
	if !ok {
		panic(fmt.Sprintf("relation %s: unincorporate_from_cluster with item missing from its domain", r.Name))
	}
	r.unincorporateFromCluster(encodeTuple(ck), v, true)
}

// SetClusterAssignmentGibbs moves every tuple that references item at a
// position bound to domain from its current cluster to the cluster implied
// by item sitting at table, creating/deleting clusters as the normal
// (non-transient) incorporate/unincorporate rules dictate (§4.4).
func (r *CleanRelation) SetClusterAssignmentGibbs(domain *Domain, item, table int) {
	for i, d := range r.Domains {
		if d != domain {
			continue
		}
		for _, tuple := range r.TuplesMentioning(i, item) {
			oldCK, ok := r.clusterKey(tuple)
			if !ok {
				continue
			}
			newCK := cloneInts(oldCK)
			newCK[i] = table
			if encodeTuple(oldCK) == encodeTuple(newCK) {
				continue
			}
			v, _ := r.Value(tuple)
			r.unincorporateFromCluster(encodeTuple(oldCK), v, false)
			r.incorporateIntoCluster(encodeTuple(newCK), v)
		}
	}
}

// LogpGibbsExact scores moving item (currently in domain) to each candidate
// table in tables, returning the relation's incremental log-score delta for
// each — must equal the delta of actually calling SetClusterAssignmentGibbs
// and rescoring (§4.4, tested by property #3).
func (r *CleanRelation) LogpGibbsExact(domain *Domain, item int, tables []int) []float64 {
	domainIdx := -1
	for i, d := range r.Domains {
		if d == domain {
			domainIdx = i
			break
		}
	}
	if domainIdx == -1 {
		return make([]float64, len(tables))
	}
	existing := make(map[string]struct{}, len(r.clusters))
	for k := range r.clusters {
		existing[k] = struct{}{}
	}
	scoreOf := func(key string) float64 {
		if cl, ok := r.clusters[key]; ok {
			return cl.LogpScore()
		}
		return 0
	}

	out := make([]float64, len(tables))
	for idx, table := range tables {
		type move struct {
			oldKey, newKey string
			v              value.Value
		}
		var moves []move
		touched := make(map[string]struct{})
		for _, tuple := range r.TuplesMentioning(domainIdx, item) {
			oldCK, ok := r.clusterKey(tuple)
			if !ok {
				continue
			}
			newCK := cloneInts(oldCK)
			newCK[domainIdx] = table
			oldKey, newKey := encodeTuple(oldCK), encodeTuple(newCK)
			if oldKey == newKey {
				continue
			}
			v, _ := r.Value(tuple)
			moves = append(moves, move{oldKey, newKey, v})
			touched[oldKey] = struct{}{}
			touched[newKey] = struct{}{}
		}

		before := 0.0
		for k := range touched {
			before += scoreOf(k)
		}
		for _, m := range moves {
			r.unincorporateFromCluster(m.oldKey, m.v, true)
		}
		for _, m := range moves {
			r.ensureCluster(m.newKey).Incorporate(m.v, 1)
			r.clusterCount[m.newKey]++
		}
		after := 0.0
		for k := range touched {
			after += scoreOf(k)
		}
		out[idx] = after - before

		// Revert.
		for _, m := range moves {
			r.unincorporateFromCluster(m.newKey, m.v, true)
		}
		for _, m := range moves {
			r.ensureCluster(m.oldKey).Incorporate(m.v, 1)
			r.clusterCount[m.oldKey]++
		}
	}

	for k, n := range r.clusterCount {
		if n <= 0 {
			if _, wasThere := existing[k]; !wasThere {
				delete(r.clusters, k)
			}
			delete(r.clusterCount, k)
		}
	}
	return out
}
