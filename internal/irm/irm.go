// Package irm implements the Infinite Relational Model (§4.7): a set of
// domains and the relations defined over them, with Gibbs reassignment of
// entities to clusters.
package irm

import (
	"fmt"
	"math"

	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/relation"
	"github.com/pclean-go/pclean/internal/value"
	"github.com/pclean-go/pclean/internal/xmath"
)

// Observation is one incorporated-or-hypothetical (relation, items, value)
// triple, the unit IRM.Logp scores jointly (§4.7).
type Observation struct {
	RelationName string
	Items        []int
	Value        value.Value
}

// IRM owns a set of domains and the relations defined over them.
//
// Domain identity is local to one IRM: two different IRMs may each hold a
// domain of the same name, but they are distinct *relation.Domain objects
// with their own partitions. Moving a relation to another IRM under HIRM
// copies its per-domain entity memberships into the destination's domain
// objects (see Domain.Clone/Domain.AdoptFrom) rather than sharing a pointer
// across tables (§5's shared-resource policy).
type IRM struct {
	Domains           map[string]*relation.Domain
	Relations         map[string]relation.Relation
	domainToRelations map[string]map[string]struct{}
}

// New returns an empty IRM.
func New() *IRM {
	return &IRM{
		Domains:           make(map[string]*relation.Domain),
		Relations:         make(map[string]relation.Relation),
		domainToRelations: make(map[string]map[string]struct{}),
	}
}

// AddRelation registers rel under name, creating domain_to_relations
// entries for every domain it references.
func (m *IRM) AddRelation(name string, rel relation.Relation) {
	if _, exists := m.Relations[name]; exists {
		panic(fmt.Sprintf("irm: relation %q already registered", name))
	}
	m.Relations[name] = rel
	for _, d := range rel.DomainsList() {
		if _, ok := m.Domains[d.Name]; !ok {
			m.Domains[d.Name] = d
		}
		if m.domainToRelations[d.Name] == nil {
			m.domainToRelations[d.Name] = make(map[string]struct{})
		}
		m.domainToRelations[d.Name][name] = struct{}{}
	}
}

// RemoveRelation detaches and returns the named relation, garbage-
// collecting any domain left unreferenced by every remaining relation.
func (m *IRM) RemoveRelation(name string) relation.Relation {
	rel, ok := m.Relations[name]
	if !ok {
		panic(fmt.Sprintf("irm: remove of unregistered relation %q", name))
	}
	delete(m.Relations, name)
	for _, d := range rel.DomainsList() {
		delete(m.domainToRelations[d.Name], name)
		if len(m.domainToRelations[d.Name]) == 0 {
			delete(m.domainToRelations, d.Name)
			delete(m.Domains, d.Name)
		}
	}
	return rel
}

// IsEmpty reports whether the IRM has no relations left.
func (m *IRM) IsEmpty() bool { return len(m.Relations) == 0 }

// TransitionClusterAssignmentItem performs one Gibbs reassignment of item
// (a member of domainName) to a cluster, weighting each candidate table by
// the domain CRP's Gibbs weights plus every observing relation's exact
// incremental log-score (§4.7).
func (m *IRM) TransitionClusterAssignmentItem(s *prng.Stream, domainName string, item int) {
	d, ok := m.Domains[domainName]
	if !ok {
		panic(fmt.Sprintf("irm: unknown domain %q", domainName))
	}
	weights := d.CRP.TablesWeightsGibbs(item)
	tables := xmath.SortedKeys(weights)
	logWeights := make([]float64, len(tables))
	for i, t := range tables {
		logWeights[i] = math.Log(weights[t])
	}
	for relName := range m.domainToRelations[domainName] {
		deltas := m.Relations[relName].LogpGibbsExact(d, item, tables)
		for i := range tables {
			logWeights[i] += deltas[i]
		}
	}

	chosen := tables[xmath.LogWeightedChoice(logWeights, s.Float64())]
	current, _ := d.ClusterOf(item)
	if chosen == current {
		return
	}
	for relName := range m.domainToRelations[domainName] {
		m.Relations[relName].SetClusterAssignmentGibbs(d, item, chosen)
	}
	d.CRP.Unincorporate(item)
	d.CRP.Incorporate(item, chosen)
}

// LogpScore returns the sum of every domain CRP's score plus every
// relation's score (§4.7).
func (m *IRM) LogpScore() float64 {
	total := 0.0
	for _, d := range m.Domains {
		total += d.CRP.LogpScore()
	}
	for _, r := range m.Relations {
		total += r.LogpScore()
	}
	return total
}

type absentKey struct {
	domain *relation.Domain
	item   int
}

// Logp returns the joint marginal log-likelihood of observations, enumerating
// cluster-assignment combinations for any entity that is not yet a member
// of its domain (§4.7).
func (m *IRM) Logp(observations []Observation) float64 {
	seen := make(map[absentKey]bool)
	var absent []absentKey
	for _, obs := range observations {
		rel, ok := m.Relations[obs.RelationName]
		if !ok {
			panic(fmt.Sprintf("irm: logp over unregistered relation %q", obs.RelationName))
		}
		domains := rel.DomainsList()
		for i, it := range obs.Items {
			if !domains[i].Has(it) {
				k := absentKey{domains[i], it}
				if !seen[k] {
					seen[k] = true
					absent = append(absent, k)
				}
			}
		}
	}
	return m.logpRecurse(observations, absent, 0, 0)
}

func (m *IRM) logpRecurse(observations []Observation, absent []absentKey, idx int, logWeightSoFar float64) float64 {
	if idx == len(absent) {
		total := logWeightSoFar
		for _, obs := range observations {
			total += m.Relations[obs.RelationName].Logp(obs.Items, obs.Value, nil)
		}
		return total
	}
	k := absent[idx]
	weights := k.domain.CRP.TablesWeights()
	tables := xmath.SortedKeys(weights)
	terms := make([]float64, 0, len(tables))
	for _, t := range tables {
		logw := k.domain.CRP.Logp(t)
		k.domain.CRP.Incorporate(k.item, t)
		terms = append(terms, m.logpRecurse(observations, absent, idx+1, logWeightSoFar+logw))
		k.domain.CRP.Unincorporate(k.item)
	}
	return xmath.LogSumExp(terms)
}
