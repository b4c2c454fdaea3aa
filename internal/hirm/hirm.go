// Package hirm implements the Hierarchical IRM (§4.8): an outer CRP whose
// customers are relations and whose tables are IRMs, giving Gibbs
// reassignment of relations to sub-models.
package hirm

import (
	"fmt"
	"math"

	"github.com/pclean-go/pclean/internal/crp"
	"github.com/pclean-go/pclean/internal/irm"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/relation"
	"github.com/pclean-go/pclean/internal/xmath"
)

// Schema records a relation's declared type: its value family's shape is
// owned by the relation/domains themselves, but HIRM additionally needs to
// know whether a relation is noisy and, if so, which relation is its base —
// so TransitionClusterAssignmentRelation can pin a noisy relation to
// whatever table currently hosts its base rather than letting it drift to
// an IRM the base never joins. A NoisyRelation's own Value lookups walk
// straight through its Base reference regardless of which table either
// relation sits in, so nothing about correctness depends on this; it keeps
// a noisy relation and the base it was defined against from ending up
// scored as if they were unrelated (§4.8, §9's construction-time
// topological order, which guarantees the base exists before Schema.Base
// can name it).
type Schema struct {
	Noisy bool
	Base  string // base relation name; "" if Noisy is false
}

// HIRM owns the outer relation-to-IRM CRP, the table→IRM map, the
// relation_name↔relation_code bimap, and the schema.
type HIRM struct {
	Outer      *crp.CRP
	TableToIRM map[int]*irm.IRM
	NameToCode map[string]int
	CodeToName map[int]string
	Relations  map[string]relation.Relation
	Schemas    map[string]Schema
	nextCode   int
}

// New returns an empty HIRM with outer concentration alpha.
func New(alpha float64) *HIRM {
	return &HIRM{
		Outer:      crp.New(alpha),
		TableToIRM: make(map[int]*irm.IRM),
		NameToCode: make(map[string]int),
		CodeToName: make(map[int]string),
		Relations:  make(map[string]relation.Relation),
		Schemas:    make(map[string]Schema),
	}
}

func (h *HIRM) codeFor(name string) int {
	if c, ok := h.NameToCode[name]; ok {
		return c
	}
	c := h.nextCode
	h.nextCode++
	h.NameToCode[name] = c
	h.CodeToName[c] = name
	return c
}

// AddRelation introduces a brand-new relation to the model, sampling which
// IRM table it joins (creating a fresh IRM when it starts a new table) and
// registering it in that IRM (§4.8).
func (h *HIRM) AddRelation(s *prng.Stream, name string, rel relation.Relation, schema Schema) {
	if _, exists := h.Relations[name]; exists {
		panic(fmt.Sprintf("hirm: relation %q already registered", name))
	}
	h.Relations[name] = rel
	h.Schemas[name] = schema
	code := h.codeFor(name)

	table := h.Outer.Sample(s)
	target, ok := h.TableToIRM[table]
	if !ok {
		target = irm.New()
		h.TableToIRM[table] = target
	}
	target.AddRelation(name, rel)
	h.Outer.Incorporate(code, table)
}

// AddRelationAt introduces a brand-new relation at a specific table,
// bypassing the usual Outer.Sample draw. Used for bulk model construction
// (e.g. compiling a schema document) where several relations share a
// domain object and must start out in the same IRM — starting them all in
// one table is a valid initial clustering that Gibbs's relation->table
// reassignment can subsequently refine (§4.8), and it avoids the domain
// object ending up registered under two different IRMs before any
// reassignment sweep has run.
func (h *HIRM) AddRelationAt(name string, rel relation.Relation, schema Schema, table int) {
	if _, exists := h.Relations[name]; exists {
		panic(fmt.Sprintf("hirm: relation %q already registered", name))
	}
	h.Relations[name] = rel
	h.Schemas[name] = schema
	code := h.codeFor(name)

	target, ok := h.TableToIRM[table]
	if !ok {
		target = irm.New()
		h.TableToIRM[table] = target
	}
	target.AddRelation(name, rel)
	h.Outer.Incorporate(code, table)
}

// IRMOf returns the sub-model currently hosting name.
func (h *HIRM) IRMOf(name string) *irm.IRM {
	code := h.NameToCode[name]
	table, ok := h.Outer.Assignment(code)
	if !ok {
		panic(fmt.Sprintf("hirm: relation %q not assigned to any table", name))
	}
	return h.TableToIRM[table]
}

// bindDomains returns, for each of rel's current domains, either the real
// domain object target already hosts under that name, or a structural
// clone of rel's own domain (used when scoring: the clone is disposable
// and never touches target's bookkeeping until commit time).
func bindDomains(rel relation.Relation, target *irm.IRM, commit bool) []*relation.Domain {
	orig := rel.DomainsList()
	out := make([]*relation.Domain, len(orig))
	for i, d := range orig {
		if existing, ok := target.Domains[d.Name]; ok {
			if commit {
				existing.AdoptFrom(d)
				out[i] = existing
			} else {
				probe := existing.Clone()
				probe.AdoptFrom(d)
				out[i] = probe
			}
			continue
		}
		out[i] = d.Clone()
	}
	return out
}

func domainScore(domains []*relation.Domain) float64 {
	total := 0.0
	for _, d := range domains {
		total += d.CRP.LogpScore()
	}
	return total
}

func existingDomainScore(rel relation.Relation, target *irm.IRM) float64 {
	total := 0.0
	for _, d := range rel.DomainsList() {
		if existing, ok := target.Domains[d.Name]; ok {
			total += existing.CRP.LogpScore()
		}
	}
	return total
}

// baseTable returns the table currently hosting schema's base relation, if
// it declares one — the only candidate TransitionClusterAssignmentRelation
// will consider for a noisy relation, forcing it to stay co-located with
// the base it depends on (§4.8, §9).
func (h *HIRM) baseTable(name string, schema Schema) (int, bool) {
	if !schema.Noisy || schema.Base == "" {
		return 0, false
	}
	baseCode, ok := h.NameToCode[schema.Base]
	if !ok {
		panic(fmt.Sprintf("hirm: relation %q declares unknown base %q", name, schema.Base))
	}
	table, ok := h.Outer.Assignment(baseCode)
	if !ok {
		panic(fmt.Sprintf("hirm: base relation %q of %q not assigned to any table", schema.Base, name))
	}
	return table, true
}

// TransitionClusterAssignmentRelation performs one Gibbs reassignment of
// name to a (possibly new) IRM table: the outer CRP's Gibbs weights for the
// relation-as-customer are combined with the exact log-score change that
// moving the relation's own data into each candidate IRM would cause, then
// a table is sampled and the move committed (§4.8). If name is a noisy
// relation with a declared base, the only candidate ever considered is the
// table its base currently occupies — co-location with the base is pinned,
// not merely weighted, so a noisy relation can never drift into an IRM its
// base hasn't joined.
func (h *HIRM) TransitionClusterAssignmentRelation(s *prng.Stream, name string) {
	rel, ok := h.Relations[name]
	if !ok {
		panic(fmt.Sprintf("hirm: unknown relation %q", name))
	}
	code := h.NameToCode[name]
	origTable, _ := h.Outer.Assignment(code)
	origDomains := append([]*relation.Domain{}, rel.DomainsList()...)

	var tables []int
	var weights map[int]float64
	if pinned, ok := h.baseTable(name, h.Schemas[name]); ok {
		tables = []int{pinned}
		weights = map[int]float64{pinned: 1}
	} else {
		weights = h.Outer.TablesWeightsGibbs(code)
		tables = xmath.SortedKeys(weights)
	}
	logWeights := make([]float64, len(tables))
	probeDomains := make([][]*relation.Domain, len(tables))

	for i, t := range tables {
		target, existed := h.TableToIRM[t]
		if !existed {
			target = irm.New()
		}
		before := existingDomainScore(rel, target)
		probe := bindDomains(rel, target, false)
		probeDomains[i] = probe

		rel.RebindDomains(probe)
		rel.RebuildClusters()
		after := domainScore(probe)
		delta := (after - before) + rel.LogpScore()

		logWeights[i] = math.Log(weights[t]) + delta
	}

	// Restore the relation to its original binding before committing
	// anything — the loop above never mutated any real IRM's bookkeeping,
	// only disposable probe domains, but rel itself was left rebound to the
	// last candidate's probe.
	rel.RebindDomains(origDomains)
	rel.RebuildClusters()

	chosenIdx := xmath.LogWeightedChoice(logWeights, s.Float64())
	chosenTable := tables[chosenIdx]
	if chosenTable == origTable {
		return
	}

	if oldIRM, ok := h.TableToIRM[origTable]; ok {
		oldIRM.RemoveRelation(name)
		if oldIRM.IsEmpty() {
			delete(h.TableToIRM, origTable)
		}
	}

	target, existed := h.TableToIRM[chosenTable]
	if !existed {
		target = irm.New()
		h.TableToIRM[chosenTable] = target
	}
	real := bindDomains(rel, target, true)
	rel.RebindDomains(real)
	rel.RebuildClusters()
	target.AddRelation(name, rel)

	h.Outer.Unincorporate(code)
	h.Outer.Incorporate(code, chosenTable)
}

// LogpScore returns the outer CRP's score plus every IRM's score (§4.8).
func (h *HIRM) LogpScore() float64 {
	total := h.Outer.LogpScore()
	for _, m := range h.TableToIRM {
		total += m.LogpScore()
	}
	return total
}

// Logp scores observations jointly, partitioning them by which IRM
// currently hosts each observation's relation and delegating to that IRM's
// own joint marginal (§4.8's factorization across independent sub-models).
func (h *HIRM) Logp(observations []irm.Observation) float64 {
	byTable := make(map[int][]irm.Observation)
	for _, obs := range observations {
		code, ok := h.NameToCode[obs.RelationName]
		if !ok {
			panic(fmt.Sprintf("hirm: logp over unregistered relation %q", obs.RelationName))
		}
		table, ok := h.Outer.Assignment(code)
		if !ok {
			panic(fmt.Sprintf("hirm: relation %q not assigned to any table", obs.RelationName))
		}
		byTable[table] = append(byTable[table], obs)
	}
	total := 0.0
	for table, obs := range byTable {
		total += h.TableToIRM[table].Logp(obs)
	}
	return total
}
