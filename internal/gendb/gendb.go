// Package gendb implements the entity-linkage layer above HIRM (§4.9): per-
// class entity CRPs over foreign-key references, and the reference-field
// Gibbs reassignment that resamples which entity a foreign key points to.
package gendb

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/pclean-go/pclean/internal/crp"
	"github.com/pclean-go/pclean/internal/hirm"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/relation"
	"github.com/pclean-go/pclean/internal/value"
	"github.com/pclean-go/pclean/internal/xmath"
)

// FieldBinding records that relationName observes a reference field at two
// tuple positions: keyIndex (the referencing class's own primary key) and
// refIndex (the referenced class's entity, the foreign key value itself).
type FieldBinding struct {
	RelationName string
	KeyIndex     int
	RefIndex     int
}

// GenDB adds entity-level state above an *hirm.HIRM: a per-class entity CRP
// over which rows reference which entity, and the reference_values cache
// that remembers what each reference currently resolves to.
type GenDB struct {
	Hirm *hirm.HIRM

	RefClassOf      map[string]string         // "class.field" -> referenced class name
	Bindings        map[string][]FieldBinding // "class.field" -> relations observing it
	ReferenceValues map[string]int            // "class.field.pk" -> entity id
	DomainCRPs      map[string]*crp.CRP       // class -> entity CRP (customers: reference hash ids, tables: entity ids)
	ClassDomains    map[string]*relation.Domain

	salt string
}

// New returns an empty GenDB layered over h.
func New(h *hirm.HIRM) *GenDB {
	return &GenDB{
		Hirm:            h,
		RefClassOf:      make(map[string]string),
		Bindings:        make(map[string][]FieldBinding),
		ReferenceValues: make(map[string]int),
		DomainCRPs:      make(map[string]*crp.CRP),
		ClassDomains:    make(map[string]*relation.Domain),
		salt:            uuid.NewString(),
	}
}

// RegisterReferenceField declares that class has a foreign-key field
// pointing at refClass, creating refClass's entity CRP on first use.
func (g *GenDB) RegisterReferenceField(class, field, refClass string, alpha float64) {
	g.RefClassOf[class+"."+field] = refClass
	if _, ok := g.DomainCRPs[refClass]; !ok {
		g.DomainCRPs[refClass] = crp.New(alpha)
	}
}

// RegisterClassDomain associates refClass with the relation.Domain that
// clusters its entities for IRM purposes, so reference reassignment can
// score the domain-CRP delta of introducing a brand-new entity.
func (g *GenDB) RegisterClassDomain(class string, d *relation.Domain) {
	g.ClassDomains[class] = d
}

// RegisterBinding declares that relationName's tuples carry, at keyIndex,
// the primary key of class and, at refIndex, the value of class's field —
// so reassigning that field must rewrite and rescore relationName's tuples.
func (g *GenDB) RegisterBinding(class, field, relationName string, keyIndex, refIndex int) {
	key := class + "." + field
	g.Bindings[key] = append(g.Bindings[key], FieldBinding{relationName, keyIndex, refIndex})
}

func (g *GenDB) hashID(class, field string, pk int) int {
	h := fnv.New64a()
	h.Write([]byte(g.salt))
	h.Write([]byte{0})
	h.Write([]byte(class))
	h.Write([]byte{0})
	h.Write([]byte(field))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(pk)))
	return int(h.Sum64() & 0x7fffffffffffffff)
}

func refKey(class, field string, pk int) string {
	return fmt.Sprintf("%s.%s.%d", class, field, pk)
}

// Resolve returns the entity (class, field, pk) currently points to,
// sampling a fresh reference from domain_crps[ref_class] the first time
// this (class, field, pk) triple is seen (§4.9's "sampling downward").
func (g *GenDB) Resolve(s *prng.Stream, class, field string, pk int) int {
	key := refKey(class, field, pk)
	if e, ok := g.ReferenceValues[key]; ok {
		return e
	}
	refClass := g.RefClassOf[class+"."+field]
	dcrp := g.DomainCRPs[refClass]
	hid := g.hashID(class, field, pk)
	table := dcrp.Sample(s)
	dcrp.Incorporate(hid, table)
	g.ReferenceValues[key] = table
	return table
}

type savedTuple struct {
	rel      relation.Relation
	items    []int
	val      value.Value
	refIndex int
}

// referenceFieldsOf returns the fields class has itself registered as
// foreign keys (e.g. Physician's "school"), sorted for deterministic
// iteration. Used to walk a class's own ancestor references during
// cascading unincorporation and fresh-entity sampling (§4.9).
func (g *GenDB) referenceFieldsOf(class string) []string {
	prefix := class + "."
	var fields []string
	for key := range g.RefClassOf {
		if strings.HasPrefix(key, prefix) {
			fields = append(fields, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(fields)
	return fields
}

// cascadeVanish runs once entity has lost its last reference in
// domain_crps[class] — no (class2, field2, pk2) triple anywhere resolves to
// it anymore, so the entity itself was never more than a byproduct of that
// resolution and everything hung off it is now stale. It force-unincorporates
// every relation tuple still mentioning it in class's IRM domain (its own
// attributes, any reference-binding relations observing its fields — "all
// downstream relations for ref_class", §4.9 step 3) and recurses into its
// own reference fields, releasing the ancestor entity-CRP rows those fields
// resolved to and cascading further if an ancestor vanishes in turn too
// ("recurse on ancestor references" / "all ancestor entity-CRP rows").
func (g *GenDB) cascadeVanish(class string, entity int) {
	dom := g.ClassDomains[class]
	for _, rel := range g.Hirm.Relations {
		for i, d := range rel.DomainsList() {
			if d != dom {
				continue
			}
			for _, tuple := range rel.TuplesMentioning(i, entity) {
				if _, ok := rel.Value(tuple); ok {
					rel.Unincorporate(tuple)
				}
			}
		}
	}

	for _, field := range g.referenceFieldsOf(class) {
		key := refKey(class, field, entity)
		anc, ok := g.ReferenceValues[key]
		if !ok {
			continue
		}
		delete(g.ReferenceValues, key)
		ancClass := g.RefClassOf[class+"."+field]
		ancDCRP, ok := g.DomainCRPs[ancClass]
		if !ok {
			continue
		}
		ancDCRP.Unincorporate(g.hashID(class, field, entity))
		if len(ancDCRP.Items(anc)) == 0 {
			g.cascadeVanish(ancClass, anc)
		}
	}
}

// TransitionReference resamples which entity (class, field, classItem)
// points at — a full Gibbs step over the reference's entity CRP weighted by
// the fit of every relation tuple that depends on it (§4.9). No-op if this
// reference has never been resolved.
func (g *GenDB) TransitionReference(s *prng.Stream, class, field string, classItem int) {
	key := refKey(class, field, classItem)
	init, hasInit := g.ReferenceValues[key]
	if !hasInit {
		return
	}
	fieldKey := class + "." + field
	refClass := g.RefClassOf[fieldKey]
	dcrp := g.DomainCRPs[refClass]
	refDomain := g.ClassDomains[refClass]
	hid := g.hashID(class, field, classItem)

	// Step 1: detach every tuple this reference feeds, retaining (possibly
	// now-empty) clusters so re-selecting init later doesn't lose tuned
	// hyperparameters.
	var saved []savedTuple
	for _, b := range g.Bindings[fieldKey] {
		rel := g.Hirm.Relations[b.RelationName]
		for _, tuple := range rel.TuplesMentioning(b.KeyIndex, classItem) {
			if tuple[b.RefIndex] != init {
				continue
			}
			v, ok := rel.Value(tuple)
			if !ok {
				continue
			}
			rel.UnincorporateFromCluster(tuple, v)
			saved = append(saved, savedTuple{rel, tuple, v, b.RefIndex})
		}
	}
	for _, sv := range saved {
		sv.rel.ForgetTuple(sv.items)
	}

	// Steps 2-3: init's table in domain_crps[ref_class] may have just lost
	// its last customer (classItem's hid was the only one resolving to it).
	// If so, init is a singleton-that-vanished: nothing anywhere resolves
	// to it anymore, so cascade its removal up through its own ancestor
	// references and any relation still carrying its data directly, before
	// resampling what classItem now points at.
	weights := dcrp.TablesWeightsGibbs(hid)
	if _, survives := weights[init]; !survives {
		g.cascadeVanish(refClass, init)
	}

	refDomainBefore := 0.0
	if refDomain != nil {
		refDomainBefore = refDomain.CRP.LogpScore()
	}
	tables := xmath.SortedKeys(weights)

	// A candidate entity that refClass's IRM domain has never seen is the
	// auxiliary singleton: reassigning classItem to it creates a brand new
	// entity (§4.9 step 4). Determined once, up front, against the domain
	// as it stands before any of this loop's speculative incorporate calls
	// (which always net back to the same membership by the end of each
	// iteration).
	fresh := make(map[int]bool, len(tables))
	for _, e := range tables {
		fresh[e] = refDomain == nil || !refDomain.Has(e)
	}
	ancestorFields := g.referenceFieldsOf(refClass)

	logWeights := make([]float64, len(tables))
	relSet := make(map[relation.Relation]struct{})
	for _, sv := range saved {
		relSet[sv.rel] = struct{}{}
	}

	for i, e := range tables {
		// A fresh entity has no ancestor references yet; account for the
		// expected cost of establishing one per ancestor field (the
		// marginal new-table weight of that field's own entity CRP) without
		// committing to an actual sample until e is the chosen winner.
		ancLogWeight := 0.0
		if fresh[e] {
			for _, af := range ancestorFields {
				if ancDCRP, ok := g.DomainCRPs[g.RefClassOf[refClass+"."+af]]; ok {
					ancLogWeight += ancDCRP.LogpNewTable()
				}
			}
		}

		for _, sv := range saved {
			nt := append([]int{}, sv.items...)
			nt[sv.refIndex] = e
			sv.rel.Incorporate(s, nt, sv.val)
		}
		relScore := 0.0
		for rel := range relSet {
			relScore += rel.LogpScore()
		}
		refAfter := refDomainBefore
		if refDomain != nil {
			refAfter = refDomain.CRP.LogpScore()
		}
		logWeights[i] = math.Log(weights[e]) + relScore + (refAfter - refDomainBefore) + ancLogWeight

		for _, sv := range saved {
			nt := append([]int{}, sv.items...)
			nt[sv.refIndex] = e
			sv.rel.Unincorporate(nt)
		}
	}

	winner := tables[xmath.LogWeightedChoice(logWeights, s.Float64())]
	for _, sv := range saved {
		nt := append([]int{}, sv.items...)
		nt[sv.refIndex] = winner
		sv.rel.Incorporate(s, nt, sv.val)
	}
	dcrp.Unincorporate(hid)
	dcrp.Incorporate(hid, winner)
	g.ReferenceValues[key] = winner

	// Step 4's "sample ancestor references for the new row": now that the
	// singleton has actually been chosen (rather than merely scored), give
	// it real ancestor references of its own.
	if fresh[winner] {
		for _, af := range ancestorFields {
			g.Resolve(s, refClass, af, winner)
		}
	}
}
