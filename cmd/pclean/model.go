package main

import (
	"fmt"

	"github.com/pclean-go/pclean/internal/hirm"
	"github.com/pclean-go/pclean/internal/relation"
	"github.com/pclean-go/pclean/internal/schema"
)

// builtModel is a schema compiled into a live HIRM: the model plus the
// value kind each relation's observations decode to, so the observation
// loader can parse a CSV row without re-deriving a relation's family.
type builtModel struct {
	Hirm        *hirm.HIRM
	ValueKindOf map[string]valueKind
}

// buildModel compiles a parsed schema document into a fresh HIRM: one
// domain object per distinct domain name, shared across every relation
// that references it, and every relation placed into a single starting
// IRM table — a valid initial clustering (Gibbs's relation->table
// reassignment is what subsequently separates independent sub-models, §4.8)
// that avoids splitting a shared domain across two IRMs before any
// relation-clustering sweep has run.
func buildModel(doc *schema.Document) (*builtModel, error) {
	order, err := doc.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	h := hirm.New(1.0)
	domains := make(map[string]*relation.Domain)
	built := make(map[string]relation.Relation, len(order))
	kinds := make(map[string]valueKind, len(order))

	domainsFor := func(names []string) []*relation.Domain {
		out := make([]*relation.Domain, len(names))
		for i, name := range names {
			d, ok := domains[name]
			if !ok {
				d = relation.NewDomain(name, 1.0)
				domains[name] = d
			}
			out[i] = d
		}
		return out
	}

	for _, name := range order {
		spec := doc.Relations[name]
		var rel relation.Relation
		var kind valueKind

		if spec.Noisy() {
			base, ok := built[spec.BaseRelation]
			if !ok {
				return nil, fmt.Errorf("model: relation %q references unbuilt base %q", name, spec.BaseRelation)
			}
			baseRel, ok := base.(relation.Base)
			if !ok {
				return nil, fmt.Errorf("model: base relation %q cannot back a noisy relation", spec.BaseRelation)
			}
			newEmission, err := newEmissionFactory(spec.Emission)
			if err != nil {
				return nil, fmt.Errorf("model: relation %q: %w", name, err)
			}
			rel = relation.NewNoisyRelation(name, domainsFor(spec.Domains), baseRel, newEmission)
			kind, err = valueKindForFamily(spec.Emission.Family)
			if err != nil {
				return nil, fmt.Errorf("model: relation %q: %w", name, err)
			}
		} else {
			newCluster, err := newClusterFactory(spec.Dist)
			if err != nil {
				return nil, fmt.Errorf("model: relation %q: %w", name, err)
			}
			rel = relation.NewCleanRelation(name, domainsFor(spec.Domains), newCluster)
			kind, err = valueKindForFamily(spec.Dist.Family)
			if err != nil {
				return nil, fmt.Errorf("model: relation %q: %w", name, err)
			}
		}

		built[name] = rel
		kinds[name] = kind
		h.AddRelationAt(name, rel, hirm.Schema{Noisy: spec.Noisy(), Base: spec.BaseRelation}, 0)
	}

	return &builtModel{Hirm: h, ValueKindOf: kinds}, nil
}
