// Package schema parses the external schema document (§6) that declares a
// model's relations, validates it (cycle rejection, §9 "Cyclic relation
// graph"), and orders relations so every base relation is constructed
// before its dependents.
package schema

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// ParamSpec is a (family_name, {param -> value}) pair, per §6.
type ParamSpec struct {
	Family string             `mapstructure:"family"`
	Params map[string]float64 `mapstructure:"params"`
}

// RelationSpec is one relation's declaration: either
// {domains, dist_spec, is_observed} (clean) or
// {domains, emission_spec, base_relation, is_observed} (noisy), §6.
type RelationSpec struct {
	Domains      []string   `mapstructure:"domains"`
	Dist         *ParamSpec `mapstructure:"dist_spec"`
	Emission     *ParamSpec `mapstructure:"emission_spec"`
	BaseRelation string     `mapstructure:"base_relation"`
	IsObserved   bool       `mapstructure:"is_observed"`
}

// Noisy reports whether the relation is a NoisyRelation (has a base).
func (r RelationSpec) Noisy() bool { return r.BaseRelation != "" }

// Document is a complete schema: every relation the model will construct.
type Document struct {
	Relations map[string]RelationSpec

	// RunID namespaces synthetic ids derived from this schema (e.g. GenDB's
	// hash salt) so two models loaded from the same document never collide
	// on persisted state (§6's "External interfaces").
	RunID uuid.UUID
}

// ErrSchemaUnresolvable is returned for any schema that fails validation:
// unknown base relation, or a cyclic relation graph (§7, §9).
var ErrSchemaUnresolvable = fmt.Errorf("schema: unresolvable")

// Load reads a YAML schema document from path.
func Load(path string) (*Document, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("schema: reading %s: %w", path, err)
	}

	raw := struct {
		Relations map[string]RelationSpec `mapstructure:"relations"`
	}{}
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("schema: parsing %s: %w", path, err)
	}

	doc := &Document{Relations: raw.Relations, RunID: uuid.New()}
	if _, err := doc.TopologicalOrder(); err != nil {
		return nil, err
	}
	return doc, nil
}

// TopologicalOrder returns relation names ordered so that every relation's
// BaseRelation (if any) precedes it — Kahn's algorithm over the
// noisy-relation dependency DAG (§9). Returns ErrSchemaUnresolvable wrapping
// the offending relation if the graph has a cycle or an unknown base.
func (doc *Document) TopologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(doc.Relations))
	dependents := make(map[string][]string)

	for name := range doc.Relations {
		indegree[name] = 0
	}
	for name, spec := range doc.Relations {
		if spec.BaseRelation == "" {
			continue
		}
		if _, ok := doc.Relations[spec.BaseRelation]; !ok {
			return nil, fmt.Errorf("%w: relation %q has unknown base_relation %q", ErrSchemaUnresolvable, name, spec.BaseRelation)
		}
		indegree[name]++
		dependents[spec.BaseRelation] = append(dependents[spec.BaseRelation], name)
	}

	var queue, order []string
	for name, deg := range indegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, d := range dependents[n] {
			indegree[d]--
			if indegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}

	if len(order) != len(doc.Relations) {
		return nil, fmt.Errorf("%w: relation graph has a cycle", ErrSchemaUnresolvable)
	}
	return order, nil
}

// CodeBimap assigns each relation a stable small integer code — the HIRM
// outer CRP's customer space — so driver diagnostics and persisted dumps
// can reference relations compactly (§6).
type CodeBimap struct {
	NameToCode map[string]int
	CodeToName map[int]string
}

// NewCodeBimap assigns codes to names in the given (already topologically
// sorted) order.
func NewCodeBimap(order []string) *CodeBimap {
	b := &CodeBimap{
		NameToCode: make(map[string]int, len(order)),
		CodeToName: make(map[int]string, len(order)),
	}
	for i, name := range order {
		b.NameToCode[name] = i
		b.CodeToName[i] = name
	}
	return b
}
