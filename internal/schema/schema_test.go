package schema

import (
	"errors"
	"testing"
)

func TestTopologicalOrderRespectsNoisyChain(t *testing.T) {
	doc := &Document{Relations: map[string]RelationSpec{
		"clean":  {Domains: []string{"D"}},
		"noisy1": {Domains: []string{"D"}, BaseRelation: "clean"},
		"noisy2": {Domains: []string{"D"}, BaseRelation: "noisy1"},
	}}

	order, err := doc.TopologicalOrder()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	if pos["clean"] > pos["noisy1"] || pos["noisy1"] > pos["noisy2"] {
		t.Fatalf("order %v does not respect base_relation chain", order)
	}
}

func TestTopologicalOrderRejectsCycle(t *testing.T) {
	doc := &Document{Relations: map[string]RelationSpec{
		"a": {Domains: []string{"D"}, BaseRelation: "b"},
		"b": {Domains: []string{"D"}, BaseRelation: "a"},
	}}

	_, err := doc.TopologicalOrder()
	if !errors.Is(err, ErrSchemaUnresolvable) {
		t.Fatalf("expected ErrSchemaUnresolvable, got %v", err)
	}
}

func TestTopologicalOrderRejectsUnknownBase(t *testing.T) {
	doc := &Document{Relations: map[string]RelationSpec{
		"noisy": {Domains: []string{"D"}, BaseRelation: "missing"},
	}}

	_, err := doc.TopologicalOrder()
	if !errors.Is(err, ErrSchemaUnresolvable) {
		t.Fatalf("expected ErrSchemaUnresolvable, got %v", err)
	}
}

func TestCodeBimapRoundTrips(t *testing.T) {
	b := NewCodeBimap([]string{"alpha", "beta", "gamma"})
	for name, code := range b.NameToCode {
		if b.CodeToName[code] != name {
			t.Fatalf("bimap mismatch: name %q -> code %d -> name %q", name, code, b.CodeToName[code])
		}
	}
}
