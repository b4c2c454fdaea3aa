package irm

import (
	"math"
	"testing"

	"github.com/pclean-go/pclean/internal/distribution"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/relation"
	"github.com/pclean-go/pclean/internal/value"
)

func newBernoulliCluster() distribution.Distribution { return distribution.NewBernoulli(1, 1) }

// TestIndependentRelationsFactorize reproduces the independence scenario: two
// relations over disjoint domains contribute additively to LogpScore, with
// no cross term.
func TestIndependentRelationsFactorize(t *testing.T) {
	s := prng.New(1)
	m := New()

	d1 := relation.NewDomain("D1", 1.0)
	d2 := relation.NewDomain("D2", 1.0)
	r1 := relation.NewCleanRelation("R1", []*relation.Domain{d1}, newBernoulliCluster)
	r2 := relation.NewCleanRelation("R2", []*relation.Domain{d2}, newBernoulliCluster)
	m.AddRelation("R1", r1)
	m.AddRelation("R2", r2)

	r1.Incorporate(s, []int{0}, value.Bool(true))
	r2.Incorporate(s, []int{0}, value.Bool(false))

	want := r1.LogpScore() + r2.LogpScore() + d1.CRP.LogpScore() + d2.CRP.LogpScore()
	got := m.LogpScore()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("LogpScore = %v, want %v", got, want)
	}
}

// TestLogpMatchesScoreAfterIncorporating checks property #4: the marginal
// Logp of an already-incorporated observation, recomputed with that tuple
// temporarily removed, agrees with the incremental score the relation
// actually recorded.
func TestLogpMatchesScoreAfterIncorporating(t *testing.T) {
	s := prng.New(7)
	m := New()
	d1 := relation.NewDomain("D1", 1.0)
	r1 := relation.NewCleanRelation("R1", []*relation.Domain{d1}, newBernoulliCluster)
	m.AddRelation("R1", r1)

	before := m.LogpScore()
	obsVal := value.Bool(true)
	logp := m.Logp([]Observation{{RelationName: "R1", Items: []int{0}, Value: obsVal}})

	r1.Incorporate(s, []int{0}, obsVal)
	after := m.LogpScore()

	if math.Abs((after-before)-logp) > 1e-9 {
		t.Fatalf("logp %v does not match realized score delta %v", logp, after-before)
	}
}

func TestTransitionClusterAssignmentItemPreservesScoreSupport(t *testing.T) {
	s := prng.New(3)
	m := New()
	d1 := relation.NewDomain("D1", 1.0)
	r1 := relation.NewCleanRelation("R1", []*relation.Domain{d1}, newBernoulliCluster)
	m.AddRelation("R1", r1)

	for i := 0; i < 5; i++ {
		table := d1.Retain(i, s)
		r1.Incorporate(s, []int{i}, value.Bool(i%2 == 0))
		_ = table
	}

	for i := 0; i < 5; i++ {
		m.TransitionClusterAssignmentItem(s, "D1", i)
	}

	if d1.CRP.N() != 5 {
		t.Fatalf("expected 5 customers retained across reassignment, got %d", d1.CRP.N())
	}
}

func TestAddRemoveRelationGarbageCollectsDomain(t *testing.T) {
	m := New()
	d1 := relation.NewDomain("D1", 1.0)
	r1 := relation.NewCleanRelation("R1", []*relation.Domain{d1}, newBernoulliCluster)
	m.AddRelation("R1", r1)
	if _, ok := m.Domains["D1"]; !ok {
		t.Fatalf("expected D1 registered")
	}
	m.RemoveRelation("R1")
	if _, ok := m.Domains["D1"]; ok {
		t.Fatalf("expected D1 garbage-collected after last relation removed")
	}
	if !m.IsEmpty() {
		t.Fatalf("expected IRM empty after removing its only relation")
	}
}
