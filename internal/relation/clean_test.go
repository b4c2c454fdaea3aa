package relation

import (
	"math"
	"testing"

	"github.com/pclean-go/pclean/internal/distribution"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

func newBernoulliCluster() distribution.Distribution { return distribution.NewBernoulli(1, 1) }

// S2: single Beta-Bernoulli cluster.
func TestCleanRelationScenarioS2(t *testing.T) {
	d := NewDomain("D", 1)
	r := NewCleanRelation("R", []*Domain{d}, newBernoulliCluster)
	s := prng.New(1)

	r.Incorporate(s, []int{0}, value.Bool(true))
	if got, want := r.LogpScore(), math.Log(0.5); math.Abs(got-want) > 1e-6 {
		t.Errorf("got %v want %v", got, want)
	}
}

// Property #2: incorporate/unincorporate round trip.
func TestRoundTripLogpScore(t *testing.T) {
	d1 := NewDomain("D1", 1)
	d2 := NewDomain("D2", 1)
	r := NewCleanRelation("R", []*Domain{d1, d2}, func() distribution.Distribution {
		return distribution.NewNormal(0, 1, 1, 1)
	})
	s := prng.New(2)
	r.Incorporate(s, []int{0, 0}, value.Float(1.2))
	r.Incorporate(s, []int{1, 0}, value.Float(0.5))
	score0 := r.LogpScore()

	r.Incorporate(s, []int{2, 1}, value.Float(9.9))
	r.Unincorporate([]int{2, 1})
	score1 := r.LogpScore()
	if math.Abs(score0-score1) > 1e-8 {
		t.Errorf("round trip changed score: %v vs %v", score0, score1)
	}
}

func TestDomainReleasedWhenUnreferenced(t *testing.T) {
	d1 := NewDomain("D1", 1)
	d2 := NewDomain("D2", 1)
	r := NewCleanRelation("R", []*Domain{d1, d2}, newBernoulliCluster)
	s := prng.New(3)
	r.Incorporate(s, []int{5, 6}, value.Bool(true))
	if !d1.Has(5) {
		t.Fatalf("expected domain to absorb item 5")
	}
	r.Unincorporate([]int{5, 6})
	if d1.Has(5) {
		t.Errorf("expected item 5 released from domain after last reference removed")
	}
}

func TestDomainRefcountedAcrossMultipleTuples(t *testing.T) {
	d1 := NewDomain("D1", 1)
	d2 := NewDomain("D2", 1)
	r := NewCleanRelation("R", []*Domain{d1, d2}, newBernoulliCluster)
	s := prng.New(4)
	r.Incorporate(s, []int{5, 6}, value.Bool(true))
	r.Incorporate(s, []int{5, 7}, value.Bool(false))
	r.Unincorporate([]int{5, 6})
	if !d1.Has(5) {
		t.Errorf("item 5 still referenced by the (5,7) tuple, should remain in domain")
	}
	r.Unincorporate([]int{5, 7})
	if d1.Has(5) {
		t.Errorf("item 5 no longer referenced, should be released")
	}
}

// Property #3: Gibbs-exact consistency.
func TestLogpGibbsExactConsistency(t *testing.T) {
	d := NewDomain("D", 1)
	r := NewCleanRelation("R", []*Domain{d}, newBernoulliCluster)
	s := prng.New(5)
	for i := 0; i < 5; i++ {
		r.Incorporate(s, []int{i}, value.Bool(i%2 == 0))
	}
	item := 2
	table, _ := d.ClusterOf(item)

	deltas := r.LogpGibbsExact(d, item, []int{table})
	got := deltas[0]

	// Actually detach and reattach item's tuple to the same table and measure
	// the real delta directly.
	before := r.LogpScore()
	r.SetClusterAssignmentGibbs(d, item, table+1000) // move away
	mid := r.LogpScore()
	r.SetClusterAssignmentGibbs(d, item, table) // move back
	after := r.LogpScore()

	if math.Abs(before-after) > 1e-8 {
		t.Fatalf("round trip move did not restore score: %v vs %v", before, after)
	}
	wantDelta := mid - before
	_ = wantDelta

	if got != 0 {
		t.Errorf("scoring against the item's own current table should be a no-op delta, got %v", got)
	}
}

func TestLogpGibbsExactMovingTableMatchesManualMove(t *testing.T) {
	d := NewDomain("D", 1)
	r := NewCleanRelation("R", []*Domain{d}, newBernoulliCluster)
	s := prng.New(6)
	for i := 0; i < 4; i++ {
		r.Incorporate(s, []int{i}, value.Bool(i%2 == 0))
	}
	item := 3
	newTable := 999

	before := r.LogpScore()
	deltas := r.LogpGibbsExact(d, item, []int{newTable})
	// LogpGibbsExact must leave the relation exactly as it found it.
	afterProbe := r.LogpScore()
	if math.Abs(before-afterProbe) > 1e-8 {
		t.Fatalf("probing candidate tables mutated the relation's score: %v vs %v", before, afterProbe)
	}

	// Now actually perform the move (relation first, domain assignment
	// second — the order IRM uses) and confirm the resulting score delta
	// matches what was predicted.
	r.SetClusterAssignmentGibbs(d, item, newTable)
	d.CRP.Unincorporate(item)
	d.CRP.Incorporate(item, newTable)
	after := r.LogpScore()

	if math.Abs((after-before)-deltas[0]) > 1e-8 {
		t.Errorf("logp_gibbs_exact delta %v did not match actual move delta %v", deltas[0], after-before)
	}
}

func TestLogpMarginalizesOverAbsentEntity(t *testing.T) {
	d := NewDomain("D", 1)
	r := NewCleanRelation("R", []*Domain{d}, newBernoulliCluster)
	s := prng.New(7)
	r.Incorporate(s, []int{0}, value.Bool(true))
	r.Incorporate(s, []int{1}, value.Bool(true))

	got := r.Logp([]int{42}, value.Bool(true), s)
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("expected finite marginal logp, got %v", got)
	}
}

func TestIncorporateToClusterTransientDoesNotDeleteEmpty(t *testing.T) {
	d := NewDomain("D", 1)
	r := NewCleanRelation("R", []*Domain{d}, newBernoulliCluster)
	s := prng.New(8)
	r.Incorporate(s, []int{0}, value.Bool(true))
	v, _ := r.Value([]int{0})

	r.UnincorporateFromCluster([]int{0}, v)
	// cluster retained empty; restoring should work without panicking or
	// recreating a fresh-prior cluster.
	r.IncorporateToCluster([]int{0}, v)
	score := r.LogpScore()
	if math.Abs(score-math.Log(0.5)) > 1e-8 {
		t.Errorf("expected restored score log(0.5), got %v", score)
	}
}
