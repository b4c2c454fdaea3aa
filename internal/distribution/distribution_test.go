package distribution

import (
	"math"
	"testing"

	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

// S2: single Beta-Bernoulli cluster.
func TestBernoulliScenarioS2(t *testing.T) {
	b := NewBernoulli(1, 1)
	b.Incorporate(value.Bool(true), 1)
	if got, want := b.LogpScore(), math.Log(0.5); math.Abs(got-want) > 1e-6 {
		t.Errorf("after one true: got %v want %v", got, want)
	}
	b.Incorporate(value.Bool(false), 1)
	if got, want := b.LogpScore(), -1.7917594692280554; math.Abs(got-want) > 1e-6 {
		t.Errorf("after true+false: got %v want %v", got, want)
	}
}

func TestBernoulliRoundTrip(t *testing.T) {
	b := NewBernoulli(2, 3)
	b.Incorporate(value.Bool(true), 1)
	b.Incorporate(value.Bool(false), 1)
	score0 := b.LogpScore()
	b.Incorporate(value.Bool(true), 1)
	b.Unincorporate(value.Bool(true))
	score1 := b.LogpScore()
	if math.Abs(score0-score1) > 1e-8 {
		t.Errorf("round trip changed score: %v vs %v", score0, score1)
	}
}

func TestCategoricalRoundTrip(t *testing.T) {
	c := NewCategorical(4, 1)
	c.Incorporate(value.Int(0), 1)
	c.Incorporate(value.Int(2), 1)
	score0 := c.LogpScore()
	c.Incorporate(value.Int(3), 1)
	c.Unincorporate(value.Int(3))
	score1 := c.LogpScore()
	if math.Abs(score0-score1) > 1e-8 {
		t.Errorf("round trip changed score: %v vs %v", score0, score1)
	}
}

func TestNormalRoundTrip(t *testing.T) {
	n := NewNormal(0, 1, 1, 1)
	n.Incorporate(value.Float(1.2), 1)
	n.Incorporate(value.Float(0.8), 1)
	score0 := n.LogpScore()
	n.Incorporate(value.Float(5), 1)
	n.Unincorporate(value.Float(5))
	score1 := n.LogpScore()
	if math.Abs(score0-score1) > 1e-8 {
		t.Errorf("round trip changed score: %v vs %v", score0, score1)
	}
}

func TestBigramRoundTrip(t *testing.T) {
	b := NewBigram(1)
	b.Incorporate(value.Str("cat"), 1)
	score0 := b.LogpScore()
	b.Incorporate(value.Str("dog"), 1)
	b.Unincorporate(value.Str("dog"))
	score1 := b.LogpScore()
	if math.Abs(score0-score1) > 1e-8 {
		t.Errorf("round trip changed score: %v vs %v", score0, score1)
	}
}

func TestBigramLogpDoesNotMutate(t *testing.T) {
	b := NewBigram(1)
	b.Incorporate(value.Str("cat"), 1)
	before := b.LogpScore()
	_ = b.Logp(value.Str("cattle"))
	after := b.LogpScore()
	if math.Abs(before-after) > 1e-9 {
		t.Errorf("Logp mutated state: before=%v after=%v", before, after)
	}
}

func TestStringCatBasic(t *testing.T) {
	sc := NewStringCat("PHD|MD|PT", "|", 1)
	sc.Incorporate(value.Str("MD"), 1)
	if got := sc.Logp(value.Str("PHD")); math.IsNaN(got) {
		t.Errorf("got NaN logp")
	}
	score0 := sc.LogpScore()
	sc.Incorporate(value.Str("PHD"), 1)
	sc.Unincorporate(value.Str("PHD"))
	score1 := sc.LogpScore()
	if math.Abs(score0-score1) > 1e-8 {
		t.Errorf("round trip changed score: %v vs %v", score0, score1)
	}
}

func TestSkellamRoundTrip(t *testing.T) {
	sk := NewSkellam(0, 1)
	s := prng.New(1)
	sk.InitTheta(s)
	sk.Incorporate(value.Int(2), 1)
	score0 := sk.LogpScore()
	sk.Incorporate(value.Int(-1), 1)
	sk.Unincorporate(value.Int(-1))
	score1 := sk.LogpScore()
	if math.Abs(score0-score1) > 1e-8 {
		t.Errorf("round trip changed score: %v vs %v", score0, score1)
	}
}

func TestHyperparameterTransitionMovesSomewhere(t *testing.T) {
	b := NewBernoulli(1, 1)
	for i := 0; i < 20; i++ {
		b.Incorporate(value.Bool(true), 1)
	}
	s := prng.New(7)
	b.TransitionHyperparameters(s)
	if b.Alpha <= 0 || b.Beta <= 0 {
		t.Errorf("hyperparameters should remain positive, got alpha=%v beta=%v", b.Alpha, b.Beta)
	}
}

func TestSample(t *testing.T) {
	s := prng.New(3)
	b := NewBernoulli(1, 1)
	v := b.Sample(s)
	if _, ok := v.(value.Bool); !ok {
		t.Errorf("expected Bool, got %T", v)
	}

	n := NewNormal(0, 1, 2, 2)
	nv := n.Sample(s)
	if _, ok := nv.(value.Float); !ok {
		t.Errorf("expected Float, got %T", nv)
	}

	bg := NewBigram(1)
	bgv := bg.Sample(s)
	if _, ok := bgv.(value.Str); !ok {
		t.Errorf("expected Str, got %T", bgv)
	}
}
