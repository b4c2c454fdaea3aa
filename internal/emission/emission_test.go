package emission

import (
	"math"
	"testing"

	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

func roundTrip(t *testing.T, e Emission, v value.Value) {
	t.Helper()
	e.Incorporate(v, 1)
	score0 := e.LogpScore()
	e.Incorporate(v, 1)
	e.Unincorporate(v)
	score1 := e.LogpScore()
	if math.Abs(score0-score1) > 1e-8 {
		t.Errorf("round trip changed score: %v vs %v", score0, score1)
	}
}

func TestBitFlipRoundTrip(t *testing.T) {
	bf := NewBitFlip(1, 1)
	roundTrip(t, bf, value.Pair{Clean: value.Bool(true), Dirty: value.Bool(false)})
}

func TestBitFlipSampleCorrupted(t *testing.T) {
	bf := NewBitFlip(1000, 1) // near-certain flip
	s := prng.New(1)
	bf.Incorporate(value.Pair{Clean: value.Bool(true), Dirty: value.Bool(false)}, 10)
	got := bf.SampleCorrupted(value.Bool(true), s)
	if got != value.Bool(false) {
		t.Errorf("expected near-certain flip to false, got %v", got)
	}
}

func TestGaussianRoundTrip(t *testing.T) {
	g := NewGaussian(1, 1, 1)
	roundTrip(t, g, value.Pair{Clean: value.Float(1.0), Dirty: value.Float(1.3)})
}

func TestGaussianProposeCleanIsMean(t *testing.T) {
	g := NewGaussian(1, 1, 1)
	dirties := []value.Value{value.Float(1.0), value.Float(3.0)}
	got := value.AsFloat(g.ProposeClean(dirties, nil))
	if math.Abs(got-2.0) > 1e-9 {
		t.Errorf("expected mean 2.0, got %v", got)
	}
}

func TestSimpleStringRoundTrip(t *testing.T) {
	ss := NewSimpleString(1, 1, 1)
	roundTrip(t, ss, value.Pair{Clean: value.Str("hello"), Dirty: value.Str("world")})
}

func TestSimpleStringLogpDoesNotMutate(t *testing.T) {
	ss := NewSimpleString(1, 1, 1)
	ss.Incorporate(value.Pair{Clean: value.Str("cat"), Dirty: value.Str("cat")}, 1)
	before := ss.LogpScore()
	_ = ss.Logp(value.Pair{Clean: value.Str("cat"), Dirty: value.Str("dog")})
	after := ss.LogpScore()
	if math.Abs(before-after) > 1e-9 {
		t.Errorf("Logp mutated state: before=%v after=%v", before, after)
	}
}

func TestBigramStringRoundTrip(t *testing.T) {
	bs := NewBigramString(1, 1, 1)
	roundTrip(t, bs, value.Pair{Clean: value.Str("hello"), Dirty: value.Str("hallo")})
}

func TestCategoricalEmissionRoundTrip(t *testing.T) {
	c := NewCategorical(4, 1)
	roundTrip(t, c, value.Pair{Clean: value.Int(0), Dirty: value.Int(2)})
}

func TestSometimesPassThroughWhenUnchanged(t *testing.T) {
	inner := NewBitFlip(1, 1)
	som := NewSometimes(inner, 1, 1)
	v := value.Pair{Clean: value.Bool(true), Dirty: value.Bool(true)}
	som.Incorporate(v, 1)
	if inner.flip.LogpScore() != 0 {
		t.Fatalf("inner emission should not have absorbed a pass-through pair")
	}
}

func TestSometimesRoundTrip(t *testing.T) {
	inner := NewBitFlip(1, 1)
	som := NewSometimes(inner, 1, 1)
	roundTrip(t, som, value.Pair{Clean: value.Bool(true), Dirty: value.Bool(false)})
}

func TestSometimesSampleCorruptedPassThroughWhenNotFired(t *testing.T) {
	inner := NewBitFlip(1, 1)
	som := NewSometimes(inner, 1, 1000) // near-certain not-fire
	s := prng.New(2)
	got := som.SampleCorrupted(value.Bool(true), s)
	if got != value.Bool(true) {
		t.Errorf("expected pass-through, got %v", got)
	}
}
