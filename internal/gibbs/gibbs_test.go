package gibbs

import (
	"context"
	"math"
	"testing"

	"github.com/pclean-go/pclean/internal/distribution"
	"github.com/pclean-go/pclean/internal/emission"
	"github.com/pclean-go/pclean/internal/hirm"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/relation"
	"github.com/pclean-go/pclean/internal/value"
)

// TestTransitionLatentValuePreservesIncorporatedCounts reproduces property
// #5: resampling a base tuple's clean value changes only the value and its
// sufficient statistics, never the number of incorporated tuples in any
// relation that traces back to it.
func TestTransitionLatentValuePreservesIncorporatedCounts(t *testing.T) {
	s := prng.New(5)
	d1 := relation.NewDomain("D", 1.0)

	base := relation.NewCleanRelation("base", []*relation.Domain{d1}, func() distribution.Distribution {
		return distribution.NewNormal(0, 1, 1, 1)
	})
	base.Incorporate(s, []int{0}, value.Float(1.0))

	noisy := relation.NewNoisyRelation("noisy", []*relation.Domain{d1, d1}, base, func() distribution.Distribution {
		return emission.NewGaussian(1, 1, 1)
	})
	noisy.Incorporate(s, []int{0, 0}, value.Float(1.4))
	noisy.Incorporate(s, []int{0, 1}, value.Float(0.6))

	for i := 0; i < 20; i++ {
		TransitionLatentValue(base, []*relation.NoisyRelation{noisy}, []int{0}, s)
	}

	if _, ok := noisy.Value([]int{0, 0}); !ok {
		t.Fatalf("noisy tuple [0,0] lost across latent-value resampling")
	}
	if _, ok := noisy.Value([]int{0, 1}); !ok {
		t.Fatalf("noisy tuple [0,1] lost across latent-value resampling")
	}
	if math.IsNaN(base.LogpScore()) || math.IsNaN(noisy.LogpScore()) {
		t.Fatalf("logp_score went NaN across latent-value resampling")
	}
}

func newBernoulliCluster() distribution.Distribution { return distribution.NewBernoulli(1, 1) }

// TestDriverRunSweepsUntilMaxIterations checks that a driver with no
// reference targets and a trivial model runs to completion (ExitOK) rather
// than stalling or panicking on an empty sweep.
func TestDriverRunSweepsUntilMaxIterations(t *testing.T) {
	s := prng.New(6)
	h := hirm.New(1.0)

	rel := relation.NewCleanRelation("flag", []*relation.Domain{relation.NewDomain("animal", 1.0)}, newBernoulliCluster)
	h.AddRelation(s, "flag", rel, hirm.Schema{})

	d := rel.DomainsList()[0]
	d.Retain(0, s)
	rel.Incorporate(s, []int{0}, value.Bool(true))

	drv := NewDriver(h, nil, Config{MaxIterations: 5, Verbose: false})
	reason, err := drv.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected driver error: %v", err)
	}
	if reason != ExitOK {
		t.Fatalf("expected ExitOK, got %v", reason)
	}

	if v, ok := rel.Value([]int{0}); !ok || v != value.Bool(true) {
		t.Fatalf("relation data lost across driver sweeps: v=%v ok=%v", v, ok)
	}
}

// TestDriverRunRespectsContextCancellation checks the driver stops cleanly
// (ExitIterationTimeout, no error) once its context is already done.
func TestDriverRunRespectsContextCancellation(t *testing.T) {
	s := prng.New(7)
	h := hirm.New(1.0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	drv := NewDriver(h, nil, Config{MaxIterations: 100})
	reason, err := drv.Run(ctx, s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != ExitIterationTimeout {
		t.Fatalf("expected ExitIterationTimeout, got %v", reason)
	}
}
