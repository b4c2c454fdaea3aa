package gibbs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pclean-go/pclean/internal/distribution"
	"github.com/pclean-go/pclean/internal/gendb"
	"github.com/pclean-go/pclean/internal/hirm"
	"github.com/pclean-go/pclean/internal/obslog"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/relation"
)

// ExitReason is one of the five exit conditions the driver surfaces to its
// caller instead of crashing the process (§6, §7).
type ExitReason string

const (
	ExitOK                      ExitReason = "ok"
	ExitIterationTimeout        ExitReason = "iteration-timeout"
	ExitHyperparameterDegeneracy ExitReason = "hyperparameter-degeneracy"
	ExitSchemaUnresolvable      ExitReason = "schema-unresolvable"
	ExitObservationTypeMismatch ExitReason = "observation-type-mismatch"
)

// Config is the driver configuration surface of §6: iteration count,
// timeout, verbosity, and hyperparameter sub-stepping.
type Config struct {
	MaxIterations int
	// TimeoutSeconds is a wall-clock budget checked between sweeps, not
	// preempting a sweep already in flight (§5).
	TimeoutSeconds float64
	Verbose        bool
	// HyperparameterSubsteps is how many grid-Gibbs resamples each
	// relation's clusters get per sweep.
	HyperparameterSubsteps int
}

// LatentTarget names one base-relation tuple whose clean value the driver
// resamples every sweep, together with the noisy relations observing it
// through an emission channel (§4.6).
type LatentTarget struct {
	Base    *relation.CleanRelation
	Noisies []*relation.NoisyRelation
	Items   []int
}

// ReferenceTarget names one reference field GenDB resamples every sweep,
// for every primary key of the owning class currently known to the driver
// (§4.9).
type ReferenceTarget struct {
	Class string
	Field string
	Items []int
}

// Driver sequences Gibbs sweeps across an entire model: latent values,
// relation-to-IRM assignment, entity-to-cluster assignment, reference-field
// assignment, then hyperparameters (§2's data-flow ordering).
type Driver struct {
	Hirm             *hirm.HIRM
	GenDB            *gendb.GenDB
	LatentTargets    []LatentTarget
	ReferenceTargets []ReferenceTarget
	Config           Config

	log *obslog.Logger
}

// NewDriver returns a driver over h (and, optionally, a GenDB layer — nil
// if the model has no reference fields) with the given configuration.
func NewDriver(h *hirm.HIRM, g *gendb.GenDB, cfg Config) *Driver {
	if cfg.HyperparameterSubsteps < 1 {
		cfg.HyperparameterSubsteps = 1
	}
	return &Driver{
		Hirm:   h,
		GenDB:  g,
		Config: cfg,
		log:    obslog.GetLogger("gibbs.driver"),
	}
}

// Run executes sweeps until MaxIterations, the timeout, or a fatal
// condition is reached, returning the exit reason the caller should act on.
func (d *Driver) Run(ctx context.Context, s *prng.Stream) (reason ExitReason, err error) {
	deadline := time.Time{}
	if d.Config.TimeoutSeconds > 0 {
		deadline = time.Now().Add(time.Duration(d.Config.TimeoutSeconds * float64(time.Second)))
	}

	for i := 0; i < d.Config.MaxIterations; i++ {
		select {
		case <-ctx.Done():
			return ExitIterationTimeout, nil
		default:
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return ExitIterationTimeout, nil
		}

		start := time.Now()
		sweepErr := d.sweep(s)
		elapsed := time.Since(start).Seconds() * 1000

		if d.Config.Verbose {
			d.log.Sweep("gibbs", elapsed, "iteration", i+1)
		}

		if sweepErr != nil {
			switch {
			case errors.Is(sweepErr, distribution.ErrHyperparameterDegeneracy):
				return ExitHyperparameterDegeneracy, sweepErr
			case errors.Is(sweepErr, ErrSchemaUnresolvable):
				return ExitSchemaUnresolvable, sweepErr
			case errors.Is(sweepErr, ErrObservationTypeMismatch):
				return ExitObservationTypeMismatch, sweepErr
			default:
				return ExitSchemaUnresolvable, sweepErr
			}
		}
	}
	return ExitOK, nil
}

// ErrSchemaUnresolvable is returned when a driver target references a
// relation or domain the HIRM does not actually have — a model-construction
// bug, not a data condition (§7).
var ErrSchemaUnresolvable = errors.New("gibbs: schema unresolvable")

// ErrObservationTypeMismatch is returned when an observation's value does
// not fit the family its relation declared (§7); the row is skipped and
// this error is surfaced for the caller to log, not a crash.
var ErrObservationTypeMismatch = errors.New("gibbs: observation type mismatch")

func (d *Driver) sweep(s *prng.Stream) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if perr, ok := r.(error); ok && errors.Is(perr, distribution.ErrHyperparameterDegeneracy) {
				err = fmt.Errorf("%w: %v", distribution.ErrHyperparameterDegeneracy, perr)
				return
			}
			if msg, ok := r.(string); ok && strings.Contains(msg, distribution.ErrHyperparameterDegeneracy.Error()) {
				err = fmt.Errorf("%w: %s", distribution.ErrHyperparameterDegeneracy, msg)
				return
			}
			err = fmt.Errorf("gibbs: sweep panicked: %v", r)
		}
	}()

	// Latent values (§4.6).
	for _, lt := range d.LatentTargets {
		TransitionLatentValue(lt.Base, lt.Noisies, lt.Items, s)
	}

	// Relation -> IRM assignment (§4.8).
	for name := range d.Hirm.Relations {
		d.Hirm.TransitionClusterAssignmentRelation(s, name)
	}

	// Entity -> cluster assignment, per IRM per domain (§4.7).
	for _, irmModel := range d.Hirm.TableToIRM {
		for domainName, dom := range irmModel.Domains {
			for _, item := range dom.Items() {
				irmModel.TransitionClusterAssignmentItem(s, domainName, item)
			}
		}
	}

	// Reference-field assignment (§4.9).
	if d.GenDB != nil {
		for _, rt := range d.ReferenceTargets {
			for _, item := range rt.Items {
				d.GenDB.TransitionReference(s, rt.Class, rt.Field, item)
			}
		}
	}

	// Hyperparameters, per relation, HyperparameterSubsteps times (§6).
	for i := 0; i < d.Config.HyperparameterSubsteps; i++ {
		for _, rel := range d.Hirm.Relations {
			transitionRelationHyperparameters(rel, s)
		}
	}

	return nil
}

func transitionRelationHyperparameters(rel relation.Relation, s *prng.Stream) {
	switch r := rel.(type) {
	case *relation.CleanRelation:
		for _, cl := range r.Clusters() {
			cl.TransitionHyperparameters(s)
		}
	case *relation.NoisyRelation:
		for _, cl := range r.EmissionRelation().Clusters() {
			cl.TransitionHyperparameters(s)
		}
	}
}
