// Package search implements the marker/joint placement optimizer: a
// sequential coordinate descent over the free parameter set, scoring each
// candidate placement with a full IK solve of the walking trial.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/osim"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/paramspace"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/pkg/config"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/pkg/logger"
)

// ModelAccess is the slice of the worker model the engine needs: named
// get/set of adjustable scalars. Set rejects implausible values with
// osim.ParameterOutOfBoundsError.
type ModelAccess interface {
	Get(p paramspace.Parameter) (float64, error)
	Set(p paramspace.Parameter, v float64) error
}

// EvaluateFunc scores the worker model in its current state. Each call is
// one trial: a full IK solve plus cost reduction.
type EvaluateFunc func(ctx context.Context) (float64, error)

// Options tunes the search. The convergence threshold is configured in
// millimeters; orientation parameters use the same numeric value in
// milliradians.
type Options struct {
	ConvThreshMM float64
	MaxPasses    int
	Step         config.Step
}

// Engine runs the placement search over one phase's parameter space.
type Engine struct {
	space    *paramspace.Space
	model    ModelAccess
	evaluate EvaluateFunc
	tracker  *Tracker
	opts     Options
}

// New creates a search engine. The tracker receives one record per
// (pass, parameter) pair and owns the termination predicate.
func New(space *paramspace.Space, model ModelAccess, evaluate EvaluateFunc, tracker *Tracker, opts Options) *Engine {
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = config.DefaultMaxPasses
	}
	return &Engine{
		space:    space,
		model:    model,
		evaluate: evaluate,
		tracker:  tracker,
		opts:     opts,
	}
}

// Run sweeps the free parameters pass by pass until one full pass moves
// every parameter less than the threshold, the pass cap is hit, or the
// context is cancelled. Cancellation and the pass cap are not errors: the
// best-so-far result is returned with Converged=false. Only startup and
// I/O failures surface as errors.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	free := e.space.Free()
	initial := make(map[paramspace.Parameter]float64, e.space.Len())
	for _, p := range e.space.All() {
		v, err := e.model.Get(p)
		if err != nil {
			return nil, err
		}
		initial[p] = v
	}

	current, err := e.evaluate(ctx)
	if err != nil {
		if cancelled(ctx, err) {
			// The audit log still gets a finish record, so even an
			// immediately cancelled phase leaves a complete trail.
			result, resErr := e.result(initial, nil, 0, math.NaN(), false, "cancelled before first pass")
			if resErr != nil {
				return nil, resErr
			}
			if err := e.tracker.Finish(result); err != nil {
				return nil, err
			}
			return result, nil
		}
		return nil, fmt.Errorf("initial evaluation failed: %w", err)
	}
	if err := e.tracker.Start(len(free), current); err != nil {
		return nil, err
	}
	trace := []float64{current}

	converged := false
	reason := ""
	passes := 0
	for pass := 1; pass <= e.opts.MaxPasses; pass++ {
		if ctx.Err() != nil {
			reason = "cancelled"
			break
		}

		movements := make([]Movement, 0, len(free))
		stopped := false
		for _, p := range free {
			if ctx.Err() != nil {
				reason = "cancelled"
				stopped = true
				break
			}
			mv, cost, err := e.optimizeParameter(ctx, p, current)
			if err != nil {
				if cancelled(ctx, err) {
					reason = "cancelled"
					stopped = true
					break
				}
				return nil, err
			}
			current = cost
			movements = append(movements, mv)
			if err := e.tracker.Record(pass, mv); err != nil {
				return nil, err
			}
		}
		passes = pass
		trace = append(trace, current)
		if stopped {
			break
		}
		if e.tracker.Converged(movements) {
			converged = true
			reason = "all movements below threshold"
			break
		}
	}
	if reason == "" {
		reason = fmt.Sprintf("pass cap of %d exceeded", e.opts.MaxPasses)
	}

	result, err := e.result(initial, trace, passes, current, converged, reason)
	if err != nil {
		return nil, err
	}
	if err := e.tracker.Finish(result); err != nil {
		return nil, err
	}
	return result, nil
}

// optimizeParameter runs a shrinking-step line search along one axis,
// trying both directions around the current value and accepting only
// strict cost improvements. The worker model is left at the accepted value.
func (e *Engine) optimizeParameter(ctx context.Context, p paramspace.Parameter, currentCost float64) (Movement, float64, error) {
	start, err := e.model.Get(p)
	if err != nil {
		return Movement{}, 0, err
	}
	best, bestCost := start, currentCost
	step := e.initialStep(p)
	minStep := e.minStep(p)

	trials := 0
	for step >= minStep && trials < e.opts.Step.MaxTrials {
		if ctx.Err() != nil {
			break
		}
		candBest, candCost := 0.0, bestCost
		found := false
		for _, cand := range []float64{best + step, best - step} {
			trials++
			if err := e.model.Set(p, cand); err != nil {
				var oob *osim.ParameterOutOfBoundsError
				if errors.As(err, &oob) {
					logger.Debug("candidate rejected", "param", p.Token(), "value", cand)
					continue
				}
				return Movement{}, 0, err
			}
			c, err := e.evaluate(ctx)
			if err != nil {
				if restoreErr := e.model.Set(p, best); restoreErr != nil {
					return Movement{}, 0, restoreErr
				}
				return Movement{}, 0, err
			}
			if c < candCost {
				candBest, candCost = cand, c
				found = true
			}
		}
		if found {
			best, bestCost = candBest, candCost
		} else {
			step *= e.opts.Step.Shrink
		}
	}

	if err := e.model.Set(p, best); err != nil {
		return Movement{}, 0, err
	}
	return Movement{Param: p, Before: start, After: best, Cost: bestCost}, bestCost, nil
}

func (e *Engine) initialStep(p paramspace.Parameter) float64 {
	if p.Kind.Angular() {
		return e.opts.Step.InitialDeg * math.Pi / 180
	}
	return e.opts.Step.InitialMM / 1000
}

func (e *Engine) minStep(p paramspace.Parameter) float64 {
	if p.Kind.Angular() {
		return e.opts.Step.MinDeg * math.Pi / 180
	}
	return e.opts.Step.MinMM / 1000
}

func (e *Engine) result(initial map[paramspace.Parameter]float64, trace []float64, passes int, finalCost float64, converged bool, reason string) (*Result, error) {
	params := make([]ParameterValue, 0, e.space.Len())
	for _, p := range e.space.All() {
		v, err := e.model.Get(p)
		if err != nil {
			return nil, err
		}
		params = append(params, ParameterValue{
			Param:   p,
			State:   e.space.StateOf(p),
			Initial: initial[p],
			Final:   v,
		})
	}
	return &Result{
		Parameters: params,
		Converged:  converged,
		Reason:     reason,
		Passes:     passes,
		FinalCost:  finalCost,
		CostTrace:  trace,
	}, nil
}

func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
