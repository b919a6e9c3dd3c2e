package search

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/osim"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/paramspace"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/pkg/config"
)

type fakeInfo struct{}

func (fakeInfo) HasMarker(string) bool { return true }
func (fakeInfo) HasJoint(string) bool  { return true }

type fakeAccess struct {
	values map[paramspace.Parameter]float64
	bound  float64 // 0 = unbounded
}

func newFakeAccess() *fakeAccess {
	return &fakeAccess{values: make(map[paramspace.Parameter]float64)}
}

func (f *fakeAccess) Get(p paramspace.Parameter) (float64, error) {
	return f.values[p], nil
}

func (f *fakeAccess) Set(p paramspace.Parameter, v float64) error {
	if f.bound > 0 && math.Abs(v) > f.bound {
		return &osim.ParameterOutOfBoundsError{Param: p, Value: v, Min: -f.bound, Max: f.bound}
	}
	f.values[p] = v
	return nil
}

// quadratic scores the distance of every value from its target, mimicking
// marker error that vanishes at the true offsets.
func quadratic(f *fakeAccess, targets map[paramspace.Parameter]float64) EvaluateFunc {
	return func(ctx context.Context) (float64, error) {
		c := 0.0
		for p, target := range targets {
			d := f.values[p] - target
			c += d * d
		}
		return c, nil
	}
}

func defaultOpts() Options {
	return Options{
		ConvThreshMM: 1.0,
		MaxPasses:    50,
		Step: config.Step{
			InitialMM:  8.0,
			InitialDeg: 4.0,
			Shrink:     0.5,
			MinMM:      0.25,
			MinDeg:     0.125,
			MaxTrials:  24,
		},
	}
}

func markerSpace(t *testing.T, names ...string) *paramspace.Space {
	t.Helper()
	s, err := paramspace.Build(config.Phase{FreeMarkers: names}, nil, fakeInfo{})
	require.NoError(t, err)
	return s
}

func param(name string, ax paramspace.Axis) paramspace.Parameter {
	return paramspace.Parameter{Kind: paramspace.KindMarker, Entity: name, Axis: ax}
}

func runEngine(t *testing.T, space *paramspace.Space, access *fakeAccess, eval EvaluateFunc, opts Options) (*Result, *strings.Builder) {
	t.Helper()
	var log strings.Builder
	engine := New(space, access, eval, NewTracker(&log, opts.ConvThreshMM), opts)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	return result, &log
}

func TestExactOffsetsConvergeInOnePass(t *testing.T) {
	space := markerSpace(t, "RASI")
	access := newFakeAccess()
	targets := map[paramspace.Parameter]float64{}
	for _, p := range space.All() {
		targets[p] = 0 // already at the optimum
	}

	result, _ := runEngine(t, space, access, quadratic(access, targets), defaultOpts())

	assert.True(t, result.Converged)
	assert.Equal(t, 1, result.Passes)
	for _, pv := range result.Parameters {
		assert.Equal(t, pv.Initial, pv.Final, "parameter %s moved", pv.Param)
	}
}

func TestEmptyFreeSetConvergesInOnePass(t *testing.T) {
	space, err := paramspace.Build(config.Phase{}, nil, fakeInfo{})
	require.NoError(t, err)
	access := newFakeAccess()

	evals := 0
	eval := func(ctx context.Context) (float64, error) {
		evals++
		return 1.0, nil
	}
	result, _ := runEngine(t, space, access, eval, defaultOpts())

	assert.True(t, result.Converged)
	assert.Equal(t, 1, result.Passes)
	assert.Equal(t, 1, evals, "only the initial evaluation should run")
}

func TestDisplacedMarkerRecovers(t *testing.T) {
	space := markerSpace(t, "RASI")
	access := newFakeAccess()
	x := param("RASI", paramspace.AxisX)
	access.values[x] = 0.005 // 5 mm off its true offset
	targets := map[paramspace.Parameter]float64{}
	for _, p := range space.All() {
		targets[p] = 0
	}

	result, _ := runEngine(t, space, access, quadratic(access, targets), defaultOpts())

	assert.True(t, result.Converged)
	final, ok := result.Value(x)
	require.True(t, ok)
	assert.Less(t, math.Abs(final), 1e-3, "marker should end within the threshold of its true offset")

	// Cost is non-increasing pass over pass.
	for i := 1; i < len(result.CostTrace); i++ {
		assert.LessOrEqual(t, result.CostTrace[i], result.CostTrace[i-1])
	}
}

func TestAdversarialCostHitsPassCap(t *testing.T) {
	space := markerSpace(t, "RASI")
	access := newFakeAccess()

	// Cost keeps improving as values drift outward, so movements never
	// fall below the threshold.
	eval := func(ctx context.Context) (float64, error) {
		c := 0.0
		for _, p := range space.Free() {
			c -= math.Abs(access.values[p])
		}
		return c, nil
	}

	opts := defaultOpts()
	opts.MaxPasses = 5
	result, _ := runEngine(t, space, access, eval, opts)

	assert.False(t, result.Converged)
	assert.Equal(t, 5, result.Passes)
	assert.Contains(t, result.Reason, "pass cap")
	assert.NotEmpty(t, result.Parameters, "best-so-far vector still returned")
}

func TestHugeThresholdConvergesFirstPass(t *testing.T) {
	space := markerSpace(t, "RASI")
	access := newFakeAccess()
	x := param("RASI", paramspace.AxisX)
	access.values[x] = 0.05
	targets := map[paramspace.Parameter]float64{}
	for _, p := range space.All() {
		targets[p] = 0
	}

	opts := defaultOpts()
	opts.ConvThreshMM = 1e6
	result, _ := runEngine(t, space, access, quadratic(access, targets), opts)

	assert.True(t, result.Converged)
	assert.Equal(t, 1, result.Passes)
}

func TestLockedAndFixedNeverMove(t *testing.T) {
	phase := config.Phase{
		FreeMarkers: []string{"RASI"},
		FreeJoints:  []string{"socket"},
		JointLocks: &config.JointLocks{
			TY:        true,
			Adduction: true,
		},
	}
	space, err := paramspace.Build(phase, []string{"RASI Z"}, fakeInfo{})
	require.NoError(t, err)

	access := newFakeAccess()
	for _, p := range space.All() {
		access.values[p] = 0.01
	}
	targets := map[paramspace.Parameter]float64{}
	for _, p := range space.All() {
		targets[p] = 0.05 // optimum away from start, so free params move
	}

	result, _ := runEngine(t, space, access, quadratic(access, targets), defaultOpts())

	for _, pv := range result.Parameters {
		switch pv.State {
		case paramspace.Locked, paramspace.Fixed:
			assert.Equal(t, pv.Initial, pv.Final, "%s parameter %s moved", pv.State, pv.Param)
		case paramspace.Free:
			assert.NotEqual(t, pv.Initial, pv.Final, "free parameter %s never moved", pv.Param)
		}
	}
}

func TestOutOfBoundsCandidatesRejected(t *testing.T) {
	space := markerSpace(t, "RASI")
	access := newFakeAccess()
	access.bound = 0.004 // tighter than the initial 8 mm step
	targets := map[paramspace.Parameter]float64{}
	for _, p := range space.All() {
		targets[p] = 0.003
	}

	result, _ := runEngine(t, space, access, quadratic(access, targets), defaultOpts())

	assert.True(t, result.Converged)
	x, ok := result.Value(param("RASI", paramspace.AxisX))
	require.True(t, ok)
	assert.LessOrEqual(t, math.Abs(x), 0.004, "accepted values stay inside bounds")
	assert.InDelta(t, 0.003, x, 1e-3)
}

func TestCancellationReturnsBestSoFar(t *testing.T) {
	space := markerSpace(t, "RASI", "LASI")
	access := newFakeAccess()
	targets := map[paramspace.Parameter]float64{}
	for _, p := range space.All() {
		targets[p] = 0.05
	}

	ctx, cancel := context.WithCancel(context.Background())
	evals := 0
	inner := quadratic(access, targets)
	eval := func(ctx context.Context) (float64, error) {
		evals++
		if evals == 4 {
			cancel()
		}
		return inner(ctx)
	}

	var log strings.Builder
	opts := defaultOpts()
	engine := New(space, access, eval, NewTracker(&log, opts.ConvThreshMM), opts)
	result, err := engine.Run(ctx)
	require.NoError(t, err)

	assert.False(t, result.Converged)
	assert.Equal(t, "cancelled", result.Reason)
}

func TestCancelledBeforeFirstPassStillLogsFinish(t *testing.T) {
	space := markerSpace(t, "RASI")
	access := newFakeAccess()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eval := func(ctx context.Context) (float64, error) {
		return 0, ctx.Err()
	}

	var log strings.Builder
	opts := defaultOpts()
	engine := New(space, access, eval, NewTracker(&log, opts.ConvThreshMM), opts)
	result, err := engine.Run(ctx)
	require.NoError(t, err)

	assert.False(t, result.Converged)
	assert.Equal(t, "cancelled before first pass", result.Reason)
	assert.Contains(t, log.String(), `finish converged=false passes=0`)
	assert.Contains(t, log.String(), `reason="cancelled before first pass"`)
}

func TestHardErrorPropagates(t *testing.T) {
	space := markerSpace(t, "RASI")
	access := newFakeAccess()
	eval := func(ctx context.Context) (float64, error) {
		return 0, fmt.Errorf("scratch motion: disk full")
	}

	var log strings.Builder
	opts := defaultOpts()
	engine := New(space, access, eval, NewTracker(&log, opts.ConvThreshMM), opts)
	_, err := engine.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestAuditLogRecordsEveryParameter(t *testing.T) {
	space := markerSpace(t, "RASI")
	access := newFakeAccess()
	targets := map[paramspace.Parameter]float64{}
	for _, p := range space.All() {
		targets[p] = 0
	}

	result, log := runEngine(t, space, access, quadratic(access, targets), defaultOpts())

	text := log.String()
	assert.Contains(t, text, "start free_params=3")
	for _, p := range space.Free() {
		assert.Contains(t, text, fmt.Sprintf("param=%q", p.Token()))
	}
	assert.Contains(t, text, fmt.Sprintf("finish converged=%t passes=%d", result.Converged, result.Passes))
}
