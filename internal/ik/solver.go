package ik

import (
	"fmt"

	"gonum.org/v1/gonum/optimize"

	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/osim"
)

// Solver solves one frame: given the current model, a recorded frame and
// per-marker weights, it returns the pose minimizing the weighted marker
// error. A warm-start pose from the previous frame keeps the solve in the
// right basin.
type Solver interface {
	SolveFrame(model *osim.Model, frame osim.Frame, weights map[string]float64, warm osim.Pose) (osim.Pose, error)
}

// rangePenalty keeps coordinates inside their declared range during the
// derivative-free search without hard constraints.
const rangePenalty = 1e3

// LeastSquares is the default solver: weighted least squares over the
// unlocked coordinates, minimized with Nelder-Mead.
type LeastSquares struct {
	converge optimize.FunctionConverge
}

// NewLeastSquares creates the default per-frame solver.
func NewLeastSquares() *LeastSquares {
	return &LeastSquares{
		converge: optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-10,
			Iterations: 100,
		},
	}
}

// SolveFrame implements Solver.
func (s *LeastSquares) SolveFrame(model *osim.Model, frame osim.Frame, weights map[string]float64, warm osim.Pose) (osim.Pose, error) {
	coords := model.UnlockedCoordinates()
	pose := model.DefaultPose()
	for name, v := range warm {
		pose[name] = v
	}
	if len(coords) == 0 {
		return pose, nil
	}

	x0 := make([]float64, len(coords))
	for i, c := range coords {
		x0[i] = pose[c.Name]
	}

	objective := func(x []float64) float64 {
		trial := make(osim.Pose, len(pose))
		for name, v := range pose {
			trial[name] = v
		}
		penalty := 0.0
		for i, c := range coords {
			trial[c.Name] = x[i]
			if x[i] < c.RangeMin {
				d := c.RangeMin - x[i]
				penalty += rangePenalty * d * d
			} else if x[i] > c.RangeMax {
				d := x[i] - c.RangeMax
				penalty += rangePenalty * d * d
			}
		}
		positions, err := model.MarkerPositions(trial)
		if err != nil {
			return rangePenalty
		}
		sse := 0.0
		for name, obs := range frame.Positions {
			w, tracked := weights[name]
			if !tracked {
				continue
			}
			got, onModel := positions[name]
			if !onModel {
				continue
			}
			d := got.Sub(obs)
			sse += w * d.Dot(d)
		}
		return sse + penalty
	}

	problem := optimize.Problem{Func: objective}
	converge := s.converge
	settings := optimize.Settings{
		Converger:       &converge,
		MajorIterations: 2000,
		FuncEvaluations: 5000,
	}
	result, err := optimize.Minimize(problem, x0, &settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("frame %d: solve failed: %w", frame.Index, err)
	}

	solved := make(osim.Pose, len(pose))
	for name, v := range pose {
		solved[name] = v
	}
	for i, c := range coords {
		solved[c.Name] = result.X[i]
	}
	return solved, nil
}
