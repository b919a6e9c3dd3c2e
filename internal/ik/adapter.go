package ik

import (
	"context"
	"fmt"

	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/osim"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/pkg/logger"
)

// SentinelResidualM is the residual assigned to every tracked marker of a
// frame whose solve failed: large enough that the cost evaluator penalizes
// the frame, finite so the trial still completes.
const SentinelResidualM = 1.0

// FrameResult is one solved frame: joint coordinates and per-marker
// position residuals in meters.
type FrameResult struct {
	Index       int
	Time        float64
	Coordinates osim.Pose
	Residuals   map[string]float64
	Failed      bool
}

// Adapter drives the per-frame solver over a whole trajectory. It owns the
// scratch worker model/motion pair: the worker model is written once per
// trial before solving and the scratch motion once after, so no trial ever
// reads another trial's files.
type Adapter struct {
	solver           Solver
	weights          map[string]float64
	workerModelPath  string
	workerMotionPath string
	motionName       string
}

// NewAdapter creates an adapter using the setup's marker weights and the
// configured scratch paths.
func NewAdapter(solver Solver, setup *Setup, workerModelPath, workerMotionPath string) *Adapter {
	name := setup.Name
	if name == "" {
		name = "ik_solution"
	}
	return &Adapter{
		solver:           solver,
		weights:          setup.WeightMap(),
		workerModelPath:  workerModelPath,
		workerMotionPath: workerMotionPath,
		motionName:       name,
	}
}

// Solve runs one full IK solve of the model against the trajectory. A frame
// that fails to converge is reported with sentinel residuals rather than
// aborting the trial; only I/O failures are hard errors.
func (a *Adapter) Solve(ctx context.Context, model *osim.Model, traj *osim.Trajectory) ([]FrameResult, error) {
	if err := model.Save(a.workerModelPath); err != nil {
		return nil, fmt.Errorf("failed to write worker model: %w", err)
	}

	weights := a.weights
	if len(weights) == 0 {
		weights = make(map[string]float64, len(model.Markers))
		for _, mk := range model.Markers {
			weights[mk.Name] = 1.0
		}
	}

	coords := model.Coordinates()
	columns := make([]string, len(coords))
	for i, c := range coords {
		columns[i] = c.Name
	}

	results := make([]FrameResult, 0, len(traj.Frames))
	rows := make([]osim.MotionRow, 0, len(traj.Frames))
	var warm osim.Pose
	for _, frame := range traj.Frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fr := FrameResult{Index: frame.Index, Time: frame.Time}
		pose, err := a.solver.SolveFrame(model, frame, weights, warm)
		if err != nil {
			logger.Warn("ik frame did not converge",
				"frame", frame.Index, "error", err)
			pose = model.DefaultPose()
			for name, v := range warm {
				pose[name] = v
			}
			fr.Failed = true
			fr.Residuals = sentinelResiduals(frame, weights)
		} else {
			fr.Residuals, err = residuals(model, pose, frame, weights)
			if err != nil {
				return nil, err
			}
			warm = pose
		}
		fr.Coordinates = pose
		results = append(results, fr)

		values := make([]float64, len(coords))
		for i, c := range coords {
			values[i] = pose[c.Name]
		}
		rows = append(rows, osim.MotionRow{Time: frame.Time, Values: values})
	}

	motion := &osim.Motion{Name: a.motionName, Columns: columns, Rows: rows}
	if err := motion.Save(a.workerMotionPath); err != nil {
		return nil, fmt.Errorf("failed to write scratch motion: %w", err)
	}
	return results, nil
}

// Motion rebuilds a motion from solved frame results, used to persist the
// final accepted solve under the output path.
func (a *Adapter) Motion(model *osim.Model, frames []FrameResult) *osim.Motion {
	coords := model.Coordinates()
	columns := make([]string, len(coords))
	for i, c := range coords {
		columns[i] = c.Name
	}
	rows := make([]osim.MotionRow, len(frames))
	for k, fr := range frames {
		values := make([]float64, len(coords))
		for i, c := range coords {
			values[i] = fr.Coordinates[c.Name]
		}
		rows[k] = osim.MotionRow{Time: fr.Time, Values: values}
	}
	return &osim.Motion{Name: a.motionName, Columns: columns, Rows: rows}
}

func residuals(model *osim.Model, pose osim.Pose, frame osim.Frame, weights map[string]float64) (map[string]float64, error) {
	positions, err := model.MarkerPositions(pose)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for name, obs := range frame.Positions {
		if _, tracked := weights[name]; !tracked {
			continue
		}
		got, onModel := positions[name]
		if !onModel {
			continue
		}
		out[name] = got.Sub(obs).Len()
	}
	return out, nil
}

func sentinelResiduals(frame osim.Frame, weights map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	for name := range frame.Positions {
		if _, tracked := weights[name]; tracked {
			out[name] = SentinelResidualM
		}
	}
	return out
}
