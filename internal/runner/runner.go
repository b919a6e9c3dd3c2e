// Package runner orchestrates a calibration run end to end: load the
// inputs, sweep each phase's parameter space, then persist the calibrated
// model, the final motion and the run record.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/cost"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/history"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/ik"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/osim"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/paramspace"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/search"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/pkg/config"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/pkg/logger"
)

// PhaseSummary is the outcome of one search phase.
type PhaseSummary struct {
	Name       string
	FreeParams int
	Passes     int
	Converged  bool
	FinalCost  float64
	Reason     string
}

// Summary is the outcome of a whole calibration run.
type Summary struct {
	RunID        string
	Subject      string
	SubjectMass  float64 // kg
	StartedAt    time.Time
	Duration     time.Duration
	LogFile      string
	Phases       []PhaseSummary
	Converged    bool
	Passes       int
	FinalCost    float64
	FinalRMSM    float64
	OutputModel  string
	OutputMotion string
}

// Run executes a calibration described by cfg. Non-convergence is not an
// error; the summary carries the per-phase outcome either way. Bad inputs
// and I/O failures are.
func Run(ctx context.Context, cfg *config.Calibration) (*Summary, error) {
	runID := uuid.NewString()
	started := time.Now()

	logFile, err := openLogFile(cfg.LogDir, started)
	if err != nil {
		return nil, err
	}
	defer logFile.Close()

	logger.Info("calibration starting",
		"run_id", runID, "subject", cfg.Subject, "model", cfg.Model, "log", logFile.Name())

	model, err := osim.Load(cfg.Model)
	if err != nil {
		return nil, err
	}
	setup, err := ik.LoadSetup(cfg.IKSetup)
	if err != nil {
		return nil, err
	}
	traj, err := osim.LoadTRC(setup.MarkerPath(cfg.IKSetup))
	if err != nil {
		return nil, err
	}

	// All phases mutate a single worker clone; the generically scaled
	// input model is never touched.
	worker, err := model.Clone()
	if err != nil {
		return nil, err
	}

	adapter := ik.NewAdapter(ik.NewLeastSquares(), setup, cfg.WorkerModel, cfg.WorkerMotion)
	evaluator := cost.New(cost.Options{
		Auxiliary:      cfg.Auxiliary,
		ReferenceFrame: cfg.ReferenceFrame,
	})

	var lastFrames []ik.FrameResult
	evaluate := func(ctx context.Context) (float64, error) {
		frames, err := adapter.Solve(ctx, worker, traj)
		if err != nil {
			return 0, err
		}
		lastFrames = frames
		return evaluator.Score(frames), nil
	}

	summary := &Summary{
		RunID:        runID,
		Subject:      cfg.Subject,
		SubjectMass:  cfg.SubjectMass,
		StartedAt:    started,
		LogFile:      logFile.Name(),
		Converged:    true,
		OutputModel:  cfg.OutputModel,
		OutputMotion: cfg.OutputMotion,
	}

	for _, phase := range cfg.EffectivePhases() {
		resolved := cfg.ResolvePhase(phase)
		space, err := paramspace.Build(resolved, cfg.FixedCoordinates, worker)
		if err != nil {
			return nil, fmt.Errorf("phase %s: %w", resolved.Name, err)
		}

		if _, err := fmt.Fprintf(logFile, "phase %s\n", resolved.Name); err != nil {
			return nil, err
		}
		logger.Info("phase starting",
			"phase", resolved.Name, "free_params", len(space.Free()))

		engine := search.New(space, worker, evaluate,
			search.NewTracker(logFile, cfg.ConvThreshMM),
			search.Options{
				ConvThreshMM: cfg.ConvThreshMM,
				MaxPasses:    resolved.MaxPasses,
				Step:         cfg.Step,
			})
		result, err := engine.Run(ctx)
		if err != nil {
			return nil, fmt.Errorf("phase %s: %w", resolved.Name, err)
		}

		summary.Phases = append(summary.Phases, PhaseSummary{
			Name:       resolved.Name,
			FreeParams: len(space.Free()),
			Passes:     result.Passes,
			Converged:  result.Converged,
			FinalCost:  result.FinalCost,
			Reason:     result.Reason,
		})
		summary.Passes += result.Passes
		summary.FinalCost = result.FinalCost
		if !result.Converged {
			summary.Converged = false
		}
		logger.Info("phase finished",
			"phase", resolved.Name, "converged", result.Converged,
			"passes", result.Passes, "cost", result.FinalCost, "reason", result.Reason)

		if ctx.Err() != nil {
			break
		}
	}

	// One more solve at the accepted placement so the persisted motion
	// matches the calibrated model exactly.
	if ctx.Err() == nil {
		frames, err := adapter.Solve(ctx, worker, traj)
		if err == nil {
			lastFrames = frames
			summary.FinalRMSM = cost.New(cost.Options{}).Score(frames)
		} else if ctx.Err() == nil {
			return nil, err
		}
	}

	if err := worker.Save(cfg.OutputModel); err != nil {
		return nil, err
	}
	if len(lastFrames) > 0 {
		if err := adapter.Motion(worker, lastFrames).Save(cfg.OutputMotion); err != nil {
			return nil, err
		}
	}

	summary.Duration = time.Since(started)
	if cfg.HistoryDB != "" {
		if err := recordRun(ctx, cfg.HistoryDB, summary); err != nil {
			logger.Warn("failed to record run history", "error", err)
		}
	}

	logger.Info("calibration finished",
		"run_id", runID, "converged", summary.Converged,
		"passes", summary.Passes, "cost", summary.FinalCost,
		"output_model", cfg.OutputModel)
	return summary, nil
}

func openLogFile(dir string, started time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir %s: %w", dir, err)
	}
	name := filepath.Join(dir, started.Format("calibration_20060102_150405.log"))
	f, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", name, err)
	}
	return f, nil
}

func recordRun(ctx context.Context, path string, s *Summary) error {
	store := history.NewStore(path)
	if err := store.Init(ctx); err != nil {
		return err
	}
	defer store.Close()
	return store.SaveRun(ctx, history.Run{
		ID:          s.RunID,
		Subject:     s.Subject,
		SubjectMass: s.SubjectMass,
		StartedAt:   s.StartedAt,
		Duration:    s.Duration,
		Phases:      len(s.Phases),
		Passes:      s.Passes,
		Converged:   s.Converged,
		FinalCost:   s.FinalCost,
		OutputModel: s.OutputModel,
	})
}
