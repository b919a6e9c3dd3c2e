// Package cost reduces the per-frame results of one IK solve to the single
// scalar the search engine minimizes.
package cost

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/ik"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/pkg/config"
)

// Options configures the evaluator. The auxiliary weights are part of the
// configuration surface, not baked-in constants.
type Options struct {
	Auxiliary      config.Auxiliary
	ReferenceFrame int
}

// Evaluator scores a candidate model configuration from its solved frames.
type Evaluator struct {
	opts Options
}

// New creates an evaluator.
func New(opts Options) *Evaluator {
	return &Evaluator{opts: opts}
}

// Score reduces the solved frames to a scalar cost. The base term is the
// root-mean-square of all per-marker residuals across frames; when the
// auxiliary flag is set, squared flexion deviation from zero and squared
// pistoning at the reference frame are added with their configured weights.
func (e *Evaluator) Score(frames []ik.FrameResult) float64 {
	var residuals []float64
	for _, fr := range frames {
		for _, r := range fr.Residuals {
			residuals = append(residuals, r)
		}
	}
	score := rms(residuals)

	aux := e.opts.Auxiliary
	if !aux.Enabled || len(frames) == 0 {
		return score
	}

	ref := e.opts.ReferenceFrame
	if ref >= len(frames) {
		ref = len(frames) - 1
	}
	frame := frames[ref]
	if aux.FlexionCoordinate != "" {
		flexion := frame.Coordinates[aux.FlexionCoordinate]
		score += aux.FlexionWeight * flexion * flexion
	}
	if aux.PistoningCoordinate != "" {
		piston := frame.Coordinates[aux.PistoningCoordinate]
		score += aux.PistoningWeight * piston * piston
	}
	return score
}

func rms(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return floats.Norm(xs, 2) / math.Sqrt(float64(len(xs)))
}
