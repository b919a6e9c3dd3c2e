package search

import (
	"fmt"
	"io"
	"math"

	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/paramspace"
)

// Tracker appends the audit trail for one phase and owns the termination
// predicate. One record per (pass, parameter) pair lets a non-converging
// run be diagnosed after the fact.
type Tracker struct {
	w             io.Writer
	linearThresh  float64 // meters
	angularThresh float64 // radians
}

// NewTracker creates a tracker writing to w. The configured threshold is
// millimeters for translational parameters; orientation parameters use the
// same numeric value in milliradians.
func NewTracker(w io.Writer, convThreshMM float64) *Tracker {
	return &Tracker{
		w:             w,
		linearThresh:  convThreshMM / 1000,
		angularThresh: convThreshMM / 1000,
	}
}

// Start writes the phase header.
func (t *Tracker) Start(freeParams int, initialCost float64) error {
	_, err := fmt.Fprintf(t.w, "start free_params=%d cost=%.8f\n", freeParams, initialCost)
	return err
}

// Record appends one (pass, parameter) audit record.
func (t *Tracker) Record(pass int, mv Movement) error {
	_, err := fmt.Fprintf(t.w, "pass=%d param=%q before=%.8f after=%.8f movement=%+.8f cost=%.8f\n",
		pass, mv.Param.Token(), mv.Before, mv.After, mv.Delta(), mv.Cost)
	return err
}

// Finish writes the phase summary.
func (t *Tracker) Finish(r *Result) error {
	_, err := fmt.Fprintf(t.w, "finish converged=%t passes=%d cost=%.8f reason=%q\n",
		r.Converged, r.Passes, r.FinalCost, r.Reason)
	return err
}

// Converged reports whether a completed pass satisfies the termination
// predicate: every recorded movement magnitude strictly below the
// threshold for its parameter kind.
func (t *Tracker) Converged(movements []Movement) bool {
	for _, mv := range movements {
		if math.Abs(mv.Delta()) >= t.threshold(mv.Param) {
			return false
		}
	}
	return true
}

func (t *Tracker) threshold(p paramspace.Parameter) float64 {
	if p.Kind.Angular() {
		return t.angularThresh
	}
	return t.linearThresh
}
