package search

import "github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/paramspace"

// Movement records one parameter's trial within a pass.
type Movement struct {
	Param  paramspace.Parameter
	Before float64
	After  float64
	Cost   float64 // cost after this parameter's trial
}

// Delta is the signed movement applied; zero when no candidate improved.
func (m Movement) Delta() float64 {
	return m.After - m.Before
}

// ParameterValue is one parameter's initial and final value over a run.
type ParameterValue struct {
	Param   paramspace.Parameter
	State   paramspace.State
	Initial float64
	Final   float64
}

// Result is the outcome of one search phase. It is immutable once
// produced; a run that hits the pass cap or is cancelled still carries the
// best-so-far parameter vector with Converged=false.
type Result struct {
	Parameters []ParameterValue
	Converged  bool
	Reason     string
	Passes     int
	FinalCost  float64
	CostTrace  []float64 // cost before pass 1, then after each pass
}

// Value returns the final value of a parameter.
func (r *Result) Value(p paramspace.Parameter) (float64, bool) {
	for _, pv := range r.Parameters {
		if pv.Param == p {
			return pv.Final, true
		}
	}
	return 0, false
}
