package osim

import (
	"fmt"
	"math"

	"github.com/tiendc/go-deepcopy"

	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/paramspace"
)

// Placement bounds. Marker offsets and joint locations beyond half a meter
// from the segment origin are anatomically implausible on a human model, as
// are Euler components beyond a half turn.
const (
	MaxOffsetM     = 0.5
	MaxOrientation = math.Pi
)

// ParameterOutOfBoundsError reports a candidate value rejected by Set. The
// search engine treats it as a failed trial, not a run failure.
type ParameterOutOfBoundsError struct {
	Param    paramspace.Parameter
	Value    float64
	Min, Max float64
}

func (e *ParameterOutOfBoundsError) Error() string {
	return fmt.Sprintf("parameter %s value %g out of bounds [%g, %g]",
		e.Param.Token(), e.Value, e.Min, e.Max)
}

// HasMarker reports whether a marker with the given name exists.
func (m *Model) HasMarker(name string) bool {
	return m.markerByName(name) != nil
}

// HasJoint reports whether a joint with the given name exists.
func (m *Model) HasJoint(name string) bool {
	return m.jointByName(name) != nil
}

func (m *Model) markerByName(name string) *Marker {
	for i := range m.Markers {
		if m.Markers[i].Name == name {
			return &m.Markers[i]
		}
	}
	return nil
}

func (m *Model) jointByName(name string) *Joint {
	for i := range m.Joints {
		if m.Joints[i].Name == name {
			return &m.Joints[i]
		}
	}
	return nil
}

// Get returns the current value of an adjustable parameter.
func (m *Model) Get(p paramspace.Parameter) (float64, error) {
	switch p.Kind {
	case paramspace.KindMarker:
		mk := m.markerByName(p.Entity)
		if mk == nil {
			return 0, &paramspace.UnknownEntityError{Kind: "marker", Name: p.Entity}
		}
		return mk.Location[p.Axis], nil
	case paramspace.KindJointLocation:
		j := m.jointByName(p.Entity)
		if j == nil {
			return 0, &paramspace.UnknownEntityError{Kind: "joint", Name: p.Entity}
		}
		return j.Location[p.Axis], nil
	case paramspace.KindJointOrientation:
		j := m.jointByName(p.Entity)
		if j == nil {
			return 0, &paramspace.UnknownEntityError{Kind: "joint", Name: p.Entity}
		}
		return j.Orientation[p.Axis], nil
	default:
		return 0, fmt.Errorf("unsupported parameter kind %v", p.Kind)
	}
}

// Set writes a new value for an adjustable parameter, rejecting
// anatomically implausible values with ParameterOutOfBoundsError.
func (m *Model) Set(p paramspace.Parameter, v float64) error {
	min, max := -MaxOffsetM, MaxOffsetM
	if p.Kind == paramspace.KindJointOrientation {
		min, max = -MaxOrientation, MaxOrientation
	}
	if v < min || v > max || math.IsNaN(v) {
		return &ParameterOutOfBoundsError{Param: p, Value: v, Min: min, Max: max}
	}

	switch p.Kind {
	case paramspace.KindMarker:
		mk := m.markerByName(p.Entity)
		if mk == nil {
			return &paramspace.UnknownEntityError{Kind: "marker", Name: p.Entity}
		}
		mk.Location[p.Axis] = v
	case paramspace.KindJointLocation:
		j := m.jointByName(p.Entity)
		if j == nil {
			return &paramspace.UnknownEntityError{Kind: "joint", Name: p.Entity}
		}
		j.Location[p.Axis] = v
	case paramspace.KindJointOrientation:
		j := m.jointByName(p.Entity)
		if j == nil {
			return &paramspace.UnknownEntityError{Kind: "joint", Name: p.Entity}
		}
		j.Orientation[p.Axis] = v
	default:
		return fmt.Errorf("unsupported parameter kind %v", p.Kind)
	}
	return nil
}

// Clone returns a deep copy of the model, used as the mutable worker model
// so candidate perturbations never touch the canonical input.
func (m *Model) Clone() (*Model, error) {
	dst := &Model{}
	if err := deepcopy.Copy(dst, m); err != nil {
		return nil, fmt.Errorf("failed to clone model: %w", err)
	}
	return dst, nil
}
