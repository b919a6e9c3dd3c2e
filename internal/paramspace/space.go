package paramspace

import (
	"fmt"
	"sort"
	"strings"

	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/pkg/config"
)

// ModelInfo is the view of the model the parameter space needs: existence
// checks for configured entity names.
type ModelInfo interface {
	HasMarker(name string) bool
	HasJoint(name string) bool
}

// UnknownEntityError reports a configured marker, joint or fixed-coordinate
// entity that does not exist on the model. It is a startup-time fatal
// condition.
type UnknownEntityError struct {
	Kind string // "marker", "joint" or "fixed coordinate"
	Name string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown %s %q: not present on the model", e.Kind, e.Name)
}

// Space is the ordered, classified parameter set for one phase of a run.
type Space struct {
	params []Parameter
	states map[Parameter]State
}

// Build enumerates the adjustable parameters for a resolved phase and
// classifies each one. The order is deterministic: markers sorted by name,
// then joints sorted by name with location before orientation, axes always
// X, Y, Z. Re-runs with identical inputs therefore sweep identically.
func Build(phase config.Phase, fixedCoordinates []string, model ModelInfo) (*Space, error) {
	s := &Space{states: make(map[Parameter]State)}

	markers := append([]string(nil), phase.FreeMarkers...)
	sort.Strings(markers)
	for _, name := range markers {
		if !model.HasMarker(name) {
			return nil, &UnknownEntityError{Kind: "marker", Name: name}
		}
		for _, ax := range Axes {
			s.add(Parameter{Kind: KindMarker, Entity: name, Axis: ax}, Free)
		}
	}

	joints := append([]string(nil), phase.FreeJoints...)
	sort.Strings(joints)
	locks := phase.JointLocks
	if locks == nil {
		locks = &config.JointLocks{}
	}
	for _, name := range joints {
		if !model.HasJoint(name) {
			return nil, &UnknownEntityError{Kind: "joint", Name: name}
		}
		for _, ax := range Axes {
			s.add(Parameter{Kind: KindJointLocation, Entity: name, Axis: ax},
				lockState(locationLocked(locks, ax)))
		}
		for _, ax := range Axes {
			s.add(Parameter{Kind: KindJointOrientation, Entity: name, Axis: ax},
				lockState(orientationLocked(locks, ax)))
		}
	}

	if err := s.applyFixed(fixedCoordinates, model); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Space) add(p Parameter, st State) {
	s.params = append(s.params, p)
	s.states[p] = st
}

func lockState(locked bool) State {
	if locked {
		return Locked
	}
	return Free
}

// locationLocked maps the translation lock flags onto location axes.
func locationLocked(l *config.JointLocks, ax Axis) bool {
	switch ax {
	case AxisX:
		return l.TX
	case AxisY:
		return l.TY
	default:
		return l.TZ
	}
}

// orientationLocked maps the anatomical lock flags onto orientation axes:
// adduction about X, rotation about Y, flexion about Z.
func orientationLocked(l *config.JointLocks, ax Axis) bool {
	switch ax {
	case AxisX:
		return l.Adduction
	case AxisY:
		return l.Rotation
	default:
		return l.Flexion
	}
}

// applyFixed marks parameters named in the fixed-coordinate list. The list
// is global to the run, so a token's entity is checked against the model,
// not against this phase: a token naming an entity absent from the model is
// an unknown entity, while a model-valid token that matches no parameter
// enumerated here is a no-op (it may pin a parameter freed only in a later
// phase).
func (s *Space) applyFixed(tokens []string, model ModelInfo) error {
	for _, tok := range tokens {
		fields := strings.Fields(tok)
		if len(fields) != 2 {
			return &UnknownEntityError{Kind: "fixed coordinate", Name: tok}
		}
		ax, err := ParseAxis(fields[1])
		if err != nil {
			return &UnknownEntityError{Kind: "fixed coordinate", Name: tok}
		}
		if !fixedEntityOnModel(fields[0], model) {
			return &UnknownEntityError{Kind: "fixed coordinate", Name: tok}
		}
		for _, p := range s.params {
			if p.entityToken() == fields[0] && p.Axis == ax {
				// A lock flag takes precedence over a fixed token.
				if s.states[p] != Locked {
					s.states[p] = Fixed
				}
			}
		}
	}
	return nil
}

// fixedEntityOnModel checks the entity part of a fixed token against the
// model: bare names are markers, ".location" / ".orientation" suffixes name
// joints.
func fixedEntityOnModel(entity string, model ModelInfo) bool {
	if name, ok := strings.CutSuffix(entity, ".location"); ok {
		return model.HasJoint(name)
	}
	if name, ok := strings.CutSuffix(entity, ".orientation"); ok {
		return model.HasJoint(name)
	}
	return model.HasMarker(entity)
}

// All returns every enumerated parameter in sweep order.
func (s *Space) All() []Parameter {
	return append([]Parameter(nil), s.params...)
}

// Free returns the free parameters in sweep order.
func (s *Space) Free() []Parameter {
	out := make([]Parameter, 0, len(s.params))
	for _, p := range s.params {
		if s.states[p] == Free {
			out = append(out, p)
		}
	}
	return out
}

// StateOf returns the classification of a parameter.
func (s *Space) StateOf(p Parameter) State {
	return s.states[p]
}

// Len returns the total number of enumerated parameters.
func (s *Space) Len() int {
	return len(s.params)
}
