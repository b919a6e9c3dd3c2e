// Package paramspace defines the set of adjustable model quantities for a
// calibration run: which scalars exist, their deterministic sweep order, and
// whether each one is free, fixed for this run, or locked outright.
package paramspace

import "fmt"

// EntityKind identifies what kind of model quantity a parameter adjusts.
type EntityKind int

const (
	// KindMarker is a marker's local offset in its parent body frame.
	KindMarker EntityKind = iota
	// KindJointLocation is a joint's location in its parent body frame.
	KindJointLocation
	// KindJointOrientation is a joint's XYZ-Euler orientation in its
	// parent body frame.
	KindJointOrientation
)

func (k EntityKind) String() string {
	switch k {
	case KindMarker:
		return "marker"
	case KindJointLocation:
		return "joint_location"
	case KindJointOrientation:
		return "joint_orientation"
	default:
		return fmt.Sprintf("EntityKind(%d)", int(k))
	}
}

// Angular reports whether the parameter kind is measured in radians rather
// than meters.
func (k EntityKind) Angular() bool {
	return k == KindJointOrientation
}

// Axis is one component of a 3D quantity.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// ParseAxis parses "X", "Y" or "Z" (case-insensitive).
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "X", "x":
		return AxisX, nil
	case "Y", "y":
		return AxisY, nil
	case "Z", "z":
		return AxisZ, nil
	default:
		return 0, fmt.Errorf("invalid axis %q: must be X, Y or Z", s)
	}
}

// Axes lists the three axes in sweep order.
var Axes = []Axis{AxisX, AxisY, AxisZ}

// State classifies a parameter for one run.
type State int

const (
	// Free parameters are eligible for perturbation.
	Free State = iota
	// Fixed parameters are excluded from the free set for this run; their
	// value is frozen at its starting value.
	Fixed
	// Locked parameters are never touched (per-axis joint lock flags).
	Locked
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Fixed:
		return "fixed"
	case Locked:
		return "locked"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Parameter identifies one adjustable scalar on the model.
type Parameter struct {
	Kind   EntityKind
	Entity string // marker or joint name
	Axis   Axis
}

// Token returns the canonical "<entity> <axis>" form used in configuration
// fixed-coordinate lists and in the audit log. Joint parameters carry a
// ".location" / ".orientation" suffix on the entity name.
func (p Parameter) Token() string {
	return p.entityToken() + " " + p.Axis.String()
}

func (p Parameter) entityToken() string {
	switch p.Kind {
	case KindJointLocation:
		return p.Entity + ".location"
	case KindJointOrientation:
		return p.Entity + ".orientation"
	default:
		return p.Entity
	}
}

func (p Parameter) String() string {
	return p.Token()
}
