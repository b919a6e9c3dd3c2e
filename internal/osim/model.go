// Package osim owns the on-disk musculoskeletal model and motion artifacts:
// the XML model format, named access to marker offsets and joint placement,
// and the .trc / .mot trajectory and motion codecs.
package osim

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Vec3 is a 3-component vector serialized as a space-separated triple,
// matching the model file's "x y z" element text.
type Vec3 [3]float64

// MarshalXML encodes the vector as "x y z" element text.
func (v Vec3) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	s := fmt.Sprintf("%.8f %.8f %.8f", v[0], v[1], v[2])
	return e.EncodeElement(s, start)
}

// UnmarshalXML decodes "x y z" element text.
func (v *Vec3) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return fmt.Errorf("invalid vector %q: want three components", s)
	}
	for i, f := range fields {
		val, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return fmt.Errorf("invalid vector component %q: %w", f, err)
		}
		v[i] = val
	}
	return nil
}

// Model is the serialized musculoskeletal model: a tree of bodies connected
// by joints, with skin-surface markers attached to bodies.
type Model struct {
	XMLName xml.Name `xml:"Model"`
	Name    string   `xml:"name,attr"`
	Bodies  []Body   `xml:"BodySet>Body"`
	Joints  []Joint  `xml:"JointSet>Joint"`
	Markers []Marker `xml:"MarkerSet>Marker"`
}

// Body is a rigid segment.
type Body struct {
	Name string  `xml:"name,attr"`
	Mass float64 `xml:"mass"`
}

// Joint connects a child body to its parent. Its placement in the parent
// frame (location plus XYZ-Euler orientation) is itself a calibration
// target for the prosthetic socket joint.
type Joint struct {
	Name        string       `xml:"name,attr"`
	Parent      string       `xml:"parent_body"`
	Child       string       `xml:"child_body"`
	Location    Vec3         `xml:"location_in_parent"`
	Orientation Vec3         `xml:"orientation_in_parent"`
	Coordinates []Coordinate `xml:"CoordinateSet>Coordinate"`
}

// Coordinate is one degree of freedom of a joint, solved for by IK.
type Coordinate struct {
	Name         string  `xml:"name,attr"`
	MotionType   string  `xml:"motion_type"` // rotational | translational
	Axis         string  `xml:"axis"`        // X | Y | Z
	DefaultValue float64 `xml:"default_value"`
	RangeMin     float64 `xml:"range_min"`
	RangeMax     float64 `xml:"range_max"`
	Locked       bool    `xml:"locked"`
}

// Rotational reports whether the coordinate is an angle (radians) rather
// than a translation (meters).
func (c *Coordinate) Rotational() bool {
	return c.MotionType != "translational"
}

// Marker is a labeled point with a local offset in its parent body frame.
type Marker struct {
	Name     string `xml:"name,attr"`
	Body     string `xml:"body"`
	Location Vec3   `xml:"location"`
	Fixed    bool   `xml:"fixed"`
}

// Load reads and validates a model file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file %s: %w", path, err)
	}
	m, err := ParseModel(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model file %s: %w", path, err)
	}
	return m, nil
}

// ParseModel parses and validates a model from XML bytes.
func ParseModel(data []byte) (*Model, error) {
	var m Model
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model xml: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the model to disk, overwriting any existing file.
func (m *Model) Save(path string) error {
	data, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	out := append([]byte(xml.Header), data...)
	out = append(out, '\n')
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write model file %s: %w", path, err)
	}
	return nil
}

func (m *Model) validate() error {
	if len(m.Bodies) == 0 {
		return fmt.Errorf("model must define at least one body")
	}
	bodies := make(map[string]bool)
	for _, b := range m.Bodies {
		if b.Name == "" {
			return fmt.Errorf("body name cannot be empty")
		}
		if bodies[b.Name] {
			return fmt.Errorf("duplicate body name: %s", b.Name)
		}
		bodies[b.Name] = true
	}

	childOf := make(map[string]string) // child body -> joint
	jointNames := make(map[string]bool)
	coordNames := make(map[string]bool)
	for _, j := range m.Joints {
		if j.Name == "" {
			return fmt.Errorf("joint name cannot be empty")
		}
		if jointNames[j.Name] {
			return fmt.Errorf("duplicate joint name: %s", j.Name)
		}
		jointNames[j.Name] = true
		if !bodies[j.Parent] {
			return fmt.Errorf("joint %s references unknown parent body: %s", j.Name, j.Parent)
		}
		if !bodies[j.Child] {
			return fmt.Errorf("joint %s references unknown child body: %s", j.Name, j.Child)
		}
		if prev, ok := childOf[j.Child]; ok {
			return fmt.Errorf("body %s is the child of both %s and %s", j.Child, prev, j.Name)
		}
		childOf[j.Child] = j.Name
		for _, c := range j.Coordinates {
			if c.Name == "" {
				return fmt.Errorf("joint %s: coordinate name cannot be empty", j.Name)
			}
			if coordNames[c.Name] {
				return fmt.Errorf("duplicate coordinate name: %s", c.Name)
			}
			coordNames[c.Name] = true
			switch c.Axis {
			case "X", "Y", "Z":
			default:
				return fmt.Errorf("coordinate %s: axis must be X, Y or Z, got %q", c.Name, c.Axis)
			}
			if c.MotionType != "rotational" && c.MotionType != "translational" {
				return fmt.Errorf("coordinate %s: motion_type must be rotational or translational, got %q", c.Name, c.MotionType)
			}
			if c.RangeMin > c.RangeMax {
				return fmt.Errorf("coordinate %s: range_min exceeds range_max", c.Name)
			}
		}
	}

	roots := 0
	for _, b := range m.Bodies {
		if _, ok := childOf[b.Name]; !ok {
			roots++
		}
	}
	if roots != 1 {
		return fmt.Errorf("model must have exactly one root body, found %d", roots)
	}

	markerNames := make(map[string]bool)
	for _, mk := range m.Markers {
		if mk.Name == "" {
			return fmt.Errorf("marker name cannot be empty")
		}
		if markerNames[mk.Name] {
			return fmt.Errorf("duplicate marker name: %s", mk.Name)
		}
		markerNames[mk.Name] = true
		if !bodies[mk.Body] {
			return fmt.Errorf("marker %s references unknown body: %s", mk.Name, mk.Body)
		}
	}
	return nil
}

// Root returns the name of the root (ground) body.
func (m *Model) Root() string {
	child := make(map[string]bool)
	for _, j := range m.Joints {
		child[j.Child] = true
	}
	for _, b := range m.Bodies {
		if !child[b.Name] {
			return b.Name
		}
	}
	return ""
}

// Coordinates returns pointers to every coordinate in model order
// (joint order, then declaration order within the joint).
func (m *Model) Coordinates() []*Coordinate {
	var out []*Coordinate
	for i := range m.Joints {
		for k := range m.Joints[i].Coordinates {
			out = append(out, &m.Joints[i].Coordinates[k])
		}
	}
	return out
}

// UnlockedCoordinates returns the coordinates IK may adjust, in model order.
func (m *Model) UnlockedCoordinates() []*Coordinate {
	var out []*Coordinate
	for _, c := range m.Coordinates() {
		if !c.Locked {
			out = append(out, c)
		}
	}
	return out
}
