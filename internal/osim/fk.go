package osim

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Pose maps coordinate names to values (radians for rotational coordinates,
// meters for translational ones). Missing coordinates take their default.
type Pose map[string]float64

// DefaultPose returns the model's default pose.
func (m *Model) DefaultPose() Pose {
	pose := make(Pose)
	for _, c := range m.Coordinates() {
		pose[c.Name] = c.DefaultValue
	}
	return pose
}

// MarkerPositions computes the global position of every marker for a pose
// by walking the body tree from the root.
func (m *Model) MarkerPositions(pose Pose) (map[string]mgl64.Vec3, error) {
	transforms, err := m.bodyTransforms(pose)
	if err != nil {
		return nil, err
	}
	out := make(map[string]mgl64.Vec3, len(m.Markers))
	for _, mk := range m.Markers {
		t, ok := transforms[mk.Body]
		if !ok {
			return nil, fmt.Errorf("marker %s: body %s is not reachable from the root", mk.Name, mk.Body)
		}
		local := mgl64.Vec4{mk.Location[0], mk.Location[1], mk.Location[2], 1}
		out[mk.Name] = t.Mul4x1(local).Vec3()
	}
	return out, nil
}

// bodyTransforms computes the root-to-body transform of every body.
func (m *Model) bodyTransforms(pose Pose) (map[string]mgl64.Mat4, error) {
	byParent := make(map[string][]*Joint)
	for i := range m.Joints {
		j := &m.Joints[i]
		byParent[j.Parent] = append(byParent[j.Parent], j)
	}

	root := m.Root()
	if root == "" {
		return nil, fmt.Errorf("model has no root body")
	}
	transforms := map[string]mgl64.Mat4{root: mgl64.Ident4()}

	// The tree is validated at load time (single parent per body), so a
	// simple stack walk terminates.
	stack := []string{root}
	for len(stack) > 0 {
		parent := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, j := range byParent[parent] {
			t := transforms[parent].
				Mul4(mgl64.Translate3D(j.Location[0], j.Location[1], j.Location[2])).
				Mul4(eulerXYZ(j.Orientation))
			for i := range j.Coordinates {
				ct, err := coordinateTransform(&j.Coordinates[i], pose)
				if err != nil {
					return nil, err
				}
				t = t.Mul4(ct)
			}
			transforms[j.Child] = t
			stack = append(stack, j.Child)
		}
	}
	return transforms, nil
}

// eulerXYZ builds a body-fixed X-Y-Z rotation from Euler angles.
func eulerXYZ(o Vec3) mgl64.Mat4 {
	return mgl64.HomogRotate3DX(o[0]).
		Mul4(mgl64.HomogRotate3DY(o[1])).
		Mul4(mgl64.HomogRotate3DZ(o[2]))
}

func coordinateTransform(c *Coordinate, pose Pose) (mgl64.Mat4, error) {
	q, ok := pose[c.Name]
	if !ok {
		q = c.DefaultValue
	}
	if c.Rotational() {
		switch c.Axis {
		case "X":
			return mgl64.HomogRotate3DX(q), nil
		case "Y":
			return mgl64.HomogRotate3DY(q), nil
		case "Z":
			return mgl64.HomogRotate3DZ(q), nil
		}
	} else {
		switch c.Axis {
		case "X":
			return mgl64.Translate3D(q, 0, 0), nil
		case "Y":
			return mgl64.Translate3D(0, q, 0), nil
		case "Z":
			return mgl64.Translate3D(0, 0, q), nil
		}
	}
	return mgl64.Ident4(), fmt.Errorf("coordinate %s: invalid axis %q", c.Name, c.Axis)
}
