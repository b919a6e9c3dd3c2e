package osim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerPositionsDefaultPose(t *testing.T) {
	m := loadTestModel(t)
	pos, err := m.MarkerPositions(m.DefaultPose())
	require.NoError(t, err)

	// SACR sits on the ground body, so its global position is its offset.
	sacr := pos["SACR"]
	assert.InDelta(t, 0.0, sacr[0], 1e-12)
	assert.InDelta(t, 0.95, sacr[1], 1e-12)
	assert.InDelta(t, 0.10, sacr[2], 1e-12)

	// THI: hip at (0, 0.9, 0), zero rotation, offset (0.05, -0.2, 0).
	thi := pos["THI"]
	assert.InDelta(t, 0.05, thi[0], 1e-12)
	assert.InDelta(t, 0.70, thi[1], 1e-12)

	// SHA chains through hip and socket: 0.9 - 0.4 - 0.15.
	sha := pos["SHA"]
	assert.InDelta(t, 0.04, sha[0], 1e-12)
	assert.InDelta(t, 0.35, sha[1], 1e-12)
}

func TestMarkerPositionsFlexed(t *testing.T) {
	m := loadTestModel(t)
	pose := m.DefaultPose()
	pose["hip_flexion"] = math.Pi / 2

	pos, err := m.MarkerPositions(pose)
	require.NoError(t, err)

	// Rotating the thigh +90 degrees about Z maps the local offset
	// (0.05, -0.2) to (0.2, 0.05) in the parent frame.
	thi := pos["THI"]
	assert.InDelta(t, 0.20, thi[0], 1e-9)
	assert.InDelta(t, 0.95, thi[1], 1e-9)
	assert.InDelta(t, 0.0, thi[2], 1e-9)
}

func TestMarkerPositionsPistoning(t *testing.T) {
	m := loadTestModel(t)
	pose := m.DefaultPose()
	pose["socket_piston"] = -0.02

	pos, err := m.MarkerPositions(pose)
	require.NoError(t, err)

	// The socket's translational Y coordinate slides the shank axially.
	sha := pos["SHA"]
	assert.InDelta(t, 0.33, sha[1], 1e-9)
}

func TestMarkerPositionsUnknownCoordinateUsesDefault(t *testing.T) {
	m := loadTestModel(t)
	pos, err := m.MarkerPositions(Pose{"made_up": 1.0})
	require.NoError(t, err)
	assert.InDelta(t, 0.70, pos["THI"][1], 1e-12)
}

func TestDefaultPose(t *testing.T) {
	m := loadTestModel(t)
	pose := m.DefaultPose()
	assert.Len(t, pose, 3)
	assert.InDelta(t, 0.0, pose["hip_flexion"], 1e-12)
}
