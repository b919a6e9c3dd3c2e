package paramspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/pkg/config"
)

type fakeModel struct {
	markers map[string]bool
	joints  map[string]bool
}

func (m *fakeModel) HasMarker(name string) bool { return m.markers[name] }
func (m *fakeModel) HasJoint(name string) bool  { return m.joints[name] }

func testModel() *fakeModel {
	return &fakeModel{
		markers: map[string]bool{"RASI": true, "LASI": true, "SACR": true},
		joints:  map[string]bool{"socket": true},
	}
}

func TestBuildOrderIsDeterministic(t *testing.T) {
	phase := config.Phase{
		FreeMarkers: []string{"RASI", "LASI"},
		FreeJoints:  []string{"socket"},
	}
	s, err := Build(phase, nil, testModel())
	require.NoError(t, err)

	var tokens []string
	for _, p := range s.All() {
		tokens = append(tokens, p.Token())
	}
	assert.Equal(t, []string{
		"LASI X", "LASI Y", "LASI Z",
		"RASI X", "RASI Y", "RASI Z",
		"socket.location X", "socket.location Y", "socket.location Z",
		"socket.orientation X", "socket.orientation Y", "socket.orientation Z",
	}, tokens)

	// A second build over the same inputs sweeps identically.
	s2, err := Build(phase, nil, testModel())
	require.NoError(t, err)
	assert.Equal(t, s.All(), s2.All())
}

func TestLockFlags(t *testing.T) {
	phase := config.Phase{
		FreeJoints: []string{"socket"},
		JointLocks: &config.JointLocks{
			TY:        true,
			Adduction: true,
			Rotation:  true,
		},
	}
	s, err := Build(phase, nil, testModel())
	require.NoError(t, err)

	assert.Equal(t, Locked, s.StateOf(Parameter{KindJointLocation, "socket", AxisY}))
	assert.Equal(t, Free, s.StateOf(Parameter{KindJointLocation, "socket", AxisX}))
	// adduction locks orientation X, rotation locks orientation Y,
	// flexion stays free
	assert.Equal(t, Locked, s.StateOf(Parameter{KindJointOrientation, "socket", AxisX}))
	assert.Equal(t, Locked, s.StateOf(Parameter{KindJointOrientation, "socket", AxisY}))
	assert.Equal(t, Free, s.StateOf(Parameter{KindJointOrientation, "socket", AxisZ}))

	free := s.Free()
	assert.Len(t, free, 3)
}

func TestFixedCoordinates(t *testing.T) {
	phase := config.Phase{FreeMarkers: []string{"RASI"}}
	s, err := Build(phase, []string{"RASI Z"}, testModel())
	require.NoError(t, err)

	assert.Equal(t, Fixed, s.StateOf(Parameter{KindMarker, "RASI", AxisZ}))
	assert.Equal(t, Free, s.StateOf(Parameter{KindMarker, "RASI", AxisX}))
	assert.Len(t, s.Free(), 2)
}

func TestFixedCoordinateJointToken(t *testing.T) {
	phase := config.Phase{
		FreeJoints: []string{"socket"},
		JointLocks: &config.JointLocks{},
	}
	s, err := Build(phase, []string{"socket.location Y"}, testModel())
	require.NoError(t, err)
	assert.Equal(t, Fixed, s.StateOf(Parameter{KindJointLocation, "socket", AxisY}))
}

func TestUnknownMarker(t *testing.T) {
	phase := config.Phase{FreeMarkers: []string{"NOPE"}}
	_, err := Build(phase, nil, testModel())
	require.Error(t, err)
	var unknown *UnknownEntityError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "marker", unknown.Kind)
	assert.Equal(t, "NOPE", unknown.Name)
}

func TestUnknownJoint(t *testing.T) {
	phase := config.Phase{FreeJoints: []string{"hip"}}
	_, err := Build(phase, nil, testModel())
	var unknown *UnknownEntityError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "joint", unknown.Kind)
}

func TestFixedTokenForOtherPhaseIsNoOp(t *testing.T) {
	// LASI exists on the model but is not freed in this phase; the global
	// token only bites in the phase that enumerates LASI.
	phase := config.Phase{FreeMarkers: []string{"RASI"}}
	s, err := Build(phase, []string{"LASI X"}, testModel())
	require.NoError(t, err)
	assert.Len(t, s.Free(), 3)

	later := config.Phase{FreeMarkers: []string{"LASI"}}
	s, err = Build(later, []string{"LASI X"}, testModel())
	require.NoError(t, err)
	assert.Equal(t, Fixed, s.StateOf(Parameter{KindMarker, "LASI", AxisX}))
	assert.Len(t, s.Free(), 2)
}

func TestFixedTokenUnknownEntity(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"unknown marker", "NOPE X"},
		{"unknown joint location", "ghost.location X"},
		{"unknown joint orientation", "ghost.orientation Y"},
		{"joint name without suffix", "socket X"},
		{"malformed token", "RASI"},
		{"bad axis", "RASI W"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(config.Phase{FreeMarkers: []string{"RASI"}}, []string{tt.token}, testModel())
			var unknown *UnknownEntityError
			require.ErrorAs(t, err, &unknown)
			assert.Equal(t, "fixed coordinate", unknown.Kind)
			assert.Equal(t, tt.token, unknown.Name)
		})
	}
}

func TestEmptyPhase(t *testing.T) {
	s, err := Build(config.Phase{}, nil, testModel())
	require.NoError(t, err)
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Free())
}

func TestAxisAndKindStrings(t *testing.T) {
	assert.Equal(t, "X", AxisX.String())
	assert.Equal(t, "marker", KindMarker.String())
	assert.Equal(t, "joint_orientation", KindJointOrientation.String())
	assert.True(t, KindJointOrientation.Angular())
	assert.False(t, KindJointLocation.Angular())

	ax, err := ParseAxis("z")
	require.NoError(t, err)
	assert.Equal(t, AxisZ, ax)
	_, err = ParseAxis("W")
	assert.Error(t, err)
}
