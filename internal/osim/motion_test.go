package osim

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMotion() *Motion {
	return &Motion{
		Name:    "walk_final",
		Columns: []string{"hip_flexion", "socket_flexion", "socket_piston"},
		Rows: []MotionRow{
			{Time: 0.0, Values: []float64{0.1, -0.05, 0.002}},
			{Time: 0.01, Values: []float64{0.125, -0.0375, 0.0015}},
		},
	}
}

func TestMotionWriteGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, testMotion().Write(&buf))

	g := goldie.New(t)
	g.Assert(t, "walk_final", buf.Bytes())
}

func TestMotionSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.mot")
	require.NoError(t, testMotion().Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "nRows=2")
	assert.Contains(t, string(data), "nColumns=4")
	assert.Contains(t, string(data), "inDegrees=no")
	assert.Contains(t, string(data), "time\thip_flexion\tsocket_flexion\tsocket_piston")
}

func TestMotionRowMismatch(t *testing.T) {
	m := testMotion()
	m.Rows[1].Values = m.Rows[1].Values[:2]
	var buf bytes.Buffer
	err := m.Write(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "motion row 1")
}

func TestMotionInDegrees(t *testing.T) {
	m := testMotion()
	m.InDegrees = true
	var buf bytes.Buffer
	require.NoError(t, m.Write(&buf))
	assert.Contains(t, buf.String(), "inDegrees=yes")
}
