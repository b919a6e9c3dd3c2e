package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRun(id string, startedAt time.Time) Run {
	return Run{
		ID:          id,
		Subject:     "S01",
		SubjectMass: 71.3,
		StartedAt:   startedAt,
		Duration:    90 * time.Second,
		Phases:      2,
		Passes:      14,
		Converged:   true,
		FinalCost:   0.0042,
		OutputModel: "out/S01_calibrated.osim",
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	want := sampleRun("run-1", time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))
	require.NoError(t, s.SaveRun(ctx, want))

	got, ok, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestGetRunMissing(t *testing.T) {
	s := openStore(t)

	_, ok, err := s.GetRun(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveRunUpsert(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	run := sampleRun("run-1", time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))
	require.NoError(t, s.SaveRun(ctx, run))

	run.Passes = 20
	run.Converged = false
	require.NoError(t, s.SaveRun(ctx, run))

	got, ok, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 20, got.Passes)
	assert.False(t, got.Converged)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestListRunsOrderAndLimit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := sampleRun(string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, s.SaveRun(ctx, run))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "a", runs[2].ID)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
}

func TestUninitializedStore(t *testing.T) {
	s := NewStore("unused.db")
	err := s.SaveRun(context.Background(), Run{ID: "x"})
	assert.Error(t, err)
}

func TestInitRequiresPath(t *testing.T) {
	s := NewStore("")
	assert.Error(t, s.Init(context.Background()))
}
