package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestCreateRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.False(t, run.StartedAt.IsZero())
}

func TestCompleteRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx)
	require.NoError(t, err)

	metrics := `{"total_projects": 12}`
	require.NoError(t, s.CompleteRun(ctx, run.ID, metrics, "reports/index.csv", "reports/report.html"))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, RunStatusCompleted, runs[0].Status)
	assert.Equal(t, metrics, runs[0].Metrics)
	assert.Equal(t, "reports/index.csv", runs[0].IndexPath)
	assert.Equal(t, "reports/report.html", runs[0].ReportPath)
	assert.False(t, runs[0].FinishedAt.IsZero())
	assert.Empty(t, runs[0].Error)
}

func TestFailRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx)
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, run.ID, "merge: missing input file"))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunStatusFailed, runs[0].Status)
	assert.Equal(t, "merge: missing input file", runs[0].Error)
	assert.False(t, runs[0].FinishedAt.IsZero())
}

func TestCompleteRun_UnknownID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.CompleteRun(ctx, "no-such-run", "{}", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	err = s.FailRun(ctx, "no-such-run", "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListRuns_LimitAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		run, err := s.CreateRun(ctx)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := s.ListRuns(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5, "non-positive limit falls back to the default")
	for _, r := range all {
		assert.Contains(t, ids, r.ID)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}
