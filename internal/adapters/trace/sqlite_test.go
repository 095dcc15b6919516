package trace

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSQLiteRecorder_FullRunTrail(t *testing.T) {
	r := newRecorder(t)

	require.NoError(t, r.BeginRun("run-1", "EV demand outlook"))
	require.NoError(t, r.RecordStage("run-1", core.StageRecord{
		From: core.StageInit, To: core.StageAnalysis, Reason: "run start", At: time.Now(),
	}))
	require.NoError(t, r.RecordDispatch("run-1", core.ProducerMarket, core.Slot{
		Status: core.SlotDone, Dispatches: 1,
	}))
	require.NoError(t, r.RecordGate("run-1", core.GateResult{
		Gate: core.GateCrossLayer, Verdict: core.VerdictPass, Pass: 1,
	}))
	require.NoError(t, r.EndRun("run-1", core.StageFinalize, "all gates passed"))

	runs, err := r.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, string(core.StageFinalize), runs[0].FinalStage)
	assert.True(t, runs[0].EndedAt.Valid)

	stages, err := r.Stages("run-1")
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Equal(t, string(core.StageAnalysis), stages[0].To)

	dispatches, err := r.Dispatches("run-1")
	require.NoError(t, err)
	require.Len(t, dispatches, 1)
	assert.Equal(t, "market", dispatches[0].Producer)
	assert.Equal(t, 1, dispatches[0].Attempt)

	gates, err := r.Gates("run-1")
	require.NoError(t, err)
	require.Len(t, gates, 1)
	assert.Equal(t, "cross_layer", gates[0].Gate)
	assert.Equal(t, string(core.VerdictPass), gates[0].Verdict)
}

func TestSQLiteRecorder_FailedDispatchKeepsError(t *testing.T) {
	r := newRecorder(t)
	require.NoError(t, r.BeginRun("run-2", "query"))
	require.NoError(t, r.RecordDispatch("run-2", core.ProducerSupply, core.Slot{
		Status:        core.SlotFailed,
		Dispatches:    2,
		LastError:     "feed unavailable",
		ErrorCategory: core.ErrCatExecution,
	}))

	dispatches, err := r.Dispatches("run-2")
	require.NoError(t, err)
	require.Len(t, dispatches, 1)
	assert.Equal(t, "feed unavailable", dispatches[0].Error)
	assert.Equal(t, string(core.ErrCatExecution), dispatches[0].ErrorCategory)
}

func TestSQLiteRecorder_ReopenSeesExistingTrail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.db")

	r, err := NewSQLiteRecorder(path)
	require.NoError(t, err)
	require.NoError(t, r.BeginRun("run-3", "query"))
	require.NoError(t, r.Close())

	r2, err := NewSQLiteRecorder(path)
	require.NoError(t, err)
	defer r2.Close()

	runs, err := r2.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-3", runs[0].ID)
}

func TestSQLiteRecorder_EmptyDatabase(t *testing.T) {
	r := newRecorder(t)
	runs, err := r.ListRuns()
	require.NoError(t, err)
	assert.Empty(t, runs)
}
