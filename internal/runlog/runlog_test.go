package runlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndListRuns(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, s.RecordRun(ctx, Run{
			RunID:       id,
			TaskID:      "alpha/t",
			Project:     "alpha",
			Tier:        "opus",
			ExitCode:    i,
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			CompletedAt: base.Add(time.Duration(i)*time.Minute + 30*time.Second),
		}))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].RunID, "newest first")
	assert.Equal(t, "r2", runs[1].RunID)
	assert.Equal(t, 2, runs[0].ExitCode)
	assert.Equal(t, base.Add(2*time.Minute), runs[0].StartedAt)
}

func TestRunsForTask(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.RecordRun(ctx, Run{
		RunID: "a", TaskID: "alpha/x", Project: "alpha", Tier: "opus",
		StartedAt: now, CompletedAt: now,
	}))
	require.NoError(t, s.RecordRun(ctx, Run{
		RunID: "b", TaskID: "alpha/y", Project: "alpha", Tier: "local",
		StartedAt: now, CompletedAt: now,
	}))

	runs, err := s.RunsForTask(ctx, "alpha/x")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "a", runs[0].RunID)
}

func TestRecordEvent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordEvent(ctx, Event{
		RunID: "r1", Type: "dispatched", Detail: "token_estimate=1234",
	}))
	require.NoError(t, s.RecordEvent(ctx, Event{RunID: "r1", Type: "finished"}))
}

func TestOpenIsIdempotent(t *testing.T) {
	ws := t.TempDir()
	s1, err := Open(ws)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(ws)
	require.NoError(t, err)
	defer s2.Close()

	_, err = s2.ListRuns(context.Background(), 10)
	assert.NoError(t, err)
}
