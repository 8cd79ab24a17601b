package analyticsstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-collector/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return newWithClient(client, "index:")
}

func TestRecordRunStartAndComplete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	runID, err := store.RecordRunStart(ctx, types.SourceJira)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	runs, err := store.GetRecentRuns(ctx, types.SourceJira, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, types.RunRunning, runs[0].Status)

	err = store.RecordRunComplete(ctx, types.SourceJira, types.IndexingRun{
		ID:                 runID,
		Source:             types.SourceJira,
		StartedAt:          runs[0].StartedAt,
		CompletedAt:        time.Now().UTC().Format(time.RFC3339),
		Status:             types.RunCompleted,
		DocumentsProcessed: 5,
		DurationMs:         1200,
	})
	require.NoError(t, err)

	runs, err = store.GetRecentRuns(ctx, types.SourceJira, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1, "completion should replace the running entry in place, not append")
	assert.Equal(t, types.RunCompleted, runs[0].Status)

	stats, err := store.GetSystemStats(ctx, []types.Source{types.SourceJira}, 10)
	require.NoError(t, err)
	jiraStats := stats.PerSource[types.SourceJira]
	require.NotNil(t, jiraStats)
	assert.EqualValues(t, 1, jiraStats.TotalRuns)
	assert.EqualValues(t, 1, jiraStats.SuccessfulRuns)
	assert.EqualValues(t, 5, jiraStats.TotalDocumentsProcessed)
}

func TestRunHistoryBounded(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < maxRunsPerSource+20; i++ {
		_, err := store.RecordRunStart(ctx, types.SourceSlack)
		require.NoError(t, err)
	}

	runs, err := store.GetRecentRuns(ctx, types.SourceSlack, 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(runs), maxRunsPerSource)
}

func TestDailyStatsZeroFilled(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.RecordRunStart(ctx, types.SourceGmail)
	require.NoError(t, err)
	err = store.RecordRunComplete(ctx, types.SourceGmail, types.IndexingRun{
		ID:                 "x",
		Source:             types.SourceGmail,
		StartedAt:          time.Now().UTC().Format(time.RFC3339),
		Status:             types.RunCompleted,
		DocumentsProcessed: 3,
	})
	require.NoError(t, err)

	days, err := store.GetDailyStats(ctx, types.SourceGmail, 3)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.EqualValues(t, 3, days[2].Documents, "today's bucket should reflect the recorded run")
	assert.EqualValues(t, 0, days[0].Runs, "older days must be zero-filled")
}
