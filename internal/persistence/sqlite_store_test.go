package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"captiondesk/internal/domain"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_JobsRoundTrip(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	ctx := context.Background()

	progress := 100
	job := domain.Job{
		ID:          "job-1",
		Filename:    "talk.mp4",
		DisplayName: "talk",
		Status:      domain.JobStatusCompleted,
		Progress:    &progress,
		Language:    "en",
		MediaPath:   "/media/talk.mp4",
		StartTime:   time.Now().UTC().Truncate(time.Millisecond),
		Segments:    []domain.Segment{{ID: 1, Start: 0, End: 1.5, Text: "hello"}},
	}
	require.NoError(t, store.SaveJob(ctx, job))

	job.Segments = append(job.Segments, domain.Segment{ID: 2, Start: 1.5, End: 3, Text: "again"})
	require.NoError(t, store.SaveJob(ctx, job))

	all, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, job.ID, all[0].ID)
	assert.Equal(t, job.Status, all[0].Status)
	assert.Len(t, all[0].Segments, 2)
	require.NotNil(t, all[0].Progress)
	assert.Equal(t, 100, *all[0].Progress)
	assert.True(t, job.StartTime.Equal(all[0].StartTime))

	sums, err := store.ListSummaries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, 2, sums[0].SegmentCount)
	assert.Equal(t, domain.JobStatusCompleted, sums[0].Status)
}

func TestSQLiteStore_DeleteAndOrder(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.SaveJob(ctx, domain.Job{ID: "b", Status: domain.JobStatusFailed, StartTime: base.Add(time.Minute)}))
	require.NoError(t, store.SaveJob(ctx, domain.Job{ID: "a", Status: domain.JobStatusQueued, StartTime: base}))
	require.NoError(t, store.SaveJob(ctx, domain.Job{ID: "c", Status: domain.JobStatusImported, StartTime: base.Add(2 * time.Minute)}))

	require.NoError(t, store.DeleteJob(ctx, "c"))
	require.NoError(t, store.DeleteJob(ctx, "missing"))

	all, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "jobs.db")

	first, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.SaveJob(context.Background(), domain.Job{ID: "keep", Status: domain.JobStatusCompleted}))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	all, err := second.LoadJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "keep", all[0].ID)
}

func TestSQLiteStore_RequiresID(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	assert.Error(t, store.SaveJob(context.Background(), domain.Job{}))
	_, err := NewSQLiteStore("  ")
	assert.Error(t, err)
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, 1, migrationVersion("001_init.sql"))
	assert.Equal(t, 12, migrationVersion("12"))
	assert.Equal(t, 0, migrationVersion("init.sql"))
}
