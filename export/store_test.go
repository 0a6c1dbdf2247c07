package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/shopcsv/catalog"
	"github.com/harborline/shopcsv/config"
	shoptest "github.com/harborline/shopcsv/internal/testing"
)

func TestSQLiteJobStoreRoundTrip(t *testing.T) {
	db := shoptest.CreateTestDB(t)
	store := NewSQLiteJobStore(db)

	missing, err := store.Get("absent")
	require.NoError(t, err)
	assert.Nil(t, missing, "missing job is nil, not an error")

	job, err := NewJob("job-1", config.ExportConfig{
		OutputDir:    "/tmp/out",
		Format:       "csv",
		BatchSize:    100,
		BaseFilename: "products",
	}, catalog.Scope{Status: "publish", IncludeImages: true})
	require.NoError(t, err)
	require.NoError(t, store.Upsert(job))

	loaded, err := store.Get("job-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, JobStatusQueued, loaded.Status)
	assert.Equal(t, "publish", loaded.Scope.Status)
	assert.True(t, loaded.Scope.IncludeImages)
	assert.Equal(t, 100, loaded.Settings.BatchSize)

	// Mutate through a full lifecycle step and write again
	job.Start()
	job.Advance(42, 7)
	job.WriterState = `{"file_index":1,"current_rows":7}`
	job.Files = []FileDescriptor{{Path: "/tmp/out/products.csv", Filename: "products.csv", Rows: 7, Size: 512}}
	require.NoError(t, store.Upsert(job))

	loaded, err = store.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, JobStatusRunning, loaded.Status)
	assert.Equal(t, int64(42), loaded.Cursor.LastProductID)
	assert.Equal(t, 1, loaded.ProductCount)
	assert.Equal(t, 7, loaded.RowCount)
	assert.Equal(t, `{"file_index":1,"current_rows":7}`, loaded.WriterState)
	require.Len(t, loaded.Files, 1)
	assert.Equal(t, "products.csv", loaded.Files[0].Filename)
	require.NotNil(t, loaded.StartedAt)
	assert.Nil(t, loaded.CompletedAt)
}

func TestSQLiteJobStoreList(t *testing.T) {
	db := shoptest.CreateTestDB(t)
	store := NewSQLiteJobStore(db)

	for i, status := range []JobStatus{JobStatusCompleted, JobStatusPaused, JobStatusPaused} {
		job, err := NewJob("job-"+string(rune('a'+i)), config.ExportConfig{}, catalog.Scope{})
		require.NoError(t, err)
		job.Status = status
		job.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		require.NoError(t, store.Upsert(job))
	}

	all, err := store.List(nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "job-c", all[0].ID, "newest first")

	paused := JobStatusPaused
	filtered, err := store.List(&paused, 10)
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	for _, job := range filtered {
		assert.Equal(t, JobStatusPaused, job.Status)
	}
}

func TestFailureStoreRoundTrip(t *testing.T) {
	db := shoptest.CreateTestDB(t)
	store := NewSQLiteFailureStore(db)

	require.NoError(t, store.Record(Failure{
		JobID:   "job-1",
		Code:    FailureCodeMissingHandle,
		Message: "product has no handle",
		Context: "product_id=5",
	}))
	require.NoError(t, store.Record(Failure{
		JobID:   "job-1",
		Code:    FailureCodeMissingTitle,
		Message: "product has no title",
	}))
	require.NoError(t, store.Record(Failure{
		JobID: "job-2",
		Code:  FailureCodeMissingHandle,
	}))

	failures, err := store.List("job-1")
	require.NoError(t, err)
	require.Len(t, failures, 2, "failure logs are keyed by job id")
	assert.Equal(t, FailureCodeMissingHandle, failures[0].Code)
	assert.Equal(t, "product_id=5", failures[0].Context)
	assert.False(t, failures[0].CreatedAt.IsZero())

	none, err := store.List("job-3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestJobLifecycle(t *testing.T) {
	job, err := NewJob("job-1", config.ExportConfig{}, catalog.Scope{})
	require.NoError(t, err)
	assert.Equal(t, JobStatusQueued, job.Status)

	job.Start()
	assert.Equal(t, JobStatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)
	firstStart := *job.StartedAt

	job.Pause("time limit reached")
	assert.Equal(t, JobStatusPaused, job.Status)
	assert.Equal(t, "time limit reached", job.Message)

	job.Resume()
	job.Start()
	assert.Equal(t, JobStatusRunning, job.Status)
	assert.Empty(t, job.Message)
	assert.Equal(t, firstStart, *job.StartedAt, "StartedAt survives pause/resume")

	job.Complete("done")
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.CompletedAt)
}

func TestJobProgress(t *testing.T) {
	t.Run("known total", func(t *testing.T) {
		job, err := NewJob("job-1", config.ExportConfig{}, catalog.Scope{})
		require.NoError(t, err)

		for i := 0; i < 50; i++ {
			job.Advance(int64(i+1), 1)
		}
		job.UpdateProgress(100)
		assert.Equal(t, 50, job.Progress)

		for i := 50; i < 100; i++ {
			job.Advance(int64(i+1), 1)
		}
		job.UpdateProgress(100)
		assert.Equal(t, 99, job.Progress, "capped until completion")

		job.Complete("done")
		assert.Equal(t, 100, job.Progress)
	})

	t.Run("unknown total stays monotonic and below 100", func(t *testing.T) {
		job, err := NewJob("job-1", config.ExportConfig{}, catalog.Scope{})
		require.NoError(t, err)

		last := 0
		for i := 0; i < 1000; i++ {
			job.Advance(int64(i+1), 1)
			job.UpdateProgress(0)
			assert.GreaterOrEqual(t, job.Progress, last)
			assert.LessOrEqual(t, job.Progress, 99)
			last = job.Progress
		}
		assert.Greater(t, last, 50, "progress still advances meaningfully")
	})
}

func TestIsValidStatus(t *testing.T) {
	for _, valid := range []string{"queued", "running", "paused", "completed", "failed"} {
		assert.True(t, IsValidStatus(valid), valid)
	}
	assert.False(t, IsValidStatus("cancelled"))
	assert.False(t, IsValidStatus(""))
}
