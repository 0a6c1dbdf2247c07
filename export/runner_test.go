package export

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harborline/shopcsv/catalog"
	"github.com/harborline/shopcsv/config"
	"github.com/harborline/shopcsv/errors"
)

type runnerFixture struct {
	cfg      *config.Config
	jobs     *MemoryJobStore
	failures *MemoryFailureStore
	leases   *MemoryLeaseStore
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	return &runnerFixture{
		cfg: &config.Config{
			Export: config.ExportConfig{
				OutputDir:        t.TempDir(),
				Format:           "csv",
				BatchSize:        100,
				FlushRows:        200,
				MaxFileSizeBytes: 14 << 20,
				BaseFilename:     "products",
			},
			Lock: config.LockConfig{TTLSeconds: 300},
		},
		jobs:     NewMemoryJobStore(),
		failures: NewMemoryFailureStore(),
		leases:   NewMemoryLeaseStore(),
	}
}

func (f *runnerFixture) runner(source catalog.Source) *Runner {
	return NewRunner(f.cfg, source, f.jobs, f.failures, f.leases, zap.NewNop().Sugar())
}

func simplePackage(id int64) catalog.Package {
	return catalog.Package{
		Product: catalog.Product{
			ID:      id,
			Handle:  fmt.Sprintf("prod-%03d", id),
			Title:   fmt.Sprintf("Product %d", id),
			Status:  "publish",
			Pricing: catalog.Pricing{Regular: "10.00"},
		},
	}
}

func simpleCatalog(n int) []catalog.Package {
	packages := make([]catalog.Package, 0, n)
	for i := 1; i <= n; i++ {
		packages = append(packages, simplePackage(int64(i)))
	}
	return packages
}

func TestRunnerExportsCatalog(t *testing.T) {
	f := newRunnerFixture(t)

	variable := catalog.Package{
		Product: catalog.Product{
			ID:         1,
			Handle:     "tee",
			Title:      "Tee",
			Status:     "publish",
			IsVariable: true,
			Attributes: []catalog.Attribute{
				{Name: "Color", Slug: "color", Variation: true},
			},
		},
		Variants: []catalog.Variant{
			{ID: 11, SKU: "TEE-RED", Pricing: catalog.Pricing{Regular: "25.00"}, Attributes: map[string]string{"color": "Red"}},
			{ID: 12, SKU: "TEE-BLUE", Pricing: catalog.Pricing{Regular: "25.00"}, Attributes: map[string]string{"color": "Blue"}},
		},
		Images: []catalog.Image{
			{Src: "https://cdn.example.com/tee.jpg", Featured: true},
			{Src: "https://cdn.example.com/tee-back.jpg"},
		},
	}
	packages := append([]catalog.Package{variable}, simplePackage(2), simplePackage(3))
	source := catalog.NewMemorySource(packages)

	job, err := f.runner(source).Run(context.Background(), RunOptions{
		JobID: "job-1",
		Scope: catalog.Scope{IncludeImages: true},
	})
	require.NoError(t, err)

	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, 3, job.ProductCount)
	// 2 variant rows + 2 image rows for the tee, 1 row per simple product
	assert.Equal(t, 6, job.RowCount)
	require.Len(t, job.Files, 1)
	assert.Equal(t, 6, job.Files[0].Rows)

	records := readCSVFile(t, filepath.Join(f.cfg.Export.OutputDir, "products.csv"))
	require.Len(t, records, 7, "header plus six data rows")
	assert.Equal(t, DefaultColumns(), records[0])
	assert.Equal(t, "tee", records[1][0])

	// Terminal state persisted
	stored, err := f.jobs.Get("job-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, JobStatusCompleted, stored.Status)

	// Lease released after the run
	acquired, err := f.leases.Acquire("export:job-1", 0)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestRunnerWatchdogPausesAndResumeCompletes(t *testing.T) {
	f := newRunnerFixture(t)
	f.cfg.Watchdog = config.WatchdogConfig{MemoryLimitPercent: 80}
	source := catalog.NewMemorySource(simpleCatalog(250))

	// Memory pressure appears once 100 products have been committed
	first := f.runner(source)
	first.newWatchdog = func(cfg config.WatchdogConfig) *Watchdog {
		w := NewWatchdog(cfg)
		checks := 0
		w.memoryUsed = func() (float64, error) {
			checks++
			if checks >= 100 {
				return 95, nil
			}
			return 10, nil
		}
		return w
	}

	job, err := first.Run(context.Background(), RunOptions{JobID: "job-1"})
	require.NoError(t, err, "a watchdog pause is not an error")
	assert.Equal(t, JobStatusPaused, job.Status)
	assert.Contains(t, job.Message, "memory ceiling")
	assert.Equal(t, 100, job.ProductCount)
	assert.Equal(t, int64(100), job.Cursor.LastProductID)
	assert.NotEmpty(t, job.WriterState)

	partial := readCSVFile(t, filepath.Join(f.cfg.Export.OutputDir, "products.csv"))
	assert.Len(t, partial, 101, "pause lands on a flushed product boundary")

	// Resume with the pressure gone
	f.cfg.Watchdog = config.WatchdogConfig{}
	job, err = f.runner(source).Run(context.Background(), RunOptions{JobID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, 250, job.ProductCount)
	assert.Equal(t, 250, job.RowCount)
	require.Len(t, job.Files, 1, "resume continues the same file set")

	records := readCSVFile(t, filepath.Join(f.cfg.Export.OutputDir, "products.csv"))
	require.Len(t, records, 251)

	// Every product appears exactly once, in id order
	seen := make(map[string]bool)
	for i, rec := range records[1:] {
		handle := rec[0]
		assert.False(t, seen[handle], "duplicate handle %s", handle)
		seen[handle] = true
		assert.Equal(t, fmt.Sprintf("prod-%03d", i+1), handle)
	}
}

func TestRunnerLeaseBlocksConcurrentRun(t *testing.T) {
	f := newRunnerFixture(t)
	source := catalog.NewMemorySource(simpleCatalog(3))

	acquired, err := f.leases.Acquire("export:job-1", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = f.runner(source).Run(context.Background(), RunOptions{JobID: "job-1"})
	require.Error(t, err)
	assert.True(t, errors.IsLocked(err))
}

func TestRunnerRecordsFailuresAndContinues(t *testing.T) {
	f := newRunnerFixture(t)
	broken := catalog.Package{
		Product: catalog.Product{ID: 2, Title: "No Handle", Status: "publish"},
	}
	source := catalog.NewMemorySource([]catalog.Package{
		simplePackage(1), broken, simplePackage(3),
	})

	job, err := f.runner(source).Run(context.Background(), RunOptions{JobID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.ProductCount, "the skipped product still advances the cursor")
	assert.Equal(t, 2, job.RowCount)

	failures, err := f.failures.List("job-1")
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, FailureCodeMissingHandle, failures[0].Code)

	records := readCSVFile(t, filepath.Join(f.cfg.Export.OutputDir, "products.csv"))
	require.Len(t, records, 3)
}

func TestRunnerRefusesFinishedJobWithoutForceRestart(t *testing.T) {
	f := newRunnerFixture(t)
	source := catalog.NewMemorySource(simpleCatalog(2))
	ctx := context.Background()

	job, err := f.runner(source).Run(ctx, RunOptions{JobID: "job-1"})
	require.NoError(t, err)
	require.Equal(t, JobStatusCompleted, job.Status)

	_, err = f.runner(source).Run(ctx, RunOptions{JobID: "job-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already completed")

	// Force restart starts over and overwrites the previous file set
	job, err = f.runner(source).Run(ctx, RunOptions{JobID: "job-1", ForceRestart: true})
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.ProductCount)

	records := readCSVFile(t, filepath.Join(f.cfg.Export.OutputDir, "products.csv"))
	require.Len(t, records, 3, "restart truncates instead of appending")
}

func TestRunnerScopeFilters(t *testing.T) {
	f := newRunnerFixture(t)
	draft := simplePackage(2)
	draft.Product.Status = "draft"
	source := catalog.NewMemorySource([]catalog.Package{
		simplePackage(1), draft, simplePackage(3),
	})

	job, err := f.runner(source).Run(context.Background(), RunOptions{
		JobID: "job-1",
		Scope: catalog.Scope{Status: "publish"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, job.ProductCount)

	records := readCSVFile(t, filepath.Join(f.cfg.Export.OutputDir, "products.csv"))
	require.Len(t, records, 3)
	assert.Equal(t, "prod-001", records[1][0])
	assert.Equal(t, "prod-003", records[2][0])
}

func TestRunnerEmptyScopeProducesHeaderOnlyFile(t *testing.T) {
	f := newRunnerFixture(t)
	source := catalog.NewMemorySource(nil)

	job, err := f.runner(source).Run(context.Background(), RunOptions{JobID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, 0, job.RowCount)
	require.Len(t, job.Files, 1)

	records := readCSVFile(t, filepath.Join(f.cfg.Export.OutputDir, "products.csv"))
	require.Len(t, records, 1)
	assert.Equal(t, DefaultColumns(), records[0])
}

func TestRunnerCancellationPausesAtBoundary(t *testing.T) {
	f := newRunnerFixture(t)
	source := catalog.NewMemorySource(simpleCatalog(5))

	ctx, cancel := context.WithCancel(context.Background())
	cancelling := &cancellingSource{Source: source, cancel: cancel}

	job, err := f.runner(cancelling).Run(ctx, RunOptions{JobID: "job-1"})
	require.NoError(t, err, "cancellation pauses rather than fails")
	assert.Equal(t, JobStatusPaused, job.Status)
	assert.Equal(t, "run cancelled", job.Message)
	assert.Equal(t, 1, job.ProductCount, "pause happens after the first committed product")

	// A later run with a live context finishes the export
	job, err = f.runner(source).Run(context.Background(), RunOptions{JobID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, 5, job.ProductCount)
}

func TestRunnerMergesManifestFiles(t *testing.T) {
	f := newRunnerFixture(t)
	f.cfg.Export.DownloadBaseURL = "https://files.example.com/exports"
	source := catalog.NewMemorySource(simpleCatalog(2))

	generator := &stubManifestGenerator{
		files: []FileDescriptor{{
			Path:     filepath.Join(f.cfg.Export.OutputDir, "collections.csv"),
			Filename: "collections.csv",
			Rows:     4,
		}},
	}
	runner := f.runner(source)
	runner.AddManifestGenerator(generator)

	job, err := runner.Run(context.Background(), RunOptions{JobID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, 1, generator.calls, "generators run once, at completion")
	assert.Equal(t, f.cfg.Export.OutputDir, generator.dir)

	// Manifest descriptors land after the writer's own files
	require.Len(t, job.Files, 2)
	assert.Equal(t, "products.csv", job.Files[0].Filename)
	assert.Equal(t, "collections.csv", job.Files[1].Filename)
	assert.Equal(t, "https://files.example.com/exports/products.csv", job.DownloadURL,
		"download points at the primary file, not the manifest")
}

func TestRunnerManifestFailureFailsJob(t *testing.T) {
	f := newRunnerFixture(t)
	source := catalog.NewMemorySource(simpleCatalog(2))

	generator := &stubManifestGenerator{err: errors.New("collections manifest unwritable")}
	runner := f.runner(source)
	runner.AddManifestGenerator(generator)

	job, err := runner.Run(context.Background(), RunOptions{JobID: "job-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest generation failed")
	assert.Contains(t, err.Error(), "collections manifest unwritable")

	require.NotNil(t, job)
	assert.Equal(t, JobStatusFailed, job.Status)

	stored, getErr := f.jobs.Get("job-1")
	require.NoError(t, getErr)
	require.NotNil(t, stored)
	assert.Equal(t, JobStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "collections manifest unwritable")
}

// stubManifestGenerator records its invocation and serves canned results
type stubManifestGenerator struct {
	files []FileDescriptor
	err   error
	calls int
	dir   string
}

func (g *stubManifestGenerator) Generate(ctx context.Context, scope catalog.Scope, outputDir string) ([]FileDescriptor, error) {
	g.calls++
	g.dir = outputDir
	if g.err != nil {
		return nil, g.err
	}
	return g.files, nil
}

// cancellingSource cancels the run's context as soon as the first page has
// been served, simulating an interrupt arriving mid-page.
type cancellingSource struct {
	catalog.Source
	cancel    context.CancelFunc
	cancelled bool
}

func (s *cancellingSource) Page(ctx context.Context, scope catalog.Scope, cursor catalog.Cursor, batchSize int) ([]catalog.Package, error) {
	page, err := s.Source.Page(ctx, scope, cursor, batchSize)
	if !s.cancelled {
		s.cancelled = true
		s.cancel()
	}
	return page, err
}
