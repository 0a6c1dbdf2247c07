package export

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/harborline/shopcsv/catalog"
	"github.com/harborline/shopcsv/config"
	"github.com/harborline/shopcsv/errors"
)

// sourceCounter is implemented by sources that can cheaply count the scope,
// enabling exact progress figures.
type sourceCounter interface {
	Count(ctx context.Context, scope catalog.Scope) (int, error)
}

// Runner drives one export job end-to-end: lease, state machine, the
// source → flattener → row builder → writer pipeline, watchdog, and
// persistence. One runner invocation processes one job id within a single
// execution context; overlap protection across processes comes from the
// lease store.
type Runner struct {
	cfg       *config.Config
	source    catalog.Source
	jobs      JobStore
	failures  FailureStore
	leases    LeaseStore
	manifests []ManifestGenerator
	log       *zap.SugaredLogger

	// overridable in tests
	newWatchdog func(config.WatchdogConfig) *Watchdog
}

// NewRunner creates a runner over the given collaborators
func NewRunner(cfg *config.Config, source catalog.Source, jobs JobStore, failures FailureStore, leases LeaseStore, log *zap.SugaredLogger) *Runner {
	return &Runner{
		cfg:         cfg,
		source:      source,
		jobs:        jobs,
		failures:    failures,
		leases:      leases,
		log:         log,
		newWatchdog: NewWatchdog,
	}
}

// AddManifestGenerator registers a generator invoked at completion
func (r *Runner) AddManifestGenerator(g ManifestGenerator) {
	r.manifests = append(r.manifests, g)
}

// RunOptions parametrize one run
type RunOptions struct {
	JobID string
	// Scope applies only when the run creates a new job; resumed jobs keep
	// their recorded scope snapshot.
	Scope catalog.Scope
	// ForceRestart discards any existing record for this job id and starts
	// over from the beginning.
	ForceRestart bool
}

// Run executes or resumes the job until it completes, pauses, or fails.
// A paused outcome is returned as a nil error: the job record carries the
// reason and a later Run with the same id continues from the cursor.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Job, error) {
	if opts.JobID == "" {
		return nil, errors.New("job id cannot be empty")
	}

	leaseKey := "export:" + opts.JobID
	ttl := time.Duration(r.cfg.Lock.TTLSeconds) * time.Second
	acquired, err := r.leases.Acquire(leaseKey, ttl)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire job lease")
	}
	if !acquired {
		return nil, errors.Wrapf(errors.ErrLocked, "job %s", opts.JobID)
	}
	defer func() {
		if err := r.leases.Release(leaseKey); err != nil {
			r.log.Warnw("Failed to release job lease", "job_id", opts.JobID, "error", err)
		}
	}()

	job, err := r.prepareJob(opts)
	if err != nil {
		return nil, err
	}

	writer, err := r.prepareWriter(job)
	if err != nil {
		// Writer must be constructible and standing-error-free before
		// iteration begins
		return r.failJob(job, nil, err)
	}

	resuming := job.ProductCount > 0
	job.Start()
	if err := r.jobs.Upsert(job); err != nil {
		return nil, errors.Wrap(err, "failed to persist job start")
	}

	r.log.Infow("Export run starting",
		"job_id", job.ID,
		"resuming", resuming,
		"cursor_product_id", job.Cursor.LastProductID,
		"product_count", job.ProductCount,
	)

	watchdog := r.newWatchdog(r.cfg.Watchdog)
	watchdog.Start()

	total := r.countScope(ctx, job.Scope)

	paused, err := r.iterate(ctx, job, writer, watchdog, total)
	if err != nil {
		return r.failJob(job, writer, err)
	}
	if paused {
		return job, nil
	}

	return r.complete(ctx, job, writer)
}

// prepareJob loads the existing record or seeds a fresh one
func (r *Runner) prepareJob(opts RunOptions) (*Job, error) {
	job, err := r.jobs.Get(opts.JobID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load job record")
	}

	if job == nil || opts.ForceRestart {
		fresh, err := NewJob(opts.JobID, r.cfg.Export, opts.Scope)
		if err != nil {
			return nil, err
		}
		return fresh, nil
	}

	switch job.Status {
	case JobStatusCompleted:
		return nil, errors.Newf("job %s already completed; use force restart to export again", job.ID)
	case JobStatusFailed:
		return nil, errors.Newf("job %s previously failed: %s; use force restart to try again", job.ID, job.Error)
	case JobStatusPaused:
		job.Resume()
	}
	return job, nil
}

// prepareWriter builds the writer, restoring prior state when resuming
func (r *Runner) prepareWriter(job *Job) (*Writer, error) {
	wcfg := WriterConfig{
		Dir:          job.Settings.OutputDir,
		BaseFilename: job.Settings.BaseFilename,
		Extension:    job.Settings.Extension(),
		Delimiter:    job.Settings.Delimiter(),
		Columns:      DefaultColumns(),
		FlushRows:    job.Settings.FlushRows,
		MaxFileSize:  job.Settings.MaxFileSizeBytes,
		DownloadBase: job.Settings.DownloadBaseURL,
	}

	var writer *Writer
	if job.WriterState != "" {
		state, err := UnmarshalWriterState(job.WriterState)
		if err != nil {
			return nil, err
		}
		writer = NewWriterFromState(wcfg, state, r.log)
	} else {
		writer = NewWriter(wcfg, r.log)
	}

	if err := writer.Check(); err != nil {
		return nil, err
	}
	return writer, nil
}

// iterate drives pages of the source through the pipeline. Returns
// paused=true when the watchdog tripped or the context was cancelled;
// both are cooperative suspensions, not errors.
func (r *Runner) iterate(ctx context.Context, job *Job, writer *Writer, watchdog *Watchdog, total int) (paused bool, err error) {
	builder := NewRowBuilder()
	batchSize := job.Settings.BatchSize

	for {
		page, err := r.source.Page(ctx, job.Scope, job.Cursor, batchSize)
		if err != nil {
			return false, errors.Wrap(err, "product source failed")
		}

		for _, pkg := range page {
			rowsWritten, err := r.processPackage(job, writer, builder, pkg)
			if err != nil {
				return false, err
			}

			// Durable writes land before the counters commit: the file is
			// flushed, then the cursor and writer state persist together.
			if err := writer.Flush(); err != nil {
				return false, err
			}
			job.Advance(pkg.Product.ID, rowsWritten)
			job.UpdateProgress(total)
			if err := r.persistProgress(job, writer); err != nil {
				return false, err
			}

			if reason, tripped := r.checkPause(ctx, watchdog); tripped {
				if err := r.pauseJob(job, writer, reason); err != nil {
					return false, err
				}
				return true, nil
			}
		}

		if len(page) < batchSize {
			return false, nil
		}
		job.Cursor.LastPage++
	}
}

// processPackage turns one product package into output rows. Data-level
// problems are recorded to the failure log and skipped; only resource
// failures propagate.
func (r *Runner) processPackage(job *Job, writer *Writer, builder *RowBuilder, pkg catalog.Package) (int, error) {
	defs, extras := SelectOptions(pkg.Product)
	records, extraTags := Flatten(pkg.Variants, defs, extras, pkg.Product)

	rows, failure := builder.BuildPackageRows(pkg, defs, records, extraTags)
	if failure != nil {
		failure.JobID = job.ID
		if err := r.failures.Record(*failure); err != nil {
			return 0, errors.Wrap(err, "failed to record export failure")
		}
		r.log.Warnw("Skipping product",
			"job_id", job.ID,
			"product_id", pkg.Product.ID,
			"code", failure.Code,
			"reason", failure.Message,
		)
		return 0, nil
	}

	for _, row := range rows {
		if err := writer.AddRow(row); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

func (r *Runner) persistProgress(job *Job, writer *Writer) error {
	state, err := writer.State().Marshal()
	if err != nil {
		return err
	}
	job.WriterState = state
	if err := r.jobs.Upsert(job); err != nil {
		return errors.Wrap(err, "failed to persist job progress")
	}
	return nil
}

// checkPause evaluates the watchdog and context at the product boundary
func (r *Runner) checkPause(ctx context.Context, watchdog *Watchdog) (string, bool) {
	if err := ctx.Err(); err != nil {
		return "run cancelled", true
	}
	return watchdog.Check()
}

// pauseJob suspends the run at a safe boundary: rows already flushed, the
// handle closed, writer state and job snapshot persisted for resume.
func (r *Runner) pauseJob(job *Job, writer *Writer, reason string) error {
	if err := writer.Pause(); err != nil {
		return err
	}
	state, err := writer.State().Marshal()
	if err != nil {
		return err
	}
	job.WriterState = state
	job.Pause(reason)
	if err := r.jobs.Upsert(job); err != nil {
		return errors.Wrap(err, "failed to persist paused job")
	}

	r.log.Infow("Export run paused",
		"job_id", job.ID,
		"reason", reason,
		"product_count", job.ProductCount,
		"row_count", job.RowCount,
	)
	return nil
}

// complete finishes the writer, runs manifest generators, merges file
// lists, and persists the terminal record.
func (r *Runner) complete(ctx context.Context, job *Job, writer *Writer) (*Job, error) {
	if err := writer.Finish(); err != nil {
		return r.failJob(job, nil, err)
	}

	files := writer.State().Files
	for _, generator := range r.manifests {
		extra, err := generator.Generate(ctx, job.Scope, job.Settings.OutputDir)
		if err != nil {
			return r.failJob(job, nil, errors.Wrap(err, "manifest generation failed"))
		}
		files = append(files, extra...)
	}

	state, err := writer.State().Marshal()
	if err != nil {
		return nil, err
	}
	job.WriterState = state
	job.Files = files
	if len(files) > 0 && files[0].URL != "" {
		job.DownloadURL = files[0].URL
	}

	message := fmt.Sprintf("Exported %d products (%d rows) into %d file(s)",
		job.ProductCount, writer.TotalRows(), len(files))
	job.Complete(message)
	if err := r.jobs.Upsert(job); err != nil {
		return nil, errors.Wrap(err, "failed to persist completed job")
	}

	r.log.Infow("Export run completed",
		"job_id", job.ID,
		"products", job.ProductCount,
		"rows", job.RowCount,
		"files", len(files),
	)
	return job, nil
}

// failJob records the failure and surfaces the underlying cause. Writer
// state is persisted when available so a later force restart has context.
func (r *Runner) failJob(job *Job, writer *Writer, cause error) (*Job, error) {
	if writer != nil {
		if state, err := writer.State().Marshal(); err == nil {
			job.WriterState = state
		}
	}
	job.Fail(cause)
	if err := r.jobs.Upsert(job); err != nil {
		r.log.Errorw("Failed to persist failed job", "job_id", job.ID, "error", err)
	}

	r.log.Errorw("Export run failed",
		"job_id", job.ID,
		"error", cause,
	)
	return job, cause
}

func (r *Runner) countScope(ctx context.Context, scope catalog.Scope) int {
	counter, ok := r.source.(sourceCounter)
	if !ok {
		return 0
	}
	total, err := counter.Count(ctx, scope)
	if err != nil {
		r.log.Debugw("Scope count unavailable", "error", err)
		return 0
	}
	return total
}
