package export

import (
	"database/sql"
	"encoding/json"

	"github.com/harborline/shopcsv/errors"
)

// JobStore persists export job records keyed by job id
type JobStore interface {
	// Get returns the job record, or nil when no record exists
	Get(id string) (*Job, error)
	// Upsert writes the full job record
	Upsert(job *Job) error
}

// SQLiteJobStore persists jobs in the export_jobs table
type SQLiteJobStore struct {
	db *sql.DB
}

// NewSQLiteJobStore creates a job store over the given database
func NewSQLiteJobStore(db *sql.DB) *SQLiteJobStore {
	return &SQLiteJobStore{db: db}
}

const jobSelectColumns = `id, status, progress, message, settings, scope,
	last_product_id, last_page, row_count, product_count, writer_state,
	files, download_url, error, created_at, started_at, completed_at, updated_at`

// Get implements JobStore
func (s *SQLiteJobStore) Get(id string) (*Job, error) {
	query := `SELECT ` + jobSelectColumns + ` FROM export_jobs WHERE id = ?`

	job, err := scanJob(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}
	return job, nil
}

// Upsert implements JobStore
func (s *SQLiteJobStore) Upsert(job *Job) error {
	settings, err := json.Marshal(job.Settings)
	if err != nil {
		return errors.Wrap(err, "failed to marshal job settings")
	}
	scope, err := json.Marshal(job.Scope)
	if err != nil {
		return errors.Wrap(err, "failed to marshal job scope")
	}
	files, err := MarshalFiles(job.Files)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO export_jobs (
			id, status, progress, message, settings, scope,
			last_product_id, last_page, row_count, product_count,
			writer_state, files, download_url, error,
			created_at, started_at, completed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			message = excluded.message,
			settings = excluded.settings,
			scope = excluded.scope,
			last_product_id = excluded.last_product_id,
			last_page = excluded.last_page,
			row_count = excluded.row_count,
			product_count = excluded.product_count,
			writer_state = excluded.writer_state,
			files = excluded.files,
			download_url = excluded.download_url,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at
	`

	_, err = s.db.Exec(query,
		job.ID,
		job.Status,
		job.Progress,
		job.Message,
		string(settings),
		string(scope),
		job.Cursor.LastProductID,
		job.Cursor.LastPage,
		job.RowCount,
		job.ProductCount,
		job.WriterState,
		files,
		job.DownloadURL,
		job.Error,
		job.CreatedAt,
		job.StartedAt,
		job.CompletedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert job")
	}
	return nil
}

// List returns jobs ordered newest first, optionally filtered by status
func (s *SQLiteJobStore) List(status *JobStatus, limit int) ([]*Job, error) {
	var query string
	var args []interface{}

	baseQuery := `SELECT ` + jobSelectColumns + ` FROM export_jobs`
	if status != nil {
		query = baseQuery + ` WHERE status = ? ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{*status, limit}
	} else {
		query = baseQuery + ` ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating jobs")
	}
	return jobs, nil
}

// rowScanner abstracts sql.Row and sql.Rows for scanJob
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var settings, scope, files string
	var startedAt, completedAt sql.NullTime

	err := row.Scan(&job.ID, &job.Status, &job.Progress, &job.Message,
		&settings, &scope,
		&job.Cursor.LastProductID, &job.Cursor.LastPage,
		&job.RowCount, &job.ProductCount,
		&job.WriterState, &files, &job.DownloadURL, &job.Error,
		&job.CreatedAt, &startedAt, &completedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(settings), &job.Settings); err != nil {
		return nil, errors.Wrapf(err, "invalid settings JSON for job %s", job.ID)
	}
	if err := json.Unmarshal([]byte(scope), &job.Scope); err != nil {
		return nil, errors.Wrapf(err, "invalid scope JSON for job %s", job.ID)
	}
	job.Files, err = UnmarshalFiles(files)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid files JSON for job %s", job.ID)
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}

	return &job, nil
}

// MemoryJobStore keeps job records in memory. Used in tests.
type MemoryJobStore struct {
	jobs map[string]*Job
}

// NewMemoryJobStore creates an empty in-memory job store
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*Job)}
}

// Get implements JobStore
func (s *MemoryJobStore) Get(id string) (*Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	clone := *job
	return &clone, nil
}

// Upsert implements JobStore
func (s *MemoryJobStore) Upsert(job *Job) error {
	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

var (
	_ JobStore = (*SQLiteJobStore)(nil)
	_ JobStore = (*MemoryJobStore)(nil)
)
