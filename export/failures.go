package export

import (
	"database/sql"
	"time"

	"github.com/harborline/shopcsv/errors"
)

// Failure is one structured per-product validation problem.
// Failures accumulate across a job's lifetime, including across resumes,
// and are never silently dropped.
type Failure struct {
	JobID     string    `json:"job_id"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Context   string    `json:"context,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Failure codes recorded by the row builder
const (
	FailureCodeMissingHandle = "missing_handle"
	FailureCodeMissingTitle  = "missing_title"
)

// FailureStore is the durable side-channel failure log keyed by job id
type FailureStore interface {
	Record(failure Failure) error
	List(jobID string) ([]Failure, error)
}

// SQLiteFailureStore persists failures in the export_job_failures table
type SQLiteFailureStore struct {
	db *sql.DB
}

// NewSQLiteFailureStore creates a failure store over the given database
func NewSQLiteFailureStore(db *sql.DB) *SQLiteFailureStore {
	return &SQLiteFailureStore{db: db}
}

// Record implements FailureStore
func (s *SQLiteFailureStore) Record(failure Failure) error {
	if failure.CreatedAt.IsZero() {
		failure.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO export_job_failures (job_id, code, message, context, created_at) VALUES (?, ?, ?, ?, ?)`,
		failure.JobID, failure.Code, failure.Message, failure.Context, failure.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to record export failure")
	}
	return nil
}

// List implements FailureStore
func (s *SQLiteFailureStore) List(jobID string) ([]Failure, error) {
	rows, err := s.db.Query(
		`SELECT job_id, code, message, context, created_at
		 FROM export_job_failures WHERE job_id = ? ORDER BY id ASC`,
		jobID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list export failures")
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.JobID, &f.Code, &f.Message, &f.Context, &f.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan export failure")
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating export failures")
	}
	return failures, nil
}

// MemoryFailureStore keeps failures in memory. Used in tests.
type MemoryFailureStore struct {
	failures map[string][]Failure
}

// NewMemoryFailureStore creates an empty in-memory failure store
func NewMemoryFailureStore() *MemoryFailureStore {
	return &MemoryFailureStore{failures: make(map[string][]Failure)}
}

// Record implements FailureStore
func (s *MemoryFailureStore) Record(failure Failure) error {
	if failure.CreatedAt.IsZero() {
		failure.CreatedAt = time.Now()
	}
	s.failures[failure.JobID] = append(s.failures[failure.JobID], failure)
	return nil
}

// List implements FailureStore
func (s *MemoryFailureStore) List(jobID string) ([]Failure, error) {
	return s.failures[jobID], nil
}

var (
	_ FailureStore = (*SQLiteFailureStore)(nil)
	_ FailureStore = (*MemoryFailureStore)(nil)
)
