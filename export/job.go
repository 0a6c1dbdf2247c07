// Package export implements the resumable catalog export engine: job state
// machine, option flattening, row building, streaming delimited writer,
// watchdog, and the run orchestrator.
package export

import (
	"encoding/json"
	"time"

	"github.com/harborline/shopcsv/catalog"
	"github.com/harborline/shopcsv/config"
	"github.com/harborline/shopcsv/errors"
)

// JobStatus represents the current state of an export job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsValidStatus returns true if the status string is a valid JobStatus
func IsValidStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusQueued, JobStatusRunning, JobStatusPaused,
		JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// FileDescriptor describes one emitted output file.
// Descriptors are appended as files rotate and never removed.
type FileDescriptor struct {
	Path     string `json:"path"`
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename"`
	Rows     int    `json:"rows"`
	Size     int64  `json:"size"`
}

// Job is the durable record of one export.
// Exactly one record exists per id; it is mutated exclusively by the Runner.
type Job struct {
	ID           string              `json:"id"`
	Status       JobStatus           `json:"status"`
	Progress     int                 `json:"progress"` // 0-100
	Message      string              `json:"message,omitempty"`
	Settings     config.ExportConfig `json:"settings"`
	Scope        catalog.Scope       `json:"scope"`
	Cursor       catalog.Cursor      `json:"cursor"`
	RowCount     int                 `json:"row_count"`
	ProductCount int                 `json:"product_count"`
	WriterState  string              `json:"writer_state,omitempty"` // opaque, owned by the Writer
	Files        []FileDescriptor    `json:"files,omitempty"`
	DownloadURL  string              `json:"download_url,omitempty"`
	Error        string              `json:"error,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// NewJob creates a queued job with a settings and scope snapshot
func NewJob(id string, settings config.ExportConfig, scope catalog.Scope) (*Job, error) {
	if id == "" {
		return nil, errors.New("job id cannot be empty")
	}

	now := time.Now()
	return &Job{
		ID:        id,
		Status:    JobStatusQueued,
		Settings:  settings,
		Scope:     scope,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	if j.StartedAt == nil {
		j.StartedAt = &now
	}
	j.UpdatedAt = now
}

// Pause marks the job as paused with a human-readable reason.
// A paused job resumes from its persisted cursor and writer state.
func (j *Job) Pause(reason string) {
	j.Status = JobStatusPaused
	j.Message = reason
	j.UpdatedAt = time.Now()
}

// Resume marks a paused job as running again
func (j *Job) Resume() {
	j.Status = JobStatusRunning
	j.Message = ""
	j.UpdatedAt = time.Now()
}

// Complete marks the job as completed with a summary message
func (j *Job) Complete(message string) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.Message = message
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Fail marks the job as failed with the underlying cause
func (j *Job) Fail(err error) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.Error = err.Error()
	j.Message = "export failed: " + err.Error()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Advance commits one processed product: moves the resume cursor forward
// and accumulates counters.
func (j *Job) Advance(productID int64, rowsWritten int) {
	j.Cursor.LastProductID = productID
	j.ProductCount++
	j.RowCount += rowsWritten
	j.UpdatedAt = time.Now()
}

// UpdateProgress recomputes the 0-100 progress figure.
// With an unknown total, progress advances asymptotically and is capped at 99
// until completion so it stays monotonic.
func (j *Job) UpdateProgress(total int) {
	if j.Status == JobStatusCompleted {
		j.Progress = 100
		return
	}
	var pct int
	if total > 0 {
		pct = j.ProductCount * 100 / total
	} else {
		pct = 99 - 99*100/(j.ProductCount+100)
	}
	if pct > 99 {
		pct = 99
	}
	if pct > j.Progress {
		j.Progress = pct
	}
}

// MarshalFiles converts a file descriptor list to its JSON storage form
func MarshalFiles(files []FileDescriptor) (string, error) {
	if len(files) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(files)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal file descriptors")
	}
	return string(data), nil
}

// UnmarshalFiles converts the JSON storage form back to a descriptor list
func UnmarshalFiles(data string) ([]FileDescriptor, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var files []FileDescriptor
	if err := json.Unmarshal([]byte(data), &files); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal file descriptors")
	}
	return files, nil
}
