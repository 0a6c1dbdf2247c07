package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/harborline/shopcsv/errors"
)

// WriterConfig configures one streaming writer
type WriterConfig struct {
	Dir          string
	BaseFilename string
	Extension    string // ".csv" or ".tsv"
	Delimiter    rune
	Columns      []string
	FlushRows    int   // buffered rows before an automatic flush
	MaxFileSize  int64 // rotation threshold in bytes
	DownloadBase string
}

// WriterState is the serializable snapshot of a writer's position. Owned
// exclusively by the Writer; the Runner persists it opaquely on the job.
// CurrentSize always reflects actual bytes written to CurrentPath including
// the header row, so restoring the state and reopening the same path for
// append reproduces byte-identical continuation.
type WriterState struct {
	FileIndex   int              `json:"file_index"`
	CurrentPath string           `json:"current_path"`
	CurrentRows int              `json:"current_rows"`
	CurrentSize int64            `json:"current_size"`
	Files       []FileDescriptor `json:"files,omitempty"`
	TotalRows   int              `json:"total_rows"`
}

// Marshal serializes the state for storage on the job record
func (s WriterState) Marshal() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal writer state")
	}
	return string(data), nil
}

// UnmarshalWriterState parses a stored writer state
func UnmarshalWriterState(data string) (WriterState, error) {
	var state WriterState
	if data == "" {
		return state, nil
	}
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return state, errors.Wrap(err, "failed to unmarshal writer state")
	}
	return state, nil
}

// Writer streams rows into correctly-rotated delimited files. Rows are
// buffered and flushed in batches; a file rotates when the next row would
// push it past MaxFileSize, but never before its first data row, so no file
// ends up header-only (except possibly the very first of an empty export).
type Writer struct {
	cfg    WriterConfig
	log    *zap.SugaredLogger
	buffer []Row

	fileIndex   int
	currentPath string
	currentRows int
	currentSize int64
	files       []FileDescriptor
	totalRows   int

	handle   *os.File
	standing error // construction-time error surfaced by Check
	finished bool
}

// NewWriter creates a writer starting a fresh file set
func NewWriter(cfg WriterConfig, log *zap.SugaredLogger) *Writer {
	w := &Writer{cfg: cfg, log: log, fileIndex: 1}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		w.standing = errors.WrapResource(err, "failed to create output directory")
	}
	return w
}

// NewWriterFromState creates a writer that continues a previous run. The
// persisted CurrentPath is reopened in append mode on the next write; the
// header is not rewritten. When the persisted size is unset, the actual
// file size on disk wins — a crash between a row write and a state persist
// resolves in favor of the file.
func NewWriterFromState(cfg WriterConfig, state WriterState, log *zap.SugaredLogger) *Writer {
	w := NewWriter(cfg, log)
	if state.FileIndex > 0 {
		w.fileIndex = state.FileIndex
	}
	w.currentPath = state.CurrentPath
	w.currentRows = state.CurrentRows
	w.currentSize = state.CurrentSize
	w.files = state.Files
	w.totalRows = state.TotalRows

	if w.currentPath != "" {
		info, err := os.Stat(w.currentPath)
		if err != nil {
			w.standing = errors.WrapResource(err, "cannot resume: previous output file is gone")
			return w
		}
		if w.currentSize == 0 || w.currentSize != info.Size() {
			// Trust the bytes on disk over a stale persisted count
			w.currentSize = info.Size()
		}
	}
	return w
}

// Check returns any standing error from construction. The orchestrator
// validates this before iteration begins.
func (w *Writer) Check() error {
	return w.standing
}

// State snapshots the writer's position for persistence
func (w *Writer) State() WriterState {
	return WriterState{
		FileIndex:   w.fileIndex,
		CurrentPath: w.currentPath,
		CurrentRows: w.currentRows,
		CurrentSize: w.currentSize,
		Files:       w.files,
		TotalRows:   w.totalRows,
	}
}

// TotalRows reports rows written across all files, headers excluded
func (w *Writer) TotalRows() int {
	return w.totalRows
}

// Files returns descriptors of all files, including the one in progress
func (w *Writer) Files() []FileDescriptor {
	all := make([]FileDescriptor, len(w.files))
	copy(all, w.files)
	if w.currentPath != "" {
		all = append(all, w.currentDescriptor())
	}
	return all
}

// AddRow buffers one row, flushing when the buffer reaches FlushRows
func (w *Writer) AddRow(row Row) error {
	if w.finished {
		return errors.New("writer already finished")
	}
	w.buffer = append(w.buffer, row)
	if len(w.buffer) >= w.cfg.FlushRows {
		return w.Flush()
	}
	return nil
}

// Flush writes all buffered rows to disk
func (w *Writer) Flush() error {
	if w.standing != nil {
		return w.standing
	}

	for len(w.buffer) > 0 {
		row := w.buffer[0]
		encoded, err := w.encodeRow(row.Values(w.cfg.Columns))
		if err != nil {
			return err
		}

		if err := w.ensureHandle(); err != nil {
			return err
		}

		// Rotate when this row would cross the size threshold, but never
		// before the current file holds at least one data row.
		if w.currentRows > 0 && w.currentSize+int64(len(encoded)) > w.cfg.MaxFileSize {
			if err := w.rotate(); err != nil {
				return err
			}
			if err := w.ensureHandle(); err != nil {
				return err
			}
		}

		n, err := w.handle.Write(encoded)
		w.currentSize += int64(n)
		if err != nil {
			return errors.WrapResource(err, "failed to write row")
		}
		w.currentRows++
		w.totalRows++
		w.buffer = w.buffer[1:]
	}

	if w.handle != nil {
		if err := w.handle.Sync(); err != nil {
			return errors.WrapResource(err, "failed to sync output file")
		}
	}
	return nil
}

// Pause flushes buffered rows and closes the handle, leaving the state
// serializable. A new writer built from that state re-enters writing.
func (w *Writer) Pause() error {
	if err := w.Flush(); err != nil {
		return err
	}
	return w.closeHandle()
}

// Finish flushes, ensures at least the header exists, and closes the file
// set. Fails if the header or final flush cannot be written.
func (w *Writer) Finish() error {
	if w.finished {
		return nil
	}
	if err := w.Flush(); err != nil {
		return err
	}
	// An export with zero rows still produces a header-only file
	if err := w.ensureHandle(); err != nil {
		return err
	}
	if err := w.closeHandle(); err != nil {
		return err
	}
	if w.currentPath != "" {
		w.files = append(w.files, w.currentDescriptor())
		w.currentPath = ""
		w.currentRows = 0
		w.currentSize = 0
	}
	w.finished = true
	return nil
}

// ensureHandle opens the current file, creating it with a header row when
// it does not exist yet, or reopening it for append when resuming.
func (w *Writer) ensureHandle() error {
	if w.handle != nil {
		return nil
	}

	if w.currentPath == "" {
		w.currentPath = w.pathForIndex(w.fileIndex)
		// O_TRUNC so a force-restarted job overwrites leftovers from a
		// previous run of the same file set
		handle, err := os.OpenFile(w.currentPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return errors.WrapResource(err, "failed to create output file")
		}
		w.handle = handle

		header, err := w.encodeRow(w.cfg.Columns)
		if err != nil {
			return err
		}
		n, err := handle.Write(header)
		w.currentSize = int64(n)
		if err != nil {
			return errors.WrapResource(err, "failed to write header")
		}
		w.currentRows = 0
		if w.log != nil {
			w.log.Infow("Opened output file", "path", w.currentPath, "file_index", w.fileIndex)
		}
		return nil
	}

	// Resuming: append to the existing file, header already present
	handle, err := os.OpenFile(w.currentPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.WrapResource(err, "failed to reopen output file for append")
	}
	w.handle = handle
	if w.log != nil {
		w.log.Infow("Reopened output file for append",
			"path", w.currentPath,
			"rows", w.currentRows,
			"size", w.currentSize,
		)
	}
	return nil
}

// rotate closes the current file and steps to the next part
func (w *Writer) rotate() error {
	if err := w.closeHandle(); err != nil {
		return err
	}
	w.files = append(w.files, w.currentDescriptor())
	if w.log != nil {
		w.log.Infow("Rotated output file",
			"path", w.currentPath,
			"rows", w.currentRows,
			"size", w.currentSize,
		)
	}
	w.fileIndex++
	w.currentPath = ""
	w.currentRows = 0
	w.currentSize = 0
	return nil
}

func (w *Writer) closeHandle() error {
	if w.handle == nil {
		return nil
	}
	err := w.handle.Close()
	w.handle = nil
	if err != nil {
		return errors.WrapResource(err, "failed to close output file")
	}
	return nil
}

// pathForIndex names files base.ext, base-part-2.ext, base-part-3.ext, …
func (w *Writer) pathForIndex(index int) string {
	name := w.cfg.BaseFilename + w.cfg.Extension
	if index > 1 {
		name = fmt.Sprintf("%s-part-%d%s", w.cfg.BaseFilename, index, w.cfg.Extension)
	}
	return filepath.Join(w.cfg.Dir, name)
}

func (w *Writer) currentDescriptor() FileDescriptor {
	filename := filepath.Base(w.currentPath)
	fd := FileDescriptor{
		Path:     w.currentPath,
		Filename: filename,
		Rows:     w.currentRows,
		Size:     w.currentSize,
	}
	if w.cfg.DownloadBase != "" {
		fd.URL = strings.TrimSuffix(w.cfg.DownloadBase, "/") + "/" + filename
	}
	return fd
}

// encodeRow serializes one record to its exact on-disk bytes, normalizing
// CR/CRLF inside values to LF. Encoding up front gives rotation an exact
// size for the pending row rather than an estimate.
func (w *Writer) encodeRow(values []string) ([]byte, error) {
	normalized := make([]string, len(values))
	for i, v := range values {
		v = strings.ReplaceAll(v, "\r\n", "\n")
		normalized[i] = strings.ReplaceAll(v, "\r", "\n")
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	cw.Comma = w.cfg.Delimiter
	if err := cw.Write(normalized); err != nil {
		return nil, errors.Wrap(err, "failed to encode row")
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, errors.Wrap(err, "failed to encode row")
	}
	return buf.Bytes(), nil
}
