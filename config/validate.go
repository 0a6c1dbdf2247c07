package config

import (
	"github.com/harborline/shopcsv/errors"
)

// Validate checks configuration invariants before any I/O happens.
// Violations are Configuration errors: fail fast, never retried.
func (c *Config) Validate() error {
	switch c.Export.Format {
	case "csv", "tsv", "semicolon":
	default:
		return errors.NewConfigError("unsupported export format: %q (want csv, tsv, or semicolon)", c.Export.Format)
	}

	if c.Export.BatchSize <= 0 {
		return errors.NewConfigError("export batch_size must be positive, got %d", c.Export.BatchSize)
	}
	if c.Export.FlushRows <= 0 {
		return errors.NewConfigError("export flush_rows must be positive, got %d", c.Export.FlushRows)
	}
	if c.Export.MaxFileSizeBytes <= 0 {
		return errors.NewConfigError("export max_file_size_bytes must be positive, got %d", c.Export.MaxFileSizeBytes)
	}
	if c.Export.BaseFilename == "" {
		return errors.NewConfigError("export base_filename cannot be empty")
	}
	if c.Lock.TTLSeconds <= 0 {
		return errors.NewConfigError("lock ttl_seconds must be positive, got %d", c.Lock.TTLSeconds)
	}

	return nil
}
