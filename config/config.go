// Package config manages shopcsv configuration via Viper.
//
// Configuration is read from shopcsv.toml (searched upward from the working
// directory), overridable through SHOPCSV_* environment variables.
package config

// Config represents the shopcsv configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Export   ExportConfig   `mapstructure:"export"`
	Watchdog WatchdogConfig `mapstructure:"watchdog"`
	Lock     LockConfig     `mapstructure:"lock"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ExportConfig configures export output
type ExportConfig struct {
	OutputDir        string `mapstructure:"output_dir"`
	Format           string `mapstructure:"format"`    // csv, tsv, semicolon
	BatchSize        int    `mapstructure:"batch_size"` // products fetched per page
	FlushRows        int    `mapstructure:"flush_rows"` // buffered rows before a writer flush
	MaxFileSizeBytes int64  `mapstructure:"max_file_size_bytes"`
	BaseFilename     string `mapstructure:"base_filename"`
	IncludeImages    bool   `mapstructure:"include_images"`
	DownloadBaseURL  string `mapstructure:"download_base_url"`
}

// WatchdogConfig configures the cooperative pause thresholds
type WatchdogConfig struct {
	TimeLimitSeconds   int     `mapstructure:"time_limit_seconds"`   // wall clock ceiling per run, 0 = unlimited
	MemoryLimitPercent float64 `mapstructure:"memory_limit_percent"` // resident fraction of system memory, 0 = unlimited
}

// LockConfig configures the per-job run lease
type LockConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// Delimiter returns the column delimiter for the configured format.
// Unsupported formats are caught by Validate before any I/O happens.
func (e ExportConfig) Delimiter() rune {
	switch e.Format {
	case "tsv":
		return '\t'
	case "semicolon":
		return ';'
	default:
		return ','
	}
}

// Extension returns the output file extension for the configured format
func (e ExportConfig) Extension() string {
	if e.Format == "tsv" {
		return ".tsv"
	}
	return ".csv"
}
