package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "shopcsv.db")

	// Export defaults
	v.SetDefault("export.output_dir", "exports")
	v.SetDefault("export.format", "csv")
	v.SetDefault("export.batch_size", 100)             // products per source page
	v.SetDefault("export.flush_rows", 200)             // writer buffer before flush
	v.SetDefault("export.max_file_size_bytes", 14<<20) // rotate before 15MB import cap
	v.SetDefault("export.base_filename", "products")
	v.SetDefault("export.include_images", true)
	v.SetDefault("export.download_base_url", "")

	// Watchdog defaults
	v.SetDefault("watchdog.time_limit_seconds", 25)     // pause before typical gateway timeouts
	v.SetDefault("watchdog.memory_limit_percent", 80.0) // pause above 80% resident memory

	// Lock defaults
	v.SetDefault("lock.ttl_seconds", 300) // stale lease expires after 5 minutes
}
