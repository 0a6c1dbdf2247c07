package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/harborline/shopcsv/catalog"
	"github.com/harborline/shopcsv/config"
	"github.com/harborline/shopcsv/export"
	"github.com/harborline/shopcsv/logger"
)

// ExportCmd starts (or resumes) an export job
var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Start an export job",
	Long: `Start an export job over the configured catalog database.

The job runs in the foreground until it completes, pauses (watchdog or
Ctrl+C), or fails. A paused job keeps its cursor and partial files; run
'shopcsv resume <job-id>' to continue from exactly where it stopped.

Scope flags narrow which products are exported. Without any, the whole
catalog is exported.

Examples:
  shopcsv export                             # Everything, generated job id
  shopcsv export --status publish --images   # Published products with images
  shopcsv export --job-id nightly --tag sale # Named job, tag-scoped
  shopcsv export --job-id nightly --force-restart`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, _ := cmd.Flags().GetString("job-id")
		if jobID == "" {
			jobID = "EX_" + uuid.NewString()[:8]
		}

		forceRestart, _ := cmd.Flags().GetBool("force-restart")
		return runExport(cmd, jobID, forceRestart)
	},
}

// ResumeCmd resumes a paused export job
var ResumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Resume a paused export job",
	Long: `Resume a paused export job. The job continues from its persisted
cursor: already-written rows are never re-emitted and the current output
file is appended to, not rewritten.

Example:
  shopcsv resume nightly`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Scope flags are not offered on resume; the job record's snapshot wins
		return runExport(cmd, args[0], false)
	},
}

func runExport(cmd *cobra.Command, jobID string, forceRestart bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyExportFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	scope := buildScope(cmd, cfg)

	dbPath, _ := cmd.Flags().GetString("db")
	database, err := openDatabase(cfg, dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	source := catalog.NewSQLiteSource(database)
	runner := export.NewRunner(
		cfg,
		source,
		export.NewSQLiteJobStore(database),
		export.NewSQLiteFailureStore(database),
		export.NewSQLiteLeaseStore(database),
		logger.Logger,
	)

	// Ctrl+C pauses at the next product boundary rather than killing the run
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupt received, pausing at next safe boundary...")
		cancel()
	}()

	job, err := runner.Run(ctx, export.RunOptions{
		JobID:        jobID,
		Scope:        scope,
		ForceRestart: forceRestart,
	})
	if err != nil {
		return err
	}

	printJobOutcome(job)
	return nil
}

// applyExportFlags overlays command-line flags onto the loaded configuration
func applyExportFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("output") {
		cfg.Export.OutputDir, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.Export.BatchSize, _ = cmd.Flags().GetInt("batch-size")
	}
	if cmd.Flags().Changed("format") {
		cfg.Export.Format, _ = cmd.Flags().GetString("format")
	}
	if cmd.Flags().Changed("images") {
		cfg.Export.IncludeImages, _ = cmd.Flags().GetBool("images")
	}
}

// buildScope reads the scope flags into a catalog scope. Image inclusion
// follows the configuration; applyExportFlags has already overlaid the
// --images flag onto it when given.
func buildScope(cmd *cobra.Command, cfg *config.Config) catalog.Scope {
	scope := catalog.Scope{IncludeImages: cfg.Export.IncludeImages}
	scope.Status, _ = cmd.Flags().GetString("status")
	scope.Category, _ = cmd.Flags().GetString("category")
	scope.Tag, _ = cmd.Flags().GetString("tag")
	scope.IDs, _ = cmd.Flags().GetInt64Slice("ids")
	return scope
}

func printJobOutcome(job *export.Job) {
	switch job.Status {
	case export.JobStatusCompleted:
		fmt.Printf("Export %s completed: %s\n", job.ID, job.Message)
		for _, file := range job.Files {
			fmt.Printf("  %s (%d rows, %d bytes)\n", file.Path, file.Rows, file.Size)
		}
		if job.DownloadURL != "" {
			fmt.Printf("Download: %s\n", job.DownloadURL)
		}
	case export.JobStatusPaused:
		fmt.Printf("Export %s paused: %s\n", job.ID, job.Message)
		fmt.Printf("  %d products, %d rows so far\n", job.ProductCount, job.RowCount)
		fmt.Printf("  Resume with: shopcsv resume %s\n", job.ID)
	default:
		fmt.Printf("Export %s finished in status %s\n", job.ID, job.Status)
	}
}

// addRunFlags registers the flags shared by export and resume
func addRunFlags(c *cobra.Command) {
	c.Flags().String("db", "", "Database path (overrides configuration)")
	c.Flags().String("output", "", "Output directory (overrides configuration)")
	c.Flags().Int("batch-size", 0, "Products fetched per page (overrides configuration)")
	c.Flags().String("format", "", "Output format: csv, tsv, or semicolon")
}

// addScopeFlags registers the flags narrowing which products are exported
func addScopeFlags(c *cobra.Command) {
	c.Flags().String("status", "", "Only products with this status (e.g. publish)")
	c.Flags().String("category", "", "Only products in this category")
	c.Flags().String("tag", "", "Only products carrying this tag")
	c.Flags().Int64Slice("ids", nil, "Only these product ids")
	c.Flags().Bool("images", false, "Include image rows in the export (overrides configuration)")
}

func init() {
	for _, c := range []*cobra.Command{ExportCmd, ResumeCmd} {
		addRunFlags(c)
	}
	addScopeFlags(ExportCmd)

	ExportCmd.Flags().String("job-id", "", "Job identifier (generated when omitted)")
	ExportCmd.Flags().Bool("force-restart", false, "Discard existing job state and start over")
}
