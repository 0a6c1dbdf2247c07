package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harborline/shopcsv/config"
	"github.com/harborline/shopcsv/export"
)

// JobsCmd groups job inspection subcommands
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect export jobs",
	Long: `Inspect export jobs and their failure logs.

Commands:
  shopcsv jobs ls                 # List jobs
  shopcsv jobs status <job-id>    # Show job details
  shopcsv jobs failures <job-id>  # Show skipped products for a job`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// JobsLsCmd lists export jobs
var JobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List export jobs",
	Long: `List export jobs, optionally filtered by status.

Examples:
  shopcsv jobs ls                  # List recent jobs
  shopcsv jobs ls --status paused  # Only paused jobs
  shopcsv jobs ls --limit 50       # Show up to 50 jobs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFilter, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		dbPath, _ := cmd.Flags().GetString("db")
		return runJobsLs(dbPath, statusFilter, limit)
	},
}

// JobsStatusCmd shows details for one job
var JobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show status of an export job",
	Long: `Display detailed status for an export job: state, progress,
cursor position, counters, emitted files, and timestamps.

Example:
  shopcsv jobs status nightly`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")
		return runJobsStatus(dbPath, args[0])
	},
}

// JobsFailuresCmd lists recorded failures for one job
var JobsFailuresCmd = &cobra.Command{
	Use:   "failures <job-id>",
	Short: "List products skipped during an export",
	Long: `List the products an export skipped, with the reason each one
could not be represented in the output.

Example:
  shopcsv jobs failures nightly`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")
		return runJobsFailures(dbPath, args[0])
	},
}

func init() {
	JobsLsCmd.Flags().String("status", "", "Filter by status (queued, running, paused, completed, failed)")
	JobsLsCmd.Flags().Int("limit", 20, "Maximum number of jobs to display")

	for _, c := range []*cobra.Command{JobsLsCmd, JobsStatusCmd, JobsFailuresCmd} {
		c.Flags().String("db", "", "Database path (overrides configuration)")
	}

	JobsCmd.AddCommand(JobsLsCmd)
	JobsCmd.AddCommand(JobsStatusCmd)
	JobsCmd.AddCommand(JobsFailuresCmd)
}

func runJobsLs(dbPath, statusFilter string, limit int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	database, err := openDatabase(cfg, dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	var status *export.JobStatus
	if statusFilter != "" {
		if !export.IsValidStatus(statusFilter) {
			return fmt.Errorf("invalid status filter: %s", statusFilter)
		}
		s := export.JobStatus(statusFilter)
		status = &s
	}

	store := export.NewSQLiteJobStore(database)
	jobs, err := store.List(status, limit)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-20s %-12s %-10s %-18s %s\n", "JOB ID", "STATUS", "PROGRESS", "PRODUCTS/ROWS", "UPDATED")
	fmt.Printf("%-20s %-12s %-10s %-18s %s\n", "------", "------", "--------", "-------------", "-------")
	for _, job := range jobs {
		counters := fmt.Sprintf("%d/%d", job.ProductCount, job.RowCount)
		fmt.Printf("%-20s %-12s %-10s %-18s %s\n",
			truncate(job.ID, 20),
			job.Status,
			fmt.Sprintf("%d%%", job.Progress),
			counters,
			job.UpdatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("\nTotal: %d job(s)\n", len(jobs))
	return nil
}

func runJobsStatus(dbPath, jobID string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	database, err := openDatabase(cfg, dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	store := export.NewSQLiteJobStore(database)
	job, err := store.Get(jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("no job found with id %s", jobID)
	}

	fmt.Printf("Job ID: %s\n", job.ID)
	fmt.Printf("  Status: %s\n", job.Status)
	fmt.Printf("  Progress: %d%%\n", job.Progress)
	if job.Message != "" {
		fmt.Printf("  Message: %s\n", job.Message)
	}
	if job.Error != "" {
		fmt.Printf("  Error: %s\n", job.Error)
	}
	fmt.Printf("\n")

	fmt.Printf("Products: %d  Rows: %d\n", job.ProductCount, job.RowCount)
	fmt.Printf("Cursor: product %d, page %d\n", job.Cursor.LastProductID, job.Cursor.LastPage)
	fmt.Printf("\n")

	if len(job.Files) > 0 {
		fmt.Println("Files:")
		for _, file := range job.Files {
			fmt.Printf("  %s (%d rows, %d bytes)\n", file.Path, file.Rows, file.Size)
		}
		fmt.Printf("\n")
	}
	if job.DownloadURL != "" {
		fmt.Printf("Download: %s\n\n", job.DownloadURL)
	}

	fmt.Printf("Created: %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	if job.StartedAt != nil {
		fmt.Printf("Started: %s\n", job.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if job.CompletedAt != nil {
		fmt.Printf("Completed: %s\n", job.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runJobsFailures(dbPath, jobID string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	database, err := openDatabase(cfg, dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	store := export.NewSQLiteFailureStore(database)
	failures, err := store.List(jobID)
	if err != nil {
		return fmt.Errorf("failed to list failures: %w", err)
	}

	if len(failures) == 0 {
		fmt.Printf("No failures recorded for job %s\n", jobID)
		return nil
	}

	fmt.Printf("%-18s %-30s %s\n", "CODE", "MESSAGE", "CONTEXT")
	fmt.Printf("%-18s %-30s %s\n", "----", "-------", "-------")
	for _, failure := range failures {
		fmt.Printf("%-18s %-30s %s\n",
			failure.Code,
			truncate(failure.Message, 30),
			failure.Context)
	}
	fmt.Printf("\nTotal: %d failure(s)\n", len(failures))
	return nil
}

// truncate shortens a string to maxLen characters
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
