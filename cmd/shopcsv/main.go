package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harborline/shopcsv/cmd/shopcsv/commands"
	"github.com/harborline/shopcsv/logger"
)

var rootCmd = &cobra.Command{
	Use:   "shopcsv",
	Short: "shopcsv - resumable product catalog to bulk-import CSV exporter",
	Long: `shopcsv exports a product catalog into bulk-import CSV files.

Variable products are flattened into one row per variant plus one row per
image, with file rotation, pause/resume, and overlap protection built in.

Available commands:
  export   - Start (or resume) an export job
  resume   - Resume a paused export job
  jobs     - Inspect export jobs and their failure logs
  validate - Check an existing CSV file for the required columns
  version  - Show version information

Examples:
  shopcsv export --status publish          # Export published products
  shopcsv export --job-id nightly --images # Named job including image rows
  shopcsv resume nightly                   # Continue after a pause
  shopcsv jobs ls --status paused          # List paused jobs
  shopcsv validate out/products.csv        # Verify required columns`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonOutput); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON instead of console output")

	rootCmd.AddCommand(commands.ExportCmd)
	rootCmd.AddCommand(commands.ResumeCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.ValidateCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
