package commands

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harborline/shopcsv/export"
)

// ValidateCmd checks an existing export file for the required columns
var ValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check an export file for the required columns",
	Long: `Read the header row of an export file and verify that every column
the bulk importer requires is present. Exits non-zero and lists the
missing columns when the file is not importable.

The delimiter is inferred from the file extension (.tsv uses tabs,
everything else commas) unless --delimiter overrides it.

Examples:
  shopcsv validate out/products.csv
  shopcsv validate out/products.txt --delimiter ';'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		delimiter, _ := cmd.Flags().GetString("delimiter")
		return runValidate(args[0], delimiter)
	},
}

func init() {
	ValidateCmd.Flags().String("delimiter", "", "Field delimiter (single character)")
}

func runValidate(path, delimiter string) error {
	comma, err := resolveDelimiter(path, delimiter)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = comma
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header row from %s: %w", path, err)
	}

	present := make(map[string]bool, len(header))
	for _, column := range header {
		present[strings.TrimSpace(column)] = true
	}

	var missing []string
	for _, column := range export.RequiredColumns() {
		if !present[column] {
			missing = append(missing, column)
		}
	}

	if len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "%s is missing %d required column(s):\n", path, len(missing))
		for _, column := range missing {
			fmt.Fprintf(os.Stderr, "  - %s\n", column)
		}
		return fmt.Errorf("%s is not importable", path)
	}

	fmt.Printf("%s: all %d required columns present (%d total)\n",
		path, len(export.RequiredColumns()), len(header))
	return nil
}

func resolveDelimiter(path, override string) (rune, error) {
	if override != "" {
		runes := []rune(override)
		if len(runes) != 1 {
			return 0, fmt.Errorf("delimiter must be a single character, got %q", override)
		}
		return runes[0], nil
	}
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t', nil
	}
	return ',', nil
}
