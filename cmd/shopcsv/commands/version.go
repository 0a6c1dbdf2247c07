package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harborline/shopcsv/version"
)

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show shopcsv version information",
	Long:  `Display version, build time, commit hash, and platform information for the shopcsv binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		info := version.Get()

		if jsonOutput {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error formatting JSON: %v\n", err)
				return
			}
			fmt.Println(string(output))
		} else {
			fmt.Printf("shopcsv %s\n", info.Version)
			fmt.Printf("  commit:   %s\n", info.CommitHash)
			fmt.Printf("  built:    %s\n", info.BuildTime)
			fmt.Printf("  platform: %s (%s)\n", info.Platform, info.GoVersion)
		}
	},
}

func init() {
	VersionCmd.Flags().BoolP("json", "j", false, "Output version info as JSON")
}
