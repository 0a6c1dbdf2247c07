package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/shopcsv/config"
)

func newExportTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "export"}
	addRunFlags(cmd)
	addScopeFlags(cmd)
	return cmd
}

func TestApplyExportFlagsOverlaysOnlyChangedFlags(t *testing.T) {
	cmd := newExportTestCmd()
	require.NoError(t, cmd.Flags().Set("format", "tsv"))
	require.NoError(t, cmd.Flags().Set("images", "false"))

	cfg := &config.Config{Export: config.ExportConfig{
		OutputDir:     "exports",
		Format:        "csv",
		BatchSize:     100,
		IncludeImages: true,
	}}
	applyExportFlags(cmd, cfg)

	assert.Equal(t, "tsv", cfg.Export.Format)
	assert.False(t, cfg.Export.IncludeImages)
	// Untouched flags leave the loaded configuration alone
	assert.Equal(t, "exports", cfg.Export.OutputDir)
	assert.Equal(t, 100, cfg.Export.BatchSize)
}

func TestBuildScopeImagesFollowConfig(t *testing.T) {
	t.Run("without the flag the configuration decides", func(t *testing.T) {
		cmd := newExportTestCmd()
		cfg := &config.Config{Export: config.ExportConfig{IncludeImages: true}}
		applyExportFlags(cmd, cfg)

		scope := buildScope(cmd, cfg)
		assert.True(t, scope.IncludeImages)
	})

	t.Run("the flag overrides the configuration", func(t *testing.T) {
		cmd := newExportTestCmd()
		require.NoError(t, cmd.Flags().Set("images", "false"))
		cfg := &config.Config{Export: config.ExportConfig{IncludeImages: true}}
		applyExportFlags(cmd, cfg)

		scope := buildScope(cmd, cfg)
		assert.False(t, scope.IncludeImages)
	})
}

func TestBuildScopeReadsFilterFlags(t *testing.T) {
	cmd := newExportTestCmd()
	require.NoError(t, cmd.Flags().Set("status", "publish"))
	require.NoError(t, cmd.Flags().Set("tag", "sale"))
	require.NoError(t, cmd.Flags().Set("ids", "2,3"))

	scope := buildScope(cmd, &config.Config{})
	assert.Equal(t, "publish", scope.Status)
	assert.Equal(t, "sale", scope.Tag)
	assert.Equal(t, []int64{2, 3}, scope.IDs)
	assert.Empty(t, scope.Category)
}
