package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/handwriter/internal/fontmaker"
	"github.com/MeKo-Tech/handwriter/internal/pipeline"
	"github.com/MeKo-Tech/handwriter/internal/utils"
	"github.com/spf13/cobra"
)

// fontmakeCmd runs the whole font-making pipeline.
var fontmakeCmd = &cobra.Command{
	Use:   "fontmake",
	Short: "Run every font-making stage in order",
	Long: `Run transparentize, chop and trim in order, each stage announced before it
starts. With --with-threshold (or pipeline.threshold) the src images are
thresholded into bnw first.

The run stops at the first failing stage and exits non-zero; "Done." is
printed only when every stage succeeded.

Examples:
  handwriter fontmake
  handwriter fontmake --with-threshold
  handwriter fontmake --progress log --report report.json`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runFontmakeCommand,
}

func init() {
	rootCmd.AddCommand(fontmakeCmd)
	fontmakeCmd.Flags().Bool("with-threshold", false, "threshold src into bnw before the other stages")
	fontmakeCmd.Flags().String("report", "", "write a JSON run report to this file")
	addProgressFlag(fontmakeCmd)
}

func runFontmakeCommand(cmd *cobra.Command, args []string) error {
	cfg, err := validConfig()
	if err != nil {
		return err
	}

	withThreshold := cfg.Pipeline.Threshold
	if cmd.Flags().Changed("with-threshold") {
		withThreshold, _ = cmd.Flags().GetBool("with-threshold")
	}

	progress := progressFactory(progressMode(cmd, cfg), cfg.Pipeline.LogEvery, cmd.ErrOrStderr())
	stages, err := fontmaker.NewStages(cfg, withThreshold, progress)
	if err != nil {
		return err
	}

	report, runErr := runStages(cmd, stages...)

	if path, _ := cmd.Flags().GetString("report"); path != "" && report != nil {
		if err := writeReport(report, path); err != nil {
			return err
		}
	}
	return runErr
}

// writeReport stores the report as JSON at path.
func writeReport(report *pipeline.Report, path string) error {
	data, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(data+"\n"), 0o644); err != nil { //nolint:gosec // G306: report is not sensitive
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
