package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/handwriter/internal/config"
	"github.com/MeKo-Tech/handwriter/internal/fontmaker"
	"github.com/MeKo-Tech/handwriter/internal/pipeline"
	"github.com/spf13/cobra"
)

// stageHelp describes the single-stage commands.
var stageHelp = map[string]struct{ short, long string }{
	config.StageThreshold: {
		short: "Convert src images to black and white in bnw",
		long: `Threshold every image in the source directory at the configured level
(80% by default) and write the result under the same name to bnw.
Subdirectories are skipped and existing files in bnw are kept.`,
	},
	config.StageTransparentize: {
		short: "Make the background of bnw images transparent",
		long: `Turn the light background of every bnw image transparent and write the
result as PNG to the transparent directory.`,
	},
	config.StageChop: {
		short: "Split letter series into numbered variations",
		long: `Split every series image in the transparent directory into one image per
letter variation. Variations of series "a" are written to chopped/a/1.png,
chopped/a/2.png and so on.`,
	},
	config.StageTrim: {
		short: "Trim chopped variations to their content bounds",
		long: `Crop every chopped variation to its content bounds, the rows and columns
holding more than one distinct colour, and write it to the ready directory,
renumbering variations in order.`,
	},
}

func init() {
	for _, name := range fontmaker.StageNames {
		rootCmd.AddCommand(newStageCommand(name))
	}
}

// newStageCommand builds the command that runs one stage on its own.
func newStageCommand(name string) *cobra.Command {
	help := stageHelp[name]
	c := &cobra.Command{
		Use:          name,
		Short:        help.short,
		Long:         help.long,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := validConfig()
			if err != nil {
				return err
			}
			progress := progressFactory(progressMode(cmd, cfg), cfg.Pipeline.LogEvery, cmd.ErrOrStderr())
			stage, err := fontmaker.NewStage(cfg, name, progress)
			if err != nil {
				return err
			}
			_, err = runStages(cmd, stage)
			return err
		},
	}
	addProgressFlag(c)
	return c
}

func addProgressFlag(c *cobra.Command) {
	c.Flags().String("progress", "none", "per-file progress: none, console, log or both")
}

// progressMode returns the --progress flag, falling back to pipeline.progress.
func progressMode(cmd *cobra.Command, cfg *config.Config) string {
	mode := cfg.Pipeline.Progress
	if cmd.Flags().Changed("progress") {
		mode, _ = cmd.Flags().GetString("progress")
	}
	return mode
}

// progressFactory creates per-stage progress reporting for mode. Log lines
// are written every logEvery files.
func progressFactory(mode string, logEvery int, out io.Writer) pipeline.ProgressFactory {
	console := func(stage string) pipeline.ProgressCallback {
		return pipeline.NewConsoleProgressCallback(out, stage)
	}
	logged := func(stage string) pipeline.ProgressCallback {
		return pipeline.NewLogProgressCallback(slog.Default(), slog.LevelInfo, stage).WithInterval(logEvery)
	}
	switch mode {
	case "console":
		return console
	case "log":
		return logged
	case "both":
		return func(stage string) pipeline.ProgressCallback {
			return pipeline.NewMultiProgressCallback(console(stage), logged(stage))
		}
	default:
		return pipeline.NoProgress
	}
}

// runStages runs stages in order, printing announcements and the final
// message to the command output. SIGINT and SIGTERM cancel the run.
func runStages(cmd *cobra.Command, stages ...pipeline.Stage) (*pipeline.Report, error) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := pipeline.NewBuilder().
		WithOutput(cmd.OutOrStdout()).
		WithLogger(slog.Default()).
		WithStages(stages...).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	names := make([]string, 0, len(stages))
	for _, s := range runner.Stages() {
		names = append(names, s.Name)
	}
	slog.Debug("running stages", "stages", names)

	report, err := runner.Run(ctx)
	if report != nil {
		slog.Debug("pipeline report", "succeeded", report.Succeeded, "summary", report.Summary())
	}
	return report, err
}
