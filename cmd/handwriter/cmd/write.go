package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/handwriter/internal/config"
	"github.com/MeKo-Tech/handwriter/internal/writer"
	"github.com/spf13/cobra"
)

// writeCmd renders text with the font in the ready directory.
var writeCmd = &cobra.Command{
	Use:   "write [textfile]",
	Short: "Render text with the handwriting font",
	Long: `Render the text of a file (or --text) with the variations in the ready
directory and the bounding boxes file, then save the result as PNG or PDF.

Each letter uses a random variation; pass --seed for repeatable output.

Examples:
  handwriter write letter.txt
  handwriter write letter.txt -o letter.pdf --format pdf
  handwriter write --text "Hallo Welt" -d --connect --seed 7`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runWriteCommand,
}

func init() {
	rootCmd.AddCommand(writeCmd)
	writeCmd.Flags().String("text", "", "text to write instead of reading a file")
	writeCmd.Flags().StringP("output", "o", "out.png", "output file")
	writeCmd.Flags().String("format", "png", "output format: png or pdf")
	writeCmd.Flags().BoolP("debug", "d", false, "draw baselines and box sides on a white background")
	writeCmd.Flags().Bool("connect", false, "connect consecutive letters with a line")
	writeCmd.Flags().Int64("seed", 0, "variation seed (0 picks at random)")
	writeCmd.Flags().String("boxes", "", "bounding boxes file (JSON or YAML)")
}

// writeSettings holds the write options after flag overrides.
type writeSettings struct {
	output string
	format string
	seed   int64
	boxes  string
	opts   writer.Options
}

func writeSettingsFrom(cmd *cobra.Command, cfg *config.Config) (writeSettings, error) {
	s := writeSettings{
		output: cfg.Writer.Output,
		format: cfg.Writer.Format,
		seed:   cfg.Writer.Seed,
		boxes:  cfg.Paths.BoundingBoxesFile(),
		opts:   writer.OptionsFromConfig(cfg.Writer),
	}

	if cmd.Flags().Changed("output") {
		s.output, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("format") {
		s.format, _ = cmd.Flags().GetString("format")
	} else if strings.EqualFold(filepath.Ext(s.output), "."+writer.FormatPDF) {
		s.format = writer.FormatPDF
	}
	s.format = strings.ToLower(s.format)
	if s.format != writer.FormatPNG && s.format != writer.FormatPDF {
		return s, fmt.Errorf("unsupported format %q (must be png or pdf)", s.format)
	}
	if cmd.Flags().Changed("seed") {
		s.seed, _ = cmd.Flags().GetInt64("seed")
	}
	if cmd.Flags().Changed("boxes") {
		s.boxes, _ = cmd.Flags().GetString("boxes")
	}
	if cmd.Flags().Changed("debug") {
		s.opts.Debug, _ = cmd.Flags().GetBool("debug")
	}
	if cmd.Flags().Changed("connect") {
		s.opts.Connect, _ = cmd.Flags().GetBool("connect")
	}
	s.opts.Logger = slog.Default()
	return s, nil
}

// readText returns the --text value or the content of the file argument.
func readText(cmd *cobra.Command, args []string) (string, error) {
	if cmd.Flags().Changed("text") {
		if len(args) > 0 {
			return "", errors.New("pass either a text file or --text, not both")
		}
		return cmd.Flags().GetString("text")
	}
	if len(args) == 0 {
		return "", errors.New("no text given: pass a text file or --text")
	}
	data, err := os.ReadFile(args[0]) //nolint:gosec // G304: reading a user-provided text file is expected
	if err != nil {
		return "", fmt.Errorf("failed to read text file: %w", err)
	}
	return string(data), nil
}

func runWriteCommand(cmd *cobra.Command, args []string) error {
	cfg, err := validConfig()
	if err != nil {
		return err
	}
	settings, err := writeSettingsFrom(cmd, cfg)
	if err != nil {
		return err
	}
	text, err := readText(cmd, args)
	if err != nil {
		return err
	}

	boxes, err := writer.LoadBoundingBoxes(settings.boxes)
	if err != nil {
		return fmt.Errorf("failed to load bounding boxes: %w", err)
	}

	slog.Debug("Writing text", "chars", len([]rune(text)), "seed", settings.seed, "format", settings.format)
	img, err := writer.New(cfg.Paths.ReadyDir(), boxes).Write(text, settings.seed, settings.opts)
	if err != nil {
		return err
	}
	if err := writer.Save(img, settings.output, settings.format); err != nil {
		return fmt.Errorf("failed to save %s: %w", settings.output, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%dx%d)\n", settings.output, img.Bounds().Dx(), img.Bounds().Dy())
	return nil
}
