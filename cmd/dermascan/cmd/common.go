package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MeKo-Tech/dermascan/internal/classifier"
	"github.com/MeKo-Tech/dermascan/internal/config"
	"github.com/MeKo-Tech/dermascan/internal/geometry"
	"github.com/MeKo-Tech/dermascan/internal/scan"
	"github.com/spf13/cobra"
)

const (
	outputFormatJSON = "json"
	outputFormatCSV  = "csv"
	outputFormatText = "text"
)

// newClassifier builds and loads the classifier. Tests swap it for a fake session.
var newClassifier = func(cfg classifier.Config) (*classifier.Classifier, error) {
	c, err := classifier.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Initialize(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// addModelFlags registers the classifier overrides.
func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().String("model", "", "path to the classifier model (overrides models-dir)")
	cmd.Flags().String("labels", "", "path to the labels file (overrides models-dir)")
	cmd.Flags().Float64("threshold", 0.3, "malignant probability threshold for binary models (0.0-1.0)")
	cmd.Flags().Int("input-size", 224, "square model input size in pixels")
	cmd.Flags().String("output-kind", "auto", "model output kind: auto, binary, multiclass")
}

// addCropFlags registers the crop geometry flags.
func addCropFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", "", "crop mode: box, rect, full, auto (default from config)")
	cmd.Flags().String("rect", "", "selection in preview coordinates: left,top,width,height")
	cmd.Flags().Float64("box", 0, "target box side in preview units (default from config)")
	cmd.Flags().Float64("preview-width", 0, "preview width the selection refers to (0 = image width)")
	cmd.Flags().Float64("preview-height", 0, "preview height the selection refers to (0 = image height)")
	cmd.Flags().String("crop-dir", "", "directory for crop artifacts")
	cmd.Flags().String("crop-format", "", "crop artifact format: jpeg, png, webp")
	cmd.Flags().Int("quality", 0, "crop artifact quality for jpeg/webp (1-100)")
}

// addOutputFlags registers the result output flags.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", outputFormatText, "output format: text, json, csv")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
}

// applyModelFlags copies changed model flags into cfg.
func applyModelFlags(cfg *config.Config, cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model.ModelPath, _ = flags.GetString("model")
	}
	if flags.Changed("labels") {
		cfg.Model.LabelsPath, _ = flags.GetString("labels")
	}
	if flags.Changed("threshold") {
		cfg.Model.MalignantThreshold, _ = flags.GetFloat64("threshold")
	}
	if flags.Changed("input-size") {
		cfg.Model.InputSize, _ = flags.GetInt("input-size")
	}
	if flags.Changed("output-kind") {
		cfg.Model.OutputKind, _ = flags.GetString("output-kind")
	}
}

// applyCropFlags copies changed crop flags into cfg.
func applyCropFlags(cfg *config.Config, cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Crop.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("box") {
		cfg.Crop.TargetBoxSize, _ = flags.GetFloat64("box")
	}
	if flags.Changed("preview-width") {
		cfg.Crop.PreviewWidth, _ = flags.GetFloat64("preview-width")
	}
	if flags.Changed("preview-height") {
		cfg.Crop.PreviewHeight, _ = flags.GetFloat64("preview-height")
	}
	if flags.Changed("crop-dir") {
		cfg.Crop.OutputDir, _ = flags.GetString("crop-dir")
	}
	if flags.Changed("crop-format") {
		cfg.Crop.Format, _ = flags.GetString("crop-format")
	}
	if flags.Changed("quality") {
		cfg.Crop.Quality, _ = flags.GetInt("quality")
	}
}

// applyOutputFlags copies changed output flags into cfg.
func applyOutputFlags(cfg *config.Config, cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if flags.Changed("output") {
		cfg.Output.File, _ = flags.GetString("output")
	}
}

// validateOutputFormat checks a result format name.
func validateOutputFormat(format string) error {
	valid := []string{outputFormatText, outputFormatJSON, outputFormatCSV}
	if !slices.Contains(valid, format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", format, strings.Join(valid, ", "))
	}
	return nil
}

// requestTemplate builds the per-image request settings from the flags. The
// viewport and box come from the scanner config.
func requestTemplate(cmd *cobra.Command) (scan.Request, error) {
	var req scan.Request
	if cmd.Flags().Changed("mode") {
		raw, _ := cmd.Flags().GetString("mode")
		mode, err := geometry.ParseMode(raw)
		if err != nil {
			return req, err
		}
		req.Mode = mode
	}
	if raw, _ := cmd.Flags().GetString("rect"); raw != "" {
		sel, err := geometry.ParseSelection(raw)
		if err != nil {
			return req, err
		}
		req.Selection = &sel
	}
	return req, nil
}

// writeOutput writes content to file, or to the command's stdout when file is empty.
func writeOutput(cmd *cobra.Command, content, file string) error {
	if file == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), content)
		return err
	}
	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Results written to %s\n", file)
	return nil
}

// commandContext returns the command's context, or a background context when
// RunE is invoked directly.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
