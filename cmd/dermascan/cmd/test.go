package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/MeKo-Tech/dermascan/internal/models"
	"github.com/MeKo-Tech/dermascan/internal/onnx"
	"github.com/spf13/cobra"
)

// testCmd represents the test command.
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test ONNX Runtime setup and model files",
	Long: `Test the ONNX Runtime installation and verify that the classifier
model and labels can be found.

This command performs basic checks to ensure:
- ONNX Runtime is properly installed
- The classifier model file exists
- The labels file exists (optional for binary models)`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, cmd.Short)
		_, _ = fmt.Fprintln(out, "Testing ONNX Runtime setup...")
		_, _ = fmt.Fprintln(out)

		cfg := GetConfig()
		applyModelFlags(cfg, cmd)
		clsCfg := cfg.ToClassifierConfig()

		info, err := onnx.CheckRuntime(cfg.GPU.Enabled)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "❌ ONNX Runtime test failed: %v\n", err)
			_, _ = fmt.Fprintln(out)
			_, _ = fmt.Fprintln(out, "Please ensure ONNX Runtime is properly set up:")
			_, _ = fmt.Fprintln(out, "1. Install the onnxruntime shared library")
			_, _ = fmt.Fprintln(out, "2. Or set ONNXRUNTIME_SHARED_LIBRARY_PATH to its location")
			return errors.New("onnx runtime not available")
		}
		_, _ = fmt.Fprintf(out, "✓ ONNX Runtime %s (%s)\n", info.Version, info.LibraryPath)

		if err := models.ValidateModelExists(clsCfg.ModelPath); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "❌ Model check failed: %v\n", err)
			_, _ = fmt.Fprintln(out)
			printExpectedAssets(out, cfg.ModelsDir)
			return err
		}
		_, _ = fmt.Fprintf(out, "✓ Model %s\n", clsCfg.ModelPath)

		if err := models.ValidateModelExists(clsCfg.LabelsPath); err != nil {
			_, _ = fmt.Fprintf(out, "- No labels file at %s (binary models do not need one)\n", clsCfg.LabelsPath)
		} else {
			_, _ = fmt.Fprintf(out, "✓ Labels %s\n", clsCfg.LabelsPath)
		}

		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintln(out, "🎉 All tests passed! ONNX Runtime is ready for use.")
		return nil
	},
}

// printExpectedAssets lists the files the classifier looks for.
func printExpectedAssets(w io.Writer, modelsDir string) {
	dir := filepath.Join(models.GetModelsDir(modelsDir), models.TypeClassifier)
	_, _ = fmt.Fprintf(w, "Expected assets in %s:\n", dir)
	for _, a := range models.ListAvailableModels() {
		_, _ = fmt.Fprintf(w, "  %-30s %s\n", a.Filename, a.Description)
	}
}

func init() {
	rootCmd.AddCommand(testCmd)
	testCmd.Flags().String("model", "", "path to the classifier model (overrides models-dir)")
	testCmd.Flags().String("labels", "", "path to the labels file (overrides models-dir)")
}
