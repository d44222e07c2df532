package cmd

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/MeKo-Tech/dermascan/internal/config"
	"github.com/MeKo-Tech/dermascan/internal/scan"
	"github.com/MeKo-Tech/dermascan/internal/utils"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command for parallel image processing.
var batchCmd = &cobra.Command{
	Use:   "batch [files or directories...]",
	Short: "Scan many images in parallel",
	Long: `Crop and classify many images with a pool of workers. Decoding and
cropping run in parallel; the model runs one inference at a time.

Directories are expanded to the supported images they contain.

Examples:
  dermascan batch photos/
  dermascan batch photos/ --recursive --workers 8
  dermascan batch a.jpg b.png --format json --output results.json`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

// batchSettings maps configuration and CLI overrides to the batch run.
type batchSettings struct {
	Workers         int
	ContinueOnError bool
	Recursive       bool
	Quiet           bool
}

func configToBatchSettings(cfg *config.Config, cmd *cobra.Command) batchSettings {
	s := batchSettings{
		Workers:         cfg.Batch.Workers,
		ContinueOnError: cfg.Batch.ContinueOnError,
		Recursive:       cfg.Batch.Recursive,
	}
	if cmd.Flags().Changed("workers") {
		s.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("continue-on-error") {
		s.ContinueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}
	if cmd.Flags().Changed("recursive") {
		s.Recursive, _ = cmd.Flags().GetBool("recursive")
	}
	if s.Workers <= 0 {
		s.Workers = runtime.NumCPU()
	}
	s.Quiet, _ = cmd.Flags().GetBool("quiet")
	return s
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	applyModelFlags(cfg, cmd)
	applyCropFlags(cfg, cmd)
	applyOutputFlags(cfg, cmd)
	settings := configToBatchSettings(cfg, cmd)
	cfg.Batch.Workers = settings.Workers
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := validateOutputFormat(cfg.Output.Format); err != nil {
		return err
	}

	files, err := utils.ListImages(args, settings.Recursive)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no supported images found")
	}

	tmpl, err := requestTemplate(cmd)
	if err != nil {
		return err
	}
	scanCfg, err := cfg.ToScanConfig()
	if err != nil {
		return err
	}
	cls, err := newClassifier(cfg.ToClassifierConfig())
	if err != nil {
		return fmt.Errorf("failed to load classifier: %w", err)
	}
	defer func() { _ = cls.Close() }()

	scanner, err := scan.New(scanCfg, cls)
	if err != nil {
		return err
	}

	if !settings.Quiet {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Processing %d files...\n", len(files))
	}

	res, runErr := scanner.ScanFiles(commandContext(cmd), files, scan.BatchOptions{
		Workers:         settings.Workers,
		ContinueOnError: settings.ContinueOnError,
		Template:        tmpl,
	})

	out, err := scan.FormatBatch(res, cfg.Output.Format)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd, out, cfg.Output.File); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("batch processing failed: %w", runErr)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addModelFlags(batchCmd)
	addCropFlags(batchCmd)
	addOutputFlags(batchCmd)

	batchCmd.Flags().IntP("workers", "w", 0, fmt.Sprintf("number of parallel workers (default: %d)", runtime.NumCPU()))
	batchCmd.Flags().BoolP("recursive", "r", false, "recursively scan directories")
	batchCmd.Flags().Bool("continue-on-error", true, "record per-file errors instead of stopping")
	batchCmd.Flags().Bool("quiet", false, "suppress progress output")
}
