package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/dermascan/internal/scan"
	"github.com/spf13/cobra"
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan [images...]",
	Short: "Crop and classify skin lesion images",
	Long: `Crop the lesion region out of one or more photos and classify it.

The selection is given in preview coordinates, the way a camera preview
shows the photo (cover fit). Without a preview size the photo's own pixel
size is used.

Supported formats: JPEG, PNG, WebP, BMP, TIFF

Examples:
  dermascan scan lesion.jpg
  dermascan scan lesion.jpg --preview-width 390 --preview-height 520 --box 220
  dermascan scan lesion.jpg --rect 40,60,220,220 --format json
  dermascan scan a.jpg b.jpg --format csv --output results.csv`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runScanCommand,
}

func runScanCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("no input files provided")
	}

	cfg := GetConfig()
	applyModelFlags(cfg, cmd)
	applyCropFlags(cfg, cmd)
	applyOutputFlags(cfg, cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := validateOutputFormat(cfg.Output.Format); err != nil {
		return err
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

	slog.Debug("Scanning images", "count", len(args), "mode", scanCfg.DefaultMode)
	res, err := scanner.ScanFiles(commandContext(cmd), args, scan.BatchOptions{
		Workers:  1,
		Template: tmpl,
	})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	var out string
	if len(res.Items) == 1 {
		out, err = scan.Format(res.Items[0].Result, cfg.Output.Format)
	} else {
		out, err = scan.FormatBatch(res, cfg.Output.Format)
	}
	if err != nil {
		return err
	}
	return writeOutput(cmd, out, cfg.Output.File)
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addModelFlags(scanCmd)
	addCropFlags(scanCmd)
	addOutputFlags(scanCmd)
}
