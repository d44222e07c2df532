package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/dermascan/internal/scan"
	"github.com/MeKo-Tech/dermascan/internal/utils"
	"github.com/spf13/cobra"
)

// cropOutput is the JSON form of a crop command result.
type cropOutput struct {
	*scan.CropResult
	Path string `json:"path"`
}

// cropCmd represents the crop command.
var cropCmd = &cobra.Command{
	Use:   "crop [image]",
	Short: "Crop the lesion region of an image without classifying it",
	Long: `Resolve the selection against the photo, write the cropped artifact and
print the pixel rectangle. No model is needed.

Examples:
  dermascan crop lesion.jpg --preview-width 390 --preview-height 520
  dermascan crop lesion.jpg --rect 40,60,220,220 --save crop.png
  dermascan crop lesion.jpg --mode auto --format json`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runCropCommand,
}

func runCropCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	applyCropFlags(cfg, cmd)
	applyOutputFlags(cfg, cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := validateOutputFormat(cfg.Output.Format); err != nil {
		return err
	}

	req, err := requestTemplate(cmd)
	if err != nil {
		return err
	}
	scanCfg, err := cfg.ToScanConfig()
	if err != nil {
		return err
	}
	scanner, err := scan.New(scanCfg, nil)
	if err != nil {
		return err
	}

	path := args[0]
	req.Image, err = utils.ReadImageFile(path)
	if err != nil {
		return err
	}
	req.Filename = filepath.Base(path)

	res, err := scanner.Crop(commandContext(cmd), req)
	if err != nil {
		return fmt.Errorf("crop failed: %w", err)
	}

	saved, err := saveCrop(cmd, scanner, res, path)
	if err != nil {
		return err
	}

	var out string
	switch cfg.Output.Format {
	case outputFormatJSON:
		data, err := json.MarshalIndent(cropOutput{CropResult: res, Path: saved}, "", "  ")
		if err != nil {
			return err
		}
		out = string(data) + "\n"
	case outputFormatCSV:
		out = "file,x,y,w,h,path\n" + fmt.Sprintf("%s,%d,%d,%d,%d,%s\n",
			req.Filename, res.Rect.X, res.Rect.Y, res.Rect.Width, res.Rect.Height, saved)
	default:
		out = fmt.Sprintf("Source: %dx%d\nViewport: %gx%g\nMode: %s\nCrop: %s\nSaved: %s\n",
			res.Source.Width, res.Source.Height, res.Viewport.Width, res.Viewport.Height,
			res.Mode, res.Rect.String(), saved)
	}
	return writeOutput(cmd, out, cfg.Output.File)
}

// saveCrop writes the artifact to --save, or as <name>-crop into the crop directory.
func saveCrop(cmd *cobra.Command, scanner *scan.Scanner, res *scan.CropResult, src string) (string, error) {
	target, _ := cmd.Flags().GetString("save")
	if target == "" {
		stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		return scanner.SaveCrop(res.Image, stem+"-crop")
	}

	cfg := scanner.Config()
	format := cfg.Format
	if ext := strings.TrimPrefix(filepath.Ext(target), "."); ext != "" {
		f, err := utils.ParseFormat(ext)
		if err != nil {
			return "", err
		}
		format = f
	}
	if err := utils.SaveImage(target, res.Image, format, cfg.Quality); err != nil {
		return "", fmt.Errorf("failed to save crop: %w", err)
	}
	return target, nil
}

func init() {
	rootCmd.AddCommand(cropCmd)
	addCropFlags(cropCmd)
	addOutputFlags(cropCmd)
	cropCmd.Flags().String("save", "", "write the crop to this path (format from extension)")
}
