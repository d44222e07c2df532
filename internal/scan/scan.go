package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/dermascan/internal/classifier"
	"github.com/MeKo-Tech/dermascan/internal/geometry"
	"github.com/MeKo-Tech/dermascan/internal/utils"
	"github.com/google/uuid"
)

// ErrSelectionRequired is returned for rect mode without a selection.
var ErrSelectionRequired = errors.New("scan: rect mode requires a selection")

// ImageClassifier is the part of the classifier a Scanner needs.
type ImageClassifier interface {
	IsReady() bool
	ClassifyImage(ctx context.Context, img image.Image) (*classifier.Result, error)
}

// Config controls cropping and artifact output.
type Config struct {
	OutputDir     string // empty means <os temp>/dermascan
	Format        utils.Format
	Quality       int
	TargetBoxSize float64
	MinCropSize   float64
	DefaultMode   geometry.Mode
	Viewport      geometry.Viewport // used when a request leaves it unset
}

// DefaultConfig returns the stock crop settings.
func DefaultConfig() Config {
	return Config{
		Format:        utils.FormatJPEG,
		Quality:       utils.DefaultQuality,
		TargetBoxSize: 220,
		MinCropSize:   60,
		DefaultMode:   geometry.ModeBox,
	}
}

// Request is one scan attempt.
type Request struct {
	Image     []byte
	Filename  string
	Viewport  geometry.Viewport // zero means the source pixel size
	Mode      geometry.Mode     // empty means the configured default
	Selection *geometry.Selection
	BoxSize   float64 // zero means the configured target box size
}

// Timings records per-stage durations.
type Timings struct {
	DecodeMs   int64 `json:"decode_ms"`
	CropMs     int64 `json:"crop_ms"`
	SaveMs     int64 `json:"save_ms"`
	ClassifyMs int64 `json:"classify_ms"`
	TotalMs    int64 `json:"total_ms"`
}

// CropResult is the outcome of the crop-only path.
type CropResult struct {
	Source    geometry.SourceSize `json:"source"`
	Viewport  geometry.Viewport   `json:"viewport"`
	Mode      geometry.Mode       `json:"mode"`
	Selection geometry.Selection  `json:"selection"`
	Rect      geometry.PixelRect  `json:"crop"`
	Image     *image.NRGBA        `json:"-"`
	Timings   Timings             `json:"processing"`
}

// Result is a completed scan.
type Result struct {
	ID             string              `json:"id"`
	Filename       string              `json:"filename,omitempty"`
	Source         geometry.SourceSize `json:"source"`
	Viewport       geometry.Viewport   `json:"viewport"`
	Mode           geometry.Mode       `json:"mode"`
	Selection      geometry.Selection  `json:"selection"`
	Crop           geometry.PixelRect  `json:"crop"`
	CroppedPath    string              `json:"cropped_path,omitempty"`
	Classification *classifier.Result  `json:"classification"`
	Processing     Timings             `json:"processing"`
	CreatedAt      time.Time           `json:"created_at"`
}

// Scanner runs decode, resolve, crop, save and classify.
type Scanner struct {
	cfg        Config
	classifier ImageClassifier
}

// New creates a Scanner. cls may be nil for crop-only use.
func New(cfg Config, cls ImageClassifier) (*Scanner, error) {
	if cfg.TargetBoxSize <= 0 {
		return nil, fmt.Errorf("target box size must be positive, got %v", cfg.TargetBoxSize)
	}
	if cfg.MinCropSize < 0 {
		return nil, fmt.Errorf("minimum crop size must be non-negative, got %v", cfg.MinCropSize)
	}
	if cfg.Format == "" {
		cfg.Format = utils.FormatJPEG
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = geometry.ModeBox
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(os.TempDir(), "dermascan")
	}
	return &Scanner{cfg: cfg, classifier: cls}, nil
}

// Config returns the effective configuration.
func (s *Scanner) Config() Config { return s.cfg }

// Ready reports whether full scans can run.
func (s *Scanner) Ready() bool {
	return s.classifier != nil && s.classifier.IsReady()
}

// Crop decodes the request image and applies the resolved crop rectangle.
func (s *Scanner) Crop(ctx context.Context, req Request) (*CropResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	img, _, err := utils.DecodeImage(req.Image)
	if err != nil {
		return nil, &classifier.DecodeError{Err: err}
	}
	decoded := time.Now()

	res, err := s.cropImage(img, req)
	if err != nil {
		return nil, err
	}
	res.Timings.DecodeMs = decoded.Sub(start).Milliseconds()
	res.Timings.CropMs = time.Since(decoded).Milliseconds()
	res.Timings.TotalMs = time.Since(start).Milliseconds()
	return res, nil
}

func (s *Scanner) cropImage(img image.Image, req Request) (*CropResult, error) {
	src := geometry.Size(img)
	vp := req.Viewport
	if vp.IsZero() {
		vp = s.cfg.Viewport
	}
	if vp.IsZero() {
		vp = geometry.Viewport{Width: float64(src.Width), Height: float64(src.Height)}
	}

	mode := req.Mode
	if mode == "" {
		mode = s.cfg.DefaultMode
		if req.Selection != nil {
			mode = geometry.ModeRect
		}
	}

	var (
		sel  geometry.Selection
		rect geometry.PixelRect
		err  error
	)
	switch mode {
	case geometry.ModeBox:
		side := req.BoxSize
		if side <= 0 || math.IsNaN(side) || math.IsInf(side, 0) {
			side = s.cfg.TargetBoxSize
		}
		sel = geometry.TargetBox(vp, side)
		rect, err = geometry.ResolveTargetBox(src, vp, side)
	case geometry.ModeRect:
		if req.Selection == nil {
			return nil, ErrSelectionRequired
		}
		sel = geometry.ClampSelection(*req.Selection, vp, s.cfg.MinCropSize)
		rect, err = geometry.Resolve(src, vp, sel)
	case geometry.ModeFull:
		sel = geometry.FullSelection(vp)
		rect, err = geometry.Resolve(src, vp, sel)
	case geometry.ModeAuto:
		sel, err = geometry.SuggestSelection(img, vp, s.cfg.MinCropSize)
		if err == nil {
			rect, err = geometry.Resolve(src, vp, sel)
		}
	default:
		_, err = geometry.ParseMode(string(mode))
	}
	if err != nil {
		return nil, err
	}

	cropped, err := geometry.Crop(img, rect)
	if err != nil {
		return nil, err
	}
	return &CropResult{
		Source:    src,
		Viewport:  vp,
		Mode:      mode,
		Selection: sel,
		Rect:      rect,
		Image:     cropped,
	}, nil
}

// SaveCrop writes the crop artifact as <name><ext> into the output directory.
func (s *Scanner) SaveCrop(img image.Image, name string) (string, error) {
	path := filepath.Join(s.cfg.OutputDir, name+s.cfg.Format.Extension())
	if err := utils.SaveImage(path, img, s.cfg.Format, s.cfg.Quality); err != nil {
		return "", fmt.Errorf("save crop: %w", err)
	}
	return path, nil
}

// PruneArtifacts removes crop artifacts older than maxAge from the output
// directory. Only files named <uuid><ext> are considered; anything else in
// the directory is left alone. A missing directory is not an error.
func (s *Scanner) PruneArtifacts(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.cfg.OutputDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read output dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !isArtifactName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.cfg.OutputDir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func isArtifactName(name string) bool {
	ext := filepath.Ext(name)
	if !utils.IsSupportedImage(name) {
		return false
	}
	_, err := uuid.Parse(strings.TrimSuffix(name, ext))
	return err == nil
}

// Scan runs the full pipeline. Readiness is checked before decoding. No
// partial result is returned on failure.
func (s *Scanner) Scan(ctx context.Context, req Request) (*Result, error) {
	if !s.Ready() {
		return nil, classifier.ErrModelNotReady
	}

	start := time.Now()
	id := uuid.NewString()
	crop, err := s.Crop(ctx, req)
	if err != nil {
		return nil, err
	}

	saveStart := time.Now()
	path, err := s.SaveCrop(crop.Image, id)
	if err != nil {
		return nil, err
	}
	saved := time.Now()

	cls, err := s.classifier.ClassifyImage(ctx, crop.Image)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	timings := crop.Timings
	timings.SaveMs = saved.Sub(saveStart).Milliseconds()
	timings.ClassifyMs = time.Since(saved).Milliseconds()
	timings.TotalMs = time.Since(start).Milliseconds()

	res := &Result{
		ID:             id,
		Filename:       req.Filename,
		Source:         crop.Source,
		Viewport:       crop.Viewport,
		Mode:           crop.Mode,
		Selection:      crop.Selection,
		Crop:           crop.Rect,
		CroppedPath:    path,
		Classification: cls,
		Processing:     timings,
		CreatedAt:      start.UTC(),
	}
	slog.Info("scan completed",
		"scan_id", id,
		"file", req.Filename,
		"crop", crop.Rect.String(),
		"label", cls.Label,
		"confidence", cls.Confidence,
		"duration_ms", timings.TotalMs)
	return res, nil
}
