package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/dermascan/internal/geometry"
	"github.com/MeKo-Tech/dermascan/internal/testutil"
	"github.com/disintegration/imaging"
)

// cropFixture records the crop a photo and selection must resolve to.
type cropFixture struct {
	Name      string              `json:"name"`
	InputFile string              `json:"input_file"`
	Source    geometry.SourceSize `json:"source"`
	Viewport  geometry.Viewport   `json:"viewport"`
	Selection geometry.Selection  `json:"selection"`
	Expected  geometry.PixelRect  `json:"expected_crop"`
}

type photo struct {
	name     string
	size     testutil.ImageSize
	viewport geometry.Viewport
	box      float64 // zero selects the whole preview
}

var photos = []photo{
	{"landscape_4000x3000", testutil.ImageSize{Width: 4000, Height: 3000}, geometry.Viewport{Width: 1000, Height: 1000}, 0},
	{"portrait_1200x1600", testutil.ImageSize{Width: 1200, Height: 1600}, geometry.Viewport{Width: 390, Height: 520}, 220},
	{"small_400x300", testutil.ImageSize{Width: 400, Height: 300}, geometry.Viewport{Width: 100, Height: 100}, 0},
	{"square_800x800", testutil.ImageSize{Width: 800, Height: 800}, geometry.Viewport{Width: 390, Height: 844}, 220},
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		generateImages   = flag.Bool("images", true, "Generate synthetic lesion photos")
		generateFixtures = flag.Bool("fixtures", true, "Generate crop fixtures")
		outDir           = flag.String("out", "testdata", "Output directory relative to the project root")
		verbose          = flag.Bool("v", false, "Verbose output")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic lesion photos and crop fixtures for dermascan.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	base := filepath.Join(root, *outDir)
	if *verbose {
		slog.Info("Output directory", "path", base)
	}

	if *generateImages {
		if err := writeImages(filepath.Join(base, "images", "lesions")); err != nil {
			slog.Error("Failed to generate lesion photos", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated lesion photos", "count", len(photos))
	}

	if *generateFixtures {
		if err := writeFixtures(filepath.Join(base, "fixtures")); err != nil {
			slog.Error("Failed to generate fixtures", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated crop fixtures", "count", len(photos))
	}
}

func writeImages(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, p := range photos {
		cfg := testutil.DefaultLesionConfig()
		cfg.Size = p.size
		path := filepath.Join(dir, p.name+".jpg")
		if err := imaging.Save(testutil.GenerateLesionImage(cfg), path, imaging.JPEGQuality(92)); err != nil {
			return fmt.Errorf("save %s: %w", path, err)
		}
	}
	return nil
}

func writeFixtures(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, p := range photos {
		src := geometry.SourceSize{Width: p.size.Width, Height: p.size.Height}
		sel := geometry.FullSelection(p.viewport)
		if p.box > 0 {
			sel = geometry.TargetBox(p.viewport, p.box)
		}
		rect, err := geometry.Resolve(src, p.viewport, sel)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", p.name, err)
		}

		data, err := json.MarshalIndent(cropFixture{
			Name:      p.name,
			InputFile: filepath.Join("images", "lesions", p.name+".jpg"),
			Source:    src,
			Viewport:  p.viewport,
			Selection: sel,
			Expected:  rect,
		}, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, p.name+".json"), data, 0o600); err != nil {
			return err
		}
	}
	return nil
}
