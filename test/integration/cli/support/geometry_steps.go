package support

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/dermascan/internal/geometry"
	"github.com/cucumber/godog"
)

func (testCtx *TestContext) aSourceImageOf(w, h int) error {
	testCtx.Source = geometry.SourceSize{Width: w, Height: h}
	return nil
}

func (testCtx *TestContext) aPreviewOf(w, h float64) error {
	testCtx.Viewport = geometry.Viewport{Width: w, Height: h}
	return nil
}

func (testCtx *TestContext) theSelectionIs(raw string) error {
	sel, err := geometry.ParseSelection(raw)
	if err != nil {
		return err
	}
	testCtx.Selection = sel
	return nil
}

func (testCtx *TestContext) theWholePreviewIsSelected() error {
	testCtx.Selection = geometry.FullSelection(testCtx.Viewport)
	return nil
}

func (testCtx *TestContext) aCenteredTargetBoxOf(side float64) error {
	testCtx.Selection = geometry.TargetBox(testCtx.Viewport, side)
	return nil
}

func (testCtx *TestContext) theSelectionIsResolved() error {
	testCtx.Rect, testCtx.GeomErr = geometry.Resolve(testCtx.Source, testCtx.Viewport, testCtx.Selection)
	return nil
}

func (testCtx *TestContext) theCropRectangleShouldBe(x, y, w, h int) error {
	if testCtx.GeomErr != nil {
		return fmt.Errorf("resolve failed: %w", testCtx.GeomErr)
	}
	want := geometry.PixelRect{X: x, Y: y, Width: w, Height: h}
	if testCtx.Rect != want {
		return fmt.Errorf("expected crop %s, got %s", want, testCtx.Rect)
	}
	return nil
}

func (testCtx *TestContext) theCropShouldLieInsideTheSource() error {
	if !testCtx.Rect.Within(testCtx.Source) {
		return fmt.Errorf("crop %s exceeds %dx%d", testCtx.Rect, testCtx.Source.Width, testCtx.Source.Height)
	}
	return nil
}

func (testCtx *TestContext) resolvingShouldFailWithAGeometryError() error {
	var geoErr *geometry.GeometryError
	if !errors.As(testCtx.GeomErr, &geoErr) {
		return fmt.Errorf("expected a geometry error, got %v", testCtx.GeomErr)
	}
	return nil
}

// RegisterGeometrySteps registers the crop mapping steps.
func (testCtx *TestContext) RegisterGeometrySteps(sc *godog.ScenarioContext) {
	sc.Step(`^a source image of (\d+)x(\d+) pixels$`, testCtx.aSourceImageOf)
	sc.Step(`^a preview of (\d+(?:\.\d+)?)x(\d+(?:\.\d+)?)$`, testCtx.aPreviewOf)
	sc.Step(`^the selection is "([^"]*)"$`, testCtx.theSelectionIs)
	sc.Step(`^the whole preview is selected$`, testCtx.theWholePreviewIsSelected)
	sc.Step(`^a centered target box of (\d+(?:\.\d+)?)$`, testCtx.aCenteredTargetBoxOf)
	sc.Step(`^the selection is resolved$`, testCtx.theSelectionIsResolved)
	sc.Step(`^the crop rectangle should be (\d+),(\d+),(\d+),(\d+)$`, testCtx.theCropRectangleShouldBe)
	sc.Step(`^the crop should lie inside the source$`, testCtx.theCropShouldLieInsideTheSource)
	sc.Step(`^resolving should fail with a geometry error$`, testCtx.resolvingShouldFailWithAGeometryError)
}
