package geometry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Mode selects how the crop region is chosen.
type Mode string

const (
	// ModeBox uses the fixed centered target box.
	ModeBox Mode = "box"
	// ModeRect uses a user supplied rectangle.
	ModeRect Mode = "rect"
	// ModeFull uses the whole visible preview.
	ModeFull Mode = "full"
	// ModeAuto frames the most salient region of the image.
	ModeAuto Mode = "auto"
)

// ParseMode validates a mode name. An empty string yields ModeBox.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeBox, nil
	case ModeBox, ModeRect, ModeFull, ModeAuto:
		return m, nil
	default:
		return "", fmt.Errorf("invalid crop mode: %s (must be one of: box, rect, full, auto)", s)
	}
}

// TargetBox returns the centered square of the given side as a selection.
func TargetBox(vp Viewport, side float64) Selection {
	return Selection{
		Left:   (vp.Width - side) / 2,
		Top:    (vp.Height - side) / 2,
		Width:  side,
		Height: side,
	}
}

// FullSelection covers the whole viewport.
func FullSelection(vp Viewport) Selection {
	return Selection{Width: vp.Width, Height: vp.Height}
}

// ClampSelection enforces the minimum crop size and keeps the selection
// inside the viewport. The minimum is capped to the viewport dimensions and
// non-finite values are replaced before clamping.
func ClampSelection(sel Selection, vp Viewport, minSize float64) Selection {
	minW := math.Min(finiteOr(minSize, 0), vp.Width)
	minH := math.Min(finiteOr(minSize, 0), vp.Height)

	w := clampFloat(finiteOr(sel.Width, minW), minW, vp.Width)
	h := clampFloat(finiteOr(sel.Height, minH), minH, vp.Height)
	left := clampFloat(finiteOr(sel.Left, 0), 0, vp.Width-w)
	top := clampFloat(finiteOr(sel.Top, 0), 0, vp.Height-h)

	return Selection{Left: left, Top: top, Width: w, Height: h}
}

// ParseSelection parses "left,top,width,height".
func ParseSelection(s string) (Selection, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Selection{}, fmt.Errorf("invalid selection %q: want left,top,width,height", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Selection{}, fmt.Errorf("invalid selection %q: %w", s, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Selection{}, fmt.Errorf("invalid selection %q: non-finite value", s)
		}
		vals[i] = v
	}
	if vals[2] <= 0 || vals[3] <= 0 {
		return Selection{}, errors.New("selection width and height must be positive")
	}
	return Selection{Left: vals[0], Top: vals[1], Width: vals[2], Height: vals[3]}, nil
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return math.Max(lo, math.Min(v, hi))
}
