package geometry

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeBox, false},
		{"box", ModeBox, false},
		{" RECT ", ModeRect, false},
		{"full", ModeFull, false},
		{"auto", ModeAuto, false},
		{"circle", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSelection(t *testing.T) {
	sel, err := ParseSelection("10, 20.5,30,40")
	require.NoError(t, err)
	assert.Equal(t, Selection{Left: 10, Top: 20.5, Width: 30, Height: 40}, sel)

	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "0,0,0,10", "0,0,10,-1", "0,0,NaN,10", "0,0,10,Inf"} {
		_, err := ParseSelection(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestTargetBox_IsCentered(t *testing.T) {
	sel := TargetBox(Viewport{Width: 390, Height: 520}, 220)
	assert.Equal(t, Selection{Left: 85, Top: 150, Width: 220, Height: 220}, sel)

	cx, cy := sel.Center()
	assert.InDelta(t, 195, cx, 1e-9)
	assert.InDelta(t, 260, cy, 1e-9)
}

func TestClampSelection(t *testing.T) {
	vp := Viewport{Width: 400, Height: 300}

	tests := []struct {
		name string
		sel  Selection
		want Selection
	}{
		{
			name: "valid selection unchanged",
			sel:  Selection{Left: 10, Top: 10, Width: 100, Height: 80},
			want: Selection{Left: 10, Top: 10, Width: 100, Height: 80},
		},
		{
			name: "grown to minimum size",
			sel:  Selection{Left: 10, Top: 10, Width: 20, Height: 5},
			want: Selection{Left: 10, Top: 10, Width: 60, Height: 60},
		},
		{
			name: "shifted back inside",
			sel:  Selection{Left: 380, Top: 290, Width: 100, Height: 100},
			want: Selection{Left: 300, Top: 200, Width: 100, Height: 100},
		},
		{
			name: "shrunk to viewport",
			sel:  Selection{Left: -50, Top: -50, Width: 1000, Height: 1000},
			want: Selection{Left: 0, Top: 0, Width: 400, Height: 300},
		},
		{
			name: "non-finite values replaced",
			sel:  Selection{Left: math.NaN(), Top: math.Inf(-1), Width: math.NaN(), Height: 90},
			want: Selection{Left: 0, Top: 0, Width: 60, Height: 90},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampSelection(tt.sel, vp, 60))
		})
	}
}

func TestClampSelection_MinimumCappedToViewport(t *testing.T) {
	got := ClampSelection(Selection{Width: 10, Height: 10}, Viewport{Width: 40, Height: 50}, 60)
	assert.Equal(t, Selection{Width: 40, Height: 50}, got)
}

func TestCrop(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	img.Set(5, 3, color.RGBA{200, 10, 20, 255})

	out, err := Crop(img, PixelRect{X: 5, Y: 3, Width: 4, Height: 2})
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 4, 2), out.Bounds())
	assert.Equal(t, color.NRGBA{200, 10, 20, 255}, out.NRGBAAt(0, 0))

	// The source buffer is left untouched.
	out.Set(0, 0, color.Black)
	assert.Equal(t, color.RGBA{200, 10, 20, 255}, img.RGBAAt(5, 3))
}

func TestCrop_NonZeroOrigin(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 50, 50))
	base.Set(12, 14, color.RGBA{1, 2, 3, 255})
	sub := base.SubImage(image.Rect(10, 10, 40, 40))

	out, err := Crop(sub, PixelRect{X: 2, Y: 4, Width: 3, Height: 3})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{1, 2, 3, 255}, out.NRGBAAt(0, 0))
}

func TestCrop_RejectsOutsideRect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))

	_, err := Crop(img, PixelRect{X: 8, Y: 0, Width: 5, Height: 5})
	assert.Error(t, err)

	_, err = Crop(nil, PixelRect{Width: 1, Height: 1})
	assert.Error(t, err)
}

func TestSuggestSelection_StaysInViewport(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 160, 120))
	for y := 40; y < 80; y++ {
		for x := 90; x < 130; x++ {
			img.Set(x, y, color.RGBA{120, 60, 40, 255})
		}
	}
	vp := Viewport{Width: 320, Height: 240}

	sel, err := SuggestSelection(img, vp, 60)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, sel.Left, 0.0)
	assert.GreaterOrEqual(t, sel.Top, 0.0)
	assert.LessOrEqual(t, sel.Left+sel.Width, vp.Width+1e-9)
	assert.LessOrEqual(t, sel.Top+sel.Height, vp.Height+1e-9)
	assert.GreaterOrEqual(t, sel.Width, 60.0)

	rect, err := Resolve(Size(img), vp, sel)
	require.NoError(t, err)
	assert.True(t, rect.Within(Size(img)))
}
