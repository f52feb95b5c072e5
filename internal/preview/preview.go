// Package preview renders tensors to captioned grayscale PNG images.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/mrsinham/noiseforge/internal/tensor"
)

// MinSize is the smallest edge of a rendered panel; smaller slices are
// upscaled so captions stay legible.
const MinSize = 256

// Window maps intensities in [Low, High] to black..white.
type Window struct {
	Low, High float64
}

// WindowOf returns the min/max window across all given tensors.
func WindowOf(ts ...*tensor.Tensor) Window {
	w := Window{Low: ts[0].Min(), High: ts[0].Max()}
	for _, t := range ts[1:] {
		w.Low = min(w.Low, t.Min())
		w.High = max(w.High, t.Max())
	}
	return w
}

func (w Window) gray(v float64) uint8 {
	span := w.High - w.Low
	if !(span > 0) {
		return 0
	}
	s := (v - w.Low) / span * 255
	switch {
	case !(s > 0):
		return 0
	case s >= 255:
		return 255
	default:
		return uint8(s + 0.5)
	}
}

// Render draws the first 2D slice of t through w, upscaled to MinSize, with
// caption at the top.
func Render(t *tensor.Tensor, w Window, caption string) (*image.RGBA, error) {
	if t.NDim() < 2 {
		return nil, fmt.Errorf("%w: preview needs at least 2 dimensions, got %v", tensor.ErrShape, t.Shape())
	}
	height, width := t.Dim(t.NDim()-2), t.Dim(t.NDim()-1)
	data := t.Data()[:width*height]

	src := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g := w.gray(data[y*width+x])
			src.SetRGBA(x, y, color.RGBA{g, g, g, 255})
		}
	}

	scale := max(1, (MinSize+min(width, height)-1)/min(width, height))
	dst := image.NewRGBA(image.Rect(0, 0, width*scale, height*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	drawCaption(dst, caption)
	return dst, nil
}

// SideBySide renders original and noised with a shared window, left to right.
func SideBySide(original, noised *tensor.Tensor, leftCaption, rightCaption string) (*image.RGBA, error) {
	if !original.SameShape(noised) {
		return nil, fmt.Errorf("%w: %v vs %v", tensor.ErrShape, original.Shape(), noised.Shape())
	}
	w := WindowOf(original, noised)

	left, err := Render(original, w, leftCaption)
	if err != nil {
		return nil, err
	}
	right, err := Render(noised, w, rightCaption)
	if err != nil {
		return nil, err
	}

	lb := left.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, lb.Dx()*2, lb.Dy()))
	draw.Draw(out, lb, left, image.Point{}, draw.Src)
	draw.Draw(out, lb.Add(image.Pt(lb.Dx(), 0)), right, image.Point{}, draw.Src)
	return out, nil
}

// drawCaption writes text near the top-left with a black outline.
func drawCaption(img *image.RGBA, text string) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	x := 6
	y := 4 + face.Metrics().Ascent.Ceil()

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}

	outlineThickness := 1
	for dx := -outlineThickness; dx <= outlineThickness; dx++ {
		for dy := -outlineThickness; dy <= outlineThickness; dy++ {
			if dx != 0 || dy != 0 {
				drawer.Dot = fixed.P(x+dx, y+dy)
				drawer.DrawString(text)
			}
		}
	}

	drawer.Src = image.NewUniform(color.White)
	drawer.Dot = fixed.P(x, y)
	drawer.DrawString(text)
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
