package pipeline

import (
	"image"
	"image/color"
)

// Target is a colour attachment plus a depth buffer in [0, 1].
// Color row 0 is the top of the image; the rasterizer works bottom-up like GL
// window coordinates and flips on write.
type Target struct {
	Color *image.NRGBA
	Depth []float32
}

// NewTarget returns a transparent black target with depth at the far plane,
// ready to draw into without a Clear.
func NewTarget(width, height int) *Target {
	t := &Target{
		Color: image.NewNRGBA(image.Rect(0, 0, width, height)),
		Depth: make([]float32, width*height),
	}
	for i := range t.Depth {
		t.Depth[i] = 1
	}
	return t
}

func (t *Target) Size() (int, int) {
	b := t.Color.Bounds()
	return b.Dx(), b.Dy()
}

// Clear fills the colour buffer with c and resets depth to the far plane.
func (t *Target) Clear(c color.NRGBA) {
	pix := t.Color.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, c.A
	}
	for i := range t.Depth {
		t.Depth[i] = 1
	}
}

// At returns the colour at window coordinate (x, y), y up.
func (t *Target) At(x, y int) color.NRGBA {
	_, h := t.Size()
	return t.Color.NRGBAAt(x, h-1-y)
}
