package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"github.com/gorustyt/terrainview/common"
)

// Sampler reads a filtered colour at a texture coordinate.
type Sampler interface {
	Sample(uv common.Vec2) common.Vec4
}

type WrapMode int

const (
	WrapRepeat WrapMode = iota
	WrapClampToEdge
	WrapMirroredRepeat
)

func (w WrapMode) String() string {
	switch w {
	case WrapRepeat:
		return "repeat"
	case WrapClampToEdge:
		return "clamp_to_edge"
	case WrapMirroredRepeat:
		return "mirrored_repeat"
	default:
		return fmt.Sprintf("WrapMode(%d)", int(w))
	}
}

func ParseWrapMode(s string) (WrapMode, error) {
	switch s {
	case "", "repeat":
		return WrapRepeat, nil
	case "clamp", "clamp_to_edge":
		return WrapClampToEdge, nil
	case "mirror", "mirrored_repeat":
		return WrapMirroredRepeat, nil
	}
	return 0, fmt.Errorf("unknown wrap mode %q", s)
}

// wrap maps a texel index onto [0, n).
func (w WrapMode) wrap(i, n int) int {
	switch w {
	case WrapClampToEdge:
		return common.Clamp(i, 0, n-1)
	case WrapMirroredRepeat:
		m := common.FloorMod(i, 2*n)
		if m >= n {
			m = 2*n - 1 - m
		}
		return m
	default:
		return common.FloorMod(i, n)
	}
}

type Filter int

const (
	FilterLinear Filter = iota
	FilterNearest
)

func (f Filter) String() string {
	switch f {
	case FilterLinear:
		return "linear"
	case FilterNearest:
		return "nearest"
	default:
		return fmt.Sprintf("Filter(%d)", int(f))
	}
}

func ParseFilter(s string) (Filter, error) {
	switch s {
	case "", "linear":
		return FilterLinear, nil
	case "nearest":
		return FilterNearest, nil
	}
	return 0, fmt.Errorf("unknown filter %q", s)
}

// Texture2D is an immutable RGBA texture with a fixed sampling policy. It is
// safe for concurrent Sample calls.
//
// Texel (i, j) covers [i, i+1)/width x [j, j+1)/height; image row 0 is t = 0,
// the same layout glTexImage2D gives to the uploaded pixels.
type Texture2D struct {
	texels        []common.Vec4
	width, height int
	wrap          WrapMode
	filter        Filter
}

func NewTexture2D(img image.Image, wrap WrapMode, filter Filter) (*Texture2D, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("empty texture image %v", b)
	}
	t := &Texture2D{
		texels: make([]common.Vec4, b.Dx()*b.Dy()),
		width:  b.Dx(),
		height: b.Dy(),
		wrap:   wrap,
		filter: filter,
	}
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			t.texels[y*t.width+x] = ColorToVec4(c)
		}
	}
	return t, nil
}

func (t *Texture2D) Size() (int, int) {
	return t.width, t.height
}

func (t *Texture2D) Wrap() WrapMode {
	return t.wrap
}

func (t *Texture2D) Filter() Filter {
	return t.filter
}

func (t *Texture2D) texel(i, j int) common.Vec4 {
	return t.texels[t.wrap.wrap(j, t.height)*t.width+t.wrap.wrap(i, t.width)]
}

func (t *Texture2D) Sample(uv common.Vec2) common.Vec4 {
	if !common.IsFinite(uv[0]) || !common.IsFinite(uv[1]) {
		return t.texels[0]
	}
	if t.filter == FilterNearest {
		return t.texel(int(common.Floor32(uv[0]*float32(t.width))), int(common.Floor32(uv[1]*float32(t.height))))
	}
	x := uv[0]*float32(t.width) - 0.5
	y := uv[1]*float32(t.height) - 0.5
	x0 := common.Floor32(x)
	y0 := common.Floor32(y)
	fx := x - x0
	fy := y - y0
	i, j := int(x0), int(y0)
	top := common.LerpVec4(t.texel(i, j), t.texel(i+1, j), fx)
	bottom := common.LerpVec4(t.texel(i, j+1), t.texel(i+1, j+1), fx)
	return common.LerpVec4(top, bottom, fy)
}

// ColorToVec4 converts 8-bit straight alpha colour to [0,1] floats.
func ColorToVec4(c color.NRGBA) common.Vec4 {
	return common.Vec4{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, float32(c.A) / 255}
}

// Vec4ToColor clamps to [0,1] and rounds to the nearest 8-bit value.
func Vec4ToColor(v common.Vec4) color.NRGBA {
	ch := func(f float32) uint8 {
		return uint8(common.Clamp(f, 0, 1)*255 + 0.5)
	}
	return color.NRGBA{R: ch(v[0]), G: ch(v[1]), B: ch(v[2]), A: ch(v[3])}
}
