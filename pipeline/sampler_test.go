package pipeline

import (
	"image"
	"image/color"
	"testing"

	"github.com/gorustyt/terrainview/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rampTexture is 4x1 with texel i = (i*60, 0, 0, 255).
func rampTexture(t *testing.T, wrap WrapMode, filter Filter) *Texture2D {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	for i := 0; i < 4; i++ {
		img.SetNRGBA(i, 0, color.NRGBA{R: uint8(i * 60), A: 255})
	}
	tex, err := NewTexture2D(img, wrap, filter)
	require.NoError(t, err)
	return tex
}

func red(v common.Vec4) uint8 {
	return Vec4ToColor(v).R
}

func TestWrapIndex(t *testing.T) {
	cases := []struct {
		mode WrapMode
		in   []int
		want []int
	}{
		{WrapRepeat, []int{-5, -1, 0, 3, 4, 9}, []int{3, 3, 0, 3, 0, 1}},
		{WrapClampToEdge, []int{-5, -1, 0, 3, 4, 9}, []int{0, 0, 0, 3, 3, 3}},
		{WrapMirroredRepeat, []int{-5, -1, 0, 3, 4, 7, 8, 9}, []int{3, 0, 0, 3, 3, 0, 0, 1}},
	}
	for _, c := range cases {
		for i, in := range c.in {
			assert.Equal(t, c.want[i], c.mode.wrap(in, 4), "%v wrap(%d)", c.mode, in)
		}
	}
}

func TestSampleNearestOutsideUnitSquare(t *testing.T) {
	// u = 1.1 lands in texel 4 -> repeat 0, clamp 3, mirror 3.
	u := common.Vec2{1.1, 0.5}
	assert.Equal(t, uint8(0), red(rampTexture(t, WrapRepeat, FilterNearest).Sample(u)))
	assert.Equal(t, uint8(180), red(rampTexture(t, WrapClampToEdge, FilterNearest).Sample(u)))
	assert.Equal(t, uint8(180), red(rampTexture(t, WrapMirroredRepeat, FilterNearest).Sample(u)))

	// u = -0.1 lands in texel -1 -> repeat 3, clamp 0, mirror 0.
	u = common.Vec2{-0.1, 0.5}
	assert.Equal(t, uint8(180), red(rampTexture(t, WrapRepeat, FilterNearest).Sample(u)))
	assert.Equal(t, uint8(0), red(rampTexture(t, WrapClampToEdge, FilterNearest).Sample(u)))
	assert.Equal(t, uint8(0), red(rampTexture(t, WrapMirroredRepeat, FilterNearest).Sample(u)))
}

func TestSampleRepeatIsPeriodic(t *testing.T) {
	tex := rampTexture(t, WrapRepeat, FilterLinear)
	for _, u := range []float32{0.1, 0.375, 0.6} {
		a := tex.Sample(common.Vec2{u, 0.5})
		b := tex.Sample(common.Vec2{u + 2, 0.5})
		assert.True(t, a.ApproxEqualThreshold(b, 1e-5), "u=%v", u)
	}
}

func TestSampleLinearBetweenTexels(t *testing.T) {
	tex := rampTexture(t, WrapClampToEdge, FilterLinear)
	// Halfway between the centres of texel 1 (60) and texel 2 (120).
	assert.Equal(t, uint8(90), red(tex.Sample(common.Vec2{0.5, 0.5})))
	// Exactly on a texel centre.
	assert.Equal(t, uint8(60), red(tex.Sample(common.Vec2{0.375, 0.5})))
	// Left edge clamps onto texel 0.
	assert.Equal(t, uint8(0), red(tex.Sample(common.Vec2{0, 0.5})))
}

func TestSampleLinearRepeatBlendsAcrossSeam(t *testing.T) {
	tex := rampTexture(t, WrapRepeat, FilterLinear)
	// At u = 0 the footprint is half texel 3 and half texel 0.
	assert.Equal(t, uint8(90), red(tex.Sample(common.Vec2{0, 0.5})))
}

func TestSampleNonFinite(t *testing.T) {
	tex := rampTexture(t, WrapRepeat, FilterLinear)
	nan := float32(0)
	nan = nan / nan
	assert.Equal(t, uint8(0), red(tex.Sample(common.Vec2{nan, 0})))
}

func TestTextureRowsMapToT(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{G: 255, A: 255})
	tex, err := NewTexture2D(img, WrapClampToEdge, FilterNearest)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), Vec4ToColor(tex.Sample(common.Vec2{0.5, 0.1})).R)
	assert.Equal(t, uint8(255), Vec4ToColor(tex.Sample(common.Vec2{0.5, 0.9})).G)
}

func TestNewTextureEmpty(t *testing.T) {
	_, err := NewTexture2D(image.NewNRGBA(image.Rect(0, 0, 0, 0)), WrapRepeat, FilterLinear)
	assert.Error(t, err)
}

func TestParsePolicies(t *testing.T) {
	w, err := ParseWrapMode("mirrored_repeat")
	require.NoError(t, err)
	assert.Equal(t, WrapMirroredRepeat, w)
	w, err = ParseWrapMode("")
	require.NoError(t, err)
	assert.Equal(t, WrapRepeat, w)
	_, err = ParseWrapMode("border")
	assert.Error(t, err)

	f, err := ParseFilter("nearest")
	require.NoError(t, err)
	assert.Equal(t, FilterNearest, f)
	_, err = ParseFilter("trilinear")
	assert.Error(t, err)
}
