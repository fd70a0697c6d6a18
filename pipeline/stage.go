// Package pipeline is a CPU reference for the terrain shader pair: the same
// vertex transform and diffuse fragment stages the GLSL program runs, plus a
// rasterizer that feeds one into the other.
package pipeline

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorustyt/terrainview/common"
)

// Vertex is one per-vertex attribute record (locations 0, 1, 2).
type Vertex struct {
	Position common.Vec3
	Normal   common.Vec3
	TexCoord common.Vec2
}

// Uniforms are the per-draw transform matrices.
type Uniforms struct {
	Projection common.Mat4
	View       common.Mat4
	Model      common.Mat4
}

func IdentityUniforms() Uniforms {
	return Uniforms{
		Projection: mgl32.Ident4(),
		View:       mgl32.Ident4(),
		Model:      mgl32.Ident4(),
	}
}

// Varying is what the vertex stage hands to the rasterizer for interpolation.
type Varying struct {
	Normal   common.Vec3
	TexCoord common.Vec2
}

type VertexOutput struct {
	Position common.Vec4
	Varying
}

// TransformVertex is the vertex stage: projection * view * model * (position, 1),
// evaluated left to right as the GLSL expression is. Normal and texture
// coordinate pass through untouched.
func TransformVertex(u Uniforms, v Vertex) VertexOutput {
	mvp := u.Projection.Mul4(u.View).Mul4(u.Model)
	return VertexOutput{
		Position: mvp.Mul4x1(v.Position.Vec4(1)),
		Varying: Varying{
			Normal:   v.Normal,
			TexCoord: v.TexCoord,
		},
	}
}

// Interpolate blends three varyings with barycentric weights.
func Interpolate(a, b, c Varying, w0, w1, w2 float32) Varying {
	return Varying{
		Normal:   a.Normal.Mul(w0).Add(b.Normal.Mul(w1)).Add(c.Normal.Mul(w2)),
		TexCoord: a.TexCoord.Mul(w0).Add(b.TexCoord.Mul(w1)).Add(c.TexCoord.Mul(w2)),
	}
}

// ShadeMode selects the fragment stage variant.
type ShadeMode int

const (
	// ShadeTexture writes the diffuse texture sample.
	ShadeTexture ShadeMode = iota
	// ShadeNormal writes vec4(normal, 1). Debug only, matches DEBUG_NORMALS in terrain.frag.
	ShadeNormal
)

func (m ShadeMode) String() string {
	switch m {
	case ShadeTexture:
		return "texture"
	case ShadeNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// ShadeFragment is the fragment stage: sample the diffuse texture at the
// interpolated texture coordinate. The normal is not read.
func ShadeFragment(diffuse Sampler, in Varying) common.Vec4 {
	return diffuse.Sample(in.TexCoord)
}

func ShadeNormalFragment(in Varying) common.Vec4 {
	return in.Normal.Vec4(1)
}
