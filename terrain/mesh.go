package terrain

import (
	"math"

	"github.com/gorustyt/terrainview/common"
	"github.com/gorustyt/terrainview/pipeline"
)

// toMesh maps terrain space (x, y on the ground, z up) to y-up render space
// centred on the origin with the larger site extent spanning [-1, 1]. Heights
// share the site units, so one scale applies to every axis.
type toMesh struct {
	center common.DVec2
	scale  float64
	min    common.DVec2
	size   common.DVec2
}

func (t *Terrain) meshSpace() toMesh {
	size := t.Max.Sub(t.Min)
	span := math.Max(size[0], size[1])
	return toMesh{
		center: t.Min.Add(t.Max).Mul(0.5),
		scale:  2 / span,
		min:    t.Min,
		size:   size,
	}
}

func (m toMesh) position(p common.DVec3) common.Vec3 {
	x := (p[0] - m.center[0]) * m.scale
	y := (p[1] - m.center[1]) * m.scale
	return common.Vec3{float32(x), float32(p[2] * m.scale), float32(-y)}
}

func (m toMesh) normal(n common.DVec3) common.Vec3 {
	return common.Vec3{float32(n[0]), float32(n[2]), float32(-n[1])}
}

func (m toMesh) texCoord(p common.DVec3) common.Vec2 {
	var uv common.Vec2
	if m.size[0] > 0 {
		uv[0] = float32((p[0] - m.min[0]) / m.size[0])
	}
	if m.size[1] > 0 {
		uv[1] = float32((p[1] - m.min[1]) / m.size[1])
	}
	return uv
}

// Mesh triangulates every closed region as a fan around its centre. Only
// cells inside the site bounds are closed, so x and z stay within [-1, 1]
// and texture coordinates within [0, 1]. Each
// region owns its vertices so the normals stay flat; water regions are
// flattened to the water height.
func (t *Terrain) Mesh() *pipeline.Mesh {
	space := t.meshSpace()
	mesh := &pipeline.Mesh{}
	for _, r := range t.Regions.Vertices {
		if r.Boundary || len(r.Vertices) < 3 {
			continue
		}
		normal := r.Normal
		center := r.Center
		lift := func(p common.DVec3) common.DVec3 { return p }
		if r.Water {
			normal = common.DVec3{0, 0, 1}
			center[2] = t.WaterHeight
			lift = func(p common.DVec3) common.DVec3 {
				p[2] = t.WaterHeight
				return p
			}
		}
		n := space.normal(normal)
		base := uint32(len(mesh.Vertices))
		mesh.Vertices = append(mesh.Vertices, pipeline.Vertex{
			Position: space.position(center),
			Normal:   n,
			TexCoord: space.texCoord(center),
		})
		for _, vi := range r.Vertices {
			p := lift(t.Graph.Vertices[vi].Position)
			mesh.Vertices = append(mesh.Vertices, pipeline.Vertex{
				Position: space.position(p),
				Normal:   n,
				TexCoord: space.texCoord(p),
			})
		}
		count := uint32(len(r.Vertices))
		for i := uint32(0); i < count; i++ {
			mesh.Indices = append(mesh.Indices, base, base+1+i, base+1+(i+1)%count)
		}
	}
	return mesh
}
