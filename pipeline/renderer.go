package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/gorustyt/terrainview/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// vertexChunk is the number of vertices one vertex-stage task transforms.
const vertexChunk = 1024

var ErrNoSampler = errors.New("pipeline: texture shading without a diffuse sampler")

// Stats counts the work done by one Draw.
type Stats struct {
	Vertices  int
	Triangles int
	Culled    int
	Rejected  int
	Fragments int
}

// Renderer drives the vertex and fragment stages over a Target.
// Uniforms and Diffuse are read-only during Draw.
type Renderer struct {
	Uniforms      Uniforms
	Diffuse       Sampler
	Mode          ShadeMode
	CullBackFaces bool
	// Workers bounds the goroutines used per stage; <= 0 means GOMAXPROCS.
	Workers int
	Logger  *zap.Logger
}

type screenVertex struct {
	x, y, z float32
	invW    float32
	Varying
}

type triangle struct {
	v [3]screenVertex
	// area is twice the signed window-space area, always > 0 after setup.
	area         float32
	minY, maxY   int
	minX, maxX   int
	topLeftEdges [3]bool
}

func (r *Renderer) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Renderer) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Draw runs the vertex stage over every vertex of mesh, rasterizes its
// triangles into target and runs the fragment stage for each covered pixel
// that passes the depth test.
func (r *Renderer) Draw(ctx context.Context, target *Target, mesh *Mesh) (Stats, error) {
	var stats Stats
	if r.Mode == ShadeTexture && r.Diffuse == nil {
		return stats, ErrNoSampler
	}
	if err := mesh.Validate(); err != nil {
		return stats, fmt.Errorf("draw: %w", err)
	}
	out, err := r.runVertexStage(ctx, mesh.Vertices)
	if err != nil {
		return stats, err
	}
	stats.Vertices = len(out)

	width, height := target.Size()
	tris := make([]triangle, 0, mesh.TriangleCount())
	for i := 0; i+2 < len(mesh.Indices); i += 3 {
		stats.Triangles++
		tri, status := setupTriangle(
			out[mesh.Indices[i]], out[mesh.Indices[i+1]], out[mesh.Indices[i+2]],
			width, height, r.CullBackFaces)
		switch status {
		case triangleCulled:
			stats.Culled++
		case triangleRejected:
			stats.Rejected++
		default:
			tris = append(tris, tri)
		}
	}

	frags, err := r.runRasterBands(ctx, target, tris)
	if err != nil {
		return stats, err
	}
	stats.Fragments = frags
	r.logger().Debug("draw finished",
		zap.Int("vertices", stats.Vertices),
		zap.Int("triangles", stats.Triangles),
		zap.Int("culled", stats.Culled),
		zap.Int("rejected", stats.Rejected),
		zap.Int("fragments", stats.Fragments),
		zap.Stringer("mode", r.Mode))
	return stats, nil
}

func (r *Renderer) runVertexStage(ctx context.Context, in []Vertex) ([]VertexOutput, error) {
	out := make([]VertexOutput, len(in))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())
	u := r.Uniforms
	for start := 0; start < len(in); start += vertexChunk {
		start, end := start, min(start+vertexChunk, len(in))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				out[i] = TransformVertex(u, in[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// runRasterBands splits the target into horizontal bands. Each band walks
// every triangle in submission order and only touches its own rows.
func (r *Renderer) runRasterBands(ctx context.Context, target *Target, tris []triangle) (int, error) {
	_, height := target.Size()
	bands := common.Clamp(r.workers(), 1, max(height, 1))
	rowsPerBand := (height + bands - 1) / bands
	counts := make([]int, bands)

	g, ctx := errgroup.WithContext(ctx)
	for b := 0; b < bands; b++ {
		b := b
		y0, y1 := b*rowsPerBand, min((b+1)*rowsPerBand, height)
		if y0 >= y1 {
			continue
		}
		g.Go(func() error {
			for i := range tris {
				if i%64 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				counts[b] += r.rasterize(target, &tris[i], y0, y1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	return total, nil
}

type triangleStatus int

const (
	triangleVisible triangleStatus = iota
	triangleCulled
	triangleRejected
)

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

func toScreen(o VertexOutput, width, height int) screenVertex {
	invW := 1 / o.Position[3]
	return screenVertex{
		x:       (o.Position[0]*invW + 1) * 0.5 * float32(width),
		y:       (o.Position[1]*invW + 1) * 0.5 * float32(height),
		z:       o.Position[2] * invW,
		invW:    invW,
		Varying: o.Varying,
	}
}

// setupTriangle projects a triangle to window space (y up). Triangles with a
// vertex at or behind the eye (w <= 0) are rejected rather than clipped.
func setupTriangle(a, b, c VertexOutput, width, height int, cull bool) (triangle, triangleStatus) {
	var t triangle
	for _, o := range []VertexOutput{a, b, c} {
		if !(o.Position[3] > 0) {
			return t, triangleRejected
		}
	}
	t.v = [3]screenVertex{toScreen(a, width, height), toScreen(b, width, height), toScreen(c, width, height)}
	v := &t.v
	t.area = edge(v[0].x, v[0].y, v[1].x, v[1].y, v[2].x, v[2].y)
	if !common.IsFinite(t.area) || t.area == 0 {
		return t, triangleRejected
	}
	if t.area < 0 {
		if cull {
			return t, triangleCulled
		}
		v[1], v[2] = v[2], v[1]
		t.area = -t.area
	}

	minX := min(v[0].x, v[1].x, v[2].x)
	maxX := max(v[0].x, v[1].x, v[2].x)
	minY := min(v[0].y, v[1].y, v[2].y)
	maxY := max(v[0].y, v[1].y, v[2].y)
	t.minX = common.Clamp(int(common.Floor32(minX)), 0, width)
	t.maxX = common.Clamp(int(common.Floor32(maxX))+1, 0, width)
	t.minY = common.Clamp(int(common.Floor32(minY)), 0, height)
	t.maxY = common.Clamp(int(common.Floor32(maxY))+1, 0, height)
	if t.minX >= t.maxX || t.minY >= t.maxY {
		return t, triangleRejected
	}

	// Edge i is opposite vertex i and runs CCW: 1->2, 2->0, 0->1.
	for i := 0; i < 3; i++ {
		from, to := v[(i+1)%3], v[(i+2)%3]
		top := from.y == to.y && to.x < from.x
		left := to.y < from.y
		t.topLeftEdges[i] = top || left
	}
	return t, triangleVisible
}

func (r *Renderer) rasterize(target *Target, t *triangle, bandY0, bandY1 int) int {
	y0 := max(t.minY, bandY0)
	y1 := min(t.maxY, bandY1)
	if y0 >= y1 {
		return 0
	}
	width, height := target.Size()
	v := &t.v
	written := 0
	for y := y0; y < y1; y++ {
		py := float32(y) + 0.5
		for x := t.minX; x < t.maxX; x++ {
			px := float32(x) + 0.5
			e := [3]float32{
				edge(v[1].x, v[1].y, v[2].x, v[2].y, px, py),
				edge(v[2].x, v[2].y, v[0].x, v[0].y, px, py),
				edge(v[0].x, v[0].y, v[1].x, v[1].y, px, py),
			}
			inside := true
			for i := 0; i < 3; i++ {
				if e[i] < 0 || (e[i] == 0 && !t.topLeftEdges[i]) {
					inside = false
					break
				}
			}
			if !inside {
				continue
			}
			l0, l1, l2 := e[0]/t.area, e[1]/t.area, e[2]/t.area

			z := l0*v[0].z + l1*v[1].z + l2*v[2].z
			if z < -1 || z > 1 {
				continue
			}
			depth := z*0.5 + 0.5
			di := (height-1-y)*width + x
			if !(depth < target.Depth[di]) {
				continue
			}

			p0, p1, p2 := l0*v[0].invW, l1*v[1].invW, l2*v[2].invW
			sum := p0 + p1 + p2
			in := Interpolate(v[0].Varying, v[1].Varying, v[2].Varying, p0/sum, p1/sum, p2/sum)

			var col common.Vec4
			if r.Mode == ShadeNormal {
				col = ShadeNormalFragment(in)
			} else {
				col = ShadeFragment(r.Diffuse, in)
			}
			target.Depth[di] = depth
			target.Color.SetNRGBA(x, height-1-y, Vec4ToColor(col))
			written++
		}
	}
	return written
}
