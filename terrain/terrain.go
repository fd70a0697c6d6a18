package terrain

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/aquilax/go-perlin"
	"github.com/gorustyt/terrainview/common"
)

var (
	ErrTooFewSites = errors.New("terrain needs at least 3 distinct sites")
	ErrDegenerate  = errors.New("terrain sites are collinear")
)

const (
	DefaultWaterLevel = 50
	DefaultHeight     = 100

	noiseAlpha  = 2
	noiseBeta   = 2
	noiseOctave = 3
)

// Graph is a vertex list with undirected edges between vertex indices.
type Graph[T any] struct {
	Vertices []T
	Edges    [][2]int
}

// Vertex is a Voronoi vertex: the circumcentre of one Delaunay triangle
// lifted by the height field.
type Vertex struct {
	Position common.DVec3
	Normal   common.DVec3
	// Regions are the three sites whose cells meet here.
	Regions [3]int
	Edges   []int
}

// Region is the Voronoi cell of one site.
type Region struct {
	Site   common.DVec2
	Center common.DVec3
	Normal common.DVec3
	// Vertices indexes Terrain.Graph.Vertices, ordered counter-clockwise
	// around the site.
	Vertices []int
	// Neighbours indexes Terrain.Regions.Vertices.
	Neighbours []int
	Edges      []int
	// Hull is set for sites on the convex hull of all sites.
	Hull bool
	// Boundary regions have no complete cell inside the site bounds: hull
	// sites, and sites whose cell reaches past Min or Max.
	Boundary bool
	Water    bool
}

type Params struct {
	Seed       int64
	Sites      int
	WaterLevel uint32
	Height     uint32
}

type Terrain struct {
	Params  Params
	Graph   Graph[Vertex]
	Regions Graph[Region]
	// Min and Max bound the sites.
	Min, Max common.DVec2
	// WaterHeight is the height below which a region is water. Heights are
	// in site units, like x and y.
	WaterHeight float64
}

type Builder struct {
	seed        int64
	sites       []common.DVec2
	randomSites int
	extent      float64
	waterLevel  uint32
	height      uint32
}

func NewBuilder() *Builder {
	return &Builder{
		seed:       rand.Int63(),
		waterLevel: DefaultWaterLevel,
		height:     DefaultHeight,
	}
}

func (b *Builder) SetSeed(seed int64) *Builder {
	b.seed = seed
	return b
}

// SetSites uses explicit site positions and discards any SetRandomSites.
func (b *Builder) SetSites(sites []common.DVec2) *Builder {
	b.sites = append([]common.DVec2(nil), sites...)
	b.randomSites = 0
	return b
}

// SetRandomSites scatters n sites uniformly over [0,extent)² from the seed.
func (b *Builder) SetRandomSites(n int, extent float64) *Builder {
	b.sites = nil
	b.randomSites = n
	b.extent = extent
	return b
}

// SetWaterLevel sets the water line as a percentage of the height range.
func (b *Builder) SetWaterLevel(level uint32) *Builder {
	b.waterLevel = level
	return b
}

// SetHeight sets the relief as a percentage of half the site extent; 100 maps
// the noise to [-1, 1] on a mesh whose ground spans [-1, 1].
func (b *Builder) SetHeight(height uint32) *Builder {
	b.height = height
	return b
}

func (b *Builder) siteList() []common.DVec2 {
	if b.randomSites <= 0 {
		return b.sites
	}
	r := rand.New(rand.NewSource(b.seed))
	sites := make([]common.DVec2, b.randomSites)
	for i := range sites {
		sites[i] = common.DVec2{r.Float64() * b.extent, r.Float64() * b.extent}
	}
	return sites
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func dedupe(sites []common.DVec2) []common.DVec2 {
	seen := make(map[common.DVec2]bool, len(sites))
	out := make([]common.DVec2, 0, len(sites))
	for _, s := range sites {
		if seen[s] || !finite(s[0]) || !finite(s[1]) {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func (b *Builder) Build() (*Terrain, error) {
	sites := dedupe(b.siteList())
	if len(sites) < 3 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewSites, len(sites))
	}
	dm, err := triangulate(sites)
	if err != nil {
		return nil, err
	}
	tris := dm.Triangles

	t := &Terrain{
		Params: Params{Seed: b.seed, Sites: len(sites), WaterLevel: b.waterLevel, Height: b.height},
		Min:    sites[0],
		Max:    sites[0],
	}
	for _, s := range sites[1:] {
		t.Min = common.DVec2{math.Min(t.Min[0], s[0]), math.Min(t.Min[1], s[1])}
		t.Max = common.DVec2{math.Max(t.Max[0], s[0]), math.Max(t.Max[1], s[1])}
	}
	span := math.Max(t.Max[0]-t.Min[0], t.Max[1]-t.Min[1])
	amplitude := float64(b.height) / 100 * span / 2
	t.WaterHeight = amplitude * (float64(b.waterLevel)/50 - 1)

	noise := perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctave, b.seed)
	heightAt := func(p common.DVec2) float64 {
		q := p.Sub(t.Min).Mul(4 / span)
		return noise.Noise2D(q[0], q[1]) * amplitude
	}

	// Voronoi vertices.
	t.Graph.Vertices = make([]Vertex, len(tris))
	for i, tri := range tris {
		c, _, ok := circumcircle(sites[tri[0]], sites[tri[1]], sites[tri[2]])
		if !ok {
			return nil, fmt.Errorf("%w: flat triangle %v", ErrDegenerate, tri)
		}
		t.Graph.Vertices[i] = Vertex{
			Position: common.DVec3{c[0], c[1], heightAt(c)},
			Regions:  tri,
		}
	}

	// Delaunay edges in first-seen order; each maps to one or two triangles.
	type shared struct {
		edge dedge
		tris []int
	}
	var order []*shared
	byEdge := map[dedge]*shared{}
	for i, tri := range tris {
		for k := 0; k < 3; k++ {
			e := sortedEdge(tri[k], tri[(k+1)%3])
			s := byEdge[e]
			if s == nil {
				s = &shared{edge: e}
				byEdge[e] = s
				order = append(order, s)
			}
			s.tris = append(s.tris, i)
		}
	}

	t.Regions.Vertices = make([]Region, len(sites))
	for i, s := range sites {
		t.Regions.Vertices[i].Site = s
		t.Regions.Vertices[i].Hull = dm.Hull[i]
	}
	for i, tri := range tris {
		for _, r := range tri {
			t.Regions.Vertices[r].Vertices = append(t.Regions.Vertices[r].Vertices, i)
		}
	}
	for _, s := range order {
		a, bb := s.edge[0], s.edge[1]
		ri := len(t.Regions.Edges)
		t.Regions.Edges = append(t.Regions.Edges, [2]int(s.edge))
		ra, rb := &t.Regions.Vertices[a], &t.Regions.Vertices[bb]
		ra.Edges = append(ra.Edges, ri)
		rb.Edges = append(rb.Edges, ri)
		ra.Neighbours = append(ra.Neighbours, bb)
		rb.Neighbours = append(rb.Neighbours, a)
		common.AssertTrue(len(s.tris) <= 2, "edge %v shared by %d triangles", s.edge, len(s.tris))
		if len(s.tris) < 2 {
			continue
		}
		vi := len(t.Graph.Edges)
		t.Graph.Edges = append(t.Graph.Edges, [2]int{s.tris[0], s.tris[1]})
		t.Graph.Vertices[s.tris[0]].Edges = append(t.Graph.Vertices[s.tris[0]].Edges, vi)
		t.Graph.Vertices[s.tris[1]].Edges = append(t.Graph.Vertices[s.tris[1]].Edges, vi)
	}

	// Cells may reach far past the sites next to thin hull triangles.
	tol := span * 1e-9
	inside := func(p common.DVec3) bool {
		return p[0] >= t.Min[0]-tol && p[0] <= t.Max[0]+tol &&
			p[1] >= t.Min[1]-tol && p[1] <= t.Max[1]+tol
	}
	for i := range t.Regions.Vertices {
		r := &t.Regions.Vertices[i]
		r.Boundary = r.Hull
		for _, vi := range r.Vertices {
			if !inside(t.Graph.Vertices[vi].Position) {
				r.Boundary = true
				break
			}
		}
		t.orderCell(r)
		r.Center = t.cellCenter(r, heightAt)
		r.Normal = t.cellNormal(r)
		r.Water = r.Center[2] < t.WaterHeight
	}
	for i := range t.Graph.Vertices {
		v := &t.Graph.Vertices[i]
		var n common.DVec3
		for _, r := range v.Regions {
			n = n.Add(t.Regions.Vertices[r].Normal)
		}
		v.Normal = n.Normalize()
	}
	return t, nil
}

func (t *Terrain) orderCell(r *Region) {
	angle := func(vi int) float64 {
		p := t.Graph.Vertices[vi].Position
		return math.Atan2(p[1]-r.Site[1], p[0]-r.Site[0])
	}
	sort.SliceStable(r.Vertices, func(i, j int) bool {
		return angle(r.Vertices[i]) < angle(r.Vertices[j])
	})
}

func (t *Terrain) cellCenter(r *Region, heightAt func(common.DVec2) float64) common.DVec3 {
	if r.Boundary || len(r.Vertices) == 0 {
		return common.DVec3{r.Site[0], r.Site[1], heightAt(r.Site)}
	}
	var c common.DVec3
	for _, vi := range r.Vertices {
		c = c.Add(t.Graph.Vertices[vi].Position)
	}
	return c.Mul(1 / float64(len(r.Vertices)))
}

// cellNormal is Newell's polygon normal over the ordered cell, flipped to
// point up.
func (t *Terrain) cellNormal(r *Region) common.DVec3 {
	if len(r.Vertices) < 3 {
		return common.DVec3{0, 0, 1}
	}
	var n common.DVec3
	for i, vi := range r.Vertices {
		p := t.Graph.Vertices[vi].Position
		q := t.Graph.Vertices[r.Vertices[(i+1)%len(r.Vertices)]].Position
		n[0] += (p[1] - q[1]) * (p[2] + q[2])
		n[1] += (p[2] - q[2]) * (p[0] + q[0])
		n[2] += (p[0] - q[0]) * (p[1] + q[1])
	}
	if n.Len() == 0 {
		return common.DVec3{0, 0, 1}
	}
	if n[2] < 0 {
		n = n.Mul(-1)
	}
	return n.Normalize()
}

// ClosedRegions counts regions with a complete cell.
func (t *Terrain) ClosedRegions() int {
	n := 0
	for _, r := range t.Regions.Vertices {
		if !r.Boundary && len(r.Vertices) >= 3 {
			n++
		}
	}
	return n
}
