package terrain

import (
	"fmt"
	"math"

	"github.com/fogleman/delaunay"
	"github.com/gorustyt/terrainview/common"
)

type dedge [2]int

func sortedEdge(a, b int) dedge {
	if a > b {
		a, b = b, a
	}
	return dedge{a, b}
}

func orient(a, b, c common.DVec2) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// circumcircle returns the circumcentre and squared radius of abc. ok is
// false for (near) collinear input.
func circumcircle(a, b, c common.DVec2) (center common.DVec2, r2 float64, ok bool) {
	d := 2 * (a[0]*(b[1]-c[1]) + b[0]*(c[1]-a[1]) + c[0]*(a[1]-b[1]))
	if math.Abs(d) < 1e-12 {
		return center, 0, false
	}
	a2 := a.Dot(a)
	b2 := b.Dot(b)
	c2 := c.Dot(c)
	center = common.DVec2{
		(a2*(b[1]-c[1]) + b2*(c[1]-a[1]) + c2*(a[1]-b[1])) / d,
		(a2*(c[0]-b[0]) + b2*(a[0]-c[0]) + c2*(b[0]-a[0])) / d,
	}
	return center, center.Sub(a).Dot(center.Sub(a)), true
}

func nextHalfedge(e int) int {
	if e%3 == 2 {
		return e - 2
	}
	return e + 1
}

// delaunayMesh is the triangulation of a site list.
type delaunayMesh struct {
	// Triangles are counter-clockwise site index triples.
	Triangles [][3]int
	// Hull marks the sites on the convex hull.
	Hull []bool
}

// triangulate runs the Delaunay triangulation over distinct sites. Collinear
// input yields ErrDegenerate.
func triangulate(sites []common.DVec2) (*delaunayMesh, error) {
	points := make([]delaunay.Point, len(sites))
	for i, s := range sites {
		points[i] = delaunay.Point{X: s[0], Y: s[1]}
	}
	tr, err := delaunay.Triangulate(points)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}
	if len(tr.Triangles) == 0 {
		return nil, ErrDegenerate
	}
	m := &delaunayMesh{
		Triangles: make([][3]int, 0, len(tr.Triangles)/3),
		Hull:      make([]bool, len(sites)),
	}
	for e := 0; e+2 < len(tr.Triangles); e += 3 {
		a, b, c := tr.Triangles[e], tr.Triangles[e+1], tr.Triangles[e+2]
		if orient(sites[a], sites[b], sites[c]) < 0 {
			b, c = c, b
		}
		m.Triangles = append(m.Triangles, [3]int{a, b, c})
	}
	// A halfedge without a twin lies on the hull.
	for e, twin := range tr.Halfedges {
		if twin == -1 {
			m.Hull[tr.Triangles[e]] = true
			m.Hull[tr.Triangles[nextHalfedge(e)]] = true
		}
	}
	return m, nil
}
