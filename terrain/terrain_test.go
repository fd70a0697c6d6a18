package terrain

import (
	"errors"
	"math"
	"testing"

	"github.com/gorustyt/terrainview/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squareSites() []common.DVec2 {
	return []common.DVec2{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {1, 1}}
}

func TestBuildRejectsTooFewSites(t *testing.T) {
	_, err := NewBuilder().SetSites([]common.DVec2{{0, 0}, {1, 0}, {0, 0}}).Build()
	assert.True(t, errors.Is(err, ErrTooFewSites), "got %v", err)

	_, err = NewBuilder().SetSites([]common.DVec2{{0, 0}, {1, 1}, {math.NaN(), 2}}).Build()
	assert.ErrorIs(t, err, ErrTooFewSites)
}

func TestBuildRejectsCollinearSites(t *testing.T) {
	_, err := NewBuilder().SetSites([]common.DVec2{{0, 0}, {1, 1}, {2, 2}, {3, 3}}).Build()
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestSquareWithCenterSite(t *testing.T) {
	tr, err := NewBuilder().SetSeed(7).SetHeight(0).SetSites(squareSites()).Build()
	require.NoError(t, err)

	require.Len(t, tr.Graph.Vertices, 4)
	assert.Len(t, tr.Graph.Edges, 4)
	assert.Len(t, tr.Regions.Edges, 8)
	assert.Equal(t, 1, tr.ClosedRegions())

	center := tr.Regions.Vertices[4]
	assert.False(t, center.Boundary)
	assert.Len(t, center.Vertices, 4)
	assert.Len(t, center.Neighbours, 4)
	assert.InDelta(t, 1, center.Center[0], 1e-9)
	assert.InDelta(t, 1, center.Center[1], 1e-9)
	assert.InDelta(t, 1, center.Normal[2], 1e-9)
	assert.False(t, center.Hull)
	for i := 0; i < 4; i++ {
		assert.True(t, tr.Regions.Vertices[i].Hull, "corner %d", i)
		assert.True(t, tr.Regions.Vertices[i].Boundary, "corner %d", i)
		assert.Len(t, tr.Regions.Vertices[i].Neighbours, 3)
	}

	// Cell vertices are ordered counter-clockwise around the site.
	prev := -math.Pi - 1
	for _, vi := range center.Vertices {
		p := tr.Graph.Vertices[vi].Position
		a := math.Atan2(p[1]-1, p[0]-1)
		assert.Greater(t, a, prev)
		assert.InDelta(t, 1, math.Hypot(p[0]-1, p[1]-1), 1e-9)
		prev = a
	}
}

func TestRandomSitesAreReproducible(t *testing.T) {
	a, err := NewBuilder().SetSeed(42).SetRandomSites(64, 10).Build()
	require.NoError(t, err)
	b, err := NewBuilder().SetSeed(42).SetRandomSites(64, 10).Build()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := NewBuilder().SetSeed(43).SetRandomSites(64, 10).Build()
	require.NoError(t, err)
	assert.NotEqual(t, a.Regions.Vertices[0].Site, c.Regions.Vertices[0].Site)
}

func TestDelaunayProperties(t *testing.T) {
	tr, err := NewBuilder().SetSeed(3).SetRandomSites(80, 100).Build()
	require.NoError(t, err)
	sites := tr.Regions.Vertices

	hull := 0
	for _, r := range sites {
		if r.Hull {
			hull++
			assert.True(t, r.Boundary)
		}
	}
	assert.Equal(t, 2*len(sites)-2-hull, len(tr.Graph.Vertices))
	assert.Equal(t, 3*len(sites)-3-hull, len(tr.Regions.Edges))

	for i, v := range tr.Graph.Vertices {
		c := common.DVec2{v.Position[0], v.Position[1]}
		r := c.Sub(sites[v.Regions[0]].Site).Len()
		for j, s := range sites {
			if d := c.Sub(s.Site).Len(); d < r-1e-7 {
				t.Errorf("site %d lies inside the circumcircle of triangle %d", j, i)
			}
		}
		for _, e := range v.Edges {
			edge := tr.Graph.Edges[e]
			assert.True(t, edge[0] == i || edge[1] == i, "vertex %d lists edge %v", i, edge)
		}
		assert.Greater(t, v.Normal[2], 0.0)
	}
	for i, r := range sites {
		for _, e := range r.Edges {
			edge := tr.Regions.Edges[e]
			assert.True(t, edge[0] == i || edge[1] == i, "region %d lists edge %v", i, edge)
		}
		assert.GreaterOrEqual(t, r.Normal[2], 0.0)
	}
}

func TestWaterLevel(t *testing.T) {
	tr, err := NewBuilder().SetSeed(5).SetRandomSites(40, 10).SetWaterLevel(50).SetHeight(100).Build()
	require.NoError(t, err)
	assert.Equal(t, 0.0, tr.WaterHeight)
	for _, r := range tr.Regions.Vertices {
		assert.Equal(t, r.Center[2] < 0, r.Water)
	}

	flooded, err := NewBuilder().SetSeed(5).SetRandomSites(40, 10).SetWaterLevel(300).Build()
	require.NoError(t, err)
	for _, r := range flooded.Regions.Vertices {
		assert.True(t, r.Water)
	}
}

func triangleNormal(a, b, c common.Vec3) common.Vec3 {
	return b.Sub(a).Cross(c.Sub(a))
}

func TestSquareMesh(t *testing.T) {
	tr, err := NewBuilder().SetHeight(0).SetSites(squareSites()).Build()
	require.NoError(t, err)
	m := tr.Mesh()
	require.NoError(t, m.Validate())
	assert.Len(t, m.Vertices, 5)
	assert.Equal(t, 4, m.TriangleCount())

	assert.InDelta(t, 0, m.Vertices[0].Position.Len(), 1e-6)
	assert.InDelta(t, 0.5, m.Vertices[0].TexCoord[0], 1e-6)
	assert.InDelta(t, 0.5, m.Vertices[0].TexCoord[1], 1e-6)
	for _, v := range m.Vertices[1:] {
		assert.InDelta(t, 1, v.Position.Len(), 1e-6)
		assert.Equal(t, common.Vec3{0, 1, 0}, v.Normal)
	}
}

func TestMeshIsCounterClockwiseFromAbove(t *testing.T) {
	tr, err := NewBuilder().SetSeed(11).SetRandomSites(100, 50).Build()
	require.NoError(t, err)
	m := tr.Mesh()
	require.NoError(t, m.Validate())
	assert.Greater(t, m.TriangleCount(), 0)

	for i := 0; i < len(m.Indices); i += 3 {
		a, b, c := m.Vertices[m.Indices[i]], m.Vertices[m.Indices[i+1]], m.Vertices[m.Indices[i+2]]
		n := triangleNormal(a.Position, b.Position, c.Position)
		if n.Len() < 1e-9 {
			continue
		}
		assert.Greater(t, n[1], float32(0), "triangle %d faces down", i/3)
		assert.Greater(t, a.Normal[1], float32(0))
	}
}

func TestWaterRegionsAreFlat(t *testing.T) {
	tr, err := NewBuilder().SetSeed(9).SetRandomSites(60, 10).SetWaterLevel(300).Build()
	require.NoError(t, err)
	m := tr.Mesh()
	require.NotEmpty(t, m.Vertices)
	y := m.Vertices[0].Position[1]
	for _, v := range m.Vertices {
		assert.Equal(t, y, v.Position[1])
		assert.Equal(t, common.Vec3{0, 1, 0}, v.Normal)
	}
}

func TestMeshStaysInsideSiteBounds(t *testing.T) {
	clipped := 0
	for seed := int64(1); seed <= 5; seed++ {
		tr, err := NewBuilder().SetSeed(seed).SetRandomSites(512, 100).Build()
		require.NoError(t, err)
		for _, r := range tr.Regions.Vertices {
			if r.Boundary && !r.Hull {
				clipped++
			}
		}
		m := tr.Mesh()
		require.NoError(t, m.Validate())
		require.Greater(t, m.TriangleCount(), 0)
		for i, v := range m.Vertices {
			require.LessOrEqual(t, math.Abs(float64(v.Position[0])), 1+1e-4, "seed %d vertex %d", seed, i)
			require.LessOrEqual(t, math.Abs(float64(v.Position[2])), 1+1e-4, "seed %d vertex %d", seed, i)
			require.InDelta(t, 0.5, v.TexCoord[0], 0.5+1e-4, "seed %d vertex %d", seed, i)
			require.InDelta(t, 0.5, v.TexCoord[1], 0.5+1e-4, "seed %d vertex %d", seed, i)
		}
	}
	// Some interior sites next to thin hull triangles must have been closed off.
	assert.Greater(t, clipped, 0)
}

func TestMeshReliefFollowsHeight(t *testing.T) {
	relief := func(extent float64, height uint32) (lo, hi float32) {
		tr, err := NewBuilder().SetSeed(4).SetRandomSites(512, extent).SetHeight(height).SetWaterLevel(0).Build()
		require.NoError(t, err)
		m := tr.Mesh()
		require.NotEmpty(t, m.Vertices)
		lo, hi = m.Vertices[0].Position[1], m.Vertices[0].Position[1]
		for _, v := range m.Vertices {
			lo = min(lo, v.Position[1])
			hi = max(hi, v.Position[1])
		}
		return lo, hi
	}
	lo, hi := relief(100, 100)
	// Noise units map straight to mesh units, independent of the site extent.
	assert.Greater(t, hi-lo, float32(0.3))
	assert.GreaterOrEqual(t, lo, float32(-2))
	assert.LessOrEqual(t, hi, float32(2))

	lo50, hi50 := relief(100, 50)
	assert.InDelta(t, (hi-lo)/2, hi50-lo50, 1e-4)

	slo, shi := relief(1, 100)
	assert.InDelta(t, hi-lo, shi-slo, 0.1*float64(hi-lo))
}
