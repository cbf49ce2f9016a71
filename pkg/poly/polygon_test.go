package poly

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rect(w, d float64) Polygon {
	return Polygon{Pt(-w/2, -d/2), Pt(w/2, -d/2), Pt(w/2, d/2), Pt(-w/2, d/2)}
}

func TestNormalizeWinding(t *testing.T) {
	tests := []struct {
		name string
		in   Polygon
	}{
		{"rectangle", rect(40, 20)},
		{"triangle", Polygon{Pt(0, 0), Pt(10, 0), Pt(0, 7)}},
		{"l-shape", Polygon{Pt(0, 0), Pt(20, 0), Pt(20, 5), Pt(5, 5), Pt(5, 20), Pt(0, 20)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Normalize(tt.in)
			require.NoError(t, err)
			b, err := Normalize(tt.in.Reverse())
			require.NoError(t, err)

			assert.Equal(t, a, b, "Normalize(P) must equal Normalize(reverse(P))")
			assert.True(t, ShoelaceSum(a) > 0, "canonical winding has positive shoelace sum")

			again, err := Normalize(a)
			require.NoError(t, err)
			assert.Equal(t, a, again, "normalizing a canonical polygon is a no-op")
		})
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := rect(40, 20)
	orig := in.Clone()
	_, err := Normalize(in)
	require.NoError(t, err)
	assert.Equal(t, orig, in)
}

func TestNormalizeTooFewPoints(t *testing.T) {
	for _, p := range []Polygon{nil, {}, {Pt(0, 0)}, {Pt(0, 0), Pt(1, 1)}} {
		out, err := Normalize(p)
		assert.ErrorIs(t, err, ErrTooFewPoints)
		assert.Nil(t, out)
	}
}

func TestEdgeNormalsPointOutward(t *testing.T) {
	p, err := Normalize(rect(40, 20))
	require.NoError(t, err)
	c := Centroid(p)
	for i, n := range EdgeNormals(p) {
		mid := p[i].Add(p[(i+1)%len(p)]).Scale(0.5)
		assert.InDelta(t, 1, n.Len(), 1e-12)
		// Stepping outward from the edge midpoint moves away from the centroid.
		assert.Greater(t, mid.Add(n).Dist(c), mid.Dist(c), "edge %d", i)
	}
}

func TestEdgeNormalsBothWindingsAgree(t *testing.T) {
	p := rect(10, 10)
	canon, err := Normalize(p)
	require.NoError(t, err)
	raw := canon.Reverse()

	cn := EdgeNormals(canon)
	rn := EdgeNormals(raw)
	// Edge i of raw is edge n-2-i of canon traversed backwards; the outward
	// side must not change with the traversal direction.
	n := len(p)
	for i := range raw {
		j := (2*n - 2 - i) % n
		assert.InDelta(t, cn[j].X, rn[i].X, 1e-12)
		assert.InDelta(t, cn[j].Z, rn[i].Z, 1e-12)
	}
}

func TestEdgeNormalsDegenerateEdge(t *testing.T) {
	p := Polygon{Pt(0, 0), Pt(0.001, 0), Pt(10, 0), Pt(10, 10)}
	normals := EdgeNormals(p)
	assert.Equal(t, Point{}, normals[0])
	assert.NotEqual(t, Point{}, normals[1])
}

func TestClean(t *testing.T) {
	p := Polygon{Pt(0, 0), Pt(0, 0.001), Pt(10, 0), Pt(10, 10), Pt(0, 10), Pt(0.0001, 0)}
	got := Clean(p, DegenerateEdge)
	assert.Equal(t, Polygon{Pt(0, 0), Pt(10, 0), Pt(10, 10), Pt(0, 10)}, got)
}

func TestAreaCentroidBounds(t *testing.T) {
	p := Polygon{Pt(0, 0), Pt(4, 0), Pt(4, 2), Pt(0, 2)}
	assert.InDelta(t, 8, Area(p), 1e-9)
	assert.InDelta(t, 8, Area(p.Reverse()), 1e-9)

	c := Centroid(p)
	assert.InDelta(t, 2, c.X, 1e-9)
	assert.InDelta(t, 1, c.Z, 1e-9)

	min, max := Bounds(p)
	assert.Equal(t, Pt(0, 0), min)
	assert.Equal(t, Pt(4, 2), max)
}

func TestSelfIntersects(t *testing.T) {
	bowtie := Polygon{Pt(0, 0), Pt(10, 10), Pt(10, 0), Pt(0, 10)}
	assert.True(t, SelfIntersects(bowtie))
	assert.False(t, SelfIntersects(rect(10, 10)))
	assert.False(t, SelfIntersects(Polygon{Pt(0, 0), Pt(20, 0), Pt(20, 5), Pt(5, 5), Pt(5, 20), Pt(0, 20)}))
}

func TestTriangulate(t *testing.T) {
	tests := []struct {
		name string
		p    Polygon
	}{
		{"square", rect(10, 10)},
		{"l-shape", Polygon{Pt(0, 0), Pt(20, 0), Pt(20, 5), Pt(5, 5), Pt(5, 20), Pt(0, 20)}},
		{"collinear run", Polygon{Pt(0, 0), Pt(5, 0), Pt(10, 0), Pt(10, 10), Pt(5, 10), Pt(0, 10)}},
		{"l-shape with collinear points", Polygon{
			Pt(0, 0), Pt(10, 0), Pt(20, 0), Pt(30, 0), Pt(30, 5), Pt(30, 10), Pt(20, 10),
			Pt(15, 10), Pt(10, 10), Pt(10, 20), Pt(10, 30), Pt(5, 30), Pt(0, 30), Pt(0, 15),
		}},
		{"u-shape", Polygon{Pt(0, 0), Pt(30, 0), Pt(30, 20), Pt(20, 20), Pt(20, 10), Pt(10, 10), Pt(10, 20), Pt(0, 20)}},
		{"notch", Polygon{Pt(0, 0), Pt(10, 0), Pt(10, 10), Pt(6, 10), Pt(6, 1), Pt(4, 1), Pt(4, 10), Pt(0, 10)}},
	}
	for _, tt := range tests {
		for _, p := range []Polygon{tt.p, tt.p.Reverse()} {
			t.Run(tt.name, func(t *testing.T) {
				tris := Triangulate(p)
				require.Len(t, tris, len(p)-2)

				// Signed areas: a triangle folded over another would cancel
				// and push the total away from the polygon's area.
				var area float64
				for _, tri := range tris {
					a := cross2(p[tri[0]], p[tri[1]], p[tri[2]]) / 2
					assert.GreaterOrEqual(t, a, -1e-9, "triangle %v is wound backwards", tri)
					area += a
				}
				assert.InDelta(t, Area(p), area, 1e-9)
			})
		}
	}
}

func TestStarShaped(t *testing.T) {
	sq := rect(10, 10)
	assert.True(t, StarShaped(sq, Centroid(sq)))

	// A deep notch hides part of the boundary from the centroid.
	notch := Polygon{Pt(0, 0), Pt(10, 0), Pt(10, 10), Pt(6, 10), Pt(6, 1), Pt(4, 1), Pt(4, 10), Pt(0, 10)}
	assert.False(t, StarShaped(notch, Centroid(notch)))
}
