package support

import (
	"github.com/chazu/fixtura/pkg/mesh"
	"github.com/chazu/fixtura/pkg/poly"
	"gonum.org/v1/gonum/spatial/r3"
)

// addCap triangulates ring (already added to b starting at index base) as a
// flat patch at height y. Star-shaped rings get a centroid fan; anything
// else is ear-clipped. up selects a +Y facing patch, otherwise −Y.
func addCap(b *mesh.Builder, ring poly.Polygon, base uint32, y float64, up bool) {
	n := len(ring)
	c := poly.Centroid(ring)
	if poly.StarShaped(ring, c) {
		o := b.AddVertex(r3.Vec{X: c.X, Y: y, Z: c.Z})
		forward := up == (poly.ShoelaceSum(ring) > 0)
		for j := 0; j < n; j++ {
			pj, pk := base+uint32(j), base+uint32((j+1)%n)
			if forward {
				b.AddTriangle(o, pj, pk)
			} else {
				b.AddTriangle(o, pk, pj)
			}
		}
		return
	}
	// Triangulate winds every triangle counter-clockwise in XZ, which faces
	// −Y. Flipping them all keeps slivers and folds consistently oriented.
	for _, t := range poly.Triangulate(ring) {
		a, bb, cc := base+uint32(t[0]), base+uint32(t[1]), base+uint32(t[2])
		if up {
			b.AddTriangle(a, cc, bb)
		} else {
			b.AddTriangle(a, bb, cc)
		}
	}
}

func capMesh(name string, ring poly.Polygon, y float64, up bool) *mesh.Buffer {
	if len(ring) < 3 {
		return nil
	}
	b := mesh.NewBuilder(name)
	for _, p := range ring {
		b.AddVertex(r3.Vec{X: p.X, Y: y, Z: p.Z})
	}
	addCap(b, ring, 0, y, up)
	return b.Buffer()
}

// BottomCap returns the −Y facing patch at Y=0 bounded by the outer base
// edge of a fillet with the given radius. With a zero radius the patch
// covers the body outline.
func BottomCap(corners []poly.Corner, radius float64, opts Options) *mesh.Buffer {
	if len(corners) < 3 {
		return nil
	}
	if radius < 0 {
		radius = 0
	}
	return capMesh("bottom-cap", baseRing(perimeter(corners, radius, opts.sanitized()), radius), 0, false)
}

// TopCap returns the +Y facing patch at Y=height over the body outline.
func TopCap(corners []poly.Corner, height float64, opts Options) *mesh.Buffer {
	if len(corners) < 3 {
		return nil
	}
	return capMesh("top-cap", bodyRing(perimeter(corners, 0, opts.sanitized())), height, true)
}
