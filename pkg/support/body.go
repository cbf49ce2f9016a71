package support

import (
	"github.com/chazu/fixtura/pkg/mesh"
	"github.com/chazu/fixtura/pkg/poly"
	"gonum.org/v1/gonum/spatial/r3"
)

// extrude builds a straight prism over ring from y=bottom to y=top: walls,
// a −Y bottom cap and, when withTop is set, a +Y top cap. ring must have
// the canonical winding.
func extrude(name string, ring poly.Polygon, bottom, top float64, withTop bool) *mesh.Buffer {
	n := len(ring)
	if n < 3 {
		return nil
	}
	b := mesh.NewBuilder(name)
	for _, p := range ring {
		b.AddVertex(r3.Vec{X: p.X, Y: bottom, Z: p.Z})
	}
	for _, p := range ring {
		b.AddVertex(r3.Vec{X: p.X, Y: top, Z: p.Z})
	}
	un := uint32(n)
	for m := uint32(0); m < un; m++ {
		next := (m + 1) % un
		b.AddQuad(m, next, un+next, un+m)
	}
	addCap(b, ring, 0, bottom, false)
	if withTop {
		addCap(b, ring, un, top, true)
	}
	return b.Buffer()
}

// Body extrudes the body outline of corners from the top of a fillet of the
// given radius up by height. When the fillet is in use the extrusion's
// bottom cap would sit inside the solid, so it is stripped; a plain prism
// (radius below MinFillet) keeps it.
func Body(corners []poly.Corner, radius, height float64, opts Options) *mesh.Buffer {
	if len(corners) < 3 || !(height > 0) {
		return nil
	}
	opts = opts.sanitized()
	return bodyFromRing(perimeter(corners, radius, opts), radius, height, opts.TopCap)
}

func bodyFromRing(ring []station, radius, height float64, withTop bool) *mesh.Buffer {
	if radius < MinFillet {
		radius = 0
	}
	body := extrude("body", bodyRing(ring), radius, radius+height, withTop)
	if body == nil || radius == 0 {
		return body
	}
	stripped := mesh.StripBottomFaces(body, radius, capEpsilon)
	body.Dispose()
	return stripped
}
