package support

import (
	"math"

	"github.com/chazu/fixtura/pkg/mesh"
	"github.com/chazu/fixtura/pkg/poly"
	"gonum.org/v1/gonum/spatial/r3"
)

// profile returns the horizontal offset and height of fillet row k out of
// segs, for θ = π + (π/2)·k/segs. Row 0 is the wall at y = radius, row segs
// the base at offset radius.
func profile(k, segs int, radius float64) (offset, y float64) {
	switch k {
	case 0:
		return 0, radius
	case segs:
		return radius, 0
	}
	theta := math.Pi + (math.Pi/2)*float64(k)/float64(segs)
	sin, cos := math.Sincos(theta)
	return radius + radius*cos, radius*sin + radius
}

// Fillet sweeps the quarter-round profile of the given radius along the
// perimeter of corners. Face normals point out of the solid. Returns nil for
// fewer than 3 corners or a non-positive radius.
func Fillet(corners []poly.Corner, radius float64, opts Options) *mesh.Buffer {
	if len(corners) < 3 || !(radius > 0) {
		return nil
	}
	opts = opts.sanitized()
	return filletFromRing(perimeter(corners, radius, opts), radius, opts.FilletSegments)
}

func filletFromRing(ring []station, radius float64, segs int) *mesh.Buffer {
	m := len(ring)
	if m < 3 {
		return nil
	}
	b := mesh.NewBuilder("fillet")
	rows := segs + 1
	for _, s := range ring {
		for k := 0; k < rows; k++ {
			off, y := profile(k, segs, radius)
			p := s.P.Add(s.N.Scale(off))
			b.AddVertex(r3.Vec{X: p.X, Y: y, Z: p.Z})
		}
	}
	at := func(j, k int) uint32 { return uint32((j%m)*rows + k) }
	for j := 0; j < m; j++ {
		for k := 0; k < segs; k++ {
			a, bb := at(j, k), at(j+1, k)
			c, d := at(j+1, k+1), at(j, k+1)
			b.AddTriangle(a, d, bb)
			b.AddTriangle(bb, d, c)
		}
	}
	return b.Buffer()
}
