// Package poly holds the 2D footprint math for supports: winding
// normalization, outward edge normals and per-corner inset solving.
//
// Footprints live in the horizontal XZ plane. Every consumer in this module
// assumes the canonical winding produced by Normalize; nothing downstream
// re-derives orientation on its own.
package poly

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/spatial/r2"
)

// DegenerateEdge is the length below which an edge is treated as
// zero-length: its normal is the zero vector and corners touching it are
// sharp.
const DegenerateEdge = 0.01

// ErrTooFewPoints is returned when a polygon has fewer than 3 points.
var ErrTooFewPoints = errors.New("poly: polygon needs at least 3 points")

// Point is a position in the horizontal XZ plane.
type Point struct {
	X float64 `json:"x" toml:"x"`
	Z float64 `json:"z" toml:"z"`
}

// Pt is shorthand for Point{X: x, Z: z}.
func Pt(x, z float64) Point { return Point{X: x, Z: z} }

func (p Point) vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Z} }

func fromVec(v r2.Vec) Point { return Point{X: v.X, Z: v.Y} }

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Z: p.Z + q.Z} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Z: p.Z - q.Z} }

// Scale returns f*p.
func (p Point) Scale(f float64) Point { return Point{X: f * p.X, Z: f * p.Z} }

// Len returns the Euclidean length of p.
func (p Point) Len() float64 { return r2.Norm(p.vec()) }

// Unit returns p scaled to unit length, or the zero point when p is shorter
// than DegenerateEdge.
func (p Point) Unit() Point {
	if p.Len() < DegenerateEdge {
		return Point{}
	}
	return fromVec(r2.Unit(p.vec()))
}

// Dist returns the distance between p and q.
func (p Point) Dist(q Point) float64 { return p.Sub(q).Len() }

// Angle returns the direction of p in radians, measured from +X towards +Z.
func (p Point) Angle() float64 { return math.Atan2(p.Z, p.X) }

// Polygon is an ordered ring of points. The closing edge from the last
// point back to the first is implicit.
type Polygon []Point

// Clone returns a copy of p.
func (p Polygon) Clone() Polygon {
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// Reverse returns p with its point order reversed.
func (p Polygon) Reverse() Polygon {
	out := make(Polygon, len(p))
	for i, pt := range p {
		out[len(p)-1-i] = pt
	}
	return out
}

// ring converts p to a closed orb ring.
func (p Polygon) ring() orb.Ring {
	r := make(orb.Ring, 0, len(p)+1)
	for _, pt := range p {
		r = append(r, orb.Point{pt.X, pt.Z})
	}
	if len(p) > 0 {
		r = append(r, orb.Point{p[0].X, p[0].Z})
	}
	return r
}

// ShoelaceSum returns Σ(x2−x1)(z2+z1) over all edges. Positive means the
// canonical ("clockwise") winding.
func ShoelaceSum(p Polygon) float64 {
	var sum float64
	for i := range p {
		a, b := p[i], p[(i+1)%len(p)]
		sum += (b.X - a.X) * (b.Z + a.Z)
	}
	return sum
}

// IsClockwise reports whether p has the canonical winding. Polygons with
// zero area count as canonical.
func IsClockwise(p Polygon) bool {
	if len(p) < 3 {
		return true
	}
	return p.ring().Orientation() != orb.CCW
}

// Normalize returns a copy of p in the canonical winding. It is idempotent,
// and Normalize(p) equals Normalize(p.Reverse()).
func Normalize(p Polygon) (Polygon, error) {
	if len(p) < 3 {
		return nil, ErrTooFewPoints
	}
	if IsClockwise(p) {
		return p.Clone(), nil
	}
	return p.Reverse(), nil
}

// Clean drops consecutive points closer than tol, including a trailing
// point that repeats the first one.
func Clean(p Polygon, tol float64) Polygon {
	out := make(Polygon, 0, len(p))
	for _, pt := range p {
		if len(out) > 0 && out[len(out)-1].Dist(pt) < tol {
			continue
		}
		out = append(out, pt)
	}
	for len(out) > 1 && out[0].Dist(out[len(out)-1]) < tol {
		out = out[:len(out)-1]
	}
	return out
}

// Outward returns the outward normal for an edge direction d of a
// canonically wound polygon: (−dz, dx).
func Outward(d Point) Point { return Point{X: -d.Z, Z: d.X} }

// EdgeNormals returns the outward unit normal of every edge p[i]→p[i+1].
// Edges shorter than DegenerateEdge get the zero normal.
func EdgeNormals(p Polygon) []Point {
	cw := IsClockwise(p)
	normals := make([]Point, len(p))
	for i := range p {
		d := p[(i+1)%len(p)].Sub(p[i]).Unit()
		if cw {
			normals[i] = Point{X: -d.Z, Z: d.X}
		} else {
			normals[i] = Point{X: d.Z, Z: -d.X}
		}
	}
	return normals
}

// Area returns the unsigned area of p.
func Area(p Polygon) float64 {
	if len(p) < 3 {
		return 0
	}
	_, a := planar.CentroidArea(p.ring())
	return math.Abs(a)
}

// Centroid returns the area centroid of p, falling back to the vertex
// average for zero-area rings.
func Centroid(p Polygon) Point {
	if len(p) == 0 {
		return Point{}
	}
	if len(p) >= 3 {
		c, a := planar.CentroidArea(p.ring())
		if math.Abs(a) > 1e-12 {
			return Point{X: c[0], Z: c[1]}
		}
	}
	var sum Point
	for _, pt := range p {
		sum = sum.Add(pt)
	}
	return sum.Scale(1 / float64(len(p)))
}

// Bounds returns the axis-aligned bounds of p as min and max corners.
func Bounds(p Polygon) (min, max Point) {
	if len(p) == 0 {
		return Point{}, Point{}
	}
	b := p.ring().Bound()
	return Point{X: b.Min[0], Z: b.Min[1]}, Point{X: b.Max[0], Z: b.Max[1]}
}
