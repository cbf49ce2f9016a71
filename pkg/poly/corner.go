package poly

import "math"

// SharpRadius is the corner radius below which a corner is treated as sharp.
const SharpRadius = 0.01

// Corner is the inset solution for one polygon vertex.
type Corner struct {
	Vertex     Point
	InsetStart Point // on the edge towards the previous vertex
	InsetEnd   Point // on the edge towards the next vertex
	Radius     float64
}

// Sharp reports whether the corner has no usable rounding.
func (c Corner) Sharp() bool { return c.Radius < SharpRadius }

// Bezier evaluates the quadratic Bezier InsetStart → Vertex → InsetEnd.
func (c Corner) Bezier(t float64) Point {
	u := 1 - t
	return c.InsetStart.Scale(u * u).
		Add(c.Vertex.Scale(2 * u * t)).
		Add(c.InsetEnd.Scale(t * t))
}

// Tangent returns the unit tangent of the corner Bezier at t.
func (c Corner) Tangent(t float64) Point {
	d := c.Vertex.Sub(c.InsetStart).Scale(2 * (1 - t)).
		Add(c.InsetEnd.Sub(c.Vertex).Scale(2 * t))
	return d.Unit()
}

// Corners solves the inset points of every vertex of p for the requested
// corner radius. The result has one entry per vertex in input order. The
// effective radius never exceeds half of either adjacent edge, so insets of
// neighbouring corners cannot cross.
func Corners(p Polygon, radius float64) []Corner {
	n := len(p)
	if n < 3 {
		return nil
	}
	if radius < 0 || math.IsNaN(radius) {
		radius = 0
	}
	corners := make([]Corner, n)
	for i := range p {
		prev, curr, next := p[(i+n-1)%n], p[i], p[(i+1)%n]
		toPrev, toNext := prev.Sub(curr), next.Sub(curr)
		lenPrev, lenNext := toPrev.Len(), toNext.Len()

		if lenPrev < DegenerateEdge || lenNext < DegenerateEdge {
			corners[i] = Corner{Vertex: curr, InsetStart: curr, InsetEnd: curr}
			continue
		}
		r := math.Min(radius, math.Min(lenPrev/2, lenNext/2))
		if r < 0 {
			r = 0
		}
		corners[i] = Corner{
			Vertex:     curr,
			InsetStart: curr.Add(toPrev.Scale(r / lenPrev)),
			InsetEnd:   curr.Add(toNext.Scale(r / lenNext)),
			Radius:     r,
		}
	}
	return corners
}

// TurnAngle returns the signed angle from direction a to direction b,
// wrapped into (−π, π].
func TurnAngle(a, b Point) float64 {
	d := b.Angle() - a.Angle()
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}
