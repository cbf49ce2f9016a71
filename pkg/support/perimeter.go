package support

import (
	"math"

	"github.com/chazu/fixtura/pkg/poly"
)

const (
	// concaveTurn is the turn between edge normals above which a corner of
	// a canonically wound outline is concave. Convex corners turn negative.
	concaveTurn = 1e-9
	miterLimit  = 4.0
	// apexTolerance absorbs the rounding of stations converging on one
	// miter apex.
	apexTolerance = 1e-9
)

// station is one sample of the support perimeter: a point on the body
// outline and the outward unit normal the fillet is swept along.
type station struct {
	P poly.Point
	N poly.Point
}

// perimeter samples the outline described by corners (of a canonically
// wound polygon) into a closed ring of stations. The fillet, the body and
// both caps are all derived from this ring, so their seams agree vertex for
// vertex.
//
// Each corner contributes a patch that starts on the previous edge's normal
// and ends on the next edge's normal; each edge contributes its interior
// stations. Sharp convex corners repeat the vertex with the normal swept
// along the signed shortest arc.
//
// Concave corners are where the fillet of the given radius runs into
// itself. A sharp one gets a single station whose normal is the miter of
// its edges, scaled so every fillet row meets both edge fillets. A rounded
// one keeps its swept normals unless the offset at radius would fold back;
// then every station of the patch converges on the miter point instead.
func perimeter(corners []poly.Corner, radius float64, opts Options) []station {
	n := len(corners)
	if n < 3 {
		return nil
	}
	normals := edgeNormals(corners)
	if normals == nil {
		return nil
	}

	var ring []station
	for i, c := range corners {
		prevN := normals[(i+n-1)%n]
		nextN := normals[i]
		turn := poly.TurnAngle(prevN, nextN)
		segs := cornerSegments(turn, opts.CornerStep)

		concave := turn > concaveTurn
		switch {
		case c.Sharp() && concave:
			ring = append(ring, station{P: c.Vertex, N: miter(prevN, nextN)})
		case c.Sharp():
			a0 := prevN.Angle()
			for k := 0; k <= segs; k++ {
				nk := prevN
				switch k {
				case 0:
				case segs:
					nk = nextN
				default:
					a := a0 + turn*float64(k)/float64(segs)
					nk = poly.Pt(math.Cos(a), math.Sin(a))
				}
				ring = append(ring, station{P: c.Vertex, N: nk})
			}
		default:
			patch := make([]station, 0, segs+1)
			for k := 0; k <= segs; k++ {
				switch k {
				case 0:
					patch = append(patch, station{P: c.InsetStart, N: prevN})
				case segs:
					patch = append(patch, station{P: c.InsetEnd, N: nextN})
				default:
					t := float64(k) / float64(segs)
					patch = append(patch, station{P: c.Bezier(t), N: poly.Outward(c.Tangent(t))})
				}
			}
			if concave && radius > 0 && folds(patch, radius) {
				apex := c.Vertex.Add(miter(prevN, nextN).Scale(radius))
				for j := range patch {
					patch[j].N = apex.Sub(patch[j].P).Scale(1 / radius)
				}
			}
			ring = append(ring, patch...)
		}

		// Interior stations of edge i, from this corner to the next.
		next := corners[(i+1)%n]
		from, to := edgeStart(c), edgeEnd(next)
		length := from.Dist(to)
		if length < poly.DegenerateEdge {
			continue
		}
		strips := int(math.Max(2, math.Ceil(length/opts.StripLength)))
		for k := 1; k < strips; k++ {
			t := float64(k) / float64(strips)
			ring = append(ring, station{P: from.Add(to.Sub(from).Scale(t)), N: nextN})
		}
	}
	return ring
}

// edgeStart is where the straight part of the edge after c begins.
func edgeStart(c poly.Corner) poly.Point {
	if c.Sharp() {
		return c.Vertex
	}
	return c.InsetEnd
}

// edgeEnd is where the straight part of the edge before c ends.
func edgeEnd(c poly.Corner) poly.Point {
	if c.Sharp() {
		return c.Vertex
	}
	return c.InsetStart
}

// edgeNormals returns the outward normal of edge i (corner i to corner i+1)
// for canonically wound corners. Degenerate edges borrow the normal of the
// nearest preceding usable edge. Returns nil when no edge is usable.
func edgeNormals(corners []poly.Corner) []poly.Point {
	n := len(corners)
	normals := make([]poly.Point, n)
	first := -1
	for i := range corners {
		d := corners[(i+1)%n].Vertex.Sub(corners[i].Vertex)
		if d.Len() >= poly.DegenerateEdge {
			normals[i] = poly.Outward(d.Unit())
			if first < 0 {
				first = i
			}
		}
	}
	if first < 0 {
		return nil
	}
	last := normals[first]
	for k := 0; k < n; k++ {
		i := (first + k) % n
		if normals[i] == (poly.Point{}) {
			normals[i] = last
		}
		last = normals[i]
	}
	return normals
}

// miter returns the vector m with m·a = m·b = 1 for unit normals a and b,
// the offset direction that keeps a point equidistant from both edges. Its
// length is capped at miterLimit.
func miter(a, b poly.Point) poly.Point {
	d := 1 + a.X*b.X + a.Z*b.Z
	if floor := 2 / (miterLimit * miterLimit); d < floor {
		d = floor
	}
	return a.Add(b).Scale(1 / d)
}

// folds reports whether offsetting patch by radius reverses the direction
// of travel anywhere.
func folds(patch []station, radius float64) bool {
	for j := 0; j+1 < len(patch); j++ {
		p0, p1 := patch[j], patch[j+1]
		d := p1.P.Sub(p0.P)
		o := p1.P.Add(p1.N.Scale(radius)).Sub(p0.P.Add(p0.N.Scale(radius)))
		if d.X*o.X+d.Z*o.Z <= 0 {
			return true
		}
	}
	return false
}

func cornerSegments(turn, step float64) int {
	return int(math.Max(4, math.Ceil(math.Abs(turn)/step)))
}

// bodyRing returns the station points with consecutive duplicates removed,
// including a duplicate between the last and the first.
func bodyRing(ring []station) poly.Polygon {
	out := make(poly.Polygon, 0, len(ring))
	for _, s := range ring {
		if len(out) > 0 && out[len(out)-1] == s.P {
			continue
		}
		out = append(out, s.P)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

// baseRing returns the outer base edge of the fillet: every station pushed
// out by radius along its normal. Points converging on a miter apex
// collapse to one.
func baseRing(ring []station, radius float64) poly.Polygon {
	out := make(poly.Polygon, 0, len(ring))
	for _, s := range ring {
		p := s.P.Add(s.N.Scale(radius))
		if len(out) > 0 && out[len(out)-1].Dist(p) < apexTolerance {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0].Dist(out[len(out)-1]) < apexTolerance {
		out = out[:len(out)-1]
	}
	return out
}
