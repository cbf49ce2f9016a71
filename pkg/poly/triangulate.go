package poly

import "math"

// cross2 is the z component of (b−a)×(c−a).
func cross2(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Z-a.Z) - (b.Z-a.Z)*(c.X-a.X)
}

// SelfIntersects reports whether any two non-adjacent edges of p cross.
// Touching at shared endpoints does not count.
func SelfIntersects(p Polygon) bool {
	n := len(p)
	if n < 4 {
		return false
	}
	for i := 0; i < n; i++ {
		a1, a2 := p[i], p[(i+1)%n]
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			b1, b2 := p[j], p[(j+1)%n]
			if segmentsCross(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(a1, a2, b1, b2 Point) bool {
	const eps = 1e-12
	d1 := cross2(b1, b2, a1)
	d2 := cross2(b1, b2, a2)
	d3 := cross2(a1, a2, b1)
	d4 := cross2(a1, a2, b2)
	if ((d1 > eps && d2 < -eps) || (d1 < -eps && d2 > eps)) &&
		((d3 > eps && d4 < -eps) || (d3 < -eps && d4 > eps)) {
		return true
	}
	// Collinear overlap.
	if math.Abs(d1) <= eps && onSegment(b1, b2, a1) && a1 != b1 && a1 != b2 {
		return true
	}
	if math.Abs(d2) <= eps && onSegment(b1, b2, a2) && a2 != b1 && a2 != b2 {
		return true
	}
	return false
}

func onSegment(a, b, p Point) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Z, b.Z) <= p.Z && p.Z <= math.Max(a.Z, b.Z)
}

// StarShaped reports whether every edge of p is visible from c with the
// same orientation, which makes a fan around c a valid triangulation.
func StarShaped(p Polygon, c Point) bool {
	if len(p) < 3 {
		return false
	}
	var sign float64
	for i := range p {
		cr := cross2(c, p[i], p[(i+1)%len(p)])
		if math.Abs(cr) < 1e-12 {
			return false
		}
		if sign == 0 {
			sign = math.Copysign(1, cr)
			continue
		}
		if sign*cr < 0 {
			return false
		}
	}
	return true
}

// Triangulate ear-clips a simple polygon and returns index triples into p,
// every triple wound counter-clockwise in XZ. An ear is rejected when any
// other vertex lies inside it or on its boundary, so collinear runs and
// reflex vertices touching a diagonal never produce overlapping triangles.
// Every diagonal is shared by exactly two triangles.
func Triangulate(p Polygon) [][3]int {
	n := len(p)
	if n < 3 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if ShoelaceSum(p) > 0 {
		// Work in counter-clockwise order so convex tips have positive cross.
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			idx[i], idx[j] = idx[j], idx[i]
		}
	}
	lo, hi := Bounds(p)
	diag := hi.Sub(lo).Len()
	eps := 1e-12 * math.Max(diag*diag, 1)

	tris := make([][3]int, 0, n-2)
	for len(idx) > 3 {
		m := len(idx)
		ear := -1
		for i := 0; i < m; i++ {
			a, b, c := idx[(i+m-1)%m], idx[i], idx[(i+1)%m]
			if cross2(p[a], p[b], p[c]) <= eps {
				continue
			}
			if blocked(p, idx, a, b, c, eps) {
				continue
			}
			ear = i
			break
		}
		if ear < 0 {
			ear = fallbackEar(p, idx, eps)
		}
		a, b, c := idx[(ear+m-1)%m], idx[ear], idx[(ear+1)%m]
		tris = append(tris, [3]int{a, b, c})
		idx = append(idx[:ear], idx[ear+1:]...)
	}
	return append(tris, [3]int{idx[0], idx[1], idx[2]})
}

// blocked reports whether a vertex other than the ear's own corners lies
// inside triangle abc or on its boundary.
func blocked(p Polygon, idx []int, a, b, c int, eps float64) bool {
	pa, pb, pc := p[a], p[b], p[c]
	for _, k := range idx {
		if k == a || k == b || k == c {
			continue
		}
		q := p[k]
		if q == pa || q == pb || q == pc {
			continue
		}
		if cross2(pa, pb, q) >= -eps && cross2(pb, pc, q) >= -eps && cross2(pc, pa, q) >= -eps {
			return true
		}
	}
	return false
}

// fallbackEar picks the vertex to clip when no clean ear is left. A vertex
// lying between its neighbours on a straight run clips to a zero-area
// triangle without changing the remaining outline; failing that the
// flattest vertex goes.
func fallbackEar(p Polygon, idx []int, eps float64) int {
	m := len(idx)
	for i := 0; i < m; i++ {
		a, b, c := p[idx[(i+m-1)%m]], p[idx[i]], p[idx[(i+1)%m]]
		if math.Abs(cross2(a, b, c)) <= eps && (a.X-b.X)*(c.X-b.X)+(a.Z-b.Z)*(c.Z-b.Z) <= 0 {
			return i
		}
	}
	best, bestVal := 0, math.Inf(1)
	for i := 0; i < m; i++ {
		v := math.Abs(cross2(p[idx[(i+m-1)%m]], p[idx[i]], p[idx[(i+1)%m]]))
		if v < bestVal {
			best, bestVal = i, v
		}
	}
	return best
}
