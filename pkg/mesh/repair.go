package mesh

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

const maxRepairPasses = 16

// RepairTJunctions closes cracks left by boolean operations in a welded
// mesh. A boundary edge with another boundary vertex lying on it (within
// tol) is split at that vertex, fanning the owning triangle from its
// opposite corner. Orientation is preserved. Returns the number of
// triangles split.
func RepairTJunctions(m *Buffer, tol float64) int {
	if !m.Indexed() || m.IsEmpty() {
		return 0
	}
	tol2 := tol * tol
	splits := 0
	for pass := 0; pass < maxRepairPasses; pass++ {
		open := OpenEdges(m)
		if len(open) == 0 {
			break
		}
		onBoundary := make(map[uint32]struct{}, len(open))
		for _, e := range open {
			onBoundary[e[0]], onBoundary[e[1]] = struct{}{}, struct{}{}
		}
		candidates := make([]uint32, 0, len(onBoundary))
		for v := range onBoundary {
			candidates = append(candidates, v)
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

		openSet := make(map[[2]uint32]struct{}, len(open))
		for _, e := range open {
			openSet[e] = struct{}{}
		}

		changed := false
		indices := make([]uint32, 0, len(m.Indices))
		for t := 0; t < m.TriangleCount(); t++ {
			a, b, c := m.Triangle(t)
			tri := [3]uint32{a, b, c}
			split := false
			for k := 0; k < 3 && !split; k++ {
				p, q, opp := tri[k], tri[(k+1)%3], tri[(k+2)%3]
				if _, ok := openSet[[2]uint32{p, q}]; !ok {
					continue
				}
				on := pointsOnSegment(m, p, q, candidates, tol2)
				if len(on) == 0 {
					continue
				}
				chain := append(append([]uint32{p}, on...), q)
				for i := 0; i+1 < len(chain); i++ {
					indices = append(indices, chain[i], chain[i+1], opp)
				}
				split = true
			}
			if split {
				changed = true
				splits++
				continue
			}
			indices = append(indices, a, b, c)
		}
		m.Indices = indices
		if !changed {
			break
		}
	}
	if splits > 0 {
		ComputeNormals(m)
	}
	return splits
}

// pointsOnSegment returns the candidates strictly inside segment p→q,
// ordered from p to q.
func pointsOnSegment(m *Buffer, p, q uint32, candidates []uint32, tol2 float64) []uint32 {
	a, b := m.Position(p), m.Position(q)
	ab := r3.Sub(b, a)
	l2 := r3.Dot(ab, ab)
	if l2 == 0 {
		return nil
	}
	type hit struct {
		v uint32
		t float64
	}
	var hits []hit
	for _, v := range candidates {
		if v == p || v == q {
			continue
		}
		pos := m.Position(v)
		t := r3.Dot(r3.Sub(pos, a), ab) / l2
		if t <= 1e-6 || t >= 1-1e-6 {
			continue
		}
		closest := r3.Add(a, r3.Scale(t, ab))
		d := r3.Sub(pos, closest)
		if r3.Dot(d, d) > tol2 {
			continue
		}
		hits = append(hits, hit{v, t})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].t < hits[j].t })
	out := make([]uint32, len(hits))
	for i, h := range hits {
		out[i] = h.v
	}
	return out
}
