package mesh

import "gonum.org/v1/gonum/spatial/r3"

// EdgeStats summarizes the edge structure of an indexed mesh.
type EdgeStats struct {
	Edges       int // undirected
	Open        int // used by exactly one triangle
	NonManifold int // used by more than two triangles
	Misoriented int // used twice in the same direction
}

// Closed reports whether every edge is shared by exactly two triangles in
// opposite directions.
func (s EdgeStats) Closed() bool {
	return s.Edges > 0 && s.Open == 0 && s.NonManifold == 0 && s.Misoriented == 0
}

type edgeKey struct{ a, b uint32 }

func undirected(a, b uint32) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

type edgeUse struct {
	count   int
	forward int // uses in a<b direction
}

func edgeUses(m *Buffer) map[edgeKey]*edgeUse {
	uses := make(map[edgeKey]*edgeUse, m.TriangleCount()*3/2)
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.Triangle(t)
		for _, e := range [3][2]uint32{{a, b}, {b, c}, {c, a}} {
			k := undirected(e[0], e[1])
			u := uses[k]
			if u == nil {
				u = &edgeUse{}
				uses[k] = u
			}
			u.count++
			if e[0] < e[1] {
				u.forward++
			}
		}
	}
	return uses
}

// Edges computes the edge statistics of m. Soups report every edge open;
// weld first.
func Edges(m *Buffer) EdgeStats {
	var s EdgeStats
	if m.IsEmpty() {
		return s
	}
	for _, u := range edgeUses(m) {
		s.Edges++
		switch {
		case u.count == 1:
			s.Open++
		case u.count > 2:
			s.NonManifold++
		case u.forward != 1:
			s.Misoriented++
		}
	}
	return s
}

// IsClosed reports whether m is a closed, consistently oriented 2-manifold.
func IsClosed(m *Buffer) bool { return Edges(m).Closed() }

// OpenEdges returns the boundary edges of m, directed as they appear in
// their single triangle.
func OpenEdges(m *Buffer) [][2]uint32 {
	if m.IsEmpty() {
		return nil
	}
	uses := edgeUses(m)
	var open [][2]uint32
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.Triangle(t)
		for _, e := range [3][2]uint32{{a, b}, {b, c}, {c, a}} {
			if uses[undirected(e[0], e[1])].count == 1 {
				open = append(open, e)
			}
		}
	}
	return open
}

// EulerCharacteristic returns V − E + F counting only referenced vertices.
// A closed genus-0 surface yields 2.
func EulerCharacteristic(m *Buffer) int {
	if m.IsEmpty() {
		return 0
	}
	used := make(map[uint32]struct{})
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.Triangle(t)
		used[a], used[b], used[c] = struct{}{}, struct{}{}, struct{}{}
	}
	return len(used) - len(edgeUses(m)) + m.TriangleCount()
}

// Volume returns the signed volume enclosed by m. Outward-facing closed
// meshes have positive volume.
func Volume(m *Buffer) float64 {
	if m.IsEmpty() {
		return 0
	}
	var v float64
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.Triangle(t)
		v += r3.Dot(m.Position(a), r3.Cross(m.Position(b), m.Position(c)))
	}
	return v / 6
}
