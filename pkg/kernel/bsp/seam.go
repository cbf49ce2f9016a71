package bsp

import (
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/fixtura/pkg/mesh"
)

// seamTolerance merges vertices that the two sides of a cut computed
// separately and bounds the distance of a t-junction vertex from the edge
// it is inserted into.
const seamTolerance = 1e-5

// seamPoint is a kd-tree entry for a sealed vertex.
type seamPoint struct {
	p     r3.Vec
	index int
}

func (s seamPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(seamPoint)
	switch d {
	case 0:
		return s.p.X - q.p.X
	case 1:
		return s.p.Y - q.p.Y
	}
	return s.p.Z - q.p.Z
}

func (s seamPoint) Dims() int { return 3 }

// Distance returns the squared euclidean distance.
func (s seamPoint) Distance(c kdtree.Comparable) float64 {
	d := r3.Sub(s.p, c.(seamPoint).p)
	return r3.Dot(d, d)
}

// sealer accumulates merged vertices.
type sealer struct {
	verts []r3.Vec
	tree  kdtree.Tree
}

// index returns the vertex within seamTolerance of v, adding v if there is
// none.
func (s *sealer) index(v r3.Vec) int {
	q := seamPoint{p: v}
	if s.tree.Root != nil {
		if near, d := s.tree.Nearest(q); near != nil && d <= seamTolerance*seamTolerance {
			return near.(seamPoint).index
		}
	}
	q.index = len(s.verts)
	s.verts = append(s.verts, v)
	s.tree.Insert(q, false)
	return q.index
}

// onEdge returns the vertices lying strictly inside segment u→w, ordered
// from u.
func (s *sealer) onEdge(u, w int) []int {
	a, b := s.verts[u], s.verts[w]
	ab := r3.Sub(b, a)
	l2 := r3.Dot(ab, ab)
	if l2 == 0 {
		return nil
	}
	pad := r3.Vec{X: seamTolerance, Y: seamTolerance, Z: seamTolerance}
	lo := r3.Sub(r3.Vec{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)}, pad)
	hi := r3.Add(r3.Vec{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)}, pad)

	type hit struct {
		index int
		t     float64
	}
	var hits []hit
	s.tree.DoBounded(&kdtree.Bounding{Min: seamPoint{p: lo}, Max: seamPoint{p: hi}},
		func(c kdtree.Comparable, _ *kdtree.Bounding, _ int) bool {
			q := c.(seamPoint)
			if q.index == u || q.index == w {
				return false
			}
			t := r3.Dot(r3.Sub(q.p, a), ab) / l2
			if t <= 1e-9 || t >= 1-1e-9 {
				return false
			}
			d := r3.Sub(q.p, r3.Add(a, r3.Scale(t, ab)))
			if r3.Dot(d, d) <= seamTolerance*seamTolerance {
				hits = append(hits, hit{q.index, t})
			}
			return false
		})
	sort.Slice(hits, func(i, j int) bool { return hits[i].t < hits[j].t })
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.index
	}
	return out
}

// seal turns polys into an indexed mesh. Vertices within seamTolerance are
// merged, every polygon edge another vertex lies on gains that vertex, and
// the polygons are fanned into triangles: from their first vertex when
// untouched, from their centroid when an edge gained vertices. Returns the
// number of polygons that gained vertices.
func seal(polys []polygon, name string) (*mesh.Buffer, int) {
	s := &sealer{}
	rings := make([][]int, 0, len(polys))
	for _, p := range polys {
		ring := make([]int, 0, len(p.verts))
		for _, v := range p.verts {
			i := s.index(v)
			if len(ring) > 0 && ring[len(ring)-1] == i {
				continue
			}
			ring = append(ring, i)
		}
		for len(ring) > 1 && ring[0] == ring[len(ring)-1] {
			ring = ring[:len(ring)-1]
		}
		if len(ring) >= 3 {
			rings = append(rings, ring)
		}
	}

	out := &mesh.Buffer{PartName: name}
	var tris []uint32
	splits := 0
	for _, ring := range rings {
		n := len(ring)
		full := make([]int, 0, n)
		for k, u := range ring {
			full = append(full, u)
			full = append(full, s.onEdge(u, ring[(k+1)%n])...)
		}
		if len(full) == n {
			for k := 1; k+1 < n; k++ {
				tris = append(tris, uint32(ring[0]), uint32(ring[k]), uint32(ring[k+1]))
			}
			continue
		}
		splits++
		var c r3.Vec
		for _, u := range full {
			c = r3.Add(c, s.verts[u])
		}
		// The centre is not entered into the tree: no edge can run
		// through it.
		centre := uint32(len(s.verts))
		s.verts = append(s.verts, r3.Scale(1/float64(len(full)), c))
		for k := range full {
			tris = append(tris, centre, uint32(full[k]), uint32(full[(k+1)%len(full)]))
		}
	}
	if len(tris) == 0 {
		return out, splits
	}
	out.Vertices = make([]float32, 0, len(s.verts)*3)
	for _, v := range s.verts {
		out.Vertices = append(out.Vertices, float32(v.X), float32(v.Y), float32(v.Z))
	}
	out.Indices = tris
	mesh.ComputeNormals(out)
	return out, splits
}
