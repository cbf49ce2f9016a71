package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// WeldTolerance is the default distance below which two vertices are merged.
const WeldTolerance = 0.01

// weldPoint is a kd-tree entry for an output vertex.
type weldPoint struct {
	p     [3]float64
	index uint32
}

func (w weldPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return w.p[d] - c.(weldPoint).p[d]
}

func (w weldPoint) Dims() int { return 3 }

// Distance returns the squared euclidean distance.
func (w weldPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(weldPoint)
	dx, dy, dz := w.p[0]-q.p[0], w.p[1]-q.p[1], w.p[2]-q.p[2]
	return dx*dx + dy*dy + dz*dz
}

// Weld merges vertices and returns a new indexed buffer with recomputed
// normals. It runs in two passes:
//
//  1. Vertices with identical positions are merged.
//  2. Vertices that still lie on an open edge snap to the first such vertex
//     within tol, visited in order.
//
// Vertices interior to a connected surface are never moved by the second
// pass. Triangles that collapse are dropped and unreferenced vertices
// removed. UVs are not carried over.
func Weld(m *Buffer, tol float64) *Buffer {
	if m.IsEmpty() {
		return nil
	}
	if tol < 0 || math.IsNaN(tol) {
		tol = 0
	}

	exact := weldExact(m)
	remap := make([]uint32, exact.VertexCount())
	for i := range remap {
		remap[i] = uint32(i)
	}
	if tol > 0 {
		snapOpen(exact, remap, tol)
	}
	out := remapTriangles(exact, remap)
	ComputeNormals(out)
	return out
}

// snapOpen points remap at the first earlier open-edge vertex within tol
// for every vertex on an open edge of m.
func snapOpen(m *Buffer, remap []uint32, tol float64) {
	open := OpenEdges(m)
	if len(open) == 0 {
		return
	}
	onBoundary := make([]bool, m.VertexCount())
	for _, e := range open {
		onBoundary[e[0]], onBoundary[e[1]] = true, true
	}
	tol2 := tol * tol
	var tree kdtree.Tree
	for i := range remap {
		if !onBoundary[i] {
			continue
		}
		v := m.Vertices[i*3 : i*3+3]
		q := weldPoint{p: [3]float64{float64(v[0]), float64(v[1]), float64(v[2])}, index: uint32(i)}
		if tree.Root != nil {
			if near, d := tree.Nearest(q); near != nil && d <= tol2 {
				remap[i] = near.(weldPoint).index
				continue
			}
		}
		tree.Insert(q, false)
	}
}

// weldExact merges bit-identical positions.
func weldExact(m *Buffer) *Buffer {
	remap := make([]uint32, m.VertexCount())
	seen := make(map[[3]float32]uint32, m.VertexCount())
	out := &Buffer{PartName: m.PartName}
	for i := range remap {
		v := m.Vertices[i*3 : i*3+3]
		key := [3]float32{v[0], v[1], v[2]}
		if j, ok := seen[key]; ok {
			remap[i] = j
			continue
		}
		j := uint32(len(out.Vertices) / 3)
		out.Vertices = append(out.Vertices, v...)
		seen[key] = j
		remap[i] = j
	}
	out.Indices = make([]uint32, 0, m.TriangleCount()*3)
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.Triangle(t)
		ra, rb, rc := remap[a], remap[b], remap[c]
		if ra == rb || rb == rc || ra == rc {
			continue
		}
		out.Indices = append(out.Indices, ra, rb, rc)
	}
	return out
}

// remapTriangles rewrites m's triangles through remap, drops collapsed ones
// and compacts the vertices that are still referenced.
func remapTriangles(m *Buffer, remap []uint32) *Buffer {
	out := &Buffer{PartName: m.PartName, Indices: make([]uint32, 0, len(m.Indices))}
	compact := make(map[uint32]uint32, m.VertexCount())
	index := func(i uint32) uint32 {
		if j, ok := compact[i]; ok {
			return j
		}
		j := uint32(len(out.Vertices) / 3)
		out.Vertices = append(out.Vertices, m.Vertices[i*3:i*3+3]...)
		compact[i] = j
		return j
	}
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.Triangle(t)
		ra, rb, rc := remap[a], remap[b], remap[c]
		if ra == rb || rb == rc || ra == rc {
			continue
		}
		out.Indices = append(out.Indices, index(ra), index(rb), index(rc))
	}
	return out
}
