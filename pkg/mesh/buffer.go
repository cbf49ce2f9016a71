// Package mesh holds the flat triangle buffers passed between the solid
// generators, the weld step and the boolean kernels.
//
// Ownership is single: every generator returns a fresh Buffer, Merge
// consumes (disposes) its inputs, and anything handed to a boolean kernel is
// cloned first.
package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Buffer is a triangle mesh. Vertices has 3 floats per vertex (x,y,z),
// Normals 3 per vertex when present, UVs 2 per vertex when present. Indices
// has 3 entries per triangle; a nil Indices slice means the buffer is a
// triangle soup where every 3 consecutive vertices form a triangle.
type Buffer struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals,omitempty"`
	UVs      []float32 `json:"uvs,omitempty"`
	Indices  []uint32  `json:"indices,omitempty"`
	PartName string    `json:"partName,omitempty"`
}

// VertexCount returns the number of vertices.
func (m *Buffer) VertexCount() int {
	if m == nil {
		return 0
	}
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Buffer) TriangleCount() int {
	if m == nil {
		return 0
	}
	if m.Indices == nil {
		return m.VertexCount() / 3
	}
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Buffer) IsEmpty() bool {
	return m == nil || len(m.Vertices) == 0
}

// Indexed reports whether triangles are described by Indices.
func (m *Buffer) Indexed() bool { return m != nil && m.Indices != nil }

// Triangle returns the vertex indices of triangle i.
func (m *Buffer) Triangle(i int) (a, b, c uint32) {
	if m.Indices == nil {
		base := uint32(i * 3)
		return base, base + 1, base + 2
	}
	return m.Indices[i*3], m.Indices[i*3+1], m.Indices[i*3+2]
}

// Position returns vertex i as a float64 vector.
func (m *Buffer) Position(i uint32) r3.Vec {
	return r3.Vec{
		X: float64(m.Vertices[i*3]),
		Y: float64(m.Vertices[i*3+1]),
		Z: float64(m.Vertices[i*3+2]),
	}
}

// Clone returns a deep copy of m.
func (m *Buffer) Clone() *Buffer {
	if m == nil {
		return nil
	}
	return &Buffer{
		Vertices: cloneF32(m.Vertices),
		Normals:  cloneF32(m.Normals),
		UVs:      cloneF32(m.UVs),
		Indices:  cloneU32(m.Indices),
		PartName: m.PartName,
	}
}

// Dispose releases the buffer's arrays. A disposed buffer is empty.
func (m *Buffer) Dispose() {
	if m == nil {
		return
	}
	m.Vertices, m.Normals, m.UVs, m.Indices = nil, nil, nil, nil
}

// Bounds returns the axis-aligned bounding box. An empty buffer returns a
// zero box.
func (m *Buffer) Bounds() r3.Box {
	if m.IsEmpty() {
		return r3.Box{}
	}
	min := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	max := r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for i := 0; i < m.VertexCount(); i++ {
		p := m.Position(uint32(i))
		min = r3.Vec{X: math.Min(min.X, p.X), Y: math.Min(min.Y, p.Y), Z: math.Min(min.Z, p.Z)}
		max = r3.Vec{X: math.Max(max.X, p.X), Y: math.Max(max.Y, p.Y), Z: math.Max(max.Z, p.Z)}
	}
	return r3.Box{Min: min, Max: max}
}

// Builder accumulates an indexed buffer.
type Builder struct {
	buf Buffer
}

// NewBuilder returns a builder for a part with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{buf: Buffer{PartName: name, Indices: []uint32{}}}
}

// AddVertex appends a vertex and returns its index.
func (b *Builder) AddVertex(p r3.Vec) uint32 {
	b.buf.Vertices = append(b.buf.Vertices, float32(p.X), float32(p.Y), float32(p.Z))
	return uint32(len(b.buf.Vertices)/3 - 1)
}

// AddTriangle appends a triangle. Winding a→b→c is counter-clockwise when
// seen from the side the face normal points to.
func (b *Builder) AddTriangle(a, c1, c2 uint32) {
	b.buf.Indices = append(b.buf.Indices, a, c1, c2)
}

// AddQuad appends the quad a→b→c→d as two triangles.
func (b *Builder) AddQuad(a, c1, c2, d uint32) {
	b.AddTriangle(a, c1, c2)
	b.AddTriangle(a, c2, d)
}

// VertexCount returns the number of vertices added so far.
func (b *Builder) VertexCount() int { return len(b.buf.Vertices) / 3 }

// Buffer returns the built mesh. The builder must not be used afterwards.
func (b *Builder) Buffer() *Buffer {
	out := b.buf
	b.buf = Buffer{}
	return &out
}

func cloneF32(s []float32) []float32 {
	if s == nil {
		return nil
	}
	out := make([]float32, len(s))
	copy(out, s)
	return out
}

func cloneU32(s []uint32) []uint32 {
	if s == nil {
		return nil
	}
	out := make([]uint32, len(s))
	copy(out, s)
	return out
}
