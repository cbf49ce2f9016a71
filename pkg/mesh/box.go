package mesh

import "gonum.org/v1/gonum/spatial/r3"

// Box returns a closed axis-aligned box spanning min..max with outward
// facing triangles.
func Box(name string, min, max r3.Vec) *Buffer {
	b := NewBuilder(name)
	for i := 0; i < 8; i++ {
		p := min
		if i&1 != 0 {
			p.X = max.X
		}
		if i&2 != 0 {
			p.Y = max.Y
		}
		if i&4 != 0 {
			p.Z = max.Z
		}
		b.AddVertex(p)
	}
	b.AddQuad(0, 4, 6, 2) // -X
	b.AddQuad(1, 3, 7, 5) // +X
	b.AddQuad(0, 1, 5, 4) // -Y
	b.AddQuad(2, 6, 7, 3) // +Y
	b.AddQuad(0, 2, 3, 1) // -Z
	b.AddQuad(4, 5, 7, 6) // +Z
	out := b.Buffer()
	ComputeNormals(out)
	return out
}
