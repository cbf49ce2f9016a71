package mesh

import (
	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/spatial/r3"
)

// ComputeNormals replaces m.Normals with area-weighted vertex normals.
func ComputeNormals(m *Buffer) {
	if m.IsEmpty() {
		return
	}
	normals := make([]float32, len(m.Vertices))
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.Triangle(t)
		ax, ay, az := m.Vertices[a*3], m.Vertices[a*3+1], m.Vertices[a*3+2]
		e1x, e1y, e1z := m.Vertices[b*3]-ax, m.Vertices[b*3+1]-ay, m.Vertices[b*3+2]-az
		e2x, e2y, e2z := m.Vertices[c*3]-ax, m.Vertices[c*3+1]-ay, m.Vertices[c*3+2]-az

		// Unnormalized cross product; its length is twice the face area.
		nx := e1y*e2z - e1z*e2y
		ny := e1z*e2x - e1x*e2z
		nz := e1x*e2y - e1y*e2x
		for _, idx := range [3]uint32{a, b, c} {
			normals[idx*3] += nx
			normals[idx*3+1] += ny
			normals[idx*3+2] += nz
		}
	}
	for i := 0; i+2 < len(normals); i += 3 {
		l := math32.Sqrt(normals[i]*normals[i] + normals[i+1]*normals[i+1] + normals[i+2]*normals[i+2])
		if l > 1e-8 {
			normals[i] /= l
			normals[i+1] /= l
			normals[i+2] /= l
		}
	}
	m.Normals = normals
}

// FaceNormal returns the unit normal of triangle t by the right-hand rule,
// or the zero vector for a degenerate triangle.
func FaceNormal(m *Buffer, t int) r3.Vec {
	a, b, c := m.Triangle(t)
	pa, pb, pc := m.Position(a), m.Position(b), m.Position(c)
	n := r3.Cross(r3.Sub(pb, pa), r3.Sub(pc, pa))
	if r3.Norm(n) < 1e-12 {
		return r3.Vec{}
	}
	return r3.Unit(n)
}
