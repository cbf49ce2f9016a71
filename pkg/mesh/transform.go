package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Transform returns a copy of m rotated by yaw radians about +Y
// (right-handed) and then translated by offset.
func Transform(m *Buffer, yaw float64, offset r3.Vec) *Buffer {
	if m == nil {
		return nil
	}
	out := m.Clone()
	sin, cos := math.Sincos(yaw)
	rot := func(s []float32, translate bool) {
		for i := 0; i+2 < len(s); i += 3 {
			x, y, z := float64(s[i]), float64(s[i+1]), float64(s[i+2])
			nx := x*cos + z*sin
			nz := -x*sin + z*cos
			if translate {
				nx, y, nz = nx+offset.X, y+offset.Y, nz+offset.Z
			}
			s[i], s[i+1], s[i+2] = float32(nx), float32(y), float32(nz)
		}
	}
	rot(out.Vertices, true)
	rot(out.Normals, false)
	return out
}

// FlipWinding reverses every triangle in place and negates the normals.
func FlipWinding(m *Buffer) {
	if m.IsEmpty() {
		return
	}
	if m.Indexed() {
		for i := 0; i+2 < len(m.Indices); i += 3 {
			m.Indices[i+1], m.Indices[i+2] = m.Indices[i+2], m.Indices[i+1]
		}
	} else {
		for t := 0; t < m.TriangleCount(); t++ {
			b, c := (t*3+1)*3, (t*3+2)*3
			for k := 0; k < 3; k++ {
				m.Vertices[b+k], m.Vertices[c+k] = m.Vertices[c+k], m.Vertices[b+k]
			}
			if len(m.Normals) == len(m.Vertices) {
				for k := 0; k < 3; k++ {
					m.Normals[b+k], m.Normals[c+k] = m.Normals[c+k], m.Normals[b+k]
				}
			}
			if len(m.UVs) == m.VertexCount()*2 {
				ub, uc := (t*3+1)*2, (t*3+2)*2
				for k := 0; k < 2; k++ {
					m.UVs[ub+k], m.UVs[uc+k] = m.UVs[uc+k], m.UVs[ub+k]
				}
			}
		}
	}
	for i := range m.Normals {
		m.Normals[i] = -m.Normals[i]
	}
}

// BottomNormalY is the face normal Y component below which a flat triangle
// counts as facing down.
const BottomNormalY = -0.9

// StripBottomFaces returns a copy of m without the triangles that lie flat
// on y = bottomY (within eps) and face downwards.
func StripBottomFaces(m *Buffer, bottomY, eps float64) *Buffer {
	if m.IsEmpty() {
		return nil
	}
	indexed := m.Indexed()
	out := &Buffer{PartName: m.PartName}
	if indexed {
		out.Vertices = cloneF32(m.Vertices)
		out.Normals = cloneF32(m.Normals)
		out.UVs = cloneF32(m.UVs)
		out.Indices = make([]uint32, 0, len(m.Indices))
	}
	onBottom := func(i uint32) bool {
		return math.Abs(float64(m.Vertices[i*3+1])-bottomY) <= eps
	}
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.Triangle(t)
		if onBottom(a) && onBottom(b) && onBottom(c) && FaceNormal(m, t).Y < BottomNormalY {
			continue
		}
		if indexed {
			out.Indices = append(out.Indices, a, b, c)
			continue
		}
		out.Vertices = append(out.Vertices, m.Vertices[a*3:c*3+3]...)
	}
	return out
}
