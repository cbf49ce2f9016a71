package mesh

// StripUVs drops the texture coordinate channel.
func (m *Buffer) StripUVs() {
	if m != nil {
		m.UVs = nil
	}
}

// EnsureUVs adds a zero-filled texture coordinate channel when the buffer
// has none. Boolean kernels require every input to carry one.
func (m *Buffer) EnsureUVs() {
	if m == nil || len(m.UVs) == m.VertexCount()*2 {
		return
	}
	m.UVs = make([]float32, m.VertexCount()*2)
}

// ToNonIndexed returns a triangle soup copy of m: three fresh vertices per
// triangle, no index array. Normals and UVs are expanded alongside.
func (m *Buffer) ToNonIndexed() *Buffer {
	if m == nil {
		return nil
	}
	if !m.Indexed() {
		return m.Clone()
	}
	tris := m.TriangleCount()
	out := &Buffer{
		Vertices: make([]float32, 0, tris*9),
		PartName: m.PartName,
	}
	hasNormals := len(m.Normals) == len(m.Vertices)
	hasUVs := len(m.UVs) == m.VertexCount()*2
	if hasNormals {
		out.Normals = make([]float32, 0, tris*9)
	}
	if hasUVs {
		out.UVs = make([]float32, 0, tris*6)
	}
	for _, idx := range m.Indices {
		out.Vertices = append(out.Vertices, m.Vertices[idx*3:idx*3+3]...)
		if hasNormals {
			out.Normals = append(out.Normals, m.Normals[idx*3:idx*3+3]...)
		}
		if hasUVs {
			out.UVs = append(out.UVs, m.UVs[idx*2:idx*2+2]...)
		}
	}
	return out
}

// Merge concatenates parts into one triangle soup, in argument order. UVs
// and normals are dropped. Every input is disposed, including nil-safe
// empties. Returns nil when no part contributes a triangle.
func Merge(name string, parts ...*Buffer) *Buffer {
	out := &Buffer{PartName: name}
	for _, p := range parts {
		if p.IsEmpty() {
			p.Dispose()
			continue
		}
		soup := p.ToNonIndexed()
		out.Vertices = append(out.Vertices, soup.Vertices[:soup.TriangleCount()*9]...)
		p.Dispose()
	}
	if len(out.Vertices) == 0 {
		return nil
	}
	return out
}
