// Package meshio converts between mesh buffers and STL files.
package meshio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hschendel/stl"
	"github.com/rs/zerolog/log"

	"github.com/chazu/fixtura/pkg/mesh"
)

var ErrEmptyMesh = errors.New("meshio: mesh has no triangles")

// FromSolid welds the triangles of s into an indexed buffer and splits
// triangles along edges that another vertex sits on.
func FromSolid(s *stl.Solid, name string) (*mesh.Buffer, error) {
	if s == nil || len(s.Triangles) == 0 {
		return nil, ErrEmptyMesh
	}
	if name == "" {
		name = s.Name
	}
	soup := &mesh.Buffer{PartName: name, Vertices: make([]float32, 0, len(s.Triangles)*9)}
	for _, t := range s.Triangles {
		for _, v := range t.Vertices {
			soup.Vertices = append(soup.Vertices, v[0], v[1], v[2])
		}
	}
	out := mesh.Weld(soup, mesh.WeldTolerance)
	if out.IsEmpty() || out.TriangleCount() == 0 {
		return nil, ErrEmptyMesh
	}
	if n := mesh.RepairTJunctions(out, mesh.WeldTolerance); n > 0 {
		log.Debug().Str("part", name).Int("split", n).Msg("meshio: repaired t-junctions")
	}
	return out, nil
}

// ToSolid converts m to STL triangles with per-face normals.
func ToSolid(m *mesh.Buffer) (*stl.Solid, error) {
	if m.IsEmpty() || m.TriangleCount() == 0 {
		return nil, ErrEmptyMesh
	}
	s := &stl.Solid{Name: m.PartName, Triangles: make([]stl.Triangle, m.TriangleCount())}
	for t := range s.Triangles {
		a, b, c := m.Triangle(t)
		n := mesh.FaceNormal(m, t)
		tri := &s.Triangles[t]
		tri.Normal = stl.Vec3{float32(n.X), float32(n.Y), float32(n.Z)}
		for k, i := range [3]uint32{a, b, c} {
			p := m.Position(i)
			tri.Vertices[k] = stl.Vec3{float32(p.X), float32(p.Y), float32(p.Z)}
		}
	}
	return s, nil
}

// ReadSTL reads an ASCII or binary STL stream. The stl decoder needs to
// seek to tell the two formats apart, so r is buffered in memory.
func ReadSTL(r io.Reader, name string) (*mesh.Buffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("meshio: read stl: %w", err)
	}
	s, err := stl.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("meshio: read stl: %w", err)
	}
	return FromSolid(s, name)
}

// ReadSTLFile reads path, naming the part after the file.
func ReadSTLFile(path string) (*mesh.Buffer, error) {
	s, err := stl.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("meshio: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m, err := FromSolid(s, name)
	if err != nil {
		return nil, fmt.Errorf("meshio: %s: %w", path, err)
	}
	return m, nil
}

// WriteSTL writes m to w, binary unless ascii is set.
func WriteSTL(w io.Writer, m *mesh.Buffer, ascii bool) error {
	s, err := ToSolid(m)
	if err != nil {
		return err
	}
	s.IsAscii = ascii
	if err := s.WriteAll(w); err != nil {
		return fmt.Errorf("meshio: write stl: %w", err)
	}
	return nil
}

// WriteSTLFile writes m to path as binary STL.
func WriteSTLFile(path string, m *mesh.Buffer) error {
	s, err := ToSolid(m)
	if err != nil {
		return err
	}
	if err := s.WriteFile(path); err != nil {
		return fmt.Errorf("meshio: %w", err)
	}
	return nil
}
