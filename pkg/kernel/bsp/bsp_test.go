package bsp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/fixtura/pkg/kernel"
	"github.com/chazu/fixtura/pkg/mesh"
)

func cube(name string, min, max float64) *mesh.Buffer {
	return mesh.Box(name, r3.Vec{X: min, Y: min, Z: min}, r3.Vec{X: max, Y: max, Z: max})
}

func TestRegistered(t *testing.T) {
	k, err := kernel.Open(Name)
	require.NoError(t, err)
	assert.Equal(t, Name, k.Name())
}

func TestSubtractContained(t *testing.T) {
	target := cube("target", -5, 5)
	tool := cube("tool", -2, 2)

	var steps []int
	out, err := New().Subtract(context.Background(), target, tool, func(p int) { steps = append(steps, p) })
	require.NoError(t, err)
	require.False(t, out.IsEmpty())

	assert.InDelta(t, 1000-64, mesh.Volume(out), 1e-2)
	stats := mesh.Edges(out)
	assert.True(t, stats.Closed(), "%+v", stats)
	assert.Equal(t, "target", out.PartName)

	require.NotEmpty(t, steps)
	assert.Equal(t, 0, steps[0])
	assert.Equal(t, 100, steps[len(steps)-1])
	for i := 1; i < len(steps); i++ {
		assert.GreaterOrEqual(t, steps[i], steps[i-1])
	}

	// Inputs are untouched.
	assert.Equal(t, 12, target.TriangleCount())
	assert.Equal(t, 12, tool.TriangleCount())
}

func TestSubtractCorner(t *testing.T) {
	target := cube("target", 0, 10)
	tool := cube("tool", 5, 15)

	out, err := New().Subtract(context.Background(), target, tool, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1000-125, mesh.Volume(out), 1e-2)
	assert.True(t, mesh.IsClosed(out))
	assert.Equal(t, 2, mesh.EulerCharacteristic(out))

	b := out.Bounds()
	assert.InDelta(t, 0, b.Min.X, 1e-6)
	assert.InDelta(t, 10, b.Max.Y, 1e-6)
}

func TestSubtractClosed(t *testing.T) {
	box := func(name string, min, max r3.Vec) *mesh.Buffer { return mesh.Box(name, min, max) }
	tests := []struct {
		name   string
		tool   *mesh.Buffer
		volume float64
		euler  int
	}{
		{"pocket flush with the top", box("tool", r3.Vec{X: 2, Y: 5, Z: 2}, r3.Vec{X: 8, Y: 10, Z: 8}), 1000 - 180, 2},
		{"hole through", box("tool", r3.Vec{X: 2, Y: -1, Z: 2}, r3.Vec{X: 8, Y: 11, Z: 8}), 1000 - 360, 0},
		{"slot across", box("tool", r3.Vec{X: -1, Y: 4, Z: 3}, r3.Vec{X: 11, Y: 6, Z: 7}), 1000 - 80, 0},
		{"slab across", box("tool", r3.Vec{X: -1, Y: 4, Z: -1}, r3.Vec{X: 11, Y: 6, Z: 11}), 1000 - 200, 4},
		{"edge chamfer", box("tool", r3.Vec{X: 8, Y: 8, Z: -1}, r3.Vec{X: 11, Y: 11, Z: 11}), 1000 - 40, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := New().Subtract(context.Background(), cube("target", 0, 10), tt.tool, nil)
			require.NoError(t, err)
			stats := mesh.Edges(out)
			assert.True(t, stats.Closed(), "%+v", stats)
			assert.Equal(t, tt.euler, mesh.EulerCharacteristic(out))
			assert.InDelta(t, tt.volume, mesh.Volume(out), 1e-2)
		})
	}
}

func TestSubtractKeepsFarFace(t *testing.T) {
	// The -X face is nowhere near the tool. Cuts running across the
	// neighbouring faces may split its edges, but it must stay flat, facing
	// -X and fully covered.
	out, err := New().Subtract(context.Background(), cube("target", 0, 10), cube("tool", 8, 12), nil)
	require.NoError(t, err)
	var area float64
	for i := 0; i < out.TriangleCount(); i++ {
		a, b, c := out.Triangle(i)
		pa, pb, pc := out.Position(a), out.Position(b), out.Position(c)
		if pa.X != 0 || pb.X != 0 || pc.X != 0 {
			continue
		}
		n := r3.Cross(r3.Sub(pb, pa), r3.Sub(pc, pa))
		assert.LessOrEqual(t, n.X, 0.0)
		area += r3.Norm(n) / 2
	}
	assert.InDelta(t, 100, area, 1e-6)
}

func TestSubtractDisjoint(t *testing.T) {
	target := cube("target", 0, 1)
	tool := cube("tool", 5, 6)
	out, err := New().Subtract(context.Background(), target, tool, nil)
	require.NoError(t, err)
	assert.Equal(t, target.TriangleCount(), out.TriangleCount())
	assert.InDelta(t, 1, mesh.Volume(out), 1e-9)
}

func TestSubtractEverything(t *testing.T) {
	out, err := New().Subtract(context.Background(), cube("target", 0, 1), cube("tool", -1, 2), nil)
	require.NoError(t, err)
	assert.Zero(t, out.TriangleCount())
}

func TestSubtractEmptyTarget(t *testing.T) {
	_, err := New().Subtract(context.Background(), &mesh.Buffer{}, cube("tool", 0, 1), nil)
	assert.Error(t, err)
}

func TestSubtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Subtract(ctx, cube("target", -5, 5), cube("tool", -2, 2), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitSpanning(t *testing.T) {
	pl := plane{n: r3.Vec{X: 1}, w: 0}
	tri := []r3.Vec{{X: -1}, {X: 1}, {Y: 1}}
	own, ok := planeFromPoints(tri[0], tri[1], tri[2])
	require.True(t, ok)

	var cf, cb, f, b []polygon
	pl.split(polygon{verts: tri, plane: own}, &cf, &cb, &f, &b)
	assert.Empty(t, cf)
	assert.Empty(t, cb)
	require.Len(t, f, 1)
	require.Len(t, b, 1)
	assert.Len(t, f[0].verts, 3)
	assert.Len(t, b[0].verts, 3)
}

func TestSealSplitsTJunction(t *testing.T) {
	poly := func(vs ...r3.Vec) polygon {
		pl, ok := planeFromPoints(vs[0], vs[1], vs[2])
		require.True(t, ok)
		return polygon{verts: vs, plane: pl}
	}
	polys := []polygon{
		poly(r3.Vec{}, r3.Vec{X: 2}, r3.Vec{Y: 2}),
		poly(r3.Vec{X: 2}, r3.Vec{X: 2, Y: 2}, r3.Vec{X: 1, Y: 1}),
		// Off by less than the seam tolerance.
		poly(r3.Vec{X: 1, Y: 1 + 1e-7}, r3.Vec{X: 2, Y: 2}, r3.Vec{Y: 2}),
	}
	out, splits := seal(polys, "seam")
	assert.Equal(t, 1, splits)
	assert.Equal(t, "seam", out.PartName)
	assert.Equal(t, 6, out.TriangleCount())
	stats := mesh.Edges(out)
	assert.Equal(t, 4, stats.Open)
	assert.Zero(t, stats.NonManifold)
	assert.Zero(t, stats.Misoriented)
}
