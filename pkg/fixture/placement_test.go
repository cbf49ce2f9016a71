package fixture

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/fixtura/pkg/mesh"
)

func assertVec(t *testing.T, want, got r3.Vec) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9, "X")
	assert.InDelta(t, want.Y, got.Y, 1e-9, "Y")
	assert.InDelta(t, want.Z, got.Z, 1e-9, "Z")
}

func TestToWorldQuarterTurn(t *testing.T) {
	p := Placement{Position: r3.Vec{X: 10, Y: 1, Z: -5}, Yaw: Degrees(90)}
	// +X rotates onto −Z about +Y.
	assertVec(t, r3.Vec{X: 10, Y: 1, Z: -6}, p.ToWorld(r3.Vec{X: 1}))
	assertVec(t, r3.Vec{X: 11, Y: 1, Z: -5}, p.ToWorld(r3.Vec{Z: 1}))
}

func TestToLocalInvertsToWorld(t *testing.T) {
	placements := []Placement{
		{},
		{Position: r3.Vec{X: 3, Y: 2, Z: 1}},
		{Yaw: Degrees(37)},
		{Position: r3.Vec{X: -40, Z: 12.5}, Yaw: Degrees(-120)},
	}
	points := []r3.Vec{{}, {X: 1}, {X: -2, Y: 5, Z: 7}}
	for _, p := range placements {
		for _, v := range points {
			assertVec(t, v, p.ToLocal(p.ToWorld(v)))
			assertVec(t, v, p.ToWorld(p.ToLocal(v)))
		}
	}
}

func TestRelative(t *testing.T) {
	parent := Placement{Position: r3.Vec{X: 20, Z: 10}, Yaw: Degrees(30)}
	child := Placement{Position: r3.Vec{X: 25, Y: 4, Z: 8}, Yaw: Degrees(75)}

	rel := parent.Relative(child)
	assert.InDelta(t, Degrees(45), rel.Yaw, 1e-12)

	// Composing parent with the relative placement recovers the child.
	local := r3.Vec{X: 1, Y: 2, Z: 3}
	assertVec(t, child.ToWorld(local), parent.ToWorld(rel.ToWorld(local)))
}

func TestApply(t *testing.T) {
	box := mesh.Box("b", r3.Vec{}, r3.Vec{X: 2, Y: 1, Z: 1})
	p := Placement{Position: r3.Vec{X: 5, Z: 5}, Yaw: math.Pi}
	moved := p.Apply(box)

	b := moved.Bounds()
	assert.InDelta(t, 3, b.Min.X, 1e-5)
	assert.InDelta(t, 5, b.Max.X, 1e-5)
	assert.InDelta(t, 4, b.Min.Z, 1e-5)
	assert.InDelta(t, 5, b.Max.Z, 1e-5)
	assert.InDelta(t, mesh.Volume(box), mesh.Volume(moved), 1e-5)

	// The input is untouched.
	assert.InDelta(t, 0, box.Bounds().Min.X, 0)
}

func TestIsIdentity(t *testing.T) {
	assert.True(t, Placement{}.IsIdentity())
	assert.False(t, Placement{Yaw: 0.1}.IsIdentity())
	assert.False(t, Placement{Position: r3.Vec{Y: 1}}.IsIdentity())
}
