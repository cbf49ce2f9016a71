package fixture

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/fixtura/pkg/mesh"
)

// Placement positions an object on the baseplate: a rotation of Yaw radians
// about +Y followed by a translation. Supports stand upright, so pitch and
// roll are not representable.
type Placement struct {
	Position r3.Vec  `json:"position"`
	Yaw      float64 `json:"yaw"`
}

// Degrees converts degrees to radians for Yaw.
func Degrees(deg float64) float64 { return deg * math.Pi / 180 }

// ToWorld maps a point from the local frame to world space.
func (p Placement) ToWorld(v r3.Vec) r3.Vec {
	sin, cos := math.Sincos(p.Yaw)
	return r3.Vec{
		X: v.X*cos + v.Z*sin + p.Position.X,
		Y: v.Y + p.Position.Y,
		Z: -v.X*sin + v.Z*cos + p.Position.Z,
	}
}

// ToLocal maps a world point into the local frame. It inverts ToWorld.
func (p Placement) ToLocal(v r3.Vec) r3.Vec {
	d := r3.Sub(v, p.Position)
	sin, cos := math.Sincos(p.Yaw)
	return r3.Vec{
		X: d.X*cos - d.Z*sin,
		Y: d.Y,
		Z: d.X*sin + d.Z*cos,
	}
}

// Relative expresses the world placement child in p's local frame.
func (p Placement) Relative(child Placement) Placement {
	return Placement{Position: p.ToLocal(child.Position), Yaw: child.Yaw - p.Yaw}
}

// Apply returns a copy of m moved from the local frame to world space.
func (p Placement) Apply(m *mesh.Buffer) *mesh.Buffer {
	return mesh.Transform(m, p.Yaw, p.Position)
}

// IsIdentity reports whether p leaves geometry unchanged.
func (p Placement) IsIdentity() bool {
	return p.Position == (r3.Vec{}) && p.Yaw == 0
}
