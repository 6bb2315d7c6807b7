// Package predict gates local movement input against static collision data.
//
// Prediction is advisory. The server owns positions, and every user.moved
// it sends replaces whatever the client guessed. The predictor only keeps a
// client from asking to walk into a wall it already knows about.
package predict

import (
	"github.com/global-bar/bar-web/pkg/collision"
	"github.com/global-bar/bar-web/pkg/protocol"
	"github.com/global-bar/bar-web/pkg/world"
)

// Footprint is the collision box of an entity, centered on its position.
type Footprint struct {
	W, H float64
}

// Defaults for a Predictor.
const (
	DefaultInset = 2
	DefaultStep  = 4
)

// DefaultFootprint is the 16×16 box of one tile.
var DefaultFootprint = Footprint{W: 16, H: 16}

// Predictor tests candidate positions against a collision grid.
type Predictor struct {
	Grid *collision.Grid

	// Footprint is the entity box. Zero means DefaultFootprint.
	Footprint Footprint

	// Inset pulls the tested corners inward so entities can brush walls.
	Inset float64

	// Step is the displacement per intent used by GateKeys, in pixels.
	Step float64
}

// New returns a Predictor with default footprint, inset and step.
func New(grid *collision.Grid) *Predictor {
	return &Predictor{Grid: grid, Footprint: DefaultFootprint, Inset: DefaultInset, Step: DefaultStep}
}

func (p *Predictor) footprint() Footprint {
	if p.Footprint.W <= 0 || p.Footprint.H <= 0 {
		return DefaultFootprint
	}
	return p.Footprint
}

func (p *Predictor) step() float64 {
	if p.Step <= 0 {
		return DefaultStep
	}
	return p.Step
}

// Allowed reports whether an entity centered at pos fits: the center and the
// four inset corners of its footprint must all be walkable.
func (p *Predictor) Allowed(pos world.Vec2) bool {
	if p == nil || !p.Grid.HasCollision() {
		return true
	}
	fp := p.footprint()
	hw := fp.W/2 - p.Inset
	hh := fp.H/2 - p.Inset
	points := [5]world.Vec2{
		pos,
		{X: pos.X - hw, Y: pos.Y - hh},
		{X: pos.X + hw, Y: pos.Y - hh},
		{X: pos.X - hw, Y: pos.Y + hh},
		{X: pos.X + hw, Y: pos.Y + hh},
	}
	for _, pt := range points {
		if p.Grid.Blocked(pt.X, pt.Y) {
			return false
		}
	}
	return true
}

// Adjust returns the part of displacement d that can be taken from from.
// The x axis is tried first and the y axis from the resulting position, so
// a diagonal move into a wall slides along it.
func (p *Predictor) Adjust(from, d world.Vec2) world.Vec2 {
	out := d
	if d.X != 0 && !p.Allowed(world.Vec2{X: from.X + d.X, Y: from.Y}) {
		out.X = 0
	}
	if d.Y != 0 && !p.Allowed(world.Vec2{X: from.X + out.X, Y: from.Y + d.Y}) {
		out.Y = 0
	}
	return out
}

// Displacement converts pressed keys into a step-sized displacement.
// Opposite keys cancel.
func (p *Predictor) Displacement(keys protocol.Keys) world.Vec2 {
	s := p.step()
	var d world.Vec2
	if keys.Left {
		d.X -= s
	}
	if keys.Right {
		d.X += s
	}
	if keys.Up {
		d.Y -= s
	}
	if keys.Down {
		d.Y += s
	}
	return d
}

// GateKeys clears the keys whose axis is blocked from from. The result is
// not moving when every requested axis is blocked.
func (p *Predictor) GateKeys(from world.Vec2, keys protocol.Keys) protocol.Keys {
	d := p.Displacement(keys)
	adj := p.Adjust(from, d)
	if d.X != 0 && adj.X == 0 {
		keys.Left, keys.Right = false, false
	}
	if d.Y != 0 && adj.Y == 0 {
		keys.Up, keys.Down = false, false
	}
	return keys
}
