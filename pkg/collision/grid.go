package collision

import (
	"fmt"
	"math"
)

// Grid is an immutable per-cell walkability map.
type Grid struct {
	width, height int
	tileW, tileH  float64
	blocked       []bool
}

// NewGrid builds a grid of w×h cells. blocked is indexed row-major; nil
// means the map carries no collision data. The slice is copied.
func NewGrid(w, h int, tileW, tileH float64, blocked []bool) (*Grid, error) {
	if w <= 0 || h <= 0 || tileW <= 0 || tileH <= 0 {
		return nil, fmt.Errorf("%w: grid %dx%d of %vx%v tiles", ErrInvalidMap, w, h, tileW, tileH)
	}
	g := &Grid{width: w, height: h, tileW: tileW, tileH: tileH}
	if blocked != nil {
		if len(blocked) != w*h {
			return nil, fmt.Errorf("%w: %d cells, want %d", ErrInvalidMap, len(blocked), w*h)
		}
		g.blocked = append([]bool(nil), blocked...)
	}
	return g, nil
}

// Width returns the grid width in cells.
func (g *Grid) Width() int { return g.width }

// Height returns the grid height in cells.
func (g *Grid) Height() int { return g.height }

// TileSize returns the cell size in pixels.
func (g *Grid) TileSize() (w, h float64) { return g.tileW, g.tileH }

// HasCollision reports whether the grid carries collision data.
func (g *Grid) HasCollision() bool { return g != nil && g.blocked != nil }

// BlockedCells returns the number of blocked cells.
func (g *Grid) BlockedCells() int {
	n := 0
	for _, b := range g.blocked {
		if b {
			n++
		}
	}
	return n
}

// Cell reports whether cell (gx, gy) is blocked. Cells outside the grid are
// blocked when the grid carries collision data.
func (g *Grid) Cell(gx, gy int) bool {
	if !g.HasCollision() {
		return false
	}
	if gx < 0 || gx >= g.width || gy < 0 || gy >= g.height {
		return true
	}
	return g.blocked[gy*g.width+gx]
}

// Blocked reports whether the pixel position lies in a blocked cell.
func (g *Grid) Blocked(px, py float64) bool {
	if !g.HasCollision() {
		return false
	}
	gx := int(math.Floor(px / g.tileW))
	gy := int(math.Floor(py / g.tileH))
	return g.Cell(gx, gy)
}

// Walkable is the negation of Blocked.
func (g *Grid) Walkable(px, py float64) bool {
	return !g.Blocked(px, py)
}
