package collision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Tiled stores flip flags in the high bits of a gid.
const gidMask = 0x1FFFFFFF

// MaxMapCells bounds width*height of a parsed map.
const MaxMapCells = MaxMapSize

// Tileset is a tileset reference from a Tiled map.
type Tileset struct {
	FirstGID    int    `json:"firstgid"`
	Source      string `json:"source,omitempty"`
	Name        string `json:"name,omitempty"`
	Image       string `json:"image,omitempty"`
	ImageWidth  int    `json:"imagewidth,omitempty"`
	ImageHeight int    `json:"imageheight,omitempty"`
	TileWidth   int    `json:"tilewidth,omitempty"`
	TileHeight  int    `json:"tileheight,omitempty"`
	Columns     int    `json:"columns,omitempty"`
	TileCount   int    `json:"tilecount,omitempty"`
}

// Layer is a tile layer. Gid 0 is empty.
type Layer struct {
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Data    []int64 `json:"data,omitempty"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Visible bool    `json:"visible"`
	Opacity float64 `json:"opacity"`
}

// Tilemap is a parsed Tiled map.
type Tilemap struct {
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	TileWidth   int       `json:"tilewidth"`
	TileHeight  int       `json:"tileheight"`
	Orientation string    `json:"orientation,omitempty"`
	RenderOrder string    `json:"renderorder,omitempty"`
	Tilesets    []Tileset `json:"tilesets"`
	Layers      []Layer   `json:"layers"`
}

var (
	// ErrInvalidMap is wrapped by every ParseTiled validation failure.
	ErrInvalidMap = errors.New("collision: invalid map")
)

// ParseTiled decodes a Tiled JSON map. Layers other than tile layers with
// data are dropped; the rest must match the map's size. Tilesets without their own tile size inherit the map's.
func ParseTiled(data []byte) (*Tilemap, error) {
	var m Tilemap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMap, err)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidMap, m.Width, m.Height)
	}
	if m.Width > MaxMapCells/m.Height {
		return nil, fmt.Errorf("%w: size %dx%d exceeds %d cells", ErrInvalidMap, m.Width, m.Height, MaxMapCells)
	}
	if m.TileWidth <= 0 || m.TileHeight <= 0 {
		return nil, fmt.Errorf("%w: tile size %dx%d", ErrInvalidMap, m.TileWidth, m.TileHeight)
	}

	layers := m.Layers[:0]
	for _, l := range m.Layers {
		if l.Type != "tilelayer" || len(l.Data) == 0 {
			continue
		}
		if l.Width <= 0 || l.Height <= 0 {
			l.Width, l.Height = m.Width, m.Height
		}
		if l.Width != m.Width || l.Height != m.Height {
			return nil, fmt.Errorf("%w: layer %q is %dx%d, map is %dx%d", ErrInvalidMap, l.Name, l.Width, l.Height, m.Width, m.Height)
		}
		if len(l.Data) != l.Width*l.Height {
			return nil, fmt.Errorf("%w: layer %q has %d tiles, want %d", ErrInvalidMap, l.Name, len(l.Data), l.Width*l.Height)
		}
		layers = append(layers, l)
	}
	m.Layers = layers

	for i := range m.Tilesets {
		ts := &m.Tilesets[i]
		if ts.TileWidth == 0 {
			ts.TileWidth = m.TileWidth
		}
		if ts.TileHeight == 0 {
			ts.TileHeight = m.TileHeight
		}
		if ts.Columns == 0 {
			ts.Columns = 1
		}
	}
	return &m, nil
}

// Layer returns the named layer, or nil.
func (m *Tilemap) Layer(name string) *Layer {
	for i := range m.Layers {
		if m.Layers[i].Name == name {
			return &m.Layers[i]
		}
	}
	return nil
}

// TileAt returns the gid at a cell with flip flags cleared, or 0 outside
// the layer.
func (l *Layer) TileAt(gx, gy int) int64 {
	if gx < 0 || gx >= l.Width || gy < 0 || gy >= l.Height {
		return 0
	}
	return l.Data[gy*l.Width+gx] & gidMask
}

// PixelSize returns the map size in pixels.
func (m *Tilemap) PixelSize() (w, h int) {
	return m.Width * m.TileWidth, m.Height * m.TileHeight
}

// IsCollisionLayer reports whether a layer name marks it as blocking.
func IsCollisionLayer(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "collision") ||
		strings.Contains(lower, "block") ||
		strings.Contains(lower, "wall")
}

// CollisionGrid derives the walkability grid. A map without collision
// layers yields a grid with no collision data, on which nothing is blocked.
func (m *Tilemap) CollisionGrid() *Grid {
	var blocked []bool
	for i := range m.Layers {
		l := &m.Layers[i]
		if !IsCollisionLayer(l.Name) {
			continue
		}
		if blocked == nil {
			blocked = make([]bool, m.Width*m.Height)
		}
		for gy := 0; gy < m.Height; gy++ {
			for gx := 0; gx < m.Width; gx++ {
				if l.TileAt(gx, gy) != 0 {
					blocked[gy*m.Width+gx] = true
				}
			}
		}
	}
	g, _ := NewGrid(m.Width, m.Height, float64(m.TileWidth), float64(m.TileHeight), blocked)
	return g
}
