package collision

const (
	barMapWidth  = 60
	barMapHeight = 34
	barFloorGID  = 165
)

// BarMap returns the map compiled into the client: a 60×34 room of 16px
// tiles with a uniform floor and empty wall and prop layers.
func BarMap() *Tilemap {
	n := barMapWidth * barMapHeight
	floor := make([]int64, n)
	for i := range floor {
		floor[i] = barFloorGID
	}
	layer := func(name string, data []int64) Layer {
		return Layer{Name: name, Type: "tilelayer", Data: data, Width: barMapWidth, Height: barMapHeight, Visible: true, Opacity: 1}
	}
	return &Tilemap{
		Width:       barMapWidth,
		Height:      barMapHeight,
		TileWidth:   16,
		TileHeight:  16,
		Orientation: "orthogonal",
		RenderOrder: "right-down",
		Tilesets: []Tileset{
			{FirstGID: 1, Name: "neo_zero_tiles_and_buildings_01", Image: "/sprites/tileset/neo_zero_tiles_and_buildings_01.png", TileWidth: 16, TileHeight: 16, Columns: 20},
			{FirstGID: 401, Name: "neo_zero_props_and_items_01", Image: "/sprites/tileset/neo_zero_props_and_items_01.png", TileWidth: 16, TileHeight: 16, Columns: 10},
		},
		Layers: []Layer{
			layer("floor", floor),
			layer("walls_base", make([]int64, n)),
			layer("props_base", make([]int64, n)),
		},
	}
}
