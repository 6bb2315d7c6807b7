// Package collision loads static map data and answers walkability queries.
//
// Maps are Tiled JSON exports. Only tile layers carrying data are kept. The
// collision grid is derived from the layers whose names mark them as
// blocking: any layer whose lowercased name contains "collision", "block",
// or "wall". A cell is blocked when any such layer has a non-empty tile
// there.
//
// A Grid is immutable once built and may be shared between goroutines
// without synchronization.
//
// Map data can come from the local filesystem, from S3, or from the map
// compiled into the binary:
//
//	src, err := collision.ParseSource("s3://maps/bar.json", s3Client)
//	m, err := collision.Load(ctx, src)
//	grid := m.CollisionGrid()
package collision
