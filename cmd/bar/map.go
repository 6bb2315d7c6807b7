package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/global-bar/bar-web/internal/errors"
	"github.com/global-bar/bar-web/pkg/collision"
)

func mapCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Work with collision maps",
	}
	cmd.AddCommand(mapInspectCmd(g), mapExportCmd())
	return cmd
}

func mapInspectCmd(g *globals) *cobra.Command {
	var showGrid bool

	cmd := &cobra.Command{
		Use:   "inspect [location]",
		Short: "Print a summary of a map",
		Long: `Load a map and print its size, layers and collision coverage.

The location is a file path, s3://bucket/key or builtin:bar. Without
one, the map from bar.json is used.

Examples:
  bar map inspect
  bar map inspect ./maps/bar.json --grid
  bar map inspect s3://maps/bar.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			location := g.cfg.Map.Source
			if len(args) == 1 {
				location = args[0]
			}
			if location == "" {
				return errors.New("E140").WithDetail("No map location given and none configured")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			src, err := openSource(location, g.cfg)
			if err != nil {
				return err
			}
			m, size, err := loadCounted(ctx, src)
			if err != nil {
				return mapError(err)
			}
			printMap(os.Stdout, src, m, size, showGrid)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showGrid, "grid", false, "Draw the collision grid")
	return cmd
}

func mapExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the built-in map as Tiled JSON to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(collision.BarMap())
		},
	}
}

// countingReader counts bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type countedSource struct {
	collision.Source
	counter *countingReader
}

func (s *countedSource) Open(ctx context.Context) (io.ReadCloser, error) {
	rc, err := s.Source.Open(ctx)
	if err != nil {
		return nil, err
	}
	s.counter = &countingReader{r: rc}
	return struct {
		io.Reader
		io.Closer
	}{s.counter, rc}, nil
}

// loadCounted loads src and reports how many bytes were read.
func loadCounted(ctx context.Context, src collision.Source) (*collision.Tilemap, int64, error) {
	cs := &countedSource{Source: src}
	m, err := collision.Load(ctx, cs)
	if err != nil {
		return nil, 0, err
	}
	return m, cs.counter.n, nil
}

func printMap(w io.Writer, src collision.Source, m *collision.Tilemap, size int64, showGrid bool) {
	grid := m.CollisionGrid()
	pw, ph := m.PixelSize()
	cells := m.Width * m.Height

	fmt.Fprintf(w, "Map:        %s (%s)\n", src, humanize.Bytes(uint64(size)))
	fmt.Fprintf(w, "Size:       %dx%d tiles, %dx%d px\n", m.Width, m.Height, pw, ph)
	fmt.Fprintf(w, "Tile:       %dx%d px\n", m.TileWidth, m.TileHeight)
	fmt.Fprintf(w, "Tilesets:   %d\n", len(m.Tilesets))
	fmt.Fprintln(w, "Layers:")
	for _, l := range m.Layers {
		mark := ""
		if collision.IsCollisionLayer(l.Name) {
			mark = "  (collision)"
		}
		fmt.Fprintf(w, "  %-16s %dx%d%s\n", l.Name, l.Width, l.Height, mark)
	}
	if !grid.HasCollision() {
		fmt.Fprintln(w, "Collision:  none, every cell is walkable")
		return
	}
	blocked := grid.BlockedCells()
	fmt.Fprintf(w, "Collision:  %s of %s cells blocked (%.1f%%)\n",
		humanize.Comma(int64(blocked)), humanize.Comma(int64(cells)),
		100*float64(blocked)/float64(cells))

	if showGrid {
		fmt.Fprintln(w)
		fmt.Fprint(w, drawGrid(grid))
	}
}

// drawGrid renders blocked cells as # and walkable cells as dots.
func drawGrid(g *collision.Grid) string {
	var b strings.Builder
	for gy := 0; gy < g.Height(); gy++ {
		for gx := 0; gx < g.Width(); gx++ {
			if g.Cell(gx, gy) {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
