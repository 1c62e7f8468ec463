package pyramid

import (
	"fmt"
	"image"
)

// Tile describes one output tile of a level.
//
// Col and Row index the unpadded grid. X, Y, Width and Height are the crop
// window in level pixels, already grown by the padding on each side that
// borders another tile.
type Tile struct {
	Level int
	Col   int
	Row   int

	X      int
	Y      int
	Width  int
	Height int

	Left   int
	Top    int
	Right  int
	Bottom int
}

// Bounds is the crop window of the tile.
func (t Tile) Bounds() image.Rectangle {
	return image.Rect(t.X, t.Y, t.X+t.Width, t.Y+t.Height)
}

// Interior is the tile's window before padding.
func (t Tile) Interior() image.Rectangle {
	return image.Rect(t.X+t.Left, t.Y+t.Top, t.X+t.Width-t.Right, t.Y+t.Height-t.Bottom)
}

func (t Tile) String() string {
	return fmt.Sprintf("%d/%d_%d", t.Level, t.Col, t.Row)
}

// Partition splits a width x height level raster into tiles of tileSize.
//
// Tiles are ordered column by column, top to bottom inside a column. When
// overlap is positive a tile is padded by one pixel on every side that has a
// neighbour; larger overlap values still pad by one pixel. Windows are
// clamped to the raster on the right and bottom.
func Partition(level, width, height, tileSize, overlap int) ([]Tile, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("partition level %d %dx%d: %w", level, width, height, ErrInvalidDimensions)
	}
	if tileSize <= 0 {
		return nil, fmt.Errorf("partition level %d: tile size %d: %w", level, tileSize, ErrInvalidDimensions)
	}
	pad := 0
	if overlap > 0 {
		pad = 1
	}

	cols := (width + tileSize - 1) / tileSize
	rows := (height + tileSize - 1) / tileSize
	tiles := make([]Tile, 0, cols*rows)

	for c, x := 0, 0; x < width; c, x = c+1, x+tileSize {
		for r, y := 0, 0; y < height; r, y = r+1, y+tileSize {
			t := Tile{Level: level, Col: c, Row: r}
			if x > 0 {
				t.Left = pad
			}
			if y > 0 {
				t.Top = pad
			}
			if (c+1)*tileSize < width {
				t.Right = pad
			}
			if (r+1)*tileSize < height {
				t.Bottom = pad
			}
			t.X = x - t.Left
			t.Y = y - t.Top
			t.Width = clamp(tileSize+t.Left+t.Right, width-t.X)
			t.Height = clamp(tileSize+t.Top+t.Bottom, height-t.Y)
			tiles = append(tiles, t)
		}
	}
	return tiles, nil
}

func clamp(n, max int) int {
	if n > max {
		return max
	}
	return n
}
