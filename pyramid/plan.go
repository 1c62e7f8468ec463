/*
Package pyramid computes Deep Zoom image pyramids: how many levels a source
needs, how large each level is, how each level splits into overlapping tiles,
and the finest-to-coarsest walk that emits them.

Level 0 is the coarsest level and Levels is the original resolution. Each
coarser level halves the previous one, rounding half up, so sizes must be
derived iteratively from the original rather than divided in one step.
*/
package pyramid

import "fmt"

// LevelCount returns ceil(log2(max(width, height))).
func LevelCount(width, height int) (int, error) {
	n := width
	if height > n {
		n = height
	}
	if n <= 0 {
		return 0, fmt.Errorf("level count of %dx%d: %w", width, height, ErrInvalidDimensions)
	}
	levels := 0
	for 1<<uint(levels) < n {
		levels++
	}
	return levels, nil
}

// Halve returns round(n / 2).
func Halve(n int) int {
	return (n + 1) / 2
}

// DimensionsAt returns the raster size of level within a pyramid of
// levelCount levels built from a width x height source.
func DimensionsAt(level, levelCount, width, height int) (int, int) {
	w, h := width, height
	for l := levelCount; l > level; l-- {
		w, h = Halve(w), Halve(h)
	}
	return w, h
}

// Plan is the level layout of one source image.
type Plan struct {
	Width  int
	Height int
	Levels int
}

// NewPlan validates the source size and computes its level count.
func NewPlan(width, height int) (Plan, error) {
	if width <= 0 || height <= 0 {
		return Plan{}, fmt.Errorf("source %dx%d: %w", width, height, ErrInvalidDimensions)
	}
	levels, err := LevelCount(width, height)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Width: width, Height: height, Levels: levels}, nil
}

// Size returns the raster size at level.
func (p Plan) Size(level int) (int, int) {
	return DimensionsAt(level, p.Levels, p.Width, p.Height)
}

// Sizes lists the raster size of every level, finest first.
func (p Plan) Sizes() [][2]int {
	sizes := make([][2]int, 0, p.Levels+1)
	w, h := p.Width, p.Height
	for l := p.Levels; l >= 0; l-- {
		sizes = append(sizes, [2]int{w, h})
		w, h = Halve(w), Halve(h)
	}
	return sizes
}

// TileCount is the number of tiles the whole pyramid emits.
func (p Plan) TileCount(tileSize int) int {
	if tileSize <= 0 {
		return 0
	}
	n := 0
	for _, s := range p.Sizes() {
		n += ((s[0] + tileSize - 1) / tileSize) * ((s[1] + tileSize - 1) / tileSize)
	}
	return n
}
