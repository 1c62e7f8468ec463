package pyramid

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionSingleTile(t *testing.T) {
	tiles, err := Partition(3, 200, 100, 256, 1)
	require.NoError(t, err)
	require.Len(t, tiles, 1)

	tile := tiles[0]
	assert.Equal(t, Tile{Level: 3, Width: 200, Height: 100}, tile)
	assert.Equal(t, image.Rect(0, 0, 200, 100), tile.Bounds())
}

func TestPartitionTwoByTwo(t *testing.T) {
	tiles, err := Partition(9, 300, 300, 256, 1)
	require.NoError(t, err)
	require.Len(t, tiles, 4)

	// Column-major order.
	assert.Equal(t, []string{"9/0_0", "9/0_1", "9/1_0", "9/1_1"}, names(tiles))

	first := tiles[0]
	assert.Equal(t, 0, first.Left)
	assert.Equal(t, 0, first.Top)
	assert.Equal(t, 1, first.Right)
	assert.Equal(t, 1, first.Bottom)
	assert.Equal(t, image.Rect(0, 0, 257, 257), first.Bounds())

	last := tiles[3]
	assert.Equal(t, 1, last.Left)
	assert.Equal(t, 1, last.Top)
	assert.Equal(t, 0, last.Right)
	assert.Equal(t, 0, last.Bottom)
	assert.Equal(t, image.Rect(255, 255, 300, 300), last.Bounds())

	bottomLeft := tiles[1]
	assert.Equal(t, image.Rect(0, 255, 257, 300), bottomLeft.Bounds())
}

func TestPartitionWithoutOverlap(t *testing.T) {
	tiles, err := Partition(9, 300, 300, 256, 0)
	require.NoError(t, err)
	for _, tile := range tiles {
		assert.Equal(t, tile.Interior(), tile.Bounds(), "tile %s", tile)
	}
}

func TestPartitionOverlapIsOnePixel(t *testing.T) {
	tiles, err := Partition(0, 600, 600, 256, 4)
	require.NoError(t, err)
	for _, tile := range tiles {
		for _, p := range []int{tile.Left, tile.Top, tile.Right, tile.Bottom} {
			assert.LessOrEqual(t, p, 1)
		}
	}
}

func TestPartitionCoverage(t *testing.T) {
	sizes := [][3]int{
		{1, 1, 256},
		{256, 256, 256},
		{257, 256, 256},
		{513, 300, 256},
		{1000, 37, 64},
		{13, 29, 4},
		{5, 5, 1},
	}
	for _, s := range sizes {
		width, height, tileSize := s[0], s[1], s[2]
		for _, overlap := range []int{0, 1} {
			tiles, err := Partition(0, width, height, tileSize, overlap)
			require.NoError(t, err)

			covered := make([]int, width*height)
			raster := image.Rect(0, 0, width, height)
			for _, tile := range tiles {
				require.True(t, tile.Bounds().In(raster), "tile %s %v outside %v", tile, tile.Bounds(), raster)
				in := tile.Interior()
				assert.Equal(t, tile.Col*tileSize, in.Min.X)
				assert.Equal(t, tile.Row*tileSize, in.Min.Y)
				for y := in.Min.Y; y < in.Max.Y; y++ {
					for x := in.Min.X; x < in.Max.X; x++ {
						covered[y*width+x]++
					}
				}
			}
			for i, n := range covered {
				require.Equal(t, 1, n, "pixel %d,%d of %dx%d/%d", i%width, i/width, width, height, tileSize)
			}
		}
	}
}

func TestPartitionInvalid(t *testing.T) {
	_, err := Partition(0, 0, 10, 256, 1)
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = Partition(0, 10, 10, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func names(tiles []Tile) []string {
	s := make([]string, len(tiles))
	for i, t := range tiles {
		s[i] = t.String()
	}
	return s
}
