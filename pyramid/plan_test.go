package pyramid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelCount(t *testing.T) {
	tests := []struct {
		width, height int
		levels        int
	}{
		{1, 1, 0},
		{2, 1, 1},
		{3, 3, 2},
		{256, 256, 8},
		{257, 10, 9},
		{300, 300, 9},
		{800, 600, 10},
		{600, 800, 10},
		{1024, 768, 10},
		{1025, 1, 11},
		{0, 5, 3},
	}
	for _, tt := range tests {
		levels, err := LevelCount(tt.width, tt.height)
		require.NoError(t, err)
		assert.Equal(t, tt.levels, levels, "LevelCount(%d, %d)", tt.width, tt.height)
	}
}

func TestLevelCountInvalid(t *testing.T) {
	_, err := LevelCount(0, 0)
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = LevelCount(-3, -1)
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = NewPlan(10, 0)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestHalve(t *testing.T) {
	assert.Equal(t, 1, Halve(1))
	assert.Equal(t, 1, Halve(2))
	assert.Equal(t, 2, Halve(3))
	assert.Equal(t, 8, Halve(15))
	assert.Equal(t, 7, Halve(13))
}

func TestDimensionsAtIsIterative(t *testing.T) {
	// 13 -> 7 -> 4, where round(13/4) would give 3.
	w, h := DimensionsAt(2, 4, 13, 15)
	assert.Equal(t, 4, w)
	assert.Equal(t, 4, h)

	w, h = DimensionsAt(4, 4, 13, 15)
	assert.Equal(t, 13, w)
	assert.Equal(t, 15, h)

	w, h = DimensionsAt(0, 4, 13, 15)
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
}

func TestPlanSizes(t *testing.T) {
	plan, err := NewPlan(300, 200)
	require.NoError(t, err)
	require.Equal(t, 9, plan.Levels)

	sizes := plan.Sizes()
	require.Len(t, sizes, 10)
	assert.Equal(t, [2]int{300, 200}, sizes[0])
	assert.Equal(t, [2]int{150, 100}, sizes[1])
	assert.Equal(t, [2]int{75, 50}, sizes[2])
	assert.Equal(t, [2]int{38, 25}, sizes[3])
	assert.Equal(t, [2]int{19, 13}, sizes[4])
	assert.Equal(t, [2]int{1, 1}, sizes[9])

	for i, s := range sizes {
		w, h := plan.Size(plan.Levels - i)
		assert.Equal(t, s, [2]int{w, h})
	}
}

func TestPlanTileCount(t *testing.T) {
	plan, err := NewPlan(300, 300)
	require.NoError(t, err)
	// 4 tiles at level 9, one tile at every level below.
	assert.Equal(t, 4+9, plan.TileCount(256))
	assert.Equal(t, 0, plan.TileCount(0))
}
