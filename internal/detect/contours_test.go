package detect

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillRect(mask [][]bool, x1, y1, x2, y2 int) {
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			mask[y][x] = true
		}
	}
}

func TestFindComponentsSeparatesRegions(t *testing.T) {
	mask := emptyMask(30, 30)
	fillRect(mask, 2, 2, 12, 12)   // 10x10, area 100
	fillRect(mask, 15, 20, 27, 28) // 12x8, area 96

	components := findComponents(mask, 30, 30)
	require.Len(t, components, 2)

	// Largest first.
	assert.Equal(t, image.Rect(2, 2, 12, 12), components[0].Bounds)
	assert.Equal(t, 100, components[0].Pixels)
	assert.InDelta(t, 100, components[0].Area, 0.001)
	assert.InDelta(t, 1.0, components[0].Extent(), 0.001)
	assert.InDelta(t, 1.0, components[0].AspectRatio(), 0.001)

	assert.Equal(t, image.Rect(15, 20, 27, 28), components[1].Bounds)
	assert.Equal(t, 96, components[1].Pixels)
	assert.InDelta(t, 1.5, components[1].AspectRatio(), 0.001)
}

func TestComponentOutlineIsBoundaryOnly(t *testing.T) {
	mask := emptyMask(20, 20)
	fillRect(mask, 4, 4, 14, 14)

	components := findComponents(mask, 20, 20)
	require.Len(t, components, 1)

	// A 10x10 block has a 36-pixel boundary ring.
	assert.Len(t, components[0].Outline, 36)
	assert.InDelta(t, 36, components[0].Perimeter(), 0.001)
	for _, p := range components[0].Outline {
		onEdge := p.X == 4 || p.X == 13 || p.Y == 4 || p.Y == 13
		assert.True(t, onEdge, "outline point %v must sit on the block boundary", p)
	}
}

func TestFindComponentsDropsNoise(t *testing.T) {
	mask := emptyMask(10, 10)
	fillRect(mask, 1, 1, 3, 3) // 4 pixels, below the floor

	assert.Empty(t, findComponents(mask, 10, 10))
}

func TestDiagonalPixelsConnect(t *testing.T) {
	mask := emptyMask(12, 12)
	fillRect(mask, 1, 1, 4, 4)
	fillRect(mask, 4, 4, 7, 7) // touches the first block only diagonally

	components := findComponents(mask, 12, 12)
	require.Len(t, components, 1)
	assert.Equal(t, 18, components[0].Pixels)
	assert.Equal(t, image.Rect(1, 1, 7, 7), components[0].Bounds)
}

func TestCircularityPrefersCompactShapes(t *testing.T) {
	square := emptyMask(20, 20)
	fillRect(square, 4, 4, 14, 14)
	compact := findComponents(square, 20, 20)[0]

	thin := emptyMask(40, 20)
	fillRect(thin, 2, 9, 32, 11) // 30x2 sliver
	sliver := findComponents(thin, 40, 20)[0]

	assert.Greater(t, compact.Circularity(), sliver.Circularity())
	assert.Less(t, sliver.Circularity(), 0.3)
}

func TestRowSpanAreaCountsEnclosedSurface(t *testing.T) {
	// A hollow ring: the span area includes the hole, matching how an
	// outer contour's polygon area would count it.
	mask := emptyMask(20, 20)
	fillRect(mask, 2, 2, 18, 18)
	for y := 5; y < 15; y++ {
		for x := 5; x < 15; x++ {
			mask[y][x] = false
		}
	}

	components := findComponents(mask, 20, 20)
	require.Len(t, components, 1)
	assert.Equal(t, 256-100, components[0].Pixels)
	assert.InDelta(t, 256, components[0].Area, 0.001)
	assert.InDelta(t, 1.0, components[0].Extent(), 0.001)
}
