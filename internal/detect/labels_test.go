package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svgfit/svgfit/internal/scene"
)

// textLikeMask draws rows of short vertical strokes, the run structure the
// heuristic treats as printed text.
func textLikeMask(width, height int) [][]bool {
	mask := emptyMask(width, height)
	for x := 20; x <= 110; x += 6 {
		for dx := 0; dx < 3; dx++ {
			for y := 30; y < 42; y++ {
				mask[y][x+dx] = true
			}
		}
	}
	return mask
}

func TestTextRegionsFindStrokeBand(t *testing.T) {
	mask := textLikeMask(200, 100)

	regions := textRegions(mask, 200, 100, 0.5)
	require.NotEmpty(t, regions)

	top := regions[0]
	assert.GreaterOrEqual(t, top.Confidence, 0.5)

	band := scene.Box{X: 20, Y: 30, Width: 93, Height: 12}
	assert.True(t, boxesOverlap(top.Box, band), "top region %+v must cover the stroke band", top.Box)
	assert.Empty(t, top.Text, "the heuristic locates text without reading it")
}

func TestTextRegionsRejectEmptyAndSolid(t *testing.T) {
	assert.Empty(t, textRegions(emptyMask(200, 100), 200, 100, 0.3))

	solid := emptyMask(200, 100)
	for y := range solid {
		for x := range solid[y] {
			solid[y][x] = true
		}
	}
	assert.Empty(t, textRegions(solid, 200, 100, 0.3), "fully dense masks are shapes, not text")
}

func TestTextRegionsRespectMinConfidence(t *testing.T) {
	mask := textLikeMask(200, 100)

	permissive := textRegions(mask, 200, 100, 0.1)
	strict := textRegions(mask, 200, 100, 0.99)

	assert.NotEmpty(t, permissive)
	assert.Empty(t, strict)
}

func TestHorizontalRunShare(t *testing.T) {
	mask := emptyMask(6, 6)
	for x := 0; x < 6; x++ {
		mask[2][x] = true
	}
	// One horizontal run, six single-pixel vertical runs.
	assert.InDelta(t, 1.0/7.0, horizontalRunShare(mask, 0, 0, 6, 6), 0.001)

	mask = emptyMask(6, 6)
	for y := 0; y < 6; y++ {
		mask[y][2] = true
	}
	assert.InDelta(t, 6.0/7.0, horizontalRunShare(mask, 0, 0, 6, 6), 0.001)
}

func TestMergeLabelRegions(t *testing.T) {
	regions := []LabelRegion{
		{Box: scene.Box{X: 0, Y: 0, Width: 10, Height: 10}, Confidence: 0.5},
		{Box: scene.Box{X: 5, Y: 5, Width: 10, Height: 10}, Confidence: 0.7},
		{Box: scene.Box{X: 100, Y: 100, Width: 10, Height: 10}, Confidence: 0.4},
	}

	merged := mergeLabelRegions(regions)
	require.Len(t, merged, 2)

	assert.Equal(t, scene.Box{X: 0, Y: 0, Width: 15, Height: 15}, merged[0].Box)
	assert.InDelta(t, 0.7, merged[0].Confidence, 0.001)
	assert.Equal(t, 100.0, merged[1].Box.X)
}

func TestBoxesOverlap(t *testing.T) {
	a := scene.Box{X: 0, Y: 0, Width: 10, Height: 10}

	assert.True(t, boxesOverlap(a, scene.Box{X: 9, Y: 9, Width: 5, Height: 5}))
	assert.False(t, boxesOverlap(a, scene.Box{X: 10, Y: 0, Width: 5, Height: 5}), "touching edges do not overlap")
	assert.False(t, boxesOverlap(a, scene.Box{X: 20, Y: 20, Width: 5, Height: 5}))
}
