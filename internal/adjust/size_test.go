package adjust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svgfit/svgfit/internal/scene"
)

func TestSizeFromContourBounds(t *testing.T) {
	s := baseScene()
	s.Provenance.SourceContour = []scene.Point{
		{X: 2, Y: 3}, {X: 12, Y: 3}, {X: 12, Y: 33}, {X: 2, Y: 33},
	}

	require.NoError(t, SizeRule{}.Apply(&Signals{}, s))

	assert.InDelta(t, 10.0, s.Size.Width, 1e-9)
	assert.InDelta(t, 30.0, s.Size.Height, 1e-9)
	assert.Equal(t, scene.Point{X: 10, Y: 20}, s.Position, "size rule must not move the shape")
}

func TestSizeIsIdempotentForStableContour(t *testing.T) {
	s := baseScene()
	s.Provenance.SourceContour = []scene.Point{
		{X: 0, Y: 0}, {X: 40, Y: 0}, {X: 40, Y: 90}, {X: 0, Y: 90},
	}

	require.NoError(t, SizeRule{}.Apply(&Signals{}, s))
	first := s.Size

	require.NoError(t, SizeRule{}.Apply(&Signals{}, s))
	assert.Equal(t, first, s.Size)
}

func TestSizeFallsBackToFeatureBoxUnion(t *testing.T) {
	s := baseScene()
	s.Provenance.FeatureBoxes = []scene.Box{
		{X: 0, Y: 0, Width: 4, Height: 4},
		{X: 6, Y: 8, Width: 4, Height: 4},
	}

	require.NoError(t, SizeRule{}.Apply(&Signals{}, s))

	assert.InDelta(t, 10.0, s.Size.Width, 1e-9)
	assert.InDelta(t, 12.0, s.Size.Height, 1e-9)
}

func TestSizeUnchangedWithoutProvenance(t *testing.T) {
	s := baseScene()
	require.NoError(t, SizeRule{}.Apply(&Signals{}, s))
	assert.Equal(t, scene.Size{Width: 100, Height: 200}, s.Size)
}

func TestSizeKeepsDimensionForFlatContour(t *testing.T) {
	// All contour points share one Y, so the measured height is zero and the
	// current height survives.
	s := baseScene()
	s.Provenance.SourceContour = []scene.Point{
		{X: 5, Y: 50}, {X: 55, Y: 50},
	}

	require.NoError(t, SizeRule{}.Apply(&Signals{}, s))

	assert.InDelta(t, 50.0, s.Size.Width, 1e-9)
	assert.InDelta(t, 200.0, s.Size.Height, 1e-9)
}
