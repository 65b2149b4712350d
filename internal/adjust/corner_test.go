package adjust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svgfit/svgfit/internal/scene"
)

func TestCornerBaselineWithoutFeatures(t *testing.T) {
	s := &scene.Scene{
		Position: scene.Point{},
		Size:     scene.Size{Width: 200, Height: 400},
	}

	rule := &CornerRule{Max: 30}
	require.NoError(t, rule.Apply(&Signals{}, s))

	assert.InDelta(t, 20.0, s.CornerRadius.RX, 1e-9)
	assert.InDelta(t, 20.0, s.CornerRadius.RY, 1e-9)
}

func TestCornerBaselineCappedByMax(t *testing.T) {
	s := &scene.Scene{
		Size: scene.Size{Width: 1000, Height: 1000},
	}

	rule := &CornerRule{Max: 30}
	require.NoError(t, rule.Apply(&Signals{}, s))

	// width/10 and height/20 both exceed the cap.
	assert.InDelta(t, 30.0, s.CornerRadius.RX, 1e-9)
	assert.InDelta(t, 30.0, s.CornerRadius.RY, 1e-9)
}

func TestCornerPicksCandidateClosestToCurrent(t *testing.T) {
	s := &scene.Scene{
		Size:         scene.Size{Width: 200, Height: 400},
		CornerRadius: scene.CornerRadius{RX: 10, RY: 10},
	}
	// A feature box whose center (12, 9) falls in the top-left corner
	// region, proposing radii (12, 9). Deviation 3 beats the baseline's 20.
	s.Provenance.FeatureBoxes = []scene.Box{
		{X: 0, Y: 0, Width: 24, Height: 18},
	}

	rule := &CornerRule{Max: 30}
	require.NoError(t, rule.Apply(&Signals{}, s))

	assert.InDelta(t, 12.0, s.CornerRadius.RX, 1e-9)
	assert.InDelta(t, 9.0, s.CornerRadius.RY, 1e-9)
}

func TestCornerIgnoresCentralFeatures(t *testing.T) {
	s := &scene.Scene{
		Size: scene.Size{Width: 200, Height: 400},
	}
	// Centered mid-shape, far from every corner region.
	s.Provenance.FeatureBoxes = []scene.Box{
		{X: 90, Y: 190, Width: 20, Height: 20},
	}

	rule := &CornerRule{Max: 30}
	require.NoError(t, rule.Apply(&Signals{}, s))

	// Only the baseline candidate remains.
	assert.InDelta(t, 20.0, s.CornerRadius.RX, 1e-9)
	assert.InDelta(t, 20.0, s.CornerRadius.RY, 1e-9)
}

func TestCornerClampsToHalfMinDimension(t *testing.T) {
	s := &scene.Scene{
		Size:         scene.Size{Width: 40, Height: 40},
		CornerRadius: scene.CornerRadius{RX: 18, RY: 18},
	}
	// An oversized feature box whose center (5,5) sits in the top-left
	// corner region proposes radii (45,45), which clamp to the 20-unit
	// limit before selection.
	s.Provenance.FeatureBoxes = []scene.Box{
		{X: -40, Y: -40, Width: 90, Height: 90},
	}

	rule := &CornerRule{Max: 30}
	require.NoError(t, rule.Apply(&Signals{}, s))

	require.NoError(t, s.Validate())
	assert.InDelta(t, 20.0, s.CornerRadius.RX, 1e-9)
	assert.InDelta(t, 20.0, s.CornerRadius.RY, 1e-9)
}

func TestCornerStableOnReapplication(t *testing.T) {
	s := &scene.Scene{
		Size: scene.Size{Width: 200, Height: 400},
	}
	s.Provenance.FeatureBoxes = []scene.Box{
		{X: 0, Y: 0, Width: 24, Height: 18},
	}

	rule := &CornerRule{Max: 30}
	require.NoError(t, rule.Apply(&Signals{}, s))
	first := s.CornerRadius

	require.NoError(t, rule.Apply(&Signals{}, s))
	assert.Equal(t, first, s.CornerRadius)
}
