package adjust

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svgfit/svgfit/internal/calibration"
	"github.com/svgfit/svgfit/internal/scene"
)

// verticalRamp builds a 40x100 image whose red channel doubles the row index,
// so the color at height y is predictable.
func verticalRamp() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 40, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: uint8(2 * y), G: 100, B: 50, A: 255})
		}
	}
	return img
}

func rampScene() *scene.Scene {
	return &scene.Scene{
		Size: scene.Size{Width: 40, Height: 100},
	}
}

func TestGradientAxisSampling(t *testing.T) {
	s := rampScene()
	rule := &GradientRule{Samples: 5, Window: 1, Epsilon: 0.01}

	require.NoError(t, rule.Apply(&Signals{Reference: verticalRamp()}, s))
	require.Len(t, s.GradientStops, 5)

	// Samples land at y = 10, 30, 50, 70, 90 with offsets i/(n-1).
	wantOffsets := []float64{0, 0.25, 0.5, 0.75, 1}
	wantColors := []string{"#146432", "#3C6432", "#646432", "#8C6432", "#B46432"}
	for i, stop := range s.GradientStops {
		assert.InDelta(t, wantOffsets[i], stop.Offset, 1e-9)
		assert.Equal(t, wantColors[i], stop.Color)
	}

	require.NoError(t, s.Validate())
}

func TestGradientSingleSample(t *testing.T) {
	s := rampScene()
	rule := &GradientRule{Samples: 1, Window: 1, Epsilon: 0.01}

	require.NoError(t, rule.Apply(&Signals{Reference: verticalRamp()}, s))
	require.Len(t, s.GradientStops, 1)
	assert.Zero(t, s.GradientStops[0].Offset)
	// The single sample lands at the axis midpoint, y=50.
	assert.Equal(t, "#646432", s.GradientStops[0].Color)
}

func TestGradientUsesCalibratedColors(t *testing.T) {
	set := calibration.NewSet()
	set.ClickOriginal(20, 25, "#112233")
	set.ClickRendered(20, 25)
	set.ClickOriginal(20, 75, "") // no stored color, sampled from reference
	set.ClickRendered(20, 75)

	s := rampScene()
	rule := &GradientRule{Samples: 5, Window: 1, Epsilon: 0.01}
	sig := &Signals{Reference: verticalRamp(), Calibration: set.Snapshot()}

	require.NoError(t, rule.Apply(sig, s))
	require.Len(t, s.GradientStops, 2)

	assert.InDelta(t, 0.25, s.GradientStops[0].Offset, 1e-9)
	assert.Equal(t, "#112233", s.GradientStops[0].Color)

	assert.InDelta(t, 0.75, s.GradientStops[1].Offset, 1e-9)
	assert.Equal(t, "#966432", s.GradientStops[1].Color, "sampled at y=75 where red is 150")

	require.NoError(t, s.Validate())
}

func TestGradientMarkerOffsetsClampToUnitRange(t *testing.T) {
	set := calibration.NewSet()
	set.ClickOriginal(20, -40, "#FFFFFF") // above the shape
	set.ClickRendered(20, 0)

	s := rampScene()
	rule := &GradientRule{Samples: 5, Window: 1, Epsilon: 0.01}
	sig := &Signals{Reference: verticalRamp(), Calibration: set.Snapshot()}

	require.NoError(t, rule.Apply(sig, s))
	require.Len(t, s.GradientStops, 1)
	assert.Zero(t, s.GradientStops[0].Offset)
}

func TestGradientDedupeKeepsColorNearestPrecedingStop(t *testing.T) {
	set := calibration.NewSet()
	set.ClickOriginal(20, 10, "#000000")
	set.ClickRendered(20, 10)
	set.ClickOriginal(20, 50.0, "#FFFFFF")
	set.ClickRendered(20, 50)
	set.ClickOriginal(20, 50.5, "#111111")
	set.ClickRendered(20, 50)

	s := rampScene()
	rule := &GradientRule{Samples: 5, Window: 1, Epsilon: 0.01}
	sig := &Signals{Reference: verticalRamp(), Calibration: set.Snapshot()}

	require.NoError(t, rule.Apply(sig, s))
	require.Len(t, s.GradientStops, 2)

	// The stops at offsets 0.500 and 0.505 collide; near-black wins the
	// collision because it sits closer to the preceding black stop.
	assert.InDelta(t, 0.5, s.GradientStops[1].Offset, 1e-9)
	assert.Equal(t, "#111111", s.GradientStops[1].Color)
	require.NoError(t, s.Validate())
}

func TestGradientEqualOffsetsAlwaysCollapse(t *testing.T) {
	set := calibration.NewSet()
	set.ClickOriginal(20, 30, "#AA0000")
	set.ClickRendered(20, 30)
	set.ClickOriginal(20, 30, "#BB0000")
	set.ClickRendered(20, 30)

	s := rampScene()
	rule := &GradientRule{Samples: 5, Window: 1, Epsilon: 0}
	sig := &Signals{Reference: verticalRamp(), Calibration: set.Snapshot()}

	require.NoError(t, rule.Apply(sig, s))
	require.Len(t, s.GradientStops, 1)
	require.NoError(t, s.Validate())
}

func TestGradientUnchangedWithoutReference(t *testing.T) {
	s := rampScene()
	s.GradientStops = []scene.GradientStop{{Offset: 0, Color: "#123456"}}

	rule := &GradientRule{Samples: 5, Window: 1, Epsilon: 0.01}
	require.NoError(t, rule.Apply(&Signals{}, s))

	require.Len(t, s.GradientStops, 1)
	assert.Equal(t, "#123456", s.GradientStops[0].Color)
}

func TestGradientHorizontalAxis(t *testing.T) {
	// Wider than tall: sampling follows X.
	img := image.NewRGBA(image.Rect(0, 0, 100, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: uint8(2 * x), G: 0, B: 0, A: 255})
		}
	}

	s := &scene.Scene{Size: scene.Size{Width: 100, Height: 40}}
	rule := &GradientRule{Samples: 2, Window: 1, Epsilon: 0.01}

	require.NoError(t, rule.Apply(&Signals{Reference: img}, s))
	require.Len(t, s.GradientStops, 2)

	// Samples land at x = 25 and x = 75.
	assert.Equal(t, "#320000", s.GradientStops[0].Color)
	assert.Equal(t, "#960000", s.GradientStops[1].Color)
}
