package similarity

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fillImage creates a w x h image of a single color.
func fillImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// rampImage creates a w x h image whose channels ramp horizontally from base
// to base+span, exercising every histogram bin in that range.
func rampImage(w, h int, base, span uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := base + uint8(int(span)*x/(w-1))
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// shiftImage returns a copy with delta added to every channel. Callers keep
// base+delta under 256 so no clamping distorts the histogram.
func shiftImage(src *image.RGBA, delta uint8) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.RGBAAt(x, y)
			out.Set(x, y, color.RGBA{R: c.R + delta, G: c.G + delta, B: c.B + delta, A: 255})
		}
	}
	return out
}

func TestIdenticalImagesScorePerfect(t *testing.T) {
	tests := []struct {
		name string
		img  *image.RGBA
	}{
		{"patterned", rampImage(64, 48, 10, 200)},
		{"constant gray", fillImage(32, 32, color.RGBA{R: 128, G: 128, B: 128, A: 255})},
		{"constant black", fillImage(16, 16, color.RGBA{A: 255})},
	}

	eval := NewEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := eval.Compare(tt.img, tt.img)
			require.NoError(t, err)
			assert.Equal(t, 0.0, res.MSE)
			assert.Equal(t, psnrSaturated, res.PSNR)
			assert.Equal(t, 1.0, res.PSNRNorm)
			assert.Equal(t, 1.0, res.Histogram)
			assert.Equal(t, 1.0, res.Template)
			assert.Equal(t, 1.0, res.Overall)
		})
	}
}

func TestDimensionMismatch(t *testing.T) {
	eval := NewEvaluator()
	a := fillImage(10, 10, color.RGBA{A: 255})
	b := fillImage(10, 11, color.RGBA{A: 255})

	_, err := eval.Compare(a, b)
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "10x10")
	assert.Contains(t, err.Error(), "10x11")
}

func TestEmptyImage(t *testing.T) {
	eval := NewEvaluator()
	empty := image.NewRGBA(image.Rect(0, 0, 0, 0))
	ok := fillImage(4, 4, color.RGBA{A: 255})

	_, err := eval.Compare(empty, ok)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = eval.Compare(ok, empty)
	assert.ErrorIs(t, err, ErrEmptyImage)

	// Degenerate input is reported before the dimension check.
	_, err = eval.Compare(empty, empty)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestHistogramDecreasesWithUniformShift(t *testing.T) {
	eval := NewEvaluator()
	ref := rampImage(128, 32, 0, 127)

	var prev = 1.1
	for _, delta := range []uint8{8, 24, 48} {
		res, err := eval.Compare(ref, shiftImage(ref, delta))
		require.NoError(t, err)
		assert.Lessf(t, res.Histogram, prev, "shift %d should score below shift before it", delta)
		prev = res.Histogram
	}
}

func TestConstantAgainstConstant(t *testing.T) {
	eval := NewEvaluator()
	black := fillImage(20, 20, color.RGBA{A: 255})
	white := fillImage(20, 20, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	res, err := eval.Compare(black, white)
	require.NoError(t, err)

	// Equal-variance constants with different means: raw correlation -1
	// maps to 0.
	assert.Equal(t, 0.0, res.Template)
	assert.Equal(t, 255.0*255.0, res.MSE)
	assert.Equal(t, 0.0, res.PSNRNorm)
}

func TestConstantAgainstPattern(t *testing.T) {
	eval := NewEvaluator()
	flat := fillImage(64, 48, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	pattern := rampImage(64, 48, 10, 200)

	res, err := eval.Compare(flat, pattern)
	require.NoError(t, err)

	// One constant input: raw correlation 0 maps to 0.5.
	assert.Equal(t, 0.5, res.Template)
	assert.Greater(t, res.MSE, 0.0)
	assert.GreaterOrEqual(t, res.Overall, 0.0)
	assert.LessOrEqual(t, res.Overall, 1.0)
}

func TestPSNRNormalization(t *testing.T) {
	eval := NewEvaluator()
	base := fillImage(50, 50, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	near := fillImage(50, 50, color.RGBA{R: 101, G: 101, B: 101, A: 255})
	far := fillImage(50, 50, color.RGBA{R: 228, G: 228, B: 228, A: 255})

	// MSE 1 gives PSNR just over 48 dB, beyond the 40 dB ceiling.
	res, err := eval.Compare(base, near)
	require.NoError(t, err)
	assert.Greater(t, res.PSNR, eval.PSNRCeiling)
	assert.Equal(t, 1.0, res.PSNRNorm)

	// MSE 128^2 gives PSNR about 6 dB, well below the ceiling.
	res, err = eval.Compare(base, far)
	require.NoError(t, err)
	assert.InDelta(t, res.PSNR/eval.PSNRCeiling, res.PSNRNorm, 1e-12)
	assert.Greater(t, res.PSNRNorm, 0.0)
	assert.Less(t, res.PSNRNorm, 1.0)
}

func TestZeroValueEvaluatorUsesDefaultCeiling(t *testing.T) {
	var eval Evaluator
	img := rampImage(32, 32, 0, 255)
	res, err := eval.Compare(img, img)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.PSNRNorm)
}

func TestCompareIsDeterministic(t *testing.T) {
	eval := NewEvaluator()
	a := rampImage(64, 64, 0, 255)
	b := shiftImage(rampImage(64, 64, 0, 127), 30)

	first, err := eval.Compare(a, b)
	require.NoError(t, err)
	second, err := eval.Compare(a, b)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCorrelationDegenerateCases(t *testing.T) {
	constant := []float64{5, 5, 5, 5}
	same := []float64{5, 5, 5, 5}
	other := []float64{9, 9, 9, 9}
	varying := []float64{1, 2, 3, 4}

	assert.Equal(t, 1.0, correlation(constant, same))
	assert.Equal(t, -1.0, correlation(constant, other))
	assert.Equal(t, 0.0, correlation(constant, varying))
	assert.InDelta(t, 1.0, correlation(varying, varying), 1e-12)
}
