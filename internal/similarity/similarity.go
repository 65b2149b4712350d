package similarity

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/histogram"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrDimensionMismatch is returned when the two images differ in pixel
	// dimensions. The evaluator never rescales; callers resize the candidate
	// to the reference bounds before scoring.
	ErrDimensionMismatch = errors.New("image dimensions do not match")

	// ErrEmptyImage is returned when an input image has zero area.
	ErrEmptyImage = errors.New("image has zero area")
)

// DefaultPSNRCeiling is the raw dB value that maps to a normalized PSNR
// score of 1.0. Scores above the ceiling are clamped.
const DefaultPSNRCeiling = 40.0

// psnrSaturated is the raw PSNR reported for a zero-MSE comparison, where
// the true value is unbounded.
const psnrSaturated = 100.0

// Composite weights: PSNR 0.4, histogram 0.3, template 0.3. Kept as integer
// ratios over weightTotal so a perfect score sums to exactly 1.0.
const (
	weightPSNR      = 4
	weightHistogram = 3
	weightTemplate  = 3
	weightTotal     = 10
)

// meanTolerance bounds the mean difference under which two constant images
// count as equal for correlation purposes.
const meanTolerance = 1e-9

// Result is the metric breakdown for one reference/candidate comparison.
// All normalized values lie in [0, 1]; MSE and PSNR are raw diagnostics.
type Result struct {
	// MSE is the mean squared per-pixel difference across the R, G and B
	// channels. Unbounded, diagnostic only; it does not enter the composite.
	MSE float64 `json:"mse"`

	// PSNR is the raw peak signal-to-noise ratio in dB (100 when MSE is 0).
	PSNR float64 `json:"psnr"`

	// PSNRNorm is PSNR clamped to the evaluator ceiling and scaled to [0, 1].
	PSNRNorm float64 `json:"psnr_norm"`

	// Histogram is the mean per-channel histogram correlation mapped to [0, 1].
	Histogram float64 `json:"histogram"`

	// Template is the grayscale normalized cross-correlation mapped to [0, 1].
	Template float64 `json:"template"`

	// Overall is the weighted composite score in [0, 1].
	Overall float64 `json:"overall"`
}

// Evaluator scores candidate renderings against a reference image. The zero
// value is usable and applies DefaultPSNRCeiling.
type Evaluator struct {
	// PSNRCeiling is the dB value mapped to a normalized score of 1.0.
	PSNRCeiling float64
}

// NewEvaluator returns an evaluator with default settings.
func NewEvaluator() *Evaluator {
	return &Evaluator{PSNRCeiling: DefaultPSNRCeiling}
}

// Compare scores how closely candidate matches reference and returns the full
// metric breakdown. It is deterministic, has no side effects, and ignores the
// alpha channel.
//
// Both images must be non-empty and share identical pixel dimensions;
// violations surface as ErrEmptyImage and ErrDimensionMismatch respectively
// and abort the comparison, never degrading into a default score.
func (e *Evaluator) Compare(reference, candidate image.Image) (*Result, error) {
	rb := reference.Bounds()
	cb := candidate.Bounds()
	if rb.Dx() <= 0 || rb.Dy() <= 0 {
		return nil, fmt.Errorf("reference: %w", ErrEmptyImage)
	}
	if cb.Dx() <= 0 || cb.Dy() <= 0 {
		return nil, fmt.Errorf("candidate: %w", ErrEmptyImage)
	}
	if rb.Dx() != cb.Dx() || rb.Dy() != cb.Dy() {
		return nil, fmt.Errorf("%w: reference %dx%d, candidate %dx%d",
			ErrDimensionMismatch, rb.Dx(), rb.Dy(), cb.Dx(), cb.Dy())
	}

	mse, grayRef, grayCand := pixelStats(reference, candidate)

	psnr := psnrSaturated
	if mse > 0 {
		psnr = 20 * math.Log10(255/math.Sqrt(mse))
	}
	ceiling := e.PSNRCeiling
	if ceiling <= 0 {
		ceiling = DefaultPSNRCeiling
	}
	psnrNorm := clamp01(psnr / ceiling)

	// A zero MSE means pixel-identical images; histogram and template
	// correlations are 1 by definition.
	hist, tmpl := 1.0, 1.0
	if mse > 0 {
		hist = mapUnit(histogramCorrelation(reference, candidate))
		tmpl = mapUnit(correlation(grayRef, grayCand))
	}

	return &Result{
		MSE:       mse,
		PSNR:      psnr,
		PSNRNorm:  psnrNorm,
		Histogram: hist,
		Template:  tmpl,
		Overall:   (weightPSNR*psnrNorm + weightHistogram*hist + weightTemplate*tmpl) / weightTotal,
	}, nil
}

// pixelStats walks both images once, accumulating the squared channel
// differences and the BT.601 grayscale vectors used by the template metric.
func pixelStats(reference, candidate image.Image) (mse float64, grayRef, grayCand []float64) {
	rb := reference.Bounds()
	cb := candidate.Bounds()
	n := rb.Dx() * rb.Dy()
	grayRef = make([]float64, 0, n)
	grayCand = make([]float64, 0, n)

	var sum float64
	for y := 0; y < rb.Dy(); y++ {
		for x := 0; x < rb.Dx(); x++ {
			r1, g1, b1, _ := reference.At(rb.Min.X+x, rb.Min.Y+y).RGBA()
			r2, g2, b2, _ := candidate.At(cb.Min.X+x, cb.Min.Y+y).RGBA()

			fr1, fg1, fb1 := float64(r1>>8), float64(g1>>8), float64(b1>>8)
			fr2, fg2, fb2 := float64(r2>>8), float64(g2>>8), float64(b2>>8)

			dr := fr1 - fr2
			dg := fg1 - fg2
			db := fb1 - fb2
			sum += dr*dr + dg*dg + db*db

			grayRef = append(grayRef, 0.299*fr1+0.587*fg1+0.114*fb1)
			grayCand = append(grayCand, 0.299*fr2+0.587*fg2+0.114*fb2)
		}
	}
	mse = sum / float64(n*3)
	return mse, grayRef, grayCand
}

// histogramCorrelation returns the mean Pearson correlation of the per-channel
// 256-bin histograms, in [-1, 1].
func histogramCorrelation(reference, candidate image.Image) float64 {
	hr := histogram.NewRGBAHistogram(reference)
	hc := histogram.NewRGBAHistogram(candidate)

	sum := correlation(binsToFloat(hr.R.Bins), binsToFloat(hc.R.Bins))
	sum += correlation(binsToFloat(hr.G.Bins), binsToFloat(hc.G.Bins))
	sum += correlation(binsToFloat(hr.B.Bins), binsToFloat(hc.B.Bins))
	return sum / 3
}

// correlation computes the Pearson correlation of two equal-length vectors.
// Zero-variance inputs are resolved explicitly: two constant vectors
// correlate at 1 when their means agree and -1 when they do not; a constant
// vector against a varying one scores 0.
func correlation(x, y []float64) float64 {
	varX := stat.Variance(x, nil)
	varY := stat.Variance(y, nil)
	switch {
	case varX == 0 && varY == 0:
		if math.Abs(stat.Mean(x, nil)-stat.Mean(y, nil)) <= meanTolerance {
			return 1
		}
		return -1
	case varX == 0 || varY == 0:
		return 0
	}
	return stat.Correlation(x, y, nil)
}

func binsToFloat(bins []int) []float64 {
	out := make([]float64, len(bins))
	for i, v := range bins {
		out[i] = float64(v)
	}
	return out
}

// mapUnit maps a correlation in [-1, 1] to [0, 1].
func mapUnit(v float64) float64 {
	return clamp01((v + 1) / 2)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
