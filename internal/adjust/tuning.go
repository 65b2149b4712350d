package adjust

import "github.com/svgfit/svgfit/internal/calibration"

// Tuning collects the named thresholds the default rules consult. Zero values
// are not usable directly; start from DefaultTuning and override fields.
type Tuning struct {
	// OutlierThreshold is the offset magnitude, in logical units, beyond
	// which a calibration pair is flagged as an outlier.
	OutlierThreshold float64

	// ExcludeOutliers drops flagged pairs from the mean offset instead of
	// merely reporting them.
	ExcludeOutliers bool

	// GradientSamples is the number of color stops sampled along the
	// principal axis when no calibration markers supply colors.
	GradientSamples int

	// SampleWindow is the edge length of the averaging window used when
	// sampling reference colors.
	SampleWindow int

	// MaxCornerRadius caps the baseline corner radius estimate.
	MaxCornerRadius float64

	// DedupeEpsilon is the offset distance below which two gradient stops
	// collapse into one.
	DedupeEpsilon float64
}

// DefaultTuning returns the thresholds the detector and the reference
// pipeline were tuned against.
func DefaultTuning() Tuning {
	return Tuning{
		OutlierThreshold: calibration.DefaultOutlierThreshold,
		ExcludeOutliers:  false,
		GradientSamples:  5,
		SampleWindow:     5,
		MaxCornerRadius:  30,
		DedupeEpsilon:    0.01,
	}
}

// outlierPolicy converts the tuning knobs into the calibration package's
// policy form.
func (t Tuning) outlierPolicy() calibration.OutlierPolicy {
	return calibration.OutlierPolicy{
		Threshold: t.OutlierThreshold,
		Exclude:   t.ExcludeOutliers,
	}
}
