package adjust

import (
	"image"
	"math"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/svgfit/svgfit/internal/imaging"
	"github.com/svgfit/svgfit/internal/scene"
)

// GradientRule resamples the fill gradient from the reference photo.
//
// When calibration markers exist, their positions map onto the gradient axis
// and their stored click colors become the stop colors; markers without a
// stored color are sampled from the reference at the click position. Without
// markers, the rule samples Samples windows at fractional positions
// (i+0.5)/n along the shape's principal axis, producing stops at offsets
// i/(n-1).
//
// Stops are sorted by offset and de-duplicated: offsets closer than Epsilon
// collapse onto the earliest stop, and among colliding colors the one nearest
// the preceding stop in Lab space wins.
type GradientRule struct {
	// Samples is the stop count for axis sampling. Values below 1 sample a
	// single stop.
	Samples int

	// Window is the averaging window edge length for color sampling.
	Window int

	// Epsilon is the offset collapse distance.
	Epsilon float64
}

func (*GradientRule) Name() string { return "gradient" }

func (r *GradientRule) Apply(sig *Signals, next *scene.Scene) error {
	if sig.Reference == nil || sig.Reference.Bounds().Empty() {
		return nil
	}

	stops := r.calibratedStops(sig, next)
	if len(stops) == 0 {
		stops = r.axisStops(sig.Reference, next)
	}
	if len(stops) == 0 {
		return nil
	}

	next.GradientStops = dedupeStops(stops, r.Epsilon)
	return nil
}

// calibratedStops derives stops from the marker snapshot. Marker positions
// project onto the principal axis as fractional offsets, clamped to [0, 1].
func (r *GradientRule) calibratedStops(sig *Signals, s *scene.Scene) []scene.GradientStop {
	if sig.Calibration.Empty() {
		return nil
	}

	stops := make([]scene.GradientStop, 0, len(sig.Calibration.Markers))
	for _, m := range sig.Calibration.Markers {
		var frac float64
		if s.VerticalAxis() {
			frac = (m.Original.Y - s.Position.Y) / s.Size.Height
		} else {
			frac = (m.Original.X - s.Position.X) / s.Size.Width
		}

		color := m.Color
		if _, err := colorful.Hex(color); err != nil {
			sample := sampleAt(sig.Reference, m.Original.X, m.Original.Y, r.Window)
			if sample == nil {
				continue
			}
			color = sample.Hex
		}

		stops = append(stops, scene.GradientStop{
			Offset: clamp01(frac),
			Color:  color,
		})
	}
	return stops
}

// axisStops samples evenly spaced windows down the shape's principal axis.
func (r *GradientRule) axisStops(ref image.Image, s *scene.Scene) []scene.GradientStop {
	n := r.Samples
	if n < 1 {
		n = 1
	}

	stops := make([]scene.GradientStop, 0, n)
	for i := 0; i < n; i++ {
		frac := (float64(i) + 0.5) / float64(n)

		var cx, cy float64
		if s.VerticalAxis() {
			cx = s.Position.X + s.Size.Width/2
			cy = s.Position.Y + s.Size.Height*frac
		} else {
			cx = s.Position.X + s.Size.Width*frac
			cy = s.Position.Y + s.Size.Height/2
		}

		sample := sampleAt(ref, cx, cy, r.Window)
		if sample == nil {
			continue
		}

		offset := 0.0
		if n > 1 {
			offset = float64(i) / float64(n-1)
		}
		stops = append(stops, scene.GradientStop{Offset: offset, Color: sample.Hex})
	}
	return stops
}

// sampleAt reads an averaged color window centered at the given logical
// coordinates, clamped into the image bounds.
func sampleAt(img image.Image, x, y float64, window int) *imaging.ColorSample {
	bounds := img.Bounds()
	px := clampCoord(int(math.Round(x)), bounds.Min.X, bounds.Max.X-1)
	py := clampCoord(int(math.Round(y)), bounds.Min.Y, bounds.Max.Y-1)
	sample, err := imaging.SampleRegion(img, px, py, window)
	if err != nil {
		return nil
	}
	return sample
}

// dedupeStops sorts stops by offset and collapses near-equal offsets so the
// result is strictly increasing. Exactly equal offsets always collapse,
// regardless of epsilon.
func dedupeStops(stops []scene.GradientStop, eps float64) []scene.GradientStop {
	if eps < 1e-12 {
		eps = 1e-12
	}
	sort.SliceStable(stops, func(i, j int) bool { return stops[i].Offset < stops[j].Offset })

	out := make([]scene.GradientStop, 0, len(stops))
	for _, st := range stops {
		if len(out) == 0 {
			out = append(out, st)
			continue
		}
		last := &out[len(out)-1]
		if st.Offset-last.Offset < eps {
			if len(out) >= 2 && labCloser(st.Color, last.Color, out[len(out)-2].Color) {
				last.Color = st.Color
			}
			continue
		}
		out = append(out, st)
	}
	return out
}

// labCloser reports whether challenger is perceptually closer to anchor than
// incumbent is. Unparseable colors never win.
func labCloser(challenger, incumbent, anchor string) bool {
	ca, err1 := colorful.Hex(challenger)
	ci, err2 := colorful.Hex(incumbent)
	an, err3 := colorful.Hex(anchor)
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	return ca.DistanceLab(an) < ci.DistanceLab(an)
}

func clampCoord(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
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
