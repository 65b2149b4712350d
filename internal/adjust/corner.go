package adjust

import (
	"math"

	"github.com/svgfit/svgfit/internal/scene"
)

// Corner radius baseline divisors, matching the detector's initial estimate.
const (
	cornerWidthDivisor  = 10
	cornerHeightDivisor = 20
)

// CornerRule refines the corner radii from feature-box corner analysis.
//
// Candidate radii come from two sources: the detector baseline
// (min(Max, width/10), min(Max, height/20)) and every feature box whose
// center sits in one of the four corner regions of the shape, contributing
// half its own extents. Among all candidates the one minimizing total
// deviation from the current radii wins, so radii refine smoothly instead of
// jumping. Candidates are clamped to half the smaller shape dimension before
// selection, keeping the result valid for any shape size.
type CornerRule struct {
	// Max caps the baseline radius estimate.
	Max float64
}

func (*CornerRule) Name() string { return "corner" }

func (r *CornerRule) Apply(_ *Signals, next *scene.Scene) error {
	w, h := next.Size.Width, next.Size.Height
	limit := math.Min(w, h) / 2

	candidates := []scene.CornerRadius{{
		RX: math.Min(r.Max, w/cornerWidthDivisor),
		RY: math.Min(r.Max, h/cornerHeightDivisor),
	}}

	shape := next.Bounds()
	for _, box := range next.Provenance.FeatureBoxes {
		center := scene.Point{X: box.X + box.Width/2, Y: box.Y + box.Height/2}
		if !inCornerRegion(shape, center) {
			continue
		}
		candidates = append(candidates, scene.CornerRadius{
			RX: box.Width / 2,
			RY: box.Height / 2,
		})
	}

	best := candidates[0]
	bestDev := math.Inf(1)
	for _, cand := range candidates {
		cand.RX = clampRadius(cand.RX, limit)
		cand.RY = clampRadius(cand.RY, limit)
		dev := math.Abs(cand.RX-next.CornerRadius.RX) + math.Abs(cand.RY-next.CornerRadius.RY)
		if dev < bestDev {
			best = cand
			bestDev = dev
		}
	}

	next.CornerRadius = best
	return nil
}

// inCornerRegion reports whether a point lies in one of the four corner
// squares of the shape. Each region spans a quarter of the smaller dimension.
func inCornerRegion(shape scene.Box, p scene.Point) bool {
	q := math.Min(shape.Width, shape.Height) / 4
	if q <= 0 {
		return false
	}
	left := p.X >= shape.X && p.X < shape.X+q
	right := p.X > shape.X+shape.Width-q && p.X <= shape.X+shape.Width
	top := p.Y >= shape.Y && p.Y < shape.Y+q
	bottom := p.Y > shape.Y+shape.Height-q && p.Y <= shape.Y+shape.Height
	return (left || right) && (top || bottom)
}

func clampRadius(v, limit float64) float64 {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
