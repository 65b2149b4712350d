package adjust

import (
	"math"

	"github.com/svgfit/svgfit/internal/scene"
)

// SizeRule re-measures the shape dimensions from the provenance geometry:
// the bounding box of the source contour when one exists, else the union of
// the feature boxes. Scenes without provenance geometry keep their size. The
// rule is idempotent while the provenance is stable.
type SizeRule struct{}

func (SizeRule) Name() string { return "size" }

func (SizeRule) Apply(_ *Signals, next *scene.Scene) error {
	box, ok := measuredBounds(&next.Provenance)
	if !ok {
		return nil
	}
	// Degenerate extents (a flat contour) leave that dimension alone.
	if box.Width > 0 {
		next.Size.Width = box.Width
	}
	if box.Height > 0 {
		next.Size.Height = box.Height
	}
	return nil
}

// measuredBounds computes the bounding box of the provenance geometry. The
// second return is false when the scene carries no contour and no feature
// boxes.
func measuredBounds(p *scene.Provenance) (scene.Box, bool) {
	if len(p.SourceContour) > 0 {
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, pt := range p.SourceContour {
			minX = math.Min(minX, pt.X)
			minY = math.Min(minY, pt.Y)
			maxX = math.Max(maxX, pt.X)
			maxY = math.Max(maxY, pt.Y)
		}
		return scene.Box{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
	}

	if len(p.FeatureBoxes) > 0 {
		first := p.FeatureBoxes[0]
		minX, minY := first.X, first.Y
		maxX, maxY := first.X+first.Width, first.Y+first.Height
		for _, b := range p.FeatureBoxes[1:] {
			minX = math.Min(minX, b.X)
			minY = math.Min(minY, b.Y)
			maxX = math.Max(maxX, b.X+b.Width)
			maxY = math.Max(maxY, b.Y+b.Height)
		}
		return scene.Box{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
	}

	return scene.Box{}, false
}
