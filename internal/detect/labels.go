package detect

import (
	"math"
	"sort"

	"github.com/svgfit/svgfit/internal/scene"
)

// LabelRegion is a detected printed-text region on the product.
type LabelRegion struct {
	// Box bounds the region. Detect reports it in padded-crop space.
	Box scene.Box `json:"box"`

	// Text is the recognized content. Empty when the active backend only
	// locates text without reading it.
	Text string `json:"text,omitempty"`

	// Confidence is the backend's score for this being text, in [0, 1].
	Confidence float64 `json:"confidence"`
}

// labelWindowSizes are the sliding-window shapes the edge-density heuristic
// scans with, covering small through large print.
var labelWindowSizes = []struct{ w, h int }{
	{100, 30},
	{150, 40},
	{200, 50},
	{80, 25},
}

// textRegions scans an edge mask for windows whose edge density and run
// structure look like printed text. Text windows hold a moderate share of
// edge pixels arranged in many short horizontal runs; solid shapes are too
// dense and plain backgrounds too sparse. Confidence blends the
// horizontal-run share with how close the density sits to the 0.2
// sweet spot. Overlapping hits are merged into union boxes.
func textRegions(edges [][]bool, width, height int, minConfidence float64) []LabelRegion {
	candidates := make([]LabelRegion, 0)

	for _, ws := range labelWindowSizes {
		stepX := ws.w / 2
		stepY := ws.h / 2

		for y := 0; y+ws.h <= height; y += stepY {
			for x := 0; x+ws.w <= width; x += stepX {
				edgeCount := 0
				for wy := 0; wy < ws.h; wy++ {
					for wx := 0; wx < ws.w; wx++ {
						if edges[y+wy][x+wx] {
							edgeCount++
						}
					}
				}

				density := float64(edgeCount) / float64(ws.w*ws.h)
				if density < 0.05 || density > 0.4 {
					continue
				}

				confidence := horizontalRunShare(edges, x, y, ws.w, ws.h) * (1.0 - math.Abs(density-0.2)/0.2)
				if confidence < minConfidence {
					continue
				}

				candidates = append(candidates, LabelRegion{
					Box: scene.Box{
						X:      float64(x),
						Y:      float64(y),
						Width:  float64(ws.w),
						Height: float64(ws.h),
					},
					Confidence: math.Round(confidence*1000) / 1000,
				})
			}
		}
	}

	merged := mergeLabelRegions(candidates)
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Confidence > merged[j].Confidence
	})
	return merged
}

// horizontalRunShare returns the fraction of edge runs inside the window
// that are horizontal. Printed text fragments into many short horizontal
// runs per line while its strokes stay vertically contiguous, so values
// near 1 are text-like.
func horizontalRunShare(edges [][]bool, x, y, w, h int) float64 {
	horizontal := 0
	vertical := 0

	for row := y; row < y+h; row++ {
		inRun := false
		for col := x; col < x+w; col++ {
			if edges[row][col] {
				if !inRun {
					horizontal++
					inRun = true
				}
			} else {
				inRun = false
			}
		}
	}

	for col := x; col < x+w; col++ {
		inRun := false
		for row := y; row < y+h; row++ {
			if edges[row][col] {
				if !inRun {
					vertical++
					inRun = true
				}
			} else {
				inRun = false
			}
		}
	}

	if horizontal+vertical == 0 {
		return 0
	}
	return float64(horizontal) / float64(horizontal+vertical)
}

// mergeLabelRegions combines overlapping regions into their union, keeping
// the higher confidence of each merged pair.
func mergeLabelRegions(regions []LabelRegion) []LabelRegion {
	if len(regions) == 0 {
		return regions
	}

	merged := make([]LabelRegion, 0)
	for _, r := range regions {
		found := false
		for i := range merged {
			if boxesOverlap(r.Box, merged[i].Box) {
				merged[i].Box = unionBox(r.Box, merged[i].Box)
				merged[i].Confidence = math.Max(r.Confidence, merged[i].Confidence)
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, r)
		}
	}
	return merged
}

func boxesOverlap(a, b scene.Box) bool {
	return a.X < b.X+b.Width && a.X+a.Width > b.X && a.Y < b.Y+b.Height && a.Y+a.Height > b.Y
}

func unionBox(a, b scene.Box) scene.Box {
	x1 := math.Min(a.X, b.X)
	y1 := math.Min(a.Y, b.Y)
	x2 := math.Max(a.X+a.Width, b.X+b.Width)
	y2 := math.Max(a.Y+a.Height, b.Y+b.Height)
	return scene.Box{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}
