//go:build !cgo || !linux

package detect

import "image"

// LabelBackend names the active label detector.
func LabelBackend() string { return "edge-density" }

// detectLabels locates likely text regions with the portable edge-density
// heuristic. No text content is recognized on this build; only boxes and
// confidences are reported.
func detectLabels(_ image.Image, edges [][]bool, width, height int, minConfidence float64) []LabelRegion {
	return textRegions(edges, width, height, minConfidence)
}
