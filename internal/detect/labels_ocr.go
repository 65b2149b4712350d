//go:build cgo && linux

package detect

import (
	"image"
	"image/png"
	"os"

	"github.com/otiai10/gosseract/v2"

	"github.com/svgfit/svgfit/internal/scene"
)

// LabelBackend names the active label detector.
func LabelBackend() string { return "gosseract" }

// detectLabels reads printed text with Tesseract, returning word-level boxes
// with content and confidence in source coordinates. Any failure (missing
// libtesseract, no language data, encode errors) falls back to the
// edge-density heuristic; label detection never fails the pipeline.
func detectLabels(img image.Image, edges [][]bool, width, height int, minConfidence float64) []LabelRegion {
	labels, err := ocrLabels(img, minConfidence)
	if err != nil {
		return textRegions(edges, width, height, minConfidence)
	}
	return labels
}

// ocrLabels runs gosseract over a temporary PNG of the image. Tesseract
// needs a file path, so the frame is written to the system temp directory
// and removed afterwards.
func ocrLabels(img image.Image, minConfidence float64) ([]LabelRegion, error) {
	tmp, err := os.CreateTemp("", "svgfit-labels-*.png")
	if err != nil {
		return nil, err
	}
	path := tmp.Name()
	defer os.Remove(path)

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImage(path); err != nil {
		return nil, err
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, err
	}

	// The encoded PNG is zero-based regardless of the source bounds, so
	// the reported boxes already line up with the pipeline's grid space.
	labels := make([]LabelRegion, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		confidence := float64(box.Confidence) / 100.0
		if confidence < minConfidence {
			continue
		}
		labels = append(labels, LabelRegion{
			Box: scene.Box{
				X:      float64(box.Box.Min.X),
				Y:      float64(box.Box.Min.Y),
				Width:  float64(box.Box.Dx()),
				Height: float64(box.Box.Dy()),
			},
			Text:       box.Word,
			Confidence: confidence,
		})
	}
	return labels, nil
}
