package detect

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/blur"

	"github.com/svgfit/svgfit/internal/imaging"
	"github.com/svgfit/svgfit/internal/scene"
)

// ErrNoMainShape is returned when neither the threshold mask nor the edge
// fallback yields a component passing the main-shape filters.
var ErrNoMainShape = errors.New("no main shape found in image")

// Options tunes the detection pipeline. The zero value selects the defaults
// listed on each field, so Detect(img, Options{}) is always usable.
type Options struct {
	// BlurRadius is the Gaussian smoothing radius applied before
	// thresholding and edge detection. Default 2.
	BlurRadius float64

	// CloseKernel and OpenKernel are the structuring-element side lengths
	// for the morphological cleanup of the threshold mask. Defaults 11
	// and 3.
	CloseKernel int
	OpenKernel  int

	// MinAreaRatio and MaxAreaRatio bound the main shape's fill area as a
	// fraction of the image area. Defaults 0.05 and 0.80.
	MinAreaRatio float64
	MaxAreaRatio float64

	// MinAspect and MaxAspect bound the main shape's width/height ratio,
	// admitting both upright and sideways products. Defaults 0.2 and 5.0.
	MinAspect float64
	MaxAspect float64

	// MinExtent is the minimum fill-to-bounding-box ratio for the main
	// shape; solid products score near 1. Default 0.5. The edge fallback
	// relaxes this to FallbackExtent, default 0.3.
	MinExtent      float64
	FallbackExtent float64

	// CannyLow and CannyHigh are the hysteresis thresholds for edge
	// detection. Defaults 50 and 150.
	CannyLow  int
	CannyHigh int

	// MinFeatureRatio and MaxFeatureRatio bound sub-feature areas as a
	// fraction of the image area. Defaults 0.0001 and 0.02.
	MinFeatureRatio float64
	MaxFeatureRatio float64

	// MaxFeatures caps the reported sub-features, largest first.
	// Default 50.
	MaxFeatures int

	// MaxCornerRadius caps the estimated corner rounding in pixels.
	// Default 30.
	MaxCornerRadius float64

	// Padding is the margin in pixels added around the main shape when
	// deriving the crop rectangle. Default 10; negative disables padding.
	Padding int

	// GradientSamples is the number of colors sampled along the shape's
	// long axis for the initial gradient. Default 5.
	GradientSamples int

	// SampleWindow is the square region side length for color sampling.
	// Default 5.
	SampleWindow int

	// LabelConfidence is the minimum confidence for reported label
	// regions. Default 0.5.
	LabelConfidence float64

	// SkipLabels disables the label pass entirely.
	SkipLabels bool
}

// DefaultOptions returns the pipeline defaults.
func DefaultOptions() Options {
	return Options{
		BlurRadius:      2,
		CloseKernel:     11,
		OpenKernel:      3,
		MinAreaRatio:    0.05,
		MaxAreaRatio:    0.80,
		MinAspect:       0.2,
		MaxAspect:       5.0,
		MinExtent:       0.5,
		FallbackExtent:  0.3,
		CannyLow:        50,
		CannyHigh:       150,
		MinFeatureRatio: 0.0001,
		MaxFeatureRatio: 0.02,
		MaxFeatures:     50,
		MaxCornerRadius: 30,
		Padding:         10,
		GradientSamples: 5,
		SampleWindow:    5,
		LabelConfidence: 0.5,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BlurRadius <= 0 {
		o.BlurRadius = d.BlurRadius
	}
	if o.CloseKernel <= 0 {
		o.CloseKernel = d.CloseKernel
	}
	if o.OpenKernel <= 0 {
		o.OpenKernel = d.OpenKernel
	}
	if o.MinAreaRatio <= 0 {
		o.MinAreaRatio = d.MinAreaRatio
	}
	if o.MaxAreaRatio <= 0 {
		o.MaxAreaRatio = d.MaxAreaRatio
	}
	if o.MinAspect <= 0 {
		o.MinAspect = d.MinAspect
	}
	if o.MaxAspect <= 0 {
		o.MaxAspect = d.MaxAspect
	}
	if o.MinExtent <= 0 {
		o.MinExtent = d.MinExtent
	}
	if o.FallbackExtent <= 0 {
		o.FallbackExtent = d.FallbackExtent
	}
	if o.CannyLow <= 0 {
		o.CannyLow = d.CannyLow
	}
	if o.CannyHigh <= 0 {
		o.CannyHigh = d.CannyHigh
	}
	if o.MinFeatureRatio <= 0 {
		o.MinFeatureRatio = d.MinFeatureRatio
	}
	if o.MaxFeatureRatio <= 0 {
		o.MaxFeatureRatio = d.MaxFeatureRatio
	}
	if o.MaxFeatures <= 0 {
		o.MaxFeatures = d.MaxFeatures
	}
	if o.MaxCornerRadius <= 0 {
		o.MaxCornerRadius = d.MaxCornerRadius
	}
	if o.Padding == 0 {
		o.Padding = d.Padding
	} else if o.Padding < 0 {
		o.Padding = 0
	}
	if o.GradientSamples <= 0 {
		o.GradientSamples = d.GradientSamples
	}
	if o.SampleWindow <= 0 {
		o.SampleWindow = d.SampleWindow
	}
	if o.LabelConfidence <= 0 {
		o.LabelConfidence = d.LabelConfidence
	}
	return o
}

// Feature is one detected sub-feature: a button, port, or printed mark on
// the product surface.
type Feature struct {
	// Box bounds the feature in padded-crop space.
	Box scene.Box `json:"box"`

	// Area is the enclosed surface of the feature's edge contour.
	Area float64 `json:"area"`

	// AspectRatio is box width over height.
	AspectRatio float64 `json:"aspect_ratio"`

	// Extent is area over box area.
	Extent float64 `json:"extent"`

	// Circularity is 4*pi*area/perimeter^2; near 1 for round features.
	Circularity float64 `json:"circularity"`
}

// Result is the detector output. All geometry except PaddedRect is expressed
// in padded-crop space: the origin sits at the top-left corner of the padded
// rectangle, and CropOffset translates back to source coordinates.
type Result struct {
	// SourceWidth and SourceHeight are the dimensions of the analyzed
	// image.
	SourceWidth  int `json:"source_width"`
	SourceHeight int `json:"source_height"`

	// Width and Height are the padded crop dimensions, which become the
	// render canvas size.
	Width  int `json:"width"`
	Height int `json:"height"`

	// PaddedRect is the crop rectangle in source coordinates: the main
	// shape's bounding box grown by the padding and clamped to the image.
	PaddedRect scene.Box `json:"padded_rect"`

	// CropOffset is the padded rectangle's origin, the translation from
	// crop space back to source space.
	CropOffset scene.Point `json:"crop_offset"`

	// MainBounds is the main shape's bounding box.
	MainBounds scene.Box `json:"main_bounds"`

	// MainContour is the traced outline of the main shape.
	MainContour []scene.Point `json:"main_contour,omitempty"`

	// MainArea, MainAspect, and MainExtent are the filter statistics of
	// the selected component.
	MainArea   float64 `json:"main_area"`
	MainAspect float64 `json:"main_aspect"`
	MainExtent float64 `json:"main_extent"`

	// EdgeFallback reports that the main shape came from the relaxed
	// Canny pass rather than the threshold mask.
	EdgeFallback bool `json:"edge_fallback,omitempty"`

	// CornerRadius is the geometric rounding estimate for the main shape.
	CornerRadius scene.CornerRadius `json:"corner_radius"`

	// Features are the detected sub-features, largest first.
	Features []Feature `json:"features,omitempty"`

	// GradientSeeds are the colors sampled along the shape's long axis,
	// with strictly increasing offsets.
	GradientSeeds []scene.GradientStop `json:"gradient_seeds,omitempty"`

	// Labels are detected printed-text regions, best first.
	Labels []LabelRegion `json:"labels,omitempty"`
}

// InitialScene builds the starting scene for the fitting loop from the
// detector output. The scene is positioned inside the padded crop, carries
// the sampled gradient, and records the contour, features, and crop offset
// as provenance.
func (r *Result) InitialScene() *scene.Scene {
	boxes := make([]scene.Box, len(r.Features))
	for i, f := range r.Features {
		boxes[i] = f.Box
	}

	return &scene.Scene{
		Position:      scene.Point{X: r.MainBounds.X, Y: r.MainBounds.Y},
		Size:          scene.Size{Width: r.MainBounds.Width, Height: r.MainBounds.Height},
		CornerRadius:  r.CornerRadius,
		GradientStops: append([]scene.GradientStop(nil), r.GradientSeeds...),
		Provenance: scene.Provenance{
			SourceContour: append([]scene.Point(nil), r.MainContour...),
			FeatureBoxes:  boxes,
			CropOffset:    r.CropOffset,
		},
	}
}

// OverlayBoxes returns every detected box in source coordinates for a debug
// overlay: the padded crop, the main bounds, the features, and the labels.
func (r *Result) OverlayBoxes() []image.Rectangle {
	boxes := []image.Rectangle{boxToRect(r.PaddedRect)}
	boxes = append(boxes, boxToRect(shiftBox(r.MainBounds, r.CropOffset)))
	for _, f := range r.Features {
		boxes = append(boxes, boxToRect(shiftBox(f.Box, r.CropOffset)))
	}
	for _, l := range r.Labels {
		boxes = append(boxes, boxToRect(shiftBox(l.Box, r.CropOffset)))
	}
	return boxes
}

func boxToRect(b scene.Box) image.Rectangle {
	return image.Rect(int(b.X), int(b.Y), int(b.X+b.Width), int(b.Y+b.Height))
}

func shiftBox(b scene.Box, off scene.Point) scene.Box {
	return scene.Box{X: b.X + off.X, Y: b.Y + off.Y, Width: b.Width, Height: b.Height}
}

// Detect runs the full pipeline over an image: threshold segmentation for
// the main shape, Canny components for sub-features, corner and gradient
// estimation, and the optional label pass.
func Detect(img image.Image, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	bounds := img.Bounds()
	if bounds.Dx() < 1 || bounds.Dy() < 1 {
		return nil, fmt.Errorf("cannot detect in empty image %dx%d", bounds.Dx(), bounds.Dy())
	}

	blurred := blur.Gaussian(img, opts.BlurRadius)
	grid, width, height := luminanceGrid(blurred)
	imageArea := float64(width * height)

	mask := binarize(grid, width, height, otsuThreshold(grid, width, height))
	if countOn(mask)*2 > width*height {
		invertMask(mask)
	}
	mask = closeMask(mask, width, height, opts.CloseKernel)
	mask = openMask(mask, width, height, opts.OpenKernel)

	edges := cannyEdges(grid, width, height, opts.CannyLow, opts.CannyHigh)
	edgeComponents := findComponents(edges, width, height)

	main := selectMain(findComponents(mask, width, height), imageArea, opts.MinExtent, opts)
	fallback := false
	if main == nil {
		main = selectMain(edgeComponents, imageArea, opts.FallbackExtent, opts)
		fallback = true
	}
	if main == nil {
		return nil, ErrNoMainShape
	}

	padded := main.Bounds.Inset(-opts.Padding).Intersect(image.Rect(0, 0, width, height))
	cropOffset := scene.Point{X: float64(padded.Min.X), Y: float64(padded.Min.Y)}

	contour := make([]scene.Point, len(main.Outline))
	for i, p := range main.Outline {
		contour[i] = scene.Point{
			X: float64(p.X - padded.Min.X),
			Y: float64(p.Y - padded.Min.Y),
		}
	}

	res := &Result{
		SourceWidth:  width,
		SourceHeight: height,
		Width:        padded.Dx(),
		Height:       padded.Dy(),
		PaddedRect: scene.Box{
			X:      float64(padded.Min.X),
			Y:      float64(padded.Min.Y),
			Width:  float64(padded.Dx()),
			Height: float64(padded.Dy()),
		},
		CropOffset: cropOffset,
		MainBounds: scene.Box{
			X:      float64(main.Bounds.Min.X - padded.Min.X),
			Y:      float64(main.Bounds.Min.Y - padded.Min.Y),
			Width:  float64(main.Bounds.Dx()),
			Height: float64(main.Bounds.Dy()),
		},
		MainContour:   contour,
		MainArea:      main.Area,
		MainAspect:    main.AspectRatio(),
		MainExtent:    main.Extent(),
		EdgeFallback:  fallback,
		CornerRadius:  cornerEstimate(main.Bounds, opts.MaxCornerRadius),
		Features:      cropFeatures(collectFeatures(edgeComponents, imageArea, opts), padded),
		GradientSeeds: gradientSeeds(img, main.Bounds, opts.GradientSamples, opts.SampleWindow),
	}

	if !opts.SkipLabels {
		res.Labels = cropLabels(detectLabels(img, edges, width, height, opts.LabelConfidence), padded)
	}

	return res, nil
}

// selectMain returns the largest component passing the main-shape filters,
// or nil. Components arrive sorted by area, so the first hit wins.
func selectMain(components []component, imageArea, minExtent float64, opts Options) *component {
	for i := range components {
		c := &components[i]
		if c.Area <= imageArea*opts.MinAreaRatio || c.Area >= imageArea*opts.MaxAreaRatio {
			continue
		}
		aspect := c.AspectRatio()
		if aspect < opts.MinAspect || aspect > opts.MaxAspect {
			continue
		}
		if c.Extent() <= minExtent {
			continue
		}
		return c
	}
	return nil
}

// collectFeatures filters edge components down to plausible sub-features:
// inside the feature area band, with sane extent and aspect ratio. The
// result keeps the component ordering (largest first) capped at the limit,
// in source coordinates.
func collectFeatures(components []component, imageArea float64, opts Options) []Feature {
	minArea := imageArea * opts.MinFeatureRatio
	maxArea := imageArea * opts.MaxFeatureRatio

	features := make([]Feature, 0)
	for i := range components {
		c := &components[i]
		if c.Area <= minArea || c.Area >= maxArea {
			continue
		}
		extent := c.Extent()
		aspect := c.AspectRatio()
		if extent <= 0.01 || extent > 1.0 {
			continue
		}
		if aspect <= 0.01 || aspect >= 100.0 {
			continue
		}

		features = append(features, Feature{
			Box: scene.Box{
				X:      float64(c.Bounds.Min.X),
				Y:      float64(c.Bounds.Min.Y),
				Width:  float64(c.Bounds.Dx()),
				Height: float64(c.Bounds.Dy()),
			},
			Area:        c.Area,
			AspectRatio: aspect,
			Extent:      extent,
			Circularity: c.Circularity(),
		})
		if len(features) == opts.MaxFeatures {
			break
		}
	}
	return features
}

// cropFeatures shifts feature boxes into padded-crop space and drops the
// ones that fall entirely outside the crop.
func cropFeatures(features []Feature, padded image.Rectangle) []Feature {
	kept := make([]Feature, 0, len(features))
	for _, f := range features {
		box, ok := cropBox(f.Box, padded)
		if !ok {
			continue
		}
		f.Box = box
		kept = append(kept, f)
	}
	return kept
}

// cropLabels applies the same shift and filter to label regions.
func cropLabels(labels []LabelRegion, padded image.Rectangle) []LabelRegion {
	kept := make([]LabelRegion, 0, len(labels))
	for _, l := range labels {
		box, ok := cropBox(l.Box, padded)
		if !ok {
			continue
		}
		l.Box = box
		kept = append(kept, l)
	}
	return kept
}

// cropBox translates a source-space box into crop space. The second return
// is false when the box does not intersect the crop.
func cropBox(box scene.Box, padded image.Rectangle) (scene.Box, bool) {
	x := box.X - float64(padded.Min.X)
	y := box.Y - float64(padded.Min.Y)
	if x+box.Width <= 0 || x >= float64(padded.Dx()) {
		return scene.Box{}, false
	}
	if y+box.Height <= 0 || y >= float64(padded.Dy()) {
		return scene.Box{}, false
	}
	box.X = x
	box.Y = y
	return box, true
}

// cornerEstimate derives the rounding radii from the main shape's
// dimensions: a tenth of the width and a twentieth of the height, capped at
// the configured maximum and at half the smaller dimension so the estimate
// always satisfies the scene invariants.
func cornerEstimate(rect image.Rectangle, maxRadius float64) scene.CornerRadius {
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	halfMin := math.Min(w, h) / 2

	rx := math.Min(maxRadius, w/10)
	ry := math.Min(maxRadius, h/20)
	return scene.CornerRadius{
		RX: math.Min(rx, halfMin),
		RY: math.Min(ry, halfMin),
	}
}

// gradientSeeds samples colors at evenly spaced centers along the shape's
// long axis: fraction (i+0.5)/n across the bounding box, on its center
// line. Stop offsets are i/(n-1) so the first and last stop pin the
// gradient ends. Samples that cannot be taken are skipped.
func gradientSeeds(img image.Image, rect image.Rectangle, samples, window int) []scene.GradientStop {
	if samples < 1 {
		samples = 1
	}
	min := img.Bounds().Min

	stops := make([]scene.GradientStop, 0, samples)
	vertical := rect.Dy() >= rect.Dx()
	for i := 0; i < samples; i++ {
		frac := (float64(i) + 0.5) / float64(samples)

		var x, y int
		if vertical {
			x = rect.Min.X + rect.Dx()/2
			y = rect.Min.Y + int(float64(rect.Dy())*frac)
		} else {
			x = rect.Min.X + int(float64(rect.Dx())*frac)
			y = rect.Min.Y + rect.Dy()/2
		}

		sample, err := imaging.SampleRegion(img, x+min.X, y+min.Y, window)
		if err != nil {
			continue
		}

		offset := 0.0
		if samples > 1 {
			offset = float64(i) / float64(samples-1)
		}
		stops = append(stops, scene.GradientStop{Offset: offset, Color: sample.Hex})
	}
	return stops
}
