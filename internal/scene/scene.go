// Package scene defines the parametric description of a product shape and the
// invariants it must satisfy before it can be rendered.
//
// A Scene is the unit of state for the fitting process: it is created once
// from detector output, then cloned and revised between iterations. Scenes are
// treated as immutable snapshots once handed to a history record; all revision
// happens on a fresh Clone.
package scene

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Point is a position in logical image space. The origin is the top-left
// corner; X grows rightward and Y grows downward.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size holds the shape dimensions in logical units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CornerRadius holds the horizontal and vertical rounding radii of the shape.
type CornerRadius struct {
	RX float64 `json:"rx"`
	RY float64 `json:"ry"`
}

// GradientStop is one color stop of the shape fill gradient. Offset is a
// fraction of the gradient axis in [0, 1]; Color is "#RRGGBB".
type GradientStop struct {
	Offset float64 `json:"offset"`
	Color  string  `json:"color"`
}

// Lighting describes the highlight and shadow treatment applied on top of the
// base gradient fill.
type Lighting struct {
	HighlightPosition  Point   `json:"highlight_position"`
	HighlightIntensity float64 `json:"highlight_intensity"`
	ShadowOffset       Point   `json:"shadow_offset"`
	ShadowBlur         float64 `json:"shadow_blur"`
}

// Box is an axis-aligned rectangle in logical image space.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether the point lies inside the box (right and bottom
// edges exclusive).
func (b Box) Contains(p Point) bool {
	return p.X >= b.X && p.X < b.X+b.Width && p.Y >= b.Y && p.Y < b.Y+b.Height
}

// Provenance carries the detector context a scene was built from. It travels
// with the scene through every iteration but is never modified by the fitting
// process itself.
type Provenance struct {
	// SourceContour is the traced outline of the main shape, in the same
	// coordinate space as the scene (post-crop). Empty when the scene was
	// constructed by hand.
	SourceContour []Point `json:"source_contour,omitempty"`

	// FeatureBoxes are detected sub-feature bounds in creation order.
	FeatureBoxes []Box `json:"feature_boxes,omitempty"`

	// CropOffset is the translation from the full source image to the
	// cropped working space all other coordinates live in.
	CropOffset Point `json:"crop_offset"`
}

// Scene is the full parameter set describing one candidate rendering.
type Scene struct {
	Position      Point          `json:"position"`
	Size          Size           `json:"size"`
	CornerRadius  CornerRadius   `json:"corner_radius"`
	GradientStops []GradientStop `json:"gradient_stops,omitempty"`
	Lighting      Lighting       `json:"lighting"`
	Provenance    Provenance     `json:"provenance"`
}

// InvalidParametersError reports a scene that violates a structural invariant.
// Scenes failing validation are rejected before any rendering is attempted.
type InvalidParametersError struct {
	Field  string
	Reason string
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid parameters: %s: %s", e.Field, e.Reason)
}

// Validate checks the scene invariants:
//   - width and height are strictly positive
//   - corner radii are non-negative and at most half the smaller dimension
//   - gradient stop offsets lie in [0, 1], strictly increasing, with
//     parseable "#RRGGBB" colors
//   - highlight intensity, shadow blur are non-negative
//
// The first violation found is returned as an *InvalidParametersError.
func (s *Scene) Validate() error {
	if s.Size.Width <= 0 {
		return &InvalidParametersError{Field: "size.width", Reason: fmt.Sprintf("must be positive, got %g", s.Size.Width)}
	}
	if s.Size.Height <= 0 {
		return &InvalidParametersError{Field: "size.height", Reason: fmt.Sprintf("must be positive, got %g", s.Size.Height)}
	}
	maxRadius := math.Min(s.Size.Width, s.Size.Height) / 2
	if s.CornerRadius.RX < 0 || s.CornerRadius.RX > maxRadius {
		return &InvalidParametersError{Field: "corner_radius.rx", Reason: fmt.Sprintf("must be in [0, %g], got %g", maxRadius, s.CornerRadius.RX)}
	}
	if s.CornerRadius.RY < 0 || s.CornerRadius.RY > maxRadius {
		return &InvalidParametersError{Field: "corner_radius.ry", Reason: fmt.Sprintf("must be in [0, %g], got %g", maxRadius, s.CornerRadius.RY)}
	}
	prev := math.Inf(-1)
	for i, stop := range s.GradientStops {
		if stop.Offset < 0 || stop.Offset > 1 {
			return &InvalidParametersError{Field: fmt.Sprintf("gradient_stops[%d].offset", i), Reason: fmt.Sprintf("must be in [0, 1], got %g", stop.Offset)}
		}
		if stop.Offset <= prev {
			return &InvalidParametersError{Field: fmt.Sprintf("gradient_stops[%d].offset", i), Reason: fmt.Sprintf("offsets must be strictly increasing, got %g after %g", stop.Offset, prev)}
		}
		if _, err := colorful.Hex(stop.Color); err != nil {
			return &InvalidParametersError{Field: fmt.Sprintf("gradient_stops[%d].color", i), Reason: fmt.Sprintf("not a valid hex color: %q", stop.Color)}
		}
		prev = stop.Offset
	}
	if s.Lighting.HighlightIntensity < 0 {
		return &InvalidParametersError{Field: "lighting.highlight_intensity", Reason: "must be non-negative"}
	}
	if s.Lighting.ShadowBlur < 0 {
		return &InvalidParametersError{Field: "lighting.shadow_blur", Reason: "must be non-negative"}
	}
	return nil
}

// Clone returns a deep copy of the scene. The fitting loop revises clones
// only, so every history snapshot stays valid after later iterations.
func (s *Scene) Clone() *Scene {
	out := *s
	if s.GradientStops != nil {
		out.GradientStops = make([]GradientStop, len(s.GradientStops))
		copy(out.GradientStops, s.GradientStops)
	}
	if s.Provenance.SourceContour != nil {
		out.Provenance.SourceContour = make([]Point, len(s.Provenance.SourceContour))
		copy(out.Provenance.SourceContour, s.Provenance.SourceContour)
	}
	if s.Provenance.FeatureBoxes != nil {
		out.Provenance.FeatureBoxes = make([]Box, len(s.Provenance.FeatureBoxes))
		copy(out.Provenance.FeatureBoxes, s.Provenance.FeatureBoxes)
	}
	return &out
}

// Bounds returns the shape rectangle (position plus size).
func (s *Scene) Bounds() Box {
	return Box{X: s.Position.X, Y: s.Position.Y, Width: s.Size.Width, Height: s.Size.Height}
}

// VerticalAxis reports whether the shape's principal axis runs top to bottom.
// Gradients and color sampling follow the longer dimension.
func (s *Scene) VerticalAxis() bool {
	return s.Size.Height >= s.Size.Width
}

// LoadFile reads a scene from a JSON file.
func LoadFile(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}
	var s Scene
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scene file: %w", err)
	}
	return &s, nil
}

// SaveFile writes the scene to a JSON file with indentation, suitable for
// hand editing.
func (s *Scene) SaveFile(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode scene: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write scene file: %w", err)
	}
	return nil
}
