package render

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/svgfit/svgfit/internal/scene"
)

// Canvas fixes the output surface: pixel dimensions plus the background fill
// painted behind the shape.
type Canvas struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background string `json:"background,omitempty"`
}

// DefaultBackground fills canvases that carry no explicit background color.
const DefaultBackground = "#FFFFFF"

func (c Canvas) validate() error {
	if c.Width < 1 || c.Height < 1 {
		return fmt.Errorf("canvas must have positive dimensions, got %dx%d", c.Width, c.Height)
	}
	return nil
}

func (c Canvas) background() string {
	if c.Background == "" {
		return DefaultBackground
	}
	return c.Background
}

// defaultBodyFill is used when a scene carries no gradient stops at all.
const defaultBodyFill = "#333333"

// Three stacked rects at 0.13 opacity stand in for a blurred black shadow
// at 0.4; neither rasterizer needs filter support this way.
const (
	shadowLayers       = 3
	shadowLayerOpacity = 0.13
)

// SVG builds the deterministic SVG document for a scene on a canvas. The
// scene is validated first, so malformed parameters are rejected with
// *scene.InvalidParametersError before any markup exists.
func SVG(c Canvas, s *scene.Scene) ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "<svg width=\"%d\" height=\"%d\" viewBox=\"0 0 %d %d\" xmlns=\"http://www.w3.org/2000/svg\">\n",
		c.Width, c.Height, c.Width, c.Height)

	b.WriteString("  <defs>\n")
	writeBodyGradient(&b, s)
	writeHighlightGradient(&b, s.Lighting.HighlightIntensity)
	b.WriteString("  </defs>\n")

	fmt.Fprintf(&b, "  <rect x=\"0\" y=\"0\" width=\"%d\" height=\"%d\" fill=\"%s\"/>\n",
		c.Width, c.Height, c.background())

	writeShadow(&b, s)
	writeBody(&b, s)
	writeHighlight(&b, s)

	b.WriteString("</svg>\n")
	return b.Bytes(), nil
}

// writeBodyGradient emits the main fill gradient along the shape's long
// axis. Fewer than two stops render as a solid fill instead.
func writeBodyGradient(b *bytes.Buffer, s *scene.Scene) {
	if len(s.GradientStops) < 2 {
		return
	}

	x2, y2 := "100%", "0%"
	if s.VerticalAxis() {
		x2, y2 = "0%", "100%"
	}
	fmt.Fprintf(b, "    <linearGradient id=\"bodyGradient\" x1=\"0%%\" y1=\"0%%\" x2=\"%s\" y2=\"%s\">\n", x2, y2)
	for _, stop := range s.GradientStops {
		fmt.Fprintf(b, "      <stop offset=\"%s%%\" stop-color=\"%s\" stop-opacity=\"1\"/>\n",
			num(stop.Offset*100), stop.Color)
	}
	b.WriteString("    </linearGradient>\n")
}

// writeHighlightGradient emits the radial falloff for the highlight spot:
// translucent white at the center fading to nothing at the rim.
func writeHighlightGradient(b *bytes.Buffer, intensity float64) {
	if intensity <= 0 {
		return
	}
	peak := math.Min(intensity, 1) * 0.8
	b.WriteString("    <radialGradient id=\"highlightGradient\" cx=\"50%\" cy=\"50%\" r=\"50%\">\n")
	fmt.Fprintf(b, "      <stop offset=\"0%%\" stop-color=\"#ffffff\" stop-opacity=\"%s\"/>\n", num(peak))
	b.WriteString("      <stop offset=\"100%\" stop-color=\"#ffffff\" stop-opacity=\"0\"/>\n")
	b.WriteString("    </radialGradient>\n")
}

// writeShadow draws the stacked shadow rects, widest first so the layers
// darken toward the core. Zero blur with a zero offset means no shadow.
func writeShadow(b *bytes.Buffer, s *scene.Scene) {
	l := s.Lighting
	if l.ShadowBlur <= 0 && l.ShadowOffset.X == 0 && l.ShadowOffset.Y == 0 {
		return
	}

	for i := shadowLayers; i >= 1; i-- {
		spread := l.ShadowBlur * float64(i) / shadowLayers
		fmt.Fprintf(b, "  <rect x=\"%s\" y=\"%s\" width=\"%s\" height=\"%s\" rx=\"%s\" ry=\"%s\" fill=\"#000000\" fill-opacity=\"%s\"/>\n",
			num(s.Position.X+l.ShadowOffset.X-spread),
			num(s.Position.Y+l.ShadowOffset.Y-spread),
			num(s.Size.Width+2*spread),
			num(s.Size.Height+2*spread),
			num(s.CornerRadius.RX+spread),
			num(s.CornerRadius.RY+spread),
			num(shadowLayerOpacity))
	}
}

// writeBody draws the main rounded rectangle.
func writeBody(b *bytes.Buffer, s *scene.Scene) {
	fill := defaultBodyFill
	switch len(s.GradientStops) {
	case 0:
	case 1:
		fill = s.GradientStops[0].Color
	default:
		fill = "url(#bodyGradient)"
	}

	fmt.Fprintf(b, "  <rect x=\"%s\" y=\"%s\" width=\"%s\" height=\"%s\" rx=\"%s\" ry=\"%s\" fill=\"%s\" stroke=\"#0a0a0a\" stroke-width=\"2\"/>\n",
		num(s.Position.X), num(s.Position.Y),
		num(s.Size.Width), num(s.Size.Height),
		num(s.CornerRadius.RX), num(s.CornerRadius.RY),
		fill)
}

// writeHighlight draws the highlight spot over the body: an ellipse at the
// highlight position, sized against the shape so the falloff stays inside
// the glossy region.
func writeHighlight(b *bytes.Buffer, s *scene.Scene) {
	l := s.Lighting
	if l.HighlightIntensity <= 0 {
		return
	}

	fmt.Fprintf(b, "  <ellipse cx=\"%s\" cy=\"%s\" rx=\"%s\" ry=\"%s\" fill=\"url(#highlightGradient)\"/>\n",
		num(l.HighlightPosition.X),
		num(l.HighlightPosition.Y),
		num(s.Size.Width*0.4),
		num(s.Size.Height*0.15))
}

// num formats a coordinate rounded to two decimals, with no trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
