package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
)

// RGBColor represents an RGB color with 8-bit components.
//
// Each component ranges from 0 to 255, where 0 is no intensity and 255 is
// full intensity.
type RGBColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
}

// ColorSample is the mean color of a small sampling window, in the formats
// the adjustment rules and the MCP tools consume.
type ColorSample struct {
	Hex       string   `json:"hex"`       // Hex format "#RRGGBB"
	RGB       RGBColor `json:"rgb"`       // RGB components
	Luminance float64  `json:"luminance"` // BT.601 luminance (0-255)
}

// SampleRegion extracts the mean color of a size x size window centered at
// (x, y).
//
// Parameters:
//   - img: The source image to sample from.
//   - x: X coordinate of the window center (0-based, 0 = leftmost pixel).
//   - y: Y coordinate of the window center (0-based, 0 = topmost pixel).
//   - size: Window edge length in pixels. Values below 1 are treated as 1.
//
// Returns:
//   - *ColorSample: The mean color over the window.
//   - error: Non-nil if the center lies outside the image bounds.
//
// # Window Clamping
//
// The window is clamped to the image bounds, so sampling near an edge or
// corner averages only the pixels that exist. The center itself must be a
// valid pixel.
//
// # Color Conversion
//
// Pixels are read through the image's native color model and reduced to 8-bit
// components. For 16-bit images, values are scaled down by right-shifting 8
// bits.
func SampleRegion(img image.Image, x, y, size int) (*ColorSample, error) {
	bounds := img.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
		return nil, fmt.Errorf("coordinates (%d,%d) outside image bounds", x, y)
	}
	if size < 1 {
		size = 1
	}

	half := size / 2
	var sumR, sumG, sumB, n uint64
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			px := clampInt(x+dx, bounds.Min.X, bounds.Max.X-1)
			py := clampInt(y+dy, bounds.Min.Y, bounds.Max.Y-1)
			r, g, b, _ := img.At(px, py).RGBA()
			sumR += uint64(r >> 8)
			sumG += uint64(g >> 8)
			sumB += uint64(b >> 8)
			n++
		}
	}

	rgb := RGBColor{
		R: uint8(sumR / n),
		G: uint8(sumG / n),
		B: uint8(sumB / n),
	}
	return &ColorSample{
		Hex:       FormatHex(rgb),
		RGB:       rgb,
		Luminance: Luminance(rgb.R, rgb.G, rgb.B),
	}, nil
}

// SamplePoint extracts the color of a single pixel. It is equivalent to
// SampleRegion with a window size of 1.
func SamplePoint(img image.Image, x, y int) (*ColorSample, error) {
	return SampleRegion(img, x, y, 1)
}

// MeanColor computes the mean color over a rectangular region. The region is
// intersected with the image bounds; the second return is false when the
// intersection is empty.
func MeanColor(img image.Image, rect image.Rectangle) (RGBColor, bool) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return RGBColor{}, false
	}

	var sumR, sumG, sumB, n uint64
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			sumR += uint64(r >> 8)
			sumG += uint64(g >> 8)
			sumB += uint64(b >> 8)
			n++
		}
	}
	return RGBColor{
		R: uint8(sumR / n),
		G: uint8(sumG / n),
		B: uint8(sumB / n),
	}, true
}

// Luminance computes the ITU-R BT.601 luminance of 8-bit RGB components,
// returned on the 0-255 scale.
func Luminance(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// Grayscale converts an image to 8-bit grayscale using BT.601 weights. The
// output shares the input's bounds.
func Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			lum := Luminance(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			gray.SetGray(x, y, color.Gray{Y: uint8(lum + 0.5)})
		}
	}
	return gray
}

// FormatHex renders an RGBColor in "#RRGGBB" form.
func FormatHex(c RGBColor) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// ParseHexColor parses a hex color string like "#FF0000" or "#FF000080".
// The leading '#' is optional; 6-digit colors are fully opaque.
func ParseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}

// clampInt constrains an integer value to the range [min, max].
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
