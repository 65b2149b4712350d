package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"
)

// OverlayMarker is one calibration marker to draw: a cross at (X, Y) labeled
// with the pair ID. Color is an optional hex string; empty falls back to the
// default marker color.
type OverlayMarker struct {
	X     int
	Y     int
	ID    int
	Color string
}

// OverlayOptions selects the annotations to draw on a debug overlay.
type OverlayOptions struct {
	// Boxes are outlined rectangles, typically the detected main contour and
	// feature regions.
	Boxes []image.Rectangle

	// BoxColor is the outline color as hex. Empty defaults to red.
	BoxColor string

	// Markers are calibration points drawn as labeled crosses.
	Markers []OverlayMarker

	// MarkerSize is the cross arm length in pixels. Values below 2 default
	// to 6.
	MarkerSize int
}

// Overlay draws detection boxes and calibration markers onto a copy of an
// image and returns it base64 PNG encoded. The source image is not modified.
//
// Unparseable colors fall back to red rather than failing the overlay.
func Overlay(img image.Image, opts OverlayOptions) (*EncodedImage, error) {
	bounds := img.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	boxColor, err := ParseHexColor(opts.BoxColor)
	if err != nil {
		boxColor = color.RGBA{255, 0, 0, 255}
	}
	for _, box := range opts.Boxes {
		drawRectOutline(result, box, boxColor)
	}

	size := opts.MarkerSize
	if size < 2 {
		size = 6
	}
	labelColor := color.RGBA{255, 255, 255, 255}
	labelBg := color.RGBA{0, 0, 0, 180}
	for _, m := range opts.Markers {
		mc, err := ParseHexColor(m.Color)
		if err != nil {
			mc = color.RGBA{255, 0, 0, 255}
		}
		drawCross(result, m.X, m.Y, size, mc)
		drawDigits(result, m.X+size+2, m.Y-3, strconv.Itoa(m.ID), labelColor, labelBg)
	}

	return Encode(result)
}

// drawRectOutline draws a 1-pixel rectangle outline clipped to the image.
func drawRectOutline(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}

// drawCross draws a plus-shaped marker centered at (x, y).
func drawCross(img *image.RGBA, x, y, size int, c color.RGBA) {
	bounds := img.Bounds()
	for d := -size; d <= size; d++ {
		if px := x + d; px >= bounds.Min.X && px < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
			img.Set(px, y, c)
		}
		if py := y + d; py >= bounds.Min.Y && py < bounds.Max.Y && x >= bounds.Min.X && x < bounds.Max.X {
			img.Set(x, py, c)
		}
	}
}

// drawDigits draws a numeric label at the given position using a tiny 3x5
// pixel font. Non-digit runes advance the cursor without drawing.
func drawDigits(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
	}

	bounds := img.Bounds()
	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			px, py := x+dx, y+dy
			if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
				img.Set(px, py, bg)
			}
		}
	}

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel == '1' {
					px, py := cx+col, y+row
					if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
						img.Set(px, py, fg)
					}
				}
			}
		}
		cx += charWidth
	}
}
