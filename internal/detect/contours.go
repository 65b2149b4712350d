package detect

import (
	"image"
	"math"
	"sort"
)

// minComponentPixels is the noise floor for connected components. Anything
// smaller is thresholding residue, not a shape.
const minComponentPixels = 10

// component is one 8-connected region of set mask pixels.
type component struct {
	// Bounds is the tight bounding box in mask coordinates, half-open on
	// the right and bottom edges.
	Bounds image.Rectangle

	// Outline holds the pixels with at least one unset 4-neighbor, in
	// visit order rather than a perimeter walk.
	Outline []image.Point

	// Pixels is the number of set pixels in the region.
	Pixels int

	// Area is the row-span fill: for each row the distance between the
	// leftmost and rightmost pixel, summed. For a filled convex region
	// this equals the pixel count; for a thin closed outline it
	// approximates the enclosed surface the way a polygon area would.
	Area float64
}

// AspectRatio is the bounding-box width over height.
func (c *component) AspectRatio() float64 {
	h := c.Bounds.Dy()
	if h == 0 {
		return 0
	}
	return float64(c.Bounds.Dx()) / float64(h)
}

// Extent is the fill area over the bounding-box area.
func (c *component) Extent() float64 {
	rectArea := c.Bounds.Dx() * c.Bounds.Dy()
	if rectArea == 0 {
		return 0
	}
	return c.Area / float64(rectArea)
}

// Perimeter approximates the boundary length as the outline pixel count.
func (c *component) Perimeter() float64 {
	return float64(len(c.Outline))
}

// Circularity is 4*pi*area/perimeter^2: near 1 for compact round shapes,
// dropping toward 0 for elongated or ragged ones. The discrete perimeter
// makes this an estimate, not an exact ratio.
func (c *component) Circularity() float64 {
	p := c.Perimeter()
	if p == 0 {
		return 0
	}
	return 4 * math.Pi * c.Area / (p * p)
}

// rowSpan tracks the horizontal extent of a component within one row.
type rowSpan struct {
	min, max int
}

// findComponents segments a binary mask into 8-connected components, largest
// area first. Components below the noise floor are dropped.
func findComponents(mask [][]bool, width, height int) []component {
	visited := make([][]bool, height)
	for y := 0; y < height; y++ {
		visited[y] = make([]bool, width)
	}

	components := make([]component, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if mask[y][x] && !visited[y][x] {
				c := traceComponent(mask, visited, x, y, width, height)
				if c.Pixels >= minComponentPixels {
					components = append(components, c)
				}
			}
		}
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i].Area > components[j].Area
	})
	return components
}

// traceComponent flood-fills one component from a starting pixel. The fill
// is iterative with an explicit stack so deep regions cannot overflow the
// call stack, and uses 8-connectivity to match the segmentation the rest of
// the pipeline assumes.
func traceComponent(mask, visited [][]bool, startX, startY, width, height int) component {
	spans := make(map[int]rowSpan)
	minX, minY := startX, startY
	maxX, maxY := startX, startY
	pixels := 0
	outline := make([]image.Point, 0)

	stack := []image.Point{{X: startX, Y: startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !mask[p.Y][p.X] {
			continue
		}
		visited[p.Y][p.X] = true
		pixels++

		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}

		span, ok := spans[p.Y]
		if !ok {
			span = rowSpan{min: p.X, max: p.X}
		} else {
			if p.X < span.min {
				span.min = p.X
			}
			if p.X > span.max {
				span.max = p.X
			}
		}
		spans[p.Y] = span

		if isBoundary(mask, p.X, p.Y, width, height) {
			outline = append(outline, p)
		}

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, image.Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}

	area := 0.0
	for _, span := range spans {
		area += float64(span.max - span.min + 1)
	}

	return component{
		Bounds:  image.Rect(minX, minY, maxX+1, maxY+1),
		Outline: outline,
		Pixels:  pixels,
		Area:    area,
	}
}

// isBoundary reports whether a set pixel touches the region edge: any
// 4-neighbor is unset or outside the image.
func isBoundary(mask [][]bool, x, y, width, height int) bool {
	if x == 0 || y == 0 || x == width-1 || y == height-1 {
		return true
	}
	return !mask[y][x-1] || !mask[y][x+1] || !mask[y-1][x] || !mask[y+1][x]
}
