package detect

import (
	"image"

	"github.com/svgfit/svgfit/internal/imaging"
)

// luminanceGrid converts an image to a row-major grid of BT.601 luminance
// values on the 0-255 scale. The grid is indexed [y][x] with the origin at
// the image's top-left corner regardless of its Bounds offset.
func luminanceGrid(img image.Image) ([][]float64, int, int) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	grid := make([][]float64, height)
	for y := 0; y < height; y++ {
		grid[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			grid[y][x] = imaging.Luminance(uint8(r>>8), uint8(g>>8), uint8(b>>8))
		}
	}
	return grid, width, height
}

// otsuThreshold computes the global binarization threshold that maximizes
// the between-class variance of the 256-bin luminance histogram.
//
// The returned value separates pixels into background (<= threshold) and
// foreground (> threshold). For a bimodal histogram this lands between the
// two peaks; for a flat or single-valued image it degenerates gracefully to
// the lone populated bin.
func otsuThreshold(grid [][]float64, width, height int) float64 {
	var hist [256]int
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := int(grid[y][x])
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			hist[v]++
		}
	}

	total := width * height
	var sum float64
	for i, count := range hist {
		sum += float64(i) * float64(count)
	}

	var sumBackground float64
	var weightBackground int
	bestThreshold := 0
	bestVariance := -1.0

	for t := 0; t < 256; t++ {
		weightBackground += hist[t]
		if weightBackground == 0 {
			continue
		}
		weightForeground := total - weightBackground
		if weightForeground == 0 {
			break
		}

		sumBackground += float64(t) * float64(hist[t])
		meanBackground := sumBackground / float64(weightBackground)
		meanForeground := (sum - sumBackground) / float64(weightForeground)

		diff := meanBackground - meanForeground
		variance := float64(weightBackground) * float64(weightForeground) * diff * diff
		if variance > bestVariance {
			bestVariance = variance
			bestThreshold = t
		}
	}

	return float64(bestThreshold)
}

// binarize builds a foreground mask marking pixels brighter than the
// threshold.
func binarize(grid [][]float64, width, height int, threshold float64) [][]bool {
	mask := make([][]bool, height)
	for y := 0; y < height; y++ {
		mask[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			mask[y][x] = grid[y][x] > threshold
		}
	}
	return mask
}

// countOn returns the number of set pixels in a mask.
func countOn(mask [][]bool) int {
	count := 0
	for _, row := range mask {
		for _, on := range row {
			if on {
				count++
			}
		}
	}
	return count
}

// invertMask flips every pixel in place. The pipeline inverts the Otsu mask
// when more than half the pixels land in the foreground, which means the
// threshold captured a bright background rather than the product.
func invertMask(mask [][]bool) {
	for y := range mask {
		for x := range mask[y] {
			mask[y][x] = !mask[y][x]
		}
	}
}
