package detect

import "math"

// cannyEdges runs Canny edge detection over a luminance grid and returns a
// binary edge mask.
//
// The grid is expected to be pre-smoothed; the pipeline applies one Gaussian
// blur before both thresholding and edge detection, so no additional blur
// happens here. Steps:
//
//  1. Sobel gradients in X and Y, magnitude and direction per pixel.
//  2. Non-maximum suppression: keep only pixels that are local maxima along
//     their gradient direction, thinning edges to single-pixel width.
//  3. Hysteresis: magnitudes above high survive, magnitudes between low and
//     high survive only next to a strong edge, the rest are dropped.
//
// Thresholds are on the 0-255 luminance scale. The image border is never an
// edge.
func cannyEdges(grid [][]float64, width, height int, low, high int) [][]bool {
	magnitude := make([][]float64, height)
	direction := make([][]float64, height)

	sobelX := [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	for y := 0; y < height; y++ {
		magnitude[y] = make([]float64, width)
		direction[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					py := clampIndex(y+ky, 0, height-1)
					px := clampIndex(x+kx, 0, width-1)
					gx += grid[py][px] * sobelX[ky+1][kx+1]
					gy += grid[py][px] * sobelY[ky+1][kx+1]
				}
			}
			magnitude[y][x] = math.Sqrt(gx*gx + gy*gy)
			direction[y][x] = math.Atan2(gy, gx)
		}
	}

	suppressed := make([][]float64, height)
	for y := 0; y < height; y++ {
		suppressed[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			if y == 0 || y == height-1 || x == 0 || x == width-1 {
				continue
			}

			angle := direction[y][x]
			mag := magnitude[y][x]

			// Compare against the two neighbors along the gradient,
			// picked from the 45-degree sector the angle falls in.
			var n1, n2 float64
			if (angle >= -math.Pi/8 && angle < math.Pi/8) || (angle >= 7*math.Pi/8 || angle < -7*math.Pi/8) {
				n1 = magnitude[y][x-1]
				n2 = magnitude[y][x+1]
			} else if (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8) {
				n1 = magnitude[y-1][x+1]
				n2 = magnitude[y+1][x-1]
			} else if (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8) {
				n1 = magnitude[y-1][x]
				n2 = magnitude[y+1][x]
			} else {
				n1 = magnitude[y-1][x-1]
				n2 = magnitude[y+1][x+1]
			}

			if mag >= n1 && mag >= n2 {
				suppressed[y][x] = mag
			}
		}
	}

	edges := make([][]bool, height)
	lowThresh := float64(low)
	highThresh := float64(high)
	for y := 0; y < height; y++ {
		edges[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			val := suppressed[y][x]
			if val >= highThresh {
				edges[y][x] = true
				continue
			}
			if val < lowThresh {
				continue
			}
			for ky := -1; ky <= 1 && !edges[y][x]; ky++ {
				for kx := -1; kx <= 1 && !edges[y][x]; kx++ {
					py := clampIndex(y+ky, 0, height-1)
					px := clampIndex(x+kx, 0, width-1)
					if suppressed[py][px] >= highThresh {
						edges[y][x] = true
					}
				}
			}
		}
	}

	return edges
}

// clampIndex constrains an index to [lo, hi].
func clampIndex(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
