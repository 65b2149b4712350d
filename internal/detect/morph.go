package detect

// Binary morphology with square structuring elements. Close (dilate then
// erode) seals small gaps inside the product silhouette before contour
// extraction; open (erode then dilate) strips isolated noise pixels left by
// thresholding. Kernel sizes are given as full side lengths; even sizes
// round down to the nearest odd kernel.

// dilate sets every pixel that has at least one set pixel within the kernel
// window. Pixels beyond the image border count as unset.
func dilate(mask [][]bool, width, height, kernel int) [][]bool {
	radius := kernel / 2
	if radius < 1 {
		return mask
	}

	out := make([][]bool, height)
	for y := 0; y < height; y++ {
		out[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			hit := false
			for ky := -radius; ky <= radius && !hit; ky++ {
				for kx := -radius; kx <= radius && !hit; kx++ {
					ny, nx := y+ky, x+kx
					if ny >= 0 && ny < height && nx >= 0 && nx < width && mask[ny][nx] {
						hit = true
					}
				}
			}
			out[y][x] = hit
		}
	}
	return out
}

// erode keeps only pixels whose entire kernel window is set. Pixels beyond
// the image border count as unset, so the mask shrinks away from the edges.
func erode(mask [][]bool, width, height, kernel int) [][]bool {
	radius := kernel / 2
	if radius < 1 {
		return mask
	}

	out := make([][]bool, height)
	for y := 0; y < height; y++ {
		out[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			if !mask[y][x] {
				continue
			}
			keep := true
			for ky := -radius; ky <= radius && keep; ky++ {
				for kx := -radius; kx <= radius && keep; kx++ {
					ny, nx := y+ky, x+kx
					if ny < 0 || ny >= height || nx < 0 || nx >= width || !mask[ny][nx] {
						keep = false
					}
				}
			}
			out[y][x] = keep
		}
	}
	return out
}

// closeMask fills gaps narrower than the kernel.
func closeMask(mask [][]bool, width, height, kernel int) [][]bool {
	return erode(dilate(mask, width, height, kernel), width, height, kernel)
}

// openMask removes specks smaller than the kernel.
func openMask(mask [][]bool, width, height, kernel int) [][]bool {
	return dilate(erode(mask, width, height, kernel), width, height, kernel)
}
