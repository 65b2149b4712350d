package adjust

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/svgfit/svgfit/internal/imaging"
	"github.com/svgfit/svgfit/internal/scene"
)

// LightingPolicy computes a lighting proposal from the reference photo and
// the current shape geometry. No single heuristic is canonical here, so the
// policy is an open extension point rather than a fixed algorithm.
type LightingPolicy interface {
	// Name identifies the policy in errors.
	Name() string

	// Adjust proposes new lighting. The second return is false when the
	// policy has no opinion, leaving the current lighting untouched.
	Adjust(ref image.Image, s *scene.Scene) (scene.Lighting, bool, error)
}

// NopLighting never proposes anything, freezing the lighting group.
type NopLighting struct{}

func (NopLighting) Name() string { return "nop" }

func (NopLighting) Adjust(image.Image, *scene.Scene) (scene.Lighting, bool, error) {
	return scene.Lighting{}, false, nil
}

// DefaultBrightnessGrid is the cell count per axis for the default lighting
// heuristic.
const DefaultBrightnessGrid = 8

// BrightnessLighting is the default heuristic: the highlight tracks the
// brightest grid cell inside the shape, and the shadow is derived from the
// mean luminance gradient across the grid.
//
// The shape rectangle is divided into Grid x Grid cells. The highlight lands
// on the center of the brightest cell, with intensity proportional to how far
// that cell rises above the mean. The mean cell-to-cell gradient points
// toward the light, so the shadow offset points the opposite way; the blur
// grows with the spread of gradient magnitudes, so evenly lit shapes get
// crisp shadows and unevenly lit ones get soft shadows.
type BrightnessLighting struct {
	// Grid is the cell count per axis. Values below 3 fall back to
	// DefaultBrightnessGrid.
	Grid int
}

func (*BrightnessLighting) Name() string { return "brightness" }

func (b *BrightnessLighting) Adjust(ref image.Image, s *scene.Scene) (scene.Lighting, bool, error) {
	grid := b.Grid
	if grid < 3 {
		grid = DefaultBrightnessGrid
	}

	shape := image.Rect(
		int(math.Floor(s.Position.X)),
		int(math.Floor(s.Position.Y)),
		int(math.Ceil(s.Position.X+s.Size.Width)),
		int(math.Ceil(s.Position.Y+s.Size.Height)),
	).Intersect(ref.Bounds())
	if shape.Empty() {
		return scene.Lighting{}, false, nil
	}

	lum := make([][]float64, grid)
	valid := make([][]bool, grid)
	for row := range lum {
		lum[row] = make([]float64, grid)
		valid[row] = make([]bool, grid)
	}

	var sum float64
	var count int
	maxLum := -1.0
	var maxCenter scene.Point
	for row := 0; row < grid; row++ {
		for col := 0; col < grid; col++ {
			cell := image.Rect(
				shape.Min.X+col*shape.Dx()/grid,
				shape.Min.Y+row*shape.Dy()/grid,
				shape.Min.X+(col+1)*shape.Dx()/grid,
				shape.Min.Y+(row+1)*shape.Dy()/grid,
			)
			mean, ok := imaging.MeanColor(ref, cell)
			if !ok {
				continue
			}
			l := imaging.Luminance(mean.R, mean.G, mean.B)
			lum[row][col] = l
			valid[row][col] = true
			sum += l
			count++
			if l > maxLum {
				maxLum = l
				maxCenter = scene.Point{
					X: float64(cell.Min.X+cell.Max.X) / 2,
					Y: float64(cell.Min.Y+cell.Max.Y) / 2,
				}
			}
		}
	}
	if count == 0 {
		return scene.Lighting{}, false, nil
	}
	meanLum := sum / float64(count)

	lighting := scene.Lighting{
		HighlightPosition:  maxCenter,
		HighlightIntensity: clamp01((maxLum - meanLum) / 255),
	}

	// Central-difference gradients over interior cells.
	var gxs, gys, mags []float64
	for row := 1; row < grid-1; row++ {
		for col := 1; col < grid-1; col++ {
			if !valid[row][col-1] || !valid[row][col+1] || !valid[row-1][col] || !valid[row+1][col] {
				continue
			}
			gx := lum[row][col+1] - lum[row][col-1]
			gy := lum[row+1][col] - lum[row-1][col]
			gxs = append(gxs, gx)
			gys = append(gys, gy)
			mags = append(mags, math.Hypot(gx, gy))
		}
	}
	if len(gxs) > 0 {
		meanGx := stat.Mean(gxs, nil)
		meanGy := stat.Mean(gys, nil)
		if mag := math.Hypot(meanGx, meanGy); mag > 1e-6 {
			// The gradient points toward the light; the shadow falls away
			// from it.
			length := math.Min(s.Size.Width, s.Size.Height) / 20
			lighting.ShadowOffset = scene.Point{
				X: -meanGx / mag * length,
				Y: -meanGy / mag * length,
			}
		}
		if len(mags) >= 2 {
			spread := stat.StdDev(mags, nil)
			lighting.ShadowBlur = spread / 255 * math.Min(s.Size.Width, s.Size.Height) / 10
		}
	}

	return lighting, true, nil
}

// lightingRule adapts a LightingPolicy into the rule sequence.
type lightingRule struct {
	policy LightingPolicy
}

func (lightingRule) Name() string { return "lighting" }

func (l lightingRule) Apply(sig *Signals, next *scene.Scene) error {
	if sig.Reference == nil || l.policy == nil {
		return nil
	}
	lighting, ok, err := l.policy.Adjust(sig.Reference, next)
	if err != nil {
		return fmt.Errorf("%s policy: %w", l.policy.Name(), err)
	}
	if ok {
		next.Lighting = lighting
	}
	return nil
}
