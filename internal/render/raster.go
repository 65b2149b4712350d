package render

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/svgfit/svgfit/internal/scene"
)

// Backend names accepted by New.
const (
	BackendRaster = "svg"
	BackendChrome = "chrome"
)

// New returns the renderer for a backend name. An empty name selects the
// pure Go raster backend.
func New(backend string, c Canvas) (Renderer, error) {
	switch backend {
	case "", BackendRaster:
		return NewRaster(c)
	case BackendChrome:
		return NewChrome(c)
	default:
		return nil, fmt.Errorf("unknown render backend %q", backend)
	}
}

// Renderer matches the contract the fitting loop consumes.
type Renderer interface {
	Render(ctx context.Context, s *scene.Scene) (image.Image, error)
}

// Raster rasterizes scenes with a pure Go SVG engine. It needs no external
// processes and identical scenes produce identical pixels.
type Raster struct {
	canvas Canvas
}

// NewRaster builds the default renderer for the given canvas.
func NewRaster(c Canvas) (*Raster, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &Raster{canvas: c}, nil
}

// Canvas returns the configured output surface.
func (r *Raster) Canvas() Canvas { return r.canvas }

// Render draws the scene onto a fresh RGBA canvas.
func (r *Raster) Render(ctx context.Context, s *scene.Scene) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := SVG(r.canvas, s)
	if err != nil {
		return nil, err
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse svg document: %w", err)
	}

	w, h := r.canvas.Width, r.canvas.Height
	icon.SetTarget(0, 0, float64(w), float64(h))

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, out, out.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return out, nil
}
