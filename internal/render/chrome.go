package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/url"

	"github.com/chromedp/chromedp"
	"github.com/disintegration/imaging"

	"github.com/svgfit/svgfit/internal/scene"
)

// Chrome renders scenes in headless Chrome over the DevTools protocol. Each
// call runs an isolated browser context; the launch cost buys parity checks
// against a real browser rasterizer.
type Chrome struct {
	canvas Canvas
	flags  []chromedp.ExecAllocatorOption
}

// NewChrome builds a headless-browser renderer for the given canvas.
func NewChrome(c Canvas) (*Chrome, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &Chrome{
		canvas: c,
		flags: append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.NoSandbox,
			chromedp.DisableGPU,
			chromedp.Flag("disable-dev-shm-usage", true),
		),
	}, nil
}

// Canvas returns the configured output surface.
func (c *Chrome) Canvas() Canvas { return c.canvas }

// Render loads the document in a fresh headless tab, screenshots the
// emulated viewport, and crops the decoded image to the canvas bounds.
func (c *Chrome) Render(ctx context.Context, s *scene.Scene) (image.Image, error) {
	doc, err := SVG(c.canvas, s)
	if err != nil {
		return nil, err
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.flags...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	var shot []byte
	err = chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(c.canvas.Width), int64(c.canvas.Height)),
		chromedp.Navigate(pageURL(c.canvas, doc)),
		chromedp.WaitReady("svg", chromedp.ByQuery),
		chromedp.CaptureScreenshot(&shot),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render in chrome: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}

	target := image.Rect(0, 0, c.canvas.Width, c.canvas.Height)
	if !img.Bounds().Eq(target) {
		img = imaging.Crop(img, target)
	}
	return img, nil
}

// pageURL wraps the SVG document in a minimal page and encodes it as a data
// URL, so navigation never touches the filesystem.
func pageURL(c Canvas, doc []byte) string {
	page := fmt.Sprintf(
		"<!DOCTYPE html><html><head><style>body{margin:0;padding:0;width:%dpx;height:%dpx;overflow:hidden}</style></head><body>%s</body></html>",
		c.Width, c.Height, doc)
	return "data:text/html;charset=utf-8," + url.PathEscape(page)
}
