// Package render turns scenes into SVG documents and raster images.
//
// The single source of truth is the SVG builder: one scene on one canvas
// always produces byte-identical markup, so everything downstream of it is
// reproducible. Two renderers rasterize that markup:
//
//   - Raster draws with a pure Go SVG engine. It needs no external
//     processes, is fully deterministic, and is the default for fitting
//     runs.
//   - Chrome loads the document in a headless browser over the DevTools
//     protocol and screenshots the viewport. It exists for parity checks
//     against a real browser rasterizer and costs a browser launch per call.
//
// # Document Structure
//
// The builder emits a fixed-size viewport with a solid background, up to
// three stacked translucent rectangles approximating the drop shadow, the
// main rounded rectangle filled by a linear gradient along the shape's long
// axis, and an optional radial highlight. Filters are never used: the pure
// Go engine does not implement them, and both backends must rasterize the
// same primitives.
//
// Scenes are validated before any markup is produced, so a malformed
// parameter vector surfaces as *scene.InvalidParametersError from either
// renderer without side effects.
package render
