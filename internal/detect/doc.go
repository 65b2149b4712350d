// Package detect locates the main product shape in a photograph and derives
// the initial scene parameters the fitting loop starts from.
//
// The pipeline mirrors classic contour extraction: the image is grayscaled,
// smoothed, binarized with Otsu's threshold, cleaned up with binary
// morphology, and segmented into connected components. The largest component
// that passes area, aspect-ratio, and extent filters becomes the main shape.
// If the mask yields no candidate, a second pass runs the same filters over
// Canny edge components with a relaxed extent bound.
//
// Sub-features (buttons, ports, printed marks) come from Canny edge
// components filtered to a much smaller area band, annotated with extent and
// circularity, and capped at the largest fifty.
//
// All coordinates in a Result are expressed in the padded crop space: the
// main shape's bounding box grown by Options.Padding and clamped to the
// image. The translation back to source coordinates is recorded as the crop
// offset and carried through the scene's provenance.
//
// Label regions (printed text on the product) are reported when available.
// With cgo on Linux the package uses Tesseract word boxes; elsewhere a
// portable edge-density heuristic supplies boxes without text. Label
// detection is best-effort and never fails the pipeline.
package detect
