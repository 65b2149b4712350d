// Package imaging provides the shared image utilities for the fitting
// pipeline.
//
// This package implements the primitives the rest of the system composes:
// cached image loading, windowed color sampling, grayscale conversion,
// cropping and resizing, and debug overlays for detected regions and
// calibration markers.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with the origin at the top-left corner;
// X grows rightward and Y grows downward. Region arguments follow the
// stdlib image convention: (x1,y1) inclusive, (x2,y2) exclusive.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. Everything else is stateless and
// may run concurrently on different images.
//
// # Error Handling
//
// Operations reject sample centers outside the image, inverted or empty
// regions, and undecodable files with descriptive errors rather than
// clamping silently; only SampleRegion clamps, because the window around a
// valid center may legitimately cross the border.
package imaging
