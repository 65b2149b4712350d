// Package similarity scores how closely a candidate rendering matches a
// reference photo.
//
// The evaluator is a pure function over two same-size raster images. It
// computes four complementary metrics and blends three of them into a single
// composite in [0, 1]:
//
//   - MSE: mean squared per-pixel difference across R, G and B. Unbounded,
//     so it is reported for diagnostics but excluded from the composite.
//   - PSNR: peak signal-to-noise ratio, normalized by clamping the raw dB
//     value to a fixed ceiling (default 40 dB maps to 1.0).
//   - Histogram: Pearson correlation of the per-channel 256-bin color
//     histograms, guarding against global color drift.
//   - Template: normalized cross-correlation of the grayscale images treated
//     as one template/search pair, guarding against layout drift.
//
// Composite: overall = 0.4*psnr_norm + 0.3*histogram + 0.3*template.
//
// # Degenerate Inputs
//
// Pearson correlation is undefined for zero-variance input. Flat images are
// common here (a renderer that produced a solid fill, a blank reference), so
// the package pins those cases down: two constant images correlate at 1 when
// their means agree and -1 otherwise; a constant image against a varying one
// scores 0. Pixel-identical images short-circuit every metric to its maximum,
// making the perfect score an exact 1.0.
//
// # Error Handling
//
// Dimension disagreement and zero-area input abort the comparison with
// ErrDimensionMismatch and ErrEmptyImage. A comparison never degrades into a
// default score; a silently wrong score would corrupt the convergence
// decision that consumes it.
package similarity
