// Package adjust proposes revised scene parameters between fitting
// iterations.
//
// The composite strategy applies one rule per parameter group. Each rule reads
// only the signal relevant to its group (calibration offsets for position,
// provenance geometry for size and corners, reference pixels for gradients and
// lighting) and leaves every other field untouched, so rules compose without
// ordering surprises beyond the fixed sequence below.
//
// # Rule Order
//
// Rules run in a fixed order: size, corner radius, position, gradient stops,
// lighting. Size runs first so the corner rule clamps radii against the
// dimensions the next render will actually use; gradient and lighting run last
// so their sampling follows the updated geometry.
//
// # Extension
//
// The rule set and the lighting heuristic are both replaceable. Custom rules
// implement the Rule interface and are installed with WithRules; alternative
// lighting heuristics implement LightingPolicy and are installed with
// WithLighting. Any rule must return a scene that still satisfies the
// invariants in package scene.
//
// # Stability
//
// Rules prefer refinement over jumps: the corner rule picks the candidate
// radius closest to the current one, and gradient de-duplication keeps the
// stop nearest the preceding color when offsets collide. Re-applying the
// strategy to unchanged inputs yields an unchanged scene.
package adjust
