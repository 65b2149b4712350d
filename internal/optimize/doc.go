// Package optimize drives the render, score, adjust cycle that fits a scene
// to a reference photo.
//
// One fitting run is strictly sequential: every iteration renders the current
// scene, scores the result against the reference, and either stops or asks
// the adjustment strategy for a revised scene. The loop is bounded two ways,
// by a similarity threshold (stop as soon as the composite score reaches it)
// and by an iteration budget (stop regardless, reporting the best scene seen).
//
// # States
//
// A run moves from running to exactly one of two terminal states:
//
//   - converged: the composite score reached the threshold
//   - exhausted: the iteration budget ran out first
//
// Both produce the same result shape; the only observable difference is
// whether the best similarity clears the threshold. Structural failures, a
// renderer or evaluator error, abort the run instead: Run returns the error
// alongside a result that still carries the history and best scene recorded
// up to that point.
//
// # Best Tracking
//
// The best scene is tracked independently of the last iteration. A later,
// worse candidate never overwrites an earlier better one, so the reported
// best similarity always equals the maximum across the history.
//
// # Concurrency
//
// A Loop holds no per-run state, so independent runs may call Run (or
// RunBatch) concurrently. Within a run there is never more than one renderer
// call in flight, and each adjustment step reads a fresh, consistent
// calibration snapshot.
package optimize
