package optimize

import (
	"fmt"

	"github.com/svgfit/svgfit/internal/scene"
	"github.com/svgfit/svgfit/internal/similarity"
)

// State is the lifecycle phase of a fitting run.
type State string

const (
	// StateRunning marks a run still in progress; a returned result in this
	// state was aborted by a structural failure.
	StateRunning State = "running"

	// StateConverged marks a run whose best similarity reached the threshold.
	StateConverged State = "converged"

	// StateExhausted marks a run that spent its iteration budget without
	// converging.
	StateExhausted State = "exhausted"
)

// HistoryRecord is one iteration's snapshot: the scene that was rendered, its
// composite similarity, and the full metric breakdown.
type HistoryRecord struct {
	Iteration  int               `json:"iteration"`
	Params     *scene.Scene      `json:"params"`
	Similarity float64           `json:"similarity"`
	Breakdown  similarity.Result `json:"breakdown"`
}

// Result is the outcome of one fitting run. History is append-only and
// ordered by iteration; index 0 holds the initial, pre-adjustment evaluation.
type Result struct {
	// BestParams is the scene that achieved BestSimilarity. It is not
	// necessarily the last iteration's scene.
	BestParams *scene.Scene `json:"best_params"`

	// BestSimilarity is the maximum similarity across History.
	BestSimilarity float64 `json:"best_similarity"`

	History    []HistoryRecord `json:"history"`
	State      State           `json:"state"`
	Iterations int             `json:"iterations"`
}

// Converged reports whether the run reached its similarity threshold.
func (r *Result) Converged() bool {
	return r.State == StateConverged
}

// RenderFailure reports a renderer that could not produce a candidate image,
// including a per-call timeout expiry. It carries the offending iteration and
// a snapshot of the scene that failed to render; the accompanying Result
// still holds the best scene found before the failure.
type RenderFailure struct {
	Iteration int
	Params    *scene.Scene
	Err       error
}

func (e *RenderFailure) Error() string {
	return fmt.Sprintf("render failed at iteration %d: %v", e.Iteration, e.Err)
}

func (e *RenderFailure) Unwrap() error {
	return e.Err
}
