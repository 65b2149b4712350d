package optimize

import (
	"context"
	"image"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/svgfit/svgfit/internal/scene"
)

// Job is one independent fitting run within a batch.
type Job struct {
	// ID labels the run; when empty a fresh UUID is assigned.
	ID string

	// Source names where the reference came from, for reporting.
	Source string

	Reference image.Image
	Initial   *scene.Scene

	// Renderer overrides the loop's renderer for this job. References of
	// different sizes need a canvas per job; nil keeps the shared renderer.
	Renderer Renderer
}

// BatchResult pairs a job with its outcome. Err is nil for runs that
// terminated through the state machine; Error mirrors it for serialization.
type BatchResult struct {
	RunID  string  `json:"run_id"`
	Source string  `json:"source,omitempty"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
	Err    error   `json:"-"`
}

// RunBatch executes independent fitting runs concurrently, at most workers at
// a time (GOMAXPROCS when workers is not positive). Each run owns its scene,
// history, and calibration snapshot; a failing run never cancels its
// siblings. Results are returned in job order.
func RunBatch(ctx context.Context, l *Loop, jobs []Job, workers int) []BatchResult {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]BatchResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(workers)

	for i, job := range jobs {
		g.Go(func() error {
			id := job.ID
			if id == "" {
				id = uuid.NewString()
			}
			runner := l
			if job.Renderer != nil {
				derived := *l
				derived.renderer = job.Renderer
				runner = &derived
			}
			res, err := runner.Run(ctx, job.Reference, job.Initial)
			results[i] = BatchResult{RunID: id, Source: job.Source, Result: res, Err: err}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}

	// Worker closures never return errors; Wait only serves as the barrier.
	_ = g.Wait()
	return results
}
