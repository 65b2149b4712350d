package optimize

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/svgfit/svgfit/internal/calibration"
	"github.com/svgfit/svgfit/internal/scene"
	"github.com/svgfit/svgfit/internal/similarity"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gradientImage produces a deterministic non-uniform test image.
func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(50 + 150*x/w),
				G: uint8(80 + 100*y/h),
				B: 90,
				A: 255,
			})
		}
	}
	return img
}

func blackImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{A: 255})
		}
	}
	return img
}

func testScene(w, h float64) *scene.Scene {
	return &scene.Scene{
		Size: scene.Size{Width: w, Height: h},
		GradientStops: []scene.GradientStop{
			{Offset: 0, Color: "#404040"},
			{Offset: 1, Color: "#808080"},
		},
	}
}

// stubRenderer replays a fixed sequence of outcomes, one per call.
type stubRenderer struct {
	frames []image.Image
	errs   []error
	calls  int
}

func (r *stubRenderer) Render(ctx context.Context, _ *scene.Scene) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i := r.calls
	r.calls++
	if i >= len(r.frames) {
		i = len(r.frames) - 1
	}
	if r.errs != nil && r.errs[i] != nil {
		return nil, r.errs[i]
	}
	return r.frames[i], nil
}

// blockingRenderer waits for ctx cancellation and reports its error.
type blockingRenderer struct{}

func (blockingRenderer) Render(ctx context.Context, _ *scene.Scene) (image.Image, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type strategyFunc func(*scene.Scene, image.Image, *similarity.Result, *calibration.Snapshot) (*scene.Scene, error)

func (f strategyFunc) Next(c *scene.Scene, ref image.Image, ev *similarity.Result, snap *calibration.Snapshot) (*scene.Scene, error) {
	return f(c, ref, ev, snap)
}

func TestConvergesImmediatelyWhenRenderMatchesReference(t *testing.T) {
	ref := gradientImage(262, 1000)
	loop, err := New(&stubRenderer{frames: []image.Image{ref}}, nil, DefaultConfig())
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), ref, testScene(262, 1000))
	require.NoError(t, err)

	assert.Equal(t, StateConverged, res.State)
	assert.True(t, res.Converged())
	require.Len(t, res.History, 1)
	assert.Equal(t, 0, res.History[0].Iteration)
	assert.Equal(t, 1.0, res.BestSimilarity)
	assert.Equal(t, 1, res.Iterations)
	require.NotNil(t, res.BestParams)
	assert.Equal(t, 262.0, res.BestParams.Size.Width)
}

func TestExhaustsBudgetAgainstHopelessRenderer(t *testing.T) {
	ref := gradientImage(64, 48)
	black := blackImage(64, 48)
	cfg := DefaultConfig()
	loop, err := New(&stubRenderer{frames: []image.Image{black}}, nil, cfg)
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), ref, testScene(64, 48))
	require.NoError(t, err)

	assert.Equal(t, StateExhausted, res.State)
	assert.False(t, res.Converged())
	require.Len(t, res.History, cfg.MaxIterations)
	assert.Equal(t, cfg.MaxIterations, res.Iterations)

	// Every iteration rendered the same hopeless image, so the best equals
	// the constant low score of the first.
	assert.Less(t, res.BestSimilarity, cfg.SimilarityThreshold)
	for _, rec := range res.History {
		assert.Equal(t, res.History[0].Similarity, rec.Similarity)
	}
	assert.Equal(t, res.History[0].Similarity, res.BestSimilarity)
}

func TestBestTracksMaximumAcrossRegressions(t *testing.T) {
	ref := gradientImage(40, 30)
	near := gradientImage(40, 30)
	near.Set(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255}) // almost identical
	far := blackImage(40, 30)

	// Scores go low, high, low again; the best must stick to the middle one.
	loop, err := New(&stubRenderer{frames: []image.Image{far, near, far}}, nil,
		Config{SimilarityThreshold: 1.0, MaxIterations: 3})
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), ref, testScene(40, 30))
	require.NoError(t, err)
	require.Len(t, res.History, 3)

	maxSim := res.History[0].Similarity
	for _, rec := range res.History {
		if rec.Similarity > maxSim {
			maxSim = rec.Similarity
		}
	}
	assert.Equal(t, maxSim, res.BestSimilarity)
	assert.Equal(t, res.History[1].Similarity, res.BestSimilarity)
	assert.Greater(t, res.History[1].Similarity, res.History[0].Similarity)
	assert.Greater(t, res.History[1].Similarity, res.History[2].Similarity)
}

func TestConvergesOnLaterIteration(t *testing.T) {
	ref := gradientImage(40, 30)
	far := blackImage(40, 30)

	loop, err := New(&stubRenderer{frames: []image.Image{far, far, ref}}, nil, DefaultConfig())
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), ref, testScene(40, 30))
	require.NoError(t, err)

	assert.Equal(t, StateConverged, res.State)
	require.Len(t, res.History, 3)
	assert.Equal(t, 2, res.History[2].Iteration)
	assert.Equal(t, 1.0, res.BestSimilarity)
}

func TestRenderFailurePreservesBestSoFar(t *testing.T) {
	ref := gradientImage(40, 30)
	far := blackImage(40, 30)
	boom := errors.New("rasterizer crashed")

	loop, err := New(&stubRenderer{
		frames: []image.Image{far, far, nil},
		errs:   []error{nil, nil, boom},
	}, nil, Config{SimilarityThreshold: 1.0, MaxIterations: 10})
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), ref, testScene(40, 30))
	require.Error(t, err)

	var rf *RenderFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, 2, rf.Iteration)
	assert.NotNil(t, rf.Params)
	assert.ErrorIs(t, err, boom)

	// The aborted run still reports the two scored iterations and their best.
	require.NotNil(t, res)
	assert.Len(t, res.History, 2)
	assert.NotNil(t, res.BestParams)
	assert.Equal(t, res.History[0].Similarity, res.BestSimilarity)
	assert.Equal(t, StateRunning, res.State)
}

func TestRenderTimeoutSurfacesAsRenderFailure(t *testing.T) {
	ref := gradientImage(16, 16)
	cfg := Config{SimilarityThreshold: 0.95, MaxIterations: 3, RenderTimeout: 20 * time.Millisecond}
	loop, err := New(blockingRenderer{}, nil, cfg)
	require.NoError(t, err)

	start := time.Now()
	res, err := loop.Run(context.Background(), ref, testScene(16, 16))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var rf *RenderFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, 0, rf.Iteration)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, res.History)
}

func TestInvalidInitialSceneRejectedBeforeRendering(t *testing.T) {
	ref := gradientImage(16, 16)
	r := &stubRenderer{frames: []image.Image{ref}}
	loop, err := New(r, nil, DefaultConfig())
	require.NoError(t, err)

	bad := testScene(0, 100)
	res, err := loop.Run(context.Background(), ref, bad)
	require.Error(t, err)

	var ipe *scene.InvalidParametersError
	assert.ErrorAs(t, err, &ipe)
	assert.Zero(t, r.calls, "renderer must not run for invalid parameters")
	assert.Empty(t, res.History)
}

func TestStrategyErrorAbortsIteration(t *testing.T) {
	ref := gradientImage(16, 16)
	far := blackImage(16, 16)
	fail := strategyFunc(func(*scene.Scene, image.Image, *similarity.Result, *calibration.Snapshot) (*scene.Scene, error) {
		return nil, errors.New("no signal")
	})

	loop, err := New(&stubRenderer{frames: []image.Image{far}}, fail, DefaultConfig())
	require.NoError(t, err)

	res, err := loop.Run(context.Background(), ref, testScene(16, 16))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adjust iteration 0")
	assert.Len(t, res.History, 1, "the scored iteration stays in history")
}

func TestStrategyProposingInvalidSceneIsRejected(t *testing.T) {
	ref := gradientImage(16, 16)
	far := blackImage(16, 16)
	invalid := strategyFunc(func(cur *scene.Scene, _ image.Image, _ *similarity.Result, _ *calibration.Snapshot) (*scene.Scene, error) {
		next := cur.Clone()
		next.Size.Width = -5
		return next, nil
	})

	loop, err := New(&stubRenderer{frames: []image.Image{far}}, invalid, DefaultConfig())
	require.NoError(t, err)

	_, err = loop.Run(context.Background(), ref, testScene(16, 16))
	require.Error(t, err)
	var ipe *scene.InvalidParametersError
	assert.ErrorAs(t, err, &ipe)
}

// countingSource counts snapshot reads to pin down the one-snapshot-per-
// adjustment contract.
type countingSource struct {
	set   *calibration.Set
	reads int
}

func (c *countingSource) Snapshot() *calibration.Snapshot {
	c.reads++
	return c.set.Snapshot()
}

func TestFreshCalibrationSnapshotPerAdjustmentStep(t *testing.T) {
	ref := gradientImage(16, 16)
	far := blackImage(16, 16)
	src := &countingSource{set: calibration.NewSet()}

	var seen []*calibration.Snapshot
	record := strategyFunc(func(cur *scene.Scene, _ image.Image, _ *similarity.Result, snap *calibration.Snapshot) (*scene.Scene, error) {
		seen = append(seen, snap)
		return cur.Clone(), nil
	})

	loop, err := New(&stubRenderer{frames: []image.Image{far}}, record,
		Config{SimilarityThreshold: 0.99, MaxIterations: 3},
		WithCalibration(src))
	require.NoError(t, err)

	_, err = loop.Run(context.Background(), ref, testScene(16, 16))
	require.NoError(t, err)

	assert.Equal(t, 3, src.reads)
	require.Len(t, seen, 3)
	for i := 1; i < len(seen); i++ {
		assert.NotSame(t, seen[0], seen[i])
	}
}

func TestCanceledContextAbortsRun(t *testing.T) {
	ref := gradientImage(16, 16)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop, err := New(&stubRenderer{frames: []image.Image{ref}}, nil, DefaultConfig())
	require.NoError(t, err)

	res, err := loop.Run(ctx, ref, testScene(16, 16))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.History)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"threshold at one", Config{SimilarityThreshold: 1, MaxIterations: 1}, false},
		{"zero threshold", Config{SimilarityThreshold: 0, MaxIterations: 5}, true},
		{"threshold above one", Config{SimilarityThreshold: 1.01, MaxIterations: 5}, true},
		{"zero iterations", Config{SimilarityThreshold: 0.9, MaxIterations: 0}, true},
		{"negative timeout", Config{SimilarityThreshold: 0.9, MaxIterations: 1, RenderTimeout: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewRejectsMissingRenderer(t *testing.T) {
	_, err := New(nil, nil, DefaultConfig())
	assert.Error(t, err)
}

func TestRunBatchPreservesOrderAndAssignsIDs(t *testing.T) {
	ref := gradientImage(24, 24)
	loop, err := New(&stubRenderer{frames: []image.Image{ref}}, nil, DefaultConfig())
	require.NoError(t, err)

	jobs := []Job{
		{Source: "a.png", Reference: ref, Initial: testScene(24, 24)},
		{Source: "bad.png", Reference: ref, Initial: testScene(-1, 24)},
		{ID: "fixed-id", Source: "c.png", Reference: ref, Initial: testScene(24, 24)},
	}

	results := RunBatch(context.Background(), loop, jobs, 2)
	require.Len(t, results, 3)

	assert.Equal(t, "a.png", results[0].Source)
	assert.NoError(t, results[0].Err)
	assert.True(t, results[0].Result.Converged())
	assert.NotEmpty(t, results[0].RunID)

	assert.Error(t, results[1].Err)
	assert.NotEmpty(t, results[1].Error)

	assert.Equal(t, "fixed-id", results[2].RunID)
	assert.NoError(t, results[2].Err)

	assert.NotEqual(t, results[0].RunID, results[2].RunID)
}

func TestRunBatchDefaultsWorkerCount(t *testing.T) {
	ref := gradientImage(8, 8)
	loop, err := New(&stubRenderer{frames: []image.Image{ref}}, nil, DefaultConfig())
	require.NoError(t, err)

	jobs := make([]Job, 5)
	for i := range jobs {
		jobs[i] = Job{Source: fmt.Sprintf("img-%d", i), Reference: ref, Initial: testScene(8, 8)}
	}
	results := RunBatch(context.Background(), loop, jobs, 0)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("img-%d", i), r.Source)
		assert.NoError(t, r.Err)
	}
}

func TestRunBatchPerJobRenderer(t *testing.T) {
	big := gradientImage(24, 24)
	small := gradientImage(16, 16)

	loop, err := New(&stubRenderer{frames: []image.Image{big}}, nil, DefaultConfig())
	require.NoError(t, err)

	smallRenderer := &stubRenderer{frames: []image.Image{small}}
	jobs := []Job{
		{Source: "big.png", Reference: big, Initial: testScene(24, 24)},
		{Source: "small.png", Reference: small, Initial: testScene(16, 16), Renderer: smallRenderer},
	}

	results := RunBatch(context.Background(), loop, jobs, 2)
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.True(t, r.Result.Converged())
	}
	assert.Equal(t, 1, smallRenderer.calls)
}
