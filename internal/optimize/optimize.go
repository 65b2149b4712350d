package optimize

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/svgfit/svgfit/internal/calibration"
	"github.com/svgfit/svgfit/internal/scene"
	"github.com/svgfit/svgfit/internal/similarity"
)

// Renderer turns a scene into a raster image of a fixed canvas size. It must
// be deterministic for identical input, honor ctx cancellation, and fail on
// malformed parameters rather than guessing.
type Renderer interface {
	Render(ctx context.Context, s *scene.Scene) (image.Image, error)
}

// Strategy proposes the next candidate scene after a scored iteration. The
// calibration snapshot may be nil when no calibration data exists.
// Implementations return a new scene and leave the current one untouched.
type Strategy interface {
	Next(current *scene.Scene, reference image.Image, eval *similarity.Result, calib *calibration.Snapshot) (*scene.Scene, error)
}

// CalibrationSource supplies a consistent calibration snapshot per adjustment
// step. *calibration.Set satisfies it.
type CalibrationSource interface {
	Snapshot() *calibration.Snapshot
}

// Config bounds a fitting run.
type Config struct {
	// SimilarityThreshold stops the run once the composite score reaches it.
	// Must lie in (0, 1].
	SimilarityThreshold float64 `json:"similarity_threshold"`

	// MaxIterations caps the number of render/evaluate cycles. Must be at
	// least 1.
	MaxIterations int `json:"max_iterations"`

	// RenderTimeout bounds each renderer call. Zero disables the per-call
	// timeout; expiry surfaces as a RenderFailure.
	RenderTimeout time.Duration `json:"render_timeout"`
}

// DefaultConfig returns the standard bounds: threshold 0.95, 10 iterations.
func DefaultConfig() Config {
	return Config{SimilarityThreshold: 0.95, MaxIterations: 10}
}

// Validate checks the configured bounds.
func (c Config) Validate() error {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be in (0, 1], got %g", c.SimilarityThreshold)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.RenderTimeout < 0 {
		return fmt.Errorf("render timeout must not be negative, got %s", c.RenderTimeout)
	}
	return nil
}

// Loop orchestrates fitting runs. It is immutable after construction and safe
// for concurrent use.
type Loop struct {
	renderer Renderer
	strategy Strategy
	eval     *similarity.Evaluator
	calib    CalibrationSource
	cfg      Config
	log      *zap.Logger
}

// Option customizes a Loop beyond its required dependencies.
type Option func(*Loop)

// WithEvaluator replaces the default similarity evaluator.
func WithEvaluator(e *similarity.Evaluator) Option {
	return func(l *Loop) { l.eval = e }
}

// WithCalibration attaches a calibration source. A fresh snapshot is read at
// the start of every adjustment step.
func WithCalibration(src CalibrationSource) Option {
	return func(l *Loop) { l.calib = src }
}

// WithLogger attaches a logger for per-iteration progress.
func WithLogger(log *zap.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// New builds a fitting loop. A nil strategy falls back to a no-op that
// re-proposes the current scene unchanged; the iteration budget still bounds
// such a run.
func New(renderer Renderer, strategy Strategy, cfg Config, opts ...Option) (*Loop, error) {
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if strategy == nil {
		strategy = noopStrategy{}
	}
	l := &Loop{
		renderer: renderer,
		strategy: strategy,
		eval:     similarity.NewEvaluator(),
		cfg:      cfg,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run fits the initial scene to the reference image and returns the best
// result found.
//
// The returned Result is always non-nil. When Run also returns an error, the
// result still carries every history record and the best scene recorded
// before the failure; its State remains StateRunning because the run did not
// terminate through the state machine.
func (l *Loop) Run(ctx context.Context, reference image.Image, initial *scene.Scene) (*Result, error) {
	res := &Result{State: StateRunning}

	if initial == nil {
		return res, errors.New("initial scene is required")
	}
	if err := initial.Validate(); err != nil {
		return res, fmt.Errorf("initial scene rejected: %w", err)
	}

	current := initial.Clone()
	for iter := 0; iter < l.cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("run canceled at iteration %d: %w", iter, err)
		}

		img, err := l.render(ctx, current)
		if err != nil {
			return res, &RenderFailure{Iteration: iter, Params: current.Clone(), Err: err}
		}

		ev, err := l.eval.Compare(reference, img)
		if err != nil {
			return res, fmt.Errorf("evaluate iteration %d: %w", iter, err)
		}

		rec := HistoryRecord{
			Iteration:  iter,
			Params:     current.Clone(),
			Similarity: ev.Overall,
			Breakdown:  *ev,
		}
		res.History = append(res.History, rec)
		res.Iterations = len(res.History)

		if res.BestParams == nil || ev.Overall > res.BestSimilarity {
			res.BestParams = rec.Params
			res.BestSimilarity = ev.Overall
		}

		l.log.Debug("iteration scored",
			zap.Int("iteration", iter),
			zap.Float64("similarity", ev.Overall),
			zap.Float64("psnr", ev.PSNR),
			zap.Float64("histogram", ev.Histogram),
			zap.Float64("template", ev.Template),
			zap.Float64("best", res.BestSimilarity))

		if ev.Overall >= l.cfg.SimilarityThreshold {
			res.State = StateConverged
			l.log.Info("converged",
				zap.Int("iterations", res.Iterations),
				zap.Float64("best_similarity", res.BestSimilarity))
			return res, nil
		}

		next, err := l.strategy.Next(current, reference, ev, l.snapshot())
		if err != nil {
			return res, fmt.Errorf("adjust iteration %d: %w", iter, err)
		}
		if next == nil {
			return res, fmt.Errorf("adjust iteration %d: strategy returned no scene", iter)
		}
		if err := next.Validate(); err != nil {
			return res, fmt.Errorf("adjust iteration %d: %w", iter, err)
		}
		current = next
	}

	res.State = StateExhausted
	l.log.Info("budget exhausted",
		zap.Int("iterations", res.Iterations),
		zap.Float64("best_similarity", res.BestSimilarity))
	return res, nil
}

// render invokes the renderer under the configured per-call timeout.
func (l *Loop) render(ctx context.Context, s *scene.Scene) (image.Image, error) {
	if l.cfg.RenderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.RenderTimeout)
		defer cancel()
	}
	return l.renderer.Render(ctx, s)
}

// snapshot reads the calibration source, or returns nil when none is
// attached.
func (l *Loop) snapshot() *calibration.Snapshot {
	if l.calib == nil {
		return nil
	}
	return l.calib.Snapshot()
}

// noopStrategy re-proposes the current scene unchanged.
type noopStrategy struct{}

func (noopStrategy) Next(current *scene.Scene, _ image.Image, _ *similarity.Result, _ *calibration.Snapshot) (*scene.Scene, error) {
	return current.Clone(), nil
}
