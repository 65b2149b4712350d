package adjust

import (
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/svgfit/svgfit/internal/calibration"
	"github.com/svgfit/svgfit/internal/scene"
	"github.com/svgfit/svgfit/internal/similarity"
)

// Signals bundles the per-iteration inputs a rule may read. Fields may be nil
// when the corresponding signal is unavailable; rules treat missing signals as
// "leave my group unchanged".
type Signals struct {
	// Reference is the photo being fitted.
	Reference image.Image

	// Eval is the similarity breakdown of the iteration that just scored.
	Eval *similarity.Result

	// Calibration is the immutable marker snapshot for this run.
	Calibration *calibration.Snapshot
}

// Rule adjusts one parameter group on a candidate scene in place.
type Rule interface {
	// Name identifies the rule in errors and logs.
	Name() string

	// Apply revises the rule's parameter group on next. Implementations
	// must not modify fields outside their group and must leave next
	// structurally valid.
	Apply(sig *Signals, next *scene.Scene) error
}

// Composite is the default adjustment strategy: a fixed sequence of per-group
// rules. It satisfies the fitting loop's Strategy interface.
type Composite struct {
	tuning   Tuning
	rules    []Rule
	lighting LightingPolicy
	log      *zap.Logger
}

// Option customizes a Composite.
type Option func(*Composite)

// WithLogger attaches a logger for rule diagnostics such as flagged outlier
// pairs.
func WithLogger(log *zap.Logger) Option {
	return func(c *Composite) {
		if log != nil {
			c.log = log
		}
	}
}

// WithLighting replaces the lighting heuristic. Use NopLighting to freeze the
// lighting group entirely.
func WithLighting(p LightingPolicy) Option {
	return func(c *Composite) {
		if p != nil {
			c.lighting = p
		}
	}
}

// WithRules replaces the entire rule sequence. The rules run in the order
// given.
func WithRules(rules ...Rule) Option {
	return func(c *Composite) {
		c.rules = rules
	}
}

// New builds the default strategy from the given tuning.
func New(t Tuning, opts ...Option) *Composite {
	c := &Composite{
		tuning:   t,
		lighting: &BrightnessLighting{Grid: DefaultBrightnessGrid},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rules == nil {
		c.rules = []Rule{
			SizeRule{},
			&CornerRule{Max: t.MaxCornerRadius},
			NewPositionRule(t.outlierPolicy(), c.log),
			&GradientRule{Samples: t.GradientSamples, Window: t.SampleWindow, Epsilon: t.DedupeEpsilon},
			lightingRule{policy: c.lighting},
		}
	}
	return c
}

// Next clones the current scene and runs every rule over the clone. The
// current scene is never modified. An error from any rule aborts the proposal.
func (c *Composite) Next(current *scene.Scene, ref image.Image, eval *similarity.Result, calib *calibration.Snapshot) (*scene.Scene, error) {
	next := current.Clone()
	sig := &Signals{Reference: ref, Eval: eval, Calibration: calib}

	for _, rule := range c.rules {
		if err := rule.Apply(sig, next); err != nil {
			return nil, fmt.Errorf("%s rule: %w", rule.Name(), err)
		}
	}
	return next, nil
}
