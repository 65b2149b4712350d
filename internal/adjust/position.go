package adjust

import (
	"go.uber.org/zap"

	"github.com/svgfit/svgfit/internal/calibration"
	"github.com/svgfit/svgfit/internal/scene"
)

// PositionRule shifts the scene position by the mean calibration offset.
//
// The shift direction follows the offset sign convention: offset = rendered
// minus original. Pairs whose offset magnitude exceeds the policy threshold
// are logged as outliers; whether they still contribute to the mean is the
// policy's call. Without calibration data the position stays where it is, no
// blind guessing.
type PositionRule struct {
	policy calibration.OutlierPolicy
	log    *zap.Logger
}

// NewPositionRule builds the rule with the given outlier policy. A nil logger
// disables outlier diagnostics.
func NewPositionRule(policy calibration.OutlierPolicy, log *zap.Logger) *PositionRule {
	if log == nil {
		log = zap.NewNop()
	}
	return &PositionRule{policy: policy, log: log}
}

func (r *PositionRule) Name() string { return "position" }

func (r *PositionRule) Apply(sig *Signals, next *scene.Scene) error {
	if sig.Calibration.Empty() {
		return nil
	}

	report := sig.Calibration.OffsetReport(r.policy)
	for _, id := range report.Outliers {
		r.log.Warn("calibration pair exceeds outlier threshold",
			zap.Int("pair_id", id),
			zap.Float64("threshold", r.policy.Threshold),
			zap.Bool("excluded", r.policy.Exclude))
	}
	if report.Used == 0 {
		return nil
	}

	next.Position.X += report.Mean.DX
	next.Position.Y += report.Mean.DY
	return nil
}
