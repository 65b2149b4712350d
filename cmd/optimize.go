package cmd

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/svgfit/svgfit/internal/adjust"
	"github.com/svgfit/svgfit/internal/archive"
	"github.com/svgfit/svgfit/internal/calibration"
	"github.com/svgfit/svgfit/internal/config"
	"github.com/svgfit/svgfit/internal/detect"
	"github.com/svgfit/svgfit/internal/imaging"
	"github.com/svgfit/svgfit/internal/observability"
	"github.com/svgfit/svgfit/internal/optimize"
	"github.com/svgfit/svgfit/internal/render"
	"github.com/svgfit/svgfit/internal/scene"
)

func newOptimizeCmd(st *appState) *cobra.Command {
	c := &cobra.Command{
		Use:   "optimize <image>",
		Short: "Fit a scene to one product photo",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFitFlags(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := st.reload()
			if err != nil {
				return err
			}
			log := observability.L()

			calib, err := loadCalibration(cmd, cfg, log)
			if err != nil {
				return err
			}

			source := args[0]
			prep, err := prepareFit(cfg, source)
			if err != nil {
				return err
			}

			loop, err := newLoop(cfg, prep.renderer, calib, log)
			if err != nil {
				return err
			}

			res, err := loop.Run(ctx, prep.reference, prep.initial)
			if err != nil {
				if res != nil && len(res.History) > 0 {
					log.Warn("run aborted, best scene so far",
						zap.Int("iterations", res.Iterations),
						zap.Float64("best_similarity", res.BestSimilarity))
				}
				return fmt.Errorf("fit %s: %w", source, err)
			}

			out := map[string]any{
				"source": source,
				"result": res,
			}

			noArchive, _ := cmd.Flags().GetBool("no-archive")
			if cfg.Archive.Enabled && !noArchive {
				if id, err := archiveRun(ctx, cfg, source, res); err != nil {
					log.Warn("failed to archive run", zap.Error(err))
				} else {
					out["run_id"] = id
				}
			}

			if svgOut, _ := cmd.Flags().GetString("svg-out"); svgOut != "" && res.BestParams != nil {
				doc, err := render.SVG(prep.canvas, res.BestParams)
				if err != nil {
					return err
				}
				if err := os.WriteFile(svgOut, doc, 0o644); err != nil {
					return fmt.Errorf("failed to write svg: %w", err)
				}
				out["svg_path"] = svgOut
			}

			log.Info("run finished",
				zap.String("source", source),
				zap.String("state", string(res.State)),
				zap.Int("iterations", res.Iterations),
				zap.Float64("best_similarity", res.BestSimilarity))

			return emitResult(cmd, out)
		},
	}

	addFitFlags(c)
	c.Flags().StringP("out", "o", "", "write the result JSON to this file instead of stdout")
	c.Flags().String("svg-out", "", "write the best scene as SVG to this file")
	return c
}

// preparedFit is the per-image setup for one run: the cropped reference, the
// starting scene, and a renderer sized to the crop.
type preparedFit struct {
	reference image.Image
	initial   *scene.Scene
	canvas    render.Canvas
	renderer  render.Renderer
}

// prepareFit loads a photo, detects the product, and sizes the render canvas
// to the padded crop. The reference the loop scores against is the matching
// region of the photo.
func prepareFit(cfg *config.Config, source string) (*preparedFit, error) {
	img, err := imaging.LoadImage(source)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}
	det, err := detect.Detect(img, cfg.Detector.Options())
	if err != nil {
		return nil, fmt.Errorf("detect %s: %w", source, err)
	}

	x1, y1 := int(det.PaddedRect.X), int(det.PaddedRect.Y)
	reference, err := imaging.CropRect(img, x1, y1, x1+det.Width, y1+det.Height)
	if err != nil {
		return nil, fmt.Errorf("crop %s: %w", source, err)
	}

	canvas := render.Canvas{Width: det.Width, Height: det.Height, Background: cfg.Renderer.Background}
	renderer, err := render.New(cfg.Renderer.Backend, canvas)
	if err != nil {
		return nil, err
	}

	return &preparedFit{
		reference: reference,
		initial:   det.InitialScene(),
		canvas:    canvas,
		renderer:  renderer,
	}, nil
}

// newLoop assembles the fitting loop from the configuration.
func newLoop(cfg *config.Config, renderer optimize.Renderer, calib *calibration.Set, log *zap.Logger) (*optimize.Loop, error) {
	tuning := adjust.DefaultTuning()
	tuning.OutlierThreshold = cfg.Calibration.OutlierThreshold
	tuning.ExcludeOutliers = cfg.Calibration.ExcludeOutliers
	if n := cfg.Detector.GradientSamples; n > 0 {
		tuning.GradientSamples = n
	}
	strategy := adjust.New(tuning, adjust.WithLogger(log))

	return optimize.New(renderer, strategy, cfg.Optimizer.LoopConfig(),
		optimize.WithCalibration(calib),
		optimize.WithLogger(log))
}

// loadCalibration reads the marker file named by the --calibration flag or
// the configuration. An empty set is returned when neither names a file.
func loadCalibration(cmd *cobra.Command, cfg *config.Config, log *zap.Logger) (*calibration.Set, error) {
	path, _ := cmd.Flags().GetString("calibration")
	if path == "" {
		path = cfg.Calibration.File
	}
	if path == "" {
		return calibration.NewSet(), nil
	}
	set, err := calibration.LoadFile(path)
	if err != nil {
		return nil, err
	}
	log.Info("calibration markers loaded", zap.String("file", path), zap.Int("pairs", len(set.Pairs())))
	return set, nil
}

// archiveRun persists one finished run and returns its ID.
func archiveRun(ctx context.Context, cfg *config.Config, source string, res *optimize.Result) (string, error) {
	store, err := archive.Open(cfg.Archive.Path)
	if err != nil {
		return "", err
	}
	defer store.Close()

	rec, err := store.Save(ctx, archive.Record{
		Source:         source,
		State:          res.State,
		BestSimilarity: res.BestSimilarity,
		Iterations:     res.Iterations,
		Result:         res,
	})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// emitResult writes the JSON document to --out when given, stdout otherwise.
func emitResult(cmd *cobra.Command, v any) error {
	if outPath, _ := cmd.Flags().GetString("out"); outPath != "" {
		return writeJSONFile(outPath, v)
	}
	return writeJSON(cmd.OutOrStdout(), v)
}
