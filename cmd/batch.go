package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/svgfit/svgfit/internal/archive"
	"github.com/svgfit/svgfit/internal/config"
	"github.com/svgfit/svgfit/internal/observability"
	"github.com/svgfit/svgfit/internal/optimize"
)

// batchSummary is the per-run line of the batch report. The full results,
// history included, only go to the --out file.
type batchSummary struct {
	RunID          string  `json:"run_id"`
	Source         string  `json:"source"`
	State          string  `json:"state,omitempty"`
	BestSimilarity float64 `json:"best_similarity,omitempty"`
	Iterations     int     `json:"iterations,omitempty"`
	Error          string  `json:"error,omitempty"`
}

func newBatchCmd(st *appState) *cobra.Command {
	c := &cobra.Command{
		Use:   "batch <image>...",
		Short: "Fit scenes to several product photos concurrently",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFitFlags(cmd); err != nil {
				return err
			}
			return viper.BindPFlag("optimizer.workers", cmd.Flags().Lookup("workers"))
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

			// Every photo must load and detect before any run starts; a bad
			// path fails the whole invocation instead of one job.
			jobs := make([]optimize.Job, 0, len(args))
			for _, source := range args {
				prep, err := prepareFit(cfg, source)
				if err != nil {
					return err
				}
				jobs = append(jobs, optimize.Job{
					Source:    source,
					Reference: prep.reference,
					Initial:   prep.initial,
					Renderer:  prep.renderer,
				})
			}

			loop, err := newLoop(cfg, jobs[0].Renderer, calib, log)
			if err != nil {
				return err
			}

			log.Info("batch started",
				zap.Int("jobs", len(jobs)),
				zap.Int("workers", cfg.Optimizer.Workers))

			results := optimize.RunBatch(ctx, loop, jobs, cfg.Optimizer.Workers)

			noArchive, _ := cmd.Flags().GetBool("no-archive")
			if cfg.Archive.Enabled && !noArchive {
				archiveBatch(ctx, cfg, results, log)
			}

			summaries := make([]batchSummary, 0, len(results))
			converged := 0
			for _, r := range results {
				s := batchSummary{RunID: r.RunID, Source: r.Source, Error: r.Error}
				if r.Result != nil {
					s.State = string(r.Result.State)
					s.BestSimilarity = r.Result.BestSimilarity
					s.Iterations = r.Result.Iterations
					if r.Result.Converged() {
						converged++
					}
				}
				summaries = append(summaries, s)
			}

			log.Info("batch finished",
				zap.Int("jobs", len(results)),
				zap.Int("converged", converged))

			if outPath, _ := cmd.Flags().GetString("out"); outPath != "" {
				if err := writeJSONFile(outPath, results); err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), summaries)
		},
	}

	addFitFlags(c)
	c.Flags().Int("workers", 0, "concurrent runs (GOMAXPROCS when 0)")
	c.Flags().StringP("out", "o", "", "write full results, history included, to this file")
	return c
}

// archiveBatch persists the successful runs under their batch-assigned IDs so
// the report and the archive agree. Archive failures are logged, not fatal.
func archiveBatch(ctx context.Context, cfg *config.Config, results []optimize.BatchResult, log *zap.Logger) {
	store, err := archive.Open(cfg.Archive.Path)
	if err != nil {
		log.Warn("failed to open run archive", zap.Error(err))
		return
	}
	defer store.Close()

	for _, r := range results {
		if r.Err != nil {
			continue
		}
		rec := archive.Record{
			ID:             r.RunID,
			Source:         r.Source,
			State:          r.Result.State,
			BestSimilarity: r.Result.BestSimilarity,
			Iterations:     r.Result.Iterations,
			Result:         r.Result,
		}
		if _, err := store.Save(ctx, rec); err != nil {
			log.Warn("failed to archive run", zap.String("run_id", r.RunID), zap.Error(err))
		}
	}
}

// writeJSONFile writes the JSON document to a fresh file.
func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := writeJSON(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
