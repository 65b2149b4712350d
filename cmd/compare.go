package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/svgfit/svgfit/internal/imaging"
	"github.com/svgfit/svgfit/internal/observability"
	"github.com/svgfit/svgfit/internal/similarity"
)

func newCompareCmd(st *appState) *cobra.Command {
	c := &cobra.Command{
		Use:   "compare <reference> <candidate>",
		Short: "Score how closely two images match",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := st.reload(); err != nil {
				return err
			}
			log := observability.L()

			refPath, candPath := args[0], args[1]
			ref, err := imaging.LoadImage(refPath)
			if err != nil {
				return fmt.Errorf("load %s: %w", refPath, err)
			}
			cand, err := imaging.LoadImage(candPath)
			if err != nil {
				return fmt.Errorf("load %s: %w", candPath, err)
			}

			// The fitting loop scores frames at reference dimensions; the
			// command mirrors that instead of failing on a size mismatch.
			fitted := false
			rb, cb := ref.Bounds(), cand.Bounds()
			if rb.Dx() != cb.Dx() || rb.Dy() != cb.Dy() {
				cand, err = imaging.FitTo(cand, rb.Dx(), rb.Dy())
				if err != nil {
					return err
				}
				fitted = true
			}

			res, err := similarity.NewEvaluator().Compare(ref, cand)
			if err != nil {
				return err
			}

			log.Info("images compared",
				zap.String("reference", refPath),
				zap.String("candidate", candPath),
				zap.Bool("fitted", fitted),
				zap.Float64("overall", res.Overall))

			return emitResult(cmd, map[string]any{
				"reference":  refPath,
				"candidate":  candPath,
				"fitted":     fitted,
				"similarity": res,
			})
		},
	}

	c.Flags().StringP("out", "o", "", "write the comparison JSON to this file instead of stdout")
	return c
}
