package cmd

import (
	"encoding/base64"
	"fmt"
	"image"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/svgfit/svgfit/internal/detect"
	"github.com/svgfit/svgfit/internal/imaging"
	"github.com/svgfit/svgfit/internal/observability"
)

func newDetectCmd(st *appState) *cobra.Command {
	c := &cobra.Command{
		Use:   "detect <image>",
		Short: "Detect the product region and features in a photo",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlag("detector.skip_labels", cmd.Flags().Lookup("skip-labels"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := st.reload()
			if err != nil {
				return err
			}
			log := observability.L()

			source := args[0]
			img, err := imaging.LoadImage(source)
			if err != nil {
				return fmt.Errorf("load %s: %w", source, err)
			}

			det, err := detect.Detect(img, cfg.Detector.Options())
			if err != nil {
				return fmt.Errorf("detect %s: %w", source, err)
			}

			log.Info("detection finished",
				zap.String("source", source),
				zap.Int("width", det.Width),
				zap.Int("height", det.Height),
				zap.Int("features", len(det.Features)),
				zap.Int("labels", len(det.Labels)))

			if debugPath, _ := cmd.Flags().GetString("debug-out"); debugPath != "" {
				if err := writeOverlay(debugPath, img, det); err != nil {
					return err
				}
			}

			return emitResult(cmd, det)
		},
	}

	c.Flags().StringP("out", "o", "", "write the detection JSON to this file instead of stdout")
	c.Flags().String("debug-out", "", "write a PNG of the photo with detected boxes drawn on it")
	c.Flags().Bool("skip-labels", false, "skip OCR label detection")
	return c
}

// writeOverlay draws every detected box onto the source photo and writes the
// result as PNG.
func writeOverlay(path string, img image.Image, det *detect.Result) error {
	enc, err := imaging.Overlay(img, imaging.OverlayOptions{Boxes: det.OverlayBoxes()})
	if err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(enc.ImageBase64)
	if err != nil {
		return fmt.Errorf("failed to decode overlay: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write overlay: %w", err)
	}
	return nil
}
