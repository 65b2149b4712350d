package cmd

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/svgfit/svgfit/internal/observability"
	"github.com/svgfit/svgfit/internal/render"
	"github.com/svgfit/svgfit/internal/scene"
)

func newRenderCmd(st *appState) *cobra.Command {
	c := &cobra.Command{
		Use:   "render <scene.json>",
		Short: "Render a scene file to PNG and SVG",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("renderer.backend", cmd.Flags().Lookup("backend")); err != nil {
				return fmt.Errorf("failed to bind --backend: %w", err)
			}
			if err := viper.BindPFlag("renderer.background", cmd.Flags().Lookup("background")); err != nil {
				return fmt.Errorf("failed to bind --background: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := st.reload()
			if err != nil {
				return err
			}
			log := observability.L()

			scenePath := args[0]
			sc, err := scene.LoadFile(scenePath)
			if err != nil {
				return err
			}

			width, _ := cmd.Flags().GetInt("width")
			height, _ := cmd.Flags().GetInt("height")
			if width <= 0 {
				width = int(math.Ceil(sc.Size.Width + 2*sc.Position.X))
			}
			if height <= 0 {
				height = int(math.Ceil(sc.Size.Height + 2*sc.Position.Y))
			}

			backend := cfg.Renderer.Backend
			if backend == "" {
				backend = render.BackendRaster
			}
			canvas := render.Canvas{Width: width, Height: height, Background: cfg.Renderer.Background}
			renderer, err := render.New(backend, canvas)
			if err != nil {
				return err
			}

			pngOut, _ := cmd.Flags().GetString("out")
			svgOut, _ := cmd.Flags().GetString("svg-out")
			if pngOut == "" && svgOut == "" {
				pngOut = strings.TrimSuffix(scenePath, filepath.Ext(scenePath)) + ".png"
			}

			out := map[string]any{
				"scene":   scenePath,
				"width":   width,
				"height":  height,
				"backend": backend,
			}

			if pngOut != "" {
				img, err := renderer.Render(cmd.Context(), sc)
				if err != nil {
					return err
				}
				if err := writePNG(pngOut, img); err != nil {
					return err
				}
				out["png_path"] = pngOut
			}

			if svgOut != "" {
				doc, err := render.SVG(canvas, sc)
				if err != nil {
					return err
				}
				if err := os.WriteFile(svgOut, doc, 0o644); err != nil {
					return fmt.Errorf("failed to write svg: %w", err)
				}
				out["svg_path"] = svgOut
			}

			log.Info("scene rendered",
				zap.String("scene", scenePath),
				zap.Int("width", width),
				zap.Int("height", height),
				zap.String("backend", backend))

			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	c.Flags().Int("width", 0, "canvas width in pixels (derived from the scene when 0)")
	c.Flags().Int("height", 0, "canvas height in pixels (derived from the scene when 0)")
	c.Flags().String("background", "", "canvas background color")
	c.Flags().String("backend", "", "render backend (svg or chrome)")
	c.Flags().StringP("out", "o", "", "PNG output path (defaults to the scene path with a .png extension)")
	c.Flags().String("svg-out", "", "SVG output path")
	return c
}

// writePNG encodes an image to a fresh PNG file.
func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return f.Close()
}
