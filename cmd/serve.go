package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/svgfit/svgfit/internal/archive"
	"github.com/svgfit/svgfit/internal/calibration"
	"github.com/svgfit/svgfit/internal/observability"
	"github.com/svgfit/svgfit/internal/server"
)

func newServeCmd(st *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the fitting tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := st.reload()
			if err != nil {
				return err
			}
			log := observability.L()

			opts := []server.Option{
				server.WithLogger(log),
				server.WithVersion(Version),
			}

			if cfg.Archive.Enabled {
				store, err := archive.Open(cfg.Archive.Path)
				if err != nil {
					log.Warn("run archive unavailable, continuing without it",
						zap.String("path", cfg.Archive.Path),
						zap.Error(err))
				} else {
					defer store.Close()
					opts = append(opts, server.WithArchive(store))
				}
			}

			if cfg.Calibration.File != "" {
				set, err := calibration.LoadFile(cfg.Calibration.File)
				if err != nil {
					return err
				}
				log.Info("calibration markers loaded",
					zap.String("file", cfg.Calibration.File),
					zap.Int("pairs", len(set.Pairs())))
				opts = append(opts, server.WithCalibration(set))
			}

			srv := server.New(cfg, opts...)

			log.Info("mcp server starting",
				zap.String("version", Version),
				zap.String("renderer", cfg.Renderer.Backend),
				zap.Bool("archive", cfg.Archive.Enabled))

			return srv.Run(cmd.Context())
		},
	}
}
