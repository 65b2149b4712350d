// Package cmd wires the svgfit command tree: single and batch fitting runs,
// the detection and rendering primitives as standalone commands, the run
// archive browser, and the MCP stdio server.
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/svgfit/svgfit/internal/config"
	"github.com/svgfit/svgfit/internal/observability"
)

// appState carries the resolved configuration between the root command's
// setup hook and the subcommands.
type appState struct {
	cfg *config.Config
}

// reload unmarshals the current viper state. Subcommands call it from RunE,
// after their flags are bound, so flag overrides land with the right
// precedence.
func (st *appState) reload() (*config.Config, error) {
	cfg, err := config.New(viper.GetViper())
	if err != nil {
		return nil, err
	}
	st.cfg = cfg
	return cfg, nil
}

// NewRootCommand builds a fresh svgfit command tree. Tests construct their
// own tree per case so flag state never leaks between runs.
func NewRootCommand() *cobra.Command {
	var cfgFile string
	st := &appState{}

	root := &cobra.Command{
		Use:   "svgfit",
		Short: "svgfit fits a parametric SVG scene to a product photo",
		Long: `svgfit detects the dominant product shape in a photo, renders a
parametric SVG candidate, and iteratively revises its position, size,
corner rounding, and gradient until the rendering matches the photo.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(cfgFile); err != nil {
				return err
			}
			if f := cmd.Flags().Lookup("log-level"); f != nil {
				if err := viper.BindPFlag("logging.level", f); err != nil {
					return fmt.Errorf("failed to bind --log-level: %w", err)
				}
			}
			cfg, err := st.reload()
			if err != nil {
				return err
			}
			observability.InitializeLogger(cfg.Logging)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./svgfit.yaml)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, or error (overrides config)")
	root.SetVersionTemplate(`{{printf "svgfit %s\n" .Version}}`)

	root.AddCommand(
		newOptimizeCmd(st),
		newBatchCmd(st),
		newDetectCmd(st),
		newRenderCmd(st),
		newCompareCmd(st),
		newServeCmd(st),
		newRunsCmd(st),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree under the given signal-aware context.
func Execute(ctx context.Context) error {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		observability.L().Error("command failed", zap.Error(err))
		return err
	}
	return nil
}

// initializeConfig seeds defaults, reads the optional config file, and binds
// the SVGFIT_ environment namespace on the shared viper instance.
func initializeConfig(cfgFile string) error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("svgfit")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment carry the run.
	}
	return nil
}

// addFitFlags registers the loop and renderer overrides shared by the
// optimize and batch commands.
func addFitFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("threshold", 0, "similarity score that stops the run (overrides config)")
	cmd.Flags().Int("max-iterations", 0, "iteration budget per run (overrides config)")
	cmd.Flags().Duration("render-timeout", 0, "per-render timeout (overrides config)")
	cmd.Flags().String("renderer", "", "render backend, svg or chrome (overrides config)")
	cmd.Flags().String("calibration", "", "calibration marker file (YAML)")
	cmd.Flags().Bool("skip-labels", false, "skip OCR label detection")
	cmd.Flags().Bool("no-archive", false, "skip archiving the run")
}

// bindFitFlags maps the shared fit flags onto their config keys. Unchanged
// flags keep the config file, environment, and default precedence intact.
func bindFitFlags(cmd *cobra.Command) error {
	bindings := map[string]string{
		"optimizer.similarity_threshold": "threshold",
		"optimizer.max_iterations":       "max-iterations",
		"optimizer.render_timeout":       "render-timeout",
		"renderer.backend":               "renderer",
		"detector.skip_labels":           "skip-labels",
	}
	for key, name := range bindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

// writeJSON pretty-prints v to w.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
