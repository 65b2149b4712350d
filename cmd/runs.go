package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/svgfit/svgfit/internal/archive"
	"github.com/svgfit/svgfit/internal/config"
)

func newRunsCmd(st *appState) *cobra.Command {
	c := &cobra.Command{
		Use:   "runs",
		Short: "List archived fitting runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := st.reload()
			if err != nil {
				return err
			}
			store, err := openArchive(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"runs":  runs,
				"count": len(runs),
			})
		},
	}
	c.Flags().Int("limit", 0, "maximum runs to list (default 50)")

	c.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Print one archived run, history included",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := st.reload()
			if err != nil {
				return err
			}
			store, err := openArchive(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	})

	return c
}

// openArchive opens the configured run archive, refusing when archiving is
// switched off rather than creating an empty database.
func openArchive(cfg *config.Config) (*archive.Store, error) {
	if !cfg.Archive.Enabled {
		return nil, errors.New("run archive is disabled (set archive.enabled)")
	}
	return archive.Open(cfg.Archive.Path)
}
