package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cosmoscout/gaia-stars/internal/logging"
)

func newListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the chunk locations a run would process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			if err := checkConfig(cfg, g.configPath, cmd.ErrOrStderr()); err != nil {
				return err
			}

			log := newLogger(cfg, logging.NewRunID(), cmd.ErrOrStderr())
			locs, err := listChunks(cmd.Context(), cfg, newHTTPClient(cfg), log)
			if err != nil {
				return err
			}
			if cfg.Source.MaxChunks > 0 && cfg.Source.MaxChunks < len(locs) {
				locs = locs[:cfg.Source.MaxChunks]
			}
			out := cmd.OutOrStdout()
			for _, l := range locs {
				fmt.Fprintln(out, l)
			}
			return nil
		},
	}
}
