package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		Long: `Validate the configuration and exit.

Warnings are printed but do not fail validation. The exit code is 2 when
the configuration has errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			if err := checkConfig(cfg, g.configPath, cmd.ErrOrStderr()); err != nil {
				return err
			}
			name := g.configPath
			if name == "" {
				name = "(defaults)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration %s is valid\n", name)
			return nil
		},
	}
}
