// Command gaiastars extracts the N brightest stars of a chunked star
// catalogue (Gaia DR3 gaia_source by default) into a pipe-delimited file
// and, optionally, a database table.
//
// Usage:
//
//	gaiastars run --config gaiastars.yaml
//	gaiastars validate --config gaiastars.yaml
//	gaiastars list --config gaiastars.yaml
//	gaiastars config dump
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// register all backends with the storage factory.
	_ "github.com/cosmoscout/gaia-stars/internal/storage/all"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ve *validationError
		if errors.As(err, &ve) {
			os.Exit(exitCodeInvalidConfig)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "gaiastars",
		Short: "Extract the brightest stars of a chunked star catalogue",
		Long: `gaiastars streams every chunk of a star catalogue, keeps the N brightest
stars in a bounded reservoir and writes them as a '|'-delimited extract,
dimmest first.

Commands:
  run       Download, select and emit the extract
  validate  Check a configuration file
  list      Print the chunk locations a run would process
  config    Show the effective configuration
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "configuration file (YAML or JSON)")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newRunCmd(g))
	root.AddCommand(newValidateCmd(g))
	root.AddCommand(newListCmd(g))
	root.AddCommand(newConfigCmd(g))
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gaiastars %s (commit: %s)\n", version, commit)
		},
	}
}
