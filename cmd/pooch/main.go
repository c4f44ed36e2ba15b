// Command pooch fetches, verifies and caches the data files declared in a
// registry, and maintains registry files for data directories.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	app := &application{}

	cmd := &cobra.Command{
		Use:           "pooch",
		Short:         "fetch and cache verified data files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := cmd.PersistentFlags()
	flags.StringVarP(&app.configPath, "config", "c", "pooch.yml", "configuration file")
	flags.BoolVarP(&app.verbose, "verbose", "v", false, "log every cache decision")
	flags.BoolVar(&app.progress, "progress", false, "show a download progress bar")

	cmd.AddCommand(
		newFetchCmd(app),
		newGetURLCmd(app),
		newAvailableCmd(app),
		newHashCmd(),
		newMakeRegistryCmd(),
		newVersionCmd(),
	)
	return cmd
}
