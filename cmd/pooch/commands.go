package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fatiando/pooch"
	"github.com/fatiando/pooch/configuration"
	"github.com/fatiando/pooch/digest"
	"github.com/fatiando/pooch/processor"
	"github.com/fatiando/pooch/transport"
	"github.com/fatiando/pooch/version"
)

// application carries the persistent flags and the lazily built Pooch
// shared by the subcommands.
type application struct {
	configPath string
	verbose    bool
	progress   bool
}

// open loads the configuration and builds the Pooch it describes.
func (app *application) open() (*pooch.Pooch, error) {
	f, err := os.Open(app.configPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	config, err := configuration.Parse(f)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	level, err := config.LogLevel()
	if err != nil {
		return nil, err
	}
	if app.verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	cacheDir := config.Cache.Dir
	if cacheDir == "" {
		cacheDir, err = pooch.OSCache("pooch")
		if err != nil {
			return nil, err
		}
	}

	opts := []pooch.Option{
		pooch.WithLogger(logger),
		pooch.WithRetries(config.Download.Retries),
	}
	if config.Cache.EnvOverride != "" {
		opts = append(opts, pooch.WithEnvOverride(config.Cache.EnvOverride))
	}
	if config.Version.Label != "" {
		opts = append(opts, pooch.WithVersion(config.Version.Label, config.Version.DevLabel))
	}
	if config.Download.DisableUpdates {
		opts = append(opts, pooch.WithoutUpdates())
	}

	p, err := pooch.New(cacheDir, config.BaseURL, opts...)
	if err != nil {
		return nil, err
	}
	if config.Registry != "" {
		rf, err := os.Open(config.Registry)
		if err != nil {
			return nil, err
		}
		defer rf.Close()
		if err := p.LoadRegistry(rf, config.Registry); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// fetchOptions builds the per-call options from the flags.
func (app *application) fetchOptions(decompress, unzip, untar bool, members []string) ([]pooch.FetchOption, error) {
	var opts []pooch.FetchOption
	set := 0
	for _, on := range []bool{decompress, unzip, untar} {
		if on {
			set++
		}
	}
	if set > 1 {
		return nil, fmt.Errorf("pick at most one of --decompress, --unzip, --untar")
	}
	switch {
	case decompress:
		opts = append(opts, pooch.WithProcessor(processor.NewDecompress()))
	case unzip:
		opts = append(opts, pooch.WithProcessor(&processor.Unzip{Members: members}))
	case untar:
		opts = append(opts, pooch.WithProcessor(&processor.Untar{Members: members}))
	}
	return opts, nil
}

func newFetchCmd(app *application) *cobra.Command {
	var (
		decompress bool
		unzip      bool
		untar      bool
		members    []string
	)
	cmd := &cobra.Command{
		Use:   "fetch <name>...",
		Short: "ensure files are cached and verified, print their local paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.open()
			if err != nil {
				return err
			}
			opts, err := app.fetchOptions(decompress, unzip, untar, members)
			if err != nil {
				return err
			}
			for _, name := range args {
				callOpts := opts
				if app.progress {
					// The bar rides on the HTTP transport; other schemes
					// keep their scheme-selected downloader.
					if url, err := p.GetURL(name); err == nil && strings.HasPrefix(url, "http") {
						bar := transport.NewBar()
						defer bar.Close()
						callOpts = append(callOpts,
							pooch.WithDownloader(transport.NewHTTP(transport.WithProgress(bar))))
					}
				}
				paths, err := p.Fetch(cmd.Context(), name, callOpts...)
				if err != nil {
					return err
				}
				for _, path := range paths {
					fmt.Fprintln(cmd.OutOrStdout(), path)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&decompress, "decompress", false, "decompress the fetched file")
	cmd.Flags().BoolVar(&unzip, "unzip", false, "extract the fetched zip archive")
	cmd.Flags().BoolVar(&untar, "untar", false, "extract the fetched tar archive")
	cmd.Flags().StringSliceVar(&members, "member", nil, "archive member to extract (repeatable, default all)")
	return cmd
}

func newGetURLCmd(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "get-url <name>",
		Short: "print the remote URL a fetch would download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.open()
			if err != nil {
				return err
			}
			url, err := p.GetURL(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
}

func newAvailableCmd(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "available <name>",
		Short: "probe whether a file can be downloaded from its source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.open()
			if err != nil {
				return err
			}
			ok, err := p.IsAvailable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s is not available", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is available\n", args[0])
			return nil
		},
	}
}

func newHashCmd() *cobra.Command {
	var algorithm string
	cmd := &cobra.Command{
		Use:   "hash <file>...",
		Short: "print registry hash specifiers for local files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := digest.ParseAlgorithm(algorithm)
			if err != nil {
				return err
			}
			for _, path := range args {
				d, err := digest.FromFile(alg, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", path, d)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", string(digest.Canonical), "hashing algorithm")
	return cmd
}

func newMakeRegistryCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "make-registry <directory>",
		Short: "write a registry file for the data files under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return pooch.MakeRegistry(args[0], w)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			version.FprintVersion(cmd.OutOrStdout())
		},
	}
}
