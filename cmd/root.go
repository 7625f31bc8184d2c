// Package cmd implements the crate2gn command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thediveo/enumflag/v2"

	"github.com/crate2gn/crate2gn/internal/config"
	"github.com/crate2gn/crate2gn/internal/logging"
	"github.com/crate2gn/crate2gn/internal/metadata"
)

// globalParams are the flags shared by every command.
type globalParams struct {
	logLevel      logging.Level
	logFormat     logging.Format
	configFiles   []string
	configPatch   string
	mergeConflict bool
}

func (p *globalParams) logger() *logging.Logger {
	return logging.New(logging.Config{Level: p.logLevel, Format: p.logFormat})
}

func (p *globalParams) loadConfig() (*config.Root, error) {
	return config.Load(config.LoadOptions{
		Files:         p.configFiles,
		ConflictError: p.mergeConflict,
		PatchFile:     p.configPatch,
	})
}

func (p *globalParams) addFlags(flags *pflag.FlagSet) {
	flags.Var(enumflag.New(&p.logLevel, "level", logging.LevelIds, enumflag.EnumCaseInsensitive), "log-level", "log level: debug, info, warn or error")
	flags.Var(enumflag.New(&p.logFormat, "format", logging.FormatIds, enumflag.EnumCaseInsensitive), "log-format", "log format: console or json")
	flags.StringSliceVarP(&p.configFiles, "config", "c", nil, "configuration files or directories, merged in order")
	flags.StringVar(&p.configPatch, "config-patch", "", "JSON patch (YAML or JSON) applied to the merged configuration")
	flags.BoolVar(&p.mergeConflict, "merge-conflict-error", false, "fail when configuration files set the same key")
}

// metadataParams select where the cargo metadata export comes from.
type metadataParams struct {
	file         string
	manifestPath string
	cargo        string
	offline      bool
	locked       bool
	features     []string
	allFeatures  bool
}

func (p *metadataParams) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.file, "metadata", "", "read a `cargo metadata --format-version 1` export from this file (\"-\" for stdin) instead of running cargo")
	cmd.Flags().StringVar(&p.manifestPath, "manifest-path", "", "path to the Cargo.toml cargo metadata runs against")
	cmd.Flags().StringVar(&p.cargo, "cargo", "cargo", "cargo binary")
	cmd.Flags().BoolVar(&p.offline, "offline", true, "run cargo without network access")
	cmd.Flags().BoolVar(&p.locked, "locked", false, "require Cargo.lock to be up to date")
	cmd.Flags().StringSliceVar(&p.features, "features", nil, "features to enable on the root package")
	cmd.Flags().BoolVar(&p.allFeatures, "all-features", false, "enable every feature of the root package")
	cmd.MarkFlagsMutuallyExclusive("metadata", "manifest-path")
}

func (p *metadataParams) load(ctx context.Context) (*metadata.Graph, error) {
	var (
		md  *metadata.Metadata
		err error
	)
	if p.file != "" {
		md, err = metadata.LoadFile(p.file)
	} else {
		md, err = metadata.FromCargo(ctx, metadata.CargoOptions{
			Cargo:        p.cargo,
			ManifestPath: p.manifestPath,
			Offline:      p.offline,
			Locked:       p.locked,
			Features:     p.features,
			AllFeatures:  p.allFeatures,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	return metadata.NewGraph(md)
}

// New returns the root command.
func New() *cobra.Command {
	params := &globalParams{logLevel: logging.Info}

	root := &cobra.Command{
		Use:           "crate2gn",
		Short:         "Generate GN build rules for vendored Rust crates",
		Long:          "crate2gn converts the resolved dependency graph of a Cargo workspace into GN build rule documents, one per vendored crate epoch.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	params.addFlags(root.PersistentFlags())

	root.AddCommand(
		newGenCommand(params),
		newDepsCommand(params),
		newValidateCommand(params),
	)
	return root
}
