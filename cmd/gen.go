package cmd

import (
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"

	"github.com/crate2gn/crate2gn/internal/builder"
	"github.com/crate2gn/crate2gn/internal/gn"
	"github.com/crate2gn/crate2gn/internal/metrics"
	"github.com/crate2gn/crate2gn/internal/paths"
	"github.com/crate2gn/crate2gn/internal/progress"
)

type genParams struct {
	metadataParams
	root         string
	buildRoot    string
	outputDir    string
	format       builder.Format
	libNaming    gn.NameLibStyle
	check        bool
	keepGoing    bool
	includeLocal bool
	concurrency  int
	metricsFile  string
	noProgress   bool
}

func newGenCommand(global *globalParams) *cobra.Command {
	params := &genParams{}

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate rule documents for every crate reachable from the root package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGen(cmd, global, params)
		},
	}

	params.addFlags(cmd)
	cmd.Flags().StringVar(&params.root, "root", "", "name of the package to resolve from")
	cmd.Flags().StringVar(&params.buildRoot, "build-root", ".", "root of the GN source tree; generated paths are relative to it")
	cmd.Flags().StringVarP(&params.outputDir, "output", "o", "third_party/rust", "directory the rule documents are written to")
	cmd.Flags().Var(enumflag.New(&params.format, "format", builder.FormatIds, enumflag.EnumCaseInsensitive), "format", "rule document format: yaml or json")
	cmd.Flags().Var(enumflag.New(&params.libNaming, "style", gn.NameLibStyleIds, enumflag.EnumCaseInsensitive), "lib-naming", "library rule naming: package-name or lib-literal")
	cmd.Flags().BoolVar(&params.check, "check", false, "compare with the documents on disk instead of writing them, and fail if they differ")
	cmd.Flags().BoolVar(&params.keepGoing, "keep-going", false, "generate every crate possible and report all failures")
	cmd.Flags().BoolVar(&params.includeLocal, "include-local", false, "also generate documents for path dependencies")
	cmd.Flags().IntVar(&params.concurrency, "concurrency", 8, "number of documents written concurrently")
	cmd.Flags().StringVar(&params.metricsFile, "metrics-file", "", "write Prometheus metrics to this file when done")
	cmd.Flags().BoolVar(&params.noProgress, "no-progress", false, "never show a progress bar")
	_ = cmd.MarkFlagRequired("root")

	return cmd
}

func runGen(cmd *cobra.Command, global *globalParams, params *genParams) error {
	ctx := cmd.Context()
	log := global.logger()

	cfg, err := global.loadConfig()
	if err != nil {
		return err
	}

	g, err := params.load(ctx)
	if err != nil {
		return err
	}

	translator, err := paths.NewTranslator(params.buildRoot)
	if err != nil {
		return err
	}

	// The output directory is taken relative to the build root, like every
	// other path in the documents.
	outDir := params.outputDir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(translator.BuildRoot, outDir)
	}

	b := builder.New(g, translator).
		WithConfig(cfg).
		WithStyle(params.libNaming).
		WithFormat(params.format).
		WithOutputDir(outDir).
		WithCheck(params.check, cmd.OutOrStdout()).
		WithKeepGoing(params.keepGoing).
		WithIncludeLocal(params.includeLocal).
		WithConcurrency(params.concurrency).
		WithLogger(log)

	pkgs, err := b.Resolve(params.root)
	if err != nil {
		return err
	}
	visible := !params.noProgress && isatty.IsTerminal(os.Stderr.Fd())
	b = b.WithProgress(progress.New(len(pkgs), "generating", visible))

	result, err := b.BuildPackages(ctx, pkgs)

	if params.metricsFile != "" {
		if merr := metrics.WriteToTextfile(params.metricsFile); merr != nil {
			log.Warnf("failed to write metrics to %s: %v", params.metricsFile, merr)
		}
	}

	if result != nil {
		verb := "wrote"
		if params.check {
			verb = "checked"
		}
		log.Infof("%s %d documents for %d packages under %s", verb, len(result.Documents), len(result.Packages), outDir)
	}
	return err
}
