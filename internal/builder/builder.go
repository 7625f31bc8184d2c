// Package builder runs the generation pipeline: it resolves the dependency
// graph of a root package, collects the files of every resolved crate,
// synthesizes its rules and writes one rule document per crate epoch.
package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/akedrou/textdiff"
	"github.com/goccy/go-yaml"
	"golang.org/x/sync/errgroup"

	"github.com/crate2gn/crate2gn/internal/condition"
	"github.com/crate2gn/crate2gn/internal/config"
	"github.com/crate2gn/crate2gn/internal/crates"
	"github.com/crate2gn/crate2gn/internal/deps"
	"github.com/crate2gn/crate2gn/internal/gn"
	"github.com/crate2gn/crate2gn/internal/logging"
	"github.com/crate2gn/crate2gn/internal/metadata"
	"github.com/crate2gn/crate2gn/internal/metrics"
	"github.com/crate2gn/crate2gn/internal/progress"
)

// Format selects the encoding of the rule documents.
type Format int

const (
	YAML Format = iota
	JSON
)

var FormatIds = map[Format][]string{
	YAML: {"yaml", "yml"},
	JSON: {"json"},
}

func (f Format) extension() string {
	if f == JSON {
		return "json"
	}
	return "yaml"
}

// PackageError is the failure to generate the rules of one package.
type PackageError struct {
	Crate crates.VendoredCrate
	Err   error
}

func (err *PackageError) Error() string {
	return fmt.Sprintf("crate %s: %v", err.Crate, err.Err)
}

func (err *PackageError) Unwrap() error {
	return err.Err
}

// StaleError is returned in check mode when generated documents differ from
// the ones on disk.
type StaleError struct {
	Files []string
}

func (err *StaleError) Error() string {
	return fmt.Sprintf("%d generated file(s) out of date:\n%s", len(err.Files), strings.Join(err.Files, "\n"))
}

// ConflictError is returned when several packages map to the same output
// document, such as a path and a registry copy of one crate epoch.
type ConflictError struct {
	Path   string
	Crates []crates.VendoredCrate
}

func (err *ConflictError) Error() string {
	names := make([]string, len(err.Crates))
	for i, c := range err.Crates {
		names[i] = c.String()
	}
	return fmt.Sprintf("packages %s would all be written to %s", strings.Join(names, ", "), err.Path)
}

// Document is the generated rule document of one crate epoch.
type Document struct {
	Crate crates.VendoredCrate
	// Path is the output path, relative to the output directory.
	Path    string
	Content []byte
}

// Result summarizes a generation run.
type Result struct {
	Packages  []*deps.Package
	Documents []Document
	// Skipped lists the local packages no document was generated for.
	Skipped []crates.VendoredCrate
}

type Builder struct {
	graph        *metadata.Graph
	config       *config.Root
	paths        gn.PathTranslator
	style        gn.NameLibStyle
	format       Format
	outDir       string
	check        bool
	keepGoing    bool
	includeLocal bool
	concurrency  int
	dirFS        func(dir string) fs.FS
	diff         io.Writer
	log          *logging.Logger
	bar          *progress.Bar
}

func New(g *metadata.Graph, paths gn.PathTranslator) *Builder {
	return &Builder{
		graph:       g,
		paths:       paths,
		concurrency: 8,
		dirFS:       os.DirFS,
		diff:        io.Discard,
		log:         logging.NewNoOpLogger(),
	}
}

func (b *Builder) WithConfig(cfg *config.Root) *Builder {
	b.config = cfg
	return b
}

func (b *Builder) WithStyle(style gn.NameLibStyle) *Builder {
	b.style = style
	return b
}

func (b *Builder) WithFormat(format Format) *Builder {
	b.format = format
	return b
}

func (b *Builder) WithOutputDir(dir string) *Builder {
	b.outDir = dir
	return b
}

// WithCheck makes Build compare the generated documents with the ones on disk
// instead of writing them. Differences are written to diff as unified diffs.
func (b *Builder) WithCheck(check bool, diff io.Writer) *Builder {
	b.check = check
	if diff != nil {
		b.diff = diff
	}
	return b
}

// WithKeepGoing makes Build generate every package it can, and report all
// failures at the end, instead of stopping at the first failing package.
func (b *Builder) WithKeepGoing(keepGoing bool) *Builder {
	b.keepGoing = keepGoing
	return b
}

// WithIncludeLocal also generates documents for packages resolved from a local
// path, which usually carry hand-written build files.
func (b *Builder) WithIncludeLocal(includeLocal bool) *Builder {
	b.includeLocal = includeLocal
	return b
}

func (b *Builder) WithConcurrency(n int) *Builder {
	b.concurrency = max(n, 1)
	return b
}

// WithDirFS replaces os.DirFS for reading crate directories.
func (b *Builder) WithDirFS(dirFS func(dir string) fs.FS) *Builder {
	b.dirFS = dirFS
	return b
}

func (b *Builder) WithLogger(log *logging.Logger) *Builder {
	b.log = log
	return b
}

func (b *Builder) WithProgress(bar *progress.Bar) *Builder {
	b.bar = bar
	return b
}

// Resolve returns the packages reachable from root.
func (b *Builder) Resolve(root string) ([]*deps.Package, error) {
	startTime := time.Now()
	pkgs, err := deps.New(b.graph).WithConfig(b.config).WithLogger(b.log).Resolve(root)
	if err != nil {
		return nil, err
	}
	metrics.Resolved(root, len(pkgs), startTime)
	b.log.Debugf("resolved %d packages from %s", len(pkgs), root)
	return pkgs, nil
}

// Build runs the whole pipeline for root. Structural errors abort the run
// before anything is written. Package failures abort it too, unless keep-going
// is set, in which case the documents of every other package are still
// written and the failures are returned joined.
func (b *Builder) Build(ctx context.Context, root string) (*Result, error) {
	pkgs, err := b.Resolve(root)
	if err != nil {
		return nil, err
	}
	return b.BuildPackages(ctx, pkgs)
}

// BuildPackages generates and outputs the documents of already resolved
// packages.
func (b *Builder) BuildPackages(ctx context.Context, pkgs []*deps.Package) (*Result, error) {
	startTime := time.Now()
	defer metrics.Generated(startTime)

	result := &Result{Packages: pkgs}
	synth := gn.New(b.paths).WithConfig(b.config).WithStyle(b.style)

	var failures []error
	for _, pkg := range pkgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if pkg.IsLocal && !b.includeLocal {
			result.Skipped = append(result.Skipped, pkg.CrateID())
			b.bar.Add(1)
			continue
		}

		doc, err := b.document(synth, pkg)
		b.bar.Add(1)
		if err != nil {
			metrics.PackageFailed(pkg.Name, errorType(err))
			pkgErr := &PackageError{Crate: pkg.CrateID(), Err: err}
			if !b.keepGoing {
				return nil, pkgErr
			}
			b.log.With("crate", pkg.CrateID().String()).Warnf("failed to generate rules: %v", err)
			failures = append(failures, pkgErr)
			continue
		}
		result.Documents = append(result.Documents, doc)
	}
	b.bar.Finish()

	if len(failures) > 0 {
		b.log.Errorf("failed to generate rules for %d of %d packages", len(failures), len(pkgs))
	}
	if err := conflicts(result.Documents); err != nil {
		return result, errors.Join(append(failures, err)...)
	}
	if err := b.output(ctx, result.Documents); err != nil {
		return result, errors.Join(append(failures, err)...)
	}
	return result, errors.Join(failures...)
}

func conflicts(docs []Document) error {
	owners := make(map[string][]crates.VendoredCrate, len(docs))
	for _, doc := range docs {
		owners[doc.Path] = append(owners[doc.Path], doc.Crate)
	}
	for _, path := range slices.Sorted(maps.Keys(owners)) {
		if cs := owners[path]; len(cs) > 1 {
			slices.SortFunc(cs, crates.VendoredCrate.Compare)
			return &ConflictError{Path: path, Crates: cs}
		}
	}
	return nil
}

func (b *Builder) document(synth *gn.Synthesizer, pkg *deps.Package) (Document, error) {
	crate := pkg.CrateID()
	epoch, err := crate.Epoch()
	if err != nil {
		return Document{}, err
	}

	files, err := b.collectFiles(pkg)
	if err != nil {
		return Document{}, err
	}

	rules, err := synth.Rules(pkg, files)
	if err != nil {
		return Document{}, err
	}
	for _, r := range rules {
		metrics.RuleGenerated(string(r.Kind))
	}

	file := &gn.BuildFile{Rules: rules}
	if file.Rules == nil {
		file.Rules = []gn.Rule{}
	}
	content, err := b.encode(file)
	if err != nil {
		return Document{}, err
	}

	return Document{
		Crate:   crate,
		Path:    filepath.Join(crate.NormalizedName(), epoch, "BUILD."+b.format.extension()),
		Content: content,
	}, nil
}

func (b *Builder) collectFiles(pkg *deps.Package) (*crates.CrateFiles, error) {
	if pkg.ManifestDir == "" {
		return &crates.CrateFiles{}, nil
	}

	var roots []string
	if pkg.LibTarget != nil {
		roots = append(roots, pkg.LibTarget.Root)
	}
	for _, bin := range pkg.BinTargets {
		roots = append(roots, bin.Root)
	}

	buildScript := pkg.BuildScript
	if b.config.RemoveBuildRS(pkg.Name) {
		buildScript = ""
	}

	set := func(sel config.Selector) []string {
		return b.config.CombinedSet(pkg.Name, sel)
	}
	return crates.CollectFiles(b.dirFS(pkg.ManifestDir), pkg.ManifestDir, roots, buildScript, crates.FileRoots{
		ExtraSrcRoots:              set(config.ExtraSrcRoots),
		ExtraInputRoots:            set(config.ExtraInputRoots),
		NativeLibsRoots:            set(config.NativeLibsRoots),
		ExtraBuildScriptSrcRoots:   set(config.ExtraBuildScriptSrcRoots),
		ExtraBuildScriptInputRoots: set(config.ExtraBuildScriptInputRoots),
		ExcludedFiles:              set(config.ExcludedFiles),
	})
}

func (b *Builder) encode(file *gn.BuildFile) ([]byte, error) {
	if b.format == JSON {
		bs, err := json.MarshalIndent(file, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(bs, '\n'), nil
	}
	return yaml.MarshalWithOptions(file, yaml.IndentSequence(true))
}

// output writes the documents, or compares them with the files on disk in
// check mode.
func (b *Builder) output(ctx context.Context, docs []Document) error {
	if b.check {
		return b.compare(docs)
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, doc := range docs {
		g.Go(func() error {
			return b.write(doc)
		})
	}
	return g.Wait()
}

func (b *Builder) write(doc Document) error {
	path := filepath.Join(b.outDir, doc.Path)
	if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, doc.Content) {
		metrics.FileProcessed("unchanged")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, doc.Content, 0o644); err != nil {
		return err
	}
	metrics.FileProcessed("written")
	b.log.Debugf("wrote %s", path)
	return nil
}

func (b *Builder) compare(docs []Document) error {
	var stale []string
	for _, doc := range docs {
		path := filepath.Join(b.outDir, doc.Path)
		old, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if bytes.Equal(old, doc.Content) {
			metrics.FileProcessed("unchanged")
			continue
		}

		metrics.FileProcessed("stale")
		stale = append(stale, doc.Path)
		fmt.Fprint(b.diff, textdiff.Unified("a/"+filepath.ToSlash(doc.Path), "b/"+filepath.ToSlash(doc.Path), string(old), string(doc.Content)))
	}

	if len(stale) > 0 {
		slices.Sort(stale)
		return &StaleError{Files: stale}
	}
	return nil
}

func errorType(err error) string {
	var (
		banned      *gn.BannedFeaturesError
		unsupported *condition.UnsupportedError
		pathErr     *fs.PathError
	)
	switch {
	case errors.As(err, &banned):
		return "banned_features"
	case errors.As(err, &unsupported):
		return "unsupported_condition"
	case errors.As(err, &pathErr):
		return "files"
	default:
		return "other"
	}
}
