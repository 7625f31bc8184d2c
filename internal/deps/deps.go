// Package deps walks the resolved cargo dependency graph from a root package
// and produces one record per reachable package, with the conditions under
// which each package is needed and the edges it contributes to the build.
package deps

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/crate2gn/crate2gn/internal/condition"
	"github.com/crate2gn/crate2gn/internal/config"
	"github.com/crate2gn/crate2gn/internal/crates"
	"github.com/crate2gn/crate2gn/internal/group"
	"github.com/crate2gn/crate2gn/internal/logging"
	"github.com/crate2gn/crate2gn/internal/metadata"
)

// Package is a third-party package reached from the root, with everything
// needed to generate its rules.
type Package struct {
	ID          metadata.PackageID
	Name        string
	Version     string
	Description string
	Authors     []string
	Edition     string
	ManifestDir string

	// DependencyKinds records, for each way the package is depended on
	// (normal or build), when it is needed and with which features.
	DependencyKinds map[metadata.DependencyKind]*KindInfo

	Dependencies      []DepOfDep
	BuildDependencies []DepOfDep

	LibTarget   *LibTarget
	BinTargets  []BinTarget
	BuildScript string

	Group group.Group
	// IsLocal is set for packages resolved from a path rather than a registry
	// or git source.
	IsLocal bool
	// IsToplevelDep is set for direct dependencies of the workspace root.
	IsToplevelDep bool
}

func (p *Package) CrateID() crates.VendoredCrate {
	return crates.VendoredCrate{Name: p.Name, Version: p.Version}
}

type KindInfo struct {
	Condition condition.Condition
	// Features enabled on the package, without "default".
	Features []string
}

// DepOfDep is an edge from a package to one of its own dependencies.
type DepOfDep struct {
	PackageName string
	// UseName is the name the dependent imports the package as.
	UseName   string
	Version   string
	Condition condition.Condition
}

func (d DepOfDep) CrateID() crates.VendoredCrate {
	return crates.VendoredCrate{Name: d.PackageName, Version: d.Version}
}

type LibType int

const (
	Rlib LibType = iota
	Dylib
	Cdylib
	ProcMacro
)

func (t LibType) String() string {
	switch t {
	case Dylib:
		return "dylib"
	case Cdylib:
		return "cdylib"
	case ProcMacro:
		return "proc-macro"
	}
	return "rlib"
}

type LibTarget struct {
	Root string
	Type LibType
}

type BinTarget struct {
	Root string
	Name string
}

// RootNotFoundError is returned when the requested root name matches no
// package, or more than one.
type RootNotFoundError struct {
	Name    string
	Matches []metadata.PackageID
}

func (err *RootNotFoundError) Error() string {
	if len(err.Matches) == 0 {
		return fmt.Sprintf("couldn't find the root package %q: no package with this name", err.Name)
	}
	ids := make([]string, len(err.Matches))
	for i, id := range err.Matches {
		ids[i] = string(id)
	}
	return fmt.Sprintf("couldn't find the root package %q: more than one package with this name: %s", err.Name, strings.Join(ids, ", "))
}

type Resolver struct {
	graph      *metadata.Graph
	config     *config.Root
	classifier group.Classifier
	log        *logging.Logger
}

func New(g *metadata.Graph) *Resolver {
	return &Resolver{graph: g}
}

func (r *Resolver) WithConfig(cfg *config.Root) *Resolver {
	r.config = cfg
	return r
}

// WithClassifier replaces the default group.Inherited classifier.
func (r *Resolver) WithClassifier(c group.Classifier) *Resolver {
	r.classifier = c
	return r
}

func (r *Resolver) WithLogger(log *logging.Logger) *Resolver {
	r.log = log
	return r
}

// Root returns the id of the single package called name.
func (r *Resolver) Root(name string) (metadata.PackageID, error) {
	ids := r.graph.FindByName(name)
	if len(ids) != 1 {
		return "", &RootNotFoundError{Name: name, Matches: ids}
	}
	return ids[0], nil
}

// Resolve returns every package reachable from the package called rootName,
// sorted by name and version. The workspace root of the export, if any, is
// walked but not returned.
func (r *Resolver) Resolve(rootName string) ([]*Package, error) {
	if r.log == nil {
		r.log = logging.NewNoOpLogger()
	}

	rootID, err := r.Root(rootName)
	if err != nil {
		return nil, err
	}
	rootNode, err := r.graph.Node(rootID)
	if err != nil {
		return nil, err
	}

	// Without a workspace root (a virtual manifest) the requested root stands
	// in for it, but is still returned.
	workspaceRoot := rootNode
	var skip metadata.PackageID
	if n := r.graph.RootNode(); n != nil {
		workspaceRoot = n
		skip = n.ID
	}

	classifier := r.classifier
	if classifier == nil {
		roots := []metadata.PackageID{rootID}
		if workspaceRoot.ID != rootID {
			roots = append(roots, workspaceRoot.ID)
		}
		classifier = group.NewInherited(r.config.Group, roots...)
	}

	t := &traversal{
		resolver: r,
		skip:     skip,
		visited:  make(map[metadata.PackageID]struct{}),
		packages: make(map[metadata.PackageID]*Package),
	}
	if err := t.explore(rootNode); err != nil {
		return nil, err
	}

	result := make([]*Package, 0, len(t.packages))
	for id, pkg := range t.packages {
		if err := r.fill(pkg, id, workspaceRoot, classifier); err != nil {
			return nil, err
		}
		if r.config.RemoveCrates().Contains(pkg.Name) {
			r.log.Debugf("removing package %s", pkg.CrateID())
			continue
		}
		result = append(result, pkg)
	}

	slices.SortFunc(result, func(a, b *Package) int {
		return a.CrateID().Compare(b.CrateID())
	})
	return result, nil
}

type edge struct {
	pkg       metadata.PackageID
	useName   string
	kind      metadata.DependencyKind
	condition condition.Condition
}

// edges returns the dependency edges of node that take part in the build.
// Edges for platforms that are never built, development and unknown edges,
// repeated (kind, platform) pairs and edges to removed packages are dropped.
func (r *Resolver) edges(node *metadata.Node) ([]edge, error) {
	owner, err := r.graph.Package(node.ID)
	if err != nil {
		return nil, err
	}
	removed := r.config.CombinedSet(owner.Name, config.RemoveDeps)
	removedCrates := r.config.RemoveCrates()

	type kindTarget struct {
		kind   metadata.DependencyKind
		target string
	}

	var result []edge
	for _, nd := range node.Deps {
		target, err := r.graph.Package(nd.Pkg)
		if err != nil {
			return nil, err
		}
		if removed.Contains(target.Name) || removedCrates.Contains(target.Name) {
			r.log.Debugf("dropping edge %s -> %s: removed by configuration", owner.Name, target.Name)
			continue
		}

		seen := make(map[kindTarget]struct{})
		for _, dk := range nd.DepKinds {
			cond := condition.AlwaysTrue
			key := kindTarget{kind: dk.Kind}
			if dk.Target != nil {
				cond = condition.FromPlatform(*dk.Target)
				key.target = dk.Target.String()
			}

			if cond == condition.AlwaysFalse {
				r.log.Debugf("dropping edge %s -> %s: platform %s is never built", owner.Name, target.Name, dk.Target)
				continue
			}
			if dk.Kind == metadata.Development || dk.Kind == metadata.Unknown {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			result = append(result, edge{pkg: nd.Pkg, useName: nd.Name, kind: dk.Kind, condition: cond})
		}
	}
	return result, nil
}

type traversal struct {
	resolver *Resolver
	skip     metadata.PackageID
	visited  map[metadata.PackageID]struct{}
	packages map[metadata.PackageID]*Package
}

func (t *traversal) entry(id metadata.PackageID) *Package {
	pkg, ok := t.packages[id]
	if !ok {
		pkg = &Package{ID: id, DependencyKinds: make(map[metadata.DependencyKind]*KindInfo)}
		t.packages[id] = pkg
	}
	return pkg
}

func (t *traversal) explore(node *metadata.Node) error {
	if _, ok := t.visited[node.ID]; ok {
		return nil
	}
	t.visited[node.ID] = struct{}{}

	edges, err := t.resolver.edges(node)
	if err != nil {
		return err
	}

	for _, e := range edges {
		target, err := t.resolver.graph.Node(e.pkg)
		if err != nil {
			return err
		}
		if err := t.explore(target); err != nil {
			return err
		}

		dep := t.entry(e.pkg)
		info, ok := dep.DependencyKinds[e.kind]
		if !ok {
			info = &KindInfo{Condition: condition.AlwaysFalse}
			dep.DependencyKinds[e.kind] = info
		}
		info.Condition = condition.Or(info.Condition, e.condition)
	}

	if node.ID != t.skip {
		t.entry(node.ID)
	}
	return nil
}

type targetType int

const (
	targetLib targetType = iota
	targetBin
	targetBuildScript
)

func classifyTarget(kinds []string) (targetType, LibType, bool) {
	for _, k := range kinds {
		switch k {
		case "lib", "rlib":
			return targetLib, Rlib, true
		case "dylib":
			return targetLib, Dylib, true
		case "cdylib":
			return targetLib, Cdylib, true
		case "proc-macro":
			return targetLib, ProcMacro, true
		case "bin":
			return targetBin, 0, true
		case "custom-build":
			return targetBuildScript, 0, true
		}
	}
	return 0, 0, false
}

func (r *Resolver) fill(dep *Package, id metadata.PackageID, workspaceRoot *metadata.Node, classifier group.Classifier) error {
	node, err := r.graph.Node(id)
	if err != nil {
		return err
	}
	pkg, err := r.graph.Package(id)
	if err != nil {
		return err
	}

	dep.Name = pkg.Name
	dep.Version = pkg.Version
	dep.Description = pkg.Description
	dep.Authors = pkg.Authors
	dep.Edition = pkg.Edition
	if pkg.ManifestPath != "" {
		dep.ManifestDir = filepath.Dir(pkg.ManifestPath)
	}

	for kind, info := range dep.DependencyKinds {
		if info.Condition == condition.AlwaysFalse {
			return fmt.Errorf("%w: %s is only reachable on platforms that are never built (%s)", metadata.ErrCorrupt, dep.CrateID(), kind)
		}
		info.Features = withoutDefault(node.Features)
	}

	bins := r.config.CombinedSet(pkg.Name, config.BinTargets)
	for _, target := range pkg.Targets {
		typ, lib, ok := classifyTarget(target.Kind)
		if !ok {
			continue
		}
		switch typ {
		case targetLib:
			if dep.LibTarget != nil {
				return fmt.Errorf("%w: %s has duplicate lib targets %s and %s", metadata.ErrCorrupt, dep.CrateID(), dep.LibTarget.Root, target.SrcPath)
			}
			dep.LibTarget = &LibTarget{Root: target.SrcPath, Type: lib}
		case targetBin:
			if bins.Contains(target.Name) {
				dep.BinTargets = append(dep.BinTargets, BinTarget{Root: target.SrcPath, Name: target.Name})
			}
		case targetBuildScript:
			if dep.BuildScript != "" {
				return fmt.Errorf("%w: %s has duplicate build scripts %s and %s", metadata.ErrCorrupt, dep.CrateID(), dep.BuildScript, target.SrcPath)
			}
			dep.BuildScript = target.SrcPath
		}
	}

	edges, err := r.edges(node)
	if err != nil {
		return err
	}
	for _, e := range edges {
		target, err := r.graph.Package(e.pkg)
		if err != nil {
			return err
		}
		d := DepOfDep{
			PackageName: target.Name,
			UseName:     e.useName,
			Version:     target.Version,
			Condition:   e.condition,
		}
		switch e.kind {
		case metadata.Normal:
			dep.Dependencies = append(dep.Dependencies, d)
		case metadata.Build:
			dep.BuildDependencies = append(dep.BuildDependencies, d)
		}
	}

	dep.Group = classifier.Classify(r.graph, id)
	dep.IsLocal = pkg.Source == ""
	dep.IsToplevelDep = slices.Contains(workspaceRoot.Dependencies, id)
	return nil
}

func withoutDefault(features []string) []string {
	result := slices.Clone(features)
	if i := slices.Index(result, "default"); i >= 0 {
		result = slices.Delete(result, i, i+1)
	}
	if result == nil {
		result = []string{}
	}
	return result
}
