package gn

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/crate2gn/crate2gn/internal/config"
	"github.com/crate2gn/crate2gn/internal/crates"
	"github.com/crate2gn/crate2gn/internal/deps"
	"github.com/crate2gn/crate2gn/internal/group"
	"github.com/crate2gn/crate2gn/internal/metadata"
)

type Synthesizer struct {
	paths  PathTranslator
	config *config.Root
	style  NameLibStyle
}

func New(paths PathTranslator) *Synthesizer {
	return &Synthesizer{paths: paths}
}

func (s *Synthesizer) WithConfig(cfg *config.Root) *Synthesizer {
	s.config = cfg
	return s
}

func (s *Synthesizer) WithStyle(style NameLibStyle) *Synthesizer {
	s.style = style
	return s
}

// Rules returns the rules of pkg: binaries first, then the library rules for
// the normal and build dependency kinds the package is used with.
func (s *Synthesizer) Rules(pkg *deps.Package, files *crates.CrateFiles) ([]Rule, error) {
	if files == nil {
		files = &crates.CrateFiles{}
	}

	name := crates.NormalizedName(pkg.Name)
	epoch, err := crates.Epoch(pkg.Version)
	if err != nil {
		return nil, fmt.Errorf("crate %s: %w", pkg.Name, err)
	}

	kv := s.config.ExtraKV(pkg.Name)
	extras, err := s.config.Extras(pkg.Name)
	if err != nil {
		return nil, fmt.Errorf("crate %s: extra_kv: %w", pkg.Name, err)
	}
	public := pkg.IsToplevelDep
	if allowed, ok := extras.FirstPartyUsage(); ok {
		public = allowed
	}
	if kv == nil {
		kv = map[string]any{}
	}

	template := RuleDetail{
		Edition:             pkg.Edition,
		CargoPkgVersion:     pkg.Version,
		CargoPkgAuthors:     strings.Join(pkg.Authors, ", "),
		CargoPkgName:        pkg.Name,
		CargoPkgDescription: strings.TrimRight(pkg.Description, " \t\r\n"),
		AliasedDeps:         []Alias{},
		BuildScriptSources:  []string{},
		BuildScriptInputs:   []string{},
		BuildScriptOutputs:  []string{},
		ExtraKV:             kv,
	}

	excluded := s.config.CombinedSet(pkg.Name, config.ExcludeDepsInGN)
	keep := func(ds []deps.DepOfDep) []deps.DepOfDep {
		var result []deps.DepOfDep
		for _, d := range ds {
			if !excluded.Contains(d.PackageName) {
				result = append(result, d)
			}
		}
		return result
	}
	normalDeps := keep(pkg.Dependencies)
	buildDeps := keep(pkg.BuildDependencies)

	for _, d := range normalDeps {
		if target := crates.NormalizedName(d.PackageName); target != d.UseName {
			template.AliasedDeps = append(template.AliasedDeps, Alias{UseName: d.UseName, Target: ":" + target})
		}
	}
	slices.SortFunc(template.AliasedDeps, Alias.Compare)
	template.AliasedDeps = slices.Compact(template.AliasedDeps)

	if template.Deps, err = s.groupDeps(normalDeps); err != nil {
		return nil, fmt.Errorf("crate %s: %w", pkg.Name, err)
	}
	if template.BuildDeps, err = s.groupDeps(buildDeps); err != nil {
		return nil, fmt.Errorf("crate %s: %w", pkg.Name, err)
	}

	if template.Sources, err = s.translate(files.Sources); err != nil {
		return nil, err
	}
	if template.Inputs, err = s.translate(files.Inputs); err != nil {
		return nil, err
	}
	if template.NativeLibs, err = s.translate(files.NativeLibs); err != nil {
		return nil, err
	}

	normalFeatures := kindFeatures(pkg, metadata.Normal)
	buildFeatures := kindFeatures(pkg, metadata.Build)

	banned := s.config.CombinedSet(pkg.Name, config.BanFeatures)
	var enabled []string
	for _, f := range slices.Concat(normalFeatures, buildFeatures) {
		if banned.Contains(f) {
			enabled = append(enabled, f)
		}
	}
	if len(enabled) > 0 {
		slices.Sort(enabled)
		return nil, &BannedFeaturesError{Crate: pkg.Name, Features: slices.Compact(enabled)}
	}

	if pkg.BuildScript != "" && !s.config.RemoveBuildRS(pkg.Name) {
		if err := s.buildScript(&template, pkg, files); err != nil {
			return nil, err
		}
	}

	visibility := Visibility{TestOnly: pkg.Group == group.Test, Public: public}
	var rules []Rule

	for _, bin := range pkg.BinTargets {
		root, err := s.paths.ToRootRelative(bin.Root)
		if err != nil {
			return nil, err
		}

		detail := template.clone()
		detail.CrateType = "bin"
		detail.CrateRoot = root
		// Binaries are never used by build scripts.
		detail.Features = normalFeatures
		if pkg.LibTarget != nil {
			detail.DepOnLib = true
			if len(detail.Deps) == 0 {
				detail.Deps = []DepGroup{{Packages: []PackageID{}}}
			}
		}

		rules = append(rules, Rule{
			Name:       crates.NormalizedName(bin.Name),
			Kind:       KindBinary,
			Visibility: Visibility{TestOnly: visibility.TestOnly, Public: true},
			Detail:     detail,
		})
	}

	if lib := pkg.LibTarget; lib != nil {
		root, err := s.paths.ToRootRelative(lib.Root)
		if err != nil {
			return nil, err
		}

		// Dylibs are built as rlibs.
		crateType := lib.Type.String()
		if lib.Type == deps.Dylib {
			crateType = deps.Rlib.String()
		}

		for _, kind := range []metadata.DependencyKind{metadata.Normal, metadata.Build} {
			if _, ok := pkg.DependencyKinds[kind]; !ok {
				continue
			}

			detail := template.clone()
			detail.CrateType = crateType
			detail.CrateRoot = root

			rule := Rule{Visibility: visibility}
			switch kind {
			case metadata.Normal:
				rule.Kind = KindLibrary
				rule.Name = name
				if s.style == LibLiteral {
					rule.Name = "lib"
				}
				detail.Features = normalFeatures
			case metadata.Build:
				rule.Kind = KindBuildScriptSupport
				rule.Name = string(KindBuildScriptSupport)
				detail.Features = buildFeatures
			}
			if s.style == LibLiteral {
				detail.CrateName = name
				detail.Epoch = epoch
			}

			rule.Detail = detail
			rules = append(rules, rule)
		}
	}

	return rules, nil
}

func (s *Synthesizer) buildScript(detail *RuleDetail, pkg *deps.Package, files *crates.CrateFiles) error {
	root, err := s.paths.ToRootRelative(pkg.BuildScript)
	if err != nil {
		return err
	}
	detail.BuildRoot = root

	sources, err := s.translate(files.BuildScriptSources)
	if err != nil {
		return err
	}
	detail.BuildScriptSources = []string{root}
	for _, src := range sources {
		if src != root {
			detail.BuildScriptSources = append(detail.BuildScriptSources, src)
		}
	}

	if detail.BuildScriptInputs, err = s.translate(files.BuildScriptInputs); err != nil {
		return err
	}
	if outs := s.config.CrateConfig(pkg.Name).BuildScriptOutputs; len(outs) > 0 {
		detail.BuildScriptOutputs = slices.Clone([]string(outs))
	}
	return nil
}

func (s *Synthesizer) translate(paths []string) ([]string, error) {
	result := make([]string, 0, len(paths))
	for _, p := range paths {
		gn, err := s.paths.ToRootRelative(p)
		if err != nil {
			return nil, err
		}
		result = append(result, gn)
	}
	return result, nil
}

func (s *Synthesizer) packageID(d deps.DepOfDep) (PackageID, error) {
	id := PackageID{Name: crates.NormalizedName(d.PackageName)}
	if s.style == LibLiteral {
		epoch, err := crates.Epoch(d.Version)
		if err != nil {
			return PackageID{}, err
		}
		id.Epoch = epoch
	}
	return id, nil
}

// groupDeps groups dependencies by condition. The unconditional group comes
// first and is present, possibly empty, whenever there is any dependency.
func (s *Synthesizer) groupDeps(ds []deps.DepOfDep) ([]DepGroup, error) {
	if len(ds) == 0 {
		return []DepGroup{}, nil
	}

	groups := map[string][]PackageID{"": {}}
	for _, d := range ds {
		cond, _, err := d.Condition.Output()
		if err != nil {
			return nil, fmt.Errorf("error processing condition of dependency `%s`: %w", d.PackageName, err)
		}
		id, err := s.packageID(d)
		if err != nil {
			return nil, err
		}
		groups[cond] = append(groups[cond], id)
	}

	result := make([]DepGroup, 0, len(groups))
	for _, cond := range slices.Sorted(maps.Keys(groups)) {
		packages := groups[cond]
		slices.SortFunc(packages, PackageID.Compare)
		result = append(result, DepGroup{Cond: cond, Packages: packages})
	}
	return result, nil
}

func kindFeatures(pkg *deps.Package, kind metadata.DependencyKind) []string {
	info, ok := pkg.DependencyKinds[kind]
	if !ok {
		return []string{}
	}
	features := slices.Clone(info.Features)
	slices.Sort(features)
	features = slices.Compact(features)
	if features == nil {
		features = []string{}
	}
	return features
}

func (d RuleDetail) clone() RuleDetail {
	d.Deps = slices.Clone(d.Deps)
	return d
}
