// Package gn turns resolved packages into the structured rule model rendered
// into BUILD.gn files. A package yields one rule per allowed binary, one library
// rule for normal dependents and one "buildrs_support" library rule for build
// script dependents.
package gn

import (
	"cmp"
	"fmt"
	"strings"
)

// BuildFile is the rule document of one crate epoch.
type BuildFile struct {
	Rules []Rule `json:"rules"`
}

// PackageID identifies the target a dependency group refers to.
type PackageID struct {
	// Name is the normalized package name.
	Name string `json:"name"`
	// Epoch is only set with the LibLiteral naming style, where it is part of
	// the target path.
	Epoch string `json:"epoch,omitempty"`
}

func (id PackageID) Compare(other PackageID) int {
	return cmp.Or(cmp.Compare(id.Name, other.Name), cmp.Compare(id.Epoch, other.Epoch))
}

// Visibility controls what may depend on a rule.
type Visibility struct {
	TestOnly bool `json:"testonly"`
	// Public rules carry no visibility constraint. Others are restricted to
	// other third-party crates.
	Public bool `json:"public"`
}

type RuleKind string

const (
	KindLibrary            RuleKind = "lib"
	KindBuildScriptSupport RuleKind = "buildrs_support"
	KindBinary             RuleKind = "bin"
)

type Rule struct {
	Name       string     `json:"name"`
	Kind       RuleKind   `json:"kind"`
	Visibility Visibility `json:"gn_visibility"`
	Detail     RuleDetail `json:"detail"`
}

// RuleDetail carries the arguments of a cargo_crate target.
type RuleDetail struct {
	CrateName           string         `json:"crate_name,omitempty"`
	Epoch               string         `json:"epoch,omitempty"`
	CrateType           string         `json:"crate_type"`
	CrateRoot           string         `json:"crate_root"`
	Sources             []string       `json:"sources"`
	Inputs              []string       `json:"inputs"`
	Edition             string         `json:"edition"`
	CargoPkgVersion     string         `json:"cargo_pkg_version"`
	CargoPkgAuthors     string         `json:"cargo_pkg_authors,omitempty"`
	CargoPkgName        string         `json:"cargo_pkg_name"`
	CargoPkgDescription string         `json:"cargo_pkg_description,omitempty"`
	Deps                []DepGroup     `json:"deps"`
	BuildDeps           []DepGroup     `json:"build_deps"`
	AliasedDeps         []Alias        `json:"aliased_deps"`
	Features            []string       `json:"features"`
	BuildRoot           string         `json:"build_root,omitempty"`
	BuildScriptSources  []string       `json:"build_script_sources"`
	BuildScriptInputs   []string       `json:"build_script_inputs"`
	BuildScriptOutputs  []string       `json:"build_script_outputs"`
	NativeLibs          []string       `json:"native_libs"`
	ExtraKV             map[string]any `json:"extra_kv"`
	// DepOnLib is set on binaries that depend on their package's library.
	DepOnLib bool `json:"dep_on_lib"`
}

// DepGroup is a set of dependencies sharing a condition.
type DepGroup struct {
	// Cond is the GN condition, or empty for unconditional dependencies.
	Cond     string      `json:"cond,omitempty"`
	Packages []PackageID `json:"packages"`
}

// Alias maps the name a crate imports a dependency as to the dependency's
// target.
type Alias struct {
	UseName string `json:"use_name"`
	Target  string `json:"target"`
}

func (a Alias) Compare(other Alias) int {
	return cmp.Or(cmp.Compare(a.UseName, other.UseName), cmp.Compare(a.Target, other.Target))
}

// NameLibStyle selects how library rules are named.
type NameLibStyle int

const (
	// PackageName names the library rule after the package and refers to
	// dependencies by name only.
	PackageName NameLibStyle = iota
	// LibLiteral names the library rule "lib", sets crate_name and epoch, and
	// refers to dependencies by name and epoch.
	LibLiteral
)

var NameLibStyleIds = map[NameLibStyle][]string{
	PackageName: {"package-name"},
	LibLiteral:  {"lib-literal"},
}

func (s NameLibStyle) String() string {
	return NameLibStyleIds[s][0]
}

// PathTranslator maps absolute paths to GN source-absolute paths.
type PathTranslator interface {
	ToRootRelative(path string) (string, error)
}

// BannedFeaturesError reports features enabled on a crate although its
// configuration bans them.
type BannedFeaturesError struct {
	Crate    string
	Features []string
}

func (err *BannedFeaturesError) Error() string {
	quoted := make([]string, len(err.Features))
	for i, f := range err.Features {
		quoted[i] = "`" + f + "`"
	}
	return fmt.Sprintf("the following crate features are enabled in crate `%s` despite being listed in `ban_features`: %s",
		err.Crate, strings.Join(quoted, ", "))
}
