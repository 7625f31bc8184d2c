package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"reflect"
	"slices"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/gobwas/glob"
	"github.com/goccy/go-yaml"

	"github.com/crate2gn/crate2gn/internal/group"
)

// Root is the top-level override configuration. Per-package settings live
// under `crate`, keyed by package name; `all_crates` applies to every package.
type Root struct {
	Resolve   Resolve                 `json:"resolve,omitzero"`
	AllCrates CrateConfig             `json:"all_crates,omitzero"`
	Crate     map[string]*CrateConfig `json:"crate,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// Resolve holds settings applied while walking the dependency graph.
type Resolve struct {
	// RemoveCrates names packages that are dropped from the graph entirely,
	// together with every edge leading to them.
	RemoveCrates StringSet `json:"remove_crates,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// CrateConfig holds the overrides for one package, or for all of them when
// used as Root.AllCrates.
type CrateConfig struct {
	BanFeatures                StringSet      `json:"ban_features,omitempty"`
	RemoveDeps                 StringSet      `json:"remove_deps,omitempty"`
	ExcludeDepsInGN            StringSet      `json:"exclude_deps_in_gn,omitempty"`
	BinTargets                 StringSet      `json:"bin_targets,omitempty"`
	BuildScriptOutputs         StringSet      `json:"build_script_outputs,omitempty"`
	RemoveBuildRS              bool           `json:"remove_build_rs,omitempty"`
	ExtraKV                    map[string]any `json:"extra_kv,omitempty"`
	Group                      *group.Group   `json:"group,omitempty" enum:"safe,sandbox,test"`
	ExtraSrcRoots              StringSet      `json:"extra_src_roots,omitempty"`
	ExtraInputRoots            StringSet      `json:"extra_input_roots,omitempty"`
	NativeLibsRoots            StringSet      `json:"native_libs_roots,omitempty"`
	ExtraBuildScriptSrcRoots   StringSet      `json:"extra_build_script_src_roots,omitempty"`
	ExtraBuildScriptInputRoots StringSet      `json:"extra_build_script_input_roots,omitempty"`
	ExcludedFiles              StringSet      `json:"excluded_files,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// Selector picks one list-valued setting out of a CrateConfig.
type Selector func(*CrateConfig) StringSet

var (
	BanFeatures                Selector = func(c *CrateConfig) StringSet { return c.BanFeatures }
	RemoveDeps                 Selector = func(c *CrateConfig) StringSet { return c.RemoveDeps }
	ExcludeDepsInGN            Selector = func(c *CrateConfig) StringSet { return c.ExcludeDepsInGN }
	BinTargets                 Selector = func(c *CrateConfig) StringSet { return c.BinTargets }
	BuildScriptOutputs         Selector = func(c *CrateConfig) StringSet { return c.BuildScriptOutputs }
	ExtraSrcRoots              Selector = func(c *CrateConfig) StringSet { return c.ExtraSrcRoots }
	ExtraInputRoots            Selector = func(c *CrateConfig) StringSet { return c.ExtraInputRoots }
	NativeLibsRoots            Selector = func(c *CrateConfig) StringSet { return c.NativeLibsRoots }
	ExtraBuildScriptSrcRoots   Selector = func(c *CrateConfig) StringSet { return c.ExtraBuildScriptSrcRoots }
	ExtraBuildScriptInputRoots Selector = func(c *CrateConfig) StringSet { return c.ExtraBuildScriptInputRoots }
	ExcludedFiles              Selector = func(c *CrateConfig) StringSet { return c.ExcludedFiles }
)

func (r *Root) UnmarshalYAML(bs []byte) error {
	type rawRoot Root // avoid recursive calls to UnmarshalYAML by type aliasing
	var raw rawRoot

	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	*r = Root(raw)
	return r.validate()
}

func (r *Root) UnmarshalJSON(bs []byte) error {
	type rawRoot Root // avoid recursive calls to UnmarshalJSON by type aliasing
	var raw rawRoot

	if err := json.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	*r = Root(raw)
	return r.validate()
}

func (r *Root) validate() error {
	if err := r.AllCrates.validate(); err != nil {
		return fmt.Errorf("all_crates: %w", err)
	}
	for _, name := range slices.Sorted(maps.Keys(r.Crate)) {
		if r.Crate[name] == nil {
			r.Crate[name] = &CrateConfig{}
		}
		if err := r.Crate[name].validate(); err != nil {
			return fmt.Errorf("crate %q: %w", name, err)
		}
	}
	return nil
}

func (c *CrateConfig) validate() error {
	for _, pattern := range c.ExcludedFiles {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("failed to compile excluded file pattern %q: %w", pattern, err)
		}
	}

	if c.Group != nil {
		if _, err := group.Parse(string(*c.Group)); err != nil {
			return err
		}
	}

	if _, err := decodeExtras(c.ExtraKV); err != nil {
		return fmt.Errorf("extra_kv: %w", err)
	}

	return nil
}

// CrateConfig returns the per-package settings for name. The result is never
// nil.
func (r *Root) CrateConfig(name string) *CrateConfig {
	if r != nil {
		if c, ok := r.Crate[name]; ok && c != nil {
			return c
		}
	}
	return &CrateConfig{}
}

// CombinedSet returns the union of the all_crates and per-package values of
// the selected setting, sorted and without duplicates.
func (r *Root) CombinedSet(name string, sel Selector) StringSet {
	if r == nil {
		return nil
	}
	var result StringSet
	for _, v := range sel(&r.AllCrates) {
		result = result.Add(v)
	}
	for _, v := range sel(r.CrateConfig(name)) {
		result = result.Add(v)
	}
	return result
}

// RemoveCrates returns the packages removed from the graph.
func (r *Root) RemoveCrates() StringSet {
	if r == nil {
		return nil
	}
	return r.Resolve.RemoveCrates
}

// Group returns the group explicitly configured for the package, if any.
func (r *Root) Group(name string) (group.Group, bool) {
	if r == nil {
		return "", false
	}
	if c := r.CrateConfig(name); c.Group != nil {
		return *c.Group, true
	}
	return "", false
}

// RemoveBuildRS reports whether the package's build script is dropped from the
// generated rules.
func (r *Root) RemoveBuildRS(name string) bool {
	if r == nil {
		return false
	}
	return r.AllCrates.RemoveBuildRS || r.CrateConfig(name).RemoveBuildRS
}

// ExtraKV returns the pass-through values for the package. Per-package values
// override those set under all_crates.
func (r *Root) ExtraKV(name string) map[string]any {
	if r == nil {
		return nil
	}
	if len(r.AllCrates.ExtraKV) == 0 && len(r.CrateConfig(name).ExtraKV) == 0 {
		return nil
	}
	kv := make(map[string]any)
	maps.Copy(kv, r.AllCrates.ExtraKV)
	maps.Copy(kv, r.CrateConfig(name).ExtraKV)
	return kv
}

// Extras returns the well-known pass-through values for the package.
func (r *Root) Extras(name string) (Extras, error) {
	return decodeExtras(r.ExtraKV(name))
}

// Extras are the entries of extra_kv that the generator itself interprets.
// Every entry, known or not, is still passed through to the output.
type Extras struct {
	// AllowFirstPartyUsage is read with FirstPartyUsage. It is kept raw since
	// only a bool overrides the default visibility.
	AllowFirstPartyUsage any      `json:"allow_first_party_usage"`
	RustFlags            []string `json:"rustflags"`
	RustEnv              []string `json:"rustenv"`

	Other map[string]any `json:",remain"`
}

// FirstPartyUsage returns whether the package's rules are visible outside the
// third-party tree, and whether allow_first_party_usage decides it at all.
func (e Extras) FirstPartyUsage() (allowed, set bool) {
	allowed, set = e.AllowFirstPartyUsage.(bool)
	return allowed, set
}

func decodeExtras(kv map[string]any) (Extras, error) {
	var e Extras
	if len(kv) == 0 {
		return e, nil
	}
	if err := decode(kv, &e); err != nil {
		return Extras{}, err
	}
	return e, nil
}

// we use this one so we don't need duplicate tags on every struct
func decode(input any, output any) error {
	config := &mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           output,
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}

// Equal reports whether r and other configure the same behavior. Sets compare
// without regard to order or duplicates, and a missing crate entry equals an
// empty one.
func (r *Root) Equal(other *Root) bool {
	if r == nil || other == nil {
		return r == other
	}
	if !r.Resolve.RemoveCrates.Equal(other.Resolve.RemoveCrates) || !r.AllCrates.Equal(&other.AllCrates) {
		return false
	}
	for name := range r.Crate {
		if !r.Crate[name].Equal(other.Crate[name]) {
			return false
		}
	}
	for name := range other.Crate {
		if !other.Crate[name].Equal(r.Crate[name]) {
			return false
		}
	}
	return true
}

func (c *CrateConfig) Equal(other *CrateConfig) bool {
	if c == nil {
		c = &CrateConfig{}
	}
	if other == nil {
		other = &CrateConfig{}
	}
	for _, sel := range selectors {
		if !sel(c).Equal(sel(other)) {
			return false
		}
	}
	sameGroup := c.Group == nil && other.Group == nil ||
		c.Group != nil && other.Group != nil && *c.Group == *other.Group
	return sameGroup &&
		c.RemoveBuildRS == other.RemoveBuildRS &&
		(len(c.ExtraKV) == 0 && len(other.ExtraKV) == 0 || reflect.DeepEqual(c.ExtraKV, other.ExtraKV))
}

var selectors = []Selector{
	BanFeatures, RemoveDeps, ExcludeDepsInGN, BinTargets, BuildScriptOutputs,
	ExtraSrcRoots, ExtraInputRoots, NativeLibsRoots,
	ExtraBuildScriptSrcRoots, ExtraBuildScriptInputRoots, ExcludedFiles,
}

type StringSet []string

func (a StringSet) Equal(b StringSet) bool {
	return slices.Equal(a.normalized(), b.normalized())
}

func (a StringSet) normalized() []string {
	s := slices.Clone(a)
	slices.Sort(s)
	return slices.Compact(s)
}

// Add inserts value into the sorted set a.
func (a StringSet) Add(value string) StringSet {
	i := sort.Search(len(a), func(i int) bool { return a[i] >= value })
	if i < len(a) && a[i] == value {
		return a
	}

	return slices.Insert(a, i, value)
}

func (a StringSet) Contains(value string) bool {
	return slices.Contains(a, value)
}

func Validate(data []byte) error {
	var config any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return err
	}

	if config == nil {
		config = map[string]any{}
	}

	return rootSchema.Validate(config)
}

func ParseFile(filename string) (root *Root, err error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	return Parse(bs)
}

func Parse(bs []byte) (*Root, error) {
	if err := Validate(bs); err != nil {
		return nil, err
	}

	var root Root
	if err := yaml.Unmarshal(bs, &root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &root, nil
}
