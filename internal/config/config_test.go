package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/google/go-cmp/cmp"

	"github.com/crate2gn/crate2gn/internal/config"
	"github.com/crate2gn/crate2gn/internal/group"
)

func TestParse(t *testing.T) {

	result, err := config.Parse([]byte(`
resolve:
  remove_crates: [cc, winapi]
all_crates:
  ban_features: [nightly]
  extra_kv:
    rustflags: [--cap-lints=warn]
crate:
  serde:
    ban_features: [std, alloc]
    remove_deps: [serde_derive]
    group: sandbox
    extra_kv:
      allow_first_party_usage: true
  empty:
`))
	if err != nil {
		t.Fatal(err)
	}

	if exp, got := (config.StringSet{"alloc", "nightly", "std"}), result.CombinedSet("serde", config.BanFeatures); !exp.Equal(got) {
		t.Fatalf("expected %v, got %v", exp, got)
	}

	if exp, got := (config.StringSet{"nightly"}), result.CombinedSet("other", config.BanFeatures); !exp.Equal(got) {
		t.Fatalf("expected %v, got %v", exp, got)
	}

	if g, ok := result.Group("serde"); !ok || g != group.Sandbox {
		t.Fatalf("expected sandbox group, got %v (%v)", g, ok)
	}

	if _, ok := result.Group("empty"); ok {
		t.Fatal("expected no group for empty crate config")
	}

	extras, err := result.Extras("serde")
	if err != nil {
		t.Fatal(err)
	}
	if allowed, set := extras.FirstPartyUsage(); !allowed || !set {
		t.Fatal("expected allow_first_party_usage to be set")
	}
	if diff := cmp.Diff([]string{"--cap-lints=warn"}, extras.RustFlags); diff != "" {
		t.Fatalf("unexpected rustflags (-want +got):\n%s", diff)
	}

	if !result.RemoveCrates().Contains("winapi") {
		t.Fatalf("expected winapi to be removed, got %v", result.RemoveCrates())
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		note string
		doc  string
		exp  string
	}{
		{
			note: "unknown top-level key",
			doc:  `crates: {}`,
			exp:  "crates",
		},
		{
			note: "unknown crate key",
			doc:  `crate: {foo: {ban_feature: [x]}}`,
			exp:  "ban_feature",
		},
		{
			note: "bad group",
			doc:  `crate: {foo: {group: trusted}}`,
			exp:  "group",
		},
		{
			note: "bad glob",
			doc:  `crate: {foo: {excluded_files: ["[a-"]}}`,
			exp:  "failed to compile excluded file pattern",
		},
		{
			note: "bad extra_kv type",
			doc:  `crate: {foo: {extra_kv: {rustflags: {a: b}}}}`,
			exp:  "extra_kv",
		},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			_, err := config.Parse([]byte(tc.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.exp) {
				t.Fatalf("expected error containing %q, got %v", tc.exp, err)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	result, err := config.Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Equal(&config.Root{}) {
		t.Fatalf("expected empty config, got %+v", result)
	}
}

func TestNilRoot(t *testing.T) {
	var r *config.Root
	if got := r.CombinedSet("foo", config.RemoveDeps); len(got) != 0 {
		t.Fatalf("expected empty set, got %v", got)
	}
	if r.RemoveBuildRS("foo") {
		t.Fatal("expected build script to be kept")
	}
	if r.CrateConfig("foo") == nil {
		t.Fatal("expected non-nil crate config")
	}
}

func TestMarshallingRoundtrip(t *testing.T) {

	cfg, err := config.Parse([]byte(`
resolve:
  remove_crates: [foo]
crate:
  bar:
    bin_targets: [bar-cli]
    remove_build_rs: true
    excluded_files: ["tests/**"]
    group: test
`))
	if err != nil {
		t.Fatal(err)
	}

	bs, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}

	cfg2, err := config.Parse(bs)
	if err != nil {
		t.Fatal(err)
	}

	if !cfg.Equal(cfg2) {
		t.Fatalf("expected configs to be equal:\n%s", bs)
	}
}

func TestEqual(t *testing.T) {
	safe, test := group.Safe, group.Test
	base := func() *config.Root {
		return &config.Root{
			Resolve: config.Resolve{RemoveCrates: config.StringSet{"a", "b"}},
			Crate: map[string]*config.CrateConfig{
				"serde": {BanFeatures: config.StringSet{"std"}, Group: &safe},
				"empty": nil,
			},
		}
	}

	tests := []struct {
		note   string
		modify func(*config.Root)
		exp    bool
	}{
		{note: "identical", modify: func(*config.Root) {}, exp: true},
		{note: "set order and duplicates", modify: func(r *config.Root) {
			r.Resolve.RemoveCrates = config.StringSet{"b", "a", "b"}
		}, exp: true},
		{note: "missing entry equals empty entry", modify: func(r *config.Root) {
			delete(r.Crate, "empty")
		}, exp: true},
		{note: "empty extra_kv", modify: func(r *config.Root) {
			r.Crate["serde"].ExtraKV = map[string]any{}
		}, exp: true},
		{note: "different group", modify: func(r *config.Root) {
			r.Crate["serde"].Group = &test
		}, exp: false},
		{note: "group unset", modify: func(r *config.Root) {
			r.Crate["serde"].Group = nil
		}, exp: false},
		{note: "extra crate", modify: func(r *config.Root) {
			r.Crate["libc"] = &config.CrateConfig{RemoveBuildRS: true}
		}, exp: false},
		{note: "all_crates", modify: func(r *config.Root) {
			r.AllCrates.RemoveDeps = config.StringSet{"winapi"}
		}, exp: false},
		{note: "extra_kv value", modify: func(r *config.Root) {
			r.Crate["serde"].ExtraKV = map[string]any{"allow_first_party_usage": true}
		}, exp: false},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			other := base()
			tc.modify(other)
			if got := base().Equal(other); got != tc.exp {
				t.Fatalf("expected Equal to be %v", tc.exp)
			}
			if got := other.Equal(base()); got != tc.exp {
				t.Fatalf("expected reversed Equal to be %v", tc.exp)
			}
		})
	}

	var nilRoot *config.Root
	if !nilRoot.Equal(nil) || nilRoot.Equal(&config.Root{}) {
		t.Fatal("unexpected nil comparison")
	}
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	a := write("a.yaml", `
crate:
  foo:
    ban_features: [std]
`)
	write("extra/b.yaml", `
crate:
  bar:
    remove_build_rs: true
`)
	write("extra/README.md", `not configuration`)

	cfg, err := config.Load(config.LoadOptions{Files: []string{a, filepath.Join(dir, "extra")}})
	if err != nil {
		t.Fatal(err)
	}

	if !cfg.CombinedSet("foo", config.BanFeatures).Contains("std") {
		t.Fatal("expected foo's banned features from a.yaml")
	}
	if !cfg.RemoveBuildRS("bar") {
		t.Fatal("expected bar's settings from extra/b.yaml")
	}

	c := write("c.yaml", `
crate:
  foo:
    ban_features: [alloc]
`)
	if _, err := config.Merge([]string{a, c}, true); err == nil || !strings.Contains(err.Error(), "/crate/foo/ban_features") {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestLoadWithPatch(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	patchPath := filepath.Join(dir, "patch.json")

	if err := os.WriteFile(cfgPath, []byte("crate: {foo: {ban_features: [std]}}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(patchPath, []byte(`[{"op": "add", "path": "/resolve/remove_crates", "value": ["baz"]}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(config.LoadOptions{Files: []string{cfgPath}, PatchFile: patchPath})
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.RemoveCrates().Contains("baz") {
		t.Fatalf("expected patched remove_crates, got %v", cfg.RemoveCrates())
	}
}
