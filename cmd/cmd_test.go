package cmd_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/crate2gn/crate2gn/cmd"
)

var scenario = filepath.Join("..", "internal", "deps", "testdata", "scenario.json")

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c := cmd.New()
	c.SetOut(&out)
	c.SetErr(&out)
	c.SetArgs(args)
	err := c.Execute()
	return out.String(), err
}

func TestDepsJSON(t *testing.T) {
	out, err := run(t, "deps", "--metadata", scenario, "--root", "app", "--json", "--log-level", "error")
	if err != nil {
		t.Fatal(err)
	}

	var entries []struct {
		Name     string            `json:"name"`
		Toplevel bool              `json:"toplevel"`
		Kinds    map[string]string `json:"kinds"`
	}
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}

	got := map[string]map[string]string{}
	for _, e := range entries {
		got[e.Name] = e.Kinds
	}
	exp := map[string]map[string]string{
		"alpha": {"normal": "always_true"},
		"app":   {},
		"beta":  {"normal": "is_win"},
		"gamma": {"normal": "!is_win", "build": "always_true"},
	}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("unexpected packages (-want +got):\n%s", diff)
	}
}

func TestDepsUnsupportedCondition(t *testing.T) {
	md := filepath.Join(t.TempDir(), "metadata.json")
	if err := os.WriteFile(md, []byte(`{
  "packages": [
    {"name": "app", "version": "0.1.0", "id": "app", "source": null, "targets": []},
    {"name": "simd", "version": "1.0.0", "id": "simd", "source": "registry", "targets": []}
  ],
  "resolve": {
    "nodes": [
      {"id": "app", "dependencies": ["simd"], "deps": [
        {"name": "simd", "pkg": "simd", "dep_kinds": [{"kind": null, "target": "cfg(target_feature = \"avx2\")"}]}
      ]},
      {"id": "simd"}
    ],
    "root": null
  }
}`), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "deps", "--metadata", md, "--root", "app", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "unsupported: Unknown key `target_feature`") {
		t.Fatalf("expected the untranslatable predicate in the output:\n%s", out)
	}
}

func TestDepsTable(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "crate2gn.yaml")
	if err := os.WriteFile(cfg, []byte("resolve:\n  remove_crates: [beta]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "deps", "--metadata", scenario, "--root", "app", "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"alpha", "gamma", "!is_win"} {
		if !strings.Contains(out, name) {
			t.Errorf("expected %q in output:\n%s", name, out)
		}
	}
	if strings.Contains(out, "beta") {
		t.Errorf("expected beta to be removed:\n%s", out)
	}
}

func TestDepsUnknownRoot(t *testing.T) {
	if _, err := run(t, "deps", "--metadata", scenario, "--root", "nope"); err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("expected root not found error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.yaml")
	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(valid, []byte("crate:\n  serde:\n    ban_features: [std]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(invalid, []byte("crate:\n  serde:\n    ban_feature: [std]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "validate", valid)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "1 crates configured") {
		t.Fatalf("unexpected output %q", out)
	}

	if _, err := run(t, "validate", invalid); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := run(t, "validate"); err == nil {
		t.Fatal("expected error without configuration files")
	}
}

func TestValidatePatchWithoutEffect(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "crate2gn.yaml")
	noop := filepath.Join(dir, "noop.yaml")
	change := filepath.Join(dir, "change.yaml")
	for path, content := range map[string]string{
		cfg:    "crate:\n  serde:\n    group: safe\n    ban_features: [std, alloc]\n",
		noop:   "- op: replace\n  path: /crate/serde/ban_features\n  value: [alloc, std]\n",
		change: "- op: replace\n  path: /crate/serde/group\n  value: test\n",
	} {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	out, err := run(t, "validate", cfg, "--config-patch", noop)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "changes nothing") {
		t.Fatalf("expected patch without effect to be reported, got %q", out)
	}

	out, err = run(t, "validate", cfg, "--config-patch", change)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "changes nothing") {
		t.Fatalf("unexpected report for effective patch: %q", out)
	}
}

func TestGenRequiresRoot(t *testing.T) {
	if _, err := run(t, "gen", "--metadata", scenario); err == nil {
		t.Fatal("expected error without --root")
	}
}

func TestLogLevelFlag(t *testing.T) {
	if _, err := run(t, "deps", "--metadata", scenario, "--root", "app", "--log-level", "loud"); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}
