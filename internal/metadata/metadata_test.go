package metadata_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crate2gn/crate2gn/internal/metadata"
)

func TestParseDepKinds(t *testing.T) {
	bs := []byte(`{
  "packages": [],
  "resolve": {
    "nodes": [{
      "id": "a",
      "dependencies": ["b"],
      "deps": [{
        "name": "b",
        "pkg": "b",
        "dep_kinds": [
          {"kind": null, "target": null},
          {"kind": "normal", "target": "cfg(unix)"},
          {"kind": "build", "target": "x86_64-pc-windows-msvc"},
          {"kind": "dev", "target": null},
          {"kind": "weird", "target": null}
        ]
      }],
      "features": []
    }],
    "root": "a"
  }
}`)

	md, err := metadata.Parse(bs)
	if err != nil {
		t.Fatal(err)
	}

	kinds := md.Resolve.Nodes[0].Deps[0].DepKinds
	exp := []struct {
		kind   metadata.DependencyKind
		target string
	}{
		{metadata.Normal, ""},
		{metadata.Normal, "cfg(unix)"},
		{metadata.Build, "x86_64-pc-windows-msvc"},
		{metadata.Development, ""},
		{metadata.Unknown, ""},
	}
	if len(kinds) != len(exp) {
		t.Fatalf("expected %d kinds, got %d", len(exp), len(kinds))
	}
	for i, e := range exp {
		if kinds[i].Kind != e.kind {
			t.Errorf("kind %d: expected %v, got %v", i, e.kind, kinds[i].Kind)
		}
		switch {
		case e.target == "" && kinds[i].Target != nil:
			t.Errorf("kind %d: expected no target, got %v", i, kinds[i].Target)
		case e.target != "" && (kinds[i].Target == nil || kinds[i].Target.String() != e.target):
			t.Errorf("kind %d: expected target %q, got %v", i, e.target, kinds[i].Target)
		}
	}

	if md.Resolve.Root == nil || *md.Resolve.Root != "a" {
		t.Fatalf("unexpected root %v", md.Resolve.Root)
	}
}

func TestParseInvalidPlatform(t *testing.T) {
	bs := []byte(`{"packages": [], "resolve": {"nodes": [{"id": "a", "deps": [{"name": "b", "pkg": "b", "dep_kinds": [{"kind": null, "target": "cfg(unix"}]}]}]}}`)
	if _, err := metadata.Parse(bs); err == nil {
		t.Fatal("expected error for unbalanced cfg expression")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	if err := os.WriteFile(path, []byte(`{"packages": [{"id": "x", "name": "x", "version": "1.0.0", "source": null, "targets": []}], "resolve": {"nodes": [{"id": "x"}], "root": null}, "workspace_root": "/w"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	md, err := metadata.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	g, err := metadata.NewGraph(md)
	if err != nil {
		t.Fatal(err)
	}
	if g.RootNode() != nil {
		t.Fatal("expected no root node")
	}
	if ids := g.FindByName("x"); len(ids) != 1 || ids[0] != "x" {
		t.Fatalf("unexpected ids %v", ids)
	}
	if md.WorkspaceRoot != "/w" {
		t.Fatalf("unexpected workspace root %q", md.WorkspaceRoot)
	}

	if _, err := metadata.LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNewGraphCorrupt(t *testing.T) {
	cases := []struct {
		note string
		json string
		exp  string
	}{
		{
			note: "missing resolve",
			json: `{"packages": []}`,
			exp:  "missing resolve section",
		},
		{
			note: "duplicate package",
			json: `{"packages": [{"id": "x", "name": "x", "version": "1.0.0"}, {"id": "x", "name": "x", "version": "1.0.0"}], "resolve": {"nodes": []}}`,
			exp:  "duplicate package",
		},
		{
			note: "duplicate node",
			json: `{"packages": [], "resolve": {"nodes": [{"id": "x"}, {"id": "x"}]}}`,
			exp:  "duplicate node",
		},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			md, err := metadata.Parse([]byte(tc.json))
			if err != nil {
				t.Fatal(err)
			}
			_, err = metadata.NewGraph(md)
			if !errors.Is(err, metadata.ErrCorrupt) {
				t.Fatalf("expected corrupt error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.exp) {
				t.Fatalf("expected %q in error, got %v", tc.exp, err)
			}
		})
	}
}

func TestGraphLookupsCorrupt(t *testing.T) {
	md, err := metadata.Parse([]byte(`{"packages": [], "resolve": {"nodes": []}}`))
	if err != nil {
		t.Fatal(err)
	}
	g, err := metadata.NewGraph(md)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Package("nope"); !errors.Is(err, metadata.ErrCorrupt) {
		t.Fatalf("expected corrupt error, got %v", err)
	}
	if _, err := g.Node("nope"); !errors.Is(err, metadata.ErrCorrupt) {
		t.Fatalf("expected corrupt error, got %v", err)
	}
}
