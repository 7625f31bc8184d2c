package jsonpatch_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/crate2gn/crate2gn/internal/jsonpatch"
)

func TestApply(t *testing.T) {
	p, err := jsonpatch.Decode([]byte(`
- op: add
  path: /crate/serde/ban_features
  value: [std]
- op: remove
  path: /resolve
- op: replace
  path: /all_crates/remove_build_rs
  value: true
`))
	if err != nil {
		t.Fatal(err)
	}

	out, err := jsonpatch.Apply(p, []byte(`
resolve:
  remove_crates: [foo]
all_crates:
  remove_build_rs: false
`))
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}

	exp := map[string]any{
		"all_crates": map[string]any{"remove_build_rs": true},
		"crate": map[string]any{
			"serde": map[string]any{"ban_features": []any{"std"}},
		},
	}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("unexpected document (-want +got):\n%s", diff)
	}
}

func TestApplyUnsupportedOperation(t *testing.T) {
	p, err := jsonpatch.Decode([]byte(`[{"op": "move", "from": "/a", "path": "/b"}]`))
	if err != nil {
		t.Fatal(err)
	}

	_, err = jsonpatch.Apply(p, []byte(`{"a": 1}`))
	var patchErr *jsonpatch.PatchError
	if !errors.As(err, &patchErr) {
		t.Fatalf("expected patch error, got %v", err)
	}
}
