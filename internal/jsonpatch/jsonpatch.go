// Package jsonpatch applies RFC 6902 patches to configuration documents. Only
// the add, remove and replace operations are accepted.
package jsonpatch

import (
	"bytes"
	"fmt"
	"os"

	jp "github.com/evanphx/json-patch/v5"
	"github.com/goccy/go-yaml"
)

type PatchError struct {
	msg string
}

func (p *PatchError) Error() string {
	return p.msg
}

type Patch = jp.Patch

var opts = jp.ApplyOptions{
	EnsurePathExistsOnAdd:    true, // will create paths
	AllowMissingPathOnRemove: true,
}

// Decode parses a patch written in JSON or YAML.
func Decode(bs []byte) (Patch, error) {
	js, err := yaml.YAMLToJSON(bs)
	if err != nil {
		return nil, fmt.Errorf("failed to decode patch: %w", err)
	}
	p, err := jp.DecodePatch(js)
	if err != nil {
		return nil, fmt.Errorf("failed to decode patch: %w", err)
	}
	return p, nil
}

func DecodeFile(path string) (Patch, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read patch file %s: %w", path, err)
	}
	return Decode(bs)
}

// Apply applies p to a YAML or JSON document and returns the result as JSON.
func Apply(p Patch, doc []byte) ([]byte, error) {
	// We only support add/remove/replace
	for _, op := range p {
		switch op.Kind() {
		case "replace", "remove", "add": // OK
		default:
			return nil, &PatchError{fmt.Sprintf("unsupported patch operation %q, must be one of \"replace\", \"add\", \"remove\"", op.Kind())}
		}
	}

	js, err := yaml.YAMLToJSON(doc)
	if err != nil {
		return nil, err
	}
	if js = bytes.TrimSpace(js); len(js) == 0 || string(js) == "null" {
		js = []byte("{}")
	}
	return p.ApplyWithOptions(js, &opts)
}
