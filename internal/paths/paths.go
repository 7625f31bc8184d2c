// Package paths translates filesystem paths into GN source-absolute labels
// ("//third_party/rust/...").
package paths

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Translator maps absolute paths below BuildRoot to GN paths.
type Translator struct {
	BuildRoot string
}

func NewTranslator(buildRoot string) (*Translator, error) {
	abs, err := filepath.Abs(buildRoot)
	if err != nil {
		return nil, err
	}
	return &Translator{BuildRoot: abs}, nil
}

// ToRootRelative returns p as a source-absolute GN path. p must lie within the
// build root.
func (t *Translator) ToRootRelative(p string) (string, error) {
	rel, err := filepath.Rel(t.BuildRoot, p)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %s is outside of the build root %s", p, t.BuildRoot)
	}
	if rel == "." {
		return "//", nil
	}
	return "//" + rel, nil
}

