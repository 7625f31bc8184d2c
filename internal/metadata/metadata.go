// Package metadata models the output of `cargo metadata --format-version 1`
// and indexes it for graph traversal.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/crate2gn/crate2gn/internal/platform"
)

// ErrCorrupt is returned (wrapped) when the export violates a structural
// invariant, such as a duplicate graph node or a reference to an unknown
// package. Such exports cannot be converted safely.
var ErrCorrupt = errors.New("corrupt cargo metadata")

// PackageID is cargo's opaque package identifier. It is only meaningful within
// a single export.
type PackageID string

type Metadata struct {
	Packages         []*Package  `json:"packages"`
	WorkspaceMembers []PackageID `json:"workspace_members"`
	Resolve          *Resolve    `json:"resolve"`
	WorkspaceRoot    string      `json:"workspace_root"`
	TargetDirectory  string      `json:"target_directory"`
	Version          int         `json:"version"`
}

type Package struct {
	ID           PackageID           `json:"id"`
	Name         string              `json:"name"`
	Version      string              `json:"version"`
	Description  string              `json:"description"`
	Authors      []string            `json:"authors"`
	Edition      string              `json:"edition"`
	Source       string              `json:"source"` // empty for path dependencies
	ManifestPath string              `json:"manifest_path"`
	Targets      []Target            `json:"targets"`
	Features     map[string][]string `json:"features"`
}

type Target struct {
	Name       string   `json:"name"`
	Kind       []string `json:"kind"`
	CrateTypes []string `json:"crate_types"`
	SrcPath    string   `json:"src_path"`
	Edition    string   `json:"edition"`
}

type Resolve struct {
	Nodes []*Node    `json:"nodes"`
	Root  *PackageID `json:"root"`
}

type Node struct {
	ID           PackageID   `json:"id"`
	Dependencies []PackageID `json:"dependencies"`
	Deps         []NodeDep   `json:"deps"`
	Features     []string    `json:"features"`
}

// NodeDep is a resolved dependency edge. Name is the name the dependent uses
// to refer to the package, which differs from the package name when renamed.
type NodeDep struct {
	Name     string        `json:"name"`
	Pkg      PackageID     `json:"pkg"`
	DepKinds []DepKindInfo `json:"dep_kinds"`
}

type DependencyKind int

const (
	Normal DependencyKind = iota
	Build
	Development
	Unknown
)

func (k DependencyKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Build:
		return "build"
	case Development:
		return "dev"
	}
	return "unknown"
}

func (k *DependencyKind) UnmarshalJSON(bs []byte) error {
	var s *string
	if err := json.Unmarshal(bs, &s); err != nil {
		return err
	}
	switch {
	case s == nil, *s == "normal":
		*k = Normal
	case *s == "build":
		*k = Build
	case *s == "dev":
		*k = Development
	default:
		*k = Unknown
	}
	return nil
}

func (k DependencyKind) MarshalJSON() ([]byte, error) {
	if k == Normal {
		return []byte("null"), nil
	}
	return json.Marshal(k.String())
}

// DepKindInfo is one (kind, platform) pair of an edge. Target is nil when the
// edge applies to every platform.
type DepKindInfo struct {
	Kind   DependencyKind
	Target *platform.Platform
}

func (d *DepKindInfo) UnmarshalJSON(bs []byte) error {
	var raw struct {
		Kind   DependencyKind `json:"kind"`
		Target *string        `json:"target"`
	}
	if err := json.Unmarshal(bs, &raw); err != nil {
		return err
	}
	d.Kind = raw.Kind
	d.Target = nil
	if raw.Target != nil {
		p, err := platform.Parse(*raw.Target)
		if err != nil {
			return err
		}
		d.Target = &p
	}
	return nil
}

func (d DepKindInfo) MarshalJSON() ([]byte, error) {
	var raw struct {
		Kind   DependencyKind `json:"kind"`
		Target *string        `json:"target"`
	}
	raw.Kind = d.Kind
	if d.Target != nil {
		s := d.Target.String()
		raw.Target = &s
	}
	return json.Marshal(raw)
}

// Parse decodes a metadata export.
func Parse(bs []byte) (*Metadata, error) {
	var md Metadata
	if err := json.Unmarshal(bs, &md); err != nil {
		return nil, fmt.Errorf("decode cargo metadata: %w", err)
	}
	return &md, nil
}

// Load reads a metadata export from r.
func Load(r io.Reader) (*Metadata, error) {
	bs, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(bs)
}

// LoadFile reads a metadata export from path, or from stdin if path is "-".
func LoadFile(path string) (*Metadata, error) {
	if path == "-" {
		return Load(os.Stdin)
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(bs)
}

// CargoOptions control how FromCargo invokes cargo.
type CargoOptions struct {
	Cargo        string // cargo binary, defaults to "cargo"
	ManifestPath string
	Offline      bool
	Locked       bool
	Features     []string
	AllFeatures  bool
}

// FromCargo runs `cargo metadata` and decodes its output.
func FromCargo(ctx context.Context, opts CargoOptions) (*Metadata, error) {
	bin := opts.Cargo
	if bin == "" {
		bin = "cargo"
	}

	args := []string{"metadata", "--format-version", "1"}
	if opts.ManifestPath != "" {
		args = append(args, "--manifest-path", opts.ManifestPath)
	}
	if opts.Offline {
		args = append(args, "--offline")
	}
	if opts.Locked {
		args = append(args, "--locked")
	}
	if opts.AllFeatures {
		args = append(args, "--all-features")
	}
	for _, f := range opts.Features {
		args = append(args, "--features", f)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("cargo metadata: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	return Parse(stdout.Bytes())
}
