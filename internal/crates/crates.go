// Package crates holds the naming conventions for vendored crates and the
// collection of the files that make up a crate's build.
package crates

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// NormalizedName returns the crate name as used for GN targets and
// directories: dashes are replaced with underscores.
func NormalizedName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// Epoch returns the semver compatibility epoch of version: "v1" for 1.x.y,
// "v0_2" for 0.2.y and "v0_0_3" for 0.0.3. Two versions are interchangeable
// iff they have the same epoch.
func Epoch(version string) (string, error) {
	major, minor, patch, err := components(version)
	if err != nil {
		return "", err
	}
	switch {
	case major > 0:
		return fmt.Sprintf("v%d", major), nil
	case minor > 0:
		return fmt.Sprintf("v0_%d", minor), nil
	default:
		return fmt.Sprintf("v0_0_%d", patch), nil
	}
}

func canonical(version string) (string, error) {
	v := "v" + version
	if !semver.IsValid(v) {
		return "", fmt.Errorf("invalid version %q", version)
	}
	return semver.Canonical(v), nil
}

func components(version string) (major, minor, patch uint64, err error) {
	v, err := canonical(version)
	if err != nil {
		return 0, 0, 0, err
	}
	core, _, _ := strings.Cut(strings.TrimPrefix(v, "v"), "-")
	parts := strings.SplitN(core, ".", 3)
	nums := make([]uint64, 3)
	for i, p := range parts {
		if nums[i], err = strconv.ParseUint(p, 10, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("invalid version %q: %w", version, err)
		}
	}
	return nums[0], nums[1], nums[2], nil
}

// CompareVersions orders two cargo versions by semver precedence. Invalid
// versions sort before valid ones and are otherwise compared as strings.
func CompareVersions(a, b string) int {
	va, errA := canonical(a)
	vb, errB := canonical(b)
	switch {
	case errA == nil && errB == nil:
		if c := semver.Compare(va, vb); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	default:
		return 1
	}
}

// VendoredCrate identifies one version of a crate in the vendor directory.
type VendoredCrate struct {
	Name    string
	Version string
}

func (c VendoredCrate) String() string {
	return c.Name + "-" + c.Version
}

// Compare orders crates by name and then by version.
func (c VendoredCrate) Compare(other VendoredCrate) int {
	if x := strings.Compare(c.Name, other.Name); x != 0 {
		return x
	}
	return CompareVersions(c.Version, other.Version)
}

func (c VendoredCrate) NormalizedName() string {
	return NormalizedName(c.Name)
}

func (c VendoredCrate) Epoch() (string, error) {
	return Epoch(c.Version)
}
