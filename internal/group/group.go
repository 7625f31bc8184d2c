// Package group defines the privilege groups third-party packages are placed
// in and the classifier that derives a package's group from the packages that
// depend on it.
package group

import (
	"fmt"
	"slices"

	"github.com/crate2gn/crate2gn/internal/metadata"
)

// Group is a privilege classification. Packages in the safe group may be
// linked into any process, sandbox packages only into sandboxed processes and
// test packages only into tests.
type Group string

const (
	Safe    Group = "safe"
	Sandbox Group = "sandbox"
	Test    Group = "test"
)

// Values lists the groups from most to least privileged.
var Values = []Group{Safe, Sandbox, Test}

func Parse(s string) (Group, error) {
	g := Group(s)
	if !slices.Contains(Values, g) {
		return "", fmt.Errorf("unknown group %q", s)
	}
	return g, nil
}

func (g Group) rank() int {
	return slices.Index(Values, g)
}

// MorePrivileged returns whichever of a and b must be usable in more places.
// The empty group loses against every named group.
func MorePrivileged(a, b Group) Group {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	case b.rank() < a.rank():
		return b
	}
	return a
}

// Classifier assigns a group to each package reached during resolution.
type Classifier interface {
	Classify(g *metadata.Graph, id metadata.PackageID) Group
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(g *metadata.Graph, id metadata.PackageID) Group

func (f ClassifierFunc) Classify(g *metadata.Graph, id metadata.PackageID) Group {
	return f(g, id)
}

// Inherited classifies a package by its configured group or, failing that, by
// the most privileged group among the packages that depend on it. The roots
// and packages without a classified dependent are safe.
type Inherited struct {
	configured func(name string) (Group, bool)
	roots      []metadata.PackageID

	graph      *metadata.Graph
	dependents map[metadata.PackageID][]metadata.PackageID
	memo       map[metadata.PackageID]Group
	inprogress map[metadata.PackageID]struct{}
}

// NewInherited returns an Inherited classifier. configured reports the group
// explicitly assigned to a package name, if any; it may be nil.
func NewInherited(configured func(name string) (Group, bool), roots ...metadata.PackageID) *Inherited {
	if configured == nil {
		configured = func(string) (Group, bool) { return "", false }
	}
	return &Inherited{configured: configured, roots: roots}
}

func (c *Inherited) Classify(g *metadata.Graph, id metadata.PackageID) Group {
	if c.graph != g {
		c.index(g)
	}
	return c.visit(id)
}

// index records, for each package reachable from the roots, which reachable
// packages depend on it through a non-development edge.
func (c *Inherited) index(g *metadata.Graph) {
	c.graph = g
	c.dependents = make(map[metadata.PackageID][]metadata.PackageID)
	c.memo = make(map[metadata.PackageID]Group)
	c.inprogress = make(map[metadata.PackageID]struct{})

	seen := make(map[metadata.PackageID]struct{})
	stack := slices.Clone(c.roots)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		node, ok := g.Nodes[id]
		if !ok {
			continue
		}
		for _, dep := range node.Deps {
			if !linked(dep) {
				continue
			}
			c.dependents[dep.Pkg] = append(c.dependents[dep.Pkg], id)
			stack = append(stack, dep.Pkg)
		}
	}
}

func linked(dep metadata.NodeDep) bool {
	for _, k := range dep.DepKinds {
		if k.Kind == metadata.Normal || k.Kind == metadata.Build {
			return true
		}
	}
	return false
}

func (c *Inherited) visit(id metadata.PackageID) Group {
	if g, ok := c.memo[id]; ok {
		return g
	}

	if pkg, ok := c.graph.Packages[id]; ok {
		if g, ok := c.configured(pkg.Name); ok {
			c.memo[id] = g
			return g
		}
	}

	if slices.Contains(c.roots, id) {
		c.memo[id] = Safe
		return Safe
	}

	if _, ok := c.inprogress[id]; ok {
		return ""
	}
	c.inprogress[id] = struct{}{}

	var result Group
	for _, parent := range c.dependents[id] {
		result = MorePrivileged(result, c.visit(parent))
	}
	delete(c.inprogress, id)

	if result == "" {
		result = Safe
	}
	c.memo[id] = result
	return result
}
