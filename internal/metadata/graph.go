package metadata

import "fmt"

// Graph indexes a metadata export by package identity.
type Graph struct {
	Metadata *Metadata
	Packages map[PackageID]*Package
	Nodes    map[PackageID]*Node
}

// NewGraph builds the package and resolved-node lookups. It fails with
// ErrCorrupt when the export has no resolve section or repeats an identity.
func NewGraph(md *Metadata) (*Graph, error) {
	if md.Resolve == nil {
		return nil, fmt.Errorf("%w: missing resolve section", ErrCorrupt)
	}

	g := &Graph{
		Metadata: md,
		Packages: make(map[PackageID]*Package, len(md.Packages)),
		Nodes:    make(map[PackageID]*Node, len(md.Resolve.Nodes)),
	}

	for _, pkg := range md.Packages {
		if _, ok := g.Packages[pkg.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate package %q", ErrCorrupt, pkg.ID)
		}
		g.Packages[pkg.ID] = pkg
	}

	for _, node := range md.Resolve.Nodes {
		if _, ok := g.Nodes[node.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate node %q", ErrCorrupt, node.ID)
		}
		g.Nodes[node.ID] = node
	}

	return g, nil
}

// Package returns the package with the given id or an ErrCorrupt error.
func (g *Graph) Package(id PackageID) (*Package, error) {
	pkg, ok := g.Packages[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown package %q", ErrCorrupt, id)
	}
	return pkg, nil
}

// Node returns the resolved node with the given id or an ErrCorrupt error.
func (g *Graph) Node(id PackageID) (*Node, error) {
	node, ok := g.Nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown node %q", ErrCorrupt, id)
	}
	return node, nil
}

// FindByName returns the ids of every package called name, in export order.
func (g *Graph) FindByName(name string) []PackageID {
	var ids []PackageID
	for _, pkg := range g.Metadata.Packages {
		if pkg.Name == name {
			ids = append(ids, pkg.ID)
		}
	}
	return ids
}

// RootNode returns the resolve graph's root node, if the export names one.
// For a virtual workspace there is none.
func (g *Graph) RootNode() *Node {
	if g.Metadata.Resolve.Root == nil {
		return nil
	}
	return g.Nodes[*g.Metadata.Resolve.Root]
}
