// Package graph is the dependency graph of the packages installed under
// an app, keyed by real package root.
package graph

import (
	"sort"

	"github.com/embroider-build/embroider-sub001/internal/packages"
)

type DependencyGraph struct {
	App      *packages.Package
	Packages map[string]*packages.Package
	// Edges maps a package root to the roots of its dependencies.
	Edges map[string][]string
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		Packages: make(map[string]*packages.Package),
		Edges:    make(map[string][]string),
	}
}

// ReverseEdges maps a package root to the roots that depend on it.
func (g *DependencyGraph) ReverseEdges() map[string][]string {
	rev := make(map[string][]string)
	for pkg, deps := range g.Edges {
		for _, dep := range deps {
			rev[dep] = append(rev[dep], pkg)
		}
	}
	return rev
}

// DependedUponBy returns roots together with every package that depends
// on one of them, directly or transitively.
func (g *DependencyGraph) DependedUponBy(roots []string) map[string]bool {
	rev := g.ReverseEdges()
	seen := make(map[string]bool, len(roots))
	queue := append([]string(nil), roots...)
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		if seen[r] {
			continue
		}
		seen[r] = true
		queue = append(queue, rev[r]...)
	}
	return seen
}

// Roots lists every package root, sorted.
func (g *DependencyGraph) Roots() []string {
	out := make([]string, 0, len(g.Packages))
	for r := range g.Packages {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
