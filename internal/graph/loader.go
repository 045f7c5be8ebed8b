package graph

import (
	"fmt"
	"path/filepath"

	"github.com/embroider-build/embroider-sub001/internal/packages"
)

// Load walks the installed dependencies of the app at root. The app's
// dev dependencies and in-repo addons count; those of other packages do
// not.
func Load(cache *packages.Cache, root string) (*DependencyGraph, error) {
	app, err := cache.Get(root)
	if err != nil {
		return nil, fmt.Errorf("load app: %w", err)
	}
	g := NewDependencyGraph()
	g.App = app

	queue := []*packages.Package{app}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if _, ok := g.Packages[p.Root]; ok {
			continue
		}
		g.Packages[p.Root] = p

		deps, err := dependencies(cache, p, p == app)
		if err != nil {
			return nil, err
		}
		edges := make([]string, 0, len(deps))
		for _, d := range deps {
			edges = append(edges, d.Root)
			queue = append(queue, d)
		}
		g.Edges[p.Root] = edges
	}
	return g, nil
}

func dependencies(cache *packages.Cache, p *packages.Package, isApp bool) ([]*packages.Package, error) {
	deps := cache.Dependencies(p, isApp)
	for _, rel := range p.AddonPaths() {
		d, err := cache.Get(filepath.Join(p.Root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("%s: in-repo addon %s: %w", p.Name, rel, err)
		}
		deps = append(deps, d)
	}
	return deps, nil
}
