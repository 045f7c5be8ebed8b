package packages

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Cache loads each package root once. Safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	roots map[string]*Package
}

func NewCache() *Cache {
	return &Cache{roots: make(map[string]*Package)}
}

// Get returns the package at root, resolving symlinks so that one real
// directory is one Package.
func (c *Cache) Get(root string) (*Package, error) {
	real, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, err
	}
	real, err = filepath.Abs(real)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.roots[real]; ok {
		return p, nil
	}
	p, err := Load(real)
	if err != nil {
		return nil, err
	}
	c.roots[real] = p
	return p, nil
}

// Resolve finds the package called name as seen from the package at
// from, walking up through node_modules directories.
func (c *Cache) Resolve(name, from string) (*Package, error) {
	dir := from
	for {
		candidate := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
		if _, err := os.Stat(filepath.Join(candidate, "package.json")); err == nil {
			return c.Get(candidate)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("cannot resolve %s from %s: %w", name, from, fs.ErrNotExist)
		}
		dir = parent
	}
}

// Dependencies resolves the dependencies of p (and dev dependencies when
// includeDev is set), skipping any that are not installed.
func (c *Cache) Dependencies(p *Package, includeDev bool) []*Package {
	var out []*Package
	for _, name := range p.DependencyNames(includeDev) {
		dep, err := c.Resolve(name, p.Root)
		if err != nil {
			continue
		}
		out = append(out, dep)
	}
	return out
}

// All returns every package loaded so far.
func (c *Cache) All() []*Package {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Package, 0, len(c.roots))
	for _, p := range c.roots {
		out = append(out, p)
	}
	return out
}
