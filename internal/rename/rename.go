// Package rename handles packages whose runtime module namespace differs
// from their package name.
package rename

import (
	"context"
	"maps"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/embroider-build/embroider-sub001/internal/buildgraph"
	"github.com/embroider-build/embroider-sub001/internal/importscan"
	"github.com/embroider-build/embroider-sub001/internal/tree"
)

// AddonTree relocates the output of a customized addon hook. Files in the
// package's own module namespace move to the package root. Files in any
// other namespace stay where they are and that namespace is recorded as
// renamed to a subpath of the package.
type AddonTree struct {
	in         tree.Node
	name       string
	moduleName string

	mu      sync.RWMutex
	renamed map[string]string
}

func RewriteAddonTree(in tree.Node, name, moduleName string) *AddonTree {
	return &AddonTree{in: in, name: name, moduleName: moduleName}
}

func (a *AddonTree) Inputs() []buildgraph.Node { return []buildgraph.Node{a.in} }
func (a *AddonTree) Label() string             { return "rename:" + a.name }

func (a *AddonTree) Build(_ context.Context, in buildgraph.BuildInput) error {
	files, err := tree.Files(in.InputPaths[0])
	if err != nil {
		return err
	}
	renamed := make(map[string]string)
	for _, rel := range files {
		dst := rel
		if ns, rest, ok := splitNamespace(rel); ok {
			if ns == a.moduleName {
				dst = rest
			} else {
				renamed[ns] = a.name + "/" + ns
			}
		}
		src := filepath.Join(in.InputPaths[0], filepath.FromSlash(rel))
		if err := tree.CopyFile(src, filepath.Join(in.OutputPath, filepath.FromSlash(dst))); err != nil {
			return err
		}
	}
	a.mu.Lock()
	a.renamed = renamed
	a.mu.Unlock()
	return nil
}

// Renamed returns the foreign namespaces found by the last build.
func (a *AddonTree) Renamed() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return maps.Clone(a.renamed)
}

// splitNamespace splits a path into its namespace and the rest. Scoped
// namespaces span two segments.
func splitNamespace(rel string) (ns, rest string, ok bool) {
	parts := strings.Split(rel, "/")
	n := 1
	if strings.HasPrefix(parts[0], "@") {
		n = 2
	}
	if len(parts) <= n {
		return "", "", false
	}
	return strings.Join(parts[:n], "/"), strings.Join(parts[n:], "/"), true
}

// Resolver maps specifiers through renamed packages.
type Resolver struct {
	prefixes []string
	renamed  map[string]string
}

// NewResolver builds a resolver from a runtime namespace to package path
// table, as found in renamed-packages.
func NewResolver(renamed map[string]string) *Resolver {
	r := &Resolver{renamed: renamed}
	for ns := range renamed {
		r.prefixes = append(r.prefixes, ns)
	}
	// longest namespace wins
	sort.Slice(r.prefixes, func(i, j int) bool { return len(r.prefixes[i]) > len(r.prefixes[j]) })
	return r
}

// Resolve returns the specifier spec should be rewritten to.
func (r *Resolver) Resolve(spec string) string {
	for _, ns := range r.prefixes {
		if spec == ns || strings.HasPrefix(spec, ns+"/") {
			return r.renamed[ns] + spec[len(ns):]
		}
	}
	return spec
}

var specifierRe = regexp.MustCompile(`(\bfrom\s*|\bimport\s*\(\s*|\brequire\s*\(\s*|\bimport\s+)(['"])([^'"\n]+)(['"])`)

// RewriteSource rewrites the static import, export-from, require and
// dynamic import specifiers of a module.
func (r *Resolver) RewriteSource(src []byte) []byte {
	if len(r.prefixes) == 0 {
		return src
	}
	return specifierRe.ReplaceAllFunc(src, func(m []byte) []byte {
		sub := specifierRe.FindSubmatch(m)
		spec := string(sub[3])
		resolved := r.Resolve(spec)
		if resolved == spec {
			return m
		}
		out := make([]byte, 0, len(m)+len(resolved)-len(spec))
		out = append(out, sub[1]...)
		out = append(out, sub[2]...)
		out = append(out, resolved...)
		return append(out, sub[4]...)
	})
}

// RewriteImports is a tree node applying the resolver returned by table
// to every module in in. table is read at build time; deps are the nodes
// whose builds determine it.
func RewriteImports(in tree.Node, table func() map[string]string, deps ...tree.Node) tree.Node {
	return tree.Transform("rewrite-imports", in, func(rel string, src []byte) (string, []byte, error) {
		if !importscan.IsModule(rel) {
			return rel, src, nil
		}
		return rel, NewResolver(table()).RewriteSource(src), nil
	}, deps...)
}
