// Package workspace mirrors the converted packages, and every package
// that depends on them, into one directory tree the bundler can resolve
// against. Everything else is linked to its original location.
package workspace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/embroider-build/embroider-sub001/internal/buildgraph"
	"github.com/embroider-build/embroider-sub001/internal/graph"
	"github.com/embroider-build/embroider-sub001/internal/logger"
	"github.com/embroider-build/embroider-sub001/internal/tree"
)

// Converted is the v2 output of one package.
type Converted struct {
	Root string
	Tree tree.Node
}

// Options configure a Workspace.
type Options struct {
	// Dest is where the mirror is written. Defaults to DefaultDest.
	Dest      string
	Graph     *graph.DependencyGraph
	Converted []Converted
}

// DefaultDest is a per-app directory under the system temp dir.
func DefaultDest(appRoot string) string {
	sum := sha256.Sum256([]byte(appRoot))
	return filepath.Join(os.TempDir(), "embroider", hex.EncodeToString(sum[:])[:12])
}

// Workspace is the build node that writes the mirror. It owns its
// output directory.
type Workspace struct {
	dest      string
	graph     *graph.DependencyGraph
	converted map[string]int // root -> input index
	inputs    []buildgraph.Node
	copied    []string // sorted, parents before children
	prefix    string

	builtOnce bool
}

// New classifies every package as copied or linked. A converted root
// must be in the graph.
func New(opts Options) (*Workspace, error) {
	if opts.Graph == nil || opts.Graph.App == nil {
		return nil, errors.New("workspace: no package graph")
	}
	w := &Workspace{
		dest:      opts.Dest,
		graph:     opts.Graph,
		converted: make(map[string]int, len(opts.Converted)),
	}
	if w.dest == "" {
		w.dest = DefaultDest(opts.Graph.App.Root)
	}
	roots := make([]string, 0, len(opts.Converted))
	for _, c := range opts.Converted {
		if _, ok := opts.Graph.Packages[c.Root]; !ok {
			return nil, fmt.Errorf("workspace: converted package %s is not in the graph", c.Root)
		}
		if _, dup := w.converted[c.Root]; dup {
			return nil, fmt.Errorf("workspace: %s converted twice", c.Root)
		}
		w.converted[c.Root] = len(w.inputs)
		w.inputs = append(w.inputs, c.Tree)
		roots = append(roots, c.Root)
	}

	for r := range opts.Graph.DependedUponBy(roots) {
		w.copied = append(w.copied, r)
	}
	sort.Strings(w.copied)
	w.prefix = CommonPrefix(append(append([]string(nil), w.copied...), opts.Graph.App.Root))
	return w, nil
}

func (w *Workspace) Inputs() []buildgraph.Node { return w.inputs }
func (w *Workspace) Label() string             { return "workspace" }
func (w *Workspace) OutputDir() string         { return w.dest }

// Copied lists the roots mirrored by copy, sorted.
func (w *Workspace) Copied() []string { return append([]string(nil), w.copied...) }

// IsCopied reports whether root is mirrored by copy rather than linked.
func (w *Workspace) IsCopied(root string) bool {
	i := sort.SearchStrings(w.copied, root)
	return i < len(w.copied) && w.copied[i] == root
}

// Shadow is where a copied package lives inside the workspace.
func (w *Workspace) Shadow(root string) string {
	rel, err := filepath.Rel(w.prefix, root)
	if err != nil || rel == "." {
		return w.dest
	}
	return filepath.Join(w.dest, rel)
}

// AppDir is the app's location inside the workspace.
func (w *Workspace) AppDir() string { return w.Shadow(w.graph.App.Root) }

// MayRebuild reports whether a package can change while the process
// runs. Installed packages are assumed not to.
func MayRebuild(root string) bool {
	return !strings.Contains(filepath.ToSlash(root)+"/", "/node_modules/")
}

func (w *Workspace) Build(ctx context.Context, in buildgraph.BuildInput) error {
	first := !w.builtOnce
	if first {
		if err := w.linkDependencies(); err != nil {
			return err
		}
	}
	for _, root := range w.copied {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !first && !MayRebuild(root) {
			continue
		}
		if err := w.copyPackage(root, in.InputPaths); err != nil {
			return fmt.Errorf("copy %s: %w", root, err)
		}
	}
	w.builtOnce = true
	return nil
}

// linkDependencies points each copied package's node_modules entries at
// the original location of every dependency that is not itself copied.
func (w *Workspace) linkDependencies() error {
	for _, root := range w.copied {
		for _, dep := range w.graph.Edges[root] {
			if w.IsCopied(dep) {
				continue
			}
			pkg := w.graph.Packages[dep]
			link := filepath.Join(w.Shadow(root), "node_modules", filepath.FromSlash(pkg.Name))
			if err := symlink(dep, link); err != nil {
				return fmt.Errorf("link %s into %s: %w", pkg.Name, root, err)
			}
		}
	}
	return nil
}

func symlink(target, link string) error {
	if cur, err := os.Readlink(link); err == nil {
		if cur == target {
			return nil
		}
		if err := os.Remove(link); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return err
	}
	return os.Symlink(target, link)
}

func (w *Workspace) copyPackage(root string, inputs []string) error {
	shadow := w.Shadow(root)
	if err := w.clearShadow(root, shadow); err != nil {
		return err
	}
	if i, ok := w.converted[root]; ok {
		logger.Debugf("workspace: copy converted %s", root)
		return copyTree(inputs[i], shadow, nil)
	}
	logger.Debugf("workspace: copy original %s", root)
	return copyTree(root, shadow, func(rel string) bool {
		return w.IsCopied(filepath.Join(root, rel))
	})
}

// clearShadow removes a previous copy of root, keeping its node_modules
// and the copies of packages nested inside it.
func (w *Workspace) clearShadow(root, shadow string) error {
	entries, err := os.ReadDir(shadow)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == "node_modules" || w.nestedCopy(filepath.Join(root, e.Name())) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(shadow, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// nestedCopy reports whether dir is, or contains, the root of another
// copied package.
func (w *Workspace) nestedCopy(dir string) bool {
	for _, r := range w.copied {
		if r == dir || strings.HasPrefix(r, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// copyTree copies src into dst, leaving out node_modules and any
// directory skip matches.
func copyTree(src, dst string, skip func(rel string) bool) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == src {
				return filepath.SkipAll
			}
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return os.MkdirAll(dst, 0o755)
		}
		if d.IsDir() {
			if d.Name() == "node_modules" || (skip != nil && skip(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return tree.CopyFile(p, filepath.Join(dst, rel))
	})
}

// CommonPrefix returns the longest directory that contains every one of
// paths, compared by whole path segments.
func CommonPrefix(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	prefix := strings.Split(filepath.Clean(paths[0]), string(filepath.Separator))
	for _, p := range paths[1:] {
		parts := strings.Split(filepath.Clean(p), string(filepath.Separator))
		n := 0
		for n < len(prefix) && n < len(parts) && prefix[n] == parts[n] {
			n++
		}
		prefix = prefix[:n]
	}
	out := strings.Join(prefix, string(filepath.Separator))
	if out == "" && filepath.IsAbs(paths[0]) {
		return string(filepath.Separator)
	}
	return out
}
