// Package tree provides the file-tree nodes that conversion graphs are
// made of. Every node reads the directories of its inputs and writes a
// fresh output directory.
package tree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/embroider-build/embroider-sub001/internal/buildgraph"
)

// Node is a buildgraph node that produces a directory of files.
type Node = buildgraph.Node

type source struct {
	dir   string
	files []string
}

// Source is an on-disk directory. When files are given only they are
// watched for changes.
func Source(dir string, files ...string) Node {
	return &source{dir: dir, files: files}
}

func (s *source) Inputs() []Node                                      { return nil }
func (s *source) Build(context.Context, buildgraph.BuildInput) error { return nil }
func (s *source) SourceDir() string                                  { return s.dir }
func (s *source) Label() string                                      { return "source:" + filepath.Base(s.dir) }

func (s *source) SourceFiles() []string {
	if len(s.files) == 0 {
		return nil
	}
	return s.files
}

// FunnelOptions select and relocate part of a tree.
type FunnelOptions struct {
	// SrcDir is the subdirectory of the input to take. Empty means all.
	SrcDir string
	// DestDir is where the selected files land in the output.
	DestDir string
	// Include and Exclude are doublestar globs matched against paths
	// relative to SrcDir.
	Include []string
	Exclude []string
}

type funnel struct {
	in   Node
	opts FunnelOptions
}

// Funnel copies a filtered subdirectory of in. A missing SrcDir yields an
// empty tree.
func Funnel(in Node, opts FunnelOptions) Node {
	return &funnel{in: in, opts: opts}
}

func (f *funnel) Inputs() []Node { return []Node{f.in} }
func (f *funnel) Label() string  { return "funnel:" + f.opts.SrcDir + "->" + f.opts.DestDir }

func (f *funnel) Build(_ context.Context, in buildgraph.BuildInput) error {
	src := filepath.Join(in.InputPaths[0], filepath.FromSlash(f.opts.SrcDir))
	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	files, err := Files(src)
	if err != nil {
		return err
	}
	for _, rel := range files {
		ok, err := selected(rel, f.opts.Include, f.opts.Exclude)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		dst := filepath.Join(in.OutputPath, filepath.FromSlash(path.Join(f.opts.DestDir, rel)))
		if err := CopyFile(filepath.Join(src, filepath.FromSlash(rel)), dst); err != nil {
			return err
		}
	}
	return nil
}

func selected(rel string, include, exclude []string) (bool, error) {
	if len(include) > 0 {
		ok, err := matchAny(include, rel)
		if err != nil || !ok {
			return false, err
		}
	}
	ok, err := matchAny(exclude, rel)
	return !ok, err
}

func matchAny(patterns []string, rel string) (bool, error) {
	for _, p := range patterns {
		matched, err := doublestar.Match(p, rel)
		if err != nil {
			return false, fmt.Errorf("glob %q: %w", p, err)
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

type merge struct {
	ins       []Node
	overwrite bool
}

// Merge unions its inputs. Without overwrite a path present in two
// inputs is an error; with it the later input wins.
func Merge(ins []Node, overwrite bool) Node {
	return &merge{ins: ins, overwrite: overwrite}
}

func (m *merge) Inputs() []Node { return m.ins }
func (m *merge) Label() string  { return fmt.Sprintf("merge:%d", len(m.ins)) }

func (m *merge) Build(_ context.Context, in buildgraph.BuildInput) error {
	seen := make(map[string]bool)
	for _, dir := range in.InputPaths {
		files, err := Files(dir)
		if err != nil {
			return err
		}
		for _, rel := range files {
			if seen[rel] && !m.overwrite {
				return fmt.Errorf("merge conflict: %s exists in more than one input", rel)
			}
			seen[rel] = true
			if err := CopyFile(filepath.Join(dir, filepath.FromSlash(rel)), filepath.Join(in.OutputPath, filepath.FromSlash(rel))); err != nil {
				return err
			}
		}
	}
	return nil
}

// TransformFunc maps one file to its replacement. Returning an empty
// outPath drops the file.
type TransformFunc func(rel string, content []byte) (outPath string, out []byte, err error)

type transform struct {
	in    Node
	label string
	fn    TransformFunc
	deps  []Node
}

// Transform rewrites every file of in through fn. deps are extra nodes
// whose rebuild invalidates the transform. A transform error fails the
// build.
func Transform(label string, in Node, fn TransformFunc, deps ...Node) Node {
	return &transform{in: in, label: label, fn: fn, deps: deps}
}

func (t *transform) Inputs() []Node { return append([]Node{t.in}, t.deps...) }
func (t *transform) Label() string  { return "transform:" + t.label }

func (t *transform) Build(ctx context.Context, in buildgraph.BuildInput) error {
	src := in.InputPaths[0]
	files, err := Files(src)
	if err != nil {
		return err
	}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		content, err := os.ReadFile(filepath.Join(src, filepath.FromSlash(rel)))
		if err != nil {
			return err
		}
		outPath, out, err := t.fn(rel, content)
		if err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
		if outPath == "" {
			continue
		}
		if err := WriteFile(in.OutputPath, outPath, out); err != nil {
			return err
		}
	}
	return nil
}

type writeFile struct {
	rel  string
	gen  func() ([]byte, error)
	deps []Node
}

// Write produces a tree holding the single file rel, generated on every
// rebuild of deps. With no deps the file is generated once.
func Write(rel string, gen func() ([]byte, error), deps ...Node) Node {
	return &writeFile{rel: rel, gen: gen, deps: deps}
}

func (w *writeFile) Inputs() []Node { return w.deps }
func (w *writeFile) Label() string  { return "write:" + w.rel }

func (w *writeFile) Build(_ context.Context, in buildgraph.BuildInput) error {
	data, err := w.gen()
	if err != nil {
		return fmt.Errorf("generate %s: %w", w.rel, err)
	}
	return WriteFile(in.OutputPath, w.rel, data)
}

// SnitchOptions configure a namespace guard.
type SnitchOptions struct {
	// Allowed are doublestar globs a path must match one of.
	Allowed []string
	// FoundBadPaths receives the offending paths, sorted, when there are
	// any.
	FoundBadPaths func(bad []string)
}

type snitch struct {
	in   Node
	opts SnitchOptions
}

// Snitch passes in through unchanged and reports files outside the
// allowed patterns.
func Snitch(in Node, opts SnitchOptions) Node {
	return &snitch{in: in, opts: opts}
}

func (s *snitch) Inputs() []Node { return []Node{s.in} }
func (s *snitch) Label() string  { return "snitch:" + strings.Join(s.opts.Allowed, ",") }

func (s *snitch) Build(_ context.Context, in buildgraph.BuildInput) error {
	var bad []string
	err := copyAll(in.InputPaths[0], in.OutputPath, func(rel string) error {
		ok, err := matchAny(s.opts.Allowed, rel)
		if err != nil {
			return err
		}
		if !ok {
			bad = append(bad, rel)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(bad) > 0 && s.opts.FoundBadPaths != nil {
		s.opts.FoundBadPaths(bad)
	}
	return nil
}

type observe struct {
	in Node
	fn func(files []string)
}

// Observe passes in through unchanged and hands its file list to fn after
// each rebuild.
func Observe(in Node, fn func(files []string)) Node {
	return &observe{in: in, fn: fn}
}

func (o *observe) Inputs() []Node { return []Node{o.in} }
func (o *observe) Label() string  { return "observe" }

func (o *observe) Build(_ context.Context, in buildgraph.BuildInput) error {
	var files []string
	if err := copyAll(in.InputPaths[0], in.OutputPath, func(rel string) error {
		files = append(files, rel)
		return nil
	}); err != nil {
		return err
	}
	o.fn(files)
	return nil
}

func copyAll(src, dst string, visit func(rel string) error) error {
	files, err := Files(src)
	if err != nil {
		return err
	}
	for _, rel := range files {
		if err := visit(rel); err != nil {
			return err
		}
		if err := CopyFile(filepath.Join(src, filepath.FromSlash(rel)), filepath.Join(dst, filepath.FromSlash(rel))); err != nil {
			return err
		}
	}
	return nil
}
