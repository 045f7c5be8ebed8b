// Package manifest writes v2 package.json files.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/embroider-build/embroider-sub001/internal/buildgraph"
	"github.com/embroider-build/embroider-sub001/internal/packages"
)

// ErrNotBuilt is returned when a manifest is read before it was written.
var ErrNotBuilt = errors.New("manifest read before its first build")

// ExternalsSource supplies the externals list, typically an
// *analyzer.Analyzer.
type ExternalsSource interface {
	buildgraph.Node
	Externals() []string
}

// Options configure a Rewriter.
type Options struct {
	// AppJS is the app-js relocation path, if the package has one.
	AppJS string
	// Meta is called on every build for additional metadata. Nodes whose
	// state Meta reads must be listed in MetaDeps.
	Meta     func() Meta
	MetaDeps []buildgraph.Node
}

// Rewriter reads package.json from its first input and writes the v2
// version of it.
type Rewriter struct {
	original  buildgraph.Node
	externals ExternalsSource
	opts      Options

	mu   sync.RWMutex
	last []byte
}

// NewRewriter returns a rewriter over the tree holding the original
// package.json.
func NewRewriter(original buildgraph.Node, externals ExternalsSource, opts Options) *Rewriter {
	return &Rewriter{original: original, externals: externals, opts: opts}
}

func (r *Rewriter) Inputs() []buildgraph.Node {
	return append([]buildgraph.Node{r.original, r.externals}, r.opts.MetaDeps...)
}

func (r *Rewriter) Label() string { return "manifest" }

func (r *Rewriter) Build(_ context.Context, in buildgraph.BuildInput) error {
	data, err := os.ReadFile(filepath.Join(in.InputPaths[0], "package.json"))
	if err != nil {
		return err
	}
	pkg, err := packages.DecodeObject(data)
	if err != nil {
		return fmt.Errorf("parse package.json: %w", err)
	}

	var meta Meta
	if r.opts.Meta != nil {
		meta = r.opts.Meta()
	}
	if r.opts.AppJS != "" {
		meta.AppJS = r.opts.AppJS
	}
	out, err := Apply(pkg, r.externals.Externals(), meta)
	if err != nil {
		return err
	}
	encoded, err := Encode(out)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(in.OutputPath, "package.json"), encoded, 0o644); err != nil {
		return err
	}

	r.mu.Lock()
	r.last = encoded
	r.mu.Unlock()
	return nil
}

// Manifest returns a fresh copy of the object written by the most recent
// build.
func (r *Rewriter) Manifest() (map[string]any, error) {
	r.mu.RLock()
	last := r.last
	r.mu.RUnlock()
	if last == nil {
		return nil, ErrNotBuilt
	}
	return packages.DecodeObject(last)
}

// Apply returns a copy of pkg with its ember-addon object upgraded to v2.
// Keys of the original ember-addon object that Meta does not set are
// kept.
func Apply(pkg map[string]any, externals []string, meta Meta) (map[string]any, error) {
	out := make(map[string]any, len(pkg)+1)
	for k, v := range pkg {
		out[k] = v
	}
	addon := map[string]any{}
	if orig, ok := pkg["ember-addon"].(map[string]any); ok {
		for k, v := range orig {
			addon[k] = v
		}
	}
	// v1-only keys have no meaning once converted
	delete(addon, "main")
	delete(addon, "paths")
	delete(addon, "before")
	delete(addon, "after")

	metaObj, err := toObject(meta)
	if err != nil {
		return nil, err
	}
	for k, v := range metaObj {
		addon[k] = v
	}
	if externals == nil {
		externals = []string{}
	}
	addon["version"] = 2
	if _, ok := addon["type"]; !ok {
		addon["type"] = "addon"
	}
	addon["externals"] = externals
	out["ember-addon"] = addon
	return out, nil
}

func toObject(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return packages.DecodeObject(b)
}

// Encode renders a manifest the way it is written to disk: two-space
// indent, sorted keys, trailing newline.
func Encode(m map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
