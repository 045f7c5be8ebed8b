// Package analyzer computes the externals of a package: the imported
// package names its declared dependencies do not cover.
package analyzer

import (
	"context"
	"iter"
	"sync"

	"github.com/embroider-build/embroider-sub001/internal/buildgraph"
	"github.com/embroider-build/embroider-sub001/internal/diag"
	"github.com/embroider-build/embroider-sub001/internal/importscan"
)

// ImportSource is anything that yields imports after it has built,
// typically an *importscan.Parser.
type ImportSource interface {
	buildgraph.Node
	Imports() iter.Seq[importscan.Import]
}

// Analyzer aggregates the import sources of one package. It occupies a
// node in the build graph so that readers of its result are ordered
// after every source; its own Build does nothing.
type Analyzer struct {
	declared    Declared
	topLevelApp bool
	diags       diag.Reporter

	mu      sync.Mutex
	sources []ImportSource
}

// New returns an analyzer for the package described by declared.
func New(declared Declared, topLevelApp bool, diags diag.Reporter) *Analyzer {
	if diags == nil {
		diags = diag.Discard
	}
	return &Analyzer{declared: declared, topLevelApp: topLevelApp, diags: diags}
}

// Add registers another import source. It must be called before the
// build graph is constructed.
func (a *Analyzer) Add(src ImportSource) {
	a.mu.Lock()
	a.sources = append(a.sources, src)
	a.mu.Unlock()
}

func (a *Analyzer) Inputs() []buildgraph.Node {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]buildgraph.Node, len(a.sources))
	for i, s := range a.sources {
		out[i] = s
	}
	return out
}

func (a *Analyzer) Label() string { return "analyzer:" + a.declared.Name }

func (a *Analyzer) Build(context.Context, buildgraph.BuildInput) error { return nil }

// Result computes externals from the current state of every source.
func (a *Analyzer) Result() Result {
	a.mu.Lock()
	seqs := make([]iter.Seq[importscan.Import], len(a.sources))
	for i, s := range a.sources {
		seqs[i] = s.Imports()
	}
	a.mu.Unlock()

	res := Externals(Specifiers(seqs...), a.declared, a.topLevelApp)
	if res.SelfReference {
		a.diags.Report(diag.SelfReference, a.declared.Name,
			"imports itself by package name; these imports should be relative")
	}
	return res
}

// Externals is a shorthand for Result().Externals.
func (a *Analyzer) Externals() []string {
	return a.Result().Externals
}
