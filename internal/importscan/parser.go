package importscan

import (
	"context"
	"iter"
	"sync"

	"github.com/embroider-build/embroider-sub001/internal/buildgraph"
)

// Parser is a build node that scans its input tree on every rebuild. It
// passes no files through; its output is the import list.
type Parser struct {
	in    buildgraph.Node
	label string

	mu      sync.RWMutex
	imports []Import
}

func NewParser(label string, in buildgraph.Node) *Parser {
	return &Parser{in: in, label: label}
}

func (p *Parser) Inputs() []buildgraph.Node { return []buildgraph.Node{p.in} }
func (p *Parser) Label() string             { return "imports:" + p.label }

func (p *Parser) Build(_ context.Context, in buildgraph.BuildInput) error {
	imports, err := ScanDir(in.InputPaths[0])
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.imports = imports
	p.mu.Unlock()
	return nil
}

// Imports yields the imports found by the last build. The sequence can be
// ranged over any number of times.
func (p *Parser) Imports() iter.Seq[Import] {
	return func(yield func(Import) bool) {
		p.mu.RLock()
		snapshot := p.imports
		p.mu.RUnlock()
		for _, imp := range snapshot {
			if !yield(imp) {
				return
			}
		}
	}
}
