package analyzer

import (
	"context"
	"iter"

	"github.com/embroider-build/embroider-sub001/internal/buildgraph"
	"github.com/embroider-build/embroider-sub001/internal/importscan"
)

type staticSource []string

func (s staticSource) Inputs() []buildgraph.Node                           { return nil }
func (s staticSource) Build(context.Context, buildgraph.BuildInput) error { return nil }

func (s staticSource) Imports() iter.Seq[importscan.Import] {
	return func(yield func(importscan.Import) bool) {
		for _, spec := range s {
			if !yield(importscan.Import{Specifier: spec}) {
				return
			}
		}
	}
}
