// Package buildgraph runs a static graph of build nodes. Each node turns
// the materialized directories of its inputs into its own output
// directory, and is rebuilt only when an input changed.
package buildgraph

import "context"

// BuildInput is what a node sees during Build.
type BuildInput struct {
	// InputPaths holds the output directory of each input, in the order
	// returned by Inputs.
	InputPaths []string
	// OutputPath is an empty directory the node writes into, or the
	// node's own directory for an OutputOwner.
	OutputPath string
}

// Node is one step of the build graph.
type Node interface {
	Inputs() []Node
	Build(ctx context.Context, in BuildInput) error
}

// Source is a leaf node backed by a directory on disk. Its output path is
// the directory itself and it never builds.
type Source interface {
	Node
	SourceDir() string
	// SourceFiles restricts change detection to the given paths relative
	// to SourceDir. Nil watches the whole directory.
	SourceFiles() []string
}

// Volatile nodes rebuild on every build.
type Volatile interface {
	Volatile() bool
}

// OutputOwner nodes choose their own output directory. The builder never
// clears it.
type OutputOwner interface {
	OutputDir() string
}

// Labeled nodes name themselves in logs and results.
type Labeled interface {
	Label() string
}

// Label returns a readable name for n.
func Label(n Node) string {
	if l, ok := n.(Labeled); ok {
		return l.Label()
	}
	if s, ok := n.(Source); ok {
		return "source:" + s.SourceDir()
	}
	return "node"
}
