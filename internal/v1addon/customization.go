package v1addon

import (
	"github.com/embroider-build/embroider-sub001/internal/legacy"
	"github.com/embroider-build/embroider-sub001/internal/manifest"
	"github.com/embroider-build/embroider-sub001/internal/tree"
)

// Customization patches the default conversion of one known package.
// Implementations opt into the hooks below.
type Customization interface {
	Name() string
}

// TreeOverrider replaces the conversion of a tree type. The returned node
// must already place files at their final output location.
type TreeOverrider interface {
	OverrideTree(a *Addon, t legacy.TreeType) (tree.Node, bool)
}

// TreeExtender contributes additional output trees.
type TreeExtender interface {
	ExtraTrees(a *Addon) []tree.Node
}

// MetaAdjuster edits the metadata before it is written. It runs on every
// manifest build.
type MetaAdjuster interface {
	AdjustMeta(a *Addon, m manifest.Meta) manifest.Meta
}

// OutputExempter marks packages that never produce build output of their
// own, such as preprocessor-only packages.
type OutputExempter interface {
	NoBuildOutput() bool
}

// ImportFilter drops tracked imports before they are categorized.
type ImportFilter interface {
	KeepImport(a *Addon, ti legacy.TrackedImport) bool
}
