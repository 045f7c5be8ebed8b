// Package legacy models v1 packages as the conversion sees them: a root,
// a manifest, the hooks their main module overrides, their declared tree
// paths, their children and the assets they import into the app.
package legacy

import (
	"os"
	"path/filepath"

	"github.com/embroider-build/embroider-sub001/internal/packages"
)

// TreeType names a stock v1 build output.
type TreeType string

const (
	TreeAddon            TreeType = "addon"
	TreeAddonStyles      TreeType = "addon-styles"
	TreeStyles           TreeType = "styles"
	TreeAddonTestSupport TreeType = "addon-test-support"
	TreeTestSupport      TreeType = "test-support"
	TreeApp              TreeType = "app"
	TreePublic           TreeType = "public"
	TreeVendor           TreeType = "vendor"
	TreeTemplates        TreeType = "templates"
	TreeAddonTemplates   TreeType = "addon-templates"
)

// StockTrees are the tree types every package is evaluated for, in the
// order their output is assembled.
var StockTrees = []TreeType{
	TreeAddon,
	TreeAddonStyles,
	TreeStyles,
	TreeAddonTestSupport,
	TreeTestSupport,
	TreeApp,
	TreePublic,
	TreeVendor,
}

// DefaultTreePaths are the conventional on-disk locations of each tree,
// relative to the package root.
var DefaultTreePaths = map[TreeType]string{
	TreeAddon:            "addon",
	TreeAddonStyles:      "addon/styles",
	TreeStyles:           "app/styles",
	TreeAddonTestSupport: "addon-test-support",
	TreeTestSupport:      "test-support",
	TreeApp:              "app",
	TreePublic:           "public",
	TreeVendor:           "vendor",
	TreeTemplates:        "app/templates",
	TreeAddonTemplates:   "addon/templates",
}

// Tracked import types with a known destination.
const (
	ImportVendor = "vendor"
	ImportTest   = "test"
)

// TrackedImport is one asset a package injects into the app build.
type TrackedImport struct {
	AssetPath  string `json:"assetPath"`
	Type       string `json:"type"`
	OutputFile string `json:"outputFile,omitempty"`
}

// Instance is one package as consumed by one parent.
type Instance struct {
	Package *packages.Package
	Parent  *Instance
	IsApp   bool
	// ModuleName is the runtime namespace the package's addon tree
	// claims. It defaults to the package name.
	ModuleName string
	// TreePaths overrides DefaultTreePaths, relative to the root.
	TreePaths      map[TreeType]string
	Hooks          HookSet
	Children       []*Instance
	TrackedImports []TrackedImport
	// Options is the preprocessor configuration bag for this package.
	Options map[string]any
	// RenderedTrees is a directory holding the captured output of this
	// instance's customized hooks, one subdirectory per tree type.
	RenderedTrees string
	// TracksImports is set when TrackedImports was actually collected.
	TracksImports bool
}

func (i *Instance) Root() string { return i.Package.Root }
func (i *Instance) Name() string { return i.Package.Name }

// TreePath returns the absolute path of a stock tree.
func (i *Instance) TreePath(t TreeType) string {
	rel, ok := i.TreePaths[t]
	if !ok {
		rel = DefaultTreePaths[t]
	}
	return filepath.Join(i.Root(), filepath.FromSlash(rel))
}

// HasTree reports whether the stock tree exists on disk.
func (i *Instance) HasTree(t TreeType) bool {
	info, err := os.Stat(i.TreePath(t))
	return err == nil && info.IsDir()
}

// RenderedTree returns where the captured output of the hook governing t
// lives, if it was captured.
func (i *Instance) RenderedTree(t TreeType) (string, bool) {
	if i.RenderedTrees == "" {
		return "", false
	}
	dir := filepath.Join(i.RenderedTrees, string(t))
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return dir, true
}

// Walk visits i and its descendants depth first, children before their
// parent, in child order.
func (i *Instance) Walk(fn func(*Instance)) {
	for _, c := range i.Children {
		c.Walk(fn)
	}
	fn(i)
}
