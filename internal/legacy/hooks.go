package legacy

import "sort"

// Hook is a v1 build hook a main module may override.
type Hook string

const (
	HookTreeFor                 Hook = "treeFor"
	HookTreeForAddon            Hook = "treeForAddon"
	HookTreeForAddonTemplates   Hook = "treeForAddonTemplates"
	HookTreeForAddonTestSupport Hook = "treeForAddonTestSupport"
	HookTreeForAddonStyles      Hook = "treeForAddonStyles"
	HookTreeForApp              Hook = "treeForApp"
	HookTreeForPublic           Hook = "treeForPublic"
	HookTreeForStyles           Hook = "treeForStyles"
	HookTreeForTemplates        Hook = "treeForTemplates"
	HookTreeForTestSupport      Hook = "treeForTestSupport"
	HookTreeForVendor           Hook = "treeForVendor"
	HookTreePaths               Hook = "treePaths"
)

// KnownHooks is every hook the conversion inspects.
var KnownHooks = []Hook{
	HookTreeFor,
	HookTreeForAddon,
	HookTreeForAddonTemplates,
	HookTreeForAddonTestSupport,
	HookTreeForAddonStyles,
	HookTreeForApp,
	HookTreeForPublic,
	HookTreeForStyles,
	HookTreeForTemplates,
	HookTreeForTestSupport,
	HookTreeForVendor,
	HookTreePaths,
}

// TreeHooks lists the hooks governing each stock tree.
var TreeHooks = map[TreeType][]Hook{
	TreeAddon:            {HookTreeForAddon, HookTreeForAddonTemplates},
	TreeAddonStyles:      {HookTreeForAddonStyles},
	TreeStyles:           {HookTreeForStyles},
	TreeAddonTestSupport: {HookTreeForAddonTestSupport},
	TreeTestSupport:      {HookTreeForTestSupport},
	TreeApp:              {HookTreeForApp, HookTreeForTemplates},
	TreePublic:           {HookTreeForPublic},
	TreeVendor:           {HookTreeForVendor},
}

// HookSet records which hooks a main module overrides.
type HookSet map[Hook]bool

func NewHookSet(hooks ...Hook) HookSet {
	s := make(HookSet, len(hooks))
	for _, h := range hooks {
		s[h] = true
	}
	return s
}

func (s HookSet) Has(h Hook) bool { return s[h] }

// Customizes reports whether any of hooks is overridden. Overriding the
// generic treeFor customizes every tree.
func (s HookSet) Customizes(hooks ...Hook) bool {
	if s[HookTreeFor] {
		return true
	}
	for _, h := range hooks {
		if s[h] {
			return true
		}
	}
	return false
}

// CustomizesTree reports whether the hooks governing t are overridden.
func (s HookSet) CustomizesTree(t TreeType) bool {
	return s.Customizes(TreeHooks[t]...)
}

// List returns the overridden hooks, sorted.
func (s HookSet) List() []Hook {
	var out []Hook
	for h, ok := range s {
		if ok {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
