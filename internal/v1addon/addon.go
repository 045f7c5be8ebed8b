// Package v1addon converts one v1 addon into a v2 package: a set of
// output trees laid out by convention plus a rewritten package.json.
package v1addon

import (
	"fmt"
	"maps"
	"path"
	"strings"
	"sync"

	"github.com/embroider-build/embroider-sub001/internal/analyzer"
	"github.com/embroider-build/embroider-sub001/internal/diag"
	"github.com/embroider-build/embroider-sub001/internal/importscan"
	"github.com/embroider-build/embroider-sub001/internal/legacy"
	"github.com/embroider-build/embroider-sub001/internal/manifest"
	"github.com/embroider-build/embroider-sub001/internal/packages"
	"github.com/embroider-build/embroider-sub001/internal/rename"
	"github.com/embroider-build/embroider-sub001/internal/transform"
	"github.com/embroider-build/embroider-sub001/internal/tree"
)

// Output locations inside a converted package.
const (
	AppJSDir          = "_app_"
	AppStylesDir      = "_app_styles_"
	TestSupportDir    = "test-support"
	ImplicitTestDir   = "_test_support_"
	PublicDir         = "public"
	VendorDir         = "vendor"
	ImplicitImports   = "-embroider-implicit-imports.js"
	ImplicitTestShims = "-embroider-implicit-test-imports.js"
)

// fallbackTrees may pass captured hook output through.
var fallbackTrees = map[legacy.TreeType]bool{
	legacy.TreeAddon:  true,
	legacy.TreeApp:    true,
	legacy.TreePublic: true,
}

// moduleTrees hold modules whose imports count toward externals.
var moduleTrees = map[legacy.TreeType]bool{
	legacy.TreeAddon:            true,
	legacy.TreeAddonTestSupport: true,
	legacy.TreeTestSupport:      true,
}

// Options are shared by every addon of one build.
type Options struct {
	Pipeline *transform.Pipeline
	Packages *packages.Cache
	Diags    diag.Reporter
}

// Addon is the conversion of one legacy instance.
type Addon struct {
	inst   *legacy.Instance
	opts   Options
	custom Customization
	src    tree.Node

	analyzer  *analyzer.Analyzer
	decisions []TreeDecision
	outputs   []tree.Node
	appJS     tree.Node
	renames   []*rename.AddonTree
	metaDeps  []tree.Node
	static    manifest.Meta
	publicURL string
	rewriter  *manifest.Rewriter
	out       tree.Node

	mu       sync.Mutex
	observed map[string][]string
}

// New plans the conversion of inst. custom may be nil.
func New(inst *legacy.Instance, opts Options, custom Customization) *Addon {
	if opts.Diags == nil {
		opts.Diags = diag.Discard
	}
	a := &Addon{
		inst:     inst,
		opts:     opts,
		custom:   custom,
		src:      tree.Source(inst.Root()),
		analyzer: analyzer.New(analyzer.DeclaredFrom(inst.Package), false, opts.Diags),
		observed: make(map[string][]string),
	}
	if inst.ModuleName != "" && inst.ModuleName != inst.Name() {
		a.static.RenamedPackages = map[string]string{inst.ModuleName: inst.Name()}
	}

	for _, t := range legacy.StockTrees {
		a.convert(t)
	}
	a.trackImports()
	if ext, ok := custom.(TreeExtender); ok {
		a.outputs = append(a.outputs, ext.ExtraTrees(a)...)
	}

	opt := manifest.Options{Meta: a.meta, MetaDeps: a.metaDeps}
	if a.appJS != nil {
		opt.AppJS = "./" + AppJSDir
	}
	a.rewriter = manifest.NewRewriter(tree.Source(inst.Root(), "package.json"), a.analyzer, opt)
	a.out = tree.Merge(append(append([]tree.Node{}, a.outputs...), a.rewriter), true)
	return a
}

func (a *Addon) Name() string               { return a.inst.Name() }
func (a *Addon) Root() string               { return a.inst.Root() }
func (a *Addon) Instance() *legacy.Instance { return a.inst }
func (a *Addon) Options() Options           { return a.opts }

// Customization names the compatibility adapter applied, if any.
func (a *Addon) Customization() string {
	if a.custom == nil {
		return ""
	}
	return a.custom.Name()
}

// Source is the package directory as a tree.
func (a *Addon) Source() tree.Node { return a.src }

// Tree is the complete v2 output of the package.
func (a *Addon) Tree() tree.Node { return a.out }

// AppJS is the package's contribution to the app namespace, with paths
// relative to the app, or nil.
func (a *Addon) AppJS() tree.Node { return a.appJS }

// Analyzer computes the package's externals.
func (a *Addon) Analyzer() *analyzer.Analyzer { return a.analyzer }

// Manifest returns the v2 package.json written by the last build.
func (a *Addon) Manifest() (map[string]any, error) { return a.rewriter.Manifest() }

// Decisions lists what happened to each stock tree.
func (a *Addon) Decisions() []TreeDecision {
	return append([]TreeDecision(nil), a.decisions...)
}

// HasAnyTrees reports whether the package contributes any output beyond
// its manifest.
func (a *Addon) HasAnyTrees() bool {
	return len(a.outputs) > 0
}

// HasBuildOutput is HasAnyTrees for packages that are not exempt from
// duplicate-build checks.
func (a *Addon) HasBuildOutput() bool {
	if ex, ok := a.custom.(OutputExempter); ok && ex.NoBuildOutput() {
		return false
	}
	return a.HasAnyTrees()
}

// RenamedPackages returns the namespaces the package claims for others,
// as of the last build.
func (a *Addon) RenamedPackages() map[string]string {
	return a.meta().RenamedPackages
}

// TreeRel returns the package-relative location of a stock tree.
func (a *Addon) TreeRel(t legacy.TreeType) string {
	if rel, ok := a.inst.TreePaths[t]; ok {
		return rel
	}
	return legacy.DefaultTreePaths[t]
}

func (a *Addon) record(t legacy.TreeType, d Decision) {
	a.decisions = append(a.decisions, TreeDecision{Tree: t, Decision: d})
}

func (a *Addon) convert(t legacy.TreeType) {
	if o, ok := a.custom.(TreeOverrider); ok {
		if n, ok := o.OverrideTree(a, t); ok {
			a.record(t, CustomizedHandled)
			if n != nil {
				if moduleTrees[t] {
					a.parse(string(t), n)
				}
				a.outputs = append(a.outputs, n)
			}
			return
		}
	}
	if a.inst.Hooks.CustomizesTree(t) {
		if dir, ok := a.inst.RenderedTree(t); ok && fallbackTrees[t] {
			a.record(t, CustomizedFallback)
			a.fallback(t, tree.Source(dir))
			return
		}
		a.record(t, CustomizedUnhandled)
		a.opts.Diags.Report(diag.Unsupported, a.Name(),
			"customizes the %s tree (%s); it is not converted", t, hookNames(a.inst.Hooks, t))
		return
	}
	if !a.inst.HasTree(t) {
		a.record(t, Absent)
		return
	}
	a.record(t, Stock)
	a.stock(t)
}

func hookNames(hooks legacy.HookSet, t legacy.TreeType) string {
	var names []string
	if hooks.Has(legacy.HookTreeFor) {
		names = append(names, string(legacy.HookTreeFor))
	}
	for _, h := range legacy.TreeHooks[t] {
		if hooks.Has(h) {
			names = append(names, string(h))
		}
	}
	return strings.Join(names, ", ")
}

func (a *Addon) stock(t legacy.TreeType) {
	rel := a.TreeRel(t)
	p := a.opts.Pipeline
	switch t {
	case legacy.TreeAddon:
		n := p.Transpile(tree.Funnel(a.src, tree.FunnelOptions{SrcDir: rel, Exclude: []string{"styles/**"}}))
		a.parse("addon", n)
		a.outputs = append(a.outputs, n)
	case legacy.TreeAddonStyles:
		n := tree.Observe(p.CompileStyles(tree.Funnel(a.src, tree.FunnelOptions{SrcDir: rel})), a.observer("addon-styles"))
		a.outputs = append(a.outputs, n)
		a.metaDeps = append(a.metaDeps, n)
	case legacy.TreeStyles:
		n := p.CompileStyles(tree.Funnel(a.src, tree.FunnelOptions{SrcDir: rel, DestDir: AppStylesDir}))
		a.outputs = append(a.outputs, n)
	case legacy.TreeAddonTestSupport:
		n := p.Transpile(tree.Funnel(a.src, tree.FunnelOptions{SrcDir: rel, DestDir: TestSupportDir}))
		a.parse("addon-test-support", n)
		a.outputs = append(a.outputs, n)
	case legacy.TreeTestSupport:
		n := tree.Observe(p.Transpile(tree.Funnel(a.src, tree.FunnelOptions{SrcDir: rel, DestDir: ImplicitTestDir})), a.observer("test-support"))
		a.parse("test-support", n)
		a.outputs = append(a.outputs, n)
		a.metaDeps = append(a.metaDeps, n)
	case legacy.TreeApp:
		a.addAppJS(tree.Funnel(a.src, tree.FunnelOptions{SrcDir: rel, Exclude: []string{"styles/**"}}))
	case legacy.TreePublic:
		a.publicURL = "/" + a.Name() + "/"
		n := tree.Observe(tree.Funnel(a.src, tree.FunnelOptions{SrcDir: rel, DestDir: PublicDir}), a.observer("public"))
		a.outputs = append(a.outputs, n)
		a.metaDeps = append(a.metaDeps, n)
	case legacy.TreeVendor:
		a.outputs = append(a.outputs, tree.Funnel(a.src, tree.FunnelOptions{SrcDir: rel, DestDir: VendorDir}))
	}
}

func (a *Addon) fallback(t legacy.TreeType, rendered tree.Node) {
	switch t {
	case legacy.TreeAddon:
		rt := rename.RewriteAddonTree(rendered, a.Name(), a.inst.ModuleName)
		a.renames = append(a.renames, rt)
		a.metaDeps = append(a.metaDeps, rt)
		n := a.opts.Pipeline.Transpile(rt)
		a.parse("addon", n)
		a.outputs = append(a.outputs, n)
	case legacy.TreeApp:
		a.addAppJS(rendered)
	case legacy.TreePublic:
		name := a.Name()
		guarded := tree.Snitch(rendered, tree.SnitchOptions{
			Allowed: []string{name + "/**"},
			FoundBadPaths: func(bad []string) {
				a.opts.Diags.Report(diag.NamespaceViolation, name,
					"public tree emitted files outside %s/: %s", name, strings.Join(bad, ", "))
			},
		})
		a.publicURL = "/"
		n := tree.Observe(tree.Funnel(guarded, tree.FunnelOptions{DestDir: PublicDir}), a.observer("public"))
		a.outputs = append(a.outputs, n)
		a.metaDeps = append(a.metaDeps, n)
	}
}

// addAppJS registers n (paths relative to the app) as the package's app
// contribution. It is import-parsed here but transpiled by the app.
func (a *Addon) addAppJS(n tree.Node) {
	a.appJS = n
	a.parse("app", n)
	a.outputs = append(a.outputs, tree.Funnel(n, tree.FunnelOptions{DestDir: AppJSDir}))
}

// AddParsedTree feeds another tree's imports into the package's
// externals. For use by customizations.
func (a *Addon) AddParsedTree(label string, n tree.Node) {
	a.parse(label, n)
}

func (a *Addon) parse(label string, n tree.Node) {
	a.analyzer.Add(importscan.NewParser(a.Name()+":"+label, n))
}

func (a *Addon) observer(key string) func([]string) {
	return func(files []string) {
		a.mu.Lock()
		a.observed[key] = files
		a.mu.Unlock()
	}
}

func (a *Addon) trackImports() {
	imports := a.inst.TrackedImports
	if filter, ok := a.custom.(ImportFilter); ok {
		imports = nil
		for _, ti := range a.inst.TrackedImports {
			if filter.KeepImport(a, ti) {
				imports = append(imports, ti)
			}
		}
	}
	set := legacy.Categorize(imports, a.Name(), a.opts.Diags)
	a.static.ImplicitStyles = append(a.static.ImplicitStyles, legacy.Specifiers(set.Styles)...)
	a.static.ImplicitTestStyles = append(a.static.ImplicitTestStyles, legacy.Specifiers(set.TestStyles)...)
	if app := legacy.Specifiers(set.Scripts); len(app) > 0 {
		a.addShim(ImplicitImports, app)
		a.static.ImplicitImports = []string{"./" + ImplicitImports}
	}
	if test := legacy.Specifiers(set.TestScripts); len(test) > 0 {
		a.addShim(ImplicitTestShims, test)
		a.static.ImplicitTestImports = []string{"./" + ImplicitTestShims}
	}
}

func (a *Addon) addShim(name string, specs []string) {
	n := tree.Write(name, func() ([]byte, error) {
		var sb strings.Builder
		for _, s := range specs {
			fmt.Fprintf(&sb, "import %q;\n", s)
		}
		return []byte(sb.String()), nil
	})
	a.parse(name, n)
	a.outputs = append(a.outputs, n)
}

func (a *Addon) meta() manifest.Meta {
	a.mu.Lock()
	var dyn manifest.Meta
	for _, f := range a.observed["addon-styles"] {
		if !strings.Contains(f, "/") && path.Ext(f) == ".css" {
			dyn.ImplicitStyles = append(dyn.ImplicitStyles, "./"+f)
		}
	}
	for _, f := range a.observed["test-support"] {
		if importscan.IsModule(f) {
			dyn.ImplicitTestModules = append(dyn.ImplicitTestModules, "./"+f)
		}
	}
	if files := a.observed["public"]; len(files) > 0 {
		dyn.PublicAssets = make(map[string]string, len(files))
		for _, f := range files {
			dyn.PublicAssets["./"+f] = a.publicURL + strings.TrimPrefix(f, PublicDir+"/")
		}
	}
	a.mu.Unlock()

	for _, rt := range a.renames {
		if dyn.RenamedPackages == nil {
			dyn.RenamedPackages = make(map[string]string)
		}
		maps.Copy(dyn.RenamedPackages, rt.Renamed())
	}
	m := a.static.Merge(dyn)
	if adj, ok := a.custom.(MetaAdjuster); ok {
		m = adj.AdjustMeta(a, m)
	}
	return m
}
