// Package v1app converts the top-level v1 application: it merges the
// app-js contributions of every addon with the app's own sources and
// adds the generated entrypoint, config module and index.html.
package v1app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/embroider-build/embroider-sub001/internal/analyzer"
	"github.com/embroider-build/embroider-sub001/internal/buildgraph"
	"github.com/embroider-build/embroider-sub001/internal/diag"
	"github.com/embroider-build/embroider-sub001/internal/entrypoint"
	"github.com/embroider-build/embroider-sub001/internal/importscan"
	"github.com/embroider-build/embroider-sub001/internal/legacy"
	"github.com/embroider-build/embroider-sub001/internal/manifest"
	"github.com/embroider-build/embroider-sub001/internal/rename"
	"github.com/embroider-build/embroider-sub001/internal/transform"
	"github.com/embroider-build/embroider-sub001/internal/tree"
	"github.com/embroider-build/embroider-sub001/internal/v1addon"
)

// ErrNoImportTracking is returned for an app instance whose imports were
// not recorded while it was loaded.
var ErrNoImportTracking = errors.New("app instance does not track imports")

// Generated file names.
const (
	BabelConfigFile      = "_babel_config_.json"
	TemplateCompilerFile = "_template_compiler_.json"
	IndexHTML            = "index.html"
	ConfigModulePath     = "config/environment.js"
)

// DefaultCompilerPath is the template compiler the bundler loads.
const DefaultCompilerPath = "ember-source/dist/ember-template-compiler.js"

// Options configure the app conversion.
type Options struct {
	Pipeline *transform.Pipeline
	// BabelConfig is the serialized transform configuration written next
	// to the app.
	BabelConfig []byte
	Diags       diag.Reporter
	AutoRun     bool
	MainModule  string
	// Environment is the runtime config embedded in index.html. Its APP
	// key is passed to the application constructor.
	Environment map[string]any
	// HTML edits index.html. Defaults to entrypoint.DefaultHTMLRewriter.
	HTML entrypoint.HTMLRewriter
}

// App is the conversion of the top-level application.
type App struct {
	inst   *legacy.Instance
	addons []*v1addon.Addon
	opts   Options
	src    tree.Node

	analyzer *analyzer.Analyzer
	rewriter *manifest.Rewriter
	entry    string
	rootURL  string
	imports  legacy.ImportSet
	out      tree.Node
}

// New plans the conversion of inst. addons are in descendant order; when
// two of them contribute the same app module the later one wins, and
// the app's own files win over all of them.
func New(inst *legacy.Instance, addons []*v1addon.Addon, opts Options) (*App, error) {
	if !inst.TracksImports {
		return nil, fmt.Errorf("%s: %w", inst.Name(), ErrNoImportTracking)
	}
	if opts.Pipeline == nil {
		return nil, errors.New("v1app: no transform pipeline")
	}
	if opts.Diags == nil {
		opts.Diags = diag.Discard
	}
	a := &App{
		inst:     inst,
		addons:   addons,
		opts:     opts,
		src:      tree.Source(inst.Root()),
		analyzer: analyzer.New(analyzer.DeclaredFrom(inst.Package), true, opts.Diags),
		rootURL:  "/",
	}
	if u, ok := opts.Environment["rootURL"].(string); ok && u != "" {
		a.rootURL = u
	}
	a.entry = "assets/" + a.ModulePrefix() + ".js"
	a.imports = legacy.Categorize(inst.TrackedImports, inst.Name(), opts.Diags)
	a.out = a.plan()
	return a, nil
}

func (a *App) Name() string { return a.inst.Name() }
func (a *App) Root() string { return a.inst.Root() }

// ModulePrefix is the app's runtime namespace.
func (a *App) ModulePrefix() string {
	if p, ok := a.opts.Environment["modulePrefix"].(string); ok && p != "" {
		return p
	}
	if a.inst.ModuleName != "" {
		return a.inst.ModuleName
	}
	return a.inst.Name()
}

// EntrypointPath is the generated entrypoint, relative to the app output.
func (a *App) EntrypointPath() string { return a.entry }

// Tree is the complete v2 output of the app.
func (a *App) Tree() tree.Node { return a.out }

// Analyzer computes the app's externals.
func (a *App) Analyzer() *analyzer.Analyzer { return a.analyzer }

// Manifest returns the v2 package.json written by the last build.
func (a *App) Manifest() (map[string]any, error) { return a.rewriter.Manifest() }

// RenamedPackages aggregates the namespaces claimed by every addon. Later
// addons win.
func (a *App) RenamedPackages() map[string]string {
	out := make(map[string]string)
	for _, ad := range a.addons {
		maps.Copy(out, ad.RenamedPackages())
	}
	return out
}

func (a *App) plan() tree.Node {
	p := a.opts.Pipeline

	var appJS, addonTrees []tree.Node
	for _, ad := range a.addons {
		addonTrees = append(addonTrees, ad.Tree())
		if n := ad.AppJS(); n != nil {
			appJS = append(appJS, n)
		}
	}
	own := tree.Funnel(a.src, tree.FunnelOptions{SrcDir: "app", Exclude: []string{"styles/**", IndexHTML}})
	// externals are judged after renamed namespaces resolve to packages
	a.analyzer.Add(importscan.NewParser(a.Name()+":app", rename.RewriteImports(own, a.RenamedPackages, addonTrees...)))

	merged := tree.Merge(append(appJS, own), true)
	modules := p.Transpile(rename.RewriteImports(merged, a.RenamedPackages, addonTrees...))
	withConfig := tree.Merge([]tree.Node{
		modules,
		tree.Write(ConfigModulePath, func() ([]byte, error) {
			return entrypoint.ConfigModule(a.ModulePrefix()), nil
		}),
	}, true)

	entry := &entryNode{app: a, in: withConfig}
	styles := tree.Transform("app-styles",
		p.CompileStyles(tree.Funnel(a.src, tree.FunnelOptions{SrcDir: "app/styles"})),
		a.renameStyle)
	public := tree.Funnel(a.src, tree.FunnelOptions{SrcDir: "public"})
	vendor := tree.Funnel(a.src, tree.FunnelOptions{SrcDir: "vendor", DestDir: "vendor"})
	babel := tree.Write(BabelConfigFile, func() ([]byte, error) { return a.opts.BabelConfig, nil })
	compiler := tree.Write(TemplateCompilerFile, a.templateCompiler)

	a.rewriter = manifest.NewRewriter(tree.Source(a.Root(), "package.json"), a.analyzer, manifest.Options{
		Meta:     a.meta,
		MetaDeps: addonTrees,
	})

	outputs := []tree.Node{withConfig, entry, styles, public, vendor, babel, compiler, a.rewriter}
	html := &htmlNode{
		app: a,
		in:    tree.Funnel(a.src, tree.FunnelOptions{SrcDir: "app", Include: []string{IndexHTML}}),
		after: outputs,
	}
	return tree.Merge(append(outputs, html), true)
}

// renameStyle publishes app.css under the app's name, as the classic
// build did.
func (a *App) renameStyle(rel string, content []byte) (string, []byte, error) {
	if rel == "app.css" {
		return "assets/" + a.ModulePrefix() + ".css", content, nil
	}
	return path.Join("assets", rel), content, nil
}

func (a *App) templateCompiler() ([]byte, error) {
	cfg := a.opts.Pipeline.Config()
	var plugins []string
	for _, pl := range cfg.Plugins {
		plugins = append(plugins, pl.Name)
	}
	b, err := json.MarshalIndent(map[string]any{
		"compilerPath":   DefaultCompilerPath,
		"isParallelSafe": true,
		"plugins":        plugins,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// meta declares the app's tracked styles and test assets. Its tracked
// scripts load from the entrypoint instead.
func (a *App) meta() manifest.Meta {
	return manifest.Meta{
		Type:                "app",
		Entrypoints:         []string{"./" + IndexHTML},
		TemplateCompiler:    &manifest.Filename{Filename: TemplateCompilerFile},
		Babel:               &manifest.Filename{Filename: BabelConfigFile},
		RenamedPackages:     a.RenamedPackages(),
		RootURL:             a.rootURL,
		ImplicitStyles:      legacy.Specifiers(a.imports.Styles),
		ImplicitTestImports: legacy.Specifiers(a.imports.TestScripts),
		ImplicitTestStyles:  legacy.Specifiers(a.imports.TestStyles),
	}
}

// vendorImports are the app's tracked script imports, as specifiers
// relative to the entrypoint.
func (a *App) vendorImports() []string {
	base := path.Dir(a.entry)
	var out []string
	for _, ti := range a.imports.Scripts {
		if rest, ok := strings.CutPrefix(ti.AssetPath, "node_modules/"); ok {
			out = append(out, rest)
			continue
		}
		out = append(out, strings.Repeat("../", strings.Count(base, "/")+1)+strings.TrimPrefix(ti.AssetPath, "./"))
	}
	return out
}

func (a *App) appConfig() map[string]any {
	if cfg, ok := a.opts.Environment["APP"].(map[string]any); ok {
		return cfg
	}
	return nil
}

// entryNode synthesizes the entrypoint from the finished module tree.
type entryNode struct {
	app *App
	in  tree.Node
}

func (e *entryNode) Inputs() []buildgraph.Node { return []buildgraph.Node{e.in} }
func (e *entryNode) Label() string             { return "entrypoint" }

func (e *entryNode) Build(_ context.Context, in buildgraph.BuildInput) error {
	src, err := entrypoint.Synthesize(in.InputPaths[0], entrypoint.Options{
		ModulePrefix:   e.app.ModulePrefix(),
		EntrypointPath: e.app.entry,
		AutoRun:        e.app.opts.AutoRun,
		MainModule:     e.app.opts.MainModule,
		AppConfig:      e.app.appConfig(),
		Imports:        e.app.vendorImports(),
	})
	if err != nil {
		return fmt.Errorf("synthesize entrypoint: %w", err)
	}
	return tree.WriteFile(in.OutputPath, e.app.entry, src)
}

// htmlNode rewrites index.html once every other output is final.
type htmlNode struct {
	app   *App
	in    tree.Node
	after []tree.Node
}

func (h *htmlNode) Inputs() []buildgraph.Node {
	return append([]buildgraph.Node{h.in}, h.after...)
}

func (h *htmlNode) Label() string { return "index.html" }

func (h *htmlNode) Build(_ context.Context, in buildgraph.BuildInput) error {
	src, err := os.ReadFile(filepath.Join(in.InputPaths[0], IndexHTML))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: app/%s is missing", h.app.Name(), IndexHTML)
	}
	if err != nil {
		return err
	}
	rewrite := h.app.opts.HTML
	if rewrite == nil {
		env := h.app.opts.Environment
		if env == nil {
			env = map[string]any{}
		}
		rewrite = entrypoint.DefaultHTMLRewriter(h.app.ModulePrefix(), h.app.rootURL, env)
	}
	out, err := entrypoint.RewriteHTML(src, h.app.entry, rewrite)
	if err != nil {
		return fmt.Errorf("rewrite %s: %w", IndexHTML, err)
	}
	return tree.WriteFile(in.OutputPath, IndexHTML, out)
}
