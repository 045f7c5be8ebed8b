package legacy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/embroider-build/embroider-sub001/internal/diag"
	"github.com/embroider-build/embroider-sub001/internal/logger"
	"github.com/embroider-build/embroider-sub001/internal/packages"
)

// LoaderOptions configure how instances are discovered.
type LoaderOptions struct {
	// RenderedTrees holds captured hook output as
	// <RenderedTrees>/<package name>/<tree type>/.
	RenderedTrees string
	// PackageOptions is the per-package options bag, keyed by name.
	PackageOptions map[string]map[string]any
	Diags          diag.Reporter
}

// Loader builds the instance graph of an app from disk.
type Loader struct {
	cache *packages.Cache
	opts  LoaderOptions
}

func NewLoader(cache *packages.Cache, opts LoaderOptions) *Loader {
	if opts.Diags == nil {
		opts.Diags = diag.Discard
	}
	return &Loader{cache: cache, opts: opts}
}

// LoadApp returns the app instance at root with every v1 addon below it.
func (l *Loader) LoadApp(root string) (*Instance, error) {
	pkg, err := l.cache.Get(root)
	if err != nil {
		return nil, fmt.Errorf("load app: %w", err)
	}
	app := l.newInstance(pkg, nil)
	app.IsApp = true
	// the app's imports live in ember-cli-build.js
	app.TrackedImports = nil
	if src, err := os.ReadFile(filepath.Join(pkg.Root, "ember-cli-build.js")); err == nil {
		app.TrackedImports = DetectTrackedImports(string(src))
	}
	if err := l.loadChildren(app, map[string]bool{pkg.Root: true}); err != nil {
		return nil, err
	}
	return app, nil
}

func (l *Loader) newInstance(pkg *packages.Package, parent *Instance) *Instance {
	inst := &Instance{
		Package:       pkg,
		Parent:        parent,
		ModuleName:    pkg.Name,
		Hooks:         HookSet{},
		Options:       l.opts.PackageOptions[pkg.Name],
		TracksImports: true,
	}
	if l.opts.RenderedTrees != "" {
		inst.RenderedTrees = filepath.Join(l.opts.RenderedTrees, filepath.FromSlash(pkg.Name))
	}

	src, err := os.ReadFile(filepath.Join(pkg.Root, filepath.FromSlash(pkg.AddonMain())))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warnf("read main module of %s: %v", pkg.Name, err)
		}
		return inst
	}
	text := string(src)
	inst.Hooks = DetectHooks(text)
	if name, ok := DetectModuleName(text); ok {
		inst.ModuleName = name
	}
	inst.TrackedImports = DetectTrackedImports(text)
	if inst.Hooks.Has(HookTreePaths) {
		l.opts.Diags.Report(diag.Unsupported, pkg.Name, "customizes treePaths; stock tree locations are assumed")
	}
	return inst
}

// loadChildren attaches the v1 addons inst depends on. ancestry guards
// against dependency cycles.
func (l *Loader) loadChildren(inst *Instance, ancestry map[string]bool) error {
	var candidates []*packages.Package
	for _, dep := range l.cache.Dependencies(inst.Package, inst.IsApp) {
		candidates = append(candidates, dep)
	}
	for _, rel := range inst.Package.AddonPaths() {
		p, err := l.cache.Get(filepath.Join(inst.Root(), filepath.FromSlash(rel)))
		if err != nil {
			return fmt.Errorf("%s: in-repo addon %s: %w", inst.Name(), rel, err)
		}
		candidates = append(candidates, p)
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })

	for _, p := range candidates {
		if !p.IsEmberPackage() || p.IsV2() {
			continue
		}
		if ancestry[p.Root] {
			logger.Debugf("dependency cycle: %s already consumes %s", inst.Name(), p.Name)
			continue
		}
		child := l.newInstance(p, inst)
		ancestry[p.Root] = true
		err := l.loadChildren(child, ancestry)
		delete(ancestry, p.Root)
		if err != nil {
			return err
		}
		inst.Children = append(inst.Children, child)
	}
	return nil
}
