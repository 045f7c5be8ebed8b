// Package pipeline wires a whole conversion together: it loads the app
// and its v1 addons, converts each of them, and mirrors the result into
// the workspace.
package pipeline

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/embroider-build/embroider-sub001/internal/babelconfig"
	"github.com/embroider-build/embroider-sub001/internal/buildgraph"
	"github.com/embroider-build/embroider-sub001/internal/compat"
	"github.com/embroider-build/embroider-sub001/internal/config"
	"github.com/embroider-build/embroider-sub001/internal/diag"
	"github.com/embroider-build/embroider-sub001/internal/entrypoint"
	"github.com/embroider-build/embroider-sub001/internal/graph"
	"github.com/embroider-build/embroider-sub001/internal/legacy"
	"github.com/embroider-build/embroider-sub001/internal/logger"
	"github.com/embroider-build/embroider-sub001/internal/metrics"
	"github.com/embroider-build/embroider-sub001/internal/packages"
	"github.com/embroider-build/embroider-sub001/internal/report"
	"github.com/embroider-build/embroider-sub001/internal/transform"
	"github.com/embroider-build/embroider-sub001/internal/v1addon"
	"github.com/embroider-build/embroider-sub001/internal/v1app"
	"github.com/embroider-build/embroider-sub001/internal/workspace"
)

type Options struct {
	Config *config.Config
	// Babel scopes in-process transform plugins. Defaults to the process
	// context.
	Babel     *babelconfig.Context
	Templates transform.TemplateCompiler
	HTML      entrypoint.HTMLRewriter
	// Metrics is optional.
	Metrics *metrics.Recorder
}

type Pipeline struct {
	cfg     *config.Config
	diags   *diag.Collector
	metrics *metrics.Recorder

	app       *legacy.Instance
	addons    []*v1addon.Addon
	appOutput *v1app.App
	ws        *workspace.Workspace
	builder   *buildgraph.Builder
	tmpDir    string

	reported map[diag.Diagnostic]bool
}

// New loads the app at cfg.Dir and plans its conversion. Nothing is
// written until Build.
func New(opts Options) (*Pipeline, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("pipeline: no config")
	}
	bctx := opts.Babel
	if bctx == nil {
		bctx = babelconfig.Default()
	}
	p := &Pipeline{
		cfg:      cfg,
		diags:    diag.NewCollector(),
		metrics:  opts.Metrics,
		reported: make(map[diag.Diagnostic]bool),
	}

	cache := packages.NewCache()
	loader := legacy.NewLoader(cache, legacy.LoaderOptions{
		RenderedTrees:  cfg.RenderedTrees,
		PackageOptions: cfg.PackageOptions(),
		Diags:          p.diags,
	})
	app, err := loader.LoadApp(cfg.Dir)
	if err != nil {
		return nil, err
	}
	p.app = app

	serialized, err := bctx.Serialize(cfg.BabelConfig())
	if err != nil {
		return nil, fmt.Errorf("serialize babel config: %w", err)
	}
	tp, err := transform.New(bctx, serialized, opts.Templates)
	if err != nil {
		return nil, fmt.Errorf("configure transforms: %w", err)
	}

	p.addons = p.convertAddons(v1addon.Options{Pipeline: tp, Packages: cache, Diags: p.diags})

	p.appOutput, err = v1app.New(app, p.addons, v1app.Options{
		Pipeline:    tp,
		BabelConfig: serialized,
		Diags:       p.diags,
		AutoRun:     cfg.AutoRun,
		MainModule:  cfg.MainModule,
		Environment: environment(cfg, app),
		HTML:        opts.HTML,
	})
	if err != nil {
		return nil, err
	}

	g, err := graph.Load(cache, app.Root())
	if err != nil {
		return nil, err
	}
	converted := []workspace.Converted{{Root: app.Root(), Tree: p.appOutput.Tree()}}
	for _, a := range p.addons {
		if _, ok := g.Packages[a.Root()]; !ok {
			logger.Warnf("%s is not reachable from the app's dependencies; it is not mirrored", a.Name())
			continue
		}
		converted = append(converted, workspace.Converted{Root: a.Root(), Tree: a.Tree()})
	}
	p.ws, err = workspace.New(workspace.Options{Dest: cfg.Workspace, Graph: g, Converted: converted})
	if err != nil {
		return nil, err
	}

	p.tmpDir, err = os.MkdirTemp("", "embroider-build-")
	if err != nil {
		return nil, err
	}
	p.builder, err = buildgraph.NewBuilder(p.ws, p.tmpDir, buildgraph.Options{Concurrency: cfg.Concurrency})
	if err != nil {
		os.RemoveAll(p.tmpDir)
		return nil, err
	}
	logger.Infof("planned %d v1 packages for %s; workspace %s", len(p.addons), app.Name(), p.ws.OutputDir())
	return p, nil
}

// convertAddons plans one adapter per on-disk package, in descendant
// order. The same package consumed twice by one parent instance with real
// output both times is diagnosed. Instances reached again through another
// path to the same parent package (a diamond) reuse the conversion.
func (p *Pipeline) convertAddons(opts v1addon.Options) []*v1addon.Addon {
	type seat struct {
		root   string
		parent *legacy.Instance
	}
	byRoot := make(map[string]*v1addon.Addon)
	seen := make(map[seat]*v1addon.Addon)
	var out []*v1addon.Addon

	p.app.Walk(func(inst *legacy.Instance) {
		if inst == p.app {
			return
		}
		key := seat{inst.Root(), inst.Parent}
		if first, ok := seen[key]; ok {
			dup := compat.NewAddon(inst, opts)
			if first.HasBuildOutput() && dup.HasBuildOutput() {
				p.diags.Report(diag.DuplicateBuild, inst.Name(),
					"is built twice for %s; only the first build is used", parentName(inst))
			}
			return
		}
		if a, ok := byRoot[inst.Root()]; ok {
			seen[key] = a
			logger.Debugf("%s: reusing conversion for another consumer (%s)", inst.Name(), parentName(inst))
			return
		}
		a := compat.NewAddon(inst, opts)
		byRoot[inst.Root()] = a
		seen[key] = a
		out = append(out, a)
		if p.metrics != nil {
			p.metrics.PackageConverted()
			for _, d := range a.Decisions() {
				p.metrics.TreeDecision(string(d.Tree), string(d.Decision))
			}
		}
	})
	return out
}

func parentName(inst *legacy.Instance) string {
	if inst.Parent == nil {
		return "the app"
	}
	return inst.Parent.Name()
}

// environment fills the runtime config keys the app needs.
func environment(cfg *config.Config, app *legacy.Instance) map[string]any {
	env := make(map[string]any, len(cfg.Environment)+2)
	maps.Copy(env, cfg.Environment)
	if _, ok := env["modulePrefix"]; !ok {
		env["modulePrefix"] = app.ModuleName
	}
	if _, ok := env["rootURL"]; !ok {
		env["rootURL"] = "/"
	}
	return env
}

// Build runs one build cycle.
func (p *Pipeline) Build(ctx context.Context) (report.BuildReport, error) {
	res, err := p.builder.Build(ctx)
	if p.metrics != nil {
		p.metrics.Build(res.Duration, len(res.Rebuilt), err)
	}
	if err != nil {
		p.flushMetrics()
		return report.BuildReport{}, err
	}
	r := p.report(res)
	p.flushMetrics()
	return r, nil
}

func (p *Pipeline) report(res buildgraph.Result) report.BuildReport {
	r := report.BuildReport{
		App:          p.app.Name(),
		AppDir:       p.ws.AppDir(),
		AppExternals: p.appOutput.Analyzer().Externals(),
		Rebuilt:      res.Rebuilt,
		Duration:     res.Duration,
	}
	for _, a := range p.addons {
		pr := report.PackageReport{
			Name:           a.Name(),
			Version:        a.Instance().Package.Version,
			Root:           a.Root(),
			Customization:  a.Customization(),
			HasBuildOutput: a.HasBuildOutput(),
			Externals:      a.Analyzer().Externals(),
		}
		for _, d := range a.Decisions() {
			pr.Decisions = append(pr.Decisions, report.TreeDecision{Tree: string(d.Tree), Decision: string(d.Decision)})
		}
		r.Packages = append(r.Packages, pr)
	}
	sort.Slice(r.Packages, func(i, j int) bool { return r.Packages[i].Name < r.Packages[j].Name })

	// externals above may report self-references, so collect last
	r.Diagnostics = p.diags.All()
	for _, d := range r.Diagnostics {
		if !p.reported[d] {
			p.reported[d] = true
			if p.metrics != nil {
				p.metrics.Diagnostic(string(d.Kind))
			}
		}
	}
	return r
}

func (p *Pipeline) flushMetrics() {
	if p.metrics == nil || p.cfg.MetricsFile == "" {
		return
	}
	if err := p.metrics.WriteFile(p.cfg.MetricsFile); err != nil {
		logger.Warnf("write metrics: %v", err)
	}
}

// WatchRoots are the source directories that can change while the
// process runs.
func (p *Pipeline) WatchRoots() []string {
	roots := []string{p.app.Root()}
	for _, a := range p.addons {
		if workspace.MayRebuild(a.Root()) {
			roots = append(roots, a.Root())
		}
	}
	sort.Strings(roots)
	// nested roots are covered by their parent
	out := roots[:0]
	for _, r := range roots {
		if len(out) > 0 && isWithin(r, out[len(out)-1]) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Workspace is the directory the build writes into.
func (p *Pipeline) Workspace() string { return p.ws.OutputDir() }

// Diagnostics returns everything reported so far.
func (p *Pipeline) Diagnostics() []diag.Diagnostic { return p.diags.All() }

// Close removes intermediate build output. The workspace is kept.
func (p *Pipeline) Close() error { return p.builder.Cleanup() }

func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
