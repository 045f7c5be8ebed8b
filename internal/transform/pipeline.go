// Package transform turns package sources into the form the bundler
// consumes. JavaScript and TypeScript go through esbuild, templates
// through a pluggable compiler, CSS through esbuild's CSS loader.
package transform

import (
	"fmt"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/embroider-build/embroider-sub001/internal/babelconfig"
	"github.com/embroider-build/embroider-sub001/internal/tree"
)

// TemplateCompiler turns a template into its output form. The default
// leaves templates untouched for the bundler's template plugin.
type TemplateCompiler func(rel string, src []byte) ([]byte, error)

var targets = map[string]api.Target{
	"":       api.ESNext,
	"esnext": api.ESNext,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
}

var scriptLoaders = map[string]api.Loader{
	".js":  api.LoaderJS,
	".mjs": api.LoaderJS,
	".ts":  api.LoaderTS,
	".mts": api.LoaderTS,
}

// templateExts are handed to the template compiler. Template-tag modules
// (.gjs, .gts) embed <template> blocks no script loader parses.
var templateExts = map[string]bool{".hbs": true, ".gjs": true, ".gts": true}

// Pipeline is the configured set of per-file transforms.
type Pipeline struct {
	config    babelconfig.Config
	target    api.Target
	plugins   []babelconfig.PluginFunc
	templates TemplateCompiler
}

// New configures a pipeline from config serialized by ctx. Config from
// another process is rejected.
func New(ctx *babelconfig.Context, serialized []byte, templates TemplateCompiler) (*Pipeline, error) {
	cfg, err := ctx.Deserialize(serialized)
	if err != nil {
		return nil, err
	}
	target, ok := targets[strings.ToLower(cfg.Target)]
	if !ok {
		return nil, fmt.Errorf("unknown target %q", cfg.Target)
	}
	plugins, err := ctx.Resolve(cfg)
	if err != nil {
		return nil, err
	}
	if templates == nil {
		templates = func(_ string, src []byte) ([]byte, error) { return src, nil }
	}
	return &Pipeline{config: cfg, target: target, plugins: plugins, templates: templates}, nil
}

// Config returns the configuration the pipeline was built from.
func (p *Pipeline) Config() babelconfig.Config { return p.config }

// File transforms one source file. Files that are neither scripts nor
// templates pass through unchanged.
func (p *Pipeline) File(rel string, src []byte) (string, []byte, error) {
	ext := path.Ext(rel)
	if templateExts[ext] {
		out, err := p.templates(rel, src)
		return rel, out, err
	}
	loader, ok := scriptLoaders[ext]
	if !ok {
		return rel, src, nil
	}
	for _, plugin := range p.plugins {
		var err error
		if src, err = plugin(rel, src); err != nil {
			return "", nil, err
		}
	}
	result := api.Transform(string(src), api.TransformOptions{
		Loader:     loader,
		Target:     p.target,
		Format:     api.FormatDefault,
		Define:     p.config.Define,
		Sourcefile: rel,
		LogLevel:   api.LogLevelSilent,
	})
	if err := firstError(rel, result.Errors); err != nil {
		return "", nil, err
	}
	out := rel
	if loader == api.LoaderTS {
		out = strings.TrimSuffix(rel, ext) + ".js"
	}
	return out, result.Code, nil
}

// Style compiles one stylesheet. Preprocessor sources pass through.
func (p *Pipeline) Style(rel string, src []byte) (string, []byte, error) {
	if path.Ext(rel) != ".css" {
		return rel, src, nil
	}
	result := api.Transform(string(src), api.TransformOptions{
		Loader:     api.LoaderCSS,
		Sourcefile: rel,
		LogLevel:   api.LogLevelSilent,
	})
	if err := firstError(rel, result.Errors); err != nil {
		return "", nil, err
	}
	return rel, result.Code, nil
}

// Transpile is a tree node running File over in.
func (p *Pipeline) Transpile(in tree.Node, deps ...tree.Node) tree.Node {
	return tree.Transform("transpile", in, p.File, deps...)
}

// CompileStyles is a tree node running Style over in.
func (p *Pipeline) CompileStyles(in tree.Node) tree.Node {
	return tree.Transform("styles", in, p.Style)
}

func firstError(rel string, msgs []api.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	m := msgs[0]
	if m.Location != nil {
		return fmt.Errorf("%s:%d:%d: %s", rel, m.Location.Line, m.Location.Column, m.Text)
	}
	return fmt.Errorf("%s: %s", rel, m.Text)
}
