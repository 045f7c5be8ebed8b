// Package entrypoint generates the app's bootstrap module, its runtime
// config module and the rewritten index.html.
package entrypoint

import (
	"bytes"
	"encoding/json"
	"path"
	"strings"
	"text/template"

	"github.com/embroider-build/embroider-sub001/internal/tree"
)

// Options describe the app the entrypoint boots.
type Options struct {
	// ModulePrefix is the app's runtime namespace.
	ModulePrefix string
	// EntrypointPath is where the entrypoint is written, relative to the
	// app root. Build-time paths are made relative to it.
	EntrypointPath string
	// AutoRun boots the app once every module is defined.
	AutoRun bool
	// MainModule is the runtime name of the Application class. Defaults
	// to <prefix>/app. A name inside the app is booted through its
	// build-time path, like every other module.
	MainModule string
	// AppConfig is passed to create().
	AppConfig map[string]any
	// Imports are side-effect imports evaluated before any module is
	// defined.
	Imports []string
}

// Module is one define directive.
type Module struct {
	Runtime   string
	BuildTime string
}

var entryTemplate = template.Must(template.New("entrypoint").Funcs(template.FuncMap{
	"js": func(s string) (string, error) {
		b, err := json.Marshal(s)
		return string(b), err
	},
}).Parse(`{{range .Imports}}import {{js .}};
{{end}}let w = window;
let d = w.define;

function i(specifier) {
  return require(specifier);
}
{{range .Modules}}
d({{js .Runtime}}, function() { return i({{js .BuildTime}}); });
{{- end}}
{{if .AutoRun}}
if (!w.runningTests) {
  i({{js .Main}}).default.create({{.Config}});
}
{{end -}}
`))

var (
	moduleExts = []string{".js", ".ts", ".gjs", ".gts", ".hbs"}
	scriptExts = []string{".js", ".ts", ".gjs", ".gts"}
)

// Modules lists the define directives for the app tree in dir. A script
// and a template with the same name yield one directive for the script.
func Modules(dir string, opts Options) ([]Module, error) {
	files, err := tree.Files(dir)
	if err != nil {
		return nil, err
	}
	scripts := make(map[string]bool)
	for _, f := range files {
		if ext := path.Ext(f); contains(scriptExts, ext) {
			scripts[strings.TrimSuffix(f, ext)] = true
		}
	}
	base := path.Dir(opts.EntrypointPath)
	var out []Module
	for _, f := range files {
		ext := path.Ext(f)
		if !contains(moduleExts, ext) || f == opts.EntrypointPath {
			continue
		}
		name := strings.TrimSuffix(f, ext)
		if ext == ".hbs" && scripts[name] {
			continue
		}
		out = append(out, Module{
			Runtime:   opts.ModulePrefix + "/" + name,
			BuildTime: relativeTo(base, f),
		})
	}
	return out, nil
}

// Synthesize returns the entrypoint module for the app tree in dir.
func Synthesize(dir string, opts Options) ([]byte, error) {
	mods, err := Modules(dir, opts)
	if err != nil {
		return nil, err
	}
	main := mainSpecifier(mods, opts)
	cfg := opts.AppConfig
	if cfg == nil {
		cfg = map[string]any{}
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = entryTemplate.Execute(&buf, struct {
		Imports []string
		Modules []Module
		AutoRun bool
		Main    string
		Config  string
	}{opts.Imports, mods, opts.AutoRun, main, string(cfgJSON)})
	return buf.Bytes(), err
}

// mainSpecifier is what the boot code requires. The main module's
// build-time path when the app defines it, an extensionless path into the
// app for a name under its prefix, and the name itself otherwise.
func mainSpecifier(mods []Module, opts Options) string {
	main := opts.MainModule
	if main == "" {
		main = opts.ModulePrefix + "/app"
	}
	for _, m := range mods {
		if m.Runtime == main {
			return m.BuildTime
		}
	}
	if rest, ok := strings.CutPrefix(main, opts.ModulePrefix+"/"); ok {
		return relativeTo(path.Dir(opts.EntrypointPath), rest)
	}
	return main
}

func relativeTo(base, target string) string {
	if base == "." || base == "" {
		return "./" + target
	}
	ups := strings.Count(base, "/") + 1
	return strings.Repeat("../", ups) + target
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var configTemplate = template.Must(template.New("config").Parse(`let config;
let metaName = {{.}};
try {
  let rawConfig = document.querySelector('meta[name="' + metaName + '"]').getAttribute('content');
  config = JSON.parse(decodeURIComponent(rawConfig));
} catch (err) {
  throw new Error('Could not read config from meta tag with name "' + metaName + '".');
}
export default config;
`))

// MetaName is the name of the meta tag carrying the runtime config.
func MetaName(prefix string) string {
	return prefix + "/config/environment"
}

// ConfigModule returns the module that reads the runtime config from the
// served document.
func ConfigModule(prefix string) []byte {
	var buf bytes.Buffer
	b, _ := json.Marshal(MetaName(prefix))
	// executing a parsed template into a buffer cannot fail
	_ = configTemplate.Execute(&buf, string(b))
	return buf.Bytes()
}
