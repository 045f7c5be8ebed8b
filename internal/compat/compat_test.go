package compat

import (
	"context"
	"io"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/embroider-build/embroider-sub001/internal/babelconfig"
	"github.com/embroider-build/embroider-sub001/internal/buildgraph"
	"github.com/embroider-build/embroider-sub001/internal/diag"
	"github.com/embroider-build/embroider-sub001/internal/fixture"
	"github.com/embroider-build/embroider-sub001/internal/legacy"
	"github.com/embroider-build/embroider-sub001/internal/logger"
	"github.com/embroider-build/embroider-sub001/internal/packages"
	"github.com/embroider-build/embroider-sub001/internal/transform"
	"github.com/embroider-build/embroider-sub001/internal/tree"
	"github.com/embroider-build/embroider-sub001/internal/v1addon"
)

const project = `
-- app/package.json --
{"name": "my-app", "devDependencies": {"ember-source": "*", "ember-data": "*", "ember-cli-babel": "*", "ember-get-config": "*", "ember-cli-moment-shim": "*"}}
-- app/config/optional-features.json --
{"jquery-integration": false}
-- app/node_modules/ember-source/package.json --
{"name": "ember-source", "version": "3.28.0", "keywords": ["ember-addon"]}
-- app/node_modules/ember-source/index.js --
module.exports = {
  included(app) {
    app.import('node_modules/jquery/dist/jquery.js');
    app.import('vendor/ember/ember.js');
  }
};
-- app/node_modules/ember-source/vendor/ember/ember.js --
ember
-- app/node_modules/ember-data/package.json --
{"name": "ember-data", "version": "3.8.1", "keywords": ["ember-addon"]}
-- app/node_modules/ember-cli-babel/package.json --
{"name": "ember-cli-babel", "version": "7.26.0", "keywords": ["ember-addon"]}
-- app/node_modules/ember-cli-babel/index.js --
module.exports = { treeFor() {} };
-- app/node_modules/ember-get-config/package.json --
{"name": "ember-get-config", "version": "0.2.4", "keywords": ["ember-addon"]}
-- app/node_modules/ember-get-config/index.js --
module.exports = { treeForAddon() {} };
-- app/node_modules/ember-cli-moment-shim/package.json --
{"name": "ember-cli-moment-shim", "version": "3.7.1", "keywords": ["ember-addon"], "dependencies": {"moment": "*"}}
-- app/node_modules/ember-cli-moment-shim/index.js --
module.exports = { treeForVendor() { return this.momentTree(); } };
-- app/node_modules/moment/package.json --
{"name": "moment", "version": "2.29.4"}
-- app/node_modules/moment/moment.js --
moment
-- app/node_modules/moment/min/moment.min.js --
min
-- app/node_modules/moment/locale/de.js --
de
`

type fixtureApp struct {
	app  *legacy.Instance
	opts v1addon.Options
}

func load(t *testing.T) fixtureApp {
	t.Helper()
	orig := logger.Logger.Writer()
	logger.SetOutput(io.Discard)
	t.Cleanup(func() { logger.SetOutput(orig) })

	dir := fixture.Dir(t, project)
	cache := packages.NewCache()
	app, err := legacy.NewLoader(cache, legacy.LoaderOptions{}).LoadApp(filepath.Join(dir, "app"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := babelconfig.NewContext()
	data, _ := ctx.Serialize(babelconfig.Config{})
	p, err := transform.New(ctx, data, nil)
	if err != nil {
		t.Fatal(err)
	}
	return fixtureApp{app: app, opts: v1addon.Options{Pipeline: p, Packages: cache, Diags: diag.NewCollector()}}
}

func (f fixtureApp) addon(t *testing.T, name string) *v1addon.Addon {
	t.Helper()
	for _, c := range f.app.Children {
		if c.Name() == name {
			return NewAddon(c, f.opts)
		}
	}
	t.Fatalf("no instance %s", name)
	return nil
}

func build(t *testing.T, a *v1addon.Addon) string {
	t.Helper()
	b, err := buildgraph.NewBuilder(a.Tree(), filepath.Join(t.TempDir(), "out"), buildgraph.Options{})
	if err != nil {
		t.Fatal(err)
	}
	res, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return res.OutputPath
}

func TestLookup(t *testing.T) {
	if _, ok := Lookup("ember-cli-babel"); !ok {
		t.Error("ember-cli-babel should be registered")
	}
	if _, ok := Lookup("some-random-addon"); ok {
		t.Error("unknown packages should use the default conversion")
	}
	if len(Names()) == 0 {
		t.Error("Names() is empty")
	}
}

func TestPreprocessorIsExempt(t *testing.T) {
	f := load(t)
	a := f.addon(t, "ember-cli-babel")
	if a.HasBuildOutput() {
		t.Error("ember-cli-babel should be exempt from duplicate-build checks")
	}
	for _, d := range a.Decisions() {
		if d.Decision != v1addon.CustomizedHandled {
			t.Errorf("%s decision = %s", d.Tree, d.Decision)
		}
	}
	if n := f.opts.Diags.(*diag.Collector).Count(diag.Unsupported); n != 0 {
		t.Errorf("treeFor on a preprocessor should not be diagnosed, got %d", n)
	}
}

func TestEmberDataVersionModule(t *testing.T) {
	f := load(t)
	out := build(t, f.addon(t, "ember-data"))
	if got := fixture.Read(t, out, "version.js"); got != "export default \"3.8.1\";\n" {
		t.Errorf("version.js = %q", got)
	}
	if !strings.Contains(fixture.Read(t, out, "package.json"), `"./version.js"`) {
		t.Error("version.js should be an implicit module")
	}

	inst := &legacy.Instance{Package: &packages.Package{Name: "ember-data", Version: "3.12.0"}}
	if newEmberData(inst) != nil {
		t.Error("ember-data 3.12 needs no customization")
	}
}

func TestEmberSourceDropsJQuery(t *testing.T) {
	f := load(t)
	out := build(t, f.addon(t, "ember-source"))
	shim := fixture.Read(t, out, v1addon.ImplicitImports)
	if strings.Contains(shim, "jquery") || !strings.Contains(shim, "./vendor/ember/ember.js") {
		t.Errorf("implicit imports shim = %q", shim)
	}
	if pj := fixture.Read(t, out, "package.json"); strings.Contains(pj, "jquery") {
		t.Errorf("manifest still declares jquery:\n%s", pj)
	}
}

func TestGetConfigReexportsAppConfig(t *testing.T) {
	f := load(t)
	a := f.addon(t, "ember-get-config")
	out := build(t, a)
	want := "import config from \"my-app/config/environment\";\nexport default config;\n"
	if got := fixture.Read(t, out, "index.js"); got != want {
		t.Errorf("index.js = %q, want %q", got, want)
	}
	if !strings.Contains(fixture.Read(t, out, "package.json"), `"my-app"`) {
		t.Error("the app namespace should be external")
	}
}

func TestMomentShimPullsSiblingAssets(t *testing.T) {
	f := load(t)
	files, _ := tree.Files(build(t, f.addon(t, "ember-cli-moment-shim")))
	want := []string{
		"package.json",
		"vendor/moment/locale/de.js",
		"vendor/moment/min/moment.min.js",
		"vendor/moment/moment.js",
	}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("files = %v, want %v", files, want)
	}
}
