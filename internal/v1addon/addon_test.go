package v1addon

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"reflect"
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
)

func quiet(t *testing.T) {
	t.Helper()
	orig := logger.Logger.Writer()
	logger.SetOutput(io.Discard)
	t.Cleanup(func() { logger.SetOutput(orig) })
}

func testOptions(t *testing.T, diags diag.Reporter) Options {
	t.Helper()
	ctx := babelconfig.NewContext()
	data, err := ctx.Serialize(babelconfig.Config{})
	if err != nil {
		t.Fatal(err)
	}
	p, err := transform.New(ctx, data, nil)
	if err != nil {
		t.Fatal(err)
	}
	return Options{Pipeline: p, Packages: packages.NewCache(), Diags: diags}
}

func loadInstance(t *testing.T, root string) *legacy.Instance {
	t.Helper()
	pkg, err := packages.Load(root)
	if err != nil {
		t.Fatal(err)
	}
	src, _ := os.ReadFile(filepath.Join(root, "index.js"))
	inst := &legacy.Instance{
		Package:        pkg,
		ModuleName:     pkg.Name,
		Hooks:          legacy.DetectHooks(string(src)),
		TrackedImports: legacy.DetectTrackedImports(string(src)),
		TracksImports:  true,
	}
	if name, ok := legacy.DetectModuleName(string(src)); ok {
		inst.ModuleName = name
	}
	return inst
}

func buildAddon(t *testing.T, a *Addon) string {
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

type emberAddon struct {
	Version             int               `json:"version"`
	Type                string            `json:"type"`
	Externals           []string          `json:"externals"`
	AppJS               string            `json:"app-js"`
	ImplicitStyles      []string          `json:"implicit-styles"`
	ImplicitImports     []string          `json:"implicit-imports"`
	ImplicitTestImports []string          `json:"implicit-test-imports"`
	ImplicitTestModules []string          `json:"implicit-test-modules"`
	PublicAssets        map[string]string `json:"public-assets"`
	RenamedPackages     map[string]string `json:"renamed-packages"`
}

func readManifest(t *testing.T, dir string) emberAddon {
	t.Helper()
	var pj struct {
		EmberAddon emberAddon `json:"ember-addon"`
	}
	if err := json.Unmarshal([]byte(fixture.Read(t, dir, "package.json")), &pj); err != nil {
		t.Fatal(err)
	}
	return pj.EmberAddon
}

func decisions(a *Addon) map[legacy.TreeType]Decision {
	out := make(map[legacy.TreeType]Decision)
	for _, d := range a.Decisions() {
		out[d.Tree] = d.Decision
	}
	return out
}

const stockAddon = `
-- my-addon/package.json --
{"name": "my-addon", "version": "1.0.0", "keywords": ["ember-addon"], "dependencies": {"ember-cli-babel": "*"}}
-- my-addon/index.js --
module.exports = {
  name: 'my-addon',
  included(app) {
    this.import('vendor/shim.js');
    this.import('vendor/shim.css');
    this.import('node_modules/lib/lib.js', { type: 'test' });
    this.import('vendor/x.js', { type: 'weird' });
  }
};
-- my-addon/addon/index.js --
import { helper } from '@ember/component/helper';
import thing from 'lodash/thing';
export default helper(thing);
-- my-addon/addon/styles/addon.css --
.my-addon { color: red }
-- my-addon/addon-test-support/index.ts --
export const n: number = 1;
-- my-addon/test-support/helpers/setup.js --
export default function setup() {}
-- my-addon/app/helpers/x.js --
import Helper from '@ember/component/helper';
export default Helper;
-- my-addon/app/styles/my-addon.css --
.x { color: blue }
-- my-addon/public/logo.png --
png
-- my-addon/vendor/shim.js --
window.shim = true;
`

func TestStockConversion(t *testing.T) {
	quiet(t)
	dir := fixture.Dir(t, stockAddon)
	diags := diag.NewCollector()
	a := New(loadInstance(t, filepath.Join(dir, "my-addon")), testOptions(t, diags), nil)

	for tt, want := range map[legacy.TreeType]Decision{
		legacy.TreeAddon:            Stock,
		legacy.TreeAddonStyles:      Stock,
		legacy.TreeStyles:           Stock,
		legacy.TreeAddonTestSupport: Stock,
		legacy.TreeTestSupport:      Stock,
		legacy.TreeApp:              Stock,
		legacy.TreePublic:           Stock,
		legacy.TreeVendor:           Stock,
	} {
		if got := decisions(a)[tt]; got != want {
			t.Errorf("decision for %s = %s, want %s", tt, got, want)
		}
	}

	out := buildAddon(t, a)
	files, _ := tree.Files(out)
	want := []string{
		"-embroider-implicit-imports.js",
		"-embroider-implicit-test-imports.js",
		"_app_/helpers/x.js",
		"_app_styles_/my-addon.css",
		"_test_support_/helpers/setup.js",
		"addon.css",
		"index.js",
		"package.json",
		"public/logo.png",
		"test-support/index.js",
		"vendor/shim.js",
	}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("output files = %v\nwant %v", files, want)
	}

	m := readManifest(t, out)
	if m.Version != 2 || m.Type != "addon" || m.AppJS != "./_app_" {
		t.Errorf("manifest header = %+v", m)
	}
	if want := []string{"@ember/component", "lodash", "lib"}; !reflect.DeepEqual(m.Externals, want) {
		t.Errorf("externals = %v, want %v", m.Externals, want)
	}
	if want := []string{"./vendor/shim.css", "./addon.css"}; !reflect.DeepEqual(m.ImplicitStyles, want) {
		t.Errorf("implicit-styles = %v, want %v", m.ImplicitStyles, want)
	}
	if !reflect.DeepEqual(m.ImplicitImports, []string{"./-embroider-implicit-imports.js"}) ||
		!reflect.DeepEqual(m.ImplicitTestImports, []string{"./-embroider-implicit-test-imports.js"}) {
		t.Errorf("implicit imports = %v / %v", m.ImplicitImports, m.ImplicitTestImports)
	}
	if !reflect.DeepEqual(m.ImplicitTestModules, []string{"./_test_support_/helpers/setup.js"}) {
		t.Errorf("implicit-test-modules = %v", m.ImplicitTestModules)
	}
	if want := map[string]string{"./public/logo.png": "/my-addon/logo.png"}; !reflect.DeepEqual(m.PublicAssets, want) {
		t.Errorf("public-assets = %v, want %v", m.PublicAssets, want)
	}
	if got := fixture.Read(t, out, "-embroider-implicit-imports.js"); got != "import \"./vendor/shim.js\";\n" {
		t.Errorf("implicit imports shim = %q", got)
	}
	if diags.Count(diag.UnknownImport) != 1 {
		t.Errorf("expected one unknown import diagnostic, got %v", diags.All())
	}
	if _, err := a.Manifest(); err != nil {
		t.Errorf("Manifest() after build: %v", err)
	}
}

const customizedAddon = `
-- pkg/package.json --
{"name": "ember-lodash", "keywords": ["ember-addon"]}
-- pkg/index.js --
module.exports = {
  name: 'ember-lodash',
  moduleName() { return 'lodash'; },
  treeForAddon(tree) { return this._super.treeForAddon.call(this, tree); },
  treeForPublic() {},
  treeForVendor() {}
};
-- pkg/addon/stock-only.js --
export default 'stock';
-- pkg/vendor/v.js --
v
-- rendered/addon/lodash/capitalize.js --
export default function capitalize(s) { return s; }
-- rendered/addon/other-ns/thing.js --
export default 1;
-- rendered/public/ember-lodash/ok.txt --
ok
-- rendered/public/elsewhere/bad.txt --
bad
`

func TestCustomizedTreesAreNeverStock(t *testing.T) {
	quiet(t)
	dir := fixture.Dir(t, customizedAddon)
	inst := loadInstance(t, filepath.Join(dir, "pkg"))
	inst.RenderedTrees = filepath.Join(dir, "rendered")
	diags := diag.NewCollector()
	a := New(inst, testOptions(t, diags), nil)

	got := decisions(a)
	if got[legacy.TreeAddon] != CustomizedFallback || got[legacy.TreePublic] != CustomizedFallback || got[legacy.TreeVendor] != CustomizedUnhandled {
		t.Errorf("decisions = %v", got)
	}

	out := buildAddon(t, a)
	files, _ := tree.Files(out)
	want := []string{
		"capitalize.js",
		"other-ns/thing.js",
		"package.json",
		"public/elsewhere/bad.txt",
		"public/ember-lodash/ok.txt",
	}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("output files = %v\nwant %v", files, want)
	}

	m := readManifest(t, out)
	wantRenamed := map[string]string{"lodash": "ember-lodash", "other-ns": "ember-lodash/other-ns"}
	if !reflect.DeepEqual(m.RenamedPackages, wantRenamed) {
		t.Errorf("renamed-packages = %v, want %v", m.RenamedPackages, wantRenamed)
	}
	wantAssets := map[string]string{
		"./public/ember-lodash/ok.txt": "/ember-lodash/ok.txt",
		"./public/elsewhere/bad.txt":   "/elsewhere/bad.txt",
	}
	if !reflect.DeepEqual(m.PublicAssets, wantAssets) {
		t.Errorf("public-assets = %v, want %v", m.PublicAssets, wantAssets)
	}

	var violations []diag.Diagnostic
	for _, d := range diags.All() {
		if d.Kind == diag.NamespaceViolation {
			violations = append(violations, d)
		}
	}
	if len(violations) != 1 || violations[0].Message != "public tree emitted files outside ember-lodash/: elsewhere/bad.txt" {
		t.Errorf("namespace violations = %v", violations)
	}
	if diags.Count(diag.Unsupported) != 1 {
		t.Errorf("expected the vendor customization to be diagnosed, got %v", diags.All())
	}
}

func TestCustomizedWithoutCapturedOutputIsUnhandled(t *testing.T) {
	quiet(t)
	dir := fixture.Dir(t, customizedAddon)
	diags := diag.NewCollector()
	a := New(loadInstance(t, filepath.Join(dir, "pkg")), testOptions(t, diags), nil)
	if got := decisions(a)[legacy.TreeAddon]; got != CustomizedUnhandled {
		t.Errorf("addon decision = %s, want %s", got, CustomizedUnhandled)
	}
	if diags.Count(diag.Unsupported) != 3 {
		t.Errorf("Unsupported diagnostics = %d, want 3", diags.Count(diag.Unsupported))
	}
}

func TestInertPackage(t *testing.T) {
	dir := fixture.Dir(t, "-- p/package.json --\n{\"name\": \"inert\", \"keywords\": [\"ember-addon\"]}\n")
	a := New(loadInstance(t, filepath.Join(dir, "p")), testOptions(t, nil), nil)
	if a.HasAnyTrees() || a.HasBuildOutput() {
		t.Error("inert package should have no trees")
	}
	files, _ := tree.Files(buildAddon(t, a))
	if !reflect.DeepEqual(files, []string{"package.json"}) {
		t.Errorf("inert output = %v", files)
	}
}

type vendorOverride struct{ exempt bool }

func (vendorOverride) Name() string { return "vendor-override" }

func (v vendorOverride) NoBuildOutput() bool { return v.exempt }

func (vendorOverride) OverrideTree(a *Addon, t legacy.TreeType) (tree.Node, bool) {
	if t != legacy.TreeVendor {
		return nil, false
	}
	return tree.Write("vendor/generated.js", func() ([]byte, error) { return []byte("generated"), nil }), true
}

func TestCustomizationHandlesTree(t *testing.T) {
	quiet(t)
	dir := fixture.Dir(t, customizedAddon)
	diags := diag.NewCollector()
	a := New(loadInstance(t, filepath.Join(dir, "pkg")), testOptions(t, diags), vendorOverride{exempt: true})
	if got := decisions(a)[legacy.TreeVendor]; got != CustomizedHandled {
		t.Errorf("vendor decision = %s, want %s", got, CustomizedHandled)
	}
	if a.HasBuildOutput() {
		t.Error("exempt customization should report no build output")
	}
	out := buildAddon(t, a)
	if got := fixture.Read(t, out, "vendor/generated.js"); got != "generated" {
		t.Errorf("vendor/generated.js = %q", got)
	}
}
