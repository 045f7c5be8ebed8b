package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/embroider-build/embroider-sub001/internal/buildgraph"
	"github.com/embroider-build/embroider-sub001/internal/fixture"
	"github.com/embroider-build/embroider-sub001/internal/tree"
)

type fixedExternals struct{ names []string }

func (f *fixedExternals) Inputs() []buildgraph.Node                           { return nil }
func (f *fixedExternals) Build(context.Context, buildgraph.BuildInput) error { return nil }
func (f *fixedExternals) Externals() []string                                { return f.names }

const original = `
-- package.json --
{
  "name": "my-addon",
  "version": "1.2.3",
  "keywords": ["ember-addon"],
  "size": 1.50,
  "ember-addon": {"main": "index.js", "configPath": "tests/dummy/config"}
}
`

func TestRewriterWritesV2Manifest(t *testing.T) {
	dir := fixture.Dir(t, original)
	r := NewRewriter(tree.Source(dir), &fixedExternals{names: []string{"lodash"}}, Options{
		AppJS: "./_app_",
		Meta: func() Meta {
			return Meta{ImplicitStyles: []string{"./my-addon.css"}}
		},
	})

	if _, err := r.Manifest(); !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("Manifest() before build = %v, want ErrNotBuilt", err)
	}

	b, err := buildgraph.NewBuilder(r, filepath.Join(t.TempDir(), "out"), buildgraph.Options{})
	if err != nil {
		t.Fatal(err)
	}
	res, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	written := fixture.Read(t, res.OutputPath, "package.json")
	if !strings.Contains(written, `"size": 1.50`) {
		t.Errorf("numbers should be preserved verbatim:\n%s", written)
	}
	if !strings.HasSuffix(written, "}\n") {
		t.Errorf("manifest should end with a newline")
	}

	var got struct {
		EmberAddon map[string]any `json:"ember-addon"`
	}
	if err := json.Unmarshal([]byte(written), &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"version":         float64(2),
		"type":            "addon",
		"externals":       []any{"lodash"},
		"app-js":          "./_app_",
		"implicit-styles": []any{"./my-addon.css"},
		"configPath":      "tests/dummy/config",
	}
	if !reflect.DeepEqual(got.EmberAddon, want) {
		t.Errorf("ember-addon = %v, want %v", got.EmberAddon, want)
	}

	m, err := r.Manifest()
	if err != nil {
		t.Fatalf("Manifest() after build: %v", err)
	}
	if m["name"] != "my-addon" {
		t.Errorf("cached manifest name = %v", m["name"])
	}
	m["name"] = "changed"
	m["ember-addon"].(map[string]any)["type"] = "app"
	again, err := r.Manifest()
	if err != nil {
		t.Fatal(err)
	}
	if again["name"] != "my-addon" || again["ember-addon"].(map[string]any)["type"] != "addon" {
		t.Errorf("caller changes leaked into the cached manifest: %v", again)
	}
}

func TestRewriteIsIdempotent(t *testing.T) {
	pkg := map[string]any{"name": "x", "ember-addon": map[string]any{"b": 1, "a": 2}}
	first, err := Apply(pkg, nil, Meta{})
	if err != nil {
		t.Fatal(err)
	}
	a, _ := Encode(first)
	second, err := Apply(pkg, nil, Meta{})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Encode(second)
	if string(a) != string(b) {
		t.Errorf("encodings differ:\n%s\n%s", a, b)
	}
	if !strings.Contains(string(a), `"externals": []`) {
		t.Errorf("externals should always be an array:\n%s", a)
	}
}

func TestMetaMerge(t *testing.T) {
	base := Meta{ImplicitModules: []string{"./a"}, RenamedPackages: map[string]string{"x": "y"}}
	got := base.Merge(Meta{ImplicitModules: []string{"./a", "./b"}, RenamedPackages: map[string]string{"z": "w"}, Type: "app"})
	if !reflect.DeepEqual(got.ImplicitModules, []string{"./a", "./b"}) {
		t.Errorf("ImplicitModules = %v", got.ImplicitModules)
	}
	if len(got.RenamedPackages) != 2 || got.Type != "app" {
		t.Errorf("Merge = %+v", got)
	}
	if len(base.ImplicitModules) != 1 {
		t.Errorf("Merge mutated its receiver")
	}
}
