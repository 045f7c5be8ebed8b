package graph

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/embroider-build/embroider-sub001/internal/fixture"
	"github.com/embroider-build/embroider-sub001/internal/packages"
)

const project = `
-- app/package.json --
{"name": "app", "dependencies": {"a": "1"}, "devDependencies": {"b": "1"}, "ember-addon": {"paths": ["lib/local"]}}
-- app/lib/local/package.json --
{"name": "local"}
-- app/node_modules/a/package.json --
{"name": "a", "dependencies": {"c": "1"}, "devDependencies": {"b": "1"}}
-- app/node_modules/b/package.json --
{"name": "b"}
-- app/node_modules/c/package.json --
{"name": "c", "dependencies": {"a": "1", "missing": "1"}}
`

func TestLoad(t *testing.T) {
	dir := fixture.Dir(t, project)
	root, err := filepath.EvalSymlinks(filepath.Join(dir, "app"))
	if err != nil {
		t.Fatal(err)
	}
	g, err := Load(packages.NewCache(), root)
	if err != nil {
		t.Fatal(err)
	}
	at := func(rel string) string { return filepath.Join(root, filepath.FromSlash(rel)) }

	wantRoots := []string{root, at("lib/local"), at("node_modules/a"), at("node_modules/b"), at("node_modules/c")}
	if got := g.Roots(); !reflect.DeepEqual(got, wantRoots) {
		t.Errorf("Roots = %v\nwant %v", got, wantRoots)
	}
	if g.App.Name != "app" {
		t.Errorf("App = %s", g.App.Name)
	}
	if got, want := g.Edges[root], []string{at("node_modules/a"), at("node_modules/b"), at("lib/local")}; !reflect.DeepEqual(got, want) {
		t.Errorf("app edges = %v, want %v", got, want)
	}
	// dev dependencies of non-app packages are not followed
	if got, want := g.Edges[at("node_modules/a")], []string{at("node_modules/c")}; !reflect.DeepEqual(got, want) {
		t.Errorf("a edges = %v, want %v", got, want)
	}
	// cycles terminate and missing packages are skipped
	if got, want := g.Edges[at("node_modules/c")], []string{at("node_modules/a")}; !reflect.DeepEqual(got, want) {
		t.Errorf("c edges = %v, want %v", got, want)
	}
}
