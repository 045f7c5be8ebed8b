package tree

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/embroider-build/embroider-sub001/internal/buildgraph"
	"github.com/embroider-build/embroider-sub001/internal/fixture"
)

func build(t *testing.T, root Node) string {
	t.Helper()
	b, err := buildgraph.NewBuilder(root, filepath.Join(t.TempDir(), "out"), buildgraph.Options{})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	res, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return res.OutputPath
}

func files(t *testing.T, dir string) []string {
	t.Helper()
	fs, err := Files(dir)
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

const pkg = `
-- addon/index.js --
export default 1;
-- addon/styles/addon.css --
.a {}
-- addon/components/x.hbs --
<div></div>
-- app/x.js --
export { default } from 'pkg/x';
`

func TestFunnel(t *testing.T) {
	src := Source(fixture.Dir(t, pkg))
	tests := []struct {
		name string
		opts FunnelOptions
		want []string
	}{
		{"subdir", FunnelOptions{SrcDir: "addon", Exclude: []string{"styles/**"}}, []string{"components/x.hbs", "index.js"}},
		{"dest", FunnelOptions{SrcDir: "app", DestDir: "_app_"}, []string{"_app_/x.js"}},
		{"include", FunnelOptions{SrcDir: "addon", Include: []string{"**/*.css"}}, []string{"styles/addon.css"}},
		{"missing", FunnelOptions{SrcDir: "vendor"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := files(t, build(t, Funnel(src, tt.opts)))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Funnel(%+v) = %v, want %v", tt.opts, got, tt.want)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	a := Source(fixture.Dir(t, "-- x.js --\nA\n-- a.js --\na\n"))
	b := Source(fixture.Dir(t, "-- x.js --\nB\n"))

	out := build(t, Merge([]Node{a, b}, true))
	if got := fixture.Read(t, out, "x.js"); got != "B\n" {
		t.Errorf("overwrite merge x.js = %q, want later input", got)
	}

	bl, err := buildgraph.NewBuilder(Merge([]Node{a, b}, false), t.TempDir(), buildgraph.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bl.Build(context.Background()); err == nil || !strings.Contains(err.Error(), "merge conflict") {
		t.Errorf("merge without overwrite error = %v, want conflict", err)
	}
}

func TestTransformErrorsAreFatal(t *testing.T) {
	src := Source(fixture.Dir(t, "-- ok.js --\n1\n-- bad.js --\n2\n"))
	boom := errors.New("syntax error")
	tr := Transform("test", src, func(rel string, b []byte) (string, []byte, error) {
		if rel == "bad.js" {
			return "", nil, boom
		}
		return rel, b, nil
	})
	bl, err := buildgraph.NewBuilder(tr, t.TempDir(), buildgraph.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bl.Build(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Build error = %v, want %v", err, boom)
	}
}

func TestSnitchReportsButPassesThrough(t *testing.T) {
	src := Source(fixture.Dir(t, "-- my-addon/logo.png --\npng\n-- other/thing.txt --\nx\n"))
	var bad []string
	out := build(t, Snitch(src, SnitchOptions{
		Allowed:       []string{"my-addon/**/*"},
		FoundBadPaths: func(paths []string) { bad = paths },
	}))
	if want := []string{"other/thing.txt"}; !reflect.DeepEqual(bad, want) {
		t.Errorf("bad paths = %v, want %v", bad, want)
	}
	if got := files(t, out); len(got) != 2 {
		t.Errorf("snitch output = %v, want both files", got)
	}
}

func TestWriteAndObserve(t *testing.T) {
	var seen []string
	out := build(t, Observe(Write("shim.js", func() ([]byte, error) { return []byte("x"), nil }), func(fs []string) { seen = fs }))
	if got := fixture.Read(t, out, "shim.js"); got != "x" {
		t.Errorf("shim.js = %q", got)
	}
	if !reflect.DeepEqual(seen, []string{"shim.js"}) {
		t.Errorf("observed %v", seen)
	}
}
