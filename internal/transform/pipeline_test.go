package transform

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/embroider-build/embroider-sub001/internal/babelconfig"
)

func newPipeline(t *testing.T, cfg babelconfig.Config, ctx *babelconfig.Context) *Pipeline {
	t.Helper()
	data, err := ctx.Serialize(cfg)
	if err != nil {
		t.Fatal(err)
	}
	p, err := New(ctx, data, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestFile(t *testing.T) {
	ctx := babelconfig.NewContext()
	stamp := ctx.Register("stamp", func(_ string, src []byte) ([]byte, error) {
		return append([]byte("export const stamped = true;\n"), src...), nil
	})
	p := newPipeline(t, babelconfig.Config{
		Target:  "es2020",
		Define:  map[string]string{"DEBUG": "false"},
		Plugins: []babelconfig.Plugin{stamp},
	}, ctx)

	tests := []struct {
		rel      string
		src      string
		wantPath string
		contains string
	}{
		{"a.js", "export default function f() { return DEBUG; }", "a.js", "return false"},
		{"b.ts", "export const n: number = 1;", "b.js", "export const n = 1"},
		{"c.js", "export default 1;", "c.js", "stamped"},
		{"t.hbs", "<div>{{this.x}}</div>", "t.hbs", "{{this.x}}"},
		{"hello.gts", "import Component from '@glimmer/component';\nexport default class Hello extends Component {\n  <template>Hello {{@name}}</template>\n}\n", "hello.gts", "<template>Hello {{@name}}</template>"},
		{"img.png", "\x89PNG", "img.png", "PNG"},
	}
	for _, tt := range tests {
		gotPath, out, err := p.File(tt.rel, []byte(tt.src))
		if err != nil {
			t.Errorf("File(%q): %v", tt.rel, err)
			continue
		}
		if gotPath != tt.wantPath || !bytes.Contains(out, []byte(tt.contains)) {
			t.Errorf("File(%q) = %q, %q, want path %q containing %q", tt.rel, gotPath, out, tt.wantPath, tt.contains)
		}
	}
}

func TestFileSyntaxErrorIsFatal(t *testing.T) {
	p := newPipeline(t, babelconfig.Config{}, babelconfig.NewContext())
	_, _, err := p.File("broken.js", []byte("export default {"))
	if err == nil || !strings.Contains(err.Error(), "broken.js") {
		t.Errorf("File(broken.js) error = %v", err)
	}
}

func TestStyle(t *testing.T) {
	p := newPipeline(t, babelconfig.Config{}, babelconfig.NewContext())
	_, out, err := p.Style("a.css", []byte(".a { color: red }"))
	if err != nil || !strings.Contains(string(out), "color: red") {
		t.Errorf("Style(a.css) = %q, %v", out, err)
	}
	_, out, _ = p.Style("a.scss", []byte("$x: 1;"))
	if string(out) != "$x: 1;" {
		t.Errorf("scss should pass through, got %q", out)
	}
}

func TestNewRejectsForeignConfig(t *testing.T) {
	data, _ := babelconfig.NewContext().Serialize(babelconfig.Config{})
	if _, err := New(babelconfig.NewContext(), data, nil); !errors.Is(err, babelconfig.ErrNonceMismatch) {
		t.Errorf("New with foreign config = %v, want ErrNonceMismatch", err)
	}
}
