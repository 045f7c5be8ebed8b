package externals

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/embroider-build/embroider-sub001/internal/fixture"
)

const packagesArchive = `
-- my-addon/package.json --
{"name": "my-addon", "keywords": ["ember-addon"], "dependencies": {"lodash": "4"}, "devDependencies": {"qunit": "2"}}
-- my-addon/index.js --
module.exports = { name: require('./package').name, included() { require('ember-cli-babel'); } };
-- my-addon/addon/index.js --
import capitalize from 'lodash/capitalize';
import { module } from 'qunit';
import './local';
export default [capitalize, module];
-- my-addon/app/helpers/x.js --
export { default } from 'my-addon/helpers/x';
-- my-app/package.json --
{"name": "my-app", "devDependencies": {"@ember/test-helpers": "3"}}
-- my-app/app/app.js --
import { render } from '@ember/test-helpers';
import Application from '@ember/application';
-- plain/package.json --
{"name": "plain"}
-- plain/src/index.ts --
import type { Foo } from 'foo-types';
import bar from 'bar';
`

func TestScan(t *testing.T) {
	dir := fixture.Dir(t, packagesArchive)
	tests := []struct {
		pkg      string
		topLevel bool
		want     []string
		self     bool
	}{
		{"my-addon", false, []string{"qunit", "my-addon"}, true},
		{"my-app", true, []string{"@ember/application"}, false},
		{"my-app", false, []string{"@ember/test-helpers", "@ember/application"}, false},
		{"plain", false, []string{"bar"}, false},
	}
	for _, tt := range tests {
		_, res, err := Scan(filepath.Join(dir, tt.pkg), tt.topLevel)
		if err != nil {
			t.Fatalf("Scan(%s): %v", tt.pkg, err)
		}
		if !reflect.DeepEqual(res.Externals, tt.want) || res.SelfReference != tt.self {
			t.Errorf("Scan(%s, %v) = %v self=%v, want %v self=%v", tt.pkg, tt.topLevel, res.Externals, res.SelfReference, tt.want, tt.self)
		}
	}
}

func TestCommandJSON(t *testing.T) {
	dir := fixture.Dir(t, packagesArchive)
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--json", "--app", filepath.Join(dir, "my-app")})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	var got struct {
		Name      string   `json:"name"`
		Externals []string `json:"externals"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if got.Name != "my-app" || !reflect.DeepEqual(got.Externals, []string{"@ember/application"}) {
		t.Errorf("got %+v", got)
	}
}

func TestCommandRequiresDir(t *testing.T) {
	cmd := NewCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an argument error")
	}
}
