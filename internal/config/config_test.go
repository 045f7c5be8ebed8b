package config

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/embroider-build/embroider-sub001/internal/fixture"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"EMBROIDER_WORKSPACE", "EMBROIDER_RENDERED_TREES", "EMBROIDER_METRICS_FILE", "EMBROIDER_AUTO_RUN", "EMBROIDER_VERBOSE"} {
		t.Setenv(k, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if !cfg.AutoRun || cfg.Babel.Target != "esnext" {
		t.Errorf("Default() = %+v", cfg)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Dir != dir || !cfg.AutoRun || cfg.Environment != nil {
		t.Errorf("Load = %+v", cfg)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(t.TempDir(), "/does/not/exist.yaml"); err == nil {
		t.Error("missing explicit config file was accepted")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	dir := fixture.Dir(t, `
-- embroider.yaml --
workspace: tmp/ws
auto_run: false
main_module: my-app/main
environment:
  modulePrefix: my-app
  APP:
    name: my-app
babel:
  target: es2020
  define:
    DEBUG: "false"
  plugins:
    - name: strip-debug
      options:
        level: 2
packages:
  ember-cli-sass:
    options:
      includePaths: [styles]
concurrency: 4
`)
	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workspace != filepath.Join(dir, "tmp", "ws") {
		t.Errorf("Workspace = %s", cfg.Workspace)
	}
	if cfg.AutoRun || cfg.MainModule != "my-app/main" || cfg.Concurrency != 4 {
		t.Errorf("scalars = %+v", cfg)
	}
	app, _ := cfg.Environment["APP"].(map[string]any)
	if cfg.Environment["modulePrefix"] != "my-app" || app["name"] != "my-app" {
		t.Errorf("Environment = %v", cfg.Environment)
	}

	bc := cfg.BabelConfig()
	if bc.Target != "es2020" || bc.Define["DEBUG"] != "false" {
		t.Errorf("BabelConfig = %+v", bc)
	}
	if len(bc.Plugins) != 1 || bc.Plugins[0].Name != "strip-debug" || bc.Plugins[0].Options["level"] != 2 {
		t.Errorf("plugins = %+v", bc.Plugins)
	}
	want := map[string]map[string]any{"ember-cli-sass": {"includePaths": []any{"styles"}}}
	if got := cfg.PackageOptions(); !reflect.DeepEqual(got, want) {
		t.Errorf("PackageOptions = %v", got)
	}
}

func TestEnvironmentJSONFallback(t *testing.T) {
	clearEnv(t)
	dir := fixture.Dir(t, `
-- config/environment.json --
{"modulePrefix": "from-json", "rootURL": "/app/"}
`)
	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Environment["modulePrefix"] != "from-json" || cfg.Environment["rootURL"] != "/app/" {
		t.Errorf("Environment = %v", cfg.Environment)
	}
}

func TestEnvOverlay(t *testing.T) {
	clearEnv(t)
	dir := fixture.Dir(t, `
-- embroider.yaml --
workspace: from-yaml
-- .env --
EMBROIDER_WORKSPACE=from-dotenv
EMBROIDER_METRICS_FILE=metrics.prom
EMBROIDER_AUTO_RUN=false
`)
	t.Setenv("EMBROIDER_METRICS_FILE", "/abs/process.prom")
	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workspace != filepath.Join(dir, "from-dotenv") {
		t.Errorf("Workspace = %s", cfg.Workspace)
	}
	if cfg.MetricsFile != "/abs/process.prom" {
		t.Errorf("MetricsFile = %s, process env should win over .env", cfg.MetricsFile)
	}
	if cfg.AutoRun {
		t.Error("EMBROIDER_AUTO_RUN=false not applied")
	}
}

func TestEnvOverlayRejectsBadBool(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMBROIDER_VERBOSE", "sometimes")
	if _, err := Load(t.TempDir(), ""); err == nil {
		t.Error("bad boolean accepted")
	}
}
