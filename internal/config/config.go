// Package config loads embroider.yaml from the app root and overlays
// EMBROIDER_* variables from the environment and an optional .env file.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/embroider-build/embroider-sub001/internal/babelconfig"
	"github.com/embroider-build/embroider-sub001/internal/logger"
)

// FileName is the config file looked up in the app root.
const FileName = "embroider.yaml"

//go:embed default.yaml
var defaultYAML []byte

type Config struct {
	// Dir is the app root the config was loaded for.
	Dir string `yaml:"-"`

	Workspace     string                   `yaml:"workspace"`
	AutoRun       bool                     `yaml:"auto_run"`
	MainModule    string                   `yaml:"main_module"`
	RenderedTrees string                   `yaml:"rendered_trees"`
	Environment   map[string]any           `yaml:"environment"`
	Babel         Babel                    `yaml:"babel"`
	Packages      map[string]PackageConfig `yaml:"packages"`
	MetricsFile   string                   `yaml:"metrics_file"`
	Concurrency   int                      `yaml:"concurrency"`
	Verbose       bool                     `yaml:"verbose"`
}

type Babel struct {
	Target  string            `yaml:"target"`
	Define  map[string]string `yaml:"define"`
	Plugins []Plugin          `yaml:"plugins"`
}

type Plugin struct {
	Name    string         `yaml:"name"`
	Options map[string]any `yaml:"options"`
}

type PackageConfig struct {
	Options map[string]any `yaml:"options"`
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return &cfg
}

// Load reads the configuration for the app at dir. file overrides the
// location of embroider.yaml; a missing default file is not an error.
func Load(dir, file string) (*Config, error) {
	cfg := Default()
	cfg.Dir = dir

	explicit := file != ""
	if !explicit {
		file = filepath.Join(dir, FileName)
	}
	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		logger.Debugf("config file found: %s", file)
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		logger.Debugf("no config file found, using defaults")
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if cfg.Environment == nil {
		env, err := readEnvironment(dir)
		if err != nil {
			return nil, err
		}
		cfg.Environment = env
	}

	dotenv, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	if err := cfg.overlay(lookup(dotenv)); err != nil {
		return nil, err
	}

	cfg.Workspace = cfg.resolve(cfg.Workspace)
	cfg.RenderedTrees = cfg.resolve(cfg.RenderedTrees)
	cfg.MetricsFile = cfg.resolve(cfg.MetricsFile)
	return cfg, nil
}

// lookup prefers the process environment over .env. Empty variables
// count as unset.
func lookup(dotenv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

func (c *Config) overlay(get func(string) (string, bool)) error {
	if v, ok := get("EMBROIDER_WORKSPACE"); ok && v != "" {
		c.Workspace = v
	}
	if v, ok := get("EMBROIDER_RENDERED_TREES"); ok && v != "" {
		c.RenderedTrees = v
	}
	if v, ok := get("EMBROIDER_METRICS_FILE"); ok && v != "" {
		c.MetricsFile = v
	}
	for key, dst := range map[string]*bool{
		"EMBROIDER_AUTO_RUN": &c.AutoRun,
		"EMBROIDER_VERBOSE":  &c.Verbose,
	} {
		v, ok := get(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}
	return nil
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// readEnvironment loads the runtime app config ember-cli would have
// produced, when the app provides it as JSON.
func readEnvironment(dir string) (map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(dir, "config", "environment.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var env map[string]any
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse config/environment.json: %w", err)
	}
	return env, nil
}

// BabelConfig is the transform configuration for the pipeline.
func (c *Config) BabelConfig() babelconfig.Config {
	out := babelconfig.Config{Target: c.Babel.Target, Define: c.Babel.Define}
	for _, p := range c.Babel.Plugins {
		out.Plugins = append(out.Plugins, babelconfig.Plugin{Name: p.Name, Options: p.Options})
	}
	return out
}

// PackageOptions is the per-package options bag keyed by package name.
func (c *Config) PackageOptions() map[string]map[string]any {
	out := make(map[string]map[string]any, len(c.Packages))
	for name, p := range c.Packages {
		out[name] = p.Options
	}
	return out
}
