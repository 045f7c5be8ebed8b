// Package packages models npm packages on disk and resolves them through
// node_modules.
package packages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Package is one package.json and the directory holding it.
type Package struct {
	Root             string
	Name             string
	Version          string
	Main             string
	Keywords         []string
	Dependencies     map[string]string
	DevDependencies  map[string]string
	PeerDependencies map[string]string
	// EmberAddon is the raw "ember-addon" object, nil when absent.
	EmberAddon map[string]any
	// Raw is the whole package.json with numbers kept as json.Number.
	Raw map[string]any
}

type packageJSON struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Main             string            `json:"main"`
	Keywords         []string          `json:"keywords"`
	Dependencies     map[string]string `json:"dependencies"`
	DevDependencies  map[string]string `json:"devDependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
}

// Load reads root/package.json.
func Load(root string) (*Package, error) {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return nil, err
	}
	return Parse(root, data)
}

// Parse decodes package.json content for the package at root.
func Parse(root string, data []byte) (*Package, error) {
	var pj packageJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("parse %s/package.json: %w", root, err)
	}
	raw, err := DecodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s/package.json: %w", root, err)
	}
	p := &Package{
		Root:             root,
		Name:             pj.Name,
		Version:          pj.Version,
		Main:             pj.Main,
		Keywords:         pj.Keywords,
		Dependencies:     pj.Dependencies,
		DevDependencies:  pj.DevDependencies,
		PeerDependencies: pj.PeerDependencies,
		Raw:              raw,
	}
	if ea, ok := raw["ember-addon"].(map[string]any); ok {
		p.EmberAddon = ea
	}
	if p.Name == "" {
		p.Name = filepath.Base(root)
	}
	return p, nil
}

// DecodeObject decodes a JSON object keeping numbers verbatim.
func DecodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}

// IsEmberPackage reports whether the package declares the ember-addon
// keyword.
func (p *Package) IsEmberPackage() bool {
	return slices.Contains(p.Keywords, "ember-addon")
}

// IsV2 reports whether the package is already in v2 format.
func (p *Package) IsV2() bool {
	switch v := p.EmberAddon["version"].(type) {
	case json.Number:
		return v.String() == "2"
	case float64:
		return v == 2
	}
	return false
}

// AddonMain returns the module that defines the addon's build hooks.
func (p *Package) AddonMain() string {
	if m, ok := p.EmberAddon["main"].(string); ok && m != "" {
		return m
	}
	if p.Main != "" {
		return p.Main
	}
	return "index.js"
}

// AddonPaths returns the in-repo addon directories listed under
// ember-addon.paths, relative to the package root.
func (p *Package) AddonPaths() []string {
	raw, _ := p.EmberAddon["paths"].([]any)
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// DependencyNames lists runtime dependency names, plus dev dependencies
// when includeDev is set, sorted.
func (p *Package) DependencyNames(includeDev bool) []string {
	var out []string
	for name := range p.Dependencies {
		out = append(out, name)
	}
	if includeDev {
		for name := range p.DevDependencies {
			if _, dup := p.Dependencies[name]; !dup {
				out = append(out, name)
			}
		}
	}
	slices.Sort(out)
	return out
}

// InNodeModules reports whether the package lives inside a node_modules
// directory, i.e. it is installed rather than authored locally.
func (p *Package) InNodeModules() bool {
	return strings.Contains(filepath.ToSlash(p.Root)+"/", "/node_modules/")
}
