// Package compat holds the named exceptions to standard conversion: one
// customization per known-nonstandard legacy package.
package compat

import (
	"fmt"
	"sort"

	mm "github.com/Masterminds/semver/v3"

	"github.com/embroider-build/embroider-sub001/internal/legacy"
	"github.com/embroider-build/embroider-sub001/internal/v1addon"
)

// Constructor returns the customization for an instance, or nil when the
// instance needs none (for example, an unaffected version).
type Constructor func(inst *legacy.Instance) v1addon.Customization

var registry = map[string]Constructor{
	"ember-cli-babel":                      preprocessorOnly("ember-cli-babel"),
	"ember-cli-htmlbars-inline-precompile": preprocessorOnly("ember-cli-htmlbars-inline-precompile"),
	"ember-cli-sass":                       preprocessorOnly("ember-cli-sass"),
	"ember-cli-typescript":                 preprocessorOnly("ember-cli-typescript"),
	"ember-cli-moment-shim":                newMomentShim,
	"ember-get-config":                     newGetConfig,
	"ember-data":                           newEmberData,
	"ember-source":                         newEmberSource,
}

// Lookup returns the constructor registered for a package name.
func Lookup(name string) (Constructor, bool) {
	c, ok := registry[name]
	return c, ok
}

// Names lists the packages with a registered customization.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NewAddon converts inst, applying its customization if one is
// registered.
func NewAddon(inst *legacy.Instance, opts v1addon.Options) *v1addon.Addon {
	var custom v1addon.Customization
	if ctor, ok := Lookup(inst.Name()); ok {
		custom = ctor(inst)
	}
	return v1addon.New(inst, opts, custom)
}

// versionIn reports whether the instance's package version satisfies
// constraint. Unparseable versions never match.
func versionIn(inst *legacy.Instance, constraint string) bool {
	c, err := mm.NewConstraint(constraint)
	if err != nil {
		panic(fmt.Sprintf("compat: bad constraint %q: %v", constraint, err))
	}
	v, err := mm.NewVersion(inst.Package.Version)
	if err != nil {
		return false
	}
	return c.Check(v)
}

// appOf returns the app instance that (transitively) consumes inst.
func appOf(inst *legacy.Instance) *legacy.Instance {
	for inst.Parent != nil {
		inst = inst.Parent
	}
	return inst
}
