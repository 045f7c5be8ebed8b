package compat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/embroider-build/embroider-sub001/internal/diag"
	"github.com/embroider-build/embroider-sub001/internal/legacy"
	"github.com/embroider-build/embroider-sub001/internal/manifest"
	"github.com/embroider-build/embroider-sub001/internal/tree"
	"github.com/embroider-build/embroider-sub001/internal/v1addon"
)

// preprocessor packages only configure the build. Whatever their hooks
// do has no v2 output.
type preprocessor struct{ name string }

func preprocessorOnly(name string) Constructor {
	return func(*legacy.Instance) v1addon.Customization { return preprocessor{name: name} }
}

func (p preprocessor) Name() string        { return p.name }
func (p preprocessor) NoBuildOutput() bool { return true }

func (p preprocessor) OverrideTree(*v1addon.Addon, legacy.TreeType) (tree.Node, bool) {
	return nil, true
}

// momentShim: ember-cli-moment-shim overrides treeForVendor without
// calling its superclass, so moment's own files never reach vendor/.
type momentShim struct{}

func newMomentShim(*legacy.Instance) v1addon.Customization { return momentShim{} }

func (momentShim) Name() string { return "ember-cli-moment-shim" }

func (momentShim) OverrideTree(a *v1addon.Addon, t legacy.TreeType) (tree.Node, bool) {
	if t != legacy.TreeVendor {
		return nil, false
	}
	opts := a.Options()
	moment, err := opts.Packages.Resolve("moment", a.Root())
	if err != nil {
		opts.Diags.Report(diag.Unsupported, a.Name(), "cannot find moment to populate vendor/: %v", err)
		return nil, false
	}
	trees := []tree.Node{
		tree.Funnel(tree.Source(moment.Root), tree.FunnelOptions{
			SrcDir:  "min",
			DestDir: "vendor/moment/min",
			Include: []string{"*.js"},
		}),
		tree.Funnel(tree.Source(moment.Root), tree.FunnelOptions{
			DestDir: "vendor/moment",
			Include: []string{"moment.js", "locale/*.js"},
		}),
	}
	if a.Instance().HasTree(legacy.TreeVendor) {
		trees = append(trees, tree.Funnel(a.Source(), tree.FunnelOptions{SrcDir: a.TreeRel(legacy.TreeVendor), DestDir: "vendor"}))
	}
	return tree.Merge(trees, true), true
}

// getConfig: ember-get-config resolves the app's config module at
// runtime by name. Its v2 form re-exports it statically.
type getConfig struct{ app string }

func newGetConfig(inst *legacy.Instance) v1addon.Customization {
	return getConfig{app: appOf(inst).ModuleName}
}

func (getConfig) Name() string { return "ember-get-config" }

func (g getConfig) OverrideTree(_ *v1addon.Addon, t legacy.TreeType) (tree.Node, bool) {
	if t != legacy.TreeAddon {
		return nil, false
	}
	return tree.Write("index.js", func() ([]byte, error) {
		return fmt.Appendf(nil, "import config from %q;\nexport default config;\n", g.app+"/config/environment"), nil
	}), true
}

// emberData: before 3.12 ember-data generated its version module from a
// build hook.
type emberData struct{ version string }

func newEmberData(inst *legacy.Instance) v1addon.Customization {
	if !versionIn(inst, "< 3.12.0-0") {
		return nil
	}
	return emberData{version: inst.Package.Version}
}

func (emberData) Name() string { return "ember-data" }

func (e emberData) ExtraTrees(*v1addon.Addon) []tree.Node {
	return []tree.Node{tree.Write("version.js", func() ([]byte, error) {
		return fmt.Appendf(nil, "export default %q;\n", e.version), nil
	})}
}

func (emberData) AdjustMeta(_ *v1addon.Addon, m manifest.Meta) manifest.Meta {
	return m.Merge(manifest.Meta{ImplicitModules: []string{"./version.js"}})
}

// emberSource: ember-source imports jQuery unconditionally as far as a
// static reading of its hooks can tell. The app's optional features
// decide whether it really does. jQuery only reaches the manifest through
// tracked imports, so filtering those is enough.
type emberSource struct{ jquery bool }

func newEmberSource(inst *legacy.Instance) v1addon.Customization {
	if !versionIn(inst, ">= 3.4.0-0") {
		return nil
	}
	return emberSource{jquery: jqueryIntegration(appOf(inst).Root())}
}

func (emberSource) Name() string { return "ember-source" }

func (e emberSource) KeepImport(_ *v1addon.Addon, ti legacy.TrackedImport) bool {
	return e.jquery || !strings.Contains(ti.AssetPath, "jquery")
}

// jqueryIntegration reads config/optional-features.json. The feature is
// on unless explicitly disabled.
func jqueryIntegration(appRoot string) bool {
	data, err := os.ReadFile(filepath.Join(appRoot, "config", "optional-features.json"))
	if err != nil {
		return true
	}
	var features map[string]any
	if err := json.Unmarshal(data, &features); err != nil {
		return true
	}
	on, ok := features["jquery-integration"].(bool)
	return !ok || on
}
