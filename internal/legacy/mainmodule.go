package legacy

import (
	"regexp"
	"slices"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var (
	// hook definitions: `treeForAddon(tree) {`, `treeForAddon: function`,
	// `treeForAddon = ` as a class field. Member accesses such as
	// `this._super.treeForAddon.call` are not definitions.
	hookDefRe = regexp.MustCompile(`(?:^|[^.\w$])(treeFor\w*|treePaths)\s*[(:=]`)

	moduleNameRe = regexp.MustCompile(`moduleName\s*(?:\(\s*\)\s*\{\s*return\s*|:\s*function\s*\(\s*\)\s*\{\s*return\s*|[:=]\s*\(\s*\)\s*=>\s*)['"]([^'"]+)['"]`)

	importCallRe = regexp.MustCompile(`\.import\(\s*['"]([^'"]+)['"]\s*(?:,\s*\{([^}]*)\})?\s*\)`)
	importTypeRe = regexp.MustCompile(`type\s*:\s*['"]([^'"]+)['"]`)
	outputFileRe = regexp.MustCompile(`outputFile\s*:\s*['"]([^'"]+)['"]`)

	// fallback for sources esbuild cannot parse; a // after a colon or a
	// quote is taken to be part of a URL
	lineCommentRe  = regexp.MustCompile(`(?m)(^|[^:'"\\])//.*$`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// stripComments reprints src without its comments, so that code inside a
// comment is never detected.
func stripComments(src string) string {
	res := api.Transform(src, api.TransformOptions{
		Loader:        api.LoaderJS,
		LegalComments: api.LegalCommentsNone,
		LogLevel:      api.LogLevelSilent,
	})
	if len(res.Errors) == 0 {
		return string(res.Code)
	}
	return lineCommentRe.ReplaceAllString(blockCommentRe.ReplaceAllString(src, ""), "$1")
}

// DetectHooks returns the known hooks a main module source defines.
func DetectHooks(src string) HookSet {
	hooks := HookSet{}
	for _, m := range hookDefRe.FindAllStringSubmatch(stripComments(src), -1) {
		h := Hook(m[1])
		if slices.Contains(KnownHooks, h) {
			hooks[h] = true
		}
	}
	return hooks
}

// DetectModuleName returns the namespace a main module's moduleName()
// returns, if it is a string literal.
func DetectModuleName(src string) (string, bool) {
	m := moduleNameRe.FindStringSubmatch(stripComments(src))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// DetectTrackedImports returns the assets imported with app.import or
// this.import, with types defaulted to vendor.
func DetectTrackedImports(src string) []TrackedImport {
	var out []TrackedImport
	for _, m := range importCallRe.FindAllStringSubmatch(stripComments(src), -1) {
		ti := TrackedImport{AssetPath: m[1], Type: ImportVendor}
		if t := importTypeRe.FindStringSubmatch(m[2]); t != nil {
			ti.Type = t[1]
		}
		if o := outputFileRe.FindStringSubmatch(m[2]); o != nil {
			ti.OutputFile = o[1]
		}
		out = append(out, ti)
	}
	return out
}

// DefaultOutputFile is where ember-cli concatenates an asset of the given
// type and extension when no outputFile is given.
func DefaultOutputFile(importType, assetPath string) string {
	css := strings.HasSuffix(assetPath, ".css")
	switch {
	case importType == ImportTest && css:
		return "/assets/test-support.css"
	case importType == ImportTest:
		return "/assets/test-support.js"
	case css:
		return "/assets/vendor.css"
	default:
		return "/assets/vendor.js"
	}
}
