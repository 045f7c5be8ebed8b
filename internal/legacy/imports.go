package legacy

import (
	"path"
	"strings"

	"github.com/embroider-build/embroider-sub001/internal/diag"
)

// ImportSet is a package's tracked imports grouped by where a v2 package
// declares them.
type ImportSet struct {
	Scripts     []TrackedImport
	Styles      []TrackedImport
	TestScripts []TrackedImport
	TestStyles  []TrackedImport
}

// Categorize groups imports by type and extension. An import with an
// unknown type or a non-default output file has no v2 destination: it is
// reported against pkg and left out.
func Categorize(imports []TrackedImport, pkg string, diags diag.Reporter) ImportSet {
	var set ImportSet
	for _, ti := range imports {
		if ti.Type != ImportVendor && ti.Type != ImportTest {
			diags.Report(diag.UnknownImport, pkg,
				"imports %s with unknown type %q; it is not included", ti.AssetPath, ti.Type)
			continue
		}
		if ti.OutputFile != "" && normalizeOutput(ti.OutputFile) != DefaultOutputFile(ti.Type, ti.AssetPath) {
			diags.Report(diag.UnknownImport, pkg,
				"imports %s into custom output file %s; it is not included", ti.AssetPath, ti.OutputFile)
			continue
		}
		css := path.Ext(ti.AssetPath) == ".css"
		switch {
		case ti.Type == ImportTest && css:
			set.TestStyles = append(set.TestStyles, ti)
		case ti.Type == ImportTest:
			set.TestScripts = append(set.TestScripts, ti)
		case css:
			set.Styles = append(set.Styles, ti)
		default:
			set.Scripts = append(set.Scripts, ti)
		}
	}
	return set
}

func normalizeOutput(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

// AssetSpecifier maps a tracked asset path to the specifier a v2 package
// uses for it: a node_modules asset becomes a package import, anything
// else is local to the package.
func AssetSpecifier(asset string) string {
	if rest, ok := strings.CutPrefix(asset, "node_modules/"); ok {
		return rest
	}
	return "./" + strings.TrimPrefix(asset, "./")
}

// Specifiers maps imports through AssetSpecifier.
func Specifiers(imports []TrackedImport) []string {
	var out []string
	for _, ti := range imports {
		out = append(out, AssetSpecifier(ti.AssetPath))
	}
	return out
}
