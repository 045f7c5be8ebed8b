// Package report renders the outcome of a build for people and tools.
package report

import (
	"time"

	"github.com/embroider-build/embroider-sub001/internal/diag"
)

// TreeDecision is the outcome for one stock tree of a package.
type TreeDecision struct {
	Tree     string `json:"tree"`
	Decision string `json:"decision"`
}

type PackageReport struct {
	Name           string         `json:"name"`
	Version        string         `json:"version,omitempty"`
	Root           string         `json:"root"`
	Customization  string         `json:"customization,omitempty"`
	HasBuildOutput bool           `json:"has_build_output"`
	Decisions      []TreeDecision `json:"decisions"`
	Externals      []string       `json:"externals"`
}

type BuildReport struct {
	App          string            `json:"app"`
	AppDir       string            `json:"app_dir"`
	AppExternals []string          `json:"app_externals"`
	Packages     []PackageReport   `json:"packages"`
	Diagnostics  []diag.Diagnostic `json:"diagnostics"`
	Rebuilt      []string          `json:"rebuilt,omitempty"`
	Duration     time.Duration     `json:"duration_ns"`
}

// Clean reports whether the build produced no diagnostics.
func (r BuildReport) Clean() bool { return len(r.Diagnostics) == 0 }

// Externals maps each package, the app included, to its externals.
func (r BuildReport) Externals() map[string][]string {
	out := make(map[string][]string, len(r.Packages)+1)
	out[r.App] = r.AppExternals
	for _, p := range r.Packages {
		out[p.Name] = p.Externals
	}
	return out
}
