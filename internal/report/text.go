package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/embroider-build/embroider-sub001/internal/diag"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorBold   = "\033[1m"
	colorCyan   = "\033[36m"
)

func decisionColor(decision string) string {
	switch decision {
	case "customized-unhandled":
		return colorRed
	case "customized-fallback":
		return colorYellow
	case "customized-handled":
		return colorCyan
	default:
		return colorGreen
	}
}

func kindColor(k diag.Kind) string {
	switch k {
	case diag.NamespaceViolation, diag.DuplicateBuild:
		return colorRed
	default:
		return colorYellow
	}
}

func WritePackages(w io.Writer, pkgs []PackageReport) {
	fmt.Fprintf(w, "%s%s=== Converted Packages ===%s\n\n", colorBold, colorCyan, colorReset)
	for _, p := range pkgs {
		fmt.Fprintf(w, "%s%-50s%s %s", colorBold, p.Name, colorReset, p.Version)
		if p.Customization != "" {
			fmt.Fprintf(w, " %s[compat: %s]%s", colorCyan, p.Customization, colorReset)
		}
		fmt.Fprintln(w)
		var parts []string
		for _, d := range p.Decisions {
			if d.Decision == "absent" {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s=%s%s%s", d.Tree, decisionColor(d.Decision), d.Decision, colorReset))
		}
		if len(parts) > 0 {
			fmt.Fprintf(w, "  trees: %s\n", strings.Join(parts, " "))
		}
		if len(p.Externals) > 0 {
			fmt.Fprintf(w, "  externals: %s\n", strings.Join(p.Externals, ", "))
		}
	}
}

func WriteDiagnostics(w io.Writer, diags []diag.Diagnostic) {
	fmt.Fprintf(w, "%s%s=== Diagnostics ===%s\n\n", colorBold, colorCyan, colorReset)
	if len(diags) == 0 {
		fmt.Fprintf(w, "%sNo diagnostics.%s\n", colorGreen, colorReset)
		return
	}
	for _, d := range diags {
		fmt.Fprintf(w, "%s[%s]%s %s%s%s: %s\n",
			kindColor(d.Kind), d.Kind, colorReset,
			colorBold, d.Package, colorReset,
			d.Message)
	}
}

// WriteExternals prints one package's externals, one per line.
func WriteExternals(w io.Writer, name string, externals []string) {
	fmt.Fprintf(w, "%s%s%s externals (%d)\n", colorBold, name, colorReset, len(externals))
	for _, e := range externals {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func WriteBuild(w io.Writer, r BuildReport) {
	WritePackages(w, r.Packages)
	fmt.Fprintln(w)
	WriteExternals(w, r.App, r.AppExternals)
	fmt.Fprintln(w)
	WriteDiagnostics(w, r.Diagnostics)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "App:      %s\n", r.AppDir)
	fmt.Fprintf(w, "Rebuilt:  %d nodes in %s\n", len(r.Rebuilt), r.Duration.Round(1e6))
	if r.Clean() {
		fmt.Fprintf(w, "%s%s✓ CLEAN%s\n", colorBold, colorGreen, colorReset)
	} else {
		fmt.Fprintf(w, "%s%s⚠ %d DIAGNOSTICS%s\n", colorBold, colorYellow, len(r.Diagnostics), colorReset)
	}
}
