// Package externals implements the externals subcommand: it reports
// which imports of a package on disk its declared dependencies do not
// cover.
package externals

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/embroider-build/embroider-sub001/internal/analyzer"
	"github.com/embroider-build/embroider-sub001/internal/importscan"
	"github.com/embroider-build/embroider-sub001/internal/packages"
	"github.com/embroider-build/embroider-sub001/internal/report"
)

// Scan parses the module files of the package at dir and computes its
// externals. topLevel gives the package app semantics: its
// devDependencies count as declared.
func Scan(dir string, topLevel bool) (*packages.Package, analyzer.Result, error) {
	pkg, err := packages.NewCache().Get(dir)
	if err != nil {
		return nil, analyzer.Result{}, err
	}
	var imports []importscan.Import
	for _, d := range sourceDirs(pkg, topLevel) {
		found, err := importscan.ScanDir(filepath.Join(pkg.Root, d))
		if err != nil {
			return nil, analyzer.Result{}, fmt.Errorf("scan %s: %w", pkg.Root, err)
		}
		imports = append(imports, found...)
	}
	res := analyzer.Externals(analyzer.Specifiers(slices.Values(imports)), analyzer.DeclaredFrom(pkg), topLevel)
	return pkg, res, nil
}

// sourceDirs lists the runtime source directories of pkg. A v1 addon's
// main module and build files run in node and are not scanned.
func sourceDirs(pkg *packages.Package, topLevel bool) []string {
	switch {
	case topLevel:
		return []string{"app"}
	case pkg.IsEmberPackage() && !pkg.IsV2():
		return []string{"addon", "addon-test-support", "app"}
	default:
		return []string{"."}
	}
}

func NewCommand() *cobra.Command {
	var jsonOut, app bool
	cmd := &cobra.Command{
		Use:   "externals <package-dir>",
		Short: "List the imports a package's declared dependencies do not cover",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			pkg, res, err := Scan(dir, app)
			if err != nil {
				return err
			}
			if res.SelfReference {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s imports itself by name\n", pkg.Name)
			}
			if jsonOut {
				return report.WriteExternalsJSON(cmd.OutOrStdout(), pkg.Name, res.Externals)
			}
			report.WriteExternals(cmd.OutOrStdout(), pkg.Name, res.Externals)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "JSON output")
	cmd.Flags().BoolVar(&app, "app", false, "treat the package as the top-level app")
	return cmd
}
