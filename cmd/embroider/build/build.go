// Package build implements the build subcommand and the setup shared
// with watch.
package build

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/embroider-build/embroider-sub001/internal/config"
	"github.com/embroider-build/embroider-sub001/internal/logger"
	"github.com/embroider-build/embroider-sub001/internal/metrics"
	"github.com/embroider-build/embroider-sub001/internal/pipeline"
	"github.com/embroider-build/embroider-sub001/internal/report"
)

// ErrDiagnostics is returned under --strict when a build reports
// diagnostics.
var ErrDiagnostics = errors.New("build reported diagnostics")

// Open loads the config for the app directory in args (default: the
// working directory) and plans its pipeline.
func Open(cmd *cobra.Command, args []string) (*pipeline.Pipeline, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir, file)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Verbose {
		logger.SetVerbose(true)
	}
	return pipeline.New(pipeline.Options{Config: cfg, Metrics: metrics.New()})
}

func NewCommand(version string) *cobra.Command {
	var jsonOut, sarifOut, strict bool
	cmd := &cobra.Command{
		Use:   "build [app-dir]",
		Short: "Convert the app once and print a report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOut && sarifOut {
				return errors.New("--json and --sarif are mutually exclusive")
			}
			p, err := Open(cmd, args)
			if err != nil {
				return err
			}
			defer p.Close()

			r, err := p.Build(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch {
			case jsonOut:
				err = report.WriteBuildJSON(w, r)
			case sarifOut:
				err = report.WriteBuildSARIF(w, r, version)
			default:
				report.WriteBuild(w, r)
			}
			if err != nil {
				return err
			}
			if strict && !r.Clean() {
				return ErrDiagnostics
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "JSON output")
	cmd.Flags().BoolVar(&sarifOut, "sarif", false, "SARIF 2.1.0 output")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when the build reports diagnostics")
	return cmd
}
