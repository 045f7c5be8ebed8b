package watch

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/embroider-build/embroider-sub001/cmd/embroider/build"
	"github.com/embroider-build/embroider-sub001/internal/report"
	"github.com/embroider-build/embroider-sub001/internal/watcher"
)

func NewCommand() *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch [app-dir]",
		Short: "Convert the app, then rebuild whenever its sources change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := build.Open(cmd, args)
			if err != nil {
				return err
			}
			defer p.Close()

			out := cmd.OutOrStdout()
			last, err := p.Build(cmd.Context())
			if err != nil {
				return err
			}
			report.WriteBuild(out, last)

			w, err := watcher.New(watcher.Options{
				Roots:    p.WatchRoots(),
				Exclude:  []string{p.Workspace()},
				Debounce: debounce,
				OnChange: func(ctx context.Context) error {
					next, err := p.Build(ctx)
					if err != nil {
						return err
					}
					report.WriteBuild(out, next)
					report.WriteExternalsDiff(out, report.DiffExternals(last, next))
					last = next
					return nil
				},
			})
			if err != nil {
				return err
			}
			defer w.Close()

			err = w.Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "how long changes must settle before a rebuild")
	return cmd
}
