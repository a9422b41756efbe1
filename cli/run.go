// ABOUTME: Runs a contact source through the runner, plain or with the live view
// ABOUTME: Prints dry-run diffs and the final summary
package cli

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/hotgluexyz/target-everyaction/sync"
	"github.com/hotgluexyz/target-everyaction/tui"
)

// runFlags are the flags shared by commands that run a whole source.
type runFlags struct {
	dryRun     bool
	progress   bool
	skipSynced bool
	onlyEmpty  bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Map and merge each contact and print the diff without writing")
	cmd.Flags().BoolVar(&f.progress, "progress", false, "Show a live progress view")
	cmd.Flags().BoolVar(&f.skipSynced, "skip-synced", false, "Skip contacts the journal already shows as upserted")
	cmd.Flags().BoolVar(&f.onlyEmpty, "only-empty", false, "Only fill fields that are empty on the stored person (overrides config)")
}

// runSource upserts every contact of source. Diffs go to out; the summary
// goes to stderr.
func runSource(cmd *cobra.Command, e *env, source sync.Source, flags runFlags, out io.Writer) (sync.Summary, error) {
	runner := sync.NewRunner(e.upserter, e.journal, &e.logger)
	opts := sync.RunOptions{DryRun: flags.dryRun, SkipSynced: flags.skipSynced}

	var previews []sync.Event
	collect := func(ev sync.Event) {
		if ev.Kind == sync.EventPreview && ev.Diff != "" {
			previews = append(previews, ev)
		}
	}

	var (
		summary sync.Summary
		err     error
	)
	if flags.progress {
		summary, err = tui.Run(cmd.Context(), source.Name(), flags.dryRun,
			func(ctx context.Context, onEvent func(sync.Event), stopped func() bool) (sync.Summary, error) {
				opts.OnEvent = func(ev sync.Event) {
					collect(ev)
					onEvent(ev)
				}
				opts.Stop = stopped
				return runner.Run(ctx, source, opts)
			},
			tea.WithOutput(cmd.ErrOrStderr()),
			tea.WithInputTTY(),
		)
	} else {
		opts.OnEvent = collect
		summary, err = runner.Run(cmd.Context(), source, opts)
	}

	for _, ev := range previews {
		_, _ = fmt.Fprintf(out, "# %s\n%s\n", ev.SourceID, ev.Diff)
	}
	sync.PrintSummary(cmd.ErrOrStderr(), summary)

	return summary, err
}
