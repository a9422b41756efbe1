// ABOUTME: Journal inspection commands
// ABOUTME: Lists journaled upserts, summarizes recent runs and renders per-source sync status
package cli

import (
	"database/sql"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hotgluexyz/target-everyaction/db"
	"github.com/hotgluexyz/target-everyaction/sync"
	"github.com/hotgluexyz/target-everyaction/tui"
)

func newJournalCommand(root *rootOptions) *cobra.Command {
	var (
		filter db.SyncLogFilter
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recent upserts from the local journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := root.openJournalOnly()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			entries, err := db.ListSyncLogs(database, filter)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&filter.RunID, "run", "", "Only entries of this run")
	f.StringVar(&filter.SourceService, "source", "", "Only entries from this source (singer, google, cli)")
	f.BoolVar(&filter.FailedOnly, "failed", false, "Only failed upserts")
	f.IntVar(&filter.Limit, "limit", 50, "Maximum number of entries")
	f.BoolVar(&asJSON, "json", false, "Output as JSON")

	cmd.AddCommand(newJournalRunsCommand(root), newJournalStatusCommand(root))
	return cmd
}

func newJournalRunsCommand(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Summarize recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := root.openJournalOnly()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			runs, err := db.ListRuns(database, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				_, _ = fmt.Fprintln(out, "No runs recorded yet")
				return nil
			}
			for _, run := range runs {
				_, _ = fmt.Fprintf(out, "%s  %-7s %s  %d total, %d ok (%d updated), %d failed\n",
					run.RunID, run.SourceService, run.StartedAt.Local().Format("2006-01-02 15:04"),
					run.Total, run.Succeeded, run.Updated, run.Failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of runs")
	return cmd
}

func newJournalStatusCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync status per source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := root.openJournalOnly()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			states, err := db.GetAllSyncStates(database)
			if err != nil {
				return err
			}
			runs, err := db.ListRuns(database, 5)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), tui.RenderStatus(states, runs))
			return nil
		},
	}
}

func printEntries(w io.Writer, entries []db.SyncLog) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "No journal entries")
		return
	}

	for _, e := range entries {
		mark := "✓"
		action := "created"
		switch {
		case !e.Success:
			mark, action = "✗", "failed"
		case e.IsUpdated:
			action = "updated"
		}

		van := "-"
		if e.VanID != nil {
			van = strconv.Itoa(*e.VanID)
		}

		_, _ = fmt.Fprintf(w, "%s %s  %-7s %-8s van=%-10s %s",
			mark, e.ImportedAt.Local().Format("2006-01-02 15:04:05"), e.SourceService, action, van, e.SourceID)
		if e.Error != "" {
			_, _ = fmt.Fprintf(w, "  %s", e.Error)
		}
		_, _ = fmt.Fprintln(w)
	}
}

// openJournalOnly opens the journal without requiring API credentials.
func (o *rootOptions) openJournalOnly() (*sql.DB, error) {
	cfg, err := sync.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	path := o.journalPath(cfg)
	database, err := db.OpenDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	return database, nil
}
