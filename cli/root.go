// ABOUTME: Root command and global flags
// ABOUTME: Wires every subcommand under target-everyaction
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hotgluexyz/target-everyaction/db"
	"github.com/hotgluexyz/target-everyaction/sync"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	dbPath     string
	logLevel   string
	logFormat  string
	noJournal  bool
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "target-everyaction",
		Short: "Upsert contacts into EveryAction",
		Long: `target-everyaction creates or updates people in EveryAction.

Contacts come from Singer RECORD messages, Google Contacts or the command
line. Each contact is sent to people/findOrCreate, after which its activist
codes, source code and tags are applied. With only_upsert_empty_fields the
stored person is fetched first and only its empty fields are filled.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", fmt.Sprintf("Config file, YAML or Singer JSON (default: %s)", sync.ConfigPath()))
	flags.StringVar(&opts.dbPath, "db-path", "", fmt.Sprintf("Journal database path (default: %s)", db.DefaultPath()))
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (default: $LOG_LEVEL or info)")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: auto, console, json (default: $LOG_FORMAT or auto)")
	flags.BoolVar(&opts.noJournal, "no-journal", false, "Do not record upserts in the local journal")

	cmd.AddCommand(
		newSyncCommand(opts),
		newUpsertCommand(opts),
		newFindCommand(opts),
		newGoogleCommand(opts),
		newJournalCommand(opts),
		newConfigCommand(opts),
		newMCPCommand(opts, version),
		newVersionCommand(version),
	)

	return cmd
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context, version string) error {
	return NewRootCommand(version).ExecuteContext(ctx)
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "target-everyaction version %s\n", version)
		},
	}
}
