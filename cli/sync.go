// ABOUTME: Singer target command
// ABOUTME: Reads RECORD messages from stdin or a file, upserts them and echoes the last STATE
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hotgluexyz/target-everyaction/sync"
)

func newSyncCommand(root *rootOptions) *cobra.Command {
	var (
		flags  runFlags
		input  string
		stream string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upsert Singer RECORD messages into EveryAction",
		Long: `Reads Singer messages, one JSON object per line, and upserts every RECORD
of the contacts stream. Lines without a "type" are read as bare contacts.
SCHEMA messages are ignored. The value of the last STATE message is written
to stdout once all records are processed.

Examples:
  tap-hubspot | target-everyaction sync --config config.json
  target-everyaction sync --input contacts.jsonl --dry-run
  target-everyaction sync --input contacts.jsonl --progress --skip-synced`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return fmt.Errorf("failed to open input: %w", err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}

			e, err := root.setup(cmd, setupOptions{
				quiet:     flags.progress,
				onlyEmpty: onlyEmptyFlag(cmd),
				journal:   true,
			})
			if err != nil {
				return err
			}
			defer e.Close()

			reader := sync.NewSingerReader(in, stream)
			if _, err := runSource(cmd, e, reader, flags, cmd.OutOrStdout()); err != nil {
				return err
			}

			if state := reader.LastState(); state != nil && !flags.dryRun {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(state))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&input, "input", "i", "", "Read messages from this file instead of stdin")
	cmd.Flags().StringVar(&stream, "stream", sync.DefaultStream, "Stream whose records are contacts")

	return cmd
}
