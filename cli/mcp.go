// ABOUTME: MCP server subcommand
// ABOUTME: Serves the EveryAction contact tools and journal resources on stdio
package cli

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hotgluexyz/target-everyaction/handlers"
)

func newMCPCommand(root *rootOptions, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.setup(cmd, setupOptions{journal: true})
			if err != nil {
				return err
			}
			defer e.Close()

			e.logger.Info().Str("version", version).Msg("starting MCP server")

			contacts := handlers.NewContactHandlers(e.client, e.upserter)
			server := handlers.NewServer(version, contacts, e.journal)
			return server.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
