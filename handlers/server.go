// ABOUTME: Assembles the MCP server
// ABOUTME: Registers contact tools and prompts and, when a journal is open, journal resources
package handlers

import (
	"database/sql"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer builds the MCP server. database may be nil, in which case no
// journal resources are exposed.
func NewServer(version string, contacts *ContactHandlers, database *sql.DB) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "target-everyaction",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "upsert_contact",
		Description: "Create or update a person in EveryAction and apply activist codes, source code and tags",
	}, contacts.UpsertContact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_contact",
		Description: "Fetch a person from EveryAction by VAN ID or email, with all sub-resources expanded",
	}, contacts.FindContact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_activist_codes",
		Description: "Map activist code names to ids; unknown names are reported as missing",
	}, contacts.ResolveActivistCodes)

	prompts := NewPromptHandlers(contacts.client, database)
	server.AddPrompt(&mcp.Prompt{
		Name:        "person-summary",
		Description: "Summarize a person record and flag gaps or likely duplicates",
		Arguments: []*mcp.PromptArgument{
			{Name: "van_id", Description: "VAN ID of the person", Required: true},
		},
	}, prompts.GetPrompt)

	if database == nil {
		return server
	}

	server.AddPrompt(&mcp.Prompt{
		Name:        "failed-upserts",
		Description: "Review failed upserts from the journal, grouped by error",
		Arguments: []*mcp.PromptArgument{
			{Name: "run_id", Description: "Limit to one run"},
		},
	}, prompts.GetPrompt)

	resources := NewResourceHandlers(database)
	for _, r := range []*mcp.Resource{
		{URI: uriScheme + "state", Name: "sync-state", Description: "Sync status per source", MIMEType: "application/json"},
		{URI: uriScheme + "runs", Name: "runs", Description: "Recent sync runs", MIMEType: "application/json"},
		{URI: uriScheme + "failures", Name: "failures", Description: "Recent failed upserts", MIMEType: "application/json"},
	} {
		server.AddResource(r, resources.ReadResource)
	}
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "runs/{run_id}",
		Name:        "run",
		Description: "Journal entries of one sync run",
		MIMEType:    "application/json",
	}, resources.ReadResource)

	return server
}
