// ABOUTME: MCP prompt handlers for reusable EveryAction workflow templates
// ABOUTME: Provides person summaries and failed-upsert reviews built from live data
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hotgluexyz/target-everyaction/db"
	"github.com/hotgluexyz/target-everyaction/everyaction"
)

type PromptHandlers struct {
	client *everyaction.Client
	db     *sql.DB
}

// NewPromptHandlers creates prompt handlers. database may be nil.
func NewPromptHandlers(client *everyaction.Client, database *sql.DB) *PromptHandlers {
	return &PromptHandlers{client: client, db: database}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	arguments := request.Params.Arguments
	switch name {
	case "person-summary":
		return h.getPersonSummaryPrompt(ctx, arguments)
	case "failed-upserts":
		return h.getFailedUpsertsPrompt(arguments)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", name)
	}
}

func (h *PromptHandlers) getPersonSummaryPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	vanIDStr, ok := args["van_id"]
	if !ok {
		return nil, fmt.Errorf("van_id is required")
	}

	vanID, err := strconv.Atoi(strings.TrimSpace(vanIDStr))
	if err != nil {
		return nil, fmt.Errorf("invalid van_id: %w", err)
	}

	person, err := h.client.FindByVanID(ctx, vanID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch person: %w", err)
	}
	if person == nil {
		return nil, fmt.Errorf("person %d not found", vanID)
	}

	var promptText strings.Builder
	promptText.WriteString("Please summarize this EveryAction person record:\n\n")
	promptText.WriteString(fmt.Sprintf("VAN ID: %d\n", vanID))
	for _, field := range []string{"firstName", "middleName", "lastName", "jobTitle", "employer", "occupation"} {
		if v, ok := person[field].(string); ok && v != "" {
			promptText.WriteString(fmt.Sprintf("%s: %s\n", field, v))
		}
	}

	writeList := func(title, listKey, valueKey string) {
		items, _ := person[listKey].([]any)
		if len(items) == 0 {
			return
		}
		promptText.WriteString(fmt.Sprintf("\n%s:\n", title))
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			promptText.WriteString(fmt.Sprintf("- %v\n", m[valueKey]))
		}
	}
	writeList("Emails", "emails", "email")
	writeList("Phones", "phones", "phoneNumber")
	writeList("Addresses", "addresses", "addressLine1")
	writeList("Codes", "codes", "name")

	promptText.WriteString("\nPlease:")
	promptText.WriteString("\n1. Summarize who this person is")
	promptText.WriteString("\n2. Point out missing or inconsistent contact details")
	promptText.WriteString("\n3. Note likely duplicates worth checking (e.g. several emails or phones)")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Summary for VAN ID %d", vanID),
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}

func (h *PromptHandlers) getFailedUpsertsPrompt(args map[string]string) (*mcp.GetPromptResult, error) {
	if h.db == nil {
		return nil, fmt.Errorf("journal is not available")
	}

	entries, err := db.ListSyncLogs(h.db, db.SyncLogFilter{RunID: args["run_id"], FailedOnly: true, Limit: 200})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch journal: %w", err)
	}

	var promptText strings.Builder
	if len(entries) == 0 {
		promptText.WriteString("No failed upserts were recorded.\n")
	} else {
		// group by error text, most frequent first
		bySignature := map[string][]string{}
		for _, e := range entries {
			bySignature[e.Error] = append(bySignature[e.Error], e.SourceID)
		}
		signatures := make([]string, 0, len(bySignature))
		for sig := range bySignature {
			signatures = append(signatures, sig)
		}
		sort.Slice(signatures, func(i, j int) bool {
			return len(bySignature[signatures[i]]) > len(bySignature[signatures[j]])
		})

		promptText.WriteString(fmt.Sprintf("%d upserts into EveryAction failed:\n\n", len(entries)))
		for _, sig := range signatures {
			ids := bySignature[sig]
			promptText.WriteString(fmt.Sprintf("- %d× %s\n  records: %s\n", len(ids), sig, strings.Join(ids, ", ")))
		}
	}

	promptText.WriteString("\nPlease:")
	promptText.WriteString("\n1. Explain the likely cause of each kind of failure")
	promptText.WriteString("\n2. Say which records can be retried as they are and which need fixing first")

	return &mcp.GetPromptResult{
		Description: "Review of failed upserts",
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}
