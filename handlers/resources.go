// ABOUTME: MCP resource handlers for exposing the sync journal
// ABOUTME: Provides read-only access to sync state, recent runs and journal entries via URI
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hotgluexyz/target-everyaction/db"
)

const uriScheme = "everyaction://"

type ResourceHandlers struct {
	db *sql.DB
}

func NewResourceHandlers(database *sql.DB) *ResourceHandlers {
	return &ResourceHandlers{db: database}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, uriScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", uriScheme)
	}

	path := strings.TrimPrefix(uri, uriScheme)
	parts := strings.Split(path, "/")

	switch parts[0] {
	case "state":
		states, err := db.GetAllSyncStates(h.db)
		if err != nil {
			return nil, err
		}
		return jsonResource(uri, states)

	case "runs":
		if len(parts) == 1 || parts[1] == "" {
			runs, err := db.ListRuns(h.db, 20)
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, runs)
		}
		logs, err := db.ListSyncLogs(h.db, db.SyncLogFilter{RunID: parts[1], Limit: 1000})
		if err != nil {
			return nil, err
		}
		return jsonResource(uri, logs)

	case "failures":
		logs, err := db.ListSyncLogs(h.db, db.SyncLogFilter{FailedOnly: true, Limit: 100})
		if err != nil {
			return nil, err
		}
		return jsonResource(uri, logs)

	default:
		return nil, fmt.Errorf("unknown resource: %s", parts[0])
	}
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
