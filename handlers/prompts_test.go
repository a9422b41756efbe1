package handlers

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotgluexyz/target-everyaction/db"
)

func getPrompt(h *PromptHandlers, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	return h.GetPrompt(context.Background(), &mcp.GetPromptRequest{
		Params: &mcp.GetPromptParams{Name: name, Arguments: args},
	})
}

func promptText(t *testing.T, result *mcp.GetPromptResult) string {
	t.Helper()
	require.Len(t, result.Messages, 1)
	text, ok := result.Messages[0].Content.(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestPersonSummaryPrompt(t *testing.T) {
	api := newFakeEveryAction()
	api.addPerson("55", "jane@x.org", map[string]any{"vanId": 55, "firstName": "Jane", "lastName": "Doe"})
	contacts := newTestHandlers(t, api, false)
	h := NewPromptHandlers(contacts.client, nil)

	result, err := getPrompt(h, "person-summary", map[string]string{"van_id": "55"})
	require.NoError(t, err)

	text := promptText(t, result)
	assert.Contains(t, text, "VAN ID: 55")
	assert.Contains(t, text, "firstName: Jane")
	assert.Contains(t, text, "- jane@x.org")

	_, err = getPrompt(h, "person-summary", map[string]string{"van_id": "999"})
	assert.Error(t, err)
	_, err = getPrompt(h, "person-summary", map[string]string{"van_id": "abc"})
	assert.Error(t, err)
	_, err = getPrompt(h, "person-summary", nil)
	assert.Error(t, err)
}

func TestFailedUpsertsPrompt(t *testing.T) {
	database := setupTestDB(t)
	for _, id := range []string{"a", "b"} {
		require.NoError(t, db.CreateSyncLog(database, &db.SyncLog{
			RunID: "run-1", SourceService: "singer", SourceID: id, Error: "invalid email",
		}))
	}
	require.NoError(t, db.CreateSyncLog(database, &db.SyncLog{
		RunID: "run-1", SourceService: "singer", SourceID: "c", Error: "retries exhausted",
	}))

	h := NewPromptHandlers(nil, database)
	result, err := getPrompt(h, "failed-upserts", map[string]string{"run_id": "run-1"})
	require.NoError(t, err)

	text := promptText(t, result)
	assert.Contains(t, text, "3 upserts into EveryAction failed")
	assert.Contains(t, text, "2× invalid email")
	assert.Contains(t, text, "1× retries exhausted")

	_, err = getPrompt(NewPromptHandlers(nil, nil), "failed-upserts", nil)
	assert.Error(t, err)

	_, err = getPrompt(h, "deal-analysis", nil)
	assert.Error(t, err)
}
