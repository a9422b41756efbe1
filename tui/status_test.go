package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hotgluexyz/target-everyaction/db"
)

func TestRenderStatusEmpty(t *testing.T) {
	out := RenderStatus(nil, nil)
	assert.Contains(t, out, "No sync data found")
}

func TestRenderStatus(t *testing.T) {
	last := time.Now().Add(-2 * time.Hour)
	errMsg := "failed to read contact"

	out := RenderStatus(
		[]db.SyncState{
			{Service: "singer", Status: "idle", LastSyncTime: &last},
			{Service: "google", Status: "error", ErrorMessage: &errMsg},
		},
		[]db.RunSummary{
			{RunID: "01RUN", SourceService: "singer", Total: 3, Succeeded: 2, Updated: 1, Failed: 1, FinishedAt: last},
		},
	)

	assert.Contains(t, out, "singer")
	assert.Contains(t, out, "✓ Idle")
	assert.Contains(t, out, "Last synced 2 hours ago")
	assert.Contains(t, out, "✗ Error: failed to read contact")
	assert.Contains(t, out, "01RUN")
	assert.Contains(t, out, "1 failed")
}

func TestFormatTimeSince(t *testing.T) {
	tests := []struct {
		name string
		ago  time.Duration
		want string
	}{
		{"just now", 10 * time.Second, "just now"},
		{"one minute", 90 * time.Second, "1 minute ago"},
		{"minutes", 5 * time.Minute, "5 minutes ago"},
		{"one hour", 61 * time.Minute, "1 hour ago"},
		{"hours", 3 * time.Hour, "3 hours ago"},
		{"one day", 25 * time.Hour, "1 day ago"},
		{"days", 72 * time.Hour, "3 days ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatTimeSince(time.Now().Add(-tt.ago)))
		})
	}
}
