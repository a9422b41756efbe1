// ABOUTME: Static rendering of per-source sync state and recent runs
// ABOUTME: Backs the journal status command with the same styles as the live view
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hotgluexyz/target-everyaction/db"
)

var sourceStyle = lipgloss.NewStyle().
	Bold(true).
	Width(12)

// RenderStatus renders sync states followed by a table of recent runs.
func RenderStatus(states []db.SyncState, runs []db.RunSummary) string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("EveryAction Sync Status"))
	s.WriteString("\n\n")

	if len(states) == 0 && len(runs) == 0 {
		s.WriteString(messageStyle.Render("No sync data found. Run 'target-everyaction sync' first."))
		s.WriteString("\n")
		return s.String()
	}

	s.WriteString(headerStyle.Render("Sources"))
	s.WriteString("\n\n")
	for _, state := range states {
		s.WriteString("  ")
		s.WriteString(sourceStyle.Render(state.Service))
		s.WriteString(renderState(state))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	if len(runs) > 0 {
		s.WriteString(headerStyle.Render("Recent Runs"))
		s.WriteString("\n\n")
		for _, run := range runs {
			line := fmt.Sprintf("  %s  %-8s %3d total  %3d ok  %3d updated",
				run.RunID, run.SourceService, run.Total, run.Succeeded, run.Updated)
			if run.Failed > 0 {
				s.WriteString(line)
				s.WriteString(errorStyle.Render(fmt.Sprintf("  %d failed", run.Failed)))
			} else {
				s.WriteString(line)
			}
			if !run.FinishedAt.IsZero() {
				s.WriteString(messageStyle.Render(" • " + formatTimeSince(run.FinishedAt)))
			}
			s.WriteString("\n")
		}
	}

	return s.String()
}

func renderState(state db.SyncState) string {
	switch state.Status {
	case "syncing":
		return busyStyle.Render("  ⟳ Syncing...")
	case "error":
		out := errorStyle.Render("  ✗ Error")
		if state.ErrorMessage != nil && *state.ErrorMessage != "" {
			out += errorStyle.Render(": " + *state.ErrorMessage)
		}
		return out
	default:
		out := okStyle.Render("  ✓ Idle")
		if state.LastSyncTime != nil {
			out += messageStyle.Render(" • Last synced " + formatTimeSince(*state.LastSyncTime))
		}
		return out
	}
}

// formatTimeSince formats a time duration in a human-readable way.
func formatTimeSince(t time.Time) string {
	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		minutes := int(duration.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	case duration < 24*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}
