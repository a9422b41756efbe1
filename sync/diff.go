// ABOUTME: Unified diffs between the stored person and the payload to be written
// ABOUTME: Used by dry runs to show what a fill-empty upsert would change
package sync

import (
	"encoding/json"
	"fmt"

	"github.com/hotgluexyz/target-everyaction/merge"
	"github.com/pmezard/go-difflib/difflib"
)

// PayloadDiff renders a unified diff from existing to payload. A nil
// existing record diffs against an empty document.
func PayloadDiff(existing, payload merge.Record) (string, error) {
	before, err := prettyJSON(existing)
	if err != nil {
		return "", err
	}
	after, err := prettyJSON(payload)
	if err != nil {
		return "", err
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "everyaction",
		ToFile:   "payload",
		Context:  3,
	})
}

func prettyJSON(record merge.Record) (string, error) {
	if record == nil {
		return "", nil
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	return string(data) + "\n", nil
}
