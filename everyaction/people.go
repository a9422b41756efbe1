// ABOUTME: People endpoints: locate, find-or-create and code application
// ABOUTME: Fetches full person snapshots by VAN ID or email and applies activist codes and codes
package everyaction

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PersonExpand lists every sub-resource fetched for a full snapshot.
const PersonExpand = "phones,emails,addresses,customFields,externalIds,preferences,recordedAddresses,reportedDemographics,suppressions,cycles,codes,disclosureFieldValues"

// unmatchedMarker is how people/find reports "no such person".
const unmatchedMarker = "Unmatched"

// FindOrCreateResult is the answer of people/findOrCreate.
type FindOrCreateResult struct {
	VanID      *int   `json:"vanId"`
	Status     string `json:"status"`
	StatusCode int    `json:"-"`
}

// Created reports whether the API created a new person.
func (r FindOrCreateResult) Created() bool {
	return r.StatusCode == http.StatusCreated
}

// FindByVanID fetches the person with all sub-resources expanded.
// Returns nil, nil when no such person exists.
func (c *Client) FindByVanID(ctx context.Context, vanID int) (map[string]any, error) {
	endpoint := "people/" + strconv.Itoa(vanID)
	resp, err := c.Call(ctx, http.MethodGet, endpoint, nil, url.Values{"$expand": {PersonExpand}})
	if err != nil {
		if GetKind(err) == KindFatal && statusOf(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch person %d: %w", vanID, err)
	}

	var person map[string]any
	if err := resp.Decode(&person); err != nil {
		return nil, fmt.Errorf("failed to decode person %d: %w", vanID, err)
	}
	return person, nil
}

// FindByEmail matches a person by email and returns the full snapshot.
// Returns nil, nil when the API reports the email as unmatched.
func (c *Client) FindByEmail(ctx context.Context, email string) (map[string]any, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}

	body := map[string]any{"emails": []map[string]any{{"email": email}}}
	resp, err := c.Call(ctx, http.MethodPost, "people/find", body, nil)
	if err != nil {
		if isUnmatched(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find person by email: %w", err)
	}

	var match FindOrCreateResult
	if err := resp.Decode(&match); err != nil {
		return nil, fmt.Errorf("failed to decode match: %w", err)
	}
	if match.VanID == nil {
		return nil, nil
	}

	return c.FindByVanID(ctx, *match.VanID)
}

// FindOrCreate posts payload to people/findOrCreate.
func (c *Client) FindOrCreate(ctx context.Context, payload any) (FindOrCreateResult, error) {
	resp, err := c.Call(ctx, http.MethodPost, "people/findOrCreate", payload, nil)
	if err != nil {
		return FindOrCreateResult{}, err
	}

	result := FindOrCreateResult{StatusCode: resp.StatusCode}
	if len(resp.Body) > 0 {
		if err := resp.Decode(&result); err != nil {
			return result, err
		}
		result.StatusCode = resp.StatusCode
	}
	return result, nil
}

// ApplyActivistCode records a canvass response applying codeID to the person.
func (c *Client) ApplyActivistCode(ctx context.Context, vanID, codeID int) error {
	body := map[string]any{
		"canvassContext": map[string]any{
			"dateCanvassed": time.Now().UTC().Format(time.RFC3339),
		},
		"resultCodeId": nil,
		"responses": []map[string]any{
			{"activistCodeId": codeID, "action": "Apply", "type": "ActivistCode"},
		},
	}
	endpoint := fmt.Sprintf("people/%d/canvassResponses", vanID)
	if _, err := c.Call(ctx, http.MethodPost, endpoint, body, nil); err != nil {
		return fmt.Errorf("failed to apply activist code %d to %d: %w", codeID, vanID, err)
	}
	return nil
}

// AttachCode attaches a source code or tag to the person.
func (c *Client) AttachCode(ctx context.Context, vanID, codeID int) error {
	endpoint := fmt.Sprintf("people/%d/codes", vanID)
	if _, err := c.Call(ctx, http.MethodPost, endpoint, map[string]any{"codeId": codeID}, nil); err != nil {
		return fmt.Errorf("failed to attach code %d to %d: %w", codeID, vanID, err)
	}
	return nil
}

func isUnmatched(err error) bool {
	if !IsFatal(err) {
		return false
	}
	apiErr := asAPIError(err)
	return strings.Contains(apiErr.Body, unmatchedMarker) || strings.Contains(apiErr.Message, unmatchedMarker)
}

func statusOf(err error) int {
	if apiErr := asAPIError(err); apiErr != nil {
		return apiErr.StatusCode
	}
	return 0
}
