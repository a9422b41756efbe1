// ABOUTME: Contact MCP tool handlers
// ABOUTME: Implements upsert_contact, find_contact and resolve_activist_codes against EveryAction
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hotgluexyz/target-everyaction/everyaction"
	"github.com/hotgluexyz/target-everyaction/merge"
	"github.com/hotgluexyz/target-everyaction/models"
	"github.com/hotgluexyz/target-everyaction/sync"
)

type ContactHandlers struct {
	client   *everyaction.Client
	upserter *sync.Upserter
}

func NewContactHandlers(client *everyaction.Client, upserter *sync.Upserter) *ContactHandlers {
	return &ContactHandlers{client: client, upserter: upserter}
}

type UpsertContactInput struct {
	VanID      *int     `json:"van_id,omitempty" jsonschema:"Existing EveryAction VAN ID, if known"`
	FirstName  string   `json:"first_name,omitempty" jsonschema:"First name"`
	LastName   string   `json:"last_name,omitempty" jsonschema:"Last name"`
	Email      string   `json:"email,omitempty" jsonschema:"Email address (used to match existing people)"`
	Phone      string   `json:"phone,omitempty" jsonschema:"Phone number"`
	Employer   string   `json:"employer,omitempty" jsonschema:"Employer"`
	Title      string   `json:"title,omitempty" jsonschema:"Job title"`
	Lists      []string `json:"lists,omitempty" jsonschema:"Activist code names to apply (must already exist)"`
	LeadSource string   `json:"lead_source,omitempty" jsonschema:"Source code name (created if missing)"`
	Tags       []string `json:"tags,omitempty" jsonschema:"Tag names (created if missing)"`
	DryRun     bool     `json:"dry_run,omitempty" jsonschema:"Return the payload that would be sent without writing"`
}

type UpsertContactOutput struct {
	VanID   *int               `json:"van_id,omitempty"`
	Success bool               `json:"success"`
	State   models.UpsertState `json:"state"`
	Payload map[string]any     `json:"payload,omitempty"`
	Diff    string             `json:"diff,omitempty"`
}

func (h *ContactHandlers) UpsertContact(ctx context.Context, request *mcp.CallToolRequest, input UpsertContactInput) (*mcp.CallToolResult, UpsertContactOutput, error) {
	contact := input.toContact()
	if contact.Email == "" && contact.VanID == nil && contact.FirstName == "" && contact.LastName == "" {
		return nil, UpsertContactOutput{}, fmt.Errorf("email, van_id or a name is required")
	}

	if input.DryRun {
		preview, err := h.upserter.Preview(ctx, contact)
		if err != nil {
			return nil, UpsertContactOutput{}, fmt.Errorf("failed to preview contact: %w", err)
		}
		diff, err := sync.PayloadDiff(preview.Existing, preview.Payload)
		if err != nil {
			return nil, UpsertContactOutput{}, err
		}
		return nil, UpsertContactOutput{
			Success: true,
			State:   models.UpsertState{Merged: preview.Existing != nil},
			Payload: preview.Payload,
			Diff:    diff,
		}, nil
	}

	result, err := h.upserter.Upsert(ctx, contact)
	if err != nil {
		return nil, UpsertContactOutput{}, err
	}

	return nil, UpsertContactOutput{
		VanID:   result.VanID,
		Success: result.Success,
		State:   result.State,
	}, nil
}

func (in UpsertContactInput) toContact() models.Contact {
	c := models.Contact{
		VanID:      in.VanID,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Email:      strings.TrimSpace(in.Email),
		Employer:   in.Employer,
		Title:      in.Title,
		Lists:      in.Lists,
		LeadSource: in.LeadSource,
		Tags:       in.Tags,
	}
	if in.Phone != "" {
		c.PhoneNumbers = []models.Phone{{Number: in.Phone}}
	}
	return c
}

type FindContactInput struct {
	VanID *int   `json:"van_id,omitempty" jsonschema:"VAN ID to look up"`
	Email string `json:"email,omitempty" jsonschema:"Email address to look up"`
}

type FindContactOutput struct {
	Found  bool           `json:"found"`
	Person map[string]any `json:"person,omitempty"`
}

func (h *ContactHandlers) FindContact(ctx context.Context, request *mcp.CallToolRequest, input FindContactInput) (*mcp.CallToolResult, FindContactOutput, error) {
	email := strings.TrimSpace(input.Email)
	if input.VanID == nil && email == "" {
		return nil, FindContactOutput{}, fmt.Errorf("van_id or email is required")
	}

	var (
		person merge.Record
		err    error
	)
	if input.VanID != nil {
		person, err = h.client.FindByVanID(ctx, *input.VanID)
	} else {
		person, err = h.client.FindByEmail(ctx, email)
	}
	if err != nil {
		return nil, FindContactOutput{}, fmt.Errorf("failed to find contact: %w", err)
	}

	return nil, FindContactOutput{Found: person != nil, Person: person}, nil
}

type ResolveActivistCodesInput struct {
	Names []string `json:"names" jsonschema:"Activist code names to resolve (required)"`
}

type ResolveActivistCodesOutput struct {
	Resolved map[string]int `json:"resolved"`
	Missing  []string       `json:"missing,omitempty"`
}

func (h *ContactHandlers) ResolveActivistCodes(ctx context.Context, request *mcp.CallToolRequest, input ResolveActivistCodesInput) (*mcp.CallToolResult, ResolveActivistCodesOutput, error) {
	if len(input.Names) == 0 {
		return nil, ResolveActivistCodesOutput{}, fmt.Errorf("names is required")
	}

	resolved, missing, err := h.client.ResolveActivistCodes(ctx, input.Names)
	if err != nil {
		return nil, ResolveActivistCodesOutput{}, fmt.Errorf("failed to resolve activist codes: %w", err)
	}

	return nil, ResolveActivistCodesOutput{Resolved: resolved, Missing: missing}, nil
}
