// ABOUTME: Code and activist code catalog resolution
// ABOUTME: Pages through catalogs, looks names up case-insensitively and creates missing codes
package everyaction

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hotgluexyz/target-everyaction/models"
)

const (
	codesEndpoint         = "codes"
	activistCodesEndpoint = "activistCodes"
	catalogPageSize       = 200
)

// Cursor is the continuation of a paginated listing. The zero value means
// "first page".
type Cursor struct {
	query url.Values
}

// cursorFromLink extracts the continuation query from a nextPageLink.
func cursorFromLink(link string) (Cursor, bool) {
	if strings.TrimSpace(link) == "" {
		return Cursor{}, false
	}
	u, err := url.Parse(link)
	if err != nil || u.RawQuery == "" {
		return Cursor{}, false
	}
	return Cursor{query: u.Query()}, true
}

// page is the envelope shared by every list endpoint.
type page[T any] struct {
	Items        []T    `json:"items"`
	Count        int    `json:"count"`
	NextPageLink string `json:"nextPageLink"`
}

// paginate calls each for every item of every page, in API order. It stops
// when a page links to a cursor it has already followed.
func paginate[T any](ctx context.Context, c *Client, endpoint string, first url.Values, each func(T)) error {
	query := first
	followed := map[string]bool{first.Encode(): true}
	for {
		resp, err := c.Call(ctx, http.MethodGet, endpoint, nil, query)
		if err != nil {
			return err
		}

		var p page[T]
		if err := resp.Decode(&p); err != nil {
			return fmt.Errorf("failed to decode %s page: %w", endpoint, err)
		}
		for _, item := range p.Items {
			each(item)
		}

		next, ok := cursorFromLink(p.NextPageLink)
		if !ok || len(p.Items) == 0 {
			return nil
		}
		key := next.query.Encode()
		if followed[key] {
			c.log.Warn().Str("endpoint", endpoint).Str("next_page", p.NextPageLink).
				Msg("next page link repeats, stopping pagination")
			return nil
		}
		followed[key] = true
		query = next.query
	}
}

type codeItem struct {
	CodeID   int    `json:"codeId"`
	Name     string `json:"name"`
	CodeType string `json:"codeType"`
}

type activistCodeItem struct {
	ActivistCodeID int    `json:"activistCodeId"`
	Name           string `json:"name"`
	Status         string `json:"status"`
}

// ListCodes returns the whole generic code catalog.
func (c *Client) ListCodes(ctx context.Context) ([]models.Code, error) {
	var codes []models.Code
	first := url.Values{"$top": {strconv.Itoa(catalogPageSize)}}
	err := paginate(ctx, c, codesEndpoint, first, func(item codeItem) {
		codes = append(codes, models.Code{ID: item.CodeID, Name: item.Name, Kind: item.CodeType})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list codes: %w", err)
	}
	return codes, nil
}

// ListActivistCodes returns Active and Archived activist codes.
func (c *Client) ListActivistCodes(ctx context.Context) ([]models.Code, error) {
	var codes []models.Code
	first := url.Values{
		"statuses": {"Active,Archived"},
		"$top":     {strconv.Itoa(catalogPageSize)},
	}
	err := paginate(ctx, c, activistCodesEndpoint, first, func(item activistCodeItem) {
		codes = append(codes, models.Code{ID: item.ActivistCodeID, Name: item.Name})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list activist codes: %w", err)
	}
	return codes, nil
}

// TagAttributes marks a tag as searchable and applicable on contacts.
func TagAttributes() map[string]any {
	return map[string]any{
		"supportedEntities": []map[string]any{
			{"name": "Contacts", "isSearchable": true, "isApplicable": true},
		},
	}
}

// CreateCode creates a code of the given kind and returns its id.
func (c *Client) CreateCode(ctx context.Context, name, kind string, extra map[string]any) (int, error) {
	body := map[string]any{}
	for k, v := range extra {
		body[k] = v
	}
	body["name"] = name
	body["codeType"] = kind

	resp, err := c.Call(ctx, http.MethodPost, codesEndpoint, body, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s code %q: %w", kind, name, err)
	}

	id, err := parseCreatedID(resp, "codeId")
	if err != nil {
		return 0, fmt.Errorf("failed to read id of created code %q: %w", name, err)
	}
	return id, nil
}

// parseCreatedID accepts either a bare integer body or an object carrying field.
func parseCreatedID(resp *Response, field string) (int, error) {
	raw := strings.TrimSpace(string(resp.Body))
	if id, err := strconv.Atoi(raw); err == nil {
		return id, nil
	}

	var obj map[string]any
	if err := resp.Decode(&obj); err != nil {
		return 0, err
	}
	switch v := obj[field].(type) {
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	}
	return 0, fmt.Errorf("response has no %s", field)
}

// CodeCatalog is a per-upsert view of the generic code catalog. It is loaded
// on first use and learns codes it creates, so a name is created at most once
// per catalog. It must not be shared across records.
type CodeCatalog struct {
	client *Client
	loaded bool
	byKind map[string]map[string]int
}

// NewCodeCatalog returns an empty catalog bound to c.
func (c *Client) NewCodeCatalog() *CodeCatalog {
	return &CodeCatalog{client: c, byKind: make(map[string]map[string]int)}
}

func (cc *CodeCatalog) load(ctx context.Context) error {
	codes, err := cc.client.ListCodes(ctx)
	if err != nil {
		return err
	}
	for _, code := range codes {
		cc.put(code.Kind, code.Name, code.ID)
	}
	cc.loaded = true
	return nil
}

// put records name; later entries overwrite earlier ones.
func (cc *CodeCatalog) put(kind, name string, id int) {
	names, ok := cc.byKind[kind]
	if !ok {
		names = make(map[string]int)
		cc.byKind[kind] = names
	}
	names[normalizeName(name)] = id
}

// GetOrCreate returns the id of the code named name, creating it when absent.
func (cc *CodeCatalog) GetOrCreate(ctx context.Context, name, kind string, extra map[string]any) (int, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("code name is required")
	}
	if !cc.loaded {
		if err := cc.load(ctx); err != nil {
			return 0, err
		}
	}

	if id, ok := cc.byKind[kind][normalizeName(name)]; ok {
		return id, nil
	}

	id, err := cc.client.CreateCode(ctx, name, kind, extra)
	if err != nil {
		return 0, err
	}
	cc.put(kind, name, id)
	cc.client.log.Info().Str("code", name).Str("kind", kind).Int("code_id", id).Msg("created code")
	return id, nil
}

// ResolveActivistCodes maps names to activist code ids. Unknown names are
// returned in missing and never created.
func (c *Client) ResolveActivistCodes(ctx context.Context, names []string) (map[string]int, []string, error) {
	resolved := make(map[string]int)
	if len(names) == 0 {
		return resolved, nil, nil
	}

	codes, err := c.ListActivistCodes(ctx)
	if err != nil {
		return nil, nil, err
	}

	catalog := make(map[string]int, len(codes))
	for _, code := range codes {
		catalog[normalizeName(code.Name)] = code.ID
	}

	var missing []string
	seen := make(map[string]bool)
	for _, name := range names {
		key := normalizeName(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		if id, ok := catalog[key]; ok {
			resolved[name] = id
			continue
		}
		missing = append(missing, name)
		c.log.Warn().Str("activist_code", name).Msg("activist code not found, skipping")
	}

	return resolved, missing, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
