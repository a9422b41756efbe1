// ABOUTME: Google People API client for the contacts source
// ABOUTME: Creates an authenticated People API service from a stored OAuth token
package sync

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"
)

// NewPeopleClient creates a new Google People API client.
func NewPeopleClient(ctx context.Context, token *oauth2.Token) (*people.Service, error) {
	if token == nil {
		return nil, fmt.Errorf("token cannot be nil")
	}

	client := NewOAuthConfig().Client(ctx, token)

	service, err := people.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create People service: %w", err)
	}

	return service, nil
}
