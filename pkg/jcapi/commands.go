// pkg/jcapi/commands.go - v1 command entity calls.

package jcapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// CommandsByName returns every command whose name matches exactly. The
// caller decides how to treat duplicates.
func (c *Client) CommandsByName(ctx context.Context, name string) ([]Command, error) {
	q := url.Values{}
	q.Set("filter", "name:eq:"+name)

	var resp commandsListResponse
	if err := c.get(ctx, "/api/commands", q, &resp); err != nil {
		return nil, fmt.Errorf("looking up command %q: %w", name, err)
	}
	return resp.Results, nil
}

// CreateCommand creates a command and returns the created entity.
func (c *Client) CreateCommand(ctx context.Context, spec CommandSpec) (*Command, error) {
	var cmd Command
	if err := c.do(ctx, http.MethodPost, "/api/commands", nil, spec, &cmd); err != nil {
		return nil, fmt.Errorf("creating command %q: %w", spec.Name, err)
	}
	return &cmd, nil
}

// UpdateCommand replaces the stored command with spec.
func (c *Client) UpdateCommand(ctx context.Context, id string, spec CommandSpec) error {
	if err := c.do(ctx, http.MethodPut, "/api/commands/"+id, nil, spec, nil); err != nil {
		return fmt.Errorf("updating command %s: %w", id, err)
	}
	return nil
}
