// pkg/jcapi/groups.go - system group, membership and association calls.

package jcapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// GroupByName looks up a system group by exact name. Returns nil when no
// group matches.
func (c *Client) GroupByName(ctx context.Context, name string) (*SystemGroup, error) {
	q := url.Values{}
	q.Set("filter", "name:eq:"+name)

	var groups []SystemGroup
	if err := c.get(ctx, "/api/v2/systemgroups", q, &groups); err != nil {
		return nil, fmt.Errorf("looking up group %q: %w", name, err)
	}
	for i := range groups {
		if groups[i].Name == name {
			return &groups[i], nil
		}
	}
	return nil, nil
}

// CreateGroup creates a system group with the given name.
func (c *Client) CreateGroup(ctx context.Context, name string) (*SystemGroup, error) {
	body := map[string]string{"name": name}
	var group SystemGroup
	if err := c.do(ctx, http.MethodPost, "/api/v2/systemgroups", nil, body, &group); err != nil {
		return nil, fmt.Errorf("creating group %q: %w", name, err)
	}
	return &group, nil
}

// ListGroupMembers returns one page of member system ids for a group.
func (c *Client) ListGroupMembers(ctx context.Context, groupID string, limit, skip int) ([]string, error) {
	var conns []graphConnection
	path := "/api/v2/systemgroups/" + groupID + "/members"
	if err := c.get(ctx, path, pageQuery(limit, skip), &conns); err != nil {
		return nil, fmt.Errorf("listing members of group %s: %w", groupID, err)
	}
	ids := make([]string, 0, len(conns))
	for _, conn := range conns {
		ids = append(ids, conn.To.ID)
	}
	return ids, nil
}

// AddGroupMember adds a system to a group.
func (c *Client) AddGroupMember(ctx context.Context, groupID, systemID string) error {
	return c.mutateMembership(ctx, groupID, systemID, "add")
}

// RemoveGroupMember removes a system from a group.
func (c *Client) RemoveGroupMember(ctx context.Context, groupID, systemID string) error {
	return c.mutateMembership(ctx, groupID, systemID, "remove")
}

func (c *Client) mutateMembership(ctx context.Context, groupID, systemID, op string) error {
	body := graphOperation{ID: systemID, Op: op, Type: "system"}
	path := "/api/v2/systemgroups/" + groupID + "/members"
	if err := c.do(ctx, http.MethodPost, path, nil, body, nil); err != nil {
		return fmt.Errorf("%s system %s on group %s: %w", op, systemID, groupID, err)
	}
	return nil
}

// ListGroupAssociations returns the group's associations for a target kind
// such as "command".
func (c *Client) ListGroupAssociations(ctx context.Context, groupID, targetKind string) ([]Association, error) {
	q := url.Values{}
	q.Set("targets", targetKind)

	var conns []graphConnection
	path := "/api/v2/systemgroups/" + groupID + "/associations"
	if err := c.get(ctx, path, q, &conns); err != nil {
		return nil, fmt.Errorf("listing %s associations of group %s: %w", targetKind, groupID, err)
	}
	assocs := make([]Association, 0, len(conns))
	for _, conn := range conns {
		assocs = append(assocs, Association{TargetID: conn.To.ID, TargetType: conn.To.Type})
	}
	return assocs, nil
}

// AssociateCommand links a command to a system group so the command runs on
// the group's members.
func (c *Client) AssociateCommand(ctx context.Context, groupID, commandID string) error {
	body := graphOperation{ID: commandID, Op: "add", Type: "command"}
	path := "/api/v2/systemgroups/" + groupID + "/associations"
	if err := c.do(ctx, http.MethodPost, path, nil, body, nil); err != nil {
		return fmt.Errorf("associating command %s with group %s: %w", commandID, groupID, err)
	}
	return nil
}
