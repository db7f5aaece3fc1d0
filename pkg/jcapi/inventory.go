// pkg/jcapi/inventory.go - systems and System Insights inventory reads.

package jcapi

import (
	"context"
	"fmt"
)

// ListSystems returns one page of the v1 systems inventory. The caller owns
// the pagination loop and stops on the first short page.
func (c *Client) ListSystems(ctx context.Context, limit, skip int) ([]System, error) {
	var resp systemsListResponse
	if err := c.get(ctx, "/api/systems", pageQuery(limit, skip), &resp); err != nil {
		return nil, fmt.Errorf("listing systems: %w", err)
	}
	return resp.Results, nil
}

// ListSystemInfo returns one page of System Insights host records.
func (c *Client) ListSystemInfo(ctx context.Context, limit, skip int) ([]SystemInfo, error) {
	var infos []SystemInfo
	if err := c.get(ctx, "/api/v2/systeminsights/system_info", pageQuery(limit, skip), &infos); err != nil {
		return nil, fmt.Errorf("listing system insights hosts: %w", err)
	}
	return infos, nil
}

// ListSystemApps returns one page of installed-application records for a
// single system, filtered server-side by system id.
func (c *Client) ListSystemApps(ctx context.Context, systemID string, limit, skip int) ([]SystemApp, error) {
	q := pageQuery(limit, skip)
	q.Set("filter", "system_id:eq:"+systemID)

	var apps []SystemApp
	if err := c.get(ctx, "/api/v2/systeminsights/apps", q, &apps); err != nil {
		return nil, fmt.Errorf("listing apps for system %s: %w", systemID, err)
	}
	return apps, nil
}
