// pkg/groups/reconcile.go - converges remote group membership on a desired
// state using read-then-write calls only.

package groups

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/macadmins/jcimporter/pkg/jcapi"
	"github.com/macadmins/jcimporter/pkg/logging"
)

// ErrGroupVanished is returned when a group that was just created cannot be
// found on re-lookup.
var ErrGroupVanished = errors.New("group not found after creation")

// API is the group surface the reconciler consumes.
type API interface {
	GroupByName(ctx context.Context, name string) (*jcapi.SystemGroup, error)
	CreateGroup(ctx context.Context, name string) (*jcapi.SystemGroup, error)
	ListGroupMembers(ctx context.Context, groupID string, limit, skip int) ([]string, error)
	AddGroupMember(ctx context.Context, groupID, systemID string) error
	RemoveGroupMember(ctx context.Context, groupID, systemID string) error
}

// Action is a membership mutation kind.
type Action string

const (
	// ActionAdd records a system added to a group.
	ActionAdd Action = "add"
	// ActionRemove records a system removed from a group.
	ActionRemove Action = "remove"
)

// Change is one applied membership mutation, kept for the run's ledger.
type Change struct {
	SystemID  string
	GroupID   string
	GroupName string
	Action    Action
}

// Delta is the desired membership change for one group. Adds and removes
// are disjoint by construction: adding a system drops any pending removal,
// and a removal is ignored while an addition is pending.
type Delta struct {
	adds    map[string]bool
	removes map[string]bool
}

// NewDelta returns an empty Delta.
func NewDelta() *Delta {
	return &Delta{adds: make(map[string]bool), removes: make(map[string]bool)}
}

// Add marks a system for addition.
func (d *Delta) Add(systemID string) {
	delete(d.removes, systemID)
	d.adds[systemID] = true
}

// Remove marks a system for removal unless it is already marked for
// addition.
func (d *Delta) Remove(systemID string) {
	if d.adds[systemID] {
		return
	}
	d.removes[systemID] = true
}

// Adds returns the systems marked for addition, sorted.
func (d *Delta) Adds() []string { return sortedKeys(d.adds) }

// Removes returns the systems marked for removal, sorted.
func (d *Delta) Removes() []string { return sortedKeys(d.removes) }

// Empty reports whether the delta carries no mutations.
func (d *Delta) Empty() bool { return len(d.adds) == 0 && len(d.removes) == 0 }

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reconciler applies membership deltas to remote groups. Mutations against
// one group are sequential: every mutation is diffed against a membership
// snapshot read in the same call, and a concurrent writer would invalidate
// that snapshot.
type Reconciler struct {
	api      API
	pageSize int
}

// NewReconciler builds a Reconciler.
func NewReconciler(api API, pageSize int) *Reconciler {
	return &Reconciler{api: api, pageSize: pageSize}
}

// EnsureGroup resolves a group id by name, creating the group when absent.
// Idempotent: when the group exists the call is a lookup and nothing else.
func (r *Reconciler) EnsureGroup(ctx context.Context, name string) (string, error) {
	group, err := r.api.GroupByName(ctx, name)
	if err != nil {
		return "", err
	}
	if group != nil {
		logging.Debug("Group exists", "group", name, "id", group.ID)
		return group.ID, nil
	}

	logging.Info("Creating group", "group", name)
	created, err := r.api.CreateGroup(ctx, name)
	if err != nil {
		return "", err
	}
	if created != nil && created.ID != "" {
		return created.ID, nil
	}

	// Some API versions return an empty body on create; re-resolve by name.
	group, err = r.api.GroupByName(ctx, name)
	if err != nil {
		return "", err
	}
	if group == nil {
		return "", fmt.Errorf("%w: %s", ErrGroupVanished, name)
	}
	return group.ID, nil
}

// CurrentMembers reads the full membership of a group, paging until a short
// page is returned.
func (r *Reconciler) CurrentMembers(ctx context.Context, groupID string) (map[string]bool, error) {
	members := make(map[string]bool)
	for skip := 0; ; skip += r.pageSize {
		page, err := r.api.ListGroupMembers(ctx, groupID, r.pageSize, skip)
		if err != nil {
			return nil, err
		}
		for _, id := range page {
			members[id] = true
		}
		if len(page) < r.pageSize {
			break
		}
	}
	return members, nil
}

// Reconcile reads current membership once, then issues one add call per
// desired addition not already a member and one remove call per desired
// removal currently a member. A failed mutation for one system is logged
// and does not block the rest. The returned changes are the mutations that
// actually succeeded.
func (r *Reconciler) Reconcile(ctx context.Context, groupID, groupName string, delta *Delta) ([]Change, error) {
	members, err := r.CurrentMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("reading membership of %s: %w", groupName, err)
	}

	var changes []Change
	for _, systemID := range delta.Adds() {
		if members[systemID] {
			logging.Debug("System already in group", "system", systemID, "group", groupName)
			continue
		}
		if err := r.api.AddGroupMember(ctx, groupID, systemID); err != nil {
			logging.Error("Failed to add system to group",
				"system", systemID, "group", groupName, "error", err.Error())
			continue
		}
		logging.Info("Added system to group", "system", systemID, "group", groupName)
		changes = append(changes, Change{SystemID: systemID, GroupID: groupID, GroupName: groupName, Action: ActionAdd})
	}

	for _, systemID := range delta.Removes() {
		if !members[systemID] {
			logging.Debug("System not in group", "system", systemID, "group", groupName)
			continue
		}
		if err := r.api.RemoveGroupMember(ctx, groupID, systemID); err != nil {
			logging.Error("Failed to remove system from group",
				"system", systemID, "group", groupName, "error", err.Error())
			continue
		}
		logging.Info("Removed system from group", "system", systemID, "group", groupName)
		changes = append(changes, Change{SystemID: systemID, GroupID: groupID, GroupName: groupName, Action: ActionRemove})
	}

	return changes, nil
}

// Drain empties a group, returning the ids that were members before the
// drain and the removals that succeeded. Used on the post-install group at
// the start of collection so every system is re-evaluated instead of
// trusting stale completion markers.
func (r *Reconciler) Drain(ctx context.Context, groupID, groupName string) ([]string, []Change, error) {
	members, err := r.CurrentMembers(ctx, groupID)
	if err != nil {
		return nil, nil, fmt.Errorf("reading membership of %s: %w", groupName, err)
	}

	delta := NewDelta()
	for systemID := range members {
		delta.Remove(systemID)
	}
	changes, err := r.Reconcile(ctx, groupID, groupName, delta)
	if err != nil {
		return nil, nil, err
	}
	return sortedKeys(members), changes, nil
}
