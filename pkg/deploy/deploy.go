// pkg/deploy/deploy.go - top-level orchestration of a deployment run.

package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/macadmins/jcimporter/pkg/command"
	"github.com/macadmins/jcimporter/pkg/config"
	"github.com/macadmins/jcimporter/pkg/groups"
	"github.com/macadmins/jcimporter/pkg/inventory"
	"github.com/macadmins/jcimporter/pkg/logging"
)

// Mode selects the deployment strategy for a run.
type Mode string

const (
	// ModeSelf creates the groups and command without scanning inventory;
	// the operator scopes systems by hand.
	ModeSelf Mode = "self"
	// ModeAuto scans inventory and adds systems missing the title or
	// running an old version.
	ModeAuto Mode = "auto"
	// ModeUpdate scans inventory, adds outdated systems and removes
	// systems already on the target version, so the group converges to
	// the currently non-compliant set.
	ModeUpdate Mode = "update"
	// ModeManual drives only the command lifecycle, with no group
	// machinery at all.
	ModeManual Mode = "manual"
)

// ParseMode validates a mode string from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeSelf:
		return ModeSelf, nil
	case ModeAuto:
		return ModeAuto, nil
	case ModeUpdate:
		return ModeUpdate, nil
	case ModeManual:
		return ModeManual, nil
	default:
		return "", fmt.Errorf("%w: unknown deploy type %q", config.ErrInvalidConfig, s)
	}
}

// Gateway is the full remote surface a run touches. *jcapi.Client satisfies
// it; tests substitute fakes.
type Gateway interface {
	inventory.Gateway
	groups.API
	command.API
}

// Uploader pushes the package artifact and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Runner sequences one deployment run. All run state lives here; nothing is
// shared across concurrent runs.
type Runner struct {
	cfg      *config.Configuration
	gateway  Gateway
	uploader Uploader
	mode     Mode
	ledger   *Ledger
}

// NewRunner builds a Runner. The uploader may be nil when the distribution
// target is "none".
func NewRunner(cfg *config.Configuration, gateway Gateway, uploader Uploader) (*Runner, error) {
	mode, err := ParseMode(cfg.DeployType)
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:      cfg,
		gateway:  gateway,
		uploader: uploader,
		mode:     mode,
		ledger:   NewLedger(),
	}, nil
}

// Ledger returns the run's change ledger. Valid even after a failed run; it
// holds whatever completed before the failure.
func (r *Runner) Ledger() *Ledger { return r.ledger }

// Run executes the deployment sequence for the configured mode. The change
// ledger is emitted before returning, on success and on failure alike.
func (r *Runner) Run(ctx context.Context) error {
	defer r.ledger.Emit()

	names := groups.DeriveNames(r.cfg.AppName, r.cfg.AppVersion, r.cfg.GroupName)
	cmdName := command.Name(r.cfg.AppName, r.cfg.AppVersion)
	logging.Info("Starting deployment run",
		"app", r.cfg.AppName,
		"version", r.cfg.AppVersion,
		"mode", string(r.mode),
		"group", names.PreInstall,
		"command", cmdName)

	reconciler := groups.NewReconciler(r.gateway, r.cfg.PageSize)

	var preGroupID, postGroupID string
	if r.mode != ModeManual {
		var err error
		preGroupID, err = reconciler.EnsureGroup(ctx, names.PreInstall)
		if err != nil {
			return fmt.Errorf("ensuring group %q: %w", names.PreInstall, err)
		}
		postGroupID, err = reconciler.EnsureGroup(ctx, names.PostInstall)
		if err != nil {
			return fmt.Errorf("ensuring group %q: %w", names.PostInstall, err)
		}
	}

	if r.mode == ModeAuto || r.mode == ModeUpdate {
		if err := r.scanAndReconcile(ctx, reconciler, names, preGroupID, postGroupID); err != nil {
			return err
		}
	}

	if strings.ToLower(r.cfg.Distribution) != "aws" {
		logging.Info("No distribution target configured; skipping command lifecycle")
		return nil
	}

	manager := command.NewManager(r.gateway, cmdName, r.cfg.ServiceUserID)
	exists, err := manager.Lookup(ctx)
	if err != nil {
		return fmt.Errorf("resolving command %q: %w", cmdName, err)
	}

	if !exists {
		if err := manager.Create(ctx); err != nil {
			return fmt.Errorf("creating command %q: %w", cmdName, err)
		}
		r.ledger.RecordLifecycle(cmdName, manager.State())

		artifactURL, err := r.uploader.Upload(ctx, r.cfg.PkgPath)
		if err != nil {
			return fmt.Errorf("uploading package: %w", err)
		}

		params := command.PopulateParams{
			ArtifactURL: artifactURL,
			PkgPath:     r.cfg.PkgPath,
			PreGroupID:  preGroupID,
			PostGroupID: postGroupID,
			Manual:      r.mode == ModeManual,
		}
		if r.cfg.TriggerEnabled {
			params.Trigger = &command.TriggerConfig{
				RepeatType: r.cfg.TriggerRepeat,
				Cron:       r.cfg.TriggerCron,
			}
		}
		if err := manager.Populate(ctx, params); err != nil {
			return fmt.Errorf("populating command %q: %w", cmdName, err)
		}
		r.ledger.RecordLifecycle(cmdName, manager.State())
	}

	if r.mode != ModeManual {
		if err := manager.Associate(ctx, preGroupID); err != nil {
			return fmt.Errorf("associating command %q: %w", cmdName, err)
		}
		r.ledger.RecordLifecycle(cmdName, manager.State())
	}

	logging.Info("Deployment run complete", "app", r.cfg.AppName, "mode", string(r.mode))
	return nil
}

// scanAndReconcile drains the post-install group, classifies the fleet and
// converges the pre-install group's membership.
func (r *Runner) scanAndReconcile(ctx context.Context, reconciler *groups.Reconciler, names groups.Names, preGroupID, postGroupID string) error {
	// Completion markers from earlier runs are stale by definition; drain
	// them so every system is re-evaluated, but keep the drained systems
	// out of this run's candidate set.
	completed, drainChanges, err := reconciler.Drain(ctx, postGroupID, names.PostInstall)
	if err != nil {
		return fmt.Errorf("draining group %q: %w", names.PostInstall, err)
	}
	r.ledger.RecordMembership(drainChanges)

	classifier := inventory.NewClassifier(r.gateway, r.cfg)
	systems, err := classifier.CollectSystems(ctx)
	if err != nil {
		return err
	}
	systems = exclude(systems, completed)

	results := classifier.Classify(ctx, systems, r.cfg.AppName, r.cfg.AppVersion)
	delta := buildDelta(r.mode, results)
	if delta.Empty() {
		logging.Info("Membership already converged", "group", names.PreInstall)
		return nil
	}

	changes, err := reconciler.Reconcile(ctx, preGroupID, names.PreInstall, delta)
	if err != nil {
		return err
	}
	r.ledger.RecordMembership(changes)
	return nil
}

// buildDelta maps classifications to desired membership changes for the
// run's mode. Auto adds absent and outdated systems; update adds outdated
// systems and removes matching ones, ignoring systems without the title.
func buildDelta(mode Mode, results []inventory.Result) *groups.Delta {
	delta := groups.NewDelta()
	for _, result := range results {
		switch result.Status {
		case inventory.StatusAbsent:
			if mode == ModeAuto {
				delta.Add(result.SystemID)
			}
		case inventory.StatusOutdated:
			delta.Add(result.SystemID)
		case inventory.StatusMatching:
			if mode == ModeUpdate {
				delta.Remove(result.SystemID)
			}
		}
	}
	return delta
}

// exclude returns ids with every member of drop removed, preserving order.
func exclude(ids, drop []string) []string {
	if len(drop) == 0 {
		return ids
	}
	dropSet := make(map[string]bool, len(drop))
	for _, id := range drop {
		dropSet[id] = true
	}
	kept := ids[:0]
	for _, id := range ids {
		if !dropSet[id] {
			kept = append(kept, id)
		}
	}
	return kept
}
