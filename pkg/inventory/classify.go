// pkg/inventory/classify.go - classifies fleet systems against a target
// application version using System Insights data.

package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	version "github.com/hashicorp/go-version"

	"github.com/macadmins/jcimporter/pkg/config"
	"github.com/macadmins/jcimporter/pkg/jcapi"
	"github.com/macadmins/jcimporter/pkg/logging"
)

// appInstallPrefix marks the standard application install location; records
// outside it (user trees, embedded helpers) are ignored.
const appInstallPrefix = "/Applications/"

// Status classifies a system against the target application version.
type Status int

const (
	// StatusAbsent means the application is not installed.
	StatusAbsent Status = iota
	// StatusMatching means the installed version equals the target.
	StatusMatching
	// StatusOutdated means the installed version differs from the target,
	// or the target is the sentinel version forcing remediation.
	StatusOutdated
)

// String returns the string representation of the Status.
func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusMatching:
		return "matching"
	case StatusOutdated:
		return "outdated"
	default:
		return "unknown"
	}
}

// Result is the classification of one system. Each system appears in
// exactly one Result per pass.
type Result struct {
	SystemID        string
	AppName         string
	ObservedVersion string
	Status          Status
}

// Gateway is the read-only inventory surface the classifier consumes.
type Gateway interface {
	ListSystems(ctx context.Context, limit, skip int) ([]jcapi.System, error)
	ListSystemInfo(ctx context.Context, limit, skip int) ([]jcapi.SystemInfo, error)
	ListSystemApps(ctx context.Context, systemID string, limit, skip int) ([]jcapi.SystemApp, error)
}

// Classifier pages through the fleet inventory and classifies each system.
type Classifier struct {
	gateway  Gateway
	pageSize int
	workers  int
	vendor   string
}

// NewClassifier builds a Classifier from configuration.
func NewClassifier(gateway Gateway, cfg *config.Configuration) *Classifier {
	return &Classifier{
		gateway:  gateway,
		pageSize: cfg.PageSize,
		workers:  cfg.Workers,
		vendor:   cfg.HardwareVendor,
	}
}

// CollectSystems returns the ids of systems eligible for classification: a
// system must appear in the base systems inventory and in System Insights,
// and match the configured hardware vendor. System Insights can retain
// records for systems no longer enrolled, hence the cross-check.
func (c *Classifier) CollectSystems(ctx context.Context) ([]string, error) {
	enrolled := make(map[string]bool)
	for skip := 0; ; skip += c.pageSize {
		page, err := c.gateway.ListSystems(ctx, c.pageSize, skip)
		if err != nil {
			return nil, fmt.Errorf("collecting systems inventory: %w", err)
		}
		for _, sys := range page {
			enrolled[sys.ID] = true
		}
		if len(page) < c.pageSize {
			break
		}
	}

	var ids []string
	seen := make(map[string]bool)
	for skip := 0; ; skip += c.pageSize {
		page, err := c.gateway.ListSystemInfo(ctx, c.pageSize, skip)
		if err != nil {
			return nil, fmt.Errorf("collecting system insights hosts: %w", err)
		}
		for _, info := range page {
			if !enrolled[info.SystemID] || seen[info.SystemID] {
				continue
			}
			if c.vendor != "" && info.HardwareVendor != c.vendor {
				continue
			}
			seen[info.SystemID] = true
			ids = append(ids, info.SystemID)
		}
		if len(page) < c.pageSize {
			break
		}
	}

	sort.Strings(ids)
	logging.Info("Collected eligible systems", "count", len(ids))
	return ids, nil
}

// Classify inspects each system's installed applications and classifies it
// against the target version. Systems are queried concurrently with a
// bounded worker pool; a gateway failure on one system is logged and that
// system skipped, never aborting the rest of the pass. Results are ordered
// by system id regardless of completion order.
func (c *Classifier) Classify(ctx context.Context, systemIDs []string, appName, targetVersion string) []Result {
	sem := make(chan struct{}, c.workers)
	resultCh := make(chan Result, len(systemIDs))

	var wg sync.WaitGroup
	for _, id := range systemIDs {
		wg.Add(1)
		go func(systemID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := c.classifySystem(ctx, systemID, appName, targetVersion)
			if err != nil {
				logging.Warn("Skipping system after inventory error",
					"system", systemID, "error", err.Error())
				return
			}
			resultCh <- result
		}(id)
	}
	wg.Wait()
	close(resultCh)

	results := make([]Result, 0, len(systemIDs))
	for result := range resultCh {
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].SystemID < results[j].SystemID })
	return results
}

// classifySystem pages through one system's app records and produces its
// classification.
func (c *Classifier) classifySystem(ctx context.Context, systemID, appName, targetVersion string) (Result, error) {
	result := Result{SystemID: systemID, AppName: appName, Status: StatusAbsent}

	for skip := 0; ; skip += c.pageSize {
		apps, err := c.gateway.ListSystemApps(ctx, systemID, c.pageSize, skip)
		if err != nil {
			return Result{}, err
		}
		for _, app := range apps {
			if !strings.Contains(app.Path, appInstallPrefix) {
				continue
			}
			if app.BundleName == appName && result.Status == StatusAbsent {
				result.ObservedVersion = app.BundleShortVersion
				result.Status = compareVersions(app.BundleShortVersion, targetVersion)
			}
		}
		if len(apps) < c.pageSize {
			break
		}
	}

	logging.Debug("Classified system",
		"system", systemID,
		"app", appName,
		"observed", result.ObservedVersion,
		"status", result.Status.String())
	return result, nil
}

// compareVersions decides matching vs. outdated for an installed app. The
// sentinel target always forces outdated: an unknown target version means
// the configured command should run everywhere the app exists. Equality is
// semantic when both sides parse, so "2.0" matches a "2.0.0" target and the
// device is not re-remediated over a formatting difference; unparseable
// versions fall back to exact string comparison.
func compareVersions(observed, target string) Status {
	if target == config.SentinelVersion {
		return StatusOutdated
	}
	if observed == target {
		return StatusMatching
	}
	vObserved, errObserved := version.NewVersion(observed)
	vTarget, errTarget := version.NewVersion(target)
	if errObserved == nil && errTarget == nil && vObserved.Equal(vTarget) {
		return StatusMatching
	}
	return StatusOutdated
}
