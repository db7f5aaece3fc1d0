// pkg/deploy/ledger.go - run-scoped record of every remote change applied.

package deploy

import (
	"github.com/macadmins/jcimporter/pkg/command"
	"github.com/macadmins/jcimporter/pkg/groups"
	"github.com/macadmins/jcimporter/pkg/logging"
)

// LifecycleEvent records one command lifecycle transition driven by the run.
type LifecycleEvent struct {
	Command string
	State   command.State
}

// Ledger accumulates the membership mutations and command transitions a run
// actually performed. On a fatal failure it still holds everything that
// completed before the failure.
type Ledger struct {
	Membership []groups.Change
	Lifecycle  []LifecycleEvent
}

// NewLedger returns an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// RecordMembership appends applied membership changes.
func (l *Ledger) RecordMembership(changes []groups.Change) {
	l.Membership = append(l.Membership, changes...)
}

// RecordLifecycle appends a command lifecycle transition.
func (l *Ledger) RecordLifecycle(name string, state command.State) {
	l.Lifecycle = append(l.Lifecycle, LifecycleEvent{Command: name, State: state})
}

// Empty reports whether the run changed nothing remotely.
func (l *Ledger) Empty() bool {
	return len(l.Membership) == 0 && len(l.Lifecycle) == 0
}

// Emit writes the run summary through the logger.
func (l *Ledger) Emit() {
	logging.Info("Run summary",
		"membership_changes", len(l.Membership),
		"command_transitions", len(l.Lifecycle))
	for _, change := range l.Membership {
		logging.LogStructured(logging.LevelInfo, "Membership change", map[string]interface{}{
			"action": string(change.Action),
			"system": change.SystemID,
			"group":  change.GroupName,
		})
	}
	for _, event := range l.Lifecycle {
		logging.LogStructured(logging.LevelInfo, "Command transition", map[string]interface{}{
			"command": event.Command,
			"state":   event.State.String(),
		})
	}
}
