// pkg/command/lifecycle.go - drives a JumpCloud command through its
// create/populate/associate lifecycle.

package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/macadmins/jcimporter/pkg/jcapi"
	"github.com/macadmins/jcimporter/pkg/logging"
)

const (
	commandType    = "mac"
	commandTimeout = "900"

	// launchRepeated is the v1 launch type for scheduled commands.
	launchRepeated = "repeated"

	// placeholderPayload is the script body a command carries between
	// creation and population.
	placeholderPayload = "#!/bin/bash\n"

	associationTarget = "command"
)

// ErrAmbiguousCommand is returned when more than one command shares the
// expected name. The importer never guesses among duplicates.
var ErrAmbiguousCommand = errors.New("multiple commands share a name")

// Name derives the deterministic command name for an app and version.
func Name(appName, appVersion string) string {
	return "AutoPkg-" + appName + "-" + appVersion
}

// State tracks the lifecycle position of the run's command.
type State int

const (
	// StateNotFound means no command with the expected name exists yet.
	StateNotFound State = iota
	// StateCreated means the command exists with at least a placeholder
	// payload.
	StateCreated
	// StatePopulated means the command carries the real deployment script.
	StatePopulated
	// StateAssociated means the command is linked to the pre-install group.
	StateAssociated
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateNotFound:
		return "not-found"
	case StateCreated:
		return "created"
	case StatePopulated:
		return "populated"
	case StateAssociated:
		return "associated"
	default:
		return "unknown"
	}
}

// API is the command and association surface the manager consumes.
type API interface {
	CommandsByName(ctx context.Context, name string) ([]jcapi.Command, error)
	CreateCommand(ctx context.Context, spec jcapi.CommandSpec) (*jcapi.Command, error)
	UpdateCommand(ctx context.Context, id string, spec jcapi.CommandSpec) error
	ListGroupAssociations(ctx context.Context, groupID, targetKind string) ([]jcapi.Association, error)
	AssociateCommand(ctx context.Context, groupID, commandID string) error
}

// TriggerConfig attaches a repeating schedule to the command so it runs on
// an interval instead of once.
type TriggerConfig struct {
	RepeatType string
	Cron       string
}

// Manager owns one command's lifecycle for the duration of a run.
type Manager struct {
	api   API
	name  string
	user  string
	id    string
	state State
}

// NewManager builds a Manager for the named command, executed as user.
func NewManager(api API, name, user string) *Manager {
	return &Manager{api: api, name: name, user: user, state: StateNotFound}
}

// State returns the current lifecycle state.
func (m *Manager) State() State { return m.state }

// ID returns the resolved command id, empty until lookup or creation.
func (m *Manager) ID() string { return m.id }

// Name returns the command name the manager resolves against.
func (m *Manager) Name() string { return m.name }

// Lookup resolves the command by name. Returns true when exactly one
// command exists; duplicate names are an error state, never resolved by
// picking one.
func (m *Manager) Lookup(ctx context.Context) (bool, error) {
	cmds, err := m.api.CommandsByName(ctx, m.name)
	if err != nil {
		return false, err
	}
	switch len(cmds) {
	case 0:
		m.state = StateNotFound
		return false, nil
	case 1:
		m.id = cmds[0].ID
		if m.state < StateCreated {
			m.state = StateCreated
		}
		logging.Info("Command exists", "command", m.name, "id", m.id)
		return true, nil
	default:
		return false, fmt.Errorf("%w: %q matches %d commands", ErrAmbiguousCommand, m.name, len(cmds))
	}
}

// Create creates the command with a placeholder payload. Must not be called
// when the command already exists.
func (m *Manager) Create(ctx context.Context) error {
	spec := jcapi.CommandSpec{
		Name:        m.name,
		Command:     placeholderPayload,
		CommandType: commandType,
		User:        m.user,
		Timeout:     commandTimeout,
	}
	created, err := m.api.CreateCommand(ctx, spec)
	if err != nil {
		return err
	}
	if created != nil && created.ID != "" {
		m.id = created.ID
	} else {
		// The v1 create endpoint can respond before the entity is
		// queryable with an id; resolve it by name.
		if _, err := m.Lookup(ctx); err != nil {
			return err
		}
	}
	m.state = StateCreated
	logging.Info("Command created", "command", m.name, "id", m.id)
	return nil
}

// Populate rewrites the command's script body from the mode-specific
// template and applies the optional schedule.
func (m *Manager) Populate(ctx context.Context, params PopulateParams) error {
	if m.id == "" {
		return fmt.Errorf("populating command %q: no command id resolved", m.name)
	}
	payload, err := renderPayload(params)
	if err != nil {
		return err
	}

	spec := jcapi.CommandSpec{
		Name:        m.name,
		Command:     payload,
		CommandType: commandType,
		User:        m.user,
		Timeout:     commandTimeout,
	}
	if params.Trigger != nil {
		spec.LaunchType = launchRepeated
		spec.ScheduleRepeatType = params.Trigger.RepeatType
		spec.Schedule = params.Trigger.Cron
	}

	if err := m.api.UpdateCommand(ctx, m.id, spec); err != nil {
		return err
	}
	m.state = StatePopulated
	logging.Info("Command populated", "command", m.name, "scheduled", params.Trigger != nil)
	return nil
}

// Associate ensures the command is linked to the given group. A link that
// already exists is left alone.
func (m *Manager) Associate(ctx context.Context, groupID string) error {
	if m.id == "" {
		return fmt.Errorf("associating command %q: no command id resolved", m.name)
	}
	assocs, err := m.api.ListGroupAssociations(ctx, groupID, associationTarget)
	if err != nil {
		return err
	}
	for _, assoc := range assocs {
		if assoc.TargetType == associationTarget && assoc.TargetID == m.id {
			m.state = StateAssociated
			logging.Info("Command already associated with group", "command", m.name, "group", groupID)
			return nil
		}
	}

	if err := m.api.AssociateCommand(ctx, groupID, m.id); err != nil {
		return err
	}
	m.state = StateAssociated
	logging.Info("Associated command with group", "command", m.name, "group", groupID)
	return nil
}
