package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macadmins/jcimporter/pkg/jcapi"
)

// fakeCommandAPI records the specs and associations the manager issues.
type fakeCommandAPI struct {
	commands       []jcapi.Command
	associations   []jcapi.Association
	createdSpec    *jcapi.CommandSpec
	updatedSpec    *jcapi.CommandSpec
	updatedID      string
	createReturnID string
	associateCalls int
}

func (f *fakeCommandAPI) CommandsByName(_ context.Context, name string) ([]jcapi.Command, error) {
	var out []jcapi.Command
	for _, c := range f.commands {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCommandAPI) CreateCommand(_ context.Context, spec jcapi.CommandSpec) (*jcapi.Command, error) {
	f.createdSpec = &spec
	if f.createReturnID == "" {
		// Mimic the create endpoint acknowledging without a body; the
		// caller must resolve the id by name.
		f.commands = append(f.commands, jcapi.Command{ID: "resolved-id", Name: spec.Name})
		return nil, nil
	}
	cmd := jcapi.Command{ID: f.createReturnID, Name: spec.Name}
	f.commands = append(f.commands, cmd)
	return &cmd, nil
}

func (f *fakeCommandAPI) UpdateCommand(_ context.Context, id string, spec jcapi.CommandSpec) error {
	f.updatedID = id
	f.updatedSpec = &spec
	return nil
}

func (f *fakeCommandAPI) ListGroupAssociations(_ context.Context, _, _ string) ([]jcapi.Association, error) {
	return f.associations, nil
}

func (f *fakeCommandAPI) AssociateCommand(_ context.Context, _, commandID string) error {
	f.associateCalls++
	f.associations = append(f.associations, jcapi.Association{TargetID: commandID, TargetType: "command"})
	return nil
}

func TestName(t *testing.T) {
	assert.Equal(t, "AutoPkg-Firefox-2.0", Name("Firefox", "2.0"))
}

func TestLookupNotFound(t *testing.T) {
	api := &fakeCommandAPI{}
	m := NewManager(api, "AutoPkg-Firefox-2.0", "user-1")

	exists, err := m.Lookup(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, StateNotFound, m.State())
}

func TestLookupExisting(t *testing.T) {
	api := &fakeCommandAPI{commands: []jcapi.Command{
		{ID: "cmd-1", Name: "AutoPkg-Firefox-2.0"},
	}}
	m := NewManager(api, "AutoPkg-Firefox-2.0", "user-1")

	exists, err := m.Lookup(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "cmd-1", m.ID())
	assert.Equal(t, StateCreated, m.State())
}

func TestLookupAmbiguous(t *testing.T) {
	api := &fakeCommandAPI{commands: []jcapi.Command{
		{ID: "cmd-1", Name: "AutoPkg-Firefox-2.0"},
		{ID: "cmd-2", Name: "AutoPkg-Firefox-2.0"},
	}}
	m := NewManager(api, "AutoPkg-Firefox-2.0", "user-1")

	_, err := m.Lookup(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousCommand)
}

func TestCreatePlaceholder(t *testing.T) {
	api := &fakeCommandAPI{createReturnID: "cmd-1"}
	m := NewManager(api, "AutoPkg-Firefox-2.0", "user-1")

	require.NoError(t, m.Create(context.Background()))
	assert.Equal(t, "cmd-1", m.ID())
	assert.Equal(t, StateCreated, m.State())
	require.NotNil(t, api.createdSpec)
	assert.Equal(t, placeholderPayload, api.createdSpec.Command)
	assert.Equal(t, "mac", api.createdSpec.CommandType)
	assert.Equal(t, "user-1", api.createdSpec.User)
	assert.Equal(t, "900", api.createdSpec.Timeout)
}

func TestCreateResolvesMissingID(t *testing.T) {
	api := &fakeCommandAPI{}
	m := NewManager(api, "AutoPkg-Firefox-2.0", "user-1")

	require.NoError(t, m.Create(context.Background()))
	assert.Equal(t, "resolved-id", m.ID())
}

func TestPopulateSelfService(t *testing.T) {
	api := &fakeCommandAPI{createReturnID: "cmd-1"}
	m := NewManager(api, "AutoPkg-Firefox-2.0", "user-1")
	require.NoError(t, m.Create(context.Background()))

	params := PopulateParams{
		ArtifactURL: "https://s3-us-east-1.amazonaws.com/jcautopkg/Firefox-2.0.pkg",
		PkgPath:     "/tmp/build/Firefox-2.0.pkg",
		PreGroupID:  "pre-1",
		PostGroupID: "post-1",
	}
	require.NoError(t, m.Populate(context.Background(), params))
	assert.Equal(t, StatePopulated, m.State())
	assert.Equal(t, "cmd-1", api.updatedID)

	payload := api.updatedSpec.Command
	assert.Contains(t, payload, "curl --silent --output /tmp/Firefox-2.0.pkg")
	assert.Contains(t, payload, `preGroupID="pre-1"`)
	assert.Contains(t, payload, `postGroupID="post-1"`)
	assert.Contains(t, payload, "openssl dgst -sha256 -sign /opt/jc/client.key")
	assert.Contains(t, payload, `"op": "remove"`)
	assert.Contains(t, payload, `"op": "add"`)
	// No schedule requested.
	assert.Empty(t, api.updatedSpec.LaunchType)
	assert.Empty(t, api.updatedSpec.Schedule)
}

func TestPopulateManual(t *testing.T) {
	api := &fakeCommandAPI{createReturnID: "cmd-1"}
	m := NewManager(api, "AutoPkg-Firefox-2.0", "user-1")
	require.NoError(t, m.Create(context.Background()))

	params := PopulateParams{
		ArtifactURL: "https://s3-us-east-1.amazonaws.com/jcautopkg/Firefox-2.0.pkg",
		PkgPath:     "/tmp/build/Firefox-2.0.pkg",
		Manual:      true,
	}
	require.NoError(t, m.Populate(context.Background(), params))

	payload := api.updatedSpec.Command
	assert.Contains(t, payload, "installer -pkg /tmp/Firefox-2.0.pkg -target /")
	// Manual payloads carry no group membership logic.
	assert.NotContains(t, payload, "systemgroups")
	assert.NotContains(t, payload, "openssl")
}

func TestPopulateWithTrigger(t *testing.T) {
	api := &fakeCommandAPI{createReturnID: "cmd-1"}
	m := NewManager(api, "AutoPkg-Firefox-2.0", "user-1")
	require.NoError(t, m.Create(context.Background()))

	params := PopulateParams{
		ArtifactURL: "https://s3-us-east-1.amazonaws.com/jcautopkg/Firefox-2.0.pkg",
		PkgPath:     "/tmp/build/Firefox-2.0.pkg",
		PreGroupID:  "pre-1",
		PostGroupID: "post-1",
		Trigger:     &TriggerConfig{RepeatType: "week", Cron: "0 0 * * 1"},
	}
	require.NoError(t, m.Populate(context.Background(), params))
	assert.Equal(t, launchRepeated, api.updatedSpec.LaunchType)
	assert.Equal(t, "week", api.updatedSpec.ScheduleRepeatType)
	assert.Equal(t, "0 0 * * 1", api.updatedSpec.Schedule)
}

func TestPopulateWithoutID(t *testing.T) {
	m := NewManager(&fakeCommandAPI{}, "AutoPkg-Firefox-2.0", "user-1")
	err := m.Populate(context.Background(), PopulateParams{PkgPath: "/tmp/x.pkg"})
	require.Error(t, err)
}

func TestAssociate(t *testing.T) {
	api := &fakeCommandAPI{createReturnID: "cmd-1"}
	m := NewManager(api, "AutoPkg-Firefox-2.0", "user-1")
	require.NoError(t, m.Create(context.Background()))

	require.NoError(t, m.Associate(context.Background(), "pre-1"))
	assert.Equal(t, StateAssociated, m.State())
	assert.Equal(t, 1, api.associateCalls)
}

func TestAssociateIdempotent(t *testing.T) {
	api := &fakeCommandAPI{createReturnID: "cmd-1"}
	m := NewManager(api, "AutoPkg-Firefox-2.0", "user-1")
	require.NoError(t, m.Create(context.Background()))

	require.NoError(t, m.Associate(context.Background(), "pre-1"))
	require.NoError(t, m.Associate(context.Background(), "pre-1"))
	assert.Equal(t, 1, api.associateCalls)
	assert.Equal(t, StateAssociated, m.State())
}
