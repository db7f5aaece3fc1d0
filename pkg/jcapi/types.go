// pkg/jcapi/types.go - wire types for the JumpCloud v1 and v2 APIs.

package jcapi

// System is a managed endpoint from the v1 systems inventory.
type System struct {
	ID          string `json:"_id"`
	DisplayName string `json:"displayName"`
	Hostname    string `json:"hostname"`
	OS          string `json:"os"`
}

// systemsListResponse wraps the v1 paginated systems list. The totalCount
// field is deliberately ignored by callers; the inventory can grow between
// pages, so termination is driven by short pages instead.
type systemsListResponse struct {
	TotalCount int      `json:"totalCount"`
	Results    []System `json:"results"`
}

// SystemInfo is a System Insights host record.
type SystemInfo struct {
	SystemID       string `json:"system_id"`
	HardwareVendor string `json:"hardware_vendor"`
	HardwareModel  string `json:"hardware_model"`
}

// SystemApp is a System Insights installed-application record.
type SystemApp struct {
	SystemID           string `json:"system_id"`
	Name               string `json:"name"`
	BundleName         string `json:"bundle_name"`
	BundleShortVersion string `json:"bundle_short_version"`
	Path               string `json:"path"`
}

// SystemGroup is a v2 system group.
type SystemGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// graphTarget is the "to" vertex of a v2 graph connection.
type graphTarget struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// graphConnection is a single edge in a v2 graph listing (group members,
// group associations).
type graphConnection struct {
	To graphTarget `json:"to"`
}

// graphOperation is the request body for v2 graph mutations.
type graphOperation struct {
	ID   string `json:"id"`
	Op   string `json:"op"`
	Type string `json:"type"`
}

// Association links a system group to a target resource such as a command.
type Association struct {
	TargetID   string
	TargetType string
}

// Command is a v1 command entity.
type Command struct {
	ID                 string `json:"_id"`
	Name               string `json:"name"`
	Command            string `json:"command"`
	CommandType        string `json:"commandType"`
	User               string `json:"user"`
	Timeout            string `json:"timeout"`
	LaunchType         string `json:"launchType,omitempty"`
	ScheduleRepeatType string `json:"scheduleRepeatType,omitempty"`
	Schedule           string `json:"schedule,omitempty"`
}

// CommandSpec is the create/update payload for a v1 command.
type CommandSpec struct {
	Name               string `json:"name"`
	Command            string `json:"command"`
	CommandType        string `json:"commandType"`
	User               string `json:"user"`
	Timeout            string `json:"timeout"`
	LaunchType         string `json:"launchType,omitempty"`
	ScheduleRepeatType string `json:"scheduleRepeatType,omitempty"`
	Schedule           string `json:"schedule,omitempty"`
}

// commandsListResponse wraps the v1 paginated commands list.
type commandsListResponse struct {
	TotalCount int       `json:"totalCount"`
	Results    []Command `json:"results"`
}
