package cluster

// Identifier wrappers. The cluster wraps every ID in a {"value": "..."}
// object rather than a bare string.
type FrameworkID struct {
	Value string `json:"value"`
}

type AgentID struct {
	Value string `json:"value"`
}

type OfferID struct {
	Value string `json:"value"`
}

type ExecutorID struct {
	Value string `json:"value"`
}

type TaskID struct {
	Value string `json:"value"`
}

type ContainerID struct {
	Value string `json:"value"`
}

// FrameworkInfo describes this framework to the master on SUBSCRIBE.
type FrameworkInfo struct {
	User         string   `json:"user"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// NewFrameworkInfo builds the fixed FrameworkInfo rexe always sends (spec §6.3).
func NewFrameworkInfo() FrameworkInfo {
	return FrameworkInfo{
		User:         "root",
		Name:         "RExe task executor",
		Capabilities: []string{},
	}
}

// Call is the single envelope type for every framework->master request.
// Exactly one of the pointer fields is set, matching Type.
type Call struct {
	Type        string           `json:"type"`
	FrameworkID *FrameworkID     `json:"framework_id,omitempty"`
	Subscribe   *SubscribeCall   `json:"subscribe,omitempty"`
	Accept      *AcceptCall      `json:"accept,omitempty"`
	Acknowledge *AcknowledgeCall `json:"acknowledge,omitempty"`
}

type SubscribeCall struct {
	FrameworkInfo FrameworkInfo `json:"framework_info"`
}

// NewSubscribeCall builds the SUBSCRIBE call. FrameworkID is deliberately
// absent: it is not yet known at subscribe time.
func NewSubscribeCall() Call {
	return Call{
		Type:      "SUBSCRIBE",
		Subscribe: &SubscribeCall{FrameworkInfo: NewFrameworkInfo()},
	}
}

type Filters struct {
	RefuseSeconds float64 `json:"refuse_seconds"`
}

type AcceptCall struct {
	OfferIDs   []OfferID   `json:"offer_ids"`
	Operations []Operation `json:"operations"`
	Filters    *Filters    `json:"filters,omitempty"`
}

type Operation struct {
	Type   string           `json:"type"`
	Launch *LaunchOperation `json:"launch,omitempty"`
}

type LaunchOperation struct {
	TaskInfos []TaskInfo `json:"task_infos"`
}

// NewAcceptCall builds an ACCEPT call launching task on offerID.
func NewAcceptCall(frameworkID, offerID string, task TaskInfo) Call {
	return Call{
		Type:        "ACCEPT",
		FrameworkID: &FrameworkID{Value: frameworkID},
		Accept: &AcceptCall{
			OfferIDs: []OfferID{{Value: offerID}},
			Operations: []Operation{
				{Type: "LAUNCH", Launch: &LaunchOperation{TaskInfos: []TaskInfo{task}}},
			},
		},
	}
}

// NewDeclineCall builds a decline, which per spec P2 is encoded as an ACCEPT
// with zero operations and a refuse-seconds filter, byte-identical to an
// ACCEPT for the same offer with an empty operations array and that filter.
func NewDeclineCall(frameworkID, offerID string, refuseSeconds float64) Call {
	return Call{
		Type:        "ACCEPT",
		FrameworkID: &FrameworkID{Value: frameworkID},
		Accept: &AcceptCall{
			OfferIDs:   []OfferID{{Value: offerID}},
			Operations: []Operation{},
			Filters:    &Filters{RefuseSeconds: refuseSeconds},
		},
	}
}

type AcknowledgeCall struct {
	AgentID AgentID `json:"agent_id"`
	TaskID  TaskID  `json:"task_id"`
	UUID    string  `json:"uuid"`
}

// NewAcknowledgeCall builds an ACKNOWLEDGE referencing the given status uuid.
func NewAcknowledgeCall(frameworkID, agentID, taskID, uuid string) Call {
	return Call{
		Type:        "ACKNOWLEDGE",
		FrameworkID: &FrameworkID{Value: frameworkID},
		Acknowledge: &AcknowledgeCall{
			AgentID: AgentID{Value: agentID},
			TaskID:  TaskID{Value: taskID},
			UUID:    uuid,
		},
	}
}

// NewTeardownCall builds a TEARDOWN referencing only the framework ID.
func NewTeardownCall(frameworkID string) Call {
	return Call{
		Type:        "TEARDOWN",
		FrameworkID: &FrameworkID{Value: frameworkID},
	}
}

// Resource is a single scalar resource entry (cpus, mem, disk, gpus).
type Resource struct {
	Name   string       `json:"name"`
	Type   string       `json:"type"`
	Scalar *ScalarValue `json:"scalar,omitempty"`
}

type ScalarValue struct {
	Value float64 `json:"value"`
}

func scalarResource(name string, value float64) Resource {
	return Resource{Name: name, Type: "SCALAR", Scalar: &ScalarValue{Value: value}}
}

type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Environment struct {
	Variables []EnvVar `json:"variables"`
}

type CommandInfo struct {
	Shell       bool         `json:"shell"`
	Value       string       `json:"value,omitempty"`
	Arguments   []string     `json:"arguments,omitempty"`
	Environment *Environment `json:"environment,omitempty"`
}

type DockerInfo struct {
	Image          string `json:"image"`
	Network        string `json:"network"`
	ForcePullImage bool   `json:"force_pull_image"`
}

type Volume struct {
	ContainerPath string `json:"container_path"`
	HostPath      string `json:"host_path"`
	Mode          string `json:"mode"`
}

type WindowSize struct {
	Rows    uint32 `json:"rows"`
	Columns uint32 `json:"columns"`
}

type TTYInfo struct {
	WindowSize *WindowSize `json:"window_size,omitempty"`
}

type ContainerInfo struct {
	Type    string      `json:"type"`
	Docker  *DockerInfo `json:"docker,omitempty"`
	Volumes []Volume    `json:"volumes,omitempty"`
	TTYInfo *TTYInfo    `json:"tty_info,omitempty"`
}

type TaskInfo struct {
	Name      string         `json:"name"`
	TaskID    TaskID         `json:"task_id"`
	AgentID   AgentID        `json:"agent_id"`
	Resources []Resource     `json:"resources"`
	Command   *CommandInfo   `json:"command,omitempty"`
	Container *ContainerInfo `json:"container,omitempty"`
}
