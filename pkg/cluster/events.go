package cluster

// Event is the single envelope type for every master->framework event read
// off the SUBSCRIBE stream. Exactly one of the pointer fields is set,
// matching Type.
type Event struct {
	Type       string           `json:"type"`
	Subscribed *SubscribedEvent `json:"subscribed,omitempty"`
	Offers     *OffersEvent     `json:"offers,omitempty"`
	Update     *UpdateEvent     `json:"update,omitempty"`
}

type SubscribedEvent struct {
	FrameworkID              FrameworkID `json:"framework_id"`
	HeartbeatIntervalSeconds float64     `json:"heartbeat_interval_seconds"`
}

type OffersEvent struct {
	Offers []WireOffer `json:"offers"`
}

type OfferAddress struct {
	Hostname string `json:"hostname"`
	IP       string `json:"ip"`
	Port     int    `json:"port"`
}

type OfferURL struct {
	Scheme  string       `json:"scheme"`
	Address OfferAddress `json:"address"`
}

type TextValue struct {
	Value string `json:"value"`
}

// Attribute is one agent attribute. Type is "TEXT" or "SCALAR"; rexe only
// ever matches the value as a string, so a SCALAR attribute's numeric value
// is stringified by ParseOffers.
type Attribute struct {
	Name   string       `json:"name"`
	Type   string       `json:"type"`
	Text   *TextValue   `json:"text,omitempty"`
	Scalar *ScalarValue `json:"scalar,omitempty"`
}

// WireOffer is a single offer exactly as the master encodes it.
type WireOffer struct {
	ID          OfferID     `json:"id"`
	FrameworkID FrameworkID `json:"framework_id"`
	AgentID     AgentID     `json:"agent_id"`
	Hostname    string      `json:"hostname"`
	URL         *OfferURL   `json:"url,omitempty"`
	Resources   []Resource  `json:"resources"`
	Attributes  []Attribute `json:"attributes"`
}

type TaskStatus struct {
	TaskID          TaskID           `json:"task_id"`
	State           string           `json:"state"`
	Message         string           `json:"message,omitempty"`
	Reason          string           `json:"reason,omitempty"`
	UUID            string           `json:"uuid,omitempty"`
	AgentID         *AgentID         `json:"agent_id,omitempty"`
	ExecutorID      *ExecutorID      `json:"executor_id,omitempty"`
	ContainerStatus *ContainerStatus `json:"container_status,omitempty"`
}

type ContainerStatus struct {
	ContainerID *ContainerID `json:"container_id,omitempty"`
}

type UpdateEvent struct {
	Status TaskStatus `json:"status"`
}

// Terminal task states that end the run with a failure (spec §6.5 step 6).
var FailureStates = map[string]bool{
	"TASK_ERROR":                     true,
	"TASK_FAILED":                    true,
	"TASK_KILLED":                    true,
	"TASK_KILLING":                   true,
	"TASK_DROPPED":                   true,
	"REASON_EXECUTOR_TERMINATED":     true,
	"REASON_CONTAINER_LAUNCH_FAILED": true,
}
