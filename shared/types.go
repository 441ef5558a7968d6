// Package shared contains the wire types exchanged between the traffic engine,
// the simulation server and its clients: snapshots, metrics, operator
// commands and their results.
package shared

import "time"

// Rect is an axis-aligned rectangle in canvas units.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// StreetState is the visible state of one street
type StreetState struct {
	ID          string `json:"id"`
	Orientation string `json:"orientation"`
	Rect        Rect   `json:"rect"`
	Closed      bool   `json:"closed"`
	Perimeter   bool   `json:"perimeter,omitempty"`
}

// LightState is the visible state of one traffic light
type LightState struct {
	Direction string `json:"direction"`
	Color     string `json:"color"`
	Active    bool   `json:"active"`
	Override  bool   `json:"override,omitempty"`
}

// IntersectionState is the visible state of an intersection and its lights
type IntersectionState struct {
	ID     string       `json:"id"`
	Rect   Rect         `json:"rect"`
	Phase  string       `json:"phase"`
	Lights []LightState `json:"lights"`
}

// CarState is the visible state of one car
type CarState struct {
	ID             int     `json:"id"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Rotation       float64 `json:"rotation"`
	State          string  `json:"state"`
	TrafficStopped bool    `json:"traffic_stopped"`
	BoxedIn        bool    `json:"boxed_in,omitempty"`
	Street         string  `json:"street"`
}

// Metrics holds the dashboard counters
type Metrics struct {
	Tick              int64  `json:"tick"`
	Cars              int    `json:"cars"`
	OpenStreets       int    `json:"open_streets"`
	ClosedStreets     int    `json:"closed_streets"`
	ActiveLights      int    `json:"active_lights"`
	DeactivatedLights int    `json:"deactivated_lights"`
	BoxedInCars       int    `json:"boxed_in_cars"`
	Density           string `json:"density"`
}

// Snapshot is a read-only view of one frame of the simulation.
// Simulated time travels as whole milliseconds so it stays exact through
// float64 JSON numbers.
type Snapshot struct {
	Tick          int64               `json:"tick"`
	SimMs         int64               `json:"sim_ms"`
	Width         float64             `json:"width"`
	Height        float64             `json:"height"`
	Streets       []StreetState       `json:"streets"`
	Intersections []IntersectionState `json:"intersections"`
	Cars          []CarState          `json:"cars"`
	Metrics       Metrics             `json:"metrics"`
}

// SimTime returns the simulated time of the frame.
func (s Snapshot) SimTime() time.Duration { return time.Duration(s.SimMs) * time.Millisecond }

// Command is one operator instruction in the fixed control vocabulary.
// Target holds a street id ("H21") or a light id ("I22 TOP").
type Command struct {
	Action   string  `json:"action"`
	Target   string  `json:"target,omitempty"`
	Color    string  `json:"color,omitempty"`
	Seconds  float64 `json:"seconds,omitempty"`
	Density  string  `json:"density,omitempty"`
	Cause    string  `json:"cause,omitempty"`
	Priority string  `json:"priority,omitempty"`
}

// CommandBatch is an ordered list of commands executed sequentially
type CommandBatch struct {
	RequestID string    `json:"request_id,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Commands  []Command `json:"commands"`
}

// CommandResult reports the outcome of a single command. Changed is false
// for policy no-ops such as closing a street that is already closed.
type CommandResult struct {
	Command  Command  `json:"command"`
	OK       bool     `json:"ok"`
	Changed  bool     `json:"changed"`
	Error    string   `json:"error,omitempty"`
	Affected []string `json:"affected,omitempty"`
}

// CommandResponse answers a CommandBatch
type CommandResponse struct {
	RequestID string          `json:"request_id"`
	Results   []CommandResult `json:"results"`
}

// EventState is a notable engine event forwarded to viewers
type EventState struct {
	Tick    int64  `json:"tick"`
	Type    string `json:"type"`
	Subject string `json:"subject"`
	Detail  string `json:"detail,omitempty"`
}

// MessageType tags a ViewerMessage
type MessageType string

const (
	MessageSnapshot MessageType = "snapshot"
	MessageEvent    MessageType = "event"
	MessageResults  MessageType = "results"
	MessageError    MessageType = "error"
)

// ViewerMessage is the envelope pushed to WebSocket viewers
type ViewerMessage struct {
	Type      MessageType      `json:"type"`
	SessionID string           `json:"session_id,omitempty"`
	Snapshot  *Snapshot        `json:"snapshot,omitempty"`
	Event     *EventState      `json:"event,omitempty"`
	Results   *CommandResponse `json:"results,omitempty"`
	Error     string           `json:"error,omitempty"`
}
