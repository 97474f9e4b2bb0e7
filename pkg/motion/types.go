// Package motion implements the locomotion control core for the linear-path
// walking study. A single fixed-rate Supervisor tracks distance traveled
// from pose feedback, maps a speed profile and gaze policy into a body
// velocity command each tick, and pushes it through a Transport. The same
// supervisor drives the real robot bridge and the simulated twin; only the
// Transport differs.
package motion

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Vec3 is a 3-component vector in meters (positions) or m/s / rad/s
// (velocity commands).
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Zero is the stationary velocity command.
var Zero = Vec3{}

// Pose is an immutable snapshot of the robot body pose. Heading is the yaw
// angle in radians, wrapped to (-pi, pi].
type Pose struct {
	Position Vec3    `json:"position"`
	Heading  float64 `json:"heading"`
}

// Feedback is the latest cached transport feedback. Timestamp is when the
// underlying sample was received; the supervisor treats feedback older than
// the staleness window as disconnected regardless of Connected.
type Feedback struct {
	Pose      Pose
	Connected bool
	Timestamp time.Time
}

// Transport is the capability the supervisor needs from a robot or
// simulator link. PublishVelocity is best-effort and must not block on the
// wire; Feedback returns the last cached snapshot and never blocks.
type Transport interface {
	Connect() error
	Disconnect() error
	PublishVelocity(linear, angular Vec3) error
	Feedback() Feedback
}

// TravelMode selects which body axis is aligned with path progress.
type TravelMode int

const (
	// TravelForward walks with the forward body axis along the path.
	TravelForward TravelMode = iota
	// TravelLateral crab-walks with the lateral axis along the path,
	// body facing perpendicular to it.
	TravelLateral
)

func (m TravelMode) String() string {
	if m == TravelLateral {
		return "lateral"
	}
	return "forward"
}

// ErrUnknownTravelMode is returned by ParseTravelMode for unrecognized names.
var ErrUnknownTravelMode = errors.New("unknown travel mode")

// ParseTravelMode resolves a mode name ("forward", "lateral", or the
// shorthands "f"/"l") to a TravelMode.
func ParseTravelMode(s string) (TravelMode, error) {
	switch s {
	case "forward", "f":
		return TravelForward, nil
	case "lateral", "l":
		return TravelLateral, nil
	}
	return TravelForward, fmt.Errorf("%w: %q", ErrUnknownTravelMode, s)
}

// targetHeading is the body yaw the heading controller regulates toward.
func (m TravelMode) targetHeading() float64 {
	if m == TravelLateral {
		return math.Pi / 2
	}
	return 0
}

// State is the supervisor state machine state.
type State int

const (
	// StateIdle means stationary, ready to start a walking episode.
	StateIdle State = iota
	// StateWalking means an episode is in progress.
	StateWalking
	// StateFaulted means the transport failed unrecoverably; an explicit
	// Reset with a healthy transport is the only way out.
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateWalking:
		return "walking"
	case StateFaulted:
		return "faulted"
	}
	return "idle"
}

// intent is the operator-facing control surface, read once per tick.
type intent struct {
	travelMode  TravelMode
	speedPolicy Policy
	gazeEnabled bool
}

// trialState tracks one walking episode. It is allocated on Idle->Walking
// and dropped, not reset, on any transition back to Idle so a fresh episode
// never sees a stale start pose.
type trialState struct {
	startPose Pose
	distance  float64
	elapsed   time.Duration
	stopped   bool // stop-latch for edge-triggered stop/resume events
}

// EventType identifies a supervisor transition of interest to observers.
type EventType int

const (
	// EventStarted fires on Idle->Walking.
	EventStarted EventType = iota
	// EventStopped fires when the target speed crosses to exactly zero
	// mid-episode (pause profiles).
	EventStopped
	// EventResumed fires when the target speed leaves zero again.
	EventResumed
	// EventPathComplete fires when distance traveled reaches the path length.
	EventPathComplete
	// EventWatchdog fires when stale feedback forces a walking episode to stop.
	EventWatchdog
	// EventFaulted fires on entry to StateFaulted.
	EventFaulted
	// EventReset fires on an explicit reset.
	EventReset
)

func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	case EventResumed:
		return "resumed"
	case EventPathComplete:
		return "path_complete"
	case EventWatchdog:
		return "watchdog"
	case EventFaulted:
		return "faulted"
	case EventReset:
		return "reset"
	}
	return "unknown"
}

// Event is a transition record emitted on the supervisor event channel. The
// study protocol layer builds trial results from these.
type Event struct {
	Type     EventType `json:"type"`
	Time     time.Time `json:"time"`
	Distance float64   `json:"distance"`
}

// Status is a point-in-time snapshot of the supervisor for operators,
// the web API, and telemetry.
type Status struct {
	State       string  `json:"state"`
	Walking     bool    `json:"walking"`
	Connected   bool    `json:"connected"`
	Position    Vec3    `json:"position"`
	Heading     float64 `json:"heading"`
	Distance    float64 `json:"distance_traveled"`
	Elapsed     float64 `json:"elapsed_seconds"`
	TravelMode  string  `json:"travel_mode"`
	SpeedPolicy string  `json:"speed_policy"`
	GazeEnabled bool    `json:"gaze_enabled"`
	PathLength  float64 `json:"path_length"`
}

// WrapAngle wraps a to (-pi, pi].
func WrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// planarDistance is the distance between two positions ignoring the
// vertical axis: body height is not path progress.
func planarDistance(a, b Vec3) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// clamp restricts v to the range [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
