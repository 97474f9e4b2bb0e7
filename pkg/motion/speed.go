package motion

import (
	"errors"
	"fmt"
)

// Policy names a speed-over-distance profile for a walking episode.
type Policy string

// Speed policies used in the study conditions. The ramp profiles
// interpolate linearly over the whole path; the step and pause profiles
// switch at the configured breakpoint.
const (
	PolicyRampUp         Policy = "ramp_up"
	PolicyRampDown       Policy = "ramp_down"
	PolicyStepUpAtHalf   Policy = "step_up_at_half"
	PolicyStepDownAtHalf Policy = "step_down_at_half"
	PolicyPauseSlow      Policy = "pause_slow"
	PolicyPauseFast      Policy = "pause_fast"
)

// Policies lists all known policies.
var Policies = []Policy{
	PolicyRampUp,
	PolicyRampDown,
	PolicyStepUpAtHalf,
	PolicyStepDownAtHalf,
	PolicyPauseSlow,
	PolicyPauseFast,
}

// ErrUnknownPolicy is returned for a speed policy id that is not defined.
var ErrUnknownPolicy = errors.New("unknown speed policy")

// ParsePolicy validates a policy id.
func ParsePolicy(s string) (Policy, error) {
	for _, p := range Policies {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// Speed endpoints shared by all profiles, in the same units as MaxSpeed.
const (
	slowSpeed = 1.0
	fastSpeed = 3.0
)

// SpeedProfile evaluates a named policy as a pure function of distance
// traveled. The step/pause breakpoints are absolute distances, kept
// configurable rather than derived from the path length: the study design
// pins the transition point, not its ratio.
type SpeedProfile struct {
	PathLength float64 // L; distance is clamped to [0, L] before evaluation
	StepBreak  float64 // step transition / pause start (default 8.0)
	PauseEnd   float64 // pause resume point (default 8.5)
	MaxSpeed   float64 // hard output clamp, guards against misconfiguration
}

// Evaluate returns the target speed for the given policy at distance d.
// Unknown policies fall back to the slow constant speed; callers are
// expected to have validated the policy with ParsePolicy.
func (p SpeedProfile) Evaluate(policy Policy, d float64) float64 {
	d = clamp(d, 0, p.PathLength)

	var speed float64
	switch policy {
	case PolicyRampUp:
		speed = slowSpeed + (d/p.PathLength)*(fastSpeed-slowSpeed)
	case PolicyRampDown:
		speed = fastSpeed - (d/p.PathLength)*(fastSpeed-slowSpeed)
	case PolicyStepUpAtHalf:
		speed = slowSpeed
		if d >= p.StepBreak {
			speed = fastSpeed
		}
	case PolicyStepDownAtHalf:
		speed = fastSpeed
		if d >= p.StepBreak {
			speed = slowSpeed
		}
	case PolicyPauseSlow:
		speed = pause(d, p.StepBreak, p.PauseEnd, slowSpeed)
	case PolicyPauseFast:
		speed = pause(d, p.StepBreak, p.PauseEnd, fastSpeed)
	default:
		speed = slowSpeed
	}

	return clamp(speed, 0, p.MaxSpeed)
}

// pause is the walk / full-stop / walk shape shared by the pause profiles.
func pause(d, stop, resume, speed float64) float64 {
	if d >= stop && d < resume {
		return 0
	}
	return speed
}
