package motion

import (
	"math"
	"time"
)

// GazePolicy produces a slow sinusoidal gaze angle over elapsed episode
// time. The output is a bias in degrees; it is attenuated (Config
// GazeAttenuation) before joining the angular velocity command so the gaze
// reads as a glance, not a turn.
type GazePolicy struct {
	AmplitudeDeg float64 // peak gaze angle in degrees
	Rate         float64 // angular rate of the oscillation in rad/s
}

// Angle returns the gaze bias in degrees at elapsed time t, or 0 when
// gaze is disabled.
func (g GazePolicy) Angle(enabled bool, t time.Duration) float64 {
	if !enabled {
		return 0
	}
	return g.AmplitudeDeg * math.Sin(g.Rate*t.Seconds())
}
