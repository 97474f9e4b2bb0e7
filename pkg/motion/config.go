package motion

import (
	"fmt"
	"time"
)

// Default control constants. Speed and angular limits match the safety
// clamps used on the Go2 hardware deployment.
const (
	DefaultTickPeriod   = 20 * time.Millisecond // 50Hz control loop
	DefaultPathLength   = 15.0                  // meters
	DefaultMaxLinear    = 3.5                   // m/s
	DefaultMaxAngular   = 2.0                   // rad/s
	DefaultStaleness    = 500 * time.Millisecond
	DefaultHeadingGain  = 0.5
	DefaultGazeAmpDeg   = 15.0
	DefaultGazeRate     = 0.5 // rad/s, one full sweep about every 12.6s
	DefaultGazeAtten    = 0.1 // gaze is a cue, not a drive instruction
	DefaultStepBreak    = 8.0
	DefaultPauseEnd     = 8.5
)

// Config holds every tunable of the control core. Validate before use;
// the supervisor refuses to tick on an invalid configuration.
type Config struct {
	TickPeriod time.Duration // control loop period
	PathLength float64       // episode length in meters
	MaxLinear  float64       // linear velocity clamp, m/s
	MaxAngular float64       // angular velocity clamp, rad/s
	Staleness  time.Duration // feedback age after which the watchdog trips

	HeadingGain float64 // proportional yaw gain

	GazeAmplitudeDeg float64 // gaze oscillation peak, degrees
	GazeRate         float64 // gaze oscillation rate, rad/s
	GazeAttenuation  float64 // scale applied to the gaze bias in the yaw command

	StepBreak float64 // speed profile step/pause breakpoint, meters
	PauseEnd  float64 // pause profile resume point, meters
}

// DefaultConfig returns the configuration of the 15m study path.
func DefaultConfig() Config {
	return Config{
		TickPeriod:       DefaultTickPeriod,
		PathLength:       DefaultPathLength,
		MaxLinear:        DefaultMaxLinear,
		MaxAngular:       DefaultMaxAngular,
		Staleness:        DefaultStaleness,
		HeadingGain:      DefaultHeadingGain,
		GazeAmplitudeDeg: DefaultGazeAmpDeg,
		GazeRate:         DefaultGazeRate,
		GazeAttenuation:  DefaultGazeAtten,
		StepBreak:        DefaultStepBreak,
		PauseEnd:         DefaultPauseEnd,
	}
}

// Validate fails fast on out-of-range constants so configuration errors
// surface before the control loop starts.
func (c Config) Validate() error {
	switch {
	case c.TickPeriod <= 0:
		return fmt.Errorf("config: tick period must be positive, got %v", c.TickPeriod)
	case c.PathLength <= 0:
		return fmt.Errorf("config: path length must be positive, got %v", c.PathLength)
	case c.MaxLinear <= 0:
		return fmt.Errorf("config: max linear speed must be positive, got %v", c.MaxLinear)
	case c.MaxAngular <= 0:
		return fmt.Errorf("config: max angular speed must be positive, got %v", c.MaxAngular)
	case c.Staleness <= 0:
		return fmt.Errorf("config: staleness window must be positive, got %v", c.Staleness)
	case c.HeadingGain <= 0:
		return fmt.Errorf("config: heading gain must be positive, got %v", c.HeadingGain)
	case c.GazeAttenuation <= 0 || c.GazeAttenuation > 1:
		return fmt.Errorf("config: gaze attenuation must be in (0, 1], got %v", c.GazeAttenuation)
	case c.StepBreak < 0 || c.StepBreak > c.PathLength:
		return fmt.Errorf("config: step breakpoint %v outside path [0, %v]", c.StepBreak, c.PathLength)
	case c.PauseEnd < c.StepBreak:
		return fmt.Errorf("config: pause end %v before pause start %v", c.PauseEnd, c.StepBreak)
	}
	return nil
}
