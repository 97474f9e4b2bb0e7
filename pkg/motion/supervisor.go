package motion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/walklab/go-quadwalk/internal/log"
)

var (
	// ErrFaulted is returned while the supervisor requires an operator reset.
	ErrFaulted = errors.New("supervisor faulted, reset required")
	// ErrNoFeedback is returned when an episode cannot start because the
	// transport has no fresh pose feedback.
	ErrNoFeedback = errors.New("no fresh feedback from transport")
)

const (
	// maxPublishFailures is how many consecutive publish errors escalate
	// to a fault.
	maxPublishFailures = 3

	// Emergency-stop burst: repeated stationary commands so a single
	// dropped datagram cannot leave the robot moving.
	estopAttempts = 6
	estopInterval = 20 * time.Millisecond

	// heartbeatTicks spaces the periodic diagnostics log (~5s at 50Hz).
	heartbeatTicks = 250

	degToRad = math.Pi / 180
)

// Supervisor owns the walking state machine and the fixed-rate control
// tick. One goroutine runs the tick via Run; operator intents arrive
// through the exported setters and are applied under the same lock the
// tick holds, so a tick always sees a consistent intent snapshot.
//
// Invariant: every path out of a walking episode - operator stop, path
// complete, watchdog, fault, Run cancellation - publishes a stationary
// command before (or at) the state change.
type Supervisor struct {
	cfg     Config
	port    Transport
	speed   SpeedProfile
	gaze    GazePolicy
	heading HeadingController

	mu       sync.Mutex
	state    State
	intent   intent
	trial    *trialState
	pubFails int

	events chan Event

	// diagnostics
	tickCount  uint64
	errorCount uint64
}

// NewSupervisor builds a supervisor over the given transport. The
// configuration is validated up front; the control loop never starts on an
// invalid one.
func NewSupervisor(cfg Config, port Transport) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Supervisor{
		cfg:  cfg,
		port: port,
		speed: SpeedProfile{
			PathLength: cfg.PathLength,
			StepBreak:  cfg.StepBreak,
			PauseEnd:   cfg.PauseEnd,
			MaxSpeed:   cfg.MaxLinear,
		},
		gaze: GazePolicy{
			AmplitudeDeg: cfg.GazeAmplitudeDeg,
			Rate:         cfg.GazeRate,
		},
		heading: HeadingController{
			Gain:       cfg.HeadingGain,
			MaxAngular: cfg.MaxAngular,
		},
		intent: intent{speedPolicy: PolicyRampUp},
		events: make(chan Event, 64),
	}, nil
}

// Events returns the supervisor transition stream. Single consumer; events
// are dropped rather than ever blocking the control tick.
func (s *Supervisor) Events() <-chan Event {
	return s.events
}

// Run connects the transport and ticks at the configured rate until ctx is
// cancelled. On every exit path a stationary command is the last command
// published before the transport is released.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.port.Connect(); err != nil {
		return fmt.Errorf("transport init: %w", err)
	}
	defer s.port.Disconnect()
	defer s.finalStop()

	ticker := time.NewTicker(s.cfg.TickPeriod)
	defer ticker.Stop()

	log.Info("motion supervisor running",
		"rate_hz", float64(time.Second)/float64(s.cfg.TickPeriod),
		"path_m", s.cfg.PathLength)

	for {
		select {
		case <-ctx.Done():
			log.Info("motion supervisor stopping")
			return nil
		case <-ticker.C:
			s.tick()
		}
	}
}

// finalStop is the shutdown half of the emergency-stop obligation: it runs
// on every Run exit, before the transport is disconnected.
func (s *Supervisor) finalStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateWalking {
		s.toIdleLocked()
	}
	// Bypass failure escalation: there is no next tick to recover on.
	if err := s.port.PublishVelocity(Zero, Zero); err != nil {
		log.Warn("final stop command failed", "err", err)
	}
}

// Start begins a walking episode. It snapshots the current pose as the
// episode origin, so distance is measured relative to wherever the robot
// actually stands. Starting while already walking is a no-op.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateFaulted:
		return ErrFaulted
	case StateWalking:
		return nil
	}

	fb := s.port.Feedback()
	if !s.fresh(fb) {
		return ErrNoFeedback
	}

	s.trial = &trialState{startPose: fb.Pose}
	s.state = StateWalking
	s.emit(EventStarted, 0)
	log.Info("walking started",
		"mode", s.intent.travelMode.String(),
		"policy", string(s.intent.speedPolicy),
		"gaze", s.intent.gazeEnabled)
	return nil
}

// Stop ends the current episode. Safe to call redundantly: the stationary
// command is re-published even when already idle.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.publish(Zero, Zero)
	if s.state == StateWalking {
		s.toIdleLocked()
		log.Info("walking stopped by operator")
	}
}

// Reset stops any episode, discards trial state, and clears a fault if the
// transport is healthy again.
func (s *Supervisor) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateFaulted && !s.fresh(s.port.Feedback()) {
		return fmt.Errorf("%w: transport still unhealthy", ErrFaulted)
	}

	s.pubFails = 0
	s.publish(Zero, Zero)
	s.state = StateIdle
	s.trial = nil
	s.emit(EventReset, 0)
	log.Info("supervisor reset")
	return nil
}

// SetTravelMode selects forward or lateral travel for subsequent ticks.
func (s *Supervisor) SetTravelMode(m TravelMode) {
	s.mu.Lock()
	s.intent.travelMode = m
	s.mu.Unlock()
}

// SetSpeedPolicy selects the speed profile. Unknown ids are rejected.
func (s *Supervisor) SetSpeedPolicy(p Policy) error {
	if _, err := ParsePolicy(string(p)); err != nil {
		return err
	}
	s.mu.Lock()
	s.intent.speedPolicy = p
	s.mu.Unlock()
	return nil
}

// SetGazeEnabled toggles the oscillating gaze bias.
func (s *Supervisor) SetGazeEnabled(enabled bool) {
	s.mu.Lock()
	s.intent.gazeEnabled = enabled
	s.mu.Unlock()
}

// Status returns a point-in-time snapshot.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb := s.port.Feedback()
	st := Status{
		State:       s.state.String(),
		Walking:     s.state == StateWalking,
		Connected:   s.fresh(fb),
		Position:    fb.Pose.Position,
		Heading:     fb.Pose.Heading,
		TravelMode:  s.intent.travelMode.String(),
		SpeedPolicy: string(s.intent.speedPolicy),
		GazeEnabled: s.intent.gazeEnabled,
		PathLength:  s.cfg.PathLength,
	}
	if s.trial != nil {
		st.Distance = s.trial.distance
		st.Elapsed = s.trial.elapsed.Seconds()
	}
	return st
}

// tick is one control cycle. It never blocks on I/O: feedback is a cached
// snapshot and publication is fire-and-forget.
func (s *Supervisor) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tickCount++
	fb := s.port.Feedback()

	if !s.fresh(fb) {
		if s.state == StateWalking {
			// Watchdog: feedback went stale mid-episode. Command a stop
			// now; ticking continues and recovers by itself once fresh
			// feedback returns.
			d := s.trial.distance
			s.publish(Zero, Zero)
			if s.state != StateFaulted {
				s.toIdleLocked()
			}
			s.emit(EventWatchdog, d)
			log.Warn("feedback stale, walking stopped", "distance_m", d)
		}
		return
	}

	switch s.state {
	case StateFaulted:
		return
	case StateIdle:
		// Idle keepalive: re-assert the stationary command each tick.
		s.publish(Zero, Zero)
		return
	}

	t := s.trial
	if d := planarDistance(fb.Pose.Position, t.startPose.Position); d > t.distance {
		t.distance = d
	}
	t.elapsed += s.cfg.TickPeriod

	target := s.speed.Evaluate(s.intent.speedPolicy, t.distance)

	// Edge-triggered stop/resume events drive the stop-latch and the
	// study driver's trial bookkeeping.
	if target == 0 && !t.stopped {
		t.stopped = true
		s.emit(EventStopped, t.distance)
		log.Info("pause reached", "distance_m", t.distance)
	} else if target > 0 && t.stopped {
		t.stopped = false
		s.emit(EventResumed, t.distance)
		log.Info("walk resumed", "distance_m", t.distance)
	}

	bias := s.gaze.Angle(s.intent.gazeEnabled, t.elapsed) * degToRad * s.cfg.GazeAttenuation
	corr := s.heading.Correction(fb.Pose.Heading, s.intent.travelMode.targetHeading(), bias)

	var lin Vec3
	speed := clamp(target, 0, s.cfg.MaxLinear)
	if s.intent.travelMode == TravelLateral {
		lin.Y = speed
	} else {
		lin.X = speed
	}

	if !s.publish(lin, Vec3{Z: corr}) {
		return
	}

	if t.distance >= s.cfg.PathLength {
		d := t.distance
		s.publish(Zero, Zero)
		if s.state == StateFaulted {
			return
		}
		s.toIdleLocked()
		s.emit(EventPathComplete, d)
		log.Info("path complete", "distance_m", d)
	}

	if s.tickCount%heartbeatTicks == 0 {
		log.Debug("control loop heartbeat",
			"ticks", s.tickCount,
			"publish_errors", s.errorCount,
			"state", s.state.String())
	}
}

// publish sends a velocity command, escalating to a fault after
// maxPublishFailures consecutive errors. Returns false when the command
// did not go out.
func (s *Supervisor) publish(linear, angular Vec3) bool {
	if err := s.port.PublishVelocity(linear, angular); err != nil {
		s.pubFails++
		s.errorCount++
		log.Warn("velocity publish failed", "err", err, "consecutive", s.pubFails)
		if s.pubFails >= maxPublishFailures {
			s.faultLocked(err)
		}
		return false
	}
	s.pubFails = 0
	return true
}

// faultLocked enters StateFaulted and fires the emergency-stop burst.
// Re-entrant: a fault raised while already faulted bursts again.
func (s *Supervisor) faultLocked(cause error) {
	s.trial = nil
	s.state = StateFaulted
	s.emit(EventFaulted, 0)
	log.Error("transport fault, commanding emergency stop", "cause", cause)

	for i := 0; i < estopAttempts; i++ {
		// Best effort; errors here are expected on a dead transport.
		_ = s.port.PublishVelocity(Zero, Zero)
		if i < estopAttempts-1 {
			time.Sleep(estopInterval)
		}
	}
}

// toIdleLocked drops the trial so the next episode starts from a clean
// slate. Callers publish the stationary command first.
func (s *Supervisor) toIdleLocked() {
	s.state = StateIdle
	s.trial = nil
}

// fresh reports whether feedback is usable: the transport claims liveness
// and the sample is inside the staleness window. The transport's own flag
// is never trusted alone.
func (s *Supervisor) fresh(fb Feedback) bool {
	return fb.Connected && time.Since(fb.Timestamp) <= s.cfg.Staleness
}

func (s *Supervisor) emit(t EventType, distance float64) {
	select {
	case s.events <- Event{Type: t, Time: time.Now(), Distance: distance}:
	default:
		// Observer too slow; the tick never blocks on it.
	}
}
