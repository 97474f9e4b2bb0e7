package transport

import (
	"math"
	"sync"
	"time"

	"github.com/walklab/go-quadwalk/pkg/motion"
)

// maxIntegrationStep caps the time step used to integrate a command so a
// long gap between publishes (debugger pause, scheduler stall) cannot
// teleport the simulated robot.
const maxIntegrationStep = 250 * time.Millisecond

// Loopback is the simulated twin: it integrates published body-frame
// velocity commands into a world-frame pose, so the supervisor can be
// exercised end to end with no robot and no simulator process.
type Loopback struct {
	mu        sync.Mutex
	pose      motion.Pose
	connected bool
	lastCmd   time.Time
	lastRx    time.Time
	staleness time.Duration

	now func() time.Time // injectable clock for deterministic tests
}

// NewLoopback returns a disconnected loopback twin at the origin.
func NewLoopback() *Loopback {
	return &Loopback{
		staleness: 500 * time.Millisecond,
		now:       time.Now,
	}
}

// Connect places the twin at the origin and starts reporting feedback.
func (l *Loopback) Connect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pose = motion.Pose{}
	l.connected = true
	now := l.now()
	l.lastCmd = now
	l.lastRx = now
	return nil
}

// Disconnect stops the twin; feedback reports disconnected afterwards.
func (l *Loopback) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
	return nil
}

// PublishVelocity integrates the command into the pose. The linear command
// is body-frame: the current heading rotates it into the world frame
// before integration, matching how the robot executes velocity commands.
func (l *Loopback) PublishVelocity(linear, angular motion.Vec3) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected {
		return ErrClosed
	}

	now := l.now()
	dt := now.Sub(l.lastCmd)
	if dt > maxIntegrationStep {
		dt = maxIntegrationStep
	}
	sec := dt.Seconds()

	sin, cos := math.Sincos(l.pose.Heading)
	l.pose.Position.X += (cos*linear.X - sin*linear.Y) * sec
	l.pose.Position.Y += (sin*linear.X + cos*linear.Y) * sec
	l.pose.Heading = motion.WrapAngle(l.pose.Heading + angular.Z*sec)

	l.lastCmd = now
	l.lastRx = now
	return nil
}

// Feedback returns the current simulated pose. Staleness follows the same
// contract as a real link: no command traffic within the window reads as
// disconnected.
func (l *Loopback) Feedback() motion.Feedback {
	l.mu.Lock()
	defer l.mu.Unlock()
	return motion.Feedback{
		Pose:      l.pose,
		Connected: l.connected && l.now().Sub(l.lastRx) <= l.staleness,
		Timestamp: l.lastRx,
	}
}

// SetPose teleports the twin, e.g. to stage a trial start position.
func (l *Loopback) SetPose(p motion.Pose) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pose = p
	l.lastRx = l.now()
}
