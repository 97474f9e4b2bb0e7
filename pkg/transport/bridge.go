package transport

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/walklab/go-quadwalk/internal/log"
	"github.com/walklab/go-quadwalk/pkg/motion"
)

// Wire format of the external simulator bridge. Commands go out as one
// JSON datagram per tick; the simulator streams status datagrams back.
type commandMsg struct {
	Velocity [3]float64 `json:"velocity"`
	YawRate  float64    `json:"yawRate"`
}

type statusMsg struct {
	Position         [3]float64 `json:"position"`
	Orientation      float64    `json:"orientation"` // yaw in degrees
	DistanceTraveled float64    `json:"distanceTraveled"`
}

const (
	readTimeout  = 200 * time.Millisecond
	writeTimeout = 50 * time.Millisecond
	maxDatagram  = 1024
)

// BridgeConfig configures the UDP/JSON simulator bridge.
type BridgeConfig struct {
	// RemoteAddr is the simulator's command endpoint, host:port.
	RemoteAddr string
	// ListenAddr receives status datagrams, e.g. ":12346".
	ListenAddr string
	// Staleness bounds how old the cached status may be before the
	// bridge reports disconnected.
	Staleness time.Duration
}

// Bridge talks to an external simulator over UDP. A dedicated receive
// goroutine is the only writer of the feedback snapshot; the control tick
// reads it through an atomic pointer and never touches the socket.
type Bridge struct {
	cfg  BridgeConfig
	send *net.UDPConn
	recv *net.UDPConn

	snap   atomic.Pointer[motion.Feedback]
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewBridge creates an unconnected bridge.
func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.Staleness <= 0 {
		cfg.Staleness = 500 * time.Millisecond
	}
	return &Bridge{cfg: cfg}
}

// Connect binds both sockets and starts the status receiver. Failure here
// is fatal to startup; the supervisor refuses to tick without it.
func (b *Bridge) Connect() error {
	remote, err := net.ResolveUDPAddr("udp", b.cfg.RemoteAddr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", b.cfg.RemoteAddr, err)
	}
	send, err := net.DialUDP("udp", nil, remote)
	if err != nil {
		return fmt.Errorf("dial %s: %w", b.cfg.RemoteAddr, err)
	}

	listen, err := net.ResolveUDPAddr("udp", b.cfg.ListenAddr)
	if err != nil {
		send.Close()
		return fmt.Errorf("resolve %s: %w", b.cfg.ListenAddr, err)
	}
	recv, err := net.ListenUDP("udp", listen)
	if err != nil {
		send.Close()
		return fmt.Errorf("listen %s: %w", b.cfg.ListenAddr, err)
	}

	b.send = send
	b.recv = recv
	b.done = make(chan struct{})
	b.closed.Store(false)
	b.snap.Store(&motion.Feedback{})

	b.wg.Add(1)
	go b.readLoop()

	log.Info("simulator bridge connected",
		"remote", b.cfg.RemoteAddr,
		"listen", recv.LocalAddr().String())
	return nil
}

// Disconnect stops the receiver and closes both sockets.
func (b *Bridge) Disconnect() error {
	if b.closed.Swap(true) {
		return nil
	}
	close(b.done)
	if b.recv != nil {
		b.recv.Close()
	}
	if b.send != nil {
		b.send.Close()
	}
	b.wg.Wait()
	return nil
}

// LocalStatusAddr returns the bound status listen address, useful when
// ListenAddr requested an ephemeral port.
func (b *Bridge) LocalStatusAddr() net.Addr {
	if b.recv == nil {
		return nil
	}
	return b.recv.LocalAddr()
}

// PublishVelocity sends one command datagram, fire-and-forget. A send that
// would block is timed out rather than allowed to stall the control tick.
func (b *Bridge) PublishVelocity(linear, angular motion.Vec3) error {
	if b.closed.Load() || b.send == nil {
		return ErrClosed
	}

	data, err := json.Marshal(commandMsg{
		Velocity: [3]float64{linear.X, linear.Y, linear.Z},
		YawRate:  angular.Z,
	})
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	b.send.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := b.send.Write(data); err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	return nil
}

// Feedback returns the cached status snapshot. Liveness is derived from
// the age of the last received datagram, not from anything the wire
// claims: UDP has no disconnect signal.
func (b *Bridge) Feedback() motion.Feedback {
	p := b.snap.Load()
	if p == nil {
		return motion.Feedback{}
	}
	fb := *p
	if time.Since(fb.Timestamp) > b.cfg.Staleness {
		fb.Connected = false
	}
	return fb
}

// readLoop is the single writer of the feedback snapshot.
func (b *Bridge) readLoop() {
	defer b.wg.Done()

	buf := make([]byte, maxDatagram)
	for {
		select {
		case <-b.done:
			return
		default:
		}

		b.recv.SetReadDeadline(time.Now().Add(readTimeout))
		n, _, err := b.recv.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if b.closed.Load() {
				return
			}
			log.Warn("bridge receive error", "err", err)
			continue
		}

		var msg statusMsg
		if err := json.Unmarshal(buf[:n], &msg); err != nil {
			log.Warn("bridge status decode error", "err", err)
			continue
		}

		b.snap.Store(&motion.Feedback{
			Pose: motion.Pose{
				Position: motion.Vec3{X: msg.Position[0], Y: msg.Position[1], Z: msg.Position[2]},
				Heading:  motion.WrapAngle(msg.Orientation * math.Pi / 180),
			},
			Connected: true,
			Timestamp: time.Now(),
		})
	}
}
