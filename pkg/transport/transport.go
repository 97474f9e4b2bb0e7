// Package transport provides the links the motion supervisor drives:
// an in-process simulated twin (Loopback) and the UDP/JSON bridge to an
// external simulator (Bridge). Both satisfy motion.Transport.
package transport

import "errors"

// ErrClosed is returned when a command is published on a transport that is
// not connected.
var ErrClosed = errors.New("transport closed")
