package terminal

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when an operation that requires a connected
// session runs against a disconnected one. It is always a caller contract
// violation and never retried.
var ErrNotConnected = errors.New("session is not connected")

// ErrAlreadyConnected is returned by Connect when the session is not in the
// disconnected state.
var ErrAlreadyConnected = errors.New("session is already connected")

// ConnectionError reports a failed attempt to establish a session. It is
// surfaced to the caller of Connect and never retried automatically.
type ConnectionError struct {
	Host string
	Port int
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s:%d: %v", e.Host, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// DriverError wraps a failure from a protocol driver call on a connected
// session.
type DriverError struct {
	Op  string
	Err error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("driver %s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }
