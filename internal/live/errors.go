package live

import (
	"errors"
	"fmt"
)

// ErrSessionNotIdle is returned by Start when a session is already running.
var ErrSessionNotIdle = errors.New("live session already started")

// PermissionError marks a failed media acquisition. Fatal to session start.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("media permission denied: %v", e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// TransportError marks a connection that failed to open or died while active.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("live transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
