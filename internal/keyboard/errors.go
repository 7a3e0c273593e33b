package keyboard

import (
	"errors"
	"fmt"
)

// Keyboard errors.
var (
	// ErrAlreadyRunning indicates the keyboard is already running.
	ErrAlreadyRunning = errors.New("keyboard already running")

	// ErrNotRunning indicates the keyboard has not been started.
	ErrNotRunning = errors.New("keyboard not running")

	// ErrNoCandidate indicates a candidate index outside the current list.
	ErrNoCandidate = errors.New("no such candidate")

	// ErrUnsupported indicates the active engine lacks the capability an
	// operation needs.
	ErrUnsupported = errors.New("not supported by the active engine")
)

// InitError represents an initialization error.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}
