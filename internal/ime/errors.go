package ime

import (
	"errors"
	"fmt"
)

// Engine host errors.
var (
	// ErrNoSession is returned when an engine calls the glue while no
	// input context exists.
	ErrNoSession = errors.New("no input context")

	// ErrNotExposed is returned when fetched engine code did not register
	// the engine it was fetched for.
	ErrNotExposed = errors.New("engine did not expose itself")

	// ErrLoadFailed is returned when engine code could not be fetched.
	ErrLoadFailed = errors.New("engine failed to load")

	// ErrSuperseded is returned by a switch that lost to a newer switch.
	ErrSuperseded = errors.New("engine switch superseded")

	// ErrInvalidID is returned for engine ids that are not valid names.
	ErrInvalidID = errors.New("invalid engine id")

	// ErrAlreadyRegistered is returned when an engine id is registered twice.
	ErrAlreadyRegistered = errors.New("engine already registered")

	// ErrAlreadyInitialized is returned when an engine is initialized twice.
	ErrAlreadyInitialized = errors.New("engine already initialized")

	// ErrLayoutPage is the cause of the protocol violation raised when an
	// engine requests a layout page other than the default one.
	ErrLayoutPage = errors.New("engine may only switch to the default layout page")
)

// ProtocolError reports an engine breaking the host contract. These are
// programming errors in the engine, not conditions to recover from.
type ProtocolError struct {
	Engine string
	Err    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("engine %q protocol violation: %v", e.Engine, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
