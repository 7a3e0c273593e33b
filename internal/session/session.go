// Package session defines the text-input session capability the engine host
// types into, and an in-memory Field implementing it.
//
// A session is owned by the platform. The host treats it as an opaque
// capability: it reads the text and selection, injects keys, drives
// composition and listens for selection and surrounding-text changes.
package session

import (
	"context"
	"errors"
)

// Event types dispatched by an InputContext.
const (
	EventSelectionChange       = "selectionchange"
	EventSurroundingTextChange = "surroundingtextchange"
)

// Key codes with dedicated handling in SendKey.
const (
	KeyBackspace = 8
	KeyReturn    = 13
)

// ErrClosed is returned by every operation on a session that has been torn down.
var ErrClosed = errors.New("session: input context is closed")

// Event is a change notification from an InputContext.
type Event struct {
	Type   string
	Detail any
}

// SelectionChangeDetail is the detail of a selectionchange event.
type SelectionChangeDetail struct {
	SelectionStart int
	SelectionEnd   int
	OwnAction      bool
}

// SurroundingTextChangeDetail is the detail of a surroundingtextchange event.
type SurroundingTextChangeDetail struct {
	BeforeString string
	AfterString  string
	OwnAction    bool
}

// Listener receives events from an InputContext. Events are never delivered
// on the goroutine that caused them.
type Listener interface {
	HandleEvent(ctx context.Context, ev Event)
}

// InputContext is the session capability consumed by the engine host.
type InputContext interface {
	// ID identifies this session instance.
	ID() string

	// InputType is the field type (text, url, email, ...).
	InputType() string

	// InputMode is the field's input mode hint.
	InputMode() string

	// SelectionStart and SelectionEnd are rune offsets into the value.
	SelectionStart() int
	SelectionEnd() int

	// GetText returns the full value of the field.
	GetText(ctx context.Context) (string, error)

	// SendKey injects a key. keyCode carries non-printing keys, charCode
	// carries printable characters.
	SendKey(ctx context.Context, keyCode, charCode, modifiers int, repeat bool) error

	// SetComposition starts or updates the composing text.
	SetComposition(ctx context.Context, text string, cursor int) error

	// EndComposition clears the composing text and commits text.
	EndComposition(ctx context.Context, text string) error

	// ReplaceSurroundingText replaces length runes starting offset runes
	// from the cursor.
	ReplaceSurroundingText(ctx context.Context, text string, offset, length int) error

	AddEventListener(eventType string, l Listener)
	RemoveEventListener(eventType string, l Listener)
}

// TextInserter is implemented by sessions that can insert a whole string in
// one operation.
type TextInserter interface {
	InsertText(ctx context.Context, text string) error
}
