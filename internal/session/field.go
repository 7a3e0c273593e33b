package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Field is an in-memory InputContext. It keeps the value as runes, tracks a
// selection and a composition string, and dispatches change events from a
// dedicated goroutine in the order they happened.
type Field struct {
	mu sync.Mutex

	id        string
	inputType string
	inputMode string

	value       []rune
	selStart    int
	selEnd      int
	composition string
	compCursor  int

	listeners map[string][]Listener

	queue  chan Event
	done   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// FieldOption configures a Field.
type FieldOption func(*Field)

// WithInputType sets the field type reported to engines.
func WithInputType(t string) FieldOption {
	return func(f *Field) {
		f.inputType = t
	}
}

// WithInputMode sets the input mode reported to engines.
func WithInputMode(m string) FieldOption {
	return func(f *Field) {
		f.inputMode = m
	}
}

// WithValue sets the initial value and places the cursor at its end.
func WithValue(v string) FieldOption {
	return func(f *Field) {
		f.value = []rune(v)
		f.selStart = len(f.value)
		f.selEnd = len(f.value)
	}
}

// NewField creates a focused text field and starts its event dispatcher.
func NewField(opts ...FieldOption) *Field {
	f := &Field{
		id:        uuid.New().String(),
		inputType: "text",
		listeners: make(map[string][]Listener),
		queue:     make(chan Event, 64),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}

	f.wg.Add(1)
	go f.dispatchLoop()

	return f
}

// ID returns the session id.
func (f *Field) ID() string { return f.id }

// InputType returns the field type.
func (f *Field) InputType() string { return f.inputType }

// InputMode returns the input mode hint.
func (f *Field) InputMode() string { return f.inputMode }

// SelectionStart returns the selection start in runes.
func (f *Field) SelectionStart() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selStart
}

// SelectionEnd returns the selection end in runes.
func (f *Field) SelectionEnd() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selEnd
}

// GetText returns the committed value.
func (f *Field) GetText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", ErrClosed
	}
	return string(f.value), nil
}

// Composition returns the composing text and its cursor.
func (f *Field) Composition() (string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.composition, f.compCursor
}

// SendKey applies a key to the field. Backspace deletes the selection or the
// rune before the cursor; Return inserts a newline; a non-zero charCode
// inserts that character.
func (f *Field) SendKey(ctx context.Context, keyCode, charCode, modifiers int, repeat bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	switch {
	case keyCode == KeyBackspace:
		if f.selStart == f.selEnd {
			if f.selStart == 0 {
				return nil
			}
			f.replaceLocked(f.selStart-1, f.selEnd, "", true)
		} else {
			f.replaceLocked(f.selStart, f.selEnd, "", true)
		}
	case keyCode == KeyReturn:
		f.replaceLocked(f.selStart, f.selEnd, "\n", true)
	case charCode > 0:
		f.replaceLocked(f.selStart, f.selEnd, string(rune(charCode)), true)
	}
	return nil
}

// InsertText replaces the selection with text in one edit.
func (f *Field) InsertText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.replaceLocked(f.selStart, f.selEnd, text, true)
	return nil
}

// SetComposition sets the composing text. The composition is not part of
// the value until EndComposition commits it.
func (f *Field) SetComposition(ctx context.Context, text string, cursor int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.composition = text
	f.compCursor = cursor
	return nil
}

// EndComposition clears the composition and commits text at the cursor.
func (f *Field) EndComposition(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.composition = ""
	f.compCursor = 0
	if text != "" {
		f.replaceLocked(f.selStart, f.selEnd, text, true)
	}
	return nil
}

// ReplaceSurroundingText replaces length runes starting offset runes from the
// cursor. The range is clamped to the value.
func (f *Field) ReplaceSurroundingText(ctx context.Context, text string, offset, length int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	start := clamp(f.selStart+offset, 0, len(f.value))
	end := clamp(start+length, start, len(f.value))
	f.replaceLocked(start, end, text, true)
	return nil
}

// SetText replaces the whole value as if the user edited the field directly.
func (f *Field) SetText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.replaceLocked(0, len(f.value), text, false)
}

// SetSelection moves the selection as if the user tapped in the field.
func (f *Field) SetSelection(start, end int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	start = clamp(start, 0, len(f.value))
	end = clamp(end, start, len(f.value))
	if start == f.selStart && end == f.selEnd {
		return
	}
	f.selStart, f.selEnd = start, end
	f.emitLocked(Event{
		Type:   EventSelectionChange,
		Detail: SelectionChangeDetail{SelectionStart: start, SelectionEnd: end},
	})
}

// AddEventListener registers l for eventType. Adding the same listener twice
// has no effect.
func (f *Field) AddEventListener(eventType string, l Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.listeners[eventType] {
		if existing == l {
			return
		}
	}
	f.listeners[eventType] = append(f.listeners[eventType], l)
}

// RemoveEventListener unregisters l for eventType.
func (f *Field) RemoveEventListener(eventType string, l Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ls := f.listeners[eventType]
	for i, existing := range ls {
		if existing == l {
			f.listeners[eventType] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

// ListenerCount returns how many listeners are registered for eventType.
func (f *Field) ListenerCount(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners[eventType])
}

// Close tears the session down. Pending events are dropped and every later
// call returns ErrClosed.
func (f *Field) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.done)
	f.mu.Unlock()

	f.wg.Wait()
}

// replaceLocked replaces value[start:end] with text, moves the cursor after
// the inserted text and queues the change events. Must be called with mu held.
func (f *Field) replaceLocked(start, end int, text string, own bool) {
	inserted := []rune(text)
	next := make([]rune, 0, len(f.value)-(end-start)+len(inserted))
	next = append(next, f.value[:start]...)
	next = append(next, inserted...)
	next = append(next, f.value[end:]...)
	f.value = next

	cursor := start + len(inserted)
	f.selStart, f.selEnd = cursor, cursor

	f.emitLocked(Event{
		Type:   EventSelectionChange,
		Detail: SelectionChangeDetail{SelectionStart: cursor, SelectionEnd: cursor, OwnAction: own},
	})
	f.emitLocked(Event{
		Type: EventSurroundingTextChange,
		Detail: SurroundingTextChangeDetail{
			BeforeString: string(f.value[:cursor]),
			AfterString:  string(f.value[cursor:]),
			OwnAction:    own,
		},
	})
}

// emitLocked queues an event. When the queue is full the event is dropped
// rather than blocking the editing call. Must be called with mu held.
func (f *Field) emitLocked(ev Event) {
	select {
	case f.queue <- ev:
	default:
	}
}

func (f *Field) dispatchLoop() {
	defer f.wg.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		select {
		case <-f.done:
			return
		case ev := <-f.queue:
			f.mu.Lock()
			ls := append([]Listener(nil), f.listeners[ev.Type]...)
			f.mu.Unlock()

			for _, l := range ls {
				l.HandleEvent(ctx, ev)
			}
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
