// Package imetest provides in-memory hosts, sessions and engines for testing
// code that drives input method engines.
package imetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/imehost/internal/ime"
	"github.com/dshills/imehost/internal/session"
)

// Call is one recorded method call.
type Call struct {
	Method string
	Args   []any
}

func (c Call) String() string {
	return fmt.Sprintf("%s%v", c.Method, c.Args)
}

type recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *recorder) record(method string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Method: method, Args: args})
}

// Calls returns the recorded calls in order.
func (r *recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Methods returns the names of the recorded calls in order.
func (r *recorder) Methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.calls))
	for i, c := range r.calls {
		names[i] = c.Method
	}
	return names
}

// Count returns how often method was called.
func (r *recorder) Count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Session is a recording session.InputContext. Listeners are called
// synchronously by Emit.
type Session struct {
	recorder

	mu        sync.Mutex
	id        string
	inputType string
	inputMode string
	value     string
	selStart  int
	selEnd    int
	err       error
	textErr   error
	listeners map[string][]session.Listener
}

var _ session.InputContext = (*Session)(nil)

// NewSession creates a session holding value with the cursor at selStart,
// selEnd.
func NewSession(id, value string, selStart, selEnd int) *Session {
	return &Session{
		id:        id,
		inputType: "text",
		value:     value,
		selStart:  selStart,
		selEnd:    selEnd,
		listeners: make(map[string][]session.Listener),
	}
}

// Reject makes every editing call fail with err. A nil err restores normal
// behavior.
func (s *Session) Reject(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// FailGetText makes GetText fail with err.
func (s *Session) FailGetText(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textErr = err
}

func (s *Session) ID() string        { return s.id }
func (s *Session) InputType() string { return s.inputType }
func (s *Session) InputMode() string { return s.inputMode }

func (s *Session) SelectionStart() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selStart
}

func (s *Session) SelectionEnd() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selEnd
}

func (s *Session) GetText(context.Context) (string, error) {
	s.record("GetText")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.textErr != nil {
		return "", s.textErr
	}
	return s.value, nil
}

func (s *Session) SendKey(_ context.Context, keyCode, charCode, modifiers int, repeat bool) error {
	s.record("SendKey", keyCode, charCode, modifiers, repeat)
	return s.rejection()
}

func (s *Session) SetComposition(_ context.Context, text string, cursor int) error {
	s.record("SetComposition", text, cursor)
	return s.rejection()
}

func (s *Session) EndComposition(_ context.Context, text string) error {
	s.record("EndComposition", text)
	return s.rejection()
}

func (s *Session) ReplaceSurroundingText(_ context.Context, text string, offset, length int) error {
	s.record("ReplaceSurroundingText", text, offset, length)
	return s.rejection()
}

func (s *Session) AddEventListener(eventType string, l session.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.listeners[eventType] {
		if existing == l {
			return
		}
	}
	s.listeners[eventType] = append(s.listeners[eventType], l)
}

func (s *Session) RemoveEventListener(eventType string, l session.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls := s.listeners[eventType]
	for i, existing := range ls {
		if existing == l {
			s.listeners[eventType] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

// ListenerCount returns the listeners registered for eventType.
func (s *Session) ListenerCount(eventType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners[eventType])
}

// Emit delivers ev to its listeners on the calling goroutine.
func (s *Session) Emit(ctx context.Context, ev session.Event) {
	s.mu.Lock()
	ls := append([]session.Listener(nil), s.listeners[ev.Type]...)
	s.mu.Unlock()
	for _, l := range ls {
		l.HandleEvent(ctx, ev)
	}
}

func (s *Session) rejection() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// InsertingSession is a Session that also supports bulk inserts.
type InsertingSession struct {
	*Session
}

func (s InsertingSession) InsertText(_ context.Context, text string) error {
	s.record("InsertText", text)
	return s.rejection()
}

// Host is a recording ime.Host.
type Host struct {
	recorder

	mu         sync.Mutex
	ic         session.InputContext
	candidates []ime.Candidate
	page       int
	upper      ime.UpperCaseState
	perRow     int
	data       map[string][]byte
}

var _ ime.Host = (*Host)(nil)

// NewHost creates a host with no session.
func NewHost() *Host {
	return &Host{perRow: 4, data: make(map[string][]byte)}
}

// SetInputContext focuses ic. A nil ic blurs.
func (h *Host) SetInputContext(ic session.InputContext) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ic = ic
}

// SetData stores a resource served by LoadData.
func (h *Host) SetData(engineID, path string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data[engineID+"/"+path] = data
}

// Candidates returns the candidates last shown.
func (h *Host) Candidates() []ime.Candidate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.candidates
}

// UpperCase returns the shift state last set.
func (h *Host) UpperCase() ime.UpperCaseState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.upper
}

func (h *Host) InputContext() session.InputContext {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ic
}

func (h *Host) UpdateCandidates(candidates []ime.Candidate) {
	h.record("UpdateCandidates", candidates)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.candidates = candidates
}

func (h *Host) SetLayoutPage(page int) {
	h.record("SetLayoutPage", page)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.page = page
}

func (h *Host) SwitchUpperCaseState(state ime.UpperCaseState) {
	h.record("SwitchUpperCaseState", state)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.upper = state
}

func (h *Host) IsUpperCase() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.upper.IsUpperCase
}

func (h *Host) NumberOfCandidatesPerRow() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.perRow
}

func (h *Host) LoadData(_ context.Context, engineID, path string) ([]byte, error) {
	h.record("LoadData", engineID, path)
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.data[engineID+"/"+path]
	if !ok {
		return nil, fmt.Errorf("no resource %s/%s", engineID, path)
	}
	return data, nil
}
