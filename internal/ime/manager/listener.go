package manager

import (
	"context"

	"github.com/dshills/imehost/internal/ime"
	"github.com/dshills/imehost/internal/session"
)

// attachment records the listener bound to one session for one engine.
type attachment struct {
	ic       session.InputContext
	listener *engineListener
	types    []string
}

// engineListener forwards session events to the engine it was attached for,
// and drops events that arrive after that engine left the slot.
type engineListener struct {
	m    *Manager
	inst *ime.Instance
}

func (l *engineListener) HandleEvent(ctx context.Context, ev session.Event) {
	if l.m.current.Load() != l.inst {
		return
	}
	l.m.dispatch(ctx, l.inst, ev)
}

// attachLocked listens on the focused session for the events inst handles.
// Must be called with mu held.
func (m *Manager) attachLocked(inst *ime.Instance) {
	ic := m.sessions.InputContext()
	if ic == nil {
		return
	}

	var types []string
	if inst.Caps.Has(ime.CapSelectionChange) {
		types = append(types, session.EventSelectionChange)
	}
	if inst.Caps.Has(ime.CapSurroundingTextChange) {
		types = append(types, session.EventSurroundingTextChange)
	}
	if len(types) == 0 {
		return
	}

	l := &engineListener{m: m, inst: inst}
	for _, t := range types {
		ic.AddEventListener(t, l)
	}
	m.attached = &attachment{ic: ic, listener: l, types: types}
}

// detachLocked removes the listeners of the previous engine.
// Must be called with mu held.
func (m *Manager) detachLocked() {
	if m.attached == nil {
		return
	}
	for _, t := range m.attached.types {
		m.attached.ic.RemoveEventListener(t, m.attached.listener)
	}
	m.attached = nil
}

// HandleEvent forwards a session event to the active engine if it handles
// that event type.
func (m *Manager) HandleEvent(ctx context.Context, ev session.Event) {
	inst := m.current.Load()
	if inst == nil {
		return
	}
	m.dispatch(ctx, inst, ev)
}

// dispatch runs on the session's delivery goroutine; an engine panic is
// logged there rather than taking the process down.
func (m *Manager) dispatch(ctx context.Context, inst *ime.Instance, ev session.Event) {
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("%s event: %v", ev.Type, panicError(inst.ID, p))
		}
	}()

	switch ev.Type {
	case session.EventSelectionChange:
		h, ok := inst.SelectionChangeHandler()
		if !ok {
			return
		}
		detail, ok := ev.Detail.(session.SelectionChangeDetail)
		if !ok {
			m.logger.Warn("%s event with detail %T", ev.Type, ev.Detail)
			return
		}
		h.SelectionChange(ctx, detail)
	case session.EventSurroundingTextChange:
		h, ok := inst.SurroundingTextChangeHandler()
		if !ok {
			return
		}
		detail, ok := ev.Detail.(session.SurroundingTextChangeDetail)
		if !ok {
			m.logger.Warn("%s event with detail %T", ev.Type, ev.Detail)
			return
		}
		h.SurroundingTextChange(ctx, detail)
	}
}
