package manager

// EventHandler handles manager events. Handlers run on the goroutine that
// completed the switch and must not block. Panics in handlers are recovered.
type EventHandler func(event Event)

// Event reports a change of the active engine.
type Event struct {
	Type   EventType
	Engine string
	Err    error
}

// EventType is the type of manager event.
type EventType int

const (
	// EventEngineActivated is emitted when an engine becomes the active one.
	EventEngineActivated EventType = iota
	// EventEngineDeactivated is emitted when the active engine is replaced.
	EventEngineDeactivated
	// EventSwitchFailed is emitted when a switch could not load or activate
	// its engine.
	EventSwitchFailed
	// EventSwitchSuperseded is emitted when a newer switch overtook a pending
	// one.
	EventSwitchSuperseded
)

// String returns a string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventEngineActivated:
		return "activated"
	case EventEngineDeactivated:
		return "deactivated"
	case EventSwitchFailed:
		return "failed"
	case EventSwitchSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Subscribe adds an event handler.
// Returns an unsubscribe function to remove the handler.
func (m *Manager) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	m.handlersMu.Lock()
	m.handlers = append(m.handlers, handler)
	index := len(m.handlers) - 1
	m.handlersMu.Unlock()

	return func() {
		m.handlersMu.Lock()
		defer m.handlersMu.Unlock()
		if index < len(m.handlers) {
			m.handlers[index] = nil
		}
	}
}

func (m *Manager) emitEvent(event Event) {
	m.handlersMu.RLock()
	handlers := make([]EventHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.handlersMu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("event handler panic: %v", r)
				}
			}()
			handler(event)
		}()
	}
}
