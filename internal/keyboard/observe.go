package keyboard

import (
	"github.com/dshills/imehost/internal/ime"
)

// ChangeKind identifies what part of the keyboard state changed.
type ChangeKind int

const (
	ChangeCandidates ChangeKind = iota
	ChangeLayout
	ChangeLayoutPage
	ChangeUpperCase
	ChangeFocus
	ChangeEngine
	ChangeSettings
)

func (c ChangeKind) String() string {
	switch c {
	case ChangeCandidates:
		return "candidates"
	case ChangeLayout:
		return "layout"
	case ChangeLayoutPage:
		return "layoutPage"
	case ChangeUpperCase:
		return "upperCase"
	case ChangeFocus:
		return "focus"
	case ChangeEngine:
		return "engine"
	case ChangeSettings:
		return "settings"
	default:
		return "unknown"
	}
}

// Change is a notification that the keyboard needs redrawing.
type Change struct {
	Kind   ChangeKind
	Engine string
}

// Observer receives changes. Observers are called synchronously from
// whichever goroutine made the change and must not block.
type Observer func(Change)

// OnChange registers an observer.
func (k *Keyboard) OnChange(o Observer) {
	if o == nil {
		return
	}
	k.observersMu.Lock()
	defer k.observersMu.Unlock()
	k.observers = append(k.observers, o)
}

func (k *Keyboard) notify(c Change) {
	k.observersMu.RLock()
	observers := append([]Observer(nil), k.observers...)
	k.observersMu.RUnlock()

	for _, o := range observers {
		o(c)
	}
}

// State is what a renderer needs to draw the keyboard.
type State struct {
	Engine         string
	Layout         string
	Page           int
	Focused        bool
	Candidates     []ime.Candidate
	ShowCandidates bool
	UpperCase      ime.UpperCaseState
}

// State returns the current keyboard state.
func (k *Keyboard) State() State {
	var inst *ime.Instance
	if k.manager != nil {
		inst = k.manager.CurrentEngine()
	}

	k.mu.RLock()
	s := State{
		Layout:     k.layouts.CurrentLayout().Name,
		Page:       k.layouts.PageIndex(),
		Focused:    k.ic != nil,
		Candidates: append([]ime.Candidate(nil), k.candidates...),
		UpperCase:  k.upper,
	}
	k.mu.RUnlock()

	if inst != nil {
		s.Engine = inst.ID
		// Asked outside the lock; script engines answer on their own
		// goroutine.
		s.ShowCandidates = len(s.Candidates) > 0 && inst.DisplaysCandidates()
	}
	return s
}
