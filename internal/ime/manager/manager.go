// Package manager owns the active engine slot and runs the engine switch
// protocol.
//
// A switch happens in two halves. The synchronous half deactivates the
// current engine, detaches its session listeners and puts the pass-through
// default engine in the slot. The asynchronous half waits for the engine,
// the session snapshot and the settings, activates the engine and commits
// it. Every switch takes a generation number in the synchronous half, and
// the commit only happens if no newer switch has started since.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/imehost/internal/config"
	"github.com/dshills/imehost/internal/ime"
	"github.com/dshills/imehost/internal/ime/async"
	"github.com/dshills/imehost/internal/layout"
	"github.com/dshills/imehost/internal/logging"
	"github.com/dshills/imehost/internal/session"
)

// EngineSource resolves engine ids to initialized instances.
type EngineSource interface {
	GetInputMethod(id string) *ime.Instance
	GetInputMethodAsync(id string) *async.Result[*ime.Instance]
}

// SessionSource reports the focused input context, or nil.
type SessionSource interface {
	InputContext() session.InputContext
}

// SettingsProvider reads the persisted keyboard settings.
type SettingsProvider interface {
	Snapshot(ctx context.Context) (config.IMESettings, error)
}

// LayoutProvider reports the current keyboard layout.
type LayoutProvider interface {
	CurrentLayout() layout.Layout
}

// ErrNotStarted is returned by operations that need Start to have run.
var ErrNotStarted = errors.New("engine manager not started")

// Manager owns the active engine slot.
type Manager struct {
	// mu serializes the synchronous half of switches and guards snapshot
	// and attached.
	mu sync.Mutex
	// activateMu serializes activation and commit across switches.
	activateMu sync.Mutex

	engines  EngineSource
	sessions SessionSource
	settings SettingsProvider
	layouts  LayoutProvider
	logger   *logging.Logger

	ctx        context.Context
	current    atomic.Pointer[ime.Instance]
	generation atomic.Uint64
	snapshot   *async.Result[ime.SessionSnapshot]
	attached   *attachment

	handlersMu sync.RWMutex
	handlers   []EventHandler
}

// New creates a manager. Start must be called before switching.
func New(engines EngineSource, sessions SessionSource, settings SettingsProvider, layouts LayoutProvider, logger *logging.Logger) *Manager {
	return &Manager{
		engines:  engines,
		sessions: sessions,
		settings: settings,
		layouts:  layouts,
		logger:   logger.WithComponent("ime.manager"),
		ctx:      context.Background(),
	}
}

// Start puts the default engine in the slot. ctx bounds every later switch.
func (m *Manager) Start(ctx context.Context) error {
	def := m.engines.GetInputMethod(ime.DefaultEngineID)
	if def == nil {
		return fmt.Errorf("%w: %s engine is not initialized", ErrNotStarted, ime.DefaultEngineID)
	}

	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()

	m.current.Store(def)
	return nil
}

// CurrentEngine returns the active engine. It is never nil after Start.
func (m *Manager) CurrentEngine() *ime.Instance {
	return m.current.Load()
}

// UpdateInputContextData captures a snapshot of the focused session for the
// next switch. The snapshot stays bound to that session even if focus moves
// before the switch reads it. A session whose text cannot be read yields an
// empty value.
func (m *Manager) UpdateInputContextData() {
	ic := m.sessions.InputContext()
	if ic == nil {
		m.logger.Debug("updateInputContextData: no input context")
		return
	}

	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()

	snap := ime.SessionSnapshot{
		FieldType:      ic.InputType(),
		InputMode:      ic.InputMode(),
		SelectionStart: ic.SelectionStart(),
		SelectionEnd:   ic.SelectionEnd(),
	}
	r := async.Go(func() (ime.SessionSnapshot, error) {
		text, err := ic.GetText(ctx)
		if err != nil {
			m.logger.Warn("reading text of session %s: %v", ic.ID(), err)
			text = ""
		}
		snap.Value = text
		return snap, nil
	})

	m.mu.Lock()
	m.snapshot = r
	m.mu.Unlock()
}

// SwitchCurrentIMEngine makes id the active engine. The default engine is
// in the slot by the time this returns. The result settles with the
// activated instance, or with an error while the default engine stays
// active. Failures are also logged; callers may ignore the result.
func (m *Manager) SwitchCurrentIMEngine(id string) *async.Result[*ime.Instance] {
	def := m.engines.GetInputMethod(ime.DefaultEngineID)
	if def == nil {
		return async.Rejected[*ime.Instance](ErrNotStarted)
	}

	prev, gen, snap, ctx := m.reset(id, def)
	deactivated := prev != nil && !prev.IsDefault()

	if deactivated {
		m.emitEvent(Event{Type: EventEngineDeactivated, Engine: prev.ID})
	}

	if id == ime.DefaultEngineID {
		m.logger.Debug("switched to %s", id)
		m.emitEvent(Event{Type: EventEngineActivated, Engine: id})
		return async.Resolved(def)
	}

	if snap == nil {
		m.logger.Warn("switching to %s without session data; call UpdateInputContextData first", id)
	}

	r := async.New[*ime.Instance]()
	loaded := m.engines.GetInputMethodAsync(id)
	go m.activate(ctx, gen, id, loaded, snap, r)
	return r
}

// reset is the synchronous half of a switch.
func (m *Manager) reset(id string, def *ime.Instance) (*ime.Instance, uint64, *async.Result[ime.SessionSnapshot], context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.current.Load()
	if prev != nil && !prev.IsDefault() {
		m.deactivate(prev)
	}
	m.detachLocked()
	m.current.Store(def)
	gen := m.generation.Add(1)

	snap := m.snapshot
	if id == ime.DefaultEngineID {
		m.snapshot = nil
	}
	return prev, gen, snap, m.ctx
}

// activate is the asynchronous half of a switch.
func (m *Manager) activate(ctx context.Context, gen uint64, id string, loaded *async.Result[*ime.Instance], snap *async.Result[ime.SessionSnapshot], r *async.Result[*ime.Instance]) {
	defer func() {
		if p := recover(); p != nil {
			m.fail(id, r, panicError(id, p))
		}
	}()

	var (
		inst     *ime.Instance
		data     ime.SessionSnapshot
		settings config.IMESettings
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := loaded.Wait(gctx)
		inst = v
		return err
	})
	g.Go(func() error {
		if snap == nil {
			return nil
		}
		v, err := snap.Wait(gctx)
		data = v
		return err
	})
	g.Go(func() error {
		s, err := m.settings.Snapshot(gctx)
		settings = s
		return err
	})
	if err := g.Wait(); err != nil {
		m.fail(id, r, fmt.Errorf("switching to %s: %w", id, err))
		return
	}

	m.activateMu.Lock()
	defer m.activateMu.Unlock()

	if m.generation.Load() != gen {
		m.supersede(id, r)
		return
	}

	lay := m.layouts.CurrentLayout()
	if a, ok := inst.Activator(); ok {
		opts := ime.ActivationOptions{
			Suggest:            settings.SuggestionsEnabled,
			Correct:            settings.CorrectionsEnabled,
			CorrectPunctuation: lay.CorrectPunctuation(),
		}
		if err := a.Activate(ctx, lay.Language(), data, opts); err != nil {
			m.fail(id, r, fmt.Errorf("activating %s: %w", id, err))
			return
		}
	}

	m.mu.Lock()
	if m.generation.Load() != gen {
		m.mu.Unlock()
		// Activated but never committed; undo it so the engine does not
		// keep state for a session it will not see.
		m.deactivate(inst)
		m.supersede(id, r)
		return
	}
	m.attachLocked(inst)
	m.current.Store(inst)
	if m.snapshot == snap {
		m.snapshot = nil
	}
	m.mu.Unlock()

	m.logger.Info("active engine %s (language %q)", id, lay.Language())
	m.emitEvent(Event{Type: EventEngineActivated, Engine: id})
	r.Resolve(inst)
}

// deactivate tells inst it left the slot. A panic in the engine is logged;
// the switch that caused it goes on.
func (m *Manager) deactivate(inst *ime.Instance) {
	d, ok := inst.Deactivator()
	if !ok {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("deactivating %s: %v", inst.ID, panicError(inst.ID, p))
		}
	}()
	d.Deactivate()
}

// panicError turns a recovered engine panic into an error. Protocol
// violations keep their type so callers can match them.
func panicError(id string, p any) error {
	if pe, ok := p.(*ime.ProtocolError); ok {
		return pe
	}
	return fmt.Errorf("engine %s: panic: %v", id, p)
}

func (m *Manager) fail(id string, r *async.Result[*ime.Instance], err error) {
	m.logger.Error("%v", err)
	m.emitEvent(Event{Type: EventSwitchFailed, Engine: id, Err: err})
	r.Reject(err)
}

func (m *Manager) supersede(id string, r *async.Result[*ime.Instance]) {
	m.logger.Debug("switch to %s superseded", id)
	err := fmt.Errorf("%w: %s", ime.ErrSuperseded, id)
	m.emitEvent(Event{Type: EventSwitchSuperseded, Engine: id, Err: err})
	r.Reject(err)
}
