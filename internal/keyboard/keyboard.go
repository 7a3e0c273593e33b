// Package keyboard is the virtual keyboard application. It owns the focused
// input context, the candidate list and the shift state, serves as the host
// for every engine, and turns focus and layout changes into engine switches.
package keyboard

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dshills/imehost/internal/config"
	"github.com/dshills/imehost/internal/dictionary"
	"github.com/dshills/imehost/internal/ime"
	"github.com/dshills/imehost/internal/ime/loader"
	"github.com/dshills/imehost/internal/ime/luaengine"
	"github.com/dshills/imehost/internal/ime/manager"
	"github.com/dshills/imehost/internal/layout"
	"github.com/dshills/imehost/internal/logging"
	"github.com/dshills/imehost/internal/session"
)

// Options configures the keyboard.
type Options struct {
	// ConfigPath is the path to the settings file. A missing file means
	// defaults.
	ConfigPath string

	// LogLevel overrides the configured log level when set.
	LogLevel string

	// LogOutput receives log lines. Defaults to the configured log file,
	// or stderr.
	LogOutput io.Writer

	// Quiet drops log lines when neither LogOutput nor a log file is set,
	// instead of writing them to stderr. Front ends that draw on the
	// terminal set it.
	Quiet bool

	// Watch reloads the settings file when it changes.
	Watch bool

	// Engines are compiled-in engines, initialized at start alongside the
	// default engine.
	Engines map[string]ime.Engine
}

// Keyboard wires the engine host together.
type Keyboard struct {
	mu sync.RWMutex

	opts    Options
	logger  *logging.Logger
	logFile *os.File

	settings  *config.Store
	layouts   *layout.Manager
	resources *dictionary.Loader
	registry  *ime.Registry
	fetcher   *luaengine.Fetcher
	loader    *loader.Loader
	manager   *manager.Manager

	ic         session.InputContext
	candidates []ime.Candidate
	upper      ime.UpperCaseState

	observersMu sync.RWMutex
	observers   []Observer

	running atomic.Bool
	cancel  context.CancelFunc
}

var _ ime.Host = (*Keyboard)(nil)

// New creates a keyboard. Nothing runs until Start.
func New(opts Options) (*Keyboard, error) {
	k := &Keyboard{opts: opts}
	if err := k.bootstrap(); err != nil {
		k.closeLog()
		return nil, err
	}
	return k, nil
}

// bootstrap builds every component in dependency order.
func (k *Keyboard) bootstrap() error {
	// 1. Settings, read once without a logger to learn the log settings
	cfg, err := config.Load(k.opts.ConfigPath)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}

	// 2. Logging
	if err := k.initLogger(cfg.Log); err != nil {
		return &InitError{Component: "logging", Err: err}
	}

	k.settings, err = config.NewStore(k.opts.ConfigPath, k.logger)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}

	// 3. Layouts
	k.layouts, err = loadLayouts(cfg.Layouts, k.logger)
	if err != nil {
		return &InitError{Component: "layouts", Err: err}
	}

	// 4. Engine resources and script engines
	k.resources = dictionary.NewLoader(cfg.Engines.Dir)
	k.registry = ime.NewRegistry()
	for id, e := range k.opts.Engines {
		if err := k.registry.Register(id, e); err != nil {
			return &InitError{Component: "engine registry", Err: err}
		}
	}
	k.fetcher = luaengine.NewFetcher(cfg.Engines.Dir, k.registry, k.logger)

	// 5. Loader and manager
	k.loader = loader.New(k.registry, k.fetcher, k, k.logger)
	k.manager = manager.New(k.loader, k, k.settings, k.layouts, k.logger)
	k.manager.Subscribe(k.onEngineEvent)

	return nil
}

func (k *Keyboard) initLogger(cfg config.LogConfig) error {
	level := cfg.Level
	if k.opts.LogLevel != "" {
		level = k.opts.LogLevel
	}

	out, f, err := logOutput(k.opts, cfg)
	if err != nil {
		return err
	}
	k.logFile = f

	k.logger = logging.New(logging.Config{
		Level:  logging.ParseLevel(level),
		Output: out,
		Prefix: "imehost",
	}).WithComponent("keyboard")
	return nil
}

// logOutput picks the log destination. The returned file, if any, is owned
// by the caller. A nil writer means the logging default.
func logOutput(opts Options, cfg config.LogConfig) (io.Writer, *os.File, error) {
	switch {
	case opts.LogOutput != nil:
		return opts.LogOutput, nil, nil
	case cfg.File != "":
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		return f, f, nil
	case opts.Quiet:
		return io.Discard, nil, nil
	}
	return nil, nil, nil
}

// loadLayouts reads the layout file, falling back to the built-in layout
// when there is none.
func loadLayouts(cfg config.LayoutsConfig, logger *logging.Logger) (*layout.Manager, error) {
	f, err := layout.Load(cfg.File)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("no layout file at %s; using the built-in layout", cfg.File)
		return layout.Builtin(), nil
	}
	if err != nil {
		return nil, err
	}

	m := layout.NewManager(f)
	if cfg.Default != "" {
		if _, err := m.SetCurrent(cfg.Default); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Start initializes the preloaded engines and puts the default engine in
// place. ctx bounds every engine fetch and switch.
func (k *Keyboard) Start(ctx context.Context) error {
	if !k.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	k.cancel = cancel

	if err := k.loader.Start(ctx); err != nil {
		if k.loader.GetInputMethod(ime.DefaultEngineID) == nil {
			k.abortStart()
			return &InitError{Component: "engine loader", Err: err}
		}
		k.logger.Warn("some engines failed to start: %v", err)
	}
	if err := k.manager.Start(ctx); err != nil {
		k.abortStart()
		return &InitError{Component: "engine manager", Err: err}
	}

	if k.opts.Watch {
		if err := k.settings.Watch(); err != nil {
			k.logger.Warn("not watching settings: %v", err)
		}
	}
	k.settings.OnChange(k.onSettingsChange)

	// Warm the engine of the current layout so the first focus is fast.
	if id := k.layouts.CurrentLayout().Engine(); id != ime.DefaultEngineID {
		k.loader.GetInputMethodAsync(id)
	}

	k.logger.Info("keyboard started with layout %s", k.layouts.CurrentLayout().Name)
	return nil
}

func (k *Keyboard) abortStart() {
	k.cancel()
	k.running.Store(false)
}

// Shutdown stops engine scripts and releases the settings watcher.
func (k *Keyboard) Shutdown() {
	if !k.running.CompareAndSwap(true, false) {
		return
	}

	k.cancel()
	k.fetcher.Close()
	if err := k.settings.Close(); err != nil {
		k.logger.Warn("closing settings: %v", err)
	}
	k.logger.Info("keyboard stopped")
	k.closeLog()
}

func (k *Keyboard) closeLog() {
	if k.logFile != nil {
		_ = k.logFile.Close()
		k.logFile = nil
	}
}

// IsRunning reports whether Start has completed and Shutdown has not.
func (k *Keyboard) IsRunning() bool {
	return k.running.Load()
}

// Settings returns the settings store.
func (k *Keyboard) Settings() *config.Store {
	return k.settings
}

// Layouts returns the layout manager.
func (k *Keyboard) Layouts() *layout.Manager {
	return k.layouts
}

// Manager returns the engine manager.
func (k *Keyboard) Manager() *manager.Manager {
	return k.manager
}

// Logger returns the keyboard's logger.
func (k *Keyboard) Logger() *logging.Logger {
	return k.logger
}

func (k *Keyboard) onEngineEvent(ev manager.Event) {
	switch ev.Type {
	case manager.EventEngineActivated, manager.EventEngineDeactivated:
		k.notify(Change{Kind: ChangeEngine, Engine: ev.Engine})
	}
}

// onSettingsChange re-activates the current layout's engine so it sees the
// new options.
func (k *Keyboard) onSettingsChange(config.Config) {
	k.notify(Change{Kind: ChangeSettings})
	if k.InputContext() != nil {
		k.activateLayoutEngine()
	}
}
