package luaengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/imehost/internal/ime"
	"github.com/dshills/imehost/internal/logging"
)

// ErrScriptNotFound is returned when no script exists for an engine id.
var ErrScriptNotFound = errors.New("engine script not found")

// Fetcher loads engine scripts from a directory. Each fetched script runs in
// its own state and may register one or more engines.
type Fetcher struct {
	dir      string
	registry *ime.Registry
	logger   *logging.Logger

	mu        sync.Mutex
	executors []*executor
	closed    bool
}

// NewFetcher creates a fetcher that registers engines found under dir into
// registry.
func NewFetcher(dir string, registry *ime.Registry, logger *logging.Logger) *Fetcher {
	return &Fetcher{
		dir:      dir,
		registry: registry,
		logger:   logger,
	}
}

// ScriptPath returns the script location for id.
func (f *Fetcher) ScriptPath(id string) string {
	return filepath.Join(f.dir, id, id+".lua")
}

// Available lists the engine ids that have a script under the directory.
func (f *Fetcher) Available() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() || ime.ValidateID(entry.Name()) != nil {
			continue
		}
		if _, err := os.Stat(f.ScriptPath(entry.Name())); err == nil {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

// Fetch runs the script for id. The script is expected to call
// ime.register(id, table).
func (f *Fetcher) Fetch(ctx context.Context, id string) error {
	if err := ime.ValidateID(id); err != nil {
		return err
	}

	path := f.ScriptPath(id)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrScriptNotFound, path)
		}
		return err
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrExecutorClosed
	}
	f.mu.Unlock()

	exec := newExecutor(newState(), 0)
	err := exec.execute(ctx, func(L *lua.LState) error {
		f.installModule(L, exec)
		return L.DoFile(path)
	})
	if err != nil {
		exec.close()
		return fmt.Errorf("running %s: %w", path, err)
	}

	f.mu.Lock()
	f.executors = append(f.executors, exec)
	f.mu.Unlock()

	f.logger.Debug("loaded engine script %s", path)
	return nil
}

// installModule exposes the global ime module to the script.
func (f *Fetcher) installModule(L *lua.LState, exec *executor) {
	mod := L.NewTable()
	L.SetField(mod, "register", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		table := L.CheckTable(2)

		e, err := newEngine(id, exec, table, f.logger)
		if err != nil {
			L.RaiseError("ime.register(%q): %s", id, err.Error())
			return 0
		}
		if err := f.registry.Register(id, e); err != nil {
			L.RaiseError("ime.register(%q): %s", id, err.Error())
			return 0
		}
		return 0
	}))
	L.SetField(mod, "KEY_BACKSPACE", lua.LNumber(ime.KeyBackspace))
	L.SetField(mod, "KEY_RETURN", lua.LNumber(ime.KeyReturn))
	L.SetGlobal("ime", mod)
}

// Close shuts down every script state.
func (f *Fetcher) Close() {
	f.mu.Lock()
	f.closed = true
	execs := f.executors
	f.executors = nil
	f.mu.Unlock()

	for _, exec := range execs {
		exec.close()
	}
}
