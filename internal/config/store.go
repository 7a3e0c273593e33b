package config

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/imehost/internal/logging"
)

// Observer is called with the new settings after a successful reload.
type Observer func(cfg Config)

// Store holds the current settings and reloads them when the file changes.
type Store struct {
	mu        sync.RWMutex
	path      string
	cfg       Config
	observers []Observer

	logger *logging.Logger

	watcher  *fsnotify.Watcher
	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewStore loads the settings file at path.
func NewStore(path string, logger *logging.Logger) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{
		path:    path,
		cfg:     cfg,
		logger:  logger.WithComponent("config"),
		closeCh: make(chan struct{}),
	}, nil
}

// NewStoreFromConfig creates a store over fixed settings with no backing file.
func NewStoreFromConfig(cfg Config) *Store {
	return &Store{
		cfg:     cfg,
		logger:  logging.NullLogger,
		closeCh: make(chan struct{}),
	}
}

// Config returns the current settings.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Snapshot returns the engine-facing settings.
func (s *Store) Snapshot(ctx context.Context) (IMESettings, error) {
	if err := ctx.Err(); err != nil {
		return IMESettings{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return IMESettings{}, ErrStoreClosed
	}
	return s.cfg.IME(), nil
}

// Update replaces the keyboard preferences in memory.
func (s *Store) Update(fn func(*KeyboardConfig)) {
	s.mu.Lock()
	fn(&s.cfg.Keyboard)
	cfg := s.cfg
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, o := range observers {
		o(cfg)
	}
}

// OnChange registers an observer for reloads and updates.
func (s *Store) OnChange(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Reload re-reads the settings file. On failure the previous settings stay
// in effect.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	cfg, err := Load(s.path)
	if err != nil {
		s.logger.Error("reload failed: %v", err)
		return err
	}

	s.mu.Lock()
	s.cfg = cfg
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	s.logger.Info("reloaded %s", s.path)
	for _, o := range observers {
		o(cfg)
	}
	return nil
}

// Watch starts reloading the settings whenever the file changes. The
// directory is watched rather than the file so that editors replacing the
// file by rename are picked up.
func (s *Store) Watch() error {
	if s.path == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if s.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return err
	}
	s.watcher = w

	s.closedWg.Add(1)
	go s.processLoop(w)
	return nil
}

func (s *Store) processLoop(w *fsnotify.Watcher) {
	defer s.closedWg.Done()

	target := filepath.Clean(s.path)
	for {
		select {
		case <-s.closeCh:
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) {
				_ = s.Reload()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watch error: %v", err)
		}
	}
}

// Close stops watching.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closeCh)
	w := s.watcher
	s.mu.Unlock()

	s.closedWg.Wait()
	if w != nil {
		return w.Close()
	}
	return nil
}
