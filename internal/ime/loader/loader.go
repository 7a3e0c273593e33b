// Package loader resolves engine ids to initialized engine instances,
// fetching engine code on first use.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/imehost/internal/ime"
	"github.com/dshills/imehost/internal/ime/async"
	"github.com/dshills/imehost/internal/ime/glue"
	"github.com/dshills/imehost/internal/logging"
)

// Fetcher makes the code of an engine available. A successful fetch must
// leave the engine registered in the registry under id.
type Fetcher interface {
	Fetch(ctx context.Context, id string) error
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, id string) error

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, id string) error {
	return f(ctx, id)
}

// Loader owns every initialized engine. Instances are created once per id
// and kept for the life of the process.
type Loader struct {
	mu sync.Mutex

	registry *ime.Registry
	fetcher  Fetcher
	host     ime.Host
	logger   *logging.Logger
	baseLog  *logging.Logger

	ctx         context.Context
	initialized map[string]*ime.Instance
	results     map[string]*async.Result[*ime.Instance]
}

// New creates a loader. fetcher may be nil when every engine is compiled in.
func New(registry *ime.Registry, fetcher Fetcher, host ime.Host, logger *logging.Logger) *Loader {
	return &Loader{
		registry:    registry,
		fetcher:     fetcher,
		host:        host,
		logger:      logger.WithComponent("ime.loader"),
		baseLog:     logger,
		ctx:         context.Background(),
		initialized: make(map[string]*ime.Instance),
		results:     make(map[string]*async.Result[*ime.Instance]),
	}
}

// Start initializes every engine already in the registry and pre-resolves
// their results. ctx bounds every later fetch.
func (l *Loader) Start(ctx context.Context) error {
	l.mu.Lock()
	l.ctx = ctx
	l.mu.Unlock()

	var errs []error
	for _, id := range l.registry.IDs() {
		inst, err := l.InitInputMethod(id)
		if err != nil {
			l.logger.Error("preloaded engine %s: %v", id, err)
			errs = append(errs, fmt.Errorf("engine %s: %w", id, err))
			continue
		}
		l.mu.Lock()
		l.results[id] = async.Resolved(inst)
		l.mu.Unlock()
	}

	if _, ok := l.lookup(ime.DefaultEngineID); !ok {
		errs = append(errs, fmt.Errorf("engine %s: not available", ime.DefaultEngineID))
	}
	return errors.Join(errs...)
}

// GetInputMethod returns the initialized engine for id, or the default engine
// when id has not been initialized. It never fetches.
func (l *Loader) GetInputMethod(id string) *ime.Instance {
	if inst, ok := l.lookup(id); ok {
		return inst
	}
	inst, _ := l.lookup(ime.DefaultEngineID)
	return inst
}

// Initialized returns the ids of every initialized engine, sorted.
func (l *Loader) Initialized() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]string, 0, len(l.initialized))
	for id := range l.initialized {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetInputMethodAsync returns the shared result for id, starting a fetch on
// the first request. A failed fetch is forgotten so a later request retries.
func (l *Loader) GetInputMethodAsync(id string) *async.Result[*ime.Instance] {
	l.mu.Lock()
	if r, ok := l.results[id]; ok {
		l.mu.Unlock()
		return r
	}
	if inst, ok := l.initialized[id]; ok {
		r := async.Resolved(inst)
		l.results[id] = r
		l.mu.Unlock()
		return r
	}
	r := async.New[*ime.Instance]()
	l.results[id] = r
	ctx := l.ctx
	l.mu.Unlock()

	go l.load(ctx, id, r)
	return r
}

func (l *Loader) load(ctx context.Context, id string, r *async.Result[*ime.Instance]) {
	defer func() {
		if p := recover(); p != nil {
			l.fail(id, r, fmt.Errorf("%w: %s: panic: %v", ime.ErrLoadFailed, id, p))
		}
	}()

	if !l.registry.Has(id) {
		if l.fetcher == nil {
			l.fail(id, r, fmt.Errorf("%w: %s: no fetcher", ime.ErrLoadFailed, id))
			return
		}
		l.logger.Debug("fetching engine %s", id)
		if err := l.fetcher.Fetch(ctx, id); err != nil {
			l.fail(id, r, fmt.Errorf("%w: %s: %w", ime.ErrLoadFailed, id, err))
			return
		}
	}

	inst, err := l.InitInputMethod(id)
	if err != nil {
		l.fail(id, r, err)
		return
	}
	r.Resolve(inst)
}

func (l *Loader) fail(id string, r *async.Result[*ime.Instance], err error) {
	l.mu.Lock()
	if l.results[id] == r {
		delete(l.results, id)
	}
	l.mu.Unlock()

	l.logger.Error("loading engine %s: %v", id, err)
	r.Reject(err)
}

// InitInputMethod initializes the engine that was just registered under id.
// It may succeed only once per id. An id that was never registered means
// the fetched code did not expose the engine it was fetched for, which is
// reported as a *ime.ProtocolError.
func (l *Loader) InitInputMethod(id string) (*ime.Instance, error) {
	if _, ok := l.lookup(id); ok {
		return nil, fmt.Errorf("%w: %s", ime.ErrAlreadyInitialized, id)
	}

	e, ok := l.registry.Take(id)
	if !ok {
		return nil, &ime.ProtocolError{Engine: id, Err: ime.ErrNotExposed}
	}

	g := glue.New(id, l.host, l.baseLog)
	if err := e.Init(g); err != nil {
		return nil, fmt.Errorf("init engine %s: %w", id, err)
	}
	inst := ime.NewInstance(id, e, g)

	l.mu.Lock()
	if _, exists := l.initialized[id]; exists {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ime.ErrAlreadyInitialized, id)
	}
	l.initialized[id] = inst
	l.mu.Unlock()

	l.logger.Info("initialized engine %s (capabilities: %s)", id, inst.Caps)
	return inst, nil
}

func (l *Loader) lookup(id string) (*ime.Instance, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	inst, ok := l.initialized[id]
	return inst, ok
}
