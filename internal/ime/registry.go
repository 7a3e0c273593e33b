package ime

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

var idPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ValidateID checks that id is usable as an engine id. Ids double as
// directory names, so they are restricted to lowercase names.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Registry holds engine modules that have registered themselves but have not
// been initialized yet. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	modules map[string]Engine
}

// NewRegistry creates a registry that already holds the default engine.
func NewRegistry() *Registry {
	r := &Registry{modules: make(map[string]Engine)}
	r.modules[DefaultEngineID] = NewDefaultEngine()
	return r
}

// Register adds an engine module under id.
func (r *Registry) Register(id string, e Engine) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("register %q: nil engine", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[id]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, id)
	}
	r.modules[id] = e
	return nil
}

// Take removes and returns the module registered under id.
func (r *Registry) Take(id string) (Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.modules[id]
	if ok {
		delete(r.modules, id)
	}
	return e, ok
}

// Has reports whether a module is registered under id.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.modules[id]
	return ok
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.modules))
	for id := range r.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
