// Package layout loads keyboard layout definitions and tracks the layout and
// page currently shown.
package layout

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// PageIndexDefault is the main page of a layout. Engines may only ever switch
// the keyboard back to this page.
const PageIndexDefault = 0

// Layout errors.
var (
	ErrNoLayouts     = errors.New("layout: no layouts defined")
	ErrUnknownLayout = errors.New("layout: unknown layout")
	ErrDuplicate     = errors.New("layout: duplicate layout name")
	ErrSchema        = errors.New("layout: invalid layouts file")
)

//go:embed layouts.schema.json
var schemaData []byte

var fileSchema = jsonschema.MustCompileString("layouts.schema.json", string(schemaData))

// Layout is one keyboard layout.
type Layout struct {
	Name                   string `yaml:"name"`
	Label                  string `yaml:"label"`
	IMEngine               string `yaml:"imEngine"`
	AutoCorrectLanguage    string `yaml:"autoCorrectLanguage"`
	HandwritingLanguage    string `yaml:"handwritingLanguage"`
	AutoCorrectPunctuation *bool  `yaml:"autoCorrectPunctuation"`
	Pages                  int    `yaml:"pages"`
}

// Language is the language passed to the engine on activation.
func (l Layout) Language() string {
	if l.AutoCorrectLanguage != "" {
		return l.AutoCorrectLanguage
	}
	return l.HandwritingLanguage
}

// CorrectPunctuation reports whether punctuation auto-correction is on.
// Layouts that do not say default to true.
func (l Layout) CorrectPunctuation() bool {
	if l.AutoCorrectPunctuation == nil {
		return true
	}
	return *l.AutoCorrectPunctuation
}

// Engine returns the engine id for the layout.
func (l Layout) Engine() string {
	if l.IMEngine == "" {
		return "default"
	}
	return l.IMEngine
}

// File is the on-disk layout definitions file.
type File struct {
	Default string   `yaml:"default"`
	Layouts []Layout `yaml:"layouts"`
}

// Parse decodes a layout definitions file.
func Parse(data []byte) (*File, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing layouts: %w", err)
	}
	if doc == nil {
		return nil, ErrNoLayouts
	}
	if err := validate(doc); err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing layouts: %w", err)
	}
	if len(f.Layouts) == 0 {
		return nil, ErrNoLayouts
	}

	seen := make(map[string]bool, len(f.Layouts))
	for i, l := range f.Layouts {
		if l.Name == "" {
			return nil, fmt.Errorf("layout %d: missing name", i)
		}
		if seen[l.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicate, l.Name)
		}
		seen[l.Name] = true
	}
	if f.Default == "" {
		f.Default = f.Layouts[0].Name
	}
	if !seen[f.Default] {
		return nil, fmt.Errorf("%w: default %q", ErrUnknownLayout, f.Default)
	}
	return &f, nil
}

// validate checks the decoded document against the layouts schema. The
// document goes through JSON so the validator sees JSON types.
func validate(doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	var v any
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&v); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if err := fileSchema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}

// Load reads and parses the layout definitions file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading layouts %s: %w", path, err)
	}
	return Parse(data)
}

// Manager tracks the current layout and page. It is safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	layouts []Layout
	current int
	page    int
}

// NewManager creates a manager showing the file's default layout.
func NewManager(f *File) *Manager {
	m := &Manager{layouts: append([]Layout(nil), f.Layouts...)}
	m.current = m.indexOf(f.Default)
	if m.current < 0 {
		m.current = 0
	}
	return m
}

// Builtin returns a manager with a single pass-through layout.
func Builtin() *Manager {
	return NewManager(&File{Layouts: []Layout{{Name: "raw", Label: "Raw", IMEngine: "default"}}})
}

// CurrentLayout returns the layout being shown.
func (m *Manager) CurrentLayout() Layout {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.layouts[m.current]
}

// Layouts returns every known layout in file order.
func (m *Manager) Layouts() []Layout {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Layout(nil), m.layouts...)
}

// SetCurrent switches to the named layout and resets the page.
func (m *Manager) SetCurrent(name string) (Layout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(name)
	if i < 0 {
		return Layout{}, fmt.Errorf("%w: %q", ErrUnknownLayout, name)
	}
	m.current = i
	m.page = PageIndexDefault
	return m.layouts[i], nil
}

// Next switches to the layout after the current one, wrapping around.
func (m *Manager) Next() Layout {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = (m.current + 1) % len(m.layouts)
	m.page = PageIndexDefault
	return m.layouts[m.current]
}

// PageIndex returns the page being shown.
func (m *Manager) PageIndex() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.page
}

// SetPageIndex switches the page of the current layout.
func (m *Manager) SetPageIndex(page int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.page = page
}

func (m *Manager) indexOf(name string) int {
	for i, l := range m.layouts {
		if l.Name == name {
			return i
		}
	}
	return -1
}
