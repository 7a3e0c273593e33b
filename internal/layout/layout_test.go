package layout

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testLayouts = `
default: en
layouts:
  - name: en
    label: English
    imEngine: latin
    autoCorrectLanguage: en_us
  - name: fr
    imEngine: latin
    autoCorrectLanguage: fr
    autoCorrectPunctuation: false
  - name: zh-hw
    imEngine: handwriting
    handwritingLanguage: zh
  - name: raw
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(testLayouts))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if f.Default != "en" {
		t.Errorf("Default = %q", f.Default)
	}
	if len(f.Layouts) != 4 {
		t.Fatalf("len(Layouts) = %d, want 4", len(f.Layouts))
	}

	tests := []struct {
		name        string
		language    string
		punctuation bool
		engine      string
	}{
		{"en", "en_us", true, "latin"},
		{"fr", "fr", false, "latin"},
		{"zh-hw", "zh", true, "handwriting"},
		{"raw", "", true, "default"},
	}
	for i, tt := range tests {
		l := f.Layouts[i]
		if l.Name != tt.name {
			t.Fatalf("Layouts[%d].Name = %q, want %q", i, l.Name, tt.name)
		}
		if got := l.Language(); got != tt.language {
			t.Errorf("%s: Language() = %q, want %q", tt.name, got, tt.language)
		}
		if got := l.CorrectPunctuation(); got != tt.punctuation {
			t.Errorf("%s: CorrectPunctuation() = %v, want %v", tt.name, got, tt.punctuation)
		}
		if got := l.Engine(); got != tt.engine {
			t.Errorf("%s: Engine() = %q, want %q", tt.name, got, tt.engine)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"empty", "layouts: []", ErrNoLayouts},
		{"duplicate", "layouts:\n  - name: a\n  - name: a\n", ErrDuplicate},
		{"unknown default", "default: b\nlayouts:\n  - name: a\n", ErrUnknownLayout},
		{"blank", "", ErrNoLayouts},
		{"misspelled key", "layouts:\n  - name: a\n    imEngin: latin\n", ErrSchema},
		{"missing name", "layouts:\n  - label: A\n", ErrSchema},
		{"bad engine id", "layouts:\n  - name: a\n    imEngine: ../x\n", ErrSchema},
		{"negative pages", "layouts:\n  - name: a\n    pages: -1\n", ErrSchema},
		{"not a list", "layouts: english\n", ErrSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Parse([]byte("layouts: [")); err == nil {
		t.Error("Parse() accepted invalid yaml")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layouts.yaml")
	if err := os.WriteFile(path, []byte(testLayouts), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if f.Layouts[0].Label != "English" {
		t.Errorf("Label = %q", f.Layouts[0].Label)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of missing file succeeded")
	}
}

func TestManager(t *testing.T) {
	f, err := Parse([]byte(testLayouts))
	if err != nil {
		t.Fatal(err)
	}
	m := NewManager(f)

	if got := m.CurrentLayout().Name; got != "en" {
		t.Errorf("CurrentLayout() = %q, want en", got)
	}

	m.SetPageIndex(2)
	if m.PageIndex() != 2 {
		t.Errorf("PageIndex() = %d", m.PageIndex())
	}

	l, err := m.SetCurrent("zh-hw")
	if err != nil {
		t.Fatalf("SetCurrent() error = %v", err)
	}
	if l.Engine() != "handwriting" {
		t.Errorf("Engine() = %q", l.Engine())
	}
	if m.PageIndex() != PageIndexDefault {
		t.Errorf("PageIndex() after switch = %d", m.PageIndex())
	}

	if _, err := m.SetCurrent("nope"); !errors.Is(err, ErrUnknownLayout) {
		t.Errorf("SetCurrent() error = %v, want ErrUnknownLayout", err)
	}

	if got := m.Next().Name; got != "raw" {
		t.Errorf("Next() = %q, want raw", got)
	}
	if got := m.Next().Name; got != "en" {
		t.Errorf("Next() wrap = %q, want en", got)
	}
}

func TestBuiltin(t *testing.T) {
	m := Builtin()
	if got := m.CurrentLayout().Engine(); got != "default" {
		t.Errorf("Engine() = %q", got)
	}
	if len(m.Layouts()) != 1 {
		t.Errorf("Layouts() = %v", m.Layouts())
	}
}
