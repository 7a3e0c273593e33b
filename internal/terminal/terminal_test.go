package terminal

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/imehost/internal/keyboard"
	"github.com/dshills/imehost/internal/logging"
	"github.com/dshills/imehost/internal/session"
)

type fixture struct {
	screen tcell.SimulationScreen
	kb     *keyboard.Keyboard
	field  *session.Field
	term   *Terminal
}

// newFixture runs the terminal on a simulation screen over the built-in
// pass-through layout.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	cfg := "[engines]\ndir = " + strconv.Quote(filepath.Join(dir, "imes")) + "\n" +
		"[layouts]\nfile = " + strconv.Quote(filepath.Join(dir, "layouts.yaml")) + "\n"
	path := filepath.Join(dir, "imehost.toml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	kb, err := keyboard.New(keyboard.Options{ConfigPath: path, LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("keyboard.New() error = %v", err)
	}
	if err := kb.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(kb.Shutdown)

	field := session.NewField()
	t.Cleanup(field.Close)

	screen := tcell.NewSimulationScreen("UTF-8")
	term := New(screen, kb, field, logging.NullLogger)
	if err := term.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(term.Shutdown)
	screen.SetSize(80, 12)

	return &fixture{screen: screen, kb: kb, field: field, term: term}
}

func (f *fixture) focus(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := f.term.Focus().Wait(ctx); err != nil {
		t.Fatalf("switch error = %v", err)
	}
}

func (f *fixture) press(key tcell.Key, r rune) bool {
	return f.term.HandleEvent(context.Background(), tcell.NewEventKey(key, r, tcell.ModNone))
}

func (f *fixture) typeString(s string) {
	for _, r := range s {
		f.press(tcell.KeyRune, r)
	}
}

func (f *fixture) text(t *testing.T) string {
	t.Helper()
	s, err := f.field.GetText(context.Background())
	if err != nil {
		t.Fatalf("GetText() error = %v", err)
	}
	return s
}

func (f *fixture) row(y int) string {
	cells, width, _ := f.screen.GetContents()
	var b strings.Builder
	for x := 0; x < width; x++ {
		c := cells[y*width+x]
		if len(c.Runes) == 0 {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(c.Runes[0])
	}
	return strings.TrimRight(b.String(), " ")
}

func TestTypingKeys(t *testing.T) {
	f := newFixture(t)
	f.focus(t)

	f.typeString("hi")
	if got := f.text(t); got != "hi" {
		t.Fatalf("text = %q, want %q", got, "hi")
	}

	f.press(tcell.KeyBackspace2, 0)
	f.press(tcell.KeyEnter, 0)
	if got := f.text(t); got != "h\n" {
		t.Fatalf("text = %q, want %q", got, "h\n")
	}

	f.press(tcell.KeyUp, 0)
	f.typeString("ab")
	if got := f.text(t); got != "h\nAb" {
		t.Errorf("text = %q, want %q", got, "h\nAb")
	}
}

func TestBackspaceRepeat(t *testing.T) {
	f := newFixture(t)
	f.focus(t)
	f.typeString("abcd")

	// back to back presses land inside the repeat window
	for i := 0; i < 3; i++ {
		f.press(tcell.KeyBackspace2, 0)
	}
	if got := f.text(t); got != "a" {
		t.Errorf("text = %q, want %q", got, "a")
	}
}

func TestIsRepeat(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"first press", now, false},
		{"held", now.Add(30 * time.Millisecond), true},
		{"still held", now.Add(60 * time.Millisecond), true},
		{"released", now.Add(time.Second), false},
		{"pressed again", now.Add(time.Second + repeatWindow), false},
	}

	for _, tt := range tests {
		if got := f.term.isRepeat(tt.at); got != tt.want {
			t.Errorf("%s: isRepeat() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCursorKeysMoveSelection(t *testing.T) {
	f := newFixture(t)
	f.focus(t)

	f.typeString("ac")
	f.press(tcell.KeyLeft, 0)
	f.typeString("b")
	if got := f.text(t); got != "abc" {
		t.Fatalf("text = %q, want %q", got, "abc")
	}

	f.press(tcell.KeyRight, 0)
	f.press(tcell.KeyRight, 0)
	if got := f.field.SelectionEnd(); got != 3 {
		t.Errorf("SelectionEnd() = %d, want 3", got)
	}
}

func TestFocusToggle(t *testing.T) {
	f := newFixture(t)
	f.focus(t)

	f.press(tcell.KeyCtrlF, 0)
	if f.kb.State().Focused {
		t.Fatal("still focused after Ctrl-F")
	}

	f.press(tcell.KeyCtrlF, 0)
	if !f.kb.State().Focused {
		t.Fatal("not focused after second Ctrl-F")
	}
}

func TestEscapeQuits(t *testing.T) {
	f := newFixture(t)

	if f.press(tcell.KeyRune, 'x') {
		t.Error("rune key reported quit")
	}
	if !f.press(tcell.KeyEscape, 0) {
		t.Error("Escape did not report quit")
	}
	if !f.press(tcell.KeyCtrlC, 0) {
		t.Error("Ctrl-C did not report quit")
	}
}

func TestDraw(t *testing.T) {
	f := newFixture(t)
	f.focus(t)
	f.typeString("hey")
	f.press(tcell.KeyUp, 0)
	f.press(tcell.KeyUp, 0)

	f.term.Draw()

	if got, want := f.row(0), "layout raw  engine default  page 0  CAPS"; got != want {
		t.Errorf("status row = %q, want %q", got, want)
	}
	if got := f.row(2); got != "hey" {
		t.Errorf("text row = %q, want %q", got, "hey")
	}
	if got := f.row(11); got != helpLine {
		t.Errorf("help row = %q, want %q", got, helpLine)
	}

	f.press(tcell.KeyCtrlF, 0)
	f.term.Draw()
	if got := f.row(0); !strings.HasSuffix(got, "(blurred)") {
		t.Errorf("status row = %q, want blurred marker", got)
	}
}

func TestRunStopsOnEscape(t *testing.T) {
	f := newFixture(t)

	f.screen.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)

	done := make(chan error, 1)
	go func() { done <- f.term.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after Escape")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- f.term.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestCursorPosition(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		offset int
		x, y   int
	}{
		{"start", "abc", 0, 0, 0},
		{"middle", "abc", 2, 2, 0},
		{"end", "abc", 3, 3, 0},
		{"second line", "ab\ncd", 4, 1, 1},
		{"after newline", "ab\n", 3, 0, 1},
		{"multibyte", "héllo", 2, 2, 0},
		{"wide", "日本語", 2, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := cursorPosition(tt.value, tt.offset)
			if x != tt.x || y != tt.y {
				t.Errorf("cursorPosition(%q, %d) = (%d, %d), want (%d, %d)", tt.value, tt.offset, x, y, tt.x, tt.y)
			}
		})
	}
}
