// Package terminal is a text-mode front end for the keyboard. It shows one
// text field, the candidate row and the keyboard state, and turns terminal
// key presses into keyboard clicks.
package terminal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/dshills/imehost/internal/ime"
	"github.com/dshills/imehost/internal/ime/async"
	"github.com/dshills/imehost/internal/keyboard"
	"github.com/dshills/imehost/internal/logging"
	"github.com/dshills/imehost/internal/session"
)

const helpLine = "Esc quit  Tab layout  F1-F9 pick  PgDn more  Up shift  Ctrl-F focus"

// repeatWindow is the gap below which a second Backspace counts as
// auto-repeat. Terminals do not report key repeat themselves.
const repeatWindow = 80 * time.Millisecond

// Terminal draws the keyboard on a tcell screen.
type Terminal struct {
	mu     sync.Mutex
	screen tcell.Screen
	kb     *keyboard.Keyboard
	field  *session.Field
	logger *logging.Logger

	focused       bool
	lastBackspace time.Time
}

// New creates a terminal front end typing into field.
func New(screen tcell.Screen, kb *keyboard.Keyboard, field *session.Field, logger *logging.Logger) *Terminal {
	return &Terminal{
		screen: screen,
		kb:     kb,
		field:  field,
		logger: logger.WithComponent("terminal"),
	}
}

// NewScreen creates the screen for the controlling terminal.
func NewScreen() (tcell.Screen, error) {
	return tcell.NewScreen()
}

// Init prepares the screen and redraws whenever the keyboard changes.
func (t *Terminal) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.screen.Init(); err != nil {
		return err
	}
	t.screen.EnablePaste()

	t.kb.OnChange(func(keyboard.Change) {
		// best-effort; the queue may be full
		_ = t.screen.PostEvent(tcell.NewEventInterrupt(nil))
	})
	return nil
}

// Shutdown restores the terminal.
func (t *Terminal) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.screen.Fini()
}

// Focus gives the field to the keyboard.
func (t *Terminal) Focus() *async.Result[*ime.Instance] {
	t.mu.Lock()
	t.focused = true
	t.mu.Unlock()
	return t.kb.SetInputContext(t.field)
}

// Run processes terminal events until the user quits or ctx ends.
func (t *Terminal) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = t.screen.PostEvent(tcell.NewEventInterrupt(ctx.Err()))
		case <-done:
		}
	}()

	t.Draw()
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		if quit := t.HandleEvent(ctx, ev); quit {
			return nil
		}
		t.Draw()
	}
}

// HandleEvent applies one terminal event. It reports whether the user asked
// to quit.
func (t *Terminal) HandleEvent(ctx context.Context, ev tcell.Event) bool {
	switch e := ev.(type) {
	case *tcell.EventKey:
		return t.handleKey(ctx, e)
	case *tcell.EventResize:
		t.screen.Sync()
	}
	return false
}

func (t *Terminal) handleKey(ctx context.Context, ev *tcell.EventKey) bool {
	var err error

	switch key := ev.Key(); {
	case key == tcell.KeyEscape || key == tcell.KeyCtrlC:
		return true
	case key == tcell.KeyRune:
		err = t.kb.Click(ctx, int(ev.Rune()), nil)
	case key == tcell.KeyBackspace || key == tcell.KeyBackspace2:
		if t.isRepeat(ev.When()) {
			err = t.kb.RepeatKey(ctx, ime.KeyBackspace)
		} else {
			err = t.kb.Click(ctx, ime.KeyBackspace, nil)
		}
	case key == tcell.KeyEnter:
		err = t.kb.Click(ctx, ime.KeyReturn, nil)
	case key == tcell.KeyTab:
		t.kb.NextLayout()
	case key == tcell.KeyUp:
		t.kb.ToggleShift()
	case key == tcell.KeyPgDn:
		err = t.kb.RequestMoreCandidates(ctx, t.kb.NumberOfCandidatesPerRow())
	case key >= tcell.KeyF1 && key <= tcell.KeyF9:
		err = t.kb.SelectCandidate(ctx, int(key-tcell.KeyF1))
	case key == tcell.KeyLeft:
		t.moveCursor(-1)
	case key == tcell.KeyRight:
		t.moveCursor(1)
	case key == tcell.KeyCtrlF:
		t.toggleFocus()
	}

	if err != nil {
		t.logger.Warn("key %s: %v", ev.Name(), err)
	}
	return false
}

// isRepeat records a Backspace at when and reports whether it followed the
// previous one within repeatWindow.
func (t *Terminal) isRepeat(when time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	repeat := !t.lastBackspace.IsZero() && when.Sub(t.lastBackspace) < repeatWindow
	t.lastBackspace = when
	return repeat
}

func (t *Terminal) moveCursor(delta int) {
	pos := t.field.SelectionEnd() + delta
	t.field.SetSelection(pos, pos)
}

func (t *Terminal) toggleFocus() {
	t.mu.Lock()
	t.focused = !t.focused
	focused := t.focused
	t.mu.Unlock()

	if focused {
		t.kb.SetInputContext(t.field)
	} else {
		t.kb.SetInputContext(nil)
	}
}

// Draw renders the current state.
func (t *Terminal) Draw() {
	state := t.kb.State()
	value, err := t.field.GetText(context.Background())
	if err != nil {
		value = ""
	}
	composition, _ := t.field.Composition()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Clear()
	_, height := t.screen.Size()

	bold := tcell.StyleDefault.Bold(true)
	dim := tcell.StyleDefault.Dim(true)

	status := fmt.Sprintf("layout %s  engine %s  page %d", state.Layout, state.Engine, state.Page)
	switch {
	case state.UpperCase.IsUpperCaseLocked:
		status += "  CAPS"
	case state.UpperCase.IsUpperCase:
		status += "  SHIFT"
	}
	if !state.Focused {
		status += "  (blurred)"
	}
	t.drawText(0, 0, bold, status)

	lines := strings.Split(value, "\n")
	for i, line := range lines {
		t.drawText(0, 2+i, tcell.StyleDefault, line)
	}
	if composition != "" {
		t.drawText(0, 3+len(lines), tcell.StyleDefault.Underline(true), composition)
	}

	if state.ShowCandidates {
		var b strings.Builder
		for i, c := range state.Candidates {
			if i > 0 {
				b.WriteString("  ")
			}
			fmt.Fprintf(&b, "%d:%s", i+1, c.Text)
		}
		t.drawText(0, 5+len(lines), tcell.StyleDefault.Reverse(true), b.String())
	}

	t.drawText(0, height-1, dim, helpLine)

	if state.Focused {
		x, y := cursorPosition(value, t.field.SelectionEnd())
		t.screen.ShowCursor(x, 2+y)
	} else {
		t.screen.HideCursor()
	}
	t.screen.Show()
}

// drawText writes s at x, y, clipped to the screen width. Wide runes take
// two cells. Must be called with mu held.
func (t *Terminal) drawText(x, y int, style tcell.Style, s string) {
	width, _ := t.screen.Size()
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if x+w > width {
			return
		}
		t.screen.SetContent(x, y, r, nil, style)
		x += w
	}
}

// cursorPosition maps a rune offset in value to a cell column and line.
func cursorPosition(value string, offset int) (int, int) {
	x, y := 0, 0
	for i, r := range []rune(value) {
		if i >= offset {
			break
		}
		if r == '\n' {
			x, y = 0, y+1
			continue
		}
		x += runewidth.RuneWidth(r)
	}
	return x, y
}
